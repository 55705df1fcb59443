package table

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)

	"netpulse/internal/models"
)

// SQLiteTableName имя единственной таблицы в зеркале
const SQLiteTableName = "network_metrics"

// columnTypes типы известных колонок; остальные хранятся как TEXT
var columnTypes = map[string]string{
	models.ColLatency:             "REAL",
	models.ColJitter:              "REAL",
	models.ColPacketLoss:          "REAL",
	models.ColThroughput:          "REAL",
	models.ColMLScore:             "REAL",
	models.ColStatisticalAnomaly:  "INTEGER",
	models.ColBehavioralAnomaly:   "INTEGER",
	models.ColMLAnomaly:           "INTEGER",
	models.ColLatencyDelta:        "REAL",
	models.ColJitterDelta:         "REAL",
	models.ColHealthScore:         "INTEGER",
	models.ColRootCauseConfidence: "REAL",
	models.ColBreachPrediction:    "INTEGER",
}

// ExportSQLite полностью заменяет таблицу network_metrics в файле SQLite содержимым t
func ExportSQLite(ctx context.Context, t *Table, path string) (err error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(SQLiteTableName)); err != nil {
		return fmt.Errorf("failed to drop table: %w", err)
	}

	defs := make([]string, len(t.header))
	names := make([]string, len(t.header))
	marks := make([]string, len(t.header))
	for i, name := range t.header {
		typ, ok := columnTypes[name]
		if !ok {
			typ = "TEXT"
		}
		names[i] = quoteIdent(name)
		defs[i] = names[i] + " " + typ
		marks[i] = "?"
	}
	if len(defs) == 0 {
		return tx.Commit()
	}

	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(SQLiteTableName), strings.Join(defs, ", "))
	if _, err = tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(SQLiteTableName), strings.Join(names, ", "), strings.Join(marks, ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(t.header))
	for r, row := range t.rows {
		for i, cell := range row {
			if cell == "" {
				args[i] = nil
			} else {
				args[i] = cell
			}
		}
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert line %d: %w", r+2, err)
		}
	}

	return tx.Commit()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
