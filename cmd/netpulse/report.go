package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"netpulse/internal/handlers"
	"netpulse/internal/summary"
	"netpulse/internal/table"
)

// readTable читает таблицу; отсутствующий файл считается пустой таблицей
func (a *app) readTable() (*table.Table, error) {
	tbl, err := table.ReadFile(a.cfg.Table.Path)
	if errors.Is(err, os.ErrNotExist) {
		a.logger.Warn("Table not found, treating as empty", zap.String("table", a.cfg.Table.Path))
		return table.New(nil), nil
	}
	return tbl, err
}

func newSummaryCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print critical/degraded/healthy and predicted breach counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tbl, err := a.readTable()
			if err != nil {
				return err
			}
			kpi, err := summary.Summarize(tbl, time.Now().UTC())
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(kpi)
			}

			w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Total records:\t%d\n", kpi.Total)
			fmt.Fprintf(w, "Critical:\t%d\n", kpi.Critical)
			fmt.Fprintf(w, "Degraded:\t%d\n", kpi.Degraded)
			fmt.Fprintf(w, "Healthy:\t%d\n", kpi.Healthy)
			fmt.Fprintf(w, "Predicted SLA breach:\t%d\n", kpi.PredictedBreach)
			fmt.Fprintf(w, "Anomalies:\t%d\n", kpi.Anomalies)
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newAlertsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "alerts",
		Short: "List rows with Critical health status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tbl, err := a.readTable()
			if err != nil {
				return err
			}
			if len(tbl.Header()) == 0 {
				fmt.Fprintln(a.stdout, handlers.NoCriticalMessage)
				return nil
			}
			records, skipped, err := summary.Records(tbl)
			if err != nil {
				return err
			}
			for _, sk := range skipped {
				a.logger.Warn("Row skipped", zap.Int("line", sk.Line), zap.String("reason", sk.Reason))
			}
			critical, err := summary.Critical(tbl, records)
			if err != nil {
				return fmt.Errorf("%w: run the health stage first", err)
			}
			if len(critical) == 0 {
				fmt.Fprintln(a.stdout, handlers.NoCriticalMessage)
				return nil
			}

			w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIMESTAMP\tDEVICE\tSCORE\tROOT CAUSE\tCONFIDENCE\tRECOMMENDATION")
			for _, r := range critical {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%.2f\t%s\n",
					r.Timestamp.Format("2006-01-02 15:04:05"), r.Device, r.HealthScore,
					r.RootCause, r.RootCauseConfidence, r.Recommendation)
			}
			return w.Flush()
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Mirror the table into a SQLite database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out == "" {
				out = a.cfg.Export.SQLitePath
			}
			tbl, err := table.ReadFile(a.cfg.Table.Path)
			if err != nil {
				return err
			}
			if err := table.ExportSQLite(cmd.Context(), tbl, out); err != nil {
				return err
			}
			a.logger.Info("Table exported",
				zap.String("sqlite", out),
				zap.Int("rows", tbl.Len()),
			)
			fmt.Fprintf(a.stdout, "Exported %d rows to %s (table %s)\n", tbl.Len(), out, table.SQLiteTableName)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "SQLite database path (default export.sqlite_path)")
	return cmd
}
