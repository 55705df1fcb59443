package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"netpulse/internal/models"
)

// timestampLayouts форматы меток времени, которые встречаются у сборщиков
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
}

// ParseTimestamp разбирает метку времени в одном из известных форматов
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Snapshots декодирует входные колонки в снимки. Отсутствие любой входной колонки
// это ErrSchema: значения признаков не подставляются
func (t *Table) Snapshots() ([]models.MetricSnapshot, error) {
	if err := t.CheckSchema(); err != nil {
		return nil, err
	}
	snaps := make([]models.MetricSnapshot, len(t.rows))
	for r := range t.rows {
		s, err := t.Snapshot(r)
		if err != nil {
			return nil, err
		}
		snaps[r] = s
	}
	return snaps, nil
}

// Snapshot декодирует одну строку (с нуля). Ошибка несет номер строки файла
// и оборачивает ErrSchema, ErrParse или ErrInvalidRow
func (t *Table) Snapshot(r int) (models.MetricSnapshot, error) {
	if err := t.CheckSchema(); err != nil {
		return models.MetricSnapshot{}, err
	}
	if r < 0 || r >= len(t.rows) {
		return models.MetricSnapshot{}, fmt.Errorf("row %d out of range", r)
	}

	idx := func(name string) int { return t.index[name] }
	row, line := t.rows[r], r+2
	timestamp, err := ParseTimestamp(row[idx(models.ColTimestamp)])
	if err != nil {
		return models.MetricSnapshot{}, fmt.Errorf("%w: line %d: %v", ErrParse, line, err)
	}
	s := models.MetricSnapshot{Timestamp: timestamp, Device: row[idx(models.ColDevice)]}
	if s.Device == "" {
		return models.MetricSnapshot{}, fmt.Errorf("%w: line %d: empty %s", ErrParse, line, models.ColDevice)
	}
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{models.ColLatency, &s.LatencyMs},
		{models.ColJitter, &s.JitterMs},
		{models.ColPacketLoss, &s.PacketLossPct},
		{models.ColThroughput, &s.ThroughputMbps},
	} {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[idx(f.name)]), 64)
		if err != nil {
			return models.MetricSnapshot{}, fmt.Errorf("%w: line %d column %s: %v", ErrParse, line, f.name, err)
		}
		*f.dst = v
	}
	if err := s.Validate(); err != nil {
		return models.MetricSnapshot{}, fmt.Errorf("%w: line %d: %v", ErrInvalidRow, line, err)
	}
	return s, nil
}

// CheckSchema проверяет наличие всех входных колонок
func (t *Table) CheckSchema() error {
	if missing := t.Missing(models.InputColumns...); len(missing) > 0 {
		return fmt.Errorf("%w: missing required columns %s", ErrSchema, strings.Join(missing, ", "))
	}
	return nil
}

// Blank номера строк (с нуля), где ячейка колонки пуста или содержит NaN. Такие
// ячейки декодеры колонок заменяют значением по умолчанию. Для отсутствующей
// колонки возвращает nil
func (t *Table) Blank(name string) []int {
	col, ok := t.Column(name)
	if !ok {
		return nil
	}
	var rows []int
	for r, cell := range col {
		cell = strings.TrimSpace(cell)
		if cell == "" || strings.EqualFold(cell, "nan") {
			rows = append(rows, r)
		}
	}
	return rows
}

// Bools читает булеву колонку. Пустые ячейки и отсутствующая колонка дают def;
// present сообщает, была ли колонка в таблице
func (t *Table) Bools(name string, def bool) (values []bool, present bool, err error) {
	values = make([]bool, len(t.rows))
	col, ok := t.Column(name)
	if !ok {
		for r := range values {
			values[r] = def
		}
		return values, false, nil
	}
	for r, cell := range col {
		v, err := ParseBool(cell, def)
		if err != nil {
			return nil, true, fmt.Errorf("%w: line %d column %s: %v", ErrParse, r+2, name, err)
		}
		values[r] = v
	}
	return values, true, nil
}

// Ints читает целочисленную колонку; дробная запись вида "85.0" допускается
func (t *Table) Ints(name string, def int) (values []int, present bool, err error) {
	floats, present, err := t.Floats(name, float64(def))
	if err != nil {
		return nil, present, err
	}
	values = make([]int, len(floats))
	for r, f := range floats {
		values[r] = int(f)
	}
	return values, present, nil
}

// Floats читает вещественную колонку
func (t *Table) Floats(name string, def float64) (values []float64, present bool, err error) {
	values = make([]float64, len(t.rows))
	col, ok := t.Column(name)
	if !ok {
		for r := range values {
			values[r] = def
		}
		return values, false, nil
	}
	for r, cell := range col {
		v, err := ParseFloat(cell, def)
		if err != nil {
			return nil, true, fmt.Errorf("%w: line %d column %s: %v", ErrParse, r+2, name, err)
		}
		values[r] = v
	}
	return values, true, nil
}

// ParseFloat разбирает число; пустая ячейка и NaN дают def
func ParseFloat(cell string, def float64) (float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) {
		return def, nil
	}
	return v, nil
}

// ParseBool разбирает флаг в форматах 1/0, true/false и 1.0/0.0
func ParseBool(cell string, def bool) (bool, error) {
	cell = strings.TrimSpace(cell)
	switch strings.ToLower(cell) {
	case "":
		return def, nil
	case "1", "true":
		return true, nil
	case "0", "false":
		return false, nil
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return false, fmt.Errorf("invalid flag %q", cell)
	}
	if math.IsNaN(f) {
		return def, nil
	}
	return f == 1, nil
}

// FormatBool пишет флаг как 1/0
func FormatBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// FormatFloat пишет число в кратчайшей точной записи
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
