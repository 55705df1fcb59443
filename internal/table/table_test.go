package table

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netpulse/internal/models"
)

const sample = `timestamp,device,latency_ms,jitter_ms,packet_loss_pct,throughput_mbps
2025-01-10 10:00:00.123456,AP_1,50,5,0.5,80
2025-01-10 10:00:00.123456,AP_2,250,60,9.5,15
`

func TestRead_Basic(t *testing.T) {
	tbl, err := Read(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, models.InputColumns, tbl.Header())

	cell, ok := tbl.Cell(1, models.ColDevice)
	require.True(t, ok)
	assert.Equal(t, "AP_2", cell)
}

func TestRead_PadsShortRows(t *testing.T) {
	in := sample[:strings.Index(sample, "\n")] + ",ml_anomaly\n" +
		"2025-01-10 10:00:00,AP_1,50,5,0.5,80,1\n" +
		"2025-01-10 10:05:00,AP_1,60,5,0.5,80\n"

	tbl, err := Read(strings.NewReader(in))
	require.NoError(t, err)

	flags, present, err := tbl.Bools(models.ColMLAnomaly, false)
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, []bool{true, false}, flags)
}

func TestRead_RejectsLongRows(t *testing.T) {
	in := "a,b\n1,2,3\n"
	_, err := Read(strings.NewReader(in))
	assert.True(t, errors.Is(err, ErrParse))
}

func TestRead_Empty(t *testing.T) {
	tbl, err := Read(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Len())
	assert.Empty(t, tbl.Header())
}

func TestSnapshots_MissingFeatureColumn(t *testing.T) {
	in := "timestamp,device,latency_ms,jitter_ms,packet_loss_pct\n2025-01-10 10:00:00,AP_1,1,2,3\n"
	tbl, err := Read(strings.NewReader(in))
	require.NoError(t, err)

	_, err = tbl.Snapshots()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema))
	assert.Contains(t, err.Error(), models.ColThroughput)
}

func TestSnapshots_RejectsNonFinite(t *testing.T) {
	in := "timestamp,device,latency_ms,jitter_ms,packet_loss_pct,throughput_mbps\n" +
		"2025-01-10 10:00:00,AP_1,NaN,2,3,4\n"
	tbl, err := Read(strings.NewReader(in))
	require.NoError(t, err)

	_, err = tbl.Snapshots()
	assert.True(t, errors.Is(err, ErrInvalidRow))
}

func TestSnapshot_SingleRow(t *testing.T) {
	in := "timestamp,device,latency_ms,jitter_ms,packet_loss_pct,throughput_mbps\n" +
		"2025-01-10 10:00:00,AP_1,50,5,0,80\n" +
		"2025-01-10 10:05:00,AP_2,50,5,101,80\n"
	tbl, err := Read(strings.NewReader(in))
	require.NoError(t, err)

	s, err := tbl.Snapshot(0)
	require.NoError(t, err)
	assert.Equal(t, "AP_1", s.Device)

	_, err = tbl.Snapshot(1)
	assert.ErrorIs(t, err, ErrInvalidRow)
	assert.Contains(t, err.Error(), "line 3")

	_, err = tbl.Snapshot(2)
	assert.Error(t, err)
}

func TestBlank(t *testing.T) {
	in := "timestamp,device,latency_ms,jitter_ms,packet_loss_pct,throughput_mbps,health_score\n" +
		"2025-01-10 10:00:00,AP_1,50,5,0,80,100\n" +
		"2025-01-10 10:05:00,AP_1,50,5,0,80\n" +
		"2025-01-10 10:10:00,AP_1,50,5,0,80,NaN\n"
	tbl, err := Read(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, tbl.Blank(models.ColHealthScore))
	assert.Nil(t, tbl.Blank(models.ColMLAnomaly))
	assert.Empty(t, tbl.Blank(models.ColDevice))
}

func TestParseFloat(t *testing.T) {
	v, err := ParseFloat(" 85.5 ", 0)
	require.NoError(t, err)
	assert.Equal(t, 85.5, v)

	v, err = ParseFloat("", 100)
	require.NoError(t, err)
	assert.Equal(t, 100.0, v)

	v, err = ParseFloat("nan", 7)
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)

	_, err = ParseFloat("high", 0)
	assert.Error(t, err)
}

func TestSnapshots_RejectsBadNumber(t *testing.T) {
	in := "timestamp,device,latency_ms,jitter_ms,packet_loss_pct,throughput_mbps\n" +
		"2025-01-10 10:00:00,AP_1,fast,2,3,4\n"
	tbl, err := Read(strings.NewReader(in))
	require.NoError(t, err)

	_, err = tbl.Snapshots()
	assert.True(t, errors.Is(err, ErrParse))
}

func TestSnapshots_Decodes(t *testing.T) {
	tbl, err := Read(strings.NewReader(sample))
	require.NoError(t, err)

	snaps, err := tbl.Snapshots()
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	assert.Equal(t, "AP_2", snaps[1].Device)
	assert.Equal(t, 250.0, snaps[1].LatencyMs)
	assert.Equal(t, 9.5, snaps[1].PacketLossPct)
	assert.Equal(t, 123456000, snaps[0].Timestamp.Nanosecond())
}

func TestParseTimestamp_Layouts(t *testing.T) {
	for _, s := range []string{
		"2025-01-10T10:00:00Z",
		"2025-01-10T10:00:00.5+02:00",
		"2025-01-10 10:00:00",
		"2025-01-10 10:00:00.123456",
		"2025-01-10T10:00:00",
	} {
		_, err := ParseTimestamp(s)
		assert.NoError(t, err, s)
	}

	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		in   string
		want bool
		err  bool
	}{
		{"1", true, false},
		{"0", false, false},
		{"True", true, false},
		{"false", false, false},
		{"1.0", true, false},
		{"0.0", false, false},
		{"", false, false},
		{"yes", false, true},
	}
	for _, tt := range tests {
		got, err := ParseBool(tt.in, false)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestInts_DefaultsAndFloats(t *testing.T) {
	in := "health_score\n85.0\n\n42\n"
	tbl, err := Read(strings.NewReader(in))
	require.NoError(t, err)

	vals, present, err := tbl.Ints(models.ColHealthScore, 100)
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, []int{85, 100, 42}, vals)

	vals, present, err = tbl.Ints("absent", 7)
	require.NoError(t, err)
	assert.False(t, present)
	assert.Equal(t, []int{7, 7, 7}, vals)
}

func TestApply_AllOrNothing(t *testing.T) {
	tbl, err := Read(strings.NewReader(sample))
	require.NoError(t, err)

	err = tbl.Apply(
		Column{Name: "a", Values: []string{"1", "2"}},
		Column{Name: "b", Values: []string{"1"}},
	)
	require.Error(t, err)
	assert.False(t, tbl.Has("a"), "no column must be written when one is invalid")

	require.NoError(t, tbl.Apply(Column{Name: models.ColDevice, Values: []string{"X", "Y"}}))
	cell, _ := tbl.Cell(0, models.ColDevice)
	assert.Equal(t, "X", cell)
	assert.Len(t, tbl.Header(), len(models.InputColumns))
}

func TestWriteFile_RoundTrip(t *testing.T) {
	tbl, err := Read(strings.NewReader(sample))
	require.NoError(t, err)
	require.NoError(t, tbl.Apply(Column{Name: models.ColHealthScore, Values: []string{"100", "0"}}))

	path := filepath.Join(t.TempDir(), "data", "network_metrics.csv")
	require.NoError(t, tbl.WriteFile(path))

	again, err := ReadFile(path)
	require.NoError(t, err)

	var a, b bytes.Buffer
	require.NoError(t, tbl.Write(&a))
	require.NoError(t, again.Write(&b))
	assert.Equal(t, a.String(), b.String())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")
}

func TestExportSQLite(t *testing.T) {
	tbl, err := Read(strings.NewReader(sample))
	require.NoError(t, err)
	require.NoError(t, tbl.Apply(Column{Name: models.ColHealthScore, Values: []string{"100", "0"}}))

	path := filepath.Join(t.TempDir(), "metrics.db")
	ctx := context.Background()
	require.NoError(t, ExportSQLite(ctx, tbl, path))
	// Повторный экспорт заменяет таблицу, а не дописывает
	require.NoError(t, ExportSQLite(ctx, tbl, path))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var count, critical int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM network_metrics`).Scan(&count))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM network_metrics WHERE health_score < 60`).Scan(&critical))
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, critical)
}
