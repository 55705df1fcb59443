package summary

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netpulse/internal/models"
	"netpulse/internal/table"
)

const rawOnly = `timestamp,device,latency_ms,jitter_ms,packet_loss_pct,throughput_mbps
2025-01-10 10:00:00,AP_1,40,5,0.1,90
2025-01-10 10:05:00,AP_2,250,60,6,10
`

const enriched = `timestamp,device,latency_ms,jitter_ms,packet_loss_pct,throughput_mbps,ml_anomaly,health_score,health_status,root_cause,root_cause_confidence,recommendation,breach_pred
2025-01-10 10:10:00,AP_1,40,5,0.1,90,0,100,Healthy,Normal Operation,0.95,No action required,0
2025-01-10 10:05:00,AP_2,250,60,6,10,1,0,Critical,WAN Congestion,0.85,Shift critical traffic to Broadband,1
2025-01-10 10:00:00,AP_1,120,12,0.5,60,1,70,Degraded,Normal Operation,0.95,No immediate action – observe,0
`

func mustRead(t *testing.T, raw string) *table.Table {
	t.Helper()
	tbl, err := table.Read(strings.NewReader(raw))
	require.NoError(t, err)
	return tbl
}

func TestSummarize_NeutralDefaults(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	kpi, err := Summarize(mustRead(t, rawOnly), now)
	require.NoError(t, err)

	// health_score нет: все строки считаются здоровыми
	assert.Equal(t, models.KPISummary{Total: 2, Healthy: 2, GeneratedAt: now}, kpi)
}

func TestSummarize_Enriched(t *testing.T) {
	kpi, err := Summarize(mustRead(t, enriched), time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 3, kpi.Total)
	assert.Equal(t, 1, kpi.Critical)
	assert.Equal(t, 1, kpi.Degraded)
	assert.Equal(t, 1, kpi.Healthy)
	assert.Equal(t, 1, kpi.PredictedBreach)
	assert.Equal(t, 2, kpi.Anomalies)
}

func TestSummarize_BadFlag(t *testing.T) {
	raw := strings.Replace(enriched, ",Healthy,Normal Operation,0.95,No action required,0", ",Healthy,Normal Operation,0.95,No action required,maybe", 1)
	_, err := Summarize(mustRead(t, raw), time.Time{})
	assert.True(t, errors.Is(err, table.ErrParse), "got %v", err)
}

func TestRecords_Defaults(t *testing.T) {
	records, skipped, err := Records(mustRead(t, rawOnly))
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, records, 2)

	r := records[1]
	assert.Equal(t, "AP_2", r.Device)
	assert.Equal(t, 100, r.HealthScore)
	assert.Equal(t, models.StatusHealthy, r.HealthStatus)
	assert.False(t, r.MLAnomaly)
	assert.Empty(t, r.RootCause)
}

func TestRecords_Enriched(t *testing.T) {
	records, skipped, err := Records(mustRead(t, enriched))
	require.NoError(t, err)
	assert.Empty(t, skipped)

	r := records[1]
	assert.True(t, r.MLAnomaly)
	assert.Equal(t, 0, r.HealthScore)
	assert.Equal(t, models.StatusCritical, r.HealthStatus)
	assert.Equal(t, "WAN Congestion", r.RootCause)
	assert.InDelta(t, 0.85, r.RootCauseConfidence, 1e-9)
	assert.Equal(t, "Shift critical traffic to Broadband", r.Recommendation)
}

func TestRecords_SkipsInvalidRows(t *testing.T) {
	raw := rawOnly +
		"2025-01-10 10:10:00,AP_3,40,5,101,90\n" +
		"yesterday,AP_4,40,5,0,90\n"
	records, skipped, err := Records(mustRead(t, raw))
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, []string{"AP_1", "AP_2"}, Devices(records))
	require.Len(t, skipped, 2)
	assert.Equal(t, 4, skipped[0].Line)
	assert.Contains(t, skipped[0].Reason, "packet_loss_pct")
	assert.Equal(t, 5, skipped[1].Line)
}

func TestRecords_MissingInputColumn(t *testing.T) {
	_, _, err := Records(mustRead(t, "timestamp,device\n2025-01-10 10:00:00,AP_1\n"))
	assert.ErrorIs(t, err, table.ErrSchema)
}

func TestDevicesAndSeries(t *testing.T) {
	records, skipped, err := Records(mustRead(t, enriched))
	require.NoError(t, err)
	assert.Empty(t, skipped)

	assert.Equal(t, []string{"AP_1", "AP_2"}, Devices(records))

	series := Series(records, "AP_1")
	require.Len(t, series, 2)
	assert.True(t, series[0].Timestamp.Before(series[1].Timestamp))
	assert.Equal(t, 70, series[0].HealthScore)

	points := Points(series)
	assert.Equal(t, "2025-01-10T10:00:00Z", points[0].Timestamp)
	assert.True(t, points[0].MLAnomaly)

	assert.Empty(t, Series(records, "AP_9"))
}

func TestCritical(t *testing.T) {
	tbl := mustRead(t, enriched)
	records, skipped, err := Records(tbl)
	require.NoError(t, err)
	assert.Empty(t, skipped)

	critical, err := Critical(tbl, records)
	require.NoError(t, err)
	require.Len(t, critical, 1)
	assert.Equal(t, "AP_2", critical[0].Device)

	raw := mustRead(t, rawOnly)
	rawRecords, _, err := Records(raw)
	require.NoError(t, err)
	_, err = Critical(raw, rawRecords)
	assert.ErrorIs(t, err, ErrNotEnriched)
}
