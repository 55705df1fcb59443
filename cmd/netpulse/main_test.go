package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"netpulse/internal/config"
	"netpulse/internal/models"
	"netpulse/internal/table"
)

const telemetry = `timestamp,device,latency_ms,jitter_ms,packet_loss_pct,throughput_mbps
2025-01-10 10:00:00,AP_1,42,5,0.1,85
2025-01-10 10:05:00,AP_1,44,6,0.1,84
2025-01-10 10:00:00,AP_2,41,4,0,86
2025-01-10 10:05:00,AP_2,250,60,9.5,15
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := newApp(&out, &errOut).execute(context.Background(), append(args, "--log-level", "error"))
	return out.String(), err
}

// syncRecorder буфер логов, который запоминает вызов Sync
type syncRecorder struct {
	bytes.Buffer
	synced bool
}

func (s *syncRecorder) Sync() error {
	s.synced = true
	return nil
}

func tablePath(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "network_metrics.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunCommand(t *testing.T) {
	path := tablePath(t, telemetry)

	out, err := execute(t, "run", "--table", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Enriched 4 rows")

	tbl, err := table.ReadFile(path)
	require.NoError(t, err)
	status, _ := tbl.Cell(3, models.ColHealthStatus)
	assert.Equal(t, "Critical", status)
	assert.False(t, tbl.Has(models.ColPrompt))
}

func TestStageCommandsInSequence(t *testing.T) {
	path := tablePath(t, telemetry)
	for _, stage := range []string{"anomaly", "health", "rootcause", "recommend", "prompts"} {
		_, err := execute(t, stage, "--table", path)
		require.NoError(t, err, stage)
	}

	tbl, err := table.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, tbl.Missing(models.ColMLAnomaly, models.ColHealthScore, models.ColRootCause,
		models.ColRecommendation, models.ColPrompt))

	// Отдельные этапы дают тот же результат, что и общий прогон
	combined := tablePath(t, telemetry)
	_, err = execute(t, "run", "--prompts", "--table", combined)
	require.NoError(t, err)
	a, _ := os.ReadFile(path)
	b, _ := os.ReadFile(combined)
	assert.Equal(t, string(b), string(a))
}

func TestSchemaFailureIsError(t *testing.T) {
	path := tablePath(t, "timestamp,device,latency_ms\n2025-01-10 10:00:00,AP_1,42\n")

	_, err := execute(t, "anomaly", "--table", path)
	assert.True(t, errors.Is(err, table.ErrSchema), "got %v", err)
}

func TestFailedCommandSyncsLogger(t *testing.T) {
	path := tablePath(t, "timestamp,device,latency_ms\n2025-01-10 10:00:00,AP_1,42\n")

	sink := &syncRecorder{}
	var out bytes.Buffer
	a := newApp(&out, &out)
	a.newLogger = func(config.LogConfig) (*zap.Logger, error) {
		enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		return zap.New(zapcore.NewCore(enc, sink, zapcore.InfoLevel)), nil
	}

	err := a.execute(context.Background(), []string{"anomaly", "--table", path})
	require.ErrorIs(t, err, table.ErrSchema)
	assert.True(t, sink.synced)
	assert.Contains(t, sink.String(), "Pipeline failed")
}

func TestSummaryCommand(t *testing.T) {
	path := tablePath(t, telemetry)

	// До обогащения все строки считаются здоровыми
	out, err := execute(t, "summary", "--json", "--table", path)
	require.NoError(t, err)
	var kpi models.KPISummary
	require.NoError(t, json.Unmarshal([]byte(out), &kpi))
	assert.Equal(t, 4, kpi.Healthy)

	_, err = execute(t, "run", "--table", path)
	require.NoError(t, err)
	out, err = execute(t, "summary", "--table", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Total records:")
	assert.Contains(t, out, "Predicted SLA breach:")
}

func TestAlertsCommand(t *testing.T) {
	path := tablePath(t, telemetry)

	_, err := execute(t, "alerts", "--table", path)
	assert.Error(t, err)

	_, err = execute(t, "run", "--table", path)
	require.NoError(t, err)
	out, err := execute(t, "alerts", "--table", path)
	require.NoError(t, err)
	assert.Contains(t, out, "AP_2")
	assert.Contains(t, out, "Shift critical traffic to Broadband")

	quiet := tablePath(t, strings.Join(strings.Split(telemetry, "\n")[:4], "\n")+"\n")
	_, err = execute(t, "run", "--table", quiet)
	require.NoError(t, err)
	out, err = execute(t, "alerts", "--table", quiet)
	require.NoError(t, err)
	assert.Contains(t, out, "No critical anomalies detected.")
}

func TestExportCommand(t *testing.T) {
	path := tablePath(t, telemetry)
	db := filepath.Join(t.TempDir(), "metrics.db")

	_, err := execute(t, "run", "--table", path)
	require.NoError(t, err)
	out, err := execute(t, "export", "--table", path, "--out", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 4 rows")

	_, err = os.Stat(db)
	assert.NoError(t, err)
}

func TestInvalidContamination(t *testing.T) {
	path := tablePath(t, telemetry)
	_, err := execute(t, "anomaly", "--table", path, "--contamination", "0.9")
	assert.Error(t, err)
}
