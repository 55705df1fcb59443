package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netpulse/internal/analytics"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "data/network_metrics.csv", cfg.Table.Path)
	assert.Equal(t, analytics.DefaultConfig(), cfg.Anomaly)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, 30*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "netpulse", cfg.Metrics.Job)
	assert.Equal(t, "data/network_metrics.db", cfg.Export.SQLitePath)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NETPULSE_ANOMALY_CONTAMINATION", "0.1")
	t.Setenv("NETPULSE_TABLE_PATH", "/tmp/metrics.csv")
	t.Setenv("NETPULSE_REDIS_LOCK_TTL", "5s")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.InDelta(t, 0.1, cfg.Anomaly.Contamination, 1e-12)
	assert.Equal(t, "/tmp/metrics.csv", cfg.Table.Path)
	assert.Equal(t, 5*time.Second, cfg.Redis.LockTTL)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netpulse.yaml")
	content := "anomaly:\n  seed: 7\n  trees: 50\nlog:\n  format: json\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.Anomaly.Seed)
	assert.Equal(t, 50, cfg.Anomaly.Trees)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(New(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, analytics.DefaultContamination, cfg.Anomaly.Contamination)
}

func TestLoad_Invalid(t *testing.T) {
	v := New()
	v.Set("anomaly.contamination", 0.9)
	v.Set("log.format", "xml")

	_, err := Load(v, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contamination")
	assert.Contains(t, err.Error(), "log.format")
}
