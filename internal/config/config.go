// Package config загружает конфигурацию: значения по умолчанию, YAML файл,
// переменные окружения NETPULSE_* и флаги командной строки
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"netpulse/internal/analytics"
)

// EnvPrefix префикс переменных окружения
const EnvPrefix = "NETPULSE"

// Config содержит конфигурацию сервиса
type Config struct {
	Table   TableConfig
	Anomaly analytics.Config
	Log     LogConfig
	Redis   RedisConfig
	Metrics MetricsConfig
	Server  ServerConfig
	Export  ExportConfig
}

// TableConfig путь к таблице телеметрии
type TableConfig struct {
	Path string
}

// LogConfig параметры логирования
type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// RedisConfig параметры Redis; пустой Addr отключает Redis
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
	Publish  bool
}

// MetricsConfig параметры Pushgateway; пустой адрес отключает отправку
type MetricsConfig struct {
	Pushgateway string
	Job         string
}

// ServerConfig параметры HTTP сервера
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// ExportConfig параметры выгрузки в SQLite
type ExportConfig struct {
	SQLitePath string
}

// SetDefaults регистрирует значения по умолчанию
func SetDefaults(v *viper.Viper) {
	v.SetDefault("table.path", "data/network_metrics.csv")

	v.SetDefault("anomaly.contamination", analytics.DefaultContamination)
	v.SetDefault("anomaly.seed", analytics.DefaultSeed)
	v.SetDefault("anomaly.trees", analytics.DefaultTrees)
	v.SetDefault("anomaly.sample_size", analytics.DefaultSampleSize)
	v.SetDefault("anomaly.latency_delta_ms", analytics.DefaultLatencyDeltaMs)
	v.SetDefault("anomaly.jitter_delta_ms", analytics.DefaultJitterDeltaMs)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", 30*time.Second)
	v.SetDefault("redis.publish", true)

	v.SetDefault("metrics.pushgateway", "")
	v.SetDefault("metrics.job", "netpulse")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("export.sqlite_path", "data/network_metrics.db")
}

// New создает viper с префиксом окружения и значениями по умолчанию
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load читает файл конфигурации (если задан) и собирает Config
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	cfg := &Config{
		Table: TableConfig{Path: v.GetString("table.path")},
		Anomaly: analytics.Config{
			Contamination:  v.GetFloat64("anomaly.contamination"),
			Seed:           v.GetInt64("anomaly.seed"),
			Trees:          v.GetInt("anomaly.trees"),
			SampleSize:     v.GetInt("anomaly.sample_size"),
			LatencyDeltaMs: v.GetFloat64("anomaly.latency_delta_ms"),
			JitterDeltaMs:  v.GetFloat64("anomaly.jitter_delta_ms"),
		},
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
			Compress:   v.GetBool("log.compress"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			LockTTL:  v.GetDuration("redis.lock_ttl"),
			Publish:  v.GetBool("redis.publish"),
		},
		Metrics: MetricsConfig{
			Pushgateway: v.GetString("metrics.pushgateway"),
			Job:         v.GetString("metrics.job"),
		},
		Server: ServerConfig{
			Addr:         v.GetString("server.addr"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
			IdleTimeout:  v.GetDuration("server.idle_timeout"),
		},
		Export: ExportConfig{SQLitePath: v.GetString("export.sqlite_path")},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет конфигурацию и собирает все ошибки сразу
func (c *Config) Validate() error {
	var errs []string
	if c.Table.Path == "" {
		errs = append(errs, "table.path must not be empty")
	}
	if err := c.Anomaly.Validate(); err != nil {
		errs = append(errs, "anomaly: "+err.Error())
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be json or console, got %q", c.Log.Format))
	}
	if c.Redis.LockTTL <= 0 {
		errs = append(errs, "redis.lock_ttl must be positive")
	}
	if c.Metrics.Pushgateway != "" && c.Metrics.Job == "" {
		errs = append(errs, "metrics.job must be set when metrics.pushgateway is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
