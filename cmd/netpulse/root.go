package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"netpulse/internal/analytics"
	"netpulse/internal/cache"
	"netpulse/internal/config"
	"netpulse/internal/logging"
	"netpulse/internal/metrics"
	"netpulse/internal/pipeline"
)

type app struct {
	v         *viper.Viper
	cfgFile   string
	cfg       *config.Config
	logger    *zap.Logger
	newLogger func(config.LogConfig) (*zap.Logger, error)
	stdout    io.Writer
	stderr    io.Writer
}

func newApp(out, errOut io.Writer) *app {
	return &app{
		v:         config.New(),
		logger:    zap.NewNop(),
		newLogger: logging.New,
		stdout:    out,
		stderr:    errOut,
	}
}

// execute запускает команду и сбрасывает логгер и после ошибки: PersistentPostRun
// cobra вызывает только при успешном RunE
func (a *app) execute(ctx context.Context, args []string) error {
	cmd := a.rootCommand()
	if args != nil {
		cmd.SetArgs(args)
	}
	err := cmd.ExecuteContext(ctx)
	_ = a.logger.Sync()
	return err
}

func (a *app) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "netpulse",
		Short:         "Network telemetry enrichment pipeline",
		Long:          "netpulse enriches access point telemetry with anomaly flags, health scores, root causes and recommendations.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "path to a YAML config file")
	flags.String("table", "", "path to the telemetry table (CSV)")
	flags.Float64("contamination", analytics.DefaultContamination, "expected outlier fraction in (0, 0.5]")
	flags.Int64("seed", analytics.DefaultSeed, "isolation forest seed")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	for key, flag := range map[string]string{
		"table.path":            "table",
		"anomaly.contamination": "contamination",
		"anomaly.seed":          "seed",
		"log.level":             "log-level",
	} {
		if err := a.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(a.v, a.cfgFile)
		if err != nil {
			return err
		}
		logger, err := a.newLogger(cfg.Log)
		if err != nil {
			return err
		}
		a.cfg, a.logger = cfg, logger
		return nil
	}
	cmd.AddCommand(
		newStageCmd(a, pipeline.StageAnomaly, "Detect statistical and behavioral anomalies"),
		newStageCmd(a, pipeline.StageHealth, "Compute health score and status"),
		newStageCmd(a, pipeline.StageRootCause, "Infer the most likely root cause"),
		newStageCmd(a, pipeline.StageRecommend, "Select a mitigation recommendation"),
		newStageCmd(a, pipeline.StagePrompts, "Compose incident summaries for a language model"),
		newRunCmd(a),
		newSummaryCmd(a),
		newAlertsCmd(a),
		newExportCmd(a),
		newServeCmd(a),
	)
	return cmd
}

// runStages выполняет этапы над таблицей из конфигурации и печатает итог
func (a *app) runStages(ctx context.Context, stages ...pipeline.Stage) error {
	detector, err := analytics.NewDetector(a.cfg.Anomaly)
	if err != nil {
		return err
	}

	var opts []pipeline.Option
	if a.cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(ctx, a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB, a.cfg.Redis.LockTTL)
		if err != nil {
			// Без Redis таблица не защищена от одновременной дозаписи сборщиком
			return err
		}
		defer rc.Close()
		opts = append(opts, pipeline.WithLocker(rc))
		if a.cfg.Redis.Publish {
			opts = append(opts, pipeline.WithPublisher(rc))
		}
	}

	runner := pipeline.NewRunner(detector, a.logger, opts...)
	report, err := runner.Run(ctx, a.cfg.Table.Path, stages...)
	a.push()
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Enriched %d rows in %s (stages: %v)\n", report.Rows, a.cfg.Table.Path, report.Stages)
	if report.Anomalies > 0 || report.Statistical > 0 || report.Behavioral > 0 {
		fmt.Fprintf(a.stdout, "Anomalies: %d (statistical %d, behavioral %d)\n",
			report.Anomalies, report.Statistical, report.Behavioral)
	}
	return nil
}

// push отправляет метрики прогона, если задан Pushgateway
func (a *app) push() {
	if a.cfg.Metrics.Pushgateway == "" {
		return
	}
	if err := metrics.Push(a.cfg.Metrics.Pushgateway, a.cfg.Metrics.Job); err != nil {
		a.logger.Warn("Failed to push metrics", zap.Error(err))
	}
}

func newStageCmd(a *app, stage pipeline.Stage, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(stage),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runStages(cmd.Context(), stage)
		},
	}
}

func newRunCmd(a *app) *cobra.Command {
	var withPrompts bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run all enrichment stages in one read/write cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stages := append([]pipeline.Stage(nil), pipeline.CoreStages...)
			if withPrompts {
				stages = append(stages, pipeline.StagePrompts)
			}
			return a.runStages(cmd.Context(), stages...)
		},
	}
	cmd.Flags().BoolVar(&withPrompts, "prompts", false, "also write llm_prompt")
	return cmd
}
