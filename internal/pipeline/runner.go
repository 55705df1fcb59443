package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"netpulse/internal/analytics"
	"netpulse/internal/metrics"
	"netpulse/internal/models"
	"netpulse/internal/summary"
	"netpulse/internal/table"
)

// ErrLocked таблица заблокирована другим прогоном или сборщиком
var ErrLocked = errors.New("table is locked")

// Locker сериализует дозапись сборщика и прогоны обогащения над одной таблицей.
// Блокировка живет LockTTL; пока идет прогон, Runner продлевает ее через Extend
type Locker interface {
	Acquire(ctx context.Context, table, token string) error
	Extend(ctx context.Context, table, token string) error
	Release(ctx context.Context, table, token string) error
	LockTTL() time.Duration
}

// Publisher получает обогащенные записи после успешной записи таблицы
type Publisher interface {
	PublishLatest(ctx context.Context, records []models.EnrichedRecord, kpi models.KPISummary) error
}

// Runner выполняет цикл чтение - вычисление - запись
type Runner struct {
	detector  *analytics.Detector
	logger    *zap.Logger
	locker    Locker
	publisher Publisher
	now       func() time.Time
}

// Option настраивает Runner
type Option func(*Runner)

// WithLocker включает блокировку таблицы на время прогона
func WithLocker(l Locker) Option {
	return func(r *Runner) { r.locker = l }
}

// WithPublisher включает публикацию результатов
func WithPublisher(p Publisher) Option {
	return func(r *Runner) { r.publisher = p }
}

// WithClock подменяет часы
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner создает исполнителя конвейера
func NewRunner(detector *analytics.Detector, logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		detector: detector,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run читает таблицу по path, выполняет этапы в порядке зависимостей и записывает
// таблицу один раз. При любой ошибке файл на диске остается прежним
func (r *Runner) Run(ctx context.Context, path string, stages ...Stage) (report Report, err error) {
	start := r.now()
	runID := uuid.NewString()
	logger := r.logger.With(zap.String("run_id", runID), zap.String("table", path))

	defer func() {
		result := "success"
		switch {
		case errors.Is(err, ErrLocked):
			result = "locked"
		case err != nil:
			result = "failure"
		}
		metrics.RunsTotal.WithLabelValues(result).Inc()
	}()

	if r.locker != nil {
		key := lockName(path)
		if err := r.locker.Acquire(ctx, key, runID); err != nil {
			return Report{RunID: runID}, fmt.Errorf("%w: %v", ErrLocked, err)
		}
		lockCtx, cancelLock := context.WithCancelCause(ctx)
		stopRenewal := r.keepLock(lockCtx, cancelLock, key, runID, logger)
		ctx = lockCtx
		defer func() {
			stopRenewal()
			cancelLock(nil)
			// Контекст прогона может быть уже отменен, блокировку все равно снимаем
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.locker.Release(releaseCtx, key, runID); err != nil {
				logger.Warn("Failed to release table lock", zap.Error(err))
			}
		}()
	}

	tbl, err := table.ReadFile(path)
	if err != nil {
		return Report{RunID: runID}, err
	}

	report, err = Enrich(tbl, r.detector, logger, stages...)
	report.RunID = runID
	if err != nil {
		logger.Error("Pipeline failed", zap.Error(err))
		return report, err
	}

	if len(tbl.Header()) > 0 {
		if ctx.Err() != nil {
			return report, context.Cause(ctx)
		}
		if err := tbl.WriteFile(path); err != nil {
			return report, fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	report.Duration = r.now().Sub(start)
	logger.Info("Pipeline finished",
		zap.Int("rows", report.Rows),
		zap.Any("stages", report.Stages),
		zap.Int("anomalies", report.Anomalies),
		zap.Strings("defaulted", report.Defaulted),
		zap.Duration("duration", report.Duration),
	)

	if r.publisher != nil && len(tbl.Header()) > 0 {
		r.publish(ctx, tbl, logger)
	}
	return report, nil
}

// keepLock продлевает блокировку каждую треть LockTTL до вызова stop. Если
// продлить не удалось, ctx отменяется с причиной ErrLocked и таблица не пишется
func (r *Runner) keepLock(ctx context.Context, cancel context.CancelCauseFunc, key, token string, logger *zap.Logger) (stop func()) {
	interval := r.locker.LockTTL() / 3
	if interval <= 0 {
		interval = time.Second
	}

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.locker.Extend(ctx, key, token); err != nil {
					logger.Error("Table lock lost", zap.Error(err))
					cancel(fmt.Errorf("%w: lock lost: %v", ErrLocked, err))
					return
				}
				logger.Debug("Table lock extended")
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

// publish ошибки публикации не отменяют уже записанный прогон
func (r *Runner) publish(ctx context.Context, tbl *table.Table, logger *zap.Logger) {
	records, _, err := summary.Records(tbl)
	if err != nil {
		logger.Warn("Failed to decode records for publishing", zap.Error(err))
		return
	}
	kpi, err := summary.Summarize(tbl, r.now())
	if err != nil {
		logger.Warn("Failed to summarize table for publishing", zap.Error(err))
		return
	}
	if err := r.publisher.PublishLatest(ctx, records, kpi); err != nil {
		logger.Warn("Failed to publish records", zap.Error(err))
		return
	}
	logger.Debug("Published latest records", zap.Int("records", len(records)))
}

// lockName абсолютный путь, чтобы сборщик и конвейер делили одну блокировку
func lockName(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
