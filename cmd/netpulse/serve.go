package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"netpulse/internal/cache"
	"netpulse/internal/handlers"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the enriched table over a read-only HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	store := handlers.NewStore(a.cfg.Table.Path, a.logger)
	if err := store.Watch(ctx); err != nil {
		// Без наблюдателя кэш не сбрасывается, поэтому отключаем его целиком
		a.logger.Warn("Table watcher disabled, serving without cache", zap.Error(err))
		store = handlers.NewUncachedStore(a.cfg.Table.Path, a.logger)
	}

	var latest handlers.LatestSource
	if a.cfg.Redis.Addr != "" {
		rc, err := connectRedis(ctx, a)
		if err != nil {
			a.logger.Warn("Running without Redis", zap.Error(err))
		} else {
			defer rc.Close()
			latest = rc
		}
	}

	router := handlers.NewRouter(handlers.NewHandler(store, latest, a.logger))

	// Создаем HTTP сервер с настройками таймаутов
	server := &http.Server{
		Addr:         a.cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Server listening",
			zap.String("addr", a.cfg.Server.Addr),
			zap.String("table", a.cfg.Table.Path),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.logger.Info("Server stopped")
	return nil
}

// connectRedis подключается к Redis с повторами
func connectRedis(ctx context.Context, a *app) (*cache.RedisCache, error) {
	var (
		rc  *cache.RedisCache
		err error
	)
	for i := 0; i < 5; i++ {
		rc, err = cache.NewRedisCache(ctx, a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB, a.cfg.Redis.LockTTL)
		if err == nil {
			a.logger.Info("Connected to Redis", zap.String("addr", a.cfg.Redis.Addr))
			return rc, nil
		}
		a.logger.Warn("Redis connection attempt failed", zap.Int("attempt", i+1), zap.Error(err))
		if i < 4 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i+1) * time.Second):
			}
		}
	}
	return nil, err
}
