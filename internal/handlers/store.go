package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"netpulse/internal/metrics"
	"netpulse/internal/models"
	"netpulse/internal/summary"
	"netpulse/internal/table"
)

// Snapshot разобранная таблица, общая для всех запросов до следующего изменения файла.
// Skipped строки, которые не удалось декодировать; в Records их нет
type Snapshot struct {
	Table   *table.Table
	Records []models.EnrichedRecord
	Skipped []summary.Skipped
}

// Store держит последнюю прочитанную таблицу; сборщик и конвейер заменяют файл
// целиком, поэтому кэш сбрасывается по событиям файловой системы
type Store struct {
	path   string
	logger *zap.Logger
	cached bool

	mu       sync.RWMutex
	snapshot *Snapshot
}

// NewStore создает хранилище для таблицы по path
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger, cached: true}
}

// NewUncachedStore читает файл на каждый запрос; используется, когда наблюдатель
// за файлом недоступен
func NewUncachedStore(path string, logger *zap.Logger) *Store {
	s := NewStore(path, logger)
	s.cached = false
	return s
}

// Load возвращает закэшированную таблицу или читает файл. Отсутствующий файл
// считается пустой таблицей: панель показывает нули, а не ошибку
func (s *Store) Load() (*Snapshot, error) {
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot != nil {
		return s.snapshot, nil
	}

	tbl, err := table.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		tbl, err = table.New(nil), nil
	}
	if err != nil {
		return nil, err
	}

	snap = &Snapshot{Table: tbl}
	if len(tbl.Header()) > 0 {
		if snap.Records, snap.Skipped, err = summary.Records(tbl); err != nil {
			return nil, err
		}
	}
	if len(snap.Skipped) > 0 {
		s.logger.Warn("Invalid rows skipped",
			zap.String("path", s.path),
			zap.Int("rows", len(snap.Skipped)),
			zap.Int("first_line", snap.Skipped[0].Line),
			zap.String("reason", snap.Skipped[0].Reason),
		)
	}

	if s.cached {
		s.snapshot = snap
	}
	metrics.TableReloads.Inc()
	s.logger.Debug("Table loaded", zap.String("path", s.path), zap.Int("rows", tbl.Len()))
	return snap, nil
}

// Invalidate сбрасывает кэш
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.snapshot = nil
	s.mu.Unlock()
}

// Watch следит за каталогом таблицы до отмены ctx. Следим за каталогом, а не за
// файлом: атомарная замена через rename меняет inode
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(s.path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					s.Invalidate()
					s.logger.Debug("Table changed", zap.String("op", event.Op.String()))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("Table watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
