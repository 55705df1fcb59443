// Package cache реализует работу с Redis: блокировку таблицы и публикацию
// последних обогащенных записей для панелей мониторинга
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"netpulse/internal/models"
)

const (
	// LockKeyPrefix префикс ключа блокировки таблицы
	LockKeyPrefix = "lock:table:"
	// DeviceKeyPrefix префикс ключей последней записи устройства
	DeviceKeyPrefix = "device:"
	// SummaryKey хэш с агрегатами последнего прогона
	SummaryKey = "kpi:latest"
	// RunsKey счетчик завершенных прогонов
	RunsKey = "runs:total"
	// DefaultLockTTL время жизни блокировки по умолчанию
	DefaultLockTTL = 30 * time.Second
	// LatestTTL время жизни опубликованных записей
	LatestTTL = 1 * time.Hour
)

// ErrLockHeld блокировка уже занята другим владельцем
var ErrLockHeld = errors.New("lock is held by another owner")

// releaseScript удаляет ключ только если значение совпадает с токеном владельца
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript продлевает ключ только для владельца
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisCache реализует блокировку и публикацию в Redis
type RedisCache struct {
	client  *redis.Client
	lockTTL time.Duration
}

// NewRedisCache создает новое подключение к Redis
func NewRedisCache(ctx context.Context, addr, password string, db int, lockTTL time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 1,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	// Проверяем подключение
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	return &RedisCache{client: client, lockTTL: lockTTL}, nil
}

// LockKey ключ блокировки для таблицы
func LockKey(table string) string {
	return LockKeyPrefix + table
}

// DeviceKey ключ последней записи устройства
func DeviceKey(device string) string {
	return DeviceKeyPrefix + device + ":latest"
}

// Acquire захватывает блокировку таблицы; token идентифицирует владельца
func (r *RedisCache) Acquire(ctx context.Context, table, token string) error {
	ok, err := r.client.SetNX(ctx, LockKey(table), token, r.lockTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return ErrLockHeld
	}
	return nil
}

// Release снимает блокировку, если она все еще принадлежит token
func (r *RedisCache) Release(ctx context.Context, table, token string) error {
	n, err := releaseScript.Run(ctx, r.client, []string{LockKey(table)}, token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if n == 0 {
		return ErrLockHeld
	}
	return nil
}

// Extend продлевает блокировку еще на lockTTL, если она все еще принадлежит token
func (r *RedisCache) Extend(ctx context.Context, table, token string) error {
	n, err := extendScript.Run(ctx, r.client, []string{LockKey(table)}, token, r.lockTTL.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to extend lock: %w", err)
	}
	if n == 0 {
		return ErrLockHeld
	}
	return nil
}

// LockTTL время жизни блокировки без продления
func (r *RedisCache) LockTTL() time.Duration {
	return r.lockTTL
}

// LatestByDevice последняя по времени запись каждого устройства
func LatestByDevice(records []models.EnrichedRecord) map[string]models.EnrichedRecord {
	latest := make(map[string]models.EnrichedRecord)
	for _, rec := range records {
		if cur, ok := latest[rec.Device]; !ok || !rec.Timestamp.Before(cur.Timestamp) {
			latest[rec.Device] = rec
		}
	}
	return latest
}

// PublishLatest сохраняет последнюю запись каждого устройства и агрегаты прогона
func (r *RedisCache) PublishLatest(ctx context.Context, records []models.EnrichedRecord, kpi models.KPISummary) error {
	pipe := r.client.Pipeline()

	for device, rec := range LatestByDevice(records) {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		pipe.Set(ctx, DeviceKey(device), data, LatestTTL)
	}

	pipe.HSet(ctx, SummaryKey, map[string]interface{}{
		"total":            kpi.Total,
		"critical":         kpi.Critical,
		"degraded":         kpi.Degraded,
		"healthy":          kpi.Healthy,
		"predicted_breach": kpi.PredictedBreach,
		"anomalies":        kpi.Anomalies,
		"generated_at":     kpi.GeneratedAt.Format(time.RFC3339),
	})
	pipe.Expire(ctx, SummaryKey, LatestTTL)
	pipe.Incr(ctx, RunsKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish records: %w", err)
	}
	return nil
}

// GetLatest возвращает опубликованную запись устройства
func (r *RedisCache) GetLatest(ctx context.Context, device string) (models.EnrichedRecord, error) {
	var rec models.EnrichedRecord
	data, err := r.client.Get(ctx, DeviceKey(device)).Bytes()
	if err != nil {
		return rec, err
	}
	return rec, json.Unmarshal(data, &rec)
}

// GetCounter возвращает значение счетчика
func (r *RedisCache) GetCounter(ctx context.Context, key string) (int64, error) {
	val, err := r.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}

// Ping проверяет соединение с Redis
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close закрывает соединение
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// FlushDB очищает базу (только для тестов)
func (r *RedisCache) FlushDB(ctx context.Context) error {
	return r.client.FlushDB(ctx).Err()
}
