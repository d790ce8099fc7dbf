// Package cache stores computed reorder reports per farm and date.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/erazemk/krma/internal/config"
	"github.com/erazemk/krma/internal/model"
)

const (
	reorderKeyPrefix = "krma:reorder"
	scanBatchSize    = 100
	defaultTTL       = time.Minute
)

// ReportCache caches reorder reports. Implementations must treat a miss as
// (nil, false, nil).
type ReportCache interface {
	GetReport(ctx context.Context, farmID int64, asOf model.Date) (*model.ReorderReport, bool, error)
	SetReport(ctx context.Context, farmID int64, report *model.ReorderReport) error
	// InvalidateFarm drops every cached report of the farm.
	InvalidateFarm(ctx context.Context, farmID int64) error
}

// New returns a redis-backed cache when enabled, or a no-op cache.
func New(cfg config.CacheConfig) (ReportCache, error) {
	if !cfg.Enabled {
		return Noop{}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return NewRedis(client, ttl), nil
}

// Redis caches reports as JSON strings with a TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func farmPrefix(farmID int64) string {
	return fmt.Sprintf("%s:%d:", reorderKeyPrefix, farmID)
}

func reportKey(farmID int64, asOf model.Date) string {
	return farmPrefix(farmID) + asOf.String()
}

func (c *Redis) GetReport(ctx context.Context, farmID int64, asOf model.Date) (*model.ReorderReport, bool, error) {
	payload, err := c.client.Get(ctx, reportKey(farmID, asOf)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var report model.ReorderReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, false, fmt.Errorf("decoding cached reorder report: %w", err)
	}
	return &report, true, nil
}

func (c *Redis) SetReport(ctx context.Context, farmID int64, report *model.ReorderReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding reorder report: %w", err)
	}
	if err := c.client.Set(ctx, reportKey(farmID, report.AsOf), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *Redis) InvalidateFarm(ctx context.Context, farmID int64) error {
	var cursor uint64
	pattern := farmPrefix(farmID) + "*"
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("redis scan failed: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis delete failed: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Close releases the redis connection pool.
func (c *Redis) Close() error {
	return c.client.Close()
}

// Noop never caches anything.
type Noop struct{}

func (Noop) GetReport(context.Context, int64, model.Date) (*model.ReorderReport, bool, error) {
	return nil, false, nil
}

func (Noop) SetReport(context.Context, int64, *model.ReorderReport) error { return nil }

func (Noop) InvalidateFarm(context.Context, int64) error { return nil }
