// Package feeding orchestrates the store, the dosage engine and the reorder
// advisor for callers that need more than one storage call: the HTTP API, the
// CLI and the nightly scheduler.
package feeding

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/erazemk/krma/internal/cache"
	"github.com/erazemk/krma/internal/config"
	"github.com/erazemk/krma/internal/dosage"
	"github.com/erazemk/krma/internal/logger"
	"github.com/erazemk/krma/internal/metrics"
	"github.com/erazemk/krma/internal/reorder"
)

// DefaultLookbackDays is used when auto mode is not given a lookback.
const DefaultLookbackDays = 7

// Config tunes the service.
type Config struct {
	AutoLookbackDays int
	Reorder          reorder.Policy
}

// Service is safe for concurrent use.
type Service struct {
	db      *sql.DB
	cfg     Config
	log     *zap.Logger
	metrics *metrics.Metrics
	cache   cache.ReportCache
	dosage  *dosage.Engine
}

// New builds a service. Every dependency except db may be nil.
func New(db *sql.DB, cfg Config, log *zap.Logger, m *metrics.Metrics, c cache.ReportCache, engine *dosage.Engine) *Service {
	if cfg.AutoLookbackDays <= 0 {
		cfg.AutoLookbackDays = DefaultLookbackDays
	}
	if cfg.AutoLookbackDays > config.MaxLookbackDays {
		cfg.AutoLookbackDays = config.MaxLookbackDays
	}
	if !cfg.Reorder.TargetMultiple.IsPositive() {
		cfg.Reorder = reorder.DefaultPolicy()
	}
	if c == nil {
		c = cache.Noop{}
	}
	if engine == nil {
		engine = dosage.New(nil)
	}
	return &Service{
		db:      db,
		cfg:     cfg,
		log:     logger.Named(log, "svc.feeding"),
		metrics: m,
		cache:   c,
		dosage:  engine,
	}
}

// DB exposes the underlying database for plain store calls.
func (s *Service) DB() *sql.DB { return s.db }

// Invalidate drops cached reorder reports of a farm. Call it after any stock
// or schedule mutation.
func (s *Service) Invalidate(ctx context.Context, farmID int64) {
	if err := s.cache.InvalidateFarm(ctx, farmID); err != nil {
		s.log.Warn("invalidating reorder cache", zap.Int64("farm_id", farmID), zap.Error(err))
	}
}
