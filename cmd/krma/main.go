// Package main provides the krma binary: the feed management HTTP server,
// its nightly consumption job and a few operator commands.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/erazemk/krma/internal/cache"
	"github.com/erazemk/krma/internal/config"
	"github.com/erazemk/krma/internal/db"
	"github.com/erazemk/krma/internal/dosage"
	"github.com/erazemk/krma/internal/feeding"
	"github.com/erazemk/krma/internal/logger"
	"github.com/erazemk/krma/internal/metrics"
	"github.com/erazemk/krma/internal/reorder"
	"github.com/erazemk/krma/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "krma",
		Short:         "Livestock feed management",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env", "", "env file to load (default .env when present)")

	cmd.AddCommand(
		serveCmd(&envFile),
		consumeCmd(&envFile),
		undoCmd(&envFile),
		reorderCmd(&envFile),
		tokenCmd(&envFile),
		farmCmd(&envFile),
	)
	return cmd
}

// app holds what every command needs.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *sql.DB
	metrics *metrics.Metrics
	cache   cache.ReportCache
	dosage  *dosage.Engine
	svc     *feeding.Service
}

// newApp loads config, opens the database and builds the feeding service.
func newApp(envFile string) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.EnsureSchema(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}

	var table dosage.Table
	if cfg.Feeding.DosageTable != "" {
		table, err = dosage.LoadTableFile(cfg.Feeding.DosageTable)
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("loading dosage table: %w", err)
		}
		log.Info("dosage table loaded", zap.String("path", cfg.Feeding.DosageTable))
	}

	reportCache, err := cache.New(cfg.Cache)
	if err != nil {
		log.Warn("reorder cache unavailable, running without it", zap.Error(err))
		reportCache = cache.Noop{}
	}

	m := metrics.New()
	engine := dosage.New(table)
	svc := feeding.New(database, feeding.Config{
		AutoLookbackDays: cfg.Feeding.AutoLookbackDays,
		Reorder: reorder.Policy{
			TargetMultiple: decimal.NewFromFloat(cfg.Reorder.TargetMultiple),
			CriticalDays:   cfg.Reorder.CriticalDays,
			WarningDays:    cfg.Reorder.WarningDays,
		},
	}, log, m, reportCache, engine)

	return &app{
		cfg:     cfg,
		log:     log,
		db:      database,
		metrics: m,
		cache:   reportCache,
		dosage:  engine,
		svc:     svc,
	}, nil
}

func (a *app) Close() {
	if c, ok := a.cache.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			a.log.Warn("closing cache", zap.Error(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn("closing database", zap.Error(err))
	}
	_ = a.log.Sync()
}

// jwtSecret prefers the configured secret and falls back to the one stored
// in the database, creating it on first use.
func (a *app) jwtSecret(ctx context.Context) (string, error) {
	if a.cfg.JWTSecret != "" {
		return a.cfg.JWTSecret, nil
	}
	return store.GetJWTSecret(ctx, a.db)
}
