package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/erazemk/krma/internal/api"
	"github.com/erazemk/krma/internal/dosage"
	"github.com/erazemk/krma/internal/logger"
	"github.com/erazemk/krma/internal/notify"
	"github.com/erazemk/krma/internal/scheduler"
)

const shutdownTimeout = 15 * time.Second

func serveCmd(envFile *string) *cobra.Command {
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the nightly consumption job",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*envFile)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.serve(cmd.Context(), !noScheduler)
		},
	}
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "do not run the nightly consumption job")
	return cmd
}

func (a *app) serve(ctx context.Context, withScheduler bool) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	secret, err := a.jwtSecret(ctx)
	if err != nil {
		return fmt.Errorf("resolving jwt secret: %w", err)
	}

	if a.cfg.Feeding.DosageTable != "" && a.cfg.Feeding.WatchDosageTable {
		w, err := dosage.Watch(ctx, a.cfg.Feeding.DosageTable, a.dosage, logger.Named(a.log, "dosage"))
		if err != nil {
			return fmt.Errorf("watching dosage table: %w", err)
		}
		defer w.Close()
	}

	if withScheduler {
		sched, err := scheduler.New(a.cfg.Scheduler, a.svc, notify.New(a.cfg.WhatsApp), a.log)
		if err != nil {
			return fmt.Errorf("creating scheduler: %w", err)
		}
		if err := sched.Start(); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
		defer sched.Stop()
	}

	router := api.NewRouter(api.Deps{
		Service:     a.svc,
		JWTSecret:   secret,
		Logger:      a.log,
		Metrics:     a.metrics,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	})
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}
