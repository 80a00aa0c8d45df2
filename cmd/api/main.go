package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fastprodman/survivor/internal/achievements"
	"github.com/fastprodman/survivor/internal/api"
	"github.com/fastprodman/survivor/internal/infra/logging"
	"github.com/fastprodman/survivor/internal/infra/pgutils"
	"github.com/fastprodman/survivor/internal/scheduler"
	"github.com/fastprodman/survivor/internal/services/closeout"
	"github.com/fastprodman/survivor/internal/services/editions"
	"github.com/fastprodman/survivor/internal/services/ledger"
	"github.com/fastprodman/survivor/internal/services/picks"
	"github.com/fastprodman/survivor/internal/services/reconcile"
	"github.com/fastprodman/survivor/internal/services/rewards"
	"github.com/fastprodman/survivor/pkg/envconf"
	"github.com/fastprodman/survivor/pkg/shutdownqueue"
	"github.com/joho/godotenv"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	// A .env file is optional; real deployments set the environment directly.
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg := new(apiConfig)

	err = envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	dbConns, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}

	// Registered first so it runs last.
	shutdownqueue.Add(func(context.Context) error {
		slog.Info("Close database")
		return dbConns.Close()
	})

	// --- Services ---
	ledgerSrv := ledger.New(dbConns)
	rewardSrv := rewards.New(dbConns)
	reconciler := reconcile.New(dbConns, rewardSrv, achievements.New(cfg.Achievements), cfg.Reconcile, cfg.Rewards)

	services := api.Services{
		Editions:  editions.New(dbConns, ledgerSrv, cfg.Picks),
		Picks:     picks.New(dbConns, cfg.Picks),
		Reconcile: reconciler,
		Close:     closeout.New(dbConns, ledgerSrv, nil),
		Ledger:    ledgerSrv,
		Rewards:   rewardSrv,
	}

	// --- Scheduler ---
	sched, err := scheduler.New(reconciler, cfg.Reconcile.Interval)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	shutdownqueue.Add(func(c context.Context) error {
		slog.Info("Stop scheduler")
		return sched.Shutdown(c)
	})

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, services)

	shutdownqueue.Add(func(c context.Context) error {
		slog.Info("Shut down server")

		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started", "port", cfg.Port, "reconcile_interval", cfg.Reconcile.Interval)

	select {
	case <-ctx.Done():
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}
