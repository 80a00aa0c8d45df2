// Package scheduler runs reconciliation on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

const reconcileJob = "reconcile-all"

// Reconciler is the work the scheduler triggers.
type Reconciler interface {
	ReconcileAll(ctx context.Context) error
}

type Scheduler struct {
	sched  gocron.Scheduler
	cancel context.CancelFunc
}

// New registers the reconciliation job. Runs never overlap: a tick that
// arrives while a pass is still running is skipped. The first pass runs as
// soon as Start is called.
func New(rec Reconciler, interval time.Duration) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("reconcile interval must be positive, got %s", interval)
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() error {
			return rec.ReconcileAll(ctx)
		}),
		gocron.WithName(reconcileJob),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithEventListeners(
			gocron.AfterJobRunsWithError(func(jobID uuid.UUID, jobName string, err error) {
				slog.Error("scheduled job failed", "job", jobName, "job_id", jobID, "err", err)
			}),
		),
	)
	if err != nil {
		cancel()
		_ = sched.Shutdown()
		return nil, fmt.Errorf("register %s: %w", reconcileJob, err)
	}

	return &Scheduler{sched: sched, cancel: cancel}, nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
	slog.Info("scheduler started", "job", reconcileJob)
}

// Shutdown cancels a running pass and waits for the scheduler to stop, or
// for ctx to end.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan error, 1)
	go func() { done <- s.sched.Shutdown() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("scheduler shutdown: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown: %w", ctx.Err())
	}
}
