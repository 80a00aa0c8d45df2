package reconcile

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fastprodman/survivor/internal/achievements"
	"github.com/fastprodman/survivor/internal/config"
	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/logging"
	"github.com/fastprodman/survivor/internal/metrics"
	"github.com/fastprodman/survivor/internal/repos/editions"
	pgeditions "github.com/fastprodman/survivor/internal/repos/editions/postgres"
	"github.com/fastprodman/survivor/internal/repos/matches"
	pgmatches "github.com/fastprodman/survivor/internal/repos/matches/postgres"
	"github.com/fastprodman/survivor/internal/repos/participants"
	pgparticipants "github.com/fastprodman/survivor/internal/repos/participants/postgres"
	"github.com/fastprodman/survivor/internal/repos/picks"
	pgpicks "github.com/fastprodman/survivor/internal/repos/picks/postgres"
	"github.com/fastprodman/survivor/internal/services/rewards"
)

// Reconciler settles finished matches against picks. It keeps no state
// between calls: progress lives in participant status and in the reward
// transactions, so any pass may be repeated or overlap another.
type Reconciler struct {
	db           *sql.DB
	editions     editions.Editions
	participants participants.Participants
	picks        picks.Picks
	matches      matches.Matches
	dispatcher   *rewards.Dispatcher
	unlocks      achievements.Evaluator
	cfg          config.ReconcileConfig
	rewardCfg    config.RewardConfig
	now          func() time.Time
}

func New(
	dbx *sql.DB,
	dispatcher *rewards.Dispatcher,
	unlocks achievements.Evaluator,
	cfg config.ReconcileConfig,
	rewardCfg config.RewardConfig,
) *Reconciler {
	if unlocks == nil {
		unlocks = achievements.Nop{}
	}

	return &Reconciler{
		db:           dbx,
		editions:     pgeditions.New(),
		participants: pgparticipants.New(),
		picks:        pgpicks.New(),
		matches:      pgmatches.New(),
		dispatcher:   dispatcher,
		unlocks:      unlocks,
		cfg:          cfg,
		rewardCfg:    rewardCfg,
		now:          time.Now,
	}
}

// Report summarizes one Reconcile call.
type Report struct {
	EditionID      int64 `json:"edition_id"`
	Started        bool  `json:"started"`
	CurrentRound   int   `json:"current_round"`
	Matches        int   `json:"matches"`
	Eliminated     int64 `json:"eliminated"`
	LifelinesSpent int64 `json:"lifelines_spent"`
	RewardsIssued  int   `json:"rewards_issued"`
	Errors         int   `json:"errors"`
}

// ReconcileAll runs Reconcile for every OPEN and IN_PROGRESS edition. One
// edition failing does not stop the others.
func (r *Reconciler) ReconcileAll(ctx context.Context) error {
	passID := uuid.NewString()
	log := logging.FromContext(ctx).With("pass_id", passID)
	ctx = logging.WithLogger(ctx, log)

	ids, err := r.editions.ListReconcilable(ctx, r.db)
	if err != nil {
		metrics.ReconcileErrors.WithLabelValues("list_editions").Inc()
		return fmt.Errorf("reconcile all: %w", err)
	}

	log.InfoContext(ctx, "reconciliation pass started", "editions", len(ids))

	var failed int
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_, err = r.Reconcile(ctx, id)
		if err != nil {
			failed++
			log.ErrorContext(ctx, "reconcile edition failed", "edition_id", id, "err", err)
		}
	}

	log.InfoContext(ctx, "reconciliation pass finished", "editions", len(ids), "failed", failed)

	return nil
}

// Reconcile advances one edition. Failures inside a round are logged and
// skipped; only failing to load the edition or its current round is
// returned.
func (r *Reconciler) Reconcile(ctx context.Context, editionID int64) (Report, error) {
	rep, err := r.reconcile(ctx, editionID)
	switch {
	case err != nil:
		metrics.ReconcilePasses.WithLabelValues("error").Inc()
	case rep.Errors > 0:
		metrics.ReconcilePasses.WithLabelValues("partial").Inc()
	default:
		metrics.ReconcilePasses.WithLabelValues("ok").Inc()
	}

	return rep, err
}

func (r *Reconciler) reconcile(ctx context.Context, editionID int64) (Report, error) {
	rep := Report{EditionID: editionID}
	log := logging.FromContext(ctx).With("edition_id", editionID)

	e, err := r.editions.Get(ctx, r.db, editionID)
	if err != nil {
		return rep, fmt.Errorf("reconcile: %w", err)
	}
	if e.Status == domain.EditionFinished {
		return rep, nil
	}

	now := r.now()

	// 1) Current round, clamped to the start round
	kicked, ok, err := r.matches.CurrentRound(ctx, r.db, e.CompetitionID, now)
	if err != nil {
		return rep, fmt.Errorf("reconcile: %w", err)
	}
	rep.CurrentRound = max(kicked, e.StartRound)

	// 2) OPEN: start once the first round has kicked off, then stop
	if e.Status == domain.EditionOpen {
		if !ok || kicked < e.StartRound {
			return rep, nil
		}

		rep.Started, err = r.editions.MarkInProgress(ctx, r.db, e.ID)
		if err != nil {
			return rep, fmt.Errorf("reconcile: %w", err)
		}
		if rep.Started {
			log.InfoContext(ctx, "edition started", "round", kicked)
		}

		return rep, nil
	}

	// 3) IN_PROGRESS: every round from the start, never skipping
	last := rep.CurrentRound
	if e.EndRound != nil {
		last = min(last, *e.EndRound)
	}
	cutoff := now.Add(-r.cfg.SafetyMargin)

	for round := e.StartRound; round <= last; round++ {
		r.reconcileRound(ctx, log.With("round", round), e, round, cutoff, &rep)
	}

	return rep, nil
}

func (r *Reconciler) reconcileRound(ctx context.Context, log *slog.Logger, e domain.Edition, round int, cutoff time.Time, rep *Report) {
	ms, err := r.matches.ListReconcilable(ctx, r.db, e.CompetitionID, round, cutoff)
	if err != nil {
		rep.Errors++
		metrics.ReconcileErrors.WithLabelValues("list_matches").Inc()
		log.ErrorContext(ctx, "list reconcilable matches", "err", err)
		return
	}

	for _, m := range ms {
		rep.Matches++

		winners, err := r.settleMatch(ctx, e, round, m, rep)
		if err != nil {
			rep.Errors++
			metrics.ReconcileErrors.WithLabelValues("settle_match").Inc()
			log.ErrorContext(ctx, "settle match", "match_id", m.ID, "err", err)
			continue
		}

		// rewards run after the match transaction committed
		for _, userID := range winners {
			r.rewardSurvivor(ctx, log, e, round, userID, rep)
		}
	}

	if !e.Config.Rules.SuddenDeath || len(ms) == 0 {
		return
	}

	total, err := r.matches.CountRound(ctx, r.db, e.CompetitionID, round)
	if err != nil {
		rep.Errors++
		metrics.ReconcileErrors.WithLabelValues("sudden_death").Inc()
		log.ErrorContext(ctx, "count round matches", "err", err)
		return
	}
	if len(ms) < total {
		return
	}

	err = r.eliminateMissing(ctx, e, round, rep)
	if err != nil {
		rep.Errors++
		metrics.ReconcileErrors.WithLabelValues("sudden_death").Inc()
		log.ErrorContext(ctx, "sudden death", "err", err)
	}
}
