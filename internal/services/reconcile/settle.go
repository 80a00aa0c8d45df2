package reconcile

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/pgutils"
	"github.com/fastprodman/survivor/internal/metrics"
)

// Verdict is what a settled pick means for its participant.
type Verdict int

const (
	VerdictCorrect Verdict = iota
	VerdictEliminate
	VerdictSpendLifeline
	// VerdictAbsorbed is a wrong pick already covered by a lifeline spent
	// in the same round.
	VerdictAbsorbed
	// VerdictForgiven is a wrong pick in a round covered by an admin restore.
	VerdictForgiven
)

// Judge decides a single pick. A draw makes every pick on the match wrong.
func Judge(m domain.Match, pick domain.Pick, p domain.Participant, lifeline bool) Verdict {
	outcome := m.Outcome()
	predicted, ok := m.Predicted(pick.TeamID)
	if ok && outcome != domain.OutcomeDraw && predicted == outcome {
		return VerdictCorrect
	}

	if p.RestoredRound != nil && pick.Round <= *p.RestoredRound {
		return VerdictForgiven
	}

	if !lifeline {
		return VerdictEliminate
	}

	switch {
	case p.LifelineRound == nil:
		return VerdictSpendLifeline
	case *p.LifelineRound == pick.Round:
		return VerdictAbsorbed
	default:
		return VerdictEliminate
	}
}

// settleMatch applies the match result to the picks on it in one
// transaction and returns the users whose pick was correct.
func (r *Reconciler) settleMatch(ctx context.Context, e domain.Edition, round int, m domain.Match, rep *Report) ([]int64, error) {
	var (
		winners    []int64
		eliminated int64
		spent      int64
	)

	err := pgutils.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		ps, err := r.picks.ListForMatch(ctx, tx, e.ID, m.ID, round)
		if err != nil {
			return err
		}
		if len(ps) == 0 {
			return nil
		}

		ids := make([]int64, 0, len(ps))
		for _, p := range ps {
			ids = append(ids, p.ParticipantID)
		}

		// lock in id order; status is re-read under the lock
		locked, err := r.participants.LockActive(ctx, tx, ids)
		if err != nil {
			return err
		}

		byID := make(map[int64]domain.Participant, len(locked))
		for _, p := range locked {
			byID[p.ID] = p
		}

		var toEliminate, toSpend []int64
		for _, pick := range ps {
			p, ok := byID[pick.ParticipantID]
			if !ok {
				continue
			}

			switch Judge(m, pick, p, e.Config.Rules.Lifeline) {
			case VerdictCorrect:
				winners = append(winners, p.UserID)
			case VerdictEliminate:
				toEliminate = append(toEliminate, p.ID)
			case VerdictSpendLifeline:
				toSpend = append(toSpend, p.ID)
			case VerdictAbsorbed, VerdictForgiven:
			}
		}

		eliminated, err = r.participants.Eliminate(ctx, tx, toEliminate, round)
		if err != nil {
			return err
		}

		spent, err = r.participants.SpendLifeline(ctx, tx, toSpend, round)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("settle match %d: %w", m.ID, err)
	}

	rep.Eliminated += eliminated
	rep.LifelinesSpent += spent
	metrics.Eliminations.WithLabelValues("wrong_pick").Add(float64(eliminated))
	metrics.LifelinesSpent.Add(float64(spent))

	return winners, nil
}

// rewardSurvivor credits the matchday reward in every configured currency
// and then asks the achievements service to evaluate unlocks. Errors are
// logged; the next pass retries through the existence check.
func (r *Reconciler) rewardSurvivor(ctx context.Context, log *slog.Logger, e domain.Edition, round int, userID int64, rep *Report) {
	credits := []struct {
		currency domain.Currency
		quantity int64
	}{
		{domain.CurrencyPoints, r.rewardCfg.MatchdayPoints},
		{domain.CurrencyCoins, r.rewardCfg.MatchdayCoins},
	}

	var issued bool
	for _, c := range credits {
		if c.quantity == 0 {
			continue
		}

		ok, err := r.dispatcher.AwardRoundReward(ctx, domain.Reward{
			UserID:    userID,
			EditionID: domain.Ptr(e.ID),
			Round:     domain.Ptr(round),
			Cause:     domain.CauseMatchdayWin,
			Currency:  c.currency,
			Quantity:  c.quantity,
		})
		if err != nil {
			rep.Errors++
			metrics.ReconcileErrors.WithLabelValues("reward").Inc()
			log.ErrorContext(ctx, "award matchday reward", "user_id", userID, "currency", c.currency, "err", err)
			continue
		}
		if !ok {
			log.DebugContext(ctx, "matchday reward already issued", "user_id", userID, "currency", c.currency)
			continue
		}

		issued = true
		rep.RewardsIssued++
	}

	if !issued {
		return
	}

	err := r.unlocks.EvaluateUnlocks(ctx, userID)
	if err != nil {
		log.WarnContext(ctx, "evaluate unlocks", "user_id", userID, "err", err)
	}
}

// eliminateMissing applies sudden death to round: ACTIVE participants who
// were already in the edition when the round kicked off and made no pick.
func (r *Reconciler) eliminateMissing(ctx context.Context, e domain.Edition, round int, rep *Report) error {
	first, ok, err := r.matches.EarliestKickoff(ctx, r.db, e.CompetitionID, round)
	if err != nil || !ok {
		return err
	}

	var eliminated int64

	err = pgutils.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		ids, err := r.participants.ListMissingPick(ctx, tx, e.ID, round, first)
		if err != nil {
			return err
		}

		eliminated, err = r.participants.Eliminate(ctx, tx, ids, round)

		return err
	})
	if err != nil {
		return fmt.Errorf("eliminate missing picks: %w", err)
	}

	rep.Eliminated += eliminated
	metrics.Eliminations.WithLabelValues("no_pick").Add(float64(eliminated))

	return nil
}
