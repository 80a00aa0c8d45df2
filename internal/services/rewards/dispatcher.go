package rewards

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/pgutils"
	"github.com/fastprodman/survivor/internal/metrics"
	rewardrepo "github.com/fastprodman/survivor/internal/repos/rewards"
	pgrewards "github.com/fastprodman/survivor/internal/repos/rewards/postgres"
)

// Dispatcher credits the point and coin reward ledgers.
type Dispatcher struct {
	db      *sql.DB
	rewards rewardrepo.Rewards
}

func New(dbx *sql.DB) *Dispatcher {
	return &Dispatcher{
		db:      dbx,
		rewards: pgrewards.New(),
	}
}

// AwardRoundReward appends r and bumps the user's running total, unless a
// transaction with the same (user, currency, edition, round, cause) already
// exists. It reports whether a transaction was written. Repeating the call
// is always safe.
//
// 1) Ensure the reward account exists.
// 2) Existence check on the scope key.
// 3) Insert + increment in the same transaction.
func (d *Dispatcher) AwardRoundReward(ctx context.Context, r domain.Reward) (bool, error) {
	if r.Quantity == 0 {
		return false, fmt.Errorf("zero quantity: %w", domain.ErrInvalidInput)
	}
	if r.Currency != domain.CurrencyPoints && r.Currency != domain.CurrencyCoins {
		return false, fmt.Errorf("currency %q: %w", r.Currency, domain.ErrInvalidInput)
	}

	var issued bool

	err := pgutils.WithTx(ctx, d.db, func(tx *sql.Tx) error {
		// 1) Ensure account
		err := d.rewards.EnsureAccount(ctx, tx, r.UserID)
		if err != nil {
			return err
		}

		// 2) Existence check
		exists, err := d.rewards.Exists(ctx, tx, r)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		// 3) Insert; a concurrent writer may still win the unique index
		inserted, err := d.rewards.Insert(ctx, tx, r)
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}

		err = d.rewards.IncrementTotal(ctx, tx, r.UserID, r.Currency, r.Quantity)
		if err != nil {
			return err
		}

		issued = true

		return nil
	})
	if err != nil {
		return false, fmt.Errorf("award %s %s to %d: %w", r.Cause, r.Currency, r.UserID, err)
	}

	if issued {
		metrics.RewardsIssued.WithLabelValues(string(r.Cause), string(r.Currency)).Inc()
	}

	return issued, nil
}

// Totals returns the cached running totals; a user never rewarded has zero.
func (d *Dispatcher) Totals(ctx context.Context, userID int64) (domain.RewardAccount, error) {
	a, err := d.rewards.GetAccount(ctx, d.db, userID)
	if err != nil {
		if errors.Is(err, rewardrepo.ErrAccountNotFound) {
			return domain.RewardAccount{UserID: userID}, nil
		}

		return domain.RewardAccount{}, fmt.Errorf("reward totals: %w", err)
	}

	return a, nil
}

// VerifyTotals recomputes the user's totals from the transaction log and
// fails with domain.ErrIntegrity when the cached account disagrees.
func (d *Dispatcher) VerifyTotals(ctx context.Context, userID int64) error {
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

	return pgutils.WithTxOpts(ctx, d.db, opts, func(tx *sql.Tx) error {
		cached, err := d.rewards.GetAccount(ctx, tx, userID)
		if err != nil && !errors.Is(err, rewardrepo.ErrAccountNotFound) {
			return fmt.Errorf("verify totals: %w", err)
		}
		cached.UserID = userID

		derived, err := d.rewards.SumTransactions(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("verify totals: %w", err)
		}

		if cached != derived {
			return fmt.Errorf("%w: reward totals for user %d: cached %d/%d, derived %d/%d",
				domain.ErrIntegrity, userID, cached.Points, cached.Coins, derived.Points, derived.Coins)
		}

		return nil
	})
}
