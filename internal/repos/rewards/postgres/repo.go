package rewards

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/pgutils"
	"github.com/fastprodman/survivor/internal/repos/rewards"
)

var _ rewards.Rewards = (*rewardsRepo)(nil)

type rewardsRepo struct{}

func New() *rewardsRepo {
	return &rewardsRepo{}
}

func (r *rewardsRepo) EnsureAccount(ctx context.Context, q pgutils.Querier, userID int64) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO reward_accounts (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return fmt.Errorf("ensure reward account: %w", err)
	}

	return nil
}

func (r *rewardsRepo) Exists(ctx context.Context, q pgutils.Querier, rw domain.Reward) (bool, error) {
	var exists bool

	err := q.QueryRowContext(ctx, `
		SELECT EXISTS (
		    SELECT 1 FROM reward_transactions
		    WHERE user_id = $1
		      AND currency = $2
		      AND edition_id IS NOT DISTINCT FROM $3
		      AND round IS NOT DISTINCT FROM $4
		      AND cause = $5
		)
	`, rw.UserID, rw.Currency, rw.EditionID, rw.Round, rw.Cause).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("reward exists: %w", err)
	}

	return exists, nil
}

func (r *rewardsRepo) Insert(ctx context.Context, q pgutils.Querier, rw domain.Reward) (bool, error) {
	meta := rw.Metadata
	if meta == nil {
		meta = map[string]any{}
	}

	raw, err := json.Marshal(meta)
	if err != nil {
		return false, fmt.Errorf("marshal metadata: %w", err)
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO reward_transactions (user_id, currency, quantity, cause, edition_id, round, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, currency, edition_id, round, cause) WHERE edition_id IS NOT NULL DO NOTHING
	`, rw.UserID, rw.Currency, rw.Quantity, rw.Cause, rw.EditionID, rw.Round, raw)
	if err != nil {
		return false, fmt.Errorf("insert reward transaction: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}

func (r *rewardsRepo) IncrementTotal(ctx context.Context, q pgutils.Querier, userID int64, c domain.Currency, quantity int64) error {
	var query string

	switch c {
	case domain.CurrencyPoints:
		query = `UPDATE reward_accounts SET points = points + $2, updated_at = now() WHERE user_id = $1`
	case domain.CurrencyCoins:
		query = `UPDATE reward_accounts SET coins = coins + $2, updated_at = now() WHERE user_id = $1`
	default:
		return fmt.Errorf("increment total: unknown currency %q: %w", c, domain.ErrInvalidInput)
	}

	res, err := q.ExecContext(ctx, query, userID, quantity)
	if err != nil {
		return fmt.Errorf("increment %s total: %w", c, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return rewards.ErrAccountNotFound
	}

	return nil
}

func (r *rewardsRepo) GetAccount(ctx context.Context, q pgutils.Querier, userID int64) (domain.RewardAccount, error) {
	a := domain.RewardAccount{UserID: userID}

	err := q.QueryRowContext(ctx, `
		SELECT points, coins FROM reward_accounts WHERE user_id = $1
	`, userID).Scan(&a.Points, &a.Coins)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RewardAccount{}, rewards.ErrAccountNotFound
		}

		return domain.RewardAccount{}, fmt.Errorf("get reward account: %w", err)
	}

	return a, nil
}

func (r *rewardsRepo) SumTransactions(ctx context.Context, q pgutils.Querier, userID int64) (domain.RewardAccount, error) {
	a := domain.RewardAccount{UserID: userID}

	err := q.QueryRowContext(ctx, `
		SELECT
		    COALESCE(SUM(quantity) FILTER (WHERE currency = 'POINTS'), 0)::bigint,
		    COALESCE(SUM(quantity) FILTER (WHERE currency = 'COINS'), 0)::bigint
		FROM reward_transactions
		WHERE user_id = $1
	`, userID).Scan(&a.Points, &a.Coins)
	if err != nil {
		return domain.RewardAccount{}, fmt.Errorf("sum reward transactions: %w", err)
	}

	return a, nil
}
