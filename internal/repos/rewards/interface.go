package rewards

import (
	"context"
	"fmt"

	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/pgutils"
)

var ErrAccountNotFound = fmt.Errorf("reward account: %w", domain.ErrNotFound)

type Rewards interface {
	// EnsureAccount creates a zero account for the user if none exists.
	EnsureAccount(ctx context.Context, q pgutils.Querier, userID int64) error
	// Exists reports whether a transaction with the reward's scope key is
	// already recorded.
	Exists(ctx context.Context, q pgutils.Querier, r domain.Reward) (bool, error)
	// Insert appends the transaction; false when the scope key was already
	// taken by a concurrent writer.
	Insert(ctx context.Context, q pgutils.Querier, r domain.Reward) (bool, error)
	IncrementTotal(ctx context.Context, q pgutils.Querier, userID int64, c domain.Currency, quantity int64) error
	GetAccount(ctx context.Context, q pgutils.Querier, userID int64) (domain.RewardAccount, error)
	// SumTransactions recomputes the totals from the transaction log.
	SumTransactions(ctx context.Context, q pgutils.Querier, userID int64) (domain.RewardAccount, error)
}
