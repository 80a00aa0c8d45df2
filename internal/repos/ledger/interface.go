package ledger

import (
	"context"

	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/pgutils"
)

// Ledger is append-only: there is no update or delete, and the table
// trigger rejects both.
type Ledger interface {
	// Append fails with domain.ErrMissingScope when the row violates the
	// per-kind scope constraint.
	Append(ctx context.Context, q pgutils.Querier, e domain.LedgerEntry) (domain.LedgerEntry, error)
	SumByUser(ctx context.Context, q pgutils.Querier, userID int64) (int64, error)
	SumByEdition(ctx context.Context, q pgutils.Querier, editionID int64, kind domain.EntryKind) (int64, error)
	// SumRollovers sums ROLLOVER_IN and ROLLOVER_OUT amounts over every
	// edition of (league, mode).
	SumRollovers(ctx context.Context, q pgutils.Querier, leagueID int64, mode domain.Mode) (int64, error)
	// ListByUser returns the user's entries newest first.
	ListByUser(ctx context.Context, q pgutils.Querier, userID int64, limit int) ([]domain.LedgerEntry, error)
}
