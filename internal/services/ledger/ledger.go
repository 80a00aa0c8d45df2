package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/pgutils"
	ledgerrepo "github.com/fastprodman/survivor/internal/repos/ledger"
	pgledger "github.com/fastprodman/survivor/internal/repos/ledger/postgres"
)

const defaultStatementLimit = 100

// Service is the read/append surface over the monetary ledger. Every total it
// reports is aggregated from entries at call time.
type Service struct {
	db      *sql.DB
	entries ledgerrepo.Ledger
}

func New(dbx *sql.DB) *Service {
	return &Service{
		db:      dbx,
		entries: pgledger.New(),
	}
}

// Append writes one entry outside any caller transaction.
func (s *Service) Append(ctx context.Context, e domain.LedgerEntry) (domain.LedgerEntry, error) {
	return s.AppendWithin(ctx, s.db, e)
}

// AppendWithin writes e using q, so callers can make it part of their own
// transaction.
func (s *Service) AppendWithin(ctx context.Context, q pgutils.Querier, e domain.LedgerEntry) (domain.LedgerEntry, error) {
	err := e.CheckScope()
	if err != nil {
		return domain.LedgerEntry{}, err
	}

	out, err := s.entries.Append(ctx, q, e)
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("append entry: %w", err)
	}

	return out, nil
}

func (s *Service) BalanceOf(ctx context.Context, userID int64) (int64, error) {
	return s.BalanceWithin(ctx, s.db, userID)
}

func (s *Service) BalanceWithin(ctx context.Context, q pgutils.Querier, userID int64) (int64, error) {
	sum, err := s.entries.SumByUser(ctx, q, userID)
	if err != nil {
		return 0, fmt.Errorf("balance of %d: %w", userID, err)
	}

	return sum, nil
}

// PoolOf is the fees collected for the edition net of payouts already made.
// Fees are stored negative (from the payer's side), so they are negated here.
func (s *Service) PoolOf(ctx context.Context, editionID int64) (int64, error) {
	var pool int64

	err := pgutils.WithTxOpts(ctx, s.db, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, func(tx *sql.Tx) error {
		var err error
		pool, err = s.PoolWithin(ctx, tx, editionID)
		return err
	})
	if err != nil {
		return 0, err
	}

	return pool, nil
}

func (s *Service) PoolWithin(ctx context.Context, q pgutils.Querier, editionID int64) (int64, error) {
	fees, err := s.entries.SumByEdition(ctx, q, editionID, domain.EntryFee)
	if err != nil {
		return 0, fmt.Errorf("pool of %d: %w", editionID, err)
	}

	payouts, err := s.entries.SumByEdition(ctx, q, editionID, domain.EntryPrizePayout)
	if err != nil {
		return 0, fmt.Errorf("pool of %d: %w", editionID, err)
	}

	return -fees - payouts, nil
}

// RolloverOf is the carry of (league, mode) that no edition has taken in yet:
// every ROLLOVER_OUT adds its magnitude, every ROLLOVER_IN takes its amount
// back out.
func (s *Service) RolloverOf(ctx context.Context, leagueID int64, mode domain.Mode) (int64, error) {
	return s.RolloverWithin(ctx, s.db, leagueID, mode)
}

func (s *Service) RolloverWithin(ctx context.Context, q pgutils.Querier, leagueID int64, mode domain.Mode) (int64, error) {
	if !mode.Valid() {
		return 0, fmt.Errorf("mode %q: %w", mode, domain.ErrInvalidInput)
	}

	sum, err := s.entries.SumRollovers(ctx, q, leagueID, mode)
	if err != nil {
		return 0, fmt.Errorf("rollover of %d/%s: %w", leagueID, mode, err)
	}

	return -sum, nil
}

// InheritedWithin returns the ROLLOVER_IN amount already routed to the edition.
func (s *Service) InheritedWithin(ctx context.Context, q pgutils.Querier, editionID int64) (int64, error) {
	sum, err := s.entries.SumByEdition(ctx, q, editionID, domain.EntryRolloverIn)
	if err != nil {
		return 0, fmt.Errorf("inherited rollover of %d: %w", editionID, err)
	}

	return sum, nil
}

// Adjust records an administrative ADJUSTMENT (deposit or correction).
func (s *Service) Adjust(ctx context.Context, actor domain.Actor, userID, amount int64, reason string) (domain.LedgerEntry, error) {
	if !actor.IsAdmin {
		return domain.LedgerEntry{}, domain.ErrForbidden
	}

	reason = strings.TrimSpace(reason)
	if amount == 0 || reason == "" {
		return domain.LedgerEntry{}, fmt.Errorf("adjustment needs a non-zero amount and a reason: %w", domain.ErrInvalidInput)
	}

	return s.Append(ctx, domain.LedgerEntry{
		UserID: domain.Ptr(userID),
		Kind:   domain.EntryAdjustment,
		Amount: amount,
		Metadata: map[string]any{
			"reason":   reason,
			"admin_id": actor.UserID,
		},
	})
}

// Statement lists the user's entries newest first. A non-positive limit
// falls back to the default page size.
func (s *Service) Statement(ctx context.Context, userID int64, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = defaultStatementLimit
	}

	entries, err := s.entries.ListByUser(ctx, s.db, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("statement of %d: %w", userID, err)
	}

	return entries, nil
}
