package ledger

import (
	"context"
	"fmt"

	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/pgutils"
)

// SUM over bigint is numeric in Postgres; every aggregate is cast back so it
// scans into int64.

func (r *ledgerRepo) SumByUser(ctx context.Context, q pgutils.Querier, userID int64) (int64, error) {
	var sum int64

	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)::bigint
		FROM ledger_entries
		WHERE user_id = $1
	`, userID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum user entries: %w", err)
	}

	return sum, nil
}

func (r *ledgerRepo) SumByEdition(ctx context.Context, q pgutils.Querier, editionID int64, kind domain.EntryKind) (int64, error) {
	var sum int64

	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)::bigint
		FROM ledger_entries
		WHERE edition_id = $1
		  AND kind = $2
	`, editionID, kind).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum edition %s entries: %w", kind, err)
	}

	return sum, nil
}

func (r *ledgerRepo) SumRollovers(ctx context.Context, q pgutils.Querier, leagueID int64, mode domain.Mode) (int64, error) {
	var sum int64

	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(l.amount), 0)::bigint
		FROM ledger_entries l
		JOIN editions e ON e.id = l.edition_id
		WHERE e.league_id = $1
		  AND e.mode = $2
		  AND l.kind IN ('ROLLOVER_IN', 'ROLLOVER_OUT')
	`, leagueID, mode).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum rollovers: %w", err)
	}

	return sum, nil
}
