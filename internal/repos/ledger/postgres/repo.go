package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/pgutils"
	"github.com/fastprodman/survivor/internal/repos/ledger"
)

var _ ledger.Ledger = (*ledgerRepo)(nil)

type ledgerRepo struct{}

func New() *ledgerRepo {
	return &ledgerRepo{}
}

func (r *ledgerRepo) Append(ctx context.Context, q pgutils.Querier, e domain.LedgerEntry) (domain.LedgerEntry, error) {
	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}

	raw, err := json.Marshal(meta)
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("marshal metadata: %w", err)
	}

	err = q.QueryRowContext(ctx, `
		INSERT INTO ledger_entries (user_id, league_id, edition_id, kind, amount, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, e.UserID, e.LeagueID, e.EditionID, e.Kind, e.Amount, raw).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		if pgutils.HasCode(err, pgutils.CodeCheckViolation) {
			return domain.LedgerEntry{}, fmt.Errorf("append %s: %w", e.Kind, domain.ErrMissingScope)
		}

		return domain.LedgerEntry{}, fmt.Errorf("insert ledger entry: %w", err)
	}

	e.Metadata = meta

	return e, nil
}

func (r *ledgerRepo) ListByUser(ctx context.Context, q pgutils.Querier, userID int64, limit int) ([]domain.LedgerEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, league_id, edition_id, kind, amount, metadata, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var (
			e                     domain.LedgerEntry
			user, league, edition sql.NullInt64
			raw                   []byte
		)

		err = rows.Scan(&e.ID, &user, &league, &edition, &e.Kind, &e.Amount, &raw, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}

		e.UserID = nullablePtr(user)
		e.LeagueID = nullablePtr(league)
		e.EditionID = nullablePtr(edition)

		err = json.Unmarshal(raw, &e.Metadata)
		if err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}

		out = append(out, e)
	}

	return out, rows.Err()
}

func nullablePtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}

	return domain.Ptr(v.Int64)
}
