package editions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/pgutils"
	"github.com/fastprodman/survivor/internal/repos/editions"
)

func (r *editionsRepo) ListReconcilable(ctx context.Context, q pgutils.Querier) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id
		FROM editions
		WHERE status IN ('OPEN', 'IN_PROGRESS')
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list reconcilable editions: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		err = rows.Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("scan edition id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (r *editionsRepo) MarkInProgress(ctx context.Context, q pgutils.Querier, id int64) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE editions
		SET status = 'IN_PROGRESS', updated_at = now()
		WHERE id = $1
		  AND status = 'OPEN'
	`, id)
	if err != nil {
		return false, fmt.Errorf("mark in progress: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}

func (r *editionsRepo) MarkFinished(ctx context.Context, q pgutils.Querier, id int64) error {
	res, err := q.ExecContext(ctx, `
		UPDATE editions
		SET status = 'FINISHED', updated_at = now()
		WHERE id = $1
		  AND status <> 'FINISHED'
	`, id)
	if err != nil {
		return fmt.Errorf("mark finished: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return domain.ErrAlreadyClosed
	}

	return nil
}

func (r *editionsRepo) SetLock(ctx context.Context, q pgutils.Querier, id int64, round int, at time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE editions
		SET lock_round = $2, lock_at = $3, updated_at = now()
		WHERE id = $1
	`, id, round, at)
	if err != nil {
		return fmt.Errorf("set lock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return editions.ErrEditionNotFound
	}

	return nil
}

func (r *editionsRepo) FindOpenSibling(
	ctx context.Context, q pgutils.Querier, leagueID int64, mode domain.Mode, excludeID int64,
) (int64, bool, error) {
	var id int64

	err := q.QueryRowContext(ctx, `
		SELECT id
		FROM editions
		WHERE league_id = $1
		  AND mode = $2
		  AND status = 'OPEN'
		  AND id <> $3
		ORDER BY created_at, id
		LIMIT 1
	`, leagueID, mode, excludeID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}

		return 0, false, fmt.Errorf("find open sibling: %w", err)
	}

	return id, true, nil
}
