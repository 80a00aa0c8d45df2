package participants

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/pgutils"
	"github.com/fastprodman/survivor/internal/repos/participants"
)

func (r *participantsRepo) LockActive(ctx context.Context, tx *sql.Tx, ids []int64) ([]domain.Participant, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT `+participantColumns+`
		FROM participants
		WHERE id = ANY($1)
		  AND status = 'ACTIVE'
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("lock active participants: %w", err)
	}

	return scanParticipants(rows)
}

func (r *participantsRepo) Eliminate(ctx context.Context, q pgutils.Querier, ids []int64, round int) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	res, err := q.ExecContext(ctx, `
		UPDATE participants
		SET status = 'ELIMINATED', eliminated_round = $2
		WHERE id = ANY($1)
		  AND status = 'ACTIVE'
	`, ids, round)
	if err != nil {
		return 0, fmt.Errorf("eliminate participants: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return affected, nil
}

func (r *participantsRepo) SpendLifeline(ctx context.Context, q pgutils.Querier, ids []int64, round int) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	res, err := q.ExecContext(ctx, `
		UPDATE participants
		SET lifeline_round = $2
		WHERE id = ANY($1)
		  AND status = 'ACTIVE'
		  AND lifeline_round IS NULL
	`, ids, round)
	if err != nil {
		return 0, fmt.Errorf("spend lifeline: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return affected, nil
}

func (r *participantsRepo) Restore(ctx context.Context, q pgutils.Querier, editionID, userID int64, throughRound int) error {
	res, err := q.ExecContext(ctx, `
		UPDATE participants
		SET status = 'ACTIVE',
		    eliminated_round = NULL,
		    restored_round = GREATEST(COALESCE(eliminated_round, 0), COALESCE(restored_round, 0), $3)
		WHERE edition_id = $1
		  AND user_id = $2
	`, editionID, userID, throughRound)
	if err != nil {
		return fmt.Errorf("restore participant: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return participants.ErrParticipantNotFound
	}

	return nil
}

func (r *participantsRepo) ListMissingPick(
	ctx context.Context, q pgutils.Querier, editionID int64, round int, joinedBefore time.Time,
) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT p.id
		FROM participants p
		WHERE p.edition_id = $1
		  AND p.status = 'ACTIVE'
		  AND p.joined_at < $3
		  AND (p.restored_round IS NULL OR p.restored_round < $2)
		  AND NOT EXISTS (
		      SELECT 1 FROM picks k
		      WHERE k.participant_id = p.id
		        AND k.round = $2
		  )
		ORDER BY p.id
	`, editionID, round, joinedBefore)
	if err != nil {
		return nil, fmt.Errorf("list missing picks: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		err = rows.Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("scan participant id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
