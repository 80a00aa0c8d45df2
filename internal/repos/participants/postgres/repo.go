package participants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/pgutils"
	"github.com/fastprodman/survivor/internal/repos/participants"
)

var _ participants.Participants = (*participantsRepo)(nil)

type participantsRepo struct{}

func New() *participantsRepo {
	return &participantsRepo{}
}

const participantColumns = `id, edition_id, user_id, status, lifeline_round, eliminated_round, restored_round, joined_at`

func scanParticipant(row interface{ Scan(...any) error }) (domain.Participant, error) {
	var (
		p          domain.Participant
		lifeline   sql.NullInt32
		eliminated sql.NullInt32
		restored   sql.NullInt32
	)

	err := row.Scan(&p.ID, &p.EditionID, &p.UserID, &p.Status, &lifeline, &eliminated, &restored, &p.JoinedAt)
	if err != nil {
		return domain.Participant{}, err
	}

	if lifeline.Valid {
		p.LifelineRound = domain.Ptr(int(lifeline.Int32))
	}
	if eliminated.Valid {
		p.EliminatedRound = domain.Ptr(int(eliminated.Int32))
	}
	if restored.Valid {
		p.RestoredRound = domain.Ptr(int(restored.Int32))
	}

	return p, nil
}

func scanParticipants(rows *sql.Rows) ([]domain.Participant, error) {
	defer rows.Close()

	var out []domain.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, p)
	}

	return out, rows.Err()
}

func (r *participantsRepo) Create(ctx context.Context, q pgutils.Querier, editionID, userID int64) (domain.Participant, error) {
	p, err := scanParticipant(q.QueryRowContext(ctx, `
		INSERT INTO participants (edition_id, user_id)
		VALUES ($1, $2)
		RETURNING `+participantColumns, editionID, userID))
	if err != nil {
		if pgutils.HasCode(err, pgutils.CodeUniqueViolation) {
			return domain.Participant{}, domain.ErrAlreadyJoined
		}

		return domain.Participant{}, fmt.Errorf("insert participant: %w", err)
	}

	return p, nil
}

func (r *participantsRepo) Get(ctx context.Context, q pgutils.Querier, editionID, userID int64) (domain.Participant, error) {
	return r.get(ctx, q, editionID, userID, "")
}

func (r *participantsRepo) GetForShare(ctx context.Context, tx *sql.Tx, editionID, userID int64) (domain.Participant, error) {
	return r.get(ctx, tx, editionID, userID, "FOR SHARE")
}

func (r *participantsRepo) get(ctx context.Context, q pgutils.Querier, editionID, userID int64, lock string) (domain.Participant, error) {
	p, err := scanParticipant(q.QueryRowContext(ctx, `
		SELECT `+participantColumns+`
		FROM participants
		WHERE edition_id = $1
		  AND user_id = $2
		`+lock, editionID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Participant{}, participants.ErrParticipantNotFound
		}

		return domain.Participant{}, fmt.Errorf("get participant: %w", err)
	}

	return p, nil
}

func (r *participantsRepo) ListByEdition(ctx context.Context, q pgutils.Querier, editionID int64) ([]domain.Participant, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+participantColumns+`
		FROM participants
		WHERE edition_id = $1
		ORDER BY id
	`, editionID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	return scanParticipants(rows)
}
