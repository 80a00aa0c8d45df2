package picks

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/pgutils"
	"github.com/fastprodman/survivor/internal/repos/picks"
)

var _ picks.Picks = (*picksRepo)(nil)

type picksRepo struct{}

func New() *picksRepo {
	return &picksRepo{}
}

func (r *picksRepo) Insert(ctx context.Context, tx *sql.Tx, p domain.Pick) (domain.Pick, error) {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO picks (participant_id, edition_id, round, team_id, match_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, p.ParticipantID, p.EditionID, p.Round, p.TeamID, p.MatchID).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if pgutils.HasCode(err, pgutils.CodeUniqueViolation) {
			return domain.Pick{}, domain.ErrDuplicatePick
		}

		return domain.Pick{}, fmt.Errorf("insert pick: %w", err)
	}

	return p, nil
}

func (r *picksRepo) MaxRound(ctx context.Context, q pgutils.Querier, participantID int64) (int, bool, error) {
	var round sql.NullInt32

	err := q.QueryRowContext(ctx, `
		SELECT MAX(round) FROM picks WHERE participant_id = $1
	`, participantID).Scan(&round)
	if err != nil {
		return 0, false, fmt.Errorf("max pick round: %w", err)
	}

	return int(round.Int32), round.Valid, nil
}

func (r *picksRepo) Exists(ctx context.Context, q pgutils.Querier, participantID int64, round int) (bool, error) {
	var exists bool

	err := q.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM picks WHERE participant_id = $1 AND round = $2)
	`, participantID, round).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("pick exists: %w", err)
	}

	return exists, nil
}

func (r *picksRepo) TeamUsed(ctx context.Context, q pgutils.Querier, participantID, teamID int64, beforeRound int) (bool, error) {
	var used bool

	err := q.QueryRowContext(ctx, `
		SELECT EXISTS (
		    SELECT 1 FROM picks
		    WHERE participant_id = $1
		      AND team_id = $2
		      AND round < $3
		)
	`, participantID, teamID, beforeRound).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("team used: %w", err)
	}

	return used, nil
}
