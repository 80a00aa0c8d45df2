package matches

import (
	"context"
	"fmt"

	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/pgutils"
)

func (r *matchesRepo) Insert(ctx context.Context, q pgutils.Querier, m domain.Match) (int64, error) {
	status := m.Status
	if status == "" {
		status = domain.MatchScheduled
	}

	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO matches (competition_id, round, home_team_id, away_team_id, kickoff_at, status, home_score, away_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, m.CompetitionID, m.Round, m.HomeTeamID, m.AwayTeamID, m.KickoffAt, status, m.HomeScore, m.AwayScore).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert match: %w", err)
	}

	return id, nil
}

func (r *matchesRepo) RecordResult(ctx context.Context, q pgutils.Querier, matchID int64, home, away int) error {
	res, err := q.ExecContext(ctx, `
		UPDATE matches
		SET status = 'FINISHED', home_score = $2, away_score = $3
		WHERE id = $1
	`, matchID, home, away)
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("match %d: %w", matchID, domain.ErrNotFound)
	}

	return nil
}
