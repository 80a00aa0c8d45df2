package matches

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/pgutils"
	"github.com/fastprodman/survivor/internal/repos/matches"
)

var _ matches.Matches = (*matchesRepo)(nil)

type matchesRepo struct{}

func New() *matchesRepo {
	return &matchesRepo{}
}

const matchColumns = `id, competition_id, round, home_team_id, away_team_id, kickoff_at, status, home_score, away_score`

func scanMatch(row interface{ Scan(...any) error }) (domain.Match, error) {
	var (
		m          domain.Match
		home, away sql.NullInt32
	)

	err := row.Scan(&m.ID, &m.CompetitionID, &m.Round, &m.HomeTeamID, &m.AwayTeamID, &m.KickoffAt, &m.Status, &home, &away)
	if err != nil {
		return domain.Match{}, err
	}

	if home.Valid {
		m.HomeScore = domain.Ptr(int(home.Int32))
	}
	if away.Valid {
		m.AwayScore = domain.Ptr(int(away.Int32))
	}

	return m, nil
}

func (r *matchesRepo) CurrentRound(ctx context.Context, q pgutils.Querier, competitionID int64, now time.Time) (int, bool, error) {
	var round sql.NullInt32

	err := q.QueryRowContext(ctx, `
		SELECT MAX(round)
		FROM matches
		WHERE competition_id = $1
		  AND kickoff_at <= $2
	`, competitionID, now).Scan(&round)
	if err != nil {
		return 0, false, fmt.Errorf("current round: %w", err)
	}

	return int(round.Int32), round.Valid, nil
}

func (r *matchesRepo) FindForTeam(ctx context.Context, q pgutils.Querier, competitionID int64, round int, teamID int64) (domain.Match, error) {
	m, err := scanMatch(q.QueryRowContext(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE competition_id = $1
		  AND round = $2
		  AND (home_team_id = $3 OR away_team_id = $3)
		  AND status <> 'POSTPONED'
		ORDER BY kickoff_at
		LIMIT 1
	`, competitionID, round, teamID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Match{}, domain.ErrTeamNotScheduled
		}

		return domain.Match{}, fmt.Errorf("find match for team: %w", err)
	}

	return m, nil
}

func (r *matchesRepo) EarliestKickoff(ctx context.Context, q pgutils.Querier, competitionID int64, round int) (time.Time, bool, error) {
	var at sql.NullTime

	err := q.QueryRowContext(ctx, `
		SELECT MIN(kickoff_at)
		FROM matches
		WHERE competition_id = $1
		  AND round = $2
		  AND status <> 'POSTPONED'
	`, competitionID, round).Scan(&at)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("earliest kickoff: %w", err)
	}

	return at.Time, at.Valid, nil
}

func (r *matchesRepo) ListReconcilable(
	ctx context.Context, q pgutils.Querier, competitionID int64, round int, cutoff time.Time,
) ([]domain.Match, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE competition_id = $1
		  AND round = $2
		  AND status = 'FINISHED'
		  AND home_score IS NOT NULL
		  AND away_score IS NOT NULL
		  AND kickoff_at <= $3
		ORDER BY kickoff_at, id
	`, competitionID, round, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list reconcilable matches: %w", err)
	}
	defer rows.Close()

	var out []domain.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, m)
	}

	return out, rows.Err()
}

func (r *matchesRepo) CountRound(ctx context.Context, q pgutils.Querier, competitionID int64, round int) (int, error) {
	var n int

	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM matches
		WHERE competition_id = $1
		  AND round = $2
		  AND status <> 'POSTPONED'
	`, competitionID, round).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count round matches: %w", err)
	}

	return n, nil
}
