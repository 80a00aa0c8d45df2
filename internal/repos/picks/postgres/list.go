package picks

import (
	"context"
	"fmt"

	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/pgutils"
	"github.com/fastprodman/survivor/internal/repos/picks"
)

func (r *picksRepo) ListForMatch(ctx context.Context, q pgutils.Querier, editionID, matchID int64, round int) ([]domain.Pick, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT k.id, k.participant_id, k.edition_id, k.round, k.team_id, k.match_id, k.created_at
		FROM picks k
		JOIN participants p ON p.id = k.participant_id
		WHERE k.edition_id = $1
		  AND k.match_id = $2
		  AND k.round = $3
		  AND p.status = 'ACTIVE'
		ORDER BY k.participant_id
	`, editionID, matchID, round)
	if err != nil {
		return nil, fmt.Errorf("list match picks: %w", err)
	}
	defer rows.Close()

	var out []domain.Pick
	for rows.Next() {
		var p domain.Pick
		err = rows.Scan(&p.ID, &p.ParticipantID, &p.EditionID, &p.Round, &p.TeamID, &p.MatchID, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan pick: %w", err)
		}
		out = append(out, p)
	}

	return out, rows.Err()
}

func (r *picksRepo) ListRound(ctx context.Context, q pgutils.Querier, editionID int64, round int) ([]picks.RoundPick, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT p.user_id, k.team_id
		FROM picks k
		JOIN participants p ON p.id = k.participant_id
		WHERE k.edition_id = $1
		  AND k.round = $2
		ORDER BY p.user_id
	`, editionID, round)
	if err != nil {
		return nil, fmt.Errorf("list round picks: %w", err)
	}
	defer rows.Close()

	var out []picks.RoundPick
	for rows.Next() {
		var rp picks.RoundPick
		err = rows.Scan(&rp.UserID, &rp.TeamID)
		if err != nil {
			return nil, fmt.Errorf("scan round pick: %w", err)
		}
		out = append(out, rp)
	}

	return out, rows.Err()
}

func (r *picksRepo) CountByParticipant(ctx context.Context, q pgutils.Querier, editionID int64) (map[int64]int, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT p.id, COUNT(k.id)
		FROM participants p
		LEFT JOIN picks k ON k.participant_id = p.id
		WHERE p.edition_id = $1
		GROUP BY p.id
	`, editionID)
	if err != nil {
		return nil, fmt.Errorf("count picks: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var (
			id    int64
			count int
		)
		err = rows.Scan(&id, &count)
		if err != nil {
			return nil, fmt.Errorf("scan pick count: %w", err)
		}
		counts[id] = count
	}

	return counts, rows.Err()
}
