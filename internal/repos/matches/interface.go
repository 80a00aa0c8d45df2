package matches

import (
	"context"
	"time"

	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/pgutils"
)

// Matches reads the fixtures table kept in sync with the results feed. Insert
// and RecordResult are the feed's write path.
type Matches interface {
	// CurrentRound is the highest round with a match kicked off at or before
	// now; false when nothing has kicked off.
	CurrentRound(ctx context.Context, q pgutils.Querier, competitionID int64, now time.Time) (int, bool, error)
	// FindForTeam returns the non-postponed match of round that team plays
	// in, or domain.ErrTeamNotScheduled.
	FindForTeam(ctx context.Context, q pgutils.Querier, competitionID int64, round int, teamID int64) (domain.Match, error)
	EarliestKickoff(ctx context.Context, q pgutils.Querier, competitionID int64, round int) (time.Time, bool, error)
	// ListReconcilable returns finished, scored matches of round that kicked
	// off at or before cutoff.
	ListReconcilable(ctx context.Context, q pgutils.Querier, competitionID int64, round int, cutoff time.Time) ([]domain.Match, error)
	CountRound(ctx context.Context, q pgutils.Querier, competitionID int64, round int) (int, error)

	Insert(ctx context.Context, q pgutils.Querier, m domain.Match) (int64, error)
	RecordResult(ctx context.Context, q pgutils.Querier, matchID int64, home, away int) error
}
