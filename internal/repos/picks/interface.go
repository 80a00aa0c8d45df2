package picks

import (
	"context"
	"database/sql"

	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/pgutils"
)

type Picks interface {
	// Insert fails with domain.ErrDuplicatePick when the participant already
	// picked for the round.
	Insert(ctx context.Context, tx *sql.Tx, p domain.Pick) (domain.Pick, error)
	// MaxRound returns the highest round the participant picked; false when
	// there are no picks yet.
	MaxRound(ctx context.Context, q pgutils.Querier, participantID int64) (int, bool, error)
	Exists(ctx context.Context, q pgutils.Querier, participantID int64, round int) (bool, error)
	// TeamUsed reports whether team appears in a pick before round.
	TeamUsed(ctx context.Context, q pgutils.Querier, participantID, teamID int64, beforeRound int) (bool, error)
	// ListForMatch returns picks of round on match made by ACTIVE
	// participants of the edition.
	ListForMatch(ctx context.Context, q pgutils.Querier, editionID, matchID int64, round int) ([]domain.Pick, error)
	ListRound(ctx context.Context, q pgutils.Querier, editionID int64, round int) ([]RoundPick, error)
	// CountByParticipant returns the number of picks per participant id,
	// including participants with none.
	CountByParticipant(ctx context.Context, q pgutils.Querier, editionID int64) (map[int64]int, error)
}

// RoundPick is one row of a round listing.
type RoundPick struct {
	UserID int64
	TeamID int64
}
