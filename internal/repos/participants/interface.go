package participants

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/pgutils"
)

var ErrParticipantNotFound = fmt.Errorf("participant: %w", domain.ErrNotFound)

type Participants interface {
	// Create fails with domain.ErrAlreadyJoined when (user, edition) exists.
	Create(ctx context.Context, q pgutils.Querier, editionID, userID int64) (domain.Participant, error)
	Get(ctx context.Context, q pgutils.Querier, editionID, userID int64) (domain.Participant, error)
	// GetForShare reads the participant with a FOR SHARE row lock, so a
	// concurrent status change cannot slip between the read and tx commit.
	GetForShare(ctx context.Context, tx *sql.Tx, editionID, userID int64) (domain.Participant, error)
	ListByEdition(ctx context.Context, q pgutils.Querier, editionID int64) ([]domain.Participant, error)
	// LockActive locks and returns the ACTIVE participants among ids, in id order.
	LockActive(ctx context.Context, tx *sql.Tx, ids []int64) ([]domain.Participant, error)
	// Eliminate sets ELIMINATED on those of ids still ACTIVE; returns rows changed.
	Eliminate(ctx context.Context, q pgutils.Querier, ids []int64, round int) (int64, error)
	// SpendLifeline records round as the lifeline round for ids without one.
	SpendLifeline(ctx context.Context, q pgutils.Querier, ids []int64, round int) (int64, error)
	// Restore sets the participant ACTIVE again and forgives every round up
	// to the later of its elimination round and throughRound.
	Restore(ctx context.Context, q pgutils.Querier, editionID, userID int64, throughRound int) error
	// ListMissingPick returns ACTIVE participants joined before joinedBefore
	// with no pick for round, skipping those whose restore covers round.
	ListMissingPick(ctx context.Context, q pgutils.Querier, editionID int64, round int, joinedBefore time.Time) ([]int64, error)
}
