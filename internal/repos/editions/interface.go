package editions

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/pgutils"
)

var ErrEditionNotFound = fmt.Errorf("edition: %w", domain.ErrNotFound)

type Editions interface {
	Create(ctx context.Context, q pgutils.Querier, e domain.Edition) (int64, error)
	Get(ctx context.Context, q pgutils.Querier, id int64) (domain.Edition, error)
	// GetForUpdate reads the edition and locks its row until tx ends.
	GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (domain.Edition, error)
	// GetForShare reads the edition with a FOR SHARE lock: writers that add
	// to the edition (join, pick) run concurrently with each other but wait
	// for a closure holding FOR UPDATE, and see its result.
	GetForShare(ctx context.Context, tx *sql.Tx, id int64) (domain.Edition, error)
	// ListReconcilable returns ids of OPEN and IN_PROGRESS editions.
	ListReconcilable(ctx context.Context, q pgutils.Querier) ([]int64, error)
	// MarkInProgress moves an OPEN edition to IN_PROGRESS and reports
	// whether this call made the change.
	MarkInProgress(ctx context.Context, q pgutils.Querier, id int64) (bool, error)
	MarkFinished(ctx context.Context, q pgutils.Querier, id int64) error
	SetLock(ctx context.Context, q pgutils.Querier, id int64, round int, at time.Time) error
	// FindOpenSibling returns the oldest other OPEN edition of the same
	// league and mode.
	FindOpenSibling(ctx context.Context, q pgutils.Querier, leagueID int64, mode domain.Mode, excludeID int64) (int64, bool, error)
}
