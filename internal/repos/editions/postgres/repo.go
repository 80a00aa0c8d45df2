package editions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/pgutils"
	"github.com/fastprodman/survivor/internal/repos/editions"
)

var _ editions.Editions = (*editionsRepo)(nil)

type editionsRepo struct{}

func New() *editionsRepo {
	return &editionsRepo{}
}

const editionColumns = `
	id, league_id, owner_id, competition_id, mode, start_round, end_round,
	entry_fee, config, status, lock_round, lock_at, created_at`

func scanEdition(row interface{ Scan(...any) error }) (domain.Edition, error) {
	var (
		e         domain.Edition
		endRound  sql.NullInt32
		lockRound sql.NullInt32
		lockAt    sql.NullTime
	)

	err := row.Scan(
		&e.ID, &e.LeagueID, &e.OwnerID, &e.CompetitionID, &e.Mode, &e.StartRound, &endRound,
		&e.EntryFee, &e.Config, &e.Status, &lockRound, &lockAt, &e.CreatedAt,
	)
	if err != nil {
		return domain.Edition{}, err
	}

	if endRound.Valid {
		e.EndRound = domain.Ptr(int(endRound.Int32))
	}
	if lockRound.Valid {
		e.LockRound = domain.Ptr(int(lockRound.Int32))
	}
	if lockAt.Valid {
		e.LockAt = domain.Ptr(lockAt.Time)
	}

	return e, nil
}

func (r *editionsRepo) Create(ctx context.Context, q pgutils.Querier, e domain.Edition) (int64, error) {
	var id int64

	err := q.QueryRowContext(ctx, `
		INSERT INTO editions (league_id, owner_id, competition_id, mode, start_round, end_round, entry_fee, config)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, e.LeagueID, e.OwnerID, e.CompetitionID, e.Mode, e.StartRound, e.EndRound, e.EntryFee, e.Config).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert edition: %w", err)
	}

	return id, nil
}

func (r *editionsRepo) Get(ctx context.Context, q pgutils.Querier, id int64) (domain.Edition, error) {
	e, err := scanEdition(q.QueryRowContext(ctx, `SELECT `+editionColumns+` FROM editions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Edition{}, editions.ErrEditionNotFound
		}

		return domain.Edition{}, fmt.Errorf("get edition: %w", err)
	}

	return e, nil
}

func (r *editionsRepo) GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (domain.Edition, error) {
	e, err := scanEdition(tx.QueryRowContext(ctx, `SELECT `+editionColumns+` FROM editions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Edition{}, editions.ErrEditionNotFound
		}

		return domain.Edition{}, fmt.Errorf("lock/get edition: %w", err)
	}

	return e, nil
}

func (r *editionsRepo) GetForShare(ctx context.Context, tx *sql.Tx, id int64) (domain.Edition, error) {
	e, err := scanEdition(tx.QueryRowContext(ctx, `SELECT `+editionColumns+` FROM editions WHERE id = $1 FOR SHARE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Edition{}, editions.ErrEditionNotFound
		}

		return domain.Edition{}, fmt.Errorf("share-lock edition: %w", err)
	}

	return e, nil
}
