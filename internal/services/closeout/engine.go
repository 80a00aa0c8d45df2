package closeout

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/pgutils"
	"github.com/fastprodman/survivor/internal/metrics"
	"github.com/fastprodman/survivor/internal/repos/editions"
	pgeditions "github.com/fastprodman/survivor/internal/repos/editions/postgres"
	"github.com/fastprodman/survivor/internal/repos/participants"
	pgparticipants "github.com/fastprodman/survivor/internal/repos/participants/postgres"
	"github.com/fastprodman/survivor/internal/repos/picks"
	pgpicks "github.com/fastprodman/survivor/internal/repos/picks/postgres"
	"github.com/fastprodman/survivor/internal/services/ledger"
)

type Engine struct {
	db           *sql.DB
	editions     editions.Editions
	participants participants.Participants
	picks        picks.Picks
	ledger       *ledger.Service
	ranker       Ranker
}

// New builds an engine; a nil ranker means ByPicks.
func New(dbx *sql.DB, ledgerSvc *ledger.Service, ranker Ranker) *Engine {
	if ranker == nil {
		ranker = ByPicks
	}

	return &Engine{
		db:           dbx,
		editions:     pgeditions.New(),
		participants: pgparticipants.New(),
		picks:        pgpicks.New(),
		ledger:       ledgerSvc,
		ranker:       ranker,
	}
}

type Payout struct {
	UserID int64 `json:"user_id"`
	Rank   int   `json:"rank"`
	Amount int64 `json:"amount"`
}

// Closure describes what CloseEdition wrote.
type Closure struct {
	EditionID   int64    `json:"edition_id"`
	Pool        int64    `json:"pool"`
	Inherited   int64    `json:"inherited"`
	Total       int64    `json:"total"`
	Payouts     []Payout `json:"payouts"`
	RolledOver  int64    `json:"rolled_over"`
	Destination *int64   `json:"destination_edition_id,omitempty"`
}

// CloseEdition settles the edition and marks it FINISHED. Everything runs in
// one transaction holding the edition row and a (league, mode) advisory
// lock, so concurrent closures cannot pay twice or claim the same carry.
func (en *Engine) CloseEdition(ctx context.Context, editionID int64, actor domain.Actor) (Closure, error) {
	var c Closure

	err := pgutils.WithTx(ctx, en.db, func(tx *sql.Tx) error {
		var err error
		c, err = en.close(ctx, tx, editionID, actor)
		return err
	})
	if err != nil {
		return Closure{}, fmt.Errorf("close edition %d: %w", editionID, err)
	}

	outcome := metrics.OutcomePayout
	switch {
	case len(c.Payouts) > 0:
	case c.Destination != nil:
		outcome = metrics.OutcomeRolloverForward
	default:
		outcome = metrics.OutcomeRolloverPending
	}
	metrics.Closures.WithLabelValues(outcome).Inc()

	slog.InfoContext(ctx, "edition closed",
		"edition_id", editionID, "outcome", outcome, "total", c.Total,
		"winners", len(c.Payouts), "rolled_over", c.RolledOver, "closed_by", actor.UserID)

	return c, nil
}

//nolint:gocognit,cyclop
func (en *Engine) close(ctx context.Context, tx *sql.Tx, editionID int64, actor domain.Actor) (Closure, error) {
	c := Closure{EditionID: editionID}

	// 1) Lock edition; authorize; terminal check
	e, err := en.editions.GetForUpdate(ctx, tx, editionID)
	if err != nil {
		return c, err
	}
	if !actor.CanManage(e) {
		return c, domain.ErrForbidden
	}
	if e.Status == domain.EditionFinished {
		return c, domain.ErrAlreadyClosed
	}

	err = pgutils.AdvisoryXactLock(ctx, tx, "rollover:"+string(e.Mode), e.LeagueID)
	if err != nil {
		return c, err
	}

	// 2) Participants
	ps, err := en.participants.ListByEdition(ctx, tx, editionID)
	if err != nil {
		return c, err
	}
	if len(ps) == 0 {
		return c, domain.ErrNoParticipants
	}

	var active []domain.Participant
	for _, p := range ps {
		if p.Status == domain.ParticipantActive {
			active = append(active, p)
		}
	}

	// 3) Contested
	if e.Mode == domain.ModeElimination && len(active) > 1 {
		return c, fmt.Errorf("%d active: %w", len(active), domain.ErrStillContested)
	}

	// 4) Everyone must have engaged. A participant eliminated without a
	// single pick was removed by sudden death and can never pick again.
	counts, err := en.picks.CountByParticipant(ctx, tx, editionID)
	if err != nil {
		return c, err
	}
	for _, p := range ps {
		if p.Status == domain.ParticipantEliminated && p.EliminatedRound != nil {
			continue
		}
		if counts[p.ID] == 0 {
			return c, fmt.Errorf("user %d: %w", p.UserID, domain.ErrPendingPicks)
		}
	}

	// 5) Winners, best first
	winners := active
	if e.Mode == domain.ModeLeague {
		standings := make([]Standing, 0, len(active))
		for _, p := range active {
			standings = append(standings, Standing{Participant: p, Picks: counts[p.ID]})
		}

		winners = make([]domain.Participant, 0, len(active))
		for _, s := range en.ranker.Rank(standings) {
			winners = append(winners, s.Participant)
		}
	}

	// 6) Total = pool + inherited rollover; pending carry is claimed here
	c.Pool, err = en.ledger.PoolWithin(ctx, tx, editionID)
	if err != nil {
		return c, err
	}

	c.Inherited, err = en.ledger.InheritedWithin(ctx, tx, editionID)
	if err != nil {
		return c, err
	}

	pending, err := en.ledger.RolloverWithin(ctx, tx, e.LeagueID, e.Mode)
	if err != nil {
		return c, err
	}
	if pending > 0 {
		_, err = en.ledger.AppendWithin(ctx, tx, domain.LedgerEntry{
			LeagueID:  domain.Ptr(e.LeagueID),
			EditionID: domain.Ptr(editionID),
			Kind:      domain.EntryRolloverIn,
			Amount:    pending,
			Metadata:  map[string]any{"claimed_by": "closure"},
		})
		if err != nil {
			return c, err
		}
		c.Inherited += pending
	}

	c.Total = c.Pool + c.Inherited

	// 7) Payouts, or 8) rollover
	if len(winners) > 0 {
		err = en.payOut(ctx, tx, e, winners, actor, &c)
	} else {
		err = en.rollOver(ctx, tx, e, &c)
	}
	if err != nil {
		return c, err
	}

	var allocated int64
	for _, p := range c.Payouts {
		allocated += p.Amount
	}
	if allocated+c.RolledOver > c.Total {
		return c, fmt.Errorf("%w: allocated %d of %d", domain.ErrIntegrity, allocated+c.RolledOver, c.Total)
	}

	// 9) Terminal
	err = en.editions.MarkFinished(ctx, tx, editionID)
	if err != nil {
		return c, err
	}

	return c, nil
}

func (en *Engine) payOut(ctx context.Context, tx *sql.Tx, e domain.Edition, winners []domain.Participant, actor domain.Actor, c *Closure) error {
	shares := Split(e.Config.Payout, c.Total, len(winners))

	for i, w := range winners {
		if shares[i] <= 0 {
			continue
		}

		_, err := en.ledger.AppendWithin(ctx, tx, domain.LedgerEntry{
			UserID:    domain.Ptr(w.UserID),
			EditionID: domain.Ptr(e.ID),
			Kind:      domain.EntryPrizePayout,
			Amount:    shares[i],
			Metadata: map[string]any{
				"rank":        i + 1,
				"share_basis": c.Total,
				"closed_by":   actor.UserID,
			},
		})
		if err != nil {
			return err
		}

		c.Payouts = append(c.Payouts, Payout{UserID: w.UserID, Rank: i + 1, Amount: shares[i]})
	}

	return nil
}

// rollOver carries the whole total forward: to the oldest other OPEN edition
// of the same league and mode if there is one, otherwise into the pending
// carry that the next closure in that (league, mode) claims.
func (en *Engine) rollOver(ctx context.Context, tx *sql.Tx, e domain.Edition, c *Closure) error {
	if c.Total <= 0 {
		return nil
	}

	dest, found, err := en.editions.FindOpenSibling(ctx, tx, e.LeagueID, e.Mode, e.ID)
	if err != nil {
		return err
	}

	meta := map[string]any{}
	if found {
		meta["destination_edition_id"] = dest
	}

	_, err = en.ledger.AppendWithin(ctx, tx, domain.LedgerEntry{
		LeagueID:  domain.Ptr(e.LeagueID),
		EditionID: domain.Ptr(e.ID),
		Kind:      domain.EntryRolloverOut,
		Amount:    -c.Total,
		Metadata:  meta,
	})
	if err != nil {
		return err
	}
	c.RolledOver = c.Total

	if !found {
		return nil
	}

	_, err = en.ledger.AppendWithin(ctx, tx, domain.LedgerEntry{
		LeagueID:  domain.Ptr(e.LeagueID),
		EditionID: domain.Ptr(dest),
		Kind:      domain.EntryRolloverIn,
		Amount:    c.Total,
		Metadata:  map[string]any{"source_edition_id": e.ID},
	})
	if err != nil {
		return err
	}
	c.Destination = domain.Ptr(dest)

	return nil
}
