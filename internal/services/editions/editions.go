package editions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fastprodman/survivor/internal/config"
	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/pgutils"
	editionrepo "github.com/fastprodman/survivor/internal/repos/editions"
	pgeditions "github.com/fastprodman/survivor/internal/repos/editions/postgres"
	"github.com/fastprodman/survivor/internal/repos/matches"
	pgmatches "github.com/fastprodman/survivor/internal/repos/matches/postgres"
	"github.com/fastprodman/survivor/internal/repos/participants"
	pgparticipants "github.com/fastprodman/survivor/internal/repos/participants/postgres"
	"github.com/fastprodman/survivor/internal/repos/picks"
	pgpicks "github.com/fastprodman/survivor/internal/repos/picks/postgres"
	"github.com/fastprodman/survivor/internal/services/ledger"
	pickservice "github.com/fastprodman/survivor/internal/services/picks"
)

// Service is edition administration: creation, joining, deadlines and
// the manual participant override.
type Service struct {
	db           *sql.DB
	editions     editionrepo.Editions
	participants participants.Participants
	picks        picks.Picks
	matches      matches.Matches
	ledger       *ledger.Service
	cfg          config.PickConfig
	now          func() time.Time
}

func New(dbx *sql.DB, ledgerSvc *ledger.Service, cfg config.PickConfig) *Service {
	return &Service{
		db:           dbx,
		editions:     pgeditions.New(),
		participants: pgparticipants.New(),
		picks:        pgpicks.New(),
		matches:      pgmatches.New(),
		ledger:       ledgerSvc,
		cfg:          cfg,
		now:          time.Now,
	}
}

// CreateInput is what an owner supplies for a new edition.
type CreateInput struct {
	LeagueID      int64
	CompetitionID int64
	Mode          domain.Mode
	StartRound    int
	EndRound      *int
	EntryFee      int64
	Config        domain.EditionConfig
}

func (in CreateInput) validate() error {
	switch {
	case in.LeagueID <= 0 || in.CompetitionID <= 0:
		return errors.New("league and competition are required")
	case !in.Mode.Valid():
		return fmt.Errorf("unknown mode %q", in.Mode)
	case in.StartRound <= 0:
		return errors.New("start round must be positive")
	case in.EndRound != nil && *in.EndRound < in.StartRound:
		return errors.New("end round before start round")
	case in.EntryFee < 0:
		return errors.New("entry fee must not be negative")
	}

	return in.Config.Payout.Validate()
}

// Create stores a new OPEN edition owned by the actor.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in CreateInput) (domain.Edition, error) {
	err := in.validate()
	if err != nil {
		return domain.Edition{}, fmt.Errorf("create edition: %w: %v", domain.ErrInvalidInput, err)
	}

	if in.Config.Payout.Kind == "" {
		in.Config.Payout.Kind = domain.PayoutWinnerTakesAll
	}

	id, err := s.editions.Create(ctx, s.db, domain.Edition{
		LeagueID:      in.LeagueID,
		OwnerID:       actor.UserID,
		CompetitionID: in.CompetitionID,
		Mode:          in.Mode,
		StartRound:    in.StartRound,
		EndRound:      in.EndRound,
		EntryFee:      in.EntryFee,
		Config:        in.Config,
	})
	if err != nil {
		return domain.Edition{}, fmt.Errorf("create edition: %w", err)
	}

	slog.InfoContext(ctx, "edition created", "edition_id", id, "league_id", in.LeagueID, "mode", in.Mode)

	return s.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (domain.Edition, error) {
	e, err := s.editions.Get(ctx, s.db, id)
	if err != nil {
		return domain.Edition{}, fmt.Errorf("get edition: %w", err)
	}

	return e, nil
}

// Join enrolls the user and charges the entry fee in one transaction. The
// balance check runs under a per-user advisory lock so two joins cannot
// both spend the same funds.
func (s *Service) Join(ctx context.Context, userID, editionID int64) (domain.Participant, error) {
	var out domain.Participant

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		// 1) Edition must be open for joining; the share lock keeps a
		// concurrent closure from finishing between this read and commit
		e, err := s.editions.GetForShare(ctx, tx, editionID)
		if err != nil {
			return err
		}
		if e.Status != domain.EditionOpen {
			return fmt.Errorf("edition is %s: %w", e.Status, domain.ErrInvalidState)
		}

		// 2) Funds
		if e.EntryFee > 0 {
			err = pgutils.AdvisoryXactLock(ctx, tx, "balance", userID)
			if err != nil {
				return err
			}

			balance, err := s.ledger.BalanceWithin(ctx, tx, userID)
			if err != nil {
				return err
			}
			if balance < e.EntryFee {
				return fmt.Errorf("balance %d, fee %d: %w", balance, e.EntryFee, domain.ErrInsufficientFunds)
			}
		}

		// 3) Participant row; unique (user, edition)
		out, err = s.participants.Create(ctx, tx, editionID, userID)
		if err != nil {
			return err
		}

		// 4) Fee entry
		if e.EntryFee > 0 {
			_, err = s.ledger.AppendWithin(ctx, tx, domain.LedgerEntry{
				UserID:    domain.Ptr(userID),
				EditionID: domain.Ptr(editionID),
				Kind:      domain.EntryFee,
				Amount:    -e.EntryFee,
				Metadata:  map[string]any{"participant_id": out.ID},
			})
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return domain.Participant{}, fmt.Errorf("join edition: %w", err)
	}

	slog.InfoContext(ctx, "participant joined", "edition_id", editionID, "user_id", userID)

	return out, nil
}

// SetRoundDeadline stores a precomputed lock time for round.
func (s *Service) SetRoundDeadline(ctx context.Context, actor domain.Actor, editionID int64, round int, at time.Time) error {
	e, err := s.editions.Get(ctx, s.db, editionID)
	if err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}

	if !actor.CanManage(e) {
		return domain.ErrForbidden
	}
	if round < e.StartRound || e.PastEnd(round) || at.IsZero() {
		return fmt.Errorf("set deadline round %d: %w", round, domain.ErrInvalidInput)
	}

	err = s.editions.SetLock(ctx, s.db, editionID, round, at)
	if err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}

	return nil
}

// RestoreParticipant reverts an elimination. Administrators only. Every
// round that has kicked off by now is forgiven, so later reconciliation
// passes neither replay the eliminating pick nor apply sudden death to a
// round the participant could not pick in.
func (s *Service) RestoreParticipant(ctx context.Context, actor domain.Actor, editionID, userID int64) error {
	if !actor.IsAdmin {
		return domain.ErrForbidden
	}

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		e, err := s.editions.GetForUpdate(ctx, tx, editionID)
		if err != nil {
			return err
		}
		if e.Status == domain.EditionFinished {
			return domain.ErrAlreadyClosed
		}

		through, _, err := s.matches.CurrentRound(ctx, tx, e.CompetitionID, s.now())
		if err != nil {
			return err
		}

		err = s.participants.Restore(ctx, tx, editionID, userID, through)
		if errors.Is(err, participants.ErrParticipantNotFound) {
			return domain.ErrNotParticipant
		}

		return err
	})
	if err != nil {
		return fmt.Errorf("restore participant: %w", err)
	}

	slog.WarnContext(ctx, "participant restored by admin",
		"edition_id", editionID, "user_id", userID, "admin_id", actor.UserID)

	return nil
}

// ListRoundPicks lists the picks of round. With hidden picks on, a viewer
// sees only their own team until the round's deadline has passed; managers
// always see everything.
func (s *Service) ListRoundPicks(ctx context.Context, viewer domain.Actor, editionID int64, round int) ([]domain.RoundPick, error) {
	e, err := s.editions.Get(ctx, s.db, editionID)
	if err != nil {
		return nil, fmt.Errorf("list round picks: %w", err)
	}

	rows, err := s.picks.ListRound(ctx, s.db, editionID, round)
	if err != nil {
		return nil, fmt.Errorf("list round picks: %w", err)
	}

	reveal := !e.Config.Rules.HiddenPicks || viewer.CanManage(e)
	if !reveal {
		earliest, ok, err := s.matches.EarliestKickoff(ctx, s.db, e.CompetitionID, round)
		if err != nil {
			return nil, fmt.Errorf("list round picks: %w", err)
		}

		reveal = ok && s.now().After(pickservice.Deadline(e, round, earliest, s.cfg.DeadlineLead))
	}

	out := make([]domain.RoundPick, 0, len(rows))
	for _, r := range rows {
		rp := domain.RoundPick{UserID: r.UserID, Round: round}
		if reveal || r.UserID == viewer.UserID {
			rp.TeamID = domain.Ptr(r.TeamID)
		}
		out = append(out, rp)
	}

	return out, nil
}
