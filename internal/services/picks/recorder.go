package picks

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
	"github.com/fastprodman/survivor/internal/metrics"
	"github.com/fastprodman/survivor/internal/repos/editions"
	pgeditions "github.com/fastprodman/survivor/internal/repos/editions/postgres"
	"github.com/fastprodman/survivor/internal/repos/matches"
	pgmatches "github.com/fastprodman/survivor/internal/repos/matches/postgres"
	"github.com/fastprodman/survivor/internal/repos/participants"
	pgparticipants "github.com/fastprodman/survivor/internal/repos/participants/postgres"
	pickrepo "github.com/fastprodman/survivor/internal/repos/picks"
	pgpicks "github.com/fastprodman/survivor/internal/repos/picks/postgres"
)

type Recorder struct {
	db           *sql.DB
	editions     editions.Editions
	participants participants.Participants
	picks        pickrepo.Picks
	matches      matches.Matches
	cfg          config.PickConfig
	now          func() time.Time
}

func New(dbx *sql.DB, cfg config.PickConfig) *Recorder {
	return &Recorder{
		db:           dbx,
		editions:     pgeditions.New(),
		participants: pgparticipants.New(),
		picks:        pgpicks.New(),
		matches:      pgmatches.New(),
		cfg:          cfg,
		now:          time.Now,
	}
}

// SubmitPick validates and stores the user's pick of teamID for their next
// round. All reads and the insert share one transaction; two racing
// submissions for the same round end with one pick and one ErrDuplicatePick.
// A submission that collides with a concurrent change to the edition or the
// participant (closure, start, elimination) is retried against the new state.
func (r *Recorder) SubmitPick(ctx context.Context, userID, editionID, teamID int64, allowPastDeadline bool) (domain.Pick, error) {
	var out domain.Pick

	err := pgutils.RetrySerialization(submitAttempts, func() error {
		var err error
		out, err = r.submit(ctx, userID, editionID, teamID, allowPastDeadline)
		return err
	})
	if err != nil {
		metrics.PicksSubmitted.WithLabelValues("rejected").Inc()
		return domain.Pick{}, fmt.Errorf("submit pick: %w", err)
	}

	metrics.PicksSubmitted.WithLabelValues("accepted").Inc()
	slog.DebugContext(ctx, "pick recorded",
		"edition_id", editionID, "user_id", userID, "round", out.Round, "team_id", teamID)

	return out, nil
}

const submitAttempts = 3

func (r *Recorder) submit(ctx context.Context, userID, editionID, teamID int64, allowPastDeadline bool) (domain.Pick, error) {
	var out domain.Pick

	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead}

	err := pgutils.WithTxOpts(ctx, r.db, opts, func(tx *sql.Tx) error {
		// 1) Edition must accept picks; share-locked so a closure cannot
		// finish the edition under this pick
		e, err := r.editions.GetForShare(ctx, tx, editionID)
		if err != nil {
			return err
		}
		if !e.Pickable() {
			return fmt.Errorf("edition is %s: %w", e.Status, domain.ErrInvalidState)
		}

		// 2) Participant, share-locked until commit
		p, err := r.participants.GetForShare(ctx, tx, editionID, userID)
		if err != nil {
			if errors.Is(err, participants.ErrParticipantNotFound) {
				return domain.ErrNotParticipant
			}
			return err
		}
		if p.Status != domain.ParticipantActive {
			return domain.ErrNotActive
		}

		// 3) Next round for this participant; forgiven rounds are skipped
		round := e.StartRound
		last, ok, err := r.picks.MaxRound(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if ok {
			round = last + 1
		}
		if p.RestoredRound != nil && *p.RestoredRound >= round {
			round = *p.RestoredRound + 1
		}
		if e.PastEnd(round) {
			return domain.ErrEditionComplete
		}

		// 4) Team must play in that round
		m, err := r.matches.FindForTeam(ctx, tx, e.CompetitionID, round, teamID)
		if err != nil {
			return err
		}

		// 5) Deadline
		if !allowPastDeadline {
			earliest, _, err := r.matches.EarliestKickoff(ctx, tx, e.CompetitionID, round)
			if err != nil {
				return err
			}

			deadline := Deadline(e, round, earliest, r.cfg.DeadlineLead)
			if Closed(r.now(), deadline, r.cfg.DeadlineGrace) {
				return fmt.Errorf("round %d closed at %s: %w", round, deadline.Format(time.RFC3339), domain.ErrDeadlinePassed)
			}
		}

		// 6) Duplicate
		dup, err := r.picks.Exists(ctx, tx, p.ID, round)
		if err != nil {
			return err
		}
		if dup {
			return domain.ErrDuplicatePick
		}

		// 7) No-repeat rule
		if e.Config.Rules.NoRepeatTeam {
			used, err := r.picks.TeamUsed(ctx, tx, p.ID, teamID, round)
			if err != nil {
				return err
			}
			if used {
				return domain.ErrTeamAlreadyUsed
			}
		}

		// 8) Persist; the unique key settles a lost race
		out, err = r.picks.Insert(ctx, tx, domain.Pick{
			ParticipantID: p.ID,
			EditionID:     e.ID,
			Round:         round,
			TeamID:        teamID,
			MatchID:       m.ID,
		})

		return err
	})

	return out, err
}
