package picks

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fastprodman/survivor/internal/config"
	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/pgtestutil"
	"github.com/fastprodman/survivor/internal/services/closeout"
	"github.com/fastprodman/survivor/internal/services/ledger"
	"github.com/fastprodman/survivor/internal/testfixtures"
)

const (
	teamA int64 = 10
	teamB int64 = 11
	teamC int64 = 12
	teamD int64 = 13
)

type pickWorld struct {
	db      *sql.DB
	rec     *Recorder
	edition domain.Edition
	now     time.Time
}

// newPickWorld seeds an edition over rounds 1-3 with kickoffs two, nine and
// sixteen days after now. Round 1 is A-B, round 2 A-C and B-D, round 3 C-D.
func newPickWorld(t *testing.T, e domain.Edition) pickWorld {
	t.Helper()

	db := pgtestutil.NewTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)

	if e.EndRound == nil {
		e.EndRound = domain.Ptr(3)
	}
	e = testfixtures.Edition(t, db, e)

	day := 24 * time.Hour
	testfixtures.Match(t, db, domain.Match{Round: 1, HomeTeamID: teamA, AwayTeamID: teamB, KickoffAt: now.Add(2 * day)})
	testfixtures.Match(t, db, domain.Match{Round: 2, HomeTeamID: teamA, AwayTeamID: teamC, KickoffAt: now.Add(9 * day)})
	testfixtures.Match(t, db, domain.Match{Round: 2, HomeTeamID: teamB, AwayTeamID: teamD, KickoffAt: now.Add(9 * day)})
	testfixtures.Match(t, db, domain.Match{Round: 3, HomeTeamID: teamC, AwayTeamID: teamD, KickoffAt: now.Add(16 * day)})

	rec := New(db, config.DefaultPickConfig())
	rec.now = func() time.Time { return now }

	return pickWorld{db: db, rec: rec, edition: e, now: now}
}

func TestRecorder_SubmitPick_RoundProgression(t *testing.T) {
	t.Parallel()

	w := newPickWorld(t, domain.Edition{})
	testfixtures.Join(t, w.db, w.edition.ID, 1)
	ctx := t.Context()

	first, err := w.rec.SubmitPick(ctx, 1, w.edition.ID, teamA, false)
	if err != nil {
		t.Fatalf("first pick: %v", err)
	}
	if first.Round != 1 {
		t.Fatalf("first pick round: want 1, got %d", first.Round)
	}

	second, err := w.rec.SubmitPick(ctx, 1, w.edition.ID, teamA, false)
	if err != nil {
		t.Fatalf("second pick: %v", err)
	}
	if second.Round != 2 {
		t.Fatalf("second pick round: want 2, got %d", second.Round)
	}

	// team A does not play in round 3
	_, err = w.rec.SubmitPick(ctx, 1, w.edition.ID, teamA, false)
	if !errors.Is(err, domain.ErrTeamNotScheduled) {
		t.Fatalf("third pick: want ErrTeamNotScheduled, got %v", err)
	}

	_, err = w.rec.SubmitPick(ctx, 1, w.edition.ID, teamC, false)
	if err != nil {
		t.Fatalf("third pick: %v", err)
	}

	_, err = w.rec.SubmitPick(ctx, 1, w.edition.ID, teamD, false)
	if !errors.Is(err, domain.ErrEditionComplete) {
		t.Fatalf("past end round: want ErrEditionComplete, got %v", err)
	}
}

func TestRecorder_SubmitPick_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		edition domain.Edition
		setup   func(t *testing.T, w pickWorld)
		userID  int64
		team    int64
		wantErr error
	}{
		{
			name:    "edition_finished",
			edition: domain.Edition{Status: domain.EditionFinished},
			setup:   func(t *testing.T, w pickWorld) { testfixtures.Join(t, w.db, w.edition.ID, 1) },
			userID:  1,
			team:    teamA,
			wantErr: domain.ErrInvalidState,
		},
		{
			name:    "not_participant",
			setup:   func(t *testing.T, w pickWorld) {},
			userID:  1,
			team:    teamA,
			wantErr: domain.ErrNotParticipant,
		},
		{
			name: "eliminated",
			setup: func(t *testing.T, w pickWorld) {
				testfixtures.Join(t, w.db, w.edition.ID, 1)
				_, err := w.db.Exec(`UPDATE participants SET status = 'ELIMINATED' WHERE user_id = 1`)
				if err != nil {
					t.Fatalf("eliminate: %v", err)
				}
			},
			userID:  1,
			team:    teamA,
			wantErr: domain.ErrNotActive,
		},
		{
			name:    "team_not_in_round",
			setup:   func(t *testing.T, w pickWorld) { testfixtures.Join(t, w.db, w.edition.ID, 1) },
			userID:  1,
			team:    teamC,
			wantErr: domain.ErrTeamNotScheduled,
		},
		{
			name:    "no_repeat_team",
			edition: domain.Edition{Config: domain.EditionConfig{Rules: domain.Rules{NoRepeatTeam: true}}},
			setup: func(t *testing.T, w pickWorld) {
				p := testfixtures.Join(t, w.db, w.edition.ID, 1)
				var matchID int64
				err := w.db.QueryRow(`SELECT id FROM matches WHERE round = 1`).Scan(&matchID)
				if err != nil {
					t.Fatalf("find match: %v", err)
				}
				testfixtures.Pick(t, w.db, p, 1, teamA, matchID)
			},
			userID:  1,
			team:    teamA,
			wantErr: domain.ErrTeamAlreadyUsed,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := newPickWorld(t, tt.edition)
			tt.setup(t, w)

			_, err := w.rec.SubmitPick(t.Context(), tt.userID, w.edition.ID, tt.team, false)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("want %v, got %v", tt.wantErr, err)
			}

			n := testfixtures.CountRows(t, w.db, `SELECT COUNT(*) FROM picks WHERE round > 1`)
			if n != 0 {
				t.Fatalf("rejected pick was stored")
			}
		})
	}
}

func TestRecorder_SubmitPick_DeadlineOverride(t *testing.T) {
	t.Parallel()

	w := newPickWorld(t, domain.Edition{})
	testfixtures.Join(t, w.db, w.edition.ID, 1)
	ctx := t.Context()

	// round 1 kicks off in two days; move the clock past kickoff-1h+grace
	w.rec.now = func() time.Time { return w.now.Add(48*time.Hour - time.Hour + 3*time.Minute) }

	_, err := w.rec.SubmitPick(ctx, 1, w.edition.ID, teamA, false)
	if !errors.Is(err, domain.ErrDeadlinePassed) {
		t.Fatalf("late pick: want ErrDeadlinePassed, got %v", err)
	}

	p, err := w.rec.SubmitPick(ctx, 1, w.edition.ID, teamA, true)
	if err != nil {
		t.Fatalf("late pick with override: %v", err)
	}
	if p.Round != 1 {
		t.Fatalf("override pick round: want 1, got %d", p.Round)
	}
}

func TestRecorder_SubmitPick_StoredLockTime(t *testing.T) {
	t.Parallel()

	w := newPickWorld(t, domain.Edition{})
	testfixtures.Join(t, w.db, w.edition.ID, 1)

	// lock round 1 an hour ago, well before the default deadline
	_, err := w.db.Exec(`UPDATE editions SET lock_round = 1, lock_at = $2 WHERE id = $1`, w.edition.ID, w.now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("set lock: %v", err)
	}

	_, err = w.rec.SubmitPick(t.Context(), 1, w.edition.ID, teamA, false)
	if !errors.Is(err, domain.ErrDeadlinePassed) {
		t.Fatalf("want ErrDeadlinePassed, got %v", err)
	}
}

func TestRecorder_SubmitPick_ConcurrentSameRound(t *testing.T) {
	t.Parallel()

	// a single-round edition: whoever loses the race cannot slide into a
	// later round
	w := newPickWorld(t, domain.Edition{EndRound: domain.Ptr(1)})
	testfixtures.Join(t, w.db, w.edition.ID, 1)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	const workers = 2
	var wg sync.WaitGroup
	results := make(chan error, workers)

	start := make(chan struct{})
	for _, team := range []int64{teamA, teamB} {
		wg.Add(1)
		go func(team int64) {
			defer wg.Done()
			<-start
			_, err := w.rec.SubmitPick(ctx, 1, w.edition.ID, team, false)
			results <- err
		}(team)
	}
	close(start)
	wg.Wait()
	close(results)

	var ok int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrDuplicatePick), errors.Is(err, domain.ErrEditionComplete):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if ok != 1 {
		t.Fatalf("successes: want exactly 1, got %d", ok)
	}

	n := testfixtures.CountRows(t, w.db, `SELECT COUNT(*) FROM picks WHERE edition_id = $1`, w.edition.ID)
	if n != 1 {
		t.Fatalf("picks stored: want 1, got %d", n)
	}
}

func TestRecorder_SubmitPick_IgnoresPostponedKickoff(t *testing.T) {
	t.Parallel()

	w := newPickWorld(t, domain.Edition{})
	testfixtures.Join(t, w.db, w.edition.ID, 1)

	// originally scheduled before the rest of round 1, then postponed
	testfixtures.Match(t, w.db, domain.Match{
		Round:      1,
		HomeTeamID: teamC,
		AwayTeamID: teamD,
		KickoffAt:  w.now.Add(-time.Hour),
		Status:     domain.MatchPostponed,
	})

	p, err := w.rec.SubmitPick(t.Context(), 1, w.edition.ID, teamA, false)
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if p.Round != 1 {
		t.Fatalf("round: want 1, got %d", p.Round)
	}
}

func TestRecorder_SubmitPick_AfterRestore(t *testing.T) {
	t.Parallel()

	w := newPickWorld(t, domain.Edition{})
	testfixtures.Join(t, w.db, w.edition.ID, 1)

	// round 1 forgiven without a pick on it
	_, err := w.db.Exec(`UPDATE participants SET restored_round = 1 WHERE user_id = 1`)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}

	p, err := w.rec.SubmitPick(t.Context(), 1, w.edition.ID, teamC, false)
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if p.Round != 2 {
		t.Fatalf("round: want 2, got %d", p.Round)
	}
}

func TestRecorder_SubmitPick_RacesClosure(t *testing.T) {
	t.Parallel()

	w := newPickWorld(t, domain.Edition{Status: domain.EditionInProgress})
	p := testfixtures.Join(t, w.db, w.edition.ID, 1)

	var matchID int64
	err := w.db.QueryRow(`SELECT id FROM matches WHERE round = 1`).Scan(&matchID)
	if err != nil {
		t.Fatalf("find match: %v", err)
	}
	testfixtures.Pick(t, w.db, p, 1, teamA, matchID)

	engine := closeout.New(w.db, ledger.New(w.db), nil)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	var (
		wg       sync.WaitGroup
		pickErr  error
		closeErr error
	)
	start := make(chan struct{})

	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		_, pickErr = w.rec.SubmitPick(ctx, 1, w.edition.ID, teamC, false)
	}()
	go func() {
		defer wg.Done()
		<-start
		_, closeErr = engine.CloseEdition(ctx, w.edition.ID, domain.Actor{UserID: testfixtures.OwnerID})
	}()
	close(start)
	wg.Wait()

	if closeErr != nil {
		t.Fatalf("close: %v", closeErr)
	}

	n := testfixtures.CountRows(t, w.db, `SELECT COUNT(*) FROM picks WHERE edition_id = $1 AND round = 2`, w.edition.ID)
	switch {
	case pickErr == nil && n == 1:
	case errors.Is(pickErr, domain.ErrInvalidState) && n == 0:
	default:
		t.Fatalf("pick error %v with %d round 2 picks", pickErr, n)
	}
}
