package closeout

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/fastprodman/survivor/internal/config"
	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/pgtestutil"
	"github.com/fastprodman/survivor/internal/services/ledger"
	"github.com/fastprodman/survivor/internal/services/reconcile"
	"github.com/fastprodman/survivor/internal/services/rewards"
	"github.com/fastprodman/survivor/internal/testfixtures"
)

var owner = domain.Actor{UserID: testfixtures.OwnerID}

// seedPlayers joins users to e, charges fee each and gives each one pick.
// Users listed in eliminated are marked ELIMINATED.
func seedPlayers(t *testing.T, db *sql.DB, e domain.Edition, fee int64, users []int64, eliminated ...int64) {
	t.Helper()

	m := testfixtures.Match(t, db, domain.Match{Round: e.StartRound, HomeTeamID: 10, AwayTeamID: 11})
	for _, u := range users {
		p := testfixtures.Join(t, db, e.ID, u)
		if fee > 0 {
			testfixtures.Fee(t, db, u, e.ID, fee)
		}
		testfixtures.Pick(t, db, p, e.StartRound, 10, m.ID)
	}

	for _, u := range eliminated {
		_, err := db.Exec(`UPDATE participants SET status = 'ELIMINATED' WHERE edition_id = $1 AND user_id = $2`, e.ID, u)
		if err != nil {
			t.Fatalf("eliminate %d: %v", u, err)
		}
	}
}

func sumKind(t *testing.T, db *sql.DB, editionID int64, kind domain.EntryKind) (int64, int) {
	t.Helper()

	var (
		sum int64
		n   int
	)
	err := db.QueryRow(`
		SELECT COALESCE(SUM(amount), 0)::bigint, COUNT(*)
		FROM ledger_entries
		WHERE edition_id = $1 AND kind = $2
	`, editionID, kind).Scan(&sum, &n)
	if err != nil {
		t.Fatalf("sum %s: %v", kind, err)
	}

	return sum, n
}

func editionStatus(t *testing.T, db *sql.DB, id int64) domain.EditionStatus {
	t.Helper()

	var s domain.EditionStatus
	err := db.QueryRow(`SELECT status FROM editions WHERE id = $1`, id).Scan(&s)
	if err != nil {
		t.Fatalf("read status: %v", err)
	}

	return s
}

func TestEngine_CloseEdition_Preconditions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		seed    func(t *testing.T, db *sql.DB, e domain.Edition)
		actor   domain.Actor
		status  domain.EditionStatus
		wantErr error
	}{
		{
			name:    "stranger",
			seed:    func(t *testing.T, db *sql.DB, e domain.Edition) { seedPlayers(t, db, e, 0, []int64{1}) },
			actor:   domain.Actor{UserID: 5},
			wantErr: domain.ErrForbidden,
		},
		{
			name:    "already_closed",
			seed:    func(t *testing.T, db *sql.DB, e domain.Edition) { seedPlayers(t, db, e, 0, []int64{1}) },
			status:  domain.EditionFinished,
			actor:   owner,
			wantErr: domain.ErrAlreadyClosed,
		},
		{
			name:    "no_participants",
			seed:    func(t *testing.T, db *sql.DB, e domain.Edition) {},
			actor:   owner,
			wantErr: domain.ErrNoParticipants,
		},
		{
			name:    "still_contested",
			seed:    func(t *testing.T, db *sql.DB, e domain.Edition) { seedPlayers(t, db, e, 100, []int64{1, 2}) },
			actor:   owner,
			wantErr: domain.ErrStillContested,
		},
		{
			name: "pending_picks",
			seed: func(t *testing.T, db *sql.DB, e domain.Edition) {
				seedPlayers(t, db, e, 100, []int64{1, 2}, 2)
				testfixtures.Join(t, db, e.ID, 3)
				_, err := db.Exec(`UPDATE participants SET status = 'ELIMINATED' WHERE user_id = 3`)
				if err != nil {
					t.Fatalf("eliminate: %v", err)
				}
			},
			actor:   owner,
			wantErr: domain.ErrPendingPicks,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db := pgtestutil.NewTestDB(t)
			status := tt.status
			if status == "" {
				status = domain.EditionInProgress
			}
			e := testfixtures.Edition(t, db, domain.Edition{Status: status})
			tt.seed(t, db, e)

			_, err := New(db, ledger.New(db), nil).CloseEdition(t.Context(), e.ID, tt.actor)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("want %v, got %v", tt.wantErr, err)
			}

			// nothing written on failure
			if _, n := sumKind(t, db, e.ID, domain.EntryPrizePayout); n != 0 {
				t.Fatalf("payout written on failed closure")
			}
			if tt.status == "" && editionStatus(t, db, e.ID) != domain.EditionInProgress {
				t.Fatalf("status changed on failed closure")
			}
		})
	}
}

func TestEngine_CloseEdition_WinnerTakesAll(t *testing.T) {
	t.Parallel()

	db := pgtestutil.NewTestDB(t)
	ledgerSvc := ledger.New(db)
	ctx := t.Context()

	e := testfixtures.Edition(t, db, domain.Edition{Status: domain.EditionInProgress, EntryFee: 2_500})
	seedPlayers(t, db, e, 2_500, []int64{1, 2, 3, 4}, 2, 3, 4)

	c, err := New(db, ledgerSvc, nil).CloseEdition(ctx, e.ID, owner)
	if err != nil {
		t.Fatalf("close: %v", err)
	}

	if c.Total != 10_000 || len(c.Payouts) != 1 || c.Payouts[0].UserID != 1 || c.Payouts[0].Amount != 10_000 {
		t.Fatalf("closure: %+v", c)
	}

	sum, n := sumKind(t, db, e.ID, domain.EntryPrizePayout)
	if sum != 10_000 || n != 1 {
		t.Fatalf("payout entries: sum %d count %d", sum, n)
	}

	pool, err := ledgerSvc.PoolOf(ctx, e.ID)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if pool != 0 {
		t.Fatalf("pool after closure: want 0, got %d", pool)
	}

	if s := editionStatus(t, db, e.ID); s != domain.EditionFinished {
		t.Fatalf("status: want FINISHED, got %s", s)
	}

	_, err = New(db, ledgerSvc, nil).CloseEdition(ctx, e.ID, owner)
	if !errors.Is(err, domain.ErrAlreadyClosed) {
		t.Fatalf("second close: want ErrAlreadyClosed, got %v", err)
	}
	if _, n := sumKind(t, db, e.ID, domain.EntryPrizePayout); n != 1 {
		t.Fatalf("second close wrote payouts")
	}
}

func TestEngine_CloseEdition_NoWinnerPendingRollover(t *testing.T) {
	t.Parallel()

	db := pgtestutil.NewTestDB(t)
	ledgerSvc := ledger.New(db)
	ctx := t.Context()

	e := testfixtures.Edition(t, db, domain.Edition{Status: domain.EditionInProgress, EntryFee: 250})
	seedPlayers(t, db, e, 250, []int64{1, 2}, 1, 2)

	// a LEAGUE-mode edition in the same league is not a destination
	testfixtures.Edition(t, db, domain.Edition{Mode: domain.ModeLeague})

	c, err := New(db, ledgerSvc, nil).CloseEdition(ctx, e.ID, domain.Actor{UserID: 1, IsAdmin: true})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if c.RolledOver != 500 || c.Destination != nil || len(c.Payouts) != 0 {
		t.Fatalf("closure: %+v", c)
	}

	out, n := sumKind(t, db, e.ID, domain.EntryRolloverOut)
	if out != -500 || n != 1 {
		t.Fatalf("rollover out: sum %d count %d", out, n)
	}
	if n := testfixtures.CountRows(t, db, `SELECT COUNT(*) FROM ledger_entries WHERE kind = 'ROLLOVER_IN'`); n != 0 {
		t.Fatalf("unexpected ROLLOVER_IN entries: %d", n)
	}

	pending, err := ledgerSvc.RolloverOf(ctx, testfixtures.LeagueID, domain.ModeElimination)
	if err != nil {
		t.Fatalf("rollover: %v", err)
	}
	if pending != 500 {
		t.Fatalf("pending rollover: want 500, got %d", pending)
	}

	// the next closure in the same league and mode claims the carry
	next := testfixtures.Edition(t, db, domain.Edition{Status: domain.EditionInProgress, EntryFee: 1_000})
	seedPlayers(t, db, next, 1_000, []int64{7})

	c, err = New(db, ledgerSvc, nil).CloseEdition(ctx, next.ID, owner)
	if err != nil {
		t.Fatalf("close next: %v", err)
	}
	if c.Pool != 1_000 || c.Inherited != 500 || c.Total != 1_500 || c.Payouts[0].Amount != 1_500 {
		t.Fatalf("next closure: %+v", c)
	}

	pending, err = ledgerSvc.RolloverOf(ctx, testfixtures.LeagueID, domain.ModeElimination)
	if err != nil {
		t.Fatalf("rollover: %v", err)
	}
	if pending != 0 {
		t.Fatalf("pending after claim: want 0, got %d", pending)
	}
}

func TestEngine_CloseEdition_RolloverForward(t *testing.T) {
	t.Parallel()

	db := pgtestutil.NewTestDB(t)
	ledgerSvc := ledger.New(db)
	ctx := t.Context()

	e := testfixtures.Edition(t, db, domain.Edition{Status: domain.EditionInProgress})
	seedPlayers(t, db, e, 400, []int64{1}, 1)
	dest := testfixtures.Edition(t, db, domain.Edition{})
	testfixtures.Edition(t, db, domain.Edition{}) // younger sibling, not chosen

	c, err := New(db, ledgerSvc, nil).CloseEdition(ctx, e.ID, owner)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if c.Destination == nil || *c.Destination != dest.ID || c.RolledOver != 400 {
		t.Fatalf("closure: %+v", c)
	}

	in, n := sumKind(t, db, dest.ID, domain.EntryRolloverIn)
	if in != 400 || n != 1 {
		t.Fatalf("rollover in on destination: sum %d count %d", in, n)
	}

	pending, err := ledgerSvc.RolloverOf(ctx, testfixtures.LeagueID, domain.ModeElimination)
	if err != nil {
		t.Fatalf("rollover: %v", err)
	}
	if pending != 0 {
		t.Fatalf("pending: want 0, got %d", pending)
	}
}

func TestEngine_CloseEdition_LeagueTable(t *testing.T) {
	t.Parallel()

	db := pgtestutil.NewTestDB(t)
	ctx := t.Context()

	e := testfixtures.Edition(t, db, domain.Edition{
		Mode:   domain.ModeLeague,
		Status: domain.EditionInProgress,
		Config: domain.EditionConfig{Payout: domain.PayoutSchema{
			Kind:   domain.PayoutTable,
			Splits: splits("0.6", "0.3", "0.1"),
		}},
	})
	seedPlayers(t, db, e, 250, []int64{1, 2, 3, 4}, 4)

	// user 3 made two picks and ranks first; 1 and 2 tie and keep join order
	m2 := testfixtures.Match(t, db, domain.Match{Round: 2, HomeTeamID: 12, AwayTeamID: 13})
	var p3 domain.Participant
	err := db.QueryRow(`SELECT id, edition_id FROM participants WHERE user_id = 3`).Scan(&p3.ID, &p3.EditionID)
	if err != nil {
		t.Fatalf("find participant: %v", err)
	}
	testfixtures.Pick(t, db, p3, 2, 12, m2.ID)

	c, err := New(db, ledger.New(db), nil).CloseEdition(ctx, e.ID, owner)
	if err != nil {
		t.Fatalf("close: %v", err)
	}

	want := []Payout{{UserID: 3, Rank: 1, Amount: 600}, {UserID: 1, Rank: 2, Amount: 300}, {UserID: 2, Rank: 3, Amount: 100}}
	if len(c.Payouts) != len(want) {
		t.Fatalf("payouts: %+v", c.Payouts)
	}
	for i := range want {
		if c.Payouts[i] != want[i] {
			t.Fatalf("payout %d: want %+v, got %+v", i, want[i], c.Payouts[i])
		}
	}

	sum, _ := sumKind(t, db, e.ID, domain.EntryPrizePayout)
	if sum != 1_000 {
		t.Fatalf("payout sum: want 1000, got %d", sum)
	}
}

func TestEngine_CloseEdition_CustomRanker(t *testing.T) {
	t.Parallel()

	db := pgtestutil.NewTestDB(t)

	e := testfixtures.Edition(t, db, domain.Edition{Mode: domain.ModeLeague, Status: domain.EditionInProgress})
	seedPlayers(t, db, e, 100, []int64{1, 2})

	// newest member first
	reverse := RankerFunc(func(s []Standing) []Standing {
		out := ByPicks.Rank(s)
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
		return out
	})

	c, err := New(db, ledger.New(db), reverse).CloseEdition(t.Context(), e.ID, owner)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(c.Payouts) != 1 || c.Payouts[0].UserID != 2 || c.Payouts[0].Amount != 200 {
		t.Fatalf("payouts: %+v", c.Payouts)
	}
}

func TestEngine_CloseEdition_AfterSuddenDeath(t *testing.T) {
	t.Parallel()

	db := pgtestutil.NewTestDB(t)
	ledgerSvc := ledger.New(db)
	ctx := t.Context()
	now := time.Now().UTC()

	kickoff := now.Add(-5 * time.Hour)
	e := testfixtures.Edition(t, db, domain.Edition{
		Status:   domain.EditionInProgress,
		EntryFee: 1_000,
		Config:   domain.EditionConfig{Rules: domain.Rules{SuddenDeath: true}},
	})
	m := testfixtures.Finished(t, db, 1, 10, 11, 2, 0, kickoff)

	picker := testfixtures.JoinedAt(t, db, e.ID, 1, kickoff.Add(-48*time.Hour))
	testfixtures.JoinedAt(t, db, e.ID, 2, kickoff.Add(-48*time.Hour))
	testfixtures.Fee(t, db, 1, e.ID, 1_000)
	testfixtures.Fee(t, db, 2, e.ID, 1_000)
	testfixtures.Pick(t, db, picker, 1, 10, m.ID)

	r := reconcile.New(db, rewards.New(db), nil, config.DefaultReconcileConfig(), config.DefaultRewardConfig())

	rep, err := r.Reconcile(ctx, e.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if rep.Eliminated != 1 {
		t.Fatalf("reconcile report: %+v", rep)
	}

	c, err := New(db, ledgerSvc, nil).CloseEdition(ctx, e.ID, owner)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if c.Total != 2_000 || len(c.Payouts) != 1 || c.Payouts[0].UserID != 1 {
		t.Fatalf("closure: %+v", c)
	}
	if s := editionStatus(t, db, e.ID); s != domain.EditionFinished {
		t.Fatalf("status: want FINISHED, got %s", s)
	}
}

func TestEngine_CloseEdition_PickedNothing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		update  string
		wantErr error
	}{
		{name: "eliminated_without_round", update: `UPDATE participants SET status = 'ELIMINATED' WHERE user_id = 2`, wantErr: domain.ErrPendingPicks},
		{name: "removed_by_sudden_death", update: `UPDATE participants SET status = 'ELIMINATED', eliminated_round = 1 WHERE user_id = 2`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db := pgtestutil.NewTestDB(t)

			e := testfixtures.Edition(t, db, domain.Edition{Status: domain.EditionInProgress})
			seedPlayers(t, db, e, 0, []int64{1})
			testfixtures.Join(t, db, e.ID, 2)

			_, err := db.Exec(tt.update)
			if err != nil {
				t.Fatalf("update: %v", err)
			}

			_, err = New(db, ledger.New(db), nil).CloseEdition(t.Context(), e.ID, owner)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("close: want %v, got %v", tt.wantErr, err)
			}
		})
	}
}
