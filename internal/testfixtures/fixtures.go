// Package testfixtures seeds rows for repository and service tests.
package testfixtures

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/fastprodman/survivor/internal/domain"
	pgeditions "github.com/fastprodman/survivor/internal/repos/editions/postgres"
	pgledger "github.com/fastprodman/survivor/internal/repos/ledger/postgres"
	pgmatches "github.com/fastprodman/survivor/internal/repos/matches/postgres"
	pgparticipants "github.com/fastprodman/survivor/internal/repos/participants/postgres"
	pgpicks "github.com/fastprodman/survivor/internal/repos/picks/postgres"
)

const (
	LeagueID      int64 = 1
	OwnerID       int64 = 100
	CompetitionID int64 = 2026
)

// Edition inserts e after filling zero fields with defaults and returns the
// stored row.
func Edition(t *testing.T, db *sql.DB, e domain.Edition) domain.Edition {
	t.Helper()

	if e.LeagueID == 0 {
		e.LeagueID = LeagueID
	}
	if e.OwnerID == 0 {
		e.OwnerID = OwnerID
	}
	if e.CompetitionID == 0 {
		e.CompetitionID = CompetitionID
	}
	if e.Mode == "" {
		e.Mode = domain.ModeElimination
	}
	if e.StartRound == 0 {
		e.StartRound = 1
	}
	if e.Config.Payout.Kind == "" {
		e.Config.Payout.Kind = domain.PayoutWinnerTakesAll
	}

	repo := pgeditions.New()
	ctx := context.Background()

	id, err := repo.Create(ctx, db, e)
	if err != nil {
		t.Fatalf("seed edition: %v", err)
	}

	if e.Status != "" && e.Status != domain.EditionOpen {
		_, err = db.ExecContext(ctx, `UPDATE editions SET status = $2 WHERE id = $1`, id, e.Status)
		if err != nil {
			t.Fatalf("seed edition status: %v", err)
		}
	}

	out, err := repo.Get(ctx, db, id)
	if err != nil {
		t.Fatalf("reload edition: %v", err)
	}

	return out
}

// Join adds a participant without charging a fee.
func Join(t *testing.T, db *sql.DB, editionID, userID int64) domain.Participant {
	t.Helper()

	p, err := pgparticipants.New().Create(context.Background(), db, editionID, userID)
	if err != nil {
		t.Fatalf("seed participant %d: %v", userID, err)
	}

	return p
}

// JoinedAt adds a participant and backdates its join time.
func JoinedAt(t *testing.T, db *sql.DB, editionID, userID int64, at time.Time) domain.Participant {
	t.Helper()

	p := Join(t, db, editionID, userID)

	_, err := db.Exec(`UPDATE participants SET joined_at = $2 WHERE id = $1`, p.ID, at)
	if err != nil {
		t.Fatalf("backdate participant %d: %v", userID, err)
	}
	p.JoinedAt = at

	return p
}

func Match(t *testing.T, db *sql.DB, m domain.Match) domain.Match {
	t.Helper()

	if m.CompetitionID == 0 {
		m.CompetitionID = CompetitionID
	}
	if m.Status == "" {
		m.Status = domain.MatchScheduled
	}

	id, err := pgmatches.New().Insert(context.Background(), db, m)
	if err != nil {
		t.Fatalf("seed match: %v", err)
	}
	m.ID = id

	return m
}

// Finished seeds a scored match of round that kicked off at kickoff.
func Finished(t *testing.T, db *sql.DB, round int, home, away int64, homeScore, awayScore int, kickoff time.Time) domain.Match {
	t.Helper()

	return Match(t, db, domain.Match{
		Round:      round,
		HomeTeamID: home,
		AwayTeamID: away,
		KickoffAt:  kickoff,
		Status:     domain.MatchFinished,
		HomeScore:  domain.Ptr(homeScore),
		AwayScore:  domain.Ptr(awayScore),
	})
}

// Pick stores a pick directly, bypassing deadline and round validation.
func Pick(t *testing.T, db *sql.DB, p domain.Participant, round int, teamID, matchID int64) domain.Pick {
	t.Helper()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	out, err := pgpicks.New().Insert(context.Background(), tx, domain.Pick{
		ParticipantID: p.ID,
		EditionID:     p.EditionID,
		Round:         round,
		TeamID:        teamID,
		MatchID:       matchID,
	})
	if err != nil {
		t.Fatalf("seed pick: %v", err)
	}

	err = tx.Commit()
	if err != nil {
		t.Fatalf("commit pick: %v", err)
	}

	return out
}

// Deposit credits the user with an ADJUSTMENT entry.
func Deposit(t *testing.T, db *sql.DB, userID, amount int64) {
	t.Helper()

	_, err := pgledger.New().Append(context.Background(), db, domain.LedgerEntry{
		UserID:   domain.Ptr(userID),
		Kind:     domain.EntryAdjustment,
		Amount:   amount,
		Metadata: map[string]any{"reason": "test deposit"},
	})
	if err != nil {
		t.Fatalf("seed deposit: %v", err)
	}
}

// Fee records an ENTRY_FEE of amount (positive) for the user in the edition.
func Fee(t *testing.T, db *sql.DB, userID, editionID, amount int64) {
	t.Helper()

	_, err := pgledger.New().Append(context.Background(), db, domain.LedgerEntry{
		UserID:    domain.Ptr(userID),
		EditionID: domain.Ptr(editionID),
		Kind:      domain.EntryFee,
		Amount:    -amount,
	})
	if err != nil {
		t.Fatalf("seed fee: %v", err)
	}
}

// ParticipantStatus reads the stored status for (edition, user).
func ParticipantStatus(t *testing.T, db *sql.DB, editionID, userID int64) domain.ParticipantStatus {
	t.Helper()

	var s domain.ParticipantStatus
	err := db.QueryRow(`SELECT status FROM participants WHERE edition_id = $1 AND user_id = $2`, editionID, userID).Scan(&s)
	if err != nil {
		t.Fatalf("read participant status: %v", err)
	}

	return s
}

func CountRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()

	var n int
	err := db.QueryRow(query, args...).Scan(&n)
	if err != nil {
		t.Fatalf("count rows: %v", err)
	}

	return n
}
