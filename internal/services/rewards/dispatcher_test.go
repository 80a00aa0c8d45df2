package rewards

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/pgtestutil"
	"github.com/fastprodman/survivor/internal/testfixtures"
)

func matchdayReward(userID, editionID int64, round int, c domain.Currency, qty int64) domain.Reward {
	return domain.Reward{
		UserID:    userID,
		EditionID: domain.Ptr(editionID),
		Round:     domain.Ptr(round),
		Cause:     domain.CauseMatchdayWin,
		Currency:  c,
		Quantity:  qty,
	}
}

func TestDispatcher_AwardRoundReward_Idempotent(t *testing.T) {
	t.Parallel()

	db := pgtestutil.NewTestDB(t)
	d := New(db)
	ctx := t.Context()

	e := testfixtures.Edition(t, db, domain.Edition{})

	issued, err := d.AwardRoundReward(ctx, matchdayReward(5, e.ID, 1, domain.CurrencyPoints, 10))
	if err != nil {
		t.Fatalf("first award: %v", err)
	}
	if !issued {
		t.Fatalf("first award: expected issued")
	}

	for i := 0; i < 3; i++ {
		issued, err = d.AwardRoundReward(ctx, matchdayReward(5, e.ID, 1, domain.CurrencyPoints, 10))
		if err != nil {
			t.Fatalf("repeat award: %v", err)
		}
		if issued {
			t.Fatalf("repeat award %d: expected no-op", i)
		}
	}

	// other currency and other round are separate keys
	_, err = d.AwardRoundReward(ctx, matchdayReward(5, e.ID, 1, domain.CurrencyCoins, 1))
	if err != nil {
		t.Fatalf("coins award: %v", err)
	}
	_, err = d.AwardRoundReward(ctx, matchdayReward(5, e.ID, 2, domain.CurrencyPoints, 10))
	if err != nil {
		t.Fatalf("round 2 award: %v", err)
	}

	got, err := d.Totals(ctx, 5)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if got.Points != 20 || got.Coins != 1 {
		t.Fatalf("totals: want 20/1, got %d/%d", got.Points, got.Coins)
	}

	err = d.VerifyTotals(ctx, 5)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestDispatcher_AwardRoundReward_Concurrent(t *testing.T) {
	t.Parallel()

	db := pgtestutil.NewTestDB(t)
	d := New(db)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	e := testfixtures.Edition(t, db, domain.Edition{})

	const workers = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		issued int
	)
	errCh := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := d.AwardRoundReward(ctx, matchdayReward(9, e.ID, 3, domain.CurrencyPoints, 10))
			if err != nil {
				errCh <- err
				return
			}
			if ok {
				mu.Lock()
				issued++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Fatalf("worker error: %v", err)
	}

	if issued != 1 {
		t.Fatalf("issued: want exactly 1, got %d", issued)
	}

	n := testfixtures.CountRows(t, db, `SELECT COUNT(*) FROM reward_transactions WHERE user_id = 9`)
	if n != 1 {
		t.Fatalf("transactions: want 1, got %d", n)
	}

	err := d.VerifyTotals(ctx, 9)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestDispatcher_AwardRoundReward_InvalidInput(t *testing.T) {
	t.Parallel()

	db := pgtestutil.NewTestDB(t)
	d := New(db)

	tests := []struct {
		name   string
		reward domain.Reward
	}{
		{name: "zero_quantity", reward: matchdayReward(1, 1, 1, domain.CurrencyPoints, 0)},
		{name: "unknown_currency", reward: matchdayReward(1, 1, 1, domain.Currency("GEMS"), 5)},
	}

	for _, tt := range tests {
		_, err := d.AwardRoundReward(t.Context(), tt.reward)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("%s: want ErrInvalidInput, got %v", tt.name, err)
		}
	}
}

func TestDispatcher_VerifyTotals_DetectsDrift(t *testing.T) {
	t.Parallel()

	db := pgtestutil.NewTestDB(t)
	d := New(db)
	ctx := t.Context()

	// never rewarded: zero matches zero
	err := d.VerifyTotals(ctx, 77)
	if err != nil {
		t.Fatalf("verify empty: %v", err)
	}

	e := testfixtures.Edition(t, db, domain.Edition{})
	_, err = d.AwardRoundReward(ctx, matchdayReward(77, e.ID, 1, domain.CurrencyPoints, 10))
	if err != nil {
		t.Fatalf("award: %v", err)
	}

	_, err = db.Exec(`UPDATE reward_accounts SET points = points + 1 WHERE user_id = 77`)
	if err != nil {
		t.Fatalf("corrupt cache: %v", err)
	}

	err = d.VerifyTotals(ctx, 77)
	if !errors.Is(err, domain.ErrIntegrity) {
		t.Fatalf("verify: want ErrIntegrity, got %v", err)
	}
}
