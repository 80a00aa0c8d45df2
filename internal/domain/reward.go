package domain

import "time"

type RewardCause string

const (
	CauseMatchdayWin       RewardCause = "MATCHDAY_WIN"
	CauseShopPurchase      RewardCause = "SHOP_PURCHASE"
	CauseAchievementUnlock RewardCause = "ACHIEVEMENT_UNLOCK"
	CauseBonus             RewardCause = "BONUS"
)

type Currency string

const (
	CurrencyPoints Currency = "POINTS"
	CurrencyCoins  Currency = "COINS"
)

// Reward is one credit request. EditionID and Round scope it; a scoped
// reward is issued at most once per (user, currency, edition, round, cause).
type Reward struct {
	UserID    int64
	EditionID *int64
	Round     *int
	Cause     RewardCause
	Currency  Currency
	Quantity  int64
	Metadata  map[string]any
}

type RewardTransaction struct {
	ID        int64
	UserID    int64
	Currency  Currency
	Quantity  int64
	Cause     RewardCause
	EditionID *int64
	Round     *int
	Metadata  map[string]any
	CreatedAt time.Time
}

// RewardAccount holds the denormalized running totals. It is a cache over
// reward_transactions, never the source of truth.
type RewardAccount struct {
	UserID int64
	Points int64
	Coins  int64
}

func (a RewardAccount) Total(c Currency) int64 {
	if c == CurrencyCoins {
		return a.Coins
	}

	return a.Points
}
