package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Mode string

const (
	ModeElimination Mode = "ELIMINATION"
	ModeLeague      Mode = "LEAGUE"
)

func (m Mode) Valid() bool {
	return m == ModeElimination || m == ModeLeague
}

type EditionStatus string

const (
	EditionOpen       EditionStatus = "OPEN"
	EditionInProgress EditionStatus = "IN_PROGRESS"
	EditionFinished   EditionStatus = "FINISHED"
)

type PayoutKind string

const (
	PayoutWinnerTakesAll PayoutKind = "winner_takes_all"
	PayoutTable          PayoutKind = "table"
	PayoutEven           PayoutKind = "even"
)

// PayoutSchema describes how the closing total is split between ranked
// winners. Splits is only read for PayoutTable.
type PayoutSchema struct {
	Kind   PayoutKind        `json:"kind"`
	Splits []decimal.Decimal `json:"splits,omitempty"`
}

type Rules struct {
	HiddenPicks  bool `json:"hidden_picks"`
	NoRepeatTeam bool `json:"no_repeat_team"`
	Lifeline     bool `json:"lifeline"`
	SuddenDeath  bool `json:"sudden_death"`
}

// EditionConfig is stored as JSONB on the editions row.
type EditionConfig struct {
	Payout PayoutSchema `json:"payout"`
	Rules  Rules        `json:"rules"`
}

func (c EditionConfig) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal edition config: %w", err)
	}

	return b, nil
}

func (c *EditionConfig) Scan(src any) error {
	var raw []byte

	switch v := src.(type) {
	case nil:
		*c = EditionConfig{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan edition config: unsupported type %T", src)
	}

	err := json.Unmarshal(raw, c)
	if err != nil {
		return fmt.Errorf("unmarshal edition config: %w", err)
	}

	return nil
}

// Validate checks the schema is usable for a split.
func (s PayoutSchema) Validate() error {
	switch s.Kind {
	case PayoutWinnerTakesAll, PayoutEven, "":
		return nil
	case PayoutTable:
		if len(s.Splits) == 0 {
			return errors.New("table payout needs at least one split")
		}

		sum := decimal.Zero
		for _, sp := range s.Splits {
			if !sp.IsPositive() || sp.GreaterThan(decimal.NewFromInt(1)) {
				return fmt.Errorf("split %s out of range (0,1]", sp)
			}

			sum = sum.Add(sp)
		}

		if sum.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("splits sum to %s, more than 1", sum)
		}

		return nil
	default:
		return fmt.Errorf("unknown payout kind %q", s.Kind)
	}
}

type Edition struct {
	ID            int64
	LeagueID      int64
	OwnerID       int64
	CompetitionID int64
	Mode          Mode
	StartRound    int
	EndRound      *int
	EntryFee      int64 // minor units
	Config        EditionConfig
	Status        EditionStatus
	LockRound     *int
	LockAt        *time.Time
	CreatedAt     time.Time
}

// Pickable reports whether picks may still be submitted.
func (e Edition) Pickable() bool {
	return e.Status == EditionOpen || e.Status == EditionInProgress
}

// PastEnd reports whether round lies beyond the configured ending round.
func (e Edition) PastEnd(round int) bool {
	return e.EndRound != nil && round > *e.EndRound
}

// Actor is the caller identity handed over by the auth boundary.
type Actor struct {
	UserID  int64
	IsAdmin bool
}

// CanManage reports whether a is allowed to administer e.
func (a Actor) CanManage(e Edition) bool {
	return a.IsAdmin || a.UserID == e.OwnerID
}
