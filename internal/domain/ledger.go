package domain

import (
	"fmt"
	"time"
)

type EntryKind string

const (
	EntryFee         EntryKind = "ENTRY_FEE"
	EntryPrizePayout EntryKind = "PRIZE_PAYOUT"
	EntryRolloverOut EntryKind = "ROLLOVER_OUT"
	EntryRolloverIn  EntryKind = "ROLLOVER_IN"
	EntryAdjustment  EntryKind = "ADJUSTMENT"
)

// LedgerEntry is an immutable signed monetary fact. Amounts are minor
// currency units; user-facing kinds are signed from the user's side (a fee is
// negative, a payout positive), rollovers from the edition's side (out is
// negative, in positive).
type LedgerEntry struct {
	ID        int64
	UserID    *int64
	LeagueID  *int64
	EditionID *int64
	Kind      EntryKind
	Amount    int64
	Metadata  map[string]any
	CreatedAt time.Time
}

// CheckScope verifies the references the entry kind requires are present.
func (e LedgerEntry) CheckScope() error {
	missing := func(field string) error {
		return fmt.Errorf("%w: %s needs %s", ErrMissingScope, e.Kind, field)
	}

	switch e.Kind {
	case EntryFee, EntryPrizePayout:
		if e.UserID == nil {
			return missing("user")
		}
		if e.EditionID == nil {
			return missing("edition")
		}
	case EntryRolloverOut, EntryRolloverIn:
		if e.LeagueID == nil {
			return missing("league")
		}
		if e.EditionID == nil {
			return missing("edition")
		}
	case EntryAdjustment:
		if e.UserID == nil {
			return missing("user")
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMissingScope, e.Kind)
	}

	return nil
}

// Ptr is a small helper for optional references.
func Ptr[T any](v T) *T {
	return &v
}
