package picks

import (
	"time"

	"github.com/fastprodman/survivor/internal/domain"
)

// Deadline resolves when picks for round close. A lock time stored on the
// edition applies only to the round it was set for; otherwise picks close
// lead before the round's earliest kickoff.
func Deadline(e domain.Edition, round int, earliestKickoff time.Time, lead time.Duration) time.Time {
	if e.LockAt != nil && e.LockRound != nil && *e.LockRound == round {
		return *e.LockAt
	}

	return earliestKickoff.Add(-lead)
}

// Closed reports whether now is past the deadline plus grace.
func Closed(now, deadline time.Time, grace time.Duration) bool {
	return now.After(deadline.Add(grace))
}
