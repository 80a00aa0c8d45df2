package picks

import (
	"testing"
	"time"

	"github.com/fastprodman/survivor/internal/domain"
)

func TestDeadline(t *testing.T) {
	t.Parallel()

	kickoff := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	lock := time.Date(2026, 3, 13, 20, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		e     domain.Edition
		round int
		want  time.Time
	}{
		{
			name:  "no_lock_uses_lead",
			e:     domain.Edition{},
			round: 3,
			want:  kickoff.Add(-time.Hour),
		},
		{
			name:  "lock_for_this_round",
			e:     domain.Edition{LockRound: domain.Ptr(3), LockAt: domain.Ptr(lock)},
			round: 3,
			want:  lock,
		},
		{
			name:  "lock_for_other_round_ignored",
			e:     domain.Edition{LockRound: domain.Ptr(2), LockAt: domain.Ptr(lock)},
			round: 3,
			want:  kickoff.Add(-time.Hour),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Deadline(tt.e, tt.round, kickoff, time.Hour)
			if !got.Equal(tt.want) {
				t.Fatalf("deadline: want %s, got %s", tt.want, got)
			}
		})
	}
}

func TestClosed(t *testing.T) {
	t.Parallel()

	deadline := time.Date(2026, 3, 14, 14, 0, 0, 0, time.UTC)
	grace := 2 * time.Minute

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "before", now: deadline.Add(-time.Second), want: false},
		{name: "within_grace", now: deadline.Add(grace), want: false},
		{name: "after_grace", now: deadline.Add(grace + time.Second), want: true},
	}

	for _, tt := range tests {
		if got := Closed(tt.now, deadline, grace); got != tt.want {
			t.Fatalf("%s: want %v, got %v", tt.name, tt.want, got)
		}
	}
}
