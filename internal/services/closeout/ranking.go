package closeout

import (
	"cmp"
	"slices"

	"github.com/fastprodman/survivor/internal/domain"
)

// Standing is a LEAGUE-mode winner candidate.
type Standing struct {
	Participant domain.Participant
	Picks       int
}

// Ranker orders winners best first. LEAGUE-mode scoring is a policy
// choice, so it is injected into the engine.
type Ranker interface {
	Rank(standings []Standing) []Standing
}

type RankerFunc func([]Standing) []Standing

func (f RankerFunc) Rank(s []Standing) []Standing { return f(s) }

// ByPicks ranks by number of picks made, then by who joined first.
var ByPicks = RankerFunc(func(s []Standing) []Standing {
	out := slices.Clone(s)
	slices.SortStableFunc(out, func(a, b Standing) int {
		if c := cmp.Compare(b.Picks, a.Picks); c != 0 {
			return c
		}
		if c := a.Participant.JoinedAt.Compare(b.Participant.JoinedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Participant.ID, b.Participant.ID)
	})

	return out
})
