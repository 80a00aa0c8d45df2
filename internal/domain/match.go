package domain

import "time"

type MatchStatus string

const (
	MatchScheduled MatchStatus = "SCHEDULED"
	MatchLive      MatchStatus = "LIVE"
	MatchFinished  MatchStatus = "FINISHED"
	MatchPostponed MatchStatus = "POSTPONED"
)

type Outcome string

const (
	OutcomeHomeWin Outcome = "HOME_WIN"
	OutcomeAwayWin Outcome = "AWAY_WIN"
	OutcomeDraw    Outcome = "DRAW"
)

// Match is one fixture as delivered by the results feed.
type Match struct {
	ID            int64
	CompetitionID int64
	Round         int
	HomeTeamID    int64
	AwayTeamID    int64
	KickoffAt     time.Time
	Status        MatchStatus
	HomeScore     *int
	AwayScore     *int
}

// Scored reports whether the match is finished with both scores recorded.
func (m Match) Scored() bool {
	return m.Status == MatchFinished && m.HomeScore != nil && m.AwayScore != nil
}

// Outcome compares the scores. Only meaningful when Scored is true.
func (m Match) Outcome() Outcome {
	switch {
	case *m.HomeScore > *m.AwayScore:
		return OutcomeHomeWin
	case *m.HomeScore < *m.AwayScore:
		return OutcomeAwayWin
	default:
		return OutcomeDraw
	}
}

// Predicted returns the outcome a pick of team implies, and false when the
// team does not play in the match.
func (m Match) Predicted(team int64) (Outcome, bool) {
	switch team {
	case m.HomeTeamID:
		return OutcomeHomeWin, true
	case m.AwayTeamID:
		return OutcomeAwayWin, true
	default:
		return "", false
	}
}

// Involves reports whether team is one of the two sides.
func (m Match) Involves(team int64) bool {
	return team == m.HomeTeamID || team == m.AwayTeamID
}
