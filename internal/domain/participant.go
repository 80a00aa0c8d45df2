package domain

import "time"

type ParticipantStatus string

const (
	ParticipantActive     ParticipantStatus = "ACTIVE"
	ParticipantEliminated ParticipantStatus = "ELIMINATED"
)

type Participant struct {
	ID              int64
	EditionID       int64
	UserID          int64
	Status          ParticipantStatus
	LifelineRound   *int // round in which the lifeline was spent
	EliminatedRound *int
	RestoredRound   *int // wrong or missing picks up to this round are forgiven
	JoinedAt        time.Time
}

type Pick struct {
	ID            int64
	ParticipantID int64
	EditionID     int64
	Round         int
	TeamID        int64
	MatchID       int64
	CreatedAt     time.Time
}

// RoundPick is a pick as shown to a viewer of the round; TeamID is nil when
// the pick is hidden from that viewer.
type RoundPick struct {
	UserID int64
	Round  int
	TeamID *int64
}
