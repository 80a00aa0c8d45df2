package domain

import "errors"

// Validation errors: caused by the caller, never retried.
var (
	ErrDeadlinePassed   = errors.New("deadline passed")
	ErrDuplicatePick    = errors.New("pick already submitted for this round")
	ErrTeamNotScheduled = errors.New("team not scheduled in round")
	ErrTeamAlreadyUsed  = errors.New("team already used in an earlier round")
	ErrInvalidInput     = errors.New("invalid input")
)

// State errors: the edition or participant is not in a state that allows the
// operation.
var (
	ErrInvalidState      = errors.New("invalid edition state")
	ErrNotParticipant    = errors.New("user is not a participant")
	ErrNotActive         = errors.New("participant is not active")
	ErrEditionComplete   = errors.New("edition has no rounds left")
	ErrAlreadyClosed     = errors.New("edition already closed")
	ErrNoParticipants    = errors.New("edition has no participants")
	ErrStillContested    = errors.New("more than one participant still active")
	ErrPendingPicks      = errors.New("participant without any pick")
	ErrAlreadyJoined     = errors.New("user already joined edition")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// ErrMissingScope is returned when a ledger entry lacks a reference its kind
// requires.
var ErrMissingScope = errors.New("ledger entry missing required scope")

// ErrIntegrity marks a broken invariant (ledger or reward totals). It is
// fatal for the operation that detects it.
var ErrIntegrity = errors.New("integrity violation")
