package engine

import (
	"errors"
	"fmt"
)

var (
	ErrSessionEnded  = errors.New("session already ended")
	ErrOutOfTurn     = errors.New("action out of turn")
	ErrNotInLobby    = errors.New("session is no longer in lobby")
	ErrNotInProgress = errors.New("session not in progress")
	ErrSeatOccupied  = errors.New("seat already occupied")
	ErrSessionFull   = errors.New("session is full")
)

type InvalidStateError string

func (e InvalidStateError) Error() string { return "invalid state: " + string(e) }

func ErrInvalidState(msg string) error { return InvalidStateError(msg) }

// InvalidSeatCountError reports a seat count with no distribution-table entry.
// Surfaced at session creation, before any state exists.
type InvalidSeatCountError struct {
	Count int
}

func (e *InvalidSeatCountError) Error() string {
	return fmt.Sprintf("no role distribution for %d seats", e.Count)
}

// IllegalActionError reports an action rejected by the rule set. The game
// state is untouched and no event is emitted.
type IllegalActionError struct {
	Seat   int
	Kind   ActionKind
	Reason string
}

func (e *IllegalActionError) Error() string {
	return fmt.Sprintf("illegal action %s by seat %d: %s", e.Kind, e.Seat, e.Reason)
}
