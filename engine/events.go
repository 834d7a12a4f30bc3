package engine

import (
	"encoding/json"

	"kingdoms-lite/card"
)

// EventType 事件类型
type EventType string

const (
	EvtRoleAssigned     EventType = "role_assigned"
	EvtSeatHPSet        EventType = "seat_hp_set"
	EvtCardsDrawn       EventType = "cards_drawn"
	EvtDeckRecycled     EventType = "deck_recycled"
	EvtTurnStarted      EventType = "turn_started"
	EvtPhaseAdvanced    EventType = "phase_advanced"
	EvtCardsPlayed      EventType = "cards_played"
	EvtHPChanged        EventType = "hp_changed"
	EvtSeatEliminated   EventType = "seat_eliminated"
	EvtTurnEnded        EventType = "turn_ended"
	EvtSeatDisconnected EventType = "seat_disconnected"
	EvtSeatRejoined     EventType = "seat_rejoined"
	EvtSessionFinished  EventType = "session_finished"
	EvtSessionAborted   EventType = "session_aborted"
)

// Event is one immutable, strictly ordered record of an atomic state change.
// Events are the only channel by which GameState changes become visible, and
// each payload fully determines its mutation so that replaying the stream
// reproduces the final state.
//
// Numeric fields that legitimately hold zero are always emitted; seat fields
// use InvalidSeat when absent. Keeping the encoding canonical is what makes
// event streams byte-comparable across runs.
type Event struct {
	Seq  uint64    `json:"seq"`
	Type EventType `json:"type"`
	Seat int       `json:"seat"`

	Target int         `json:"target"`
	Role   Role        `json:"role,omitempty"`
	Cards  []card.Card `json:"cards,omitempty"`

	// Count carries the card count on redacted copies where Cards has been
	// stripped for other viewers. Zero on authoritative events.
	Count int `json:"count,omitempty"`

	HP    int `json:"hp"`
	MaxHP int `json:"max_hp,omitempty"`
	Delta int `json:"delta"`

	Phase   Phase  `json:"phase,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Winners []int  `json:"winners,omitempty"`

	// Roles lists every seat's role in seat order on session_finished, the
	// end-of-game reveal. Elimination events carry the fallen seat's role in
	// the Role field instead.
	Roles []Role `json:"roles,omitempty"`
}

// Encode renders the canonical JSON form used for both the wire and the
// determinism contract (fixed field order, no indentation).
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// NewEvent builds an event with seat fields defaulted to InvalidSeat. The
// session assigns the sequence number on emission.
func NewEvent(t EventType, seat int) Event {
	return Event{Type: t, Seat: seat, Target: InvalidSeat}
}
