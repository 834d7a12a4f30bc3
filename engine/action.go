package engine

import "kingdoms-lite/card"

// ActionKind 动作类型
type ActionKind string

const (
	ActionStrike  ActionKind = "strike"
	ActionRecover ActionKind = "recover"
	ActionEndTurn ActionKind = "end_turn"
	ActionPass    ActionKind = "pass"
)

// Action is one request from a seat's occupant. Immutable once submitted.
type Action struct {
	Seat   int         `json:"seat"`
	Kind   ActionKind  `json:"kind"`
	Cards  []card.Card `json:"cards,omitempty"`
	Target int         `json:"target"`

	// Synthetic marks server-injected actions (turn timeouts). They go
	// through the same serialized queue and validation as client actions.
	Synthetic bool `json:"synthetic,omitempty"`
}
