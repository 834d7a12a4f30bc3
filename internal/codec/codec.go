// Package codec defines the JSON envelopes exchanged with clients and the
// per-viewer redaction of hidden information.
package codec

import (
	"encoding/json"
	"time"

	"kingdoms-lite/engine"
)

// Client → server message kinds.
const (
	ClientKindJoin       = "join"
	ClientKindAction     = "action"
	ClientKindDisconnect = "disconnect"
)

// Server → client message kinds.
const (
	ServerKindWelcome  = "welcome"
	ServerKindEvent    = "event"
	ServerKindReject   = "reject"
	ServerKindSnapshot = "snapshot"
)

// ClientEnvelope is one inbound message.
type ClientEnvelope struct {
	Kind     string `json:"kind"`
	PlayerID string `json:"player_id,omitempty"`
	Room     string `json:"room,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Seats    int    `json:"seats,omitempty"`

	// Seed fixes the session seed when this join creates a room; zero draws
	// a fresh one. Ignored when joining an existing room.
	Seed int64 `json:"seed,omitempty"`

	Action *engine.Action `json:"action,omitempty"`
}

// Reject is sent only to the originating client; rejected actions never
// produce broadcast events.
type Reject struct {
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}

// ServerEnvelope is one outbound message.
type ServerEnvelope struct {
	Kind       string           `json:"kind"`
	Seq        uint64           `json:"seq,omitempty"`
	ServerTsMs int64            `json:"server_ts_ms"`
	Seat       int              `json:"seat"`
	Room       string           `json:"room,omitempty"`
	Event      *engine.Event    `json:"event,omitempty"`
	Reject     *Reject          `json:"reject,omitempty"`
	Snapshot   *engine.Snapshot `json:"snapshot,omitempty"`
}

func Marshal(env ServerEnvelope) ([]byte, error) {
	env.ServerTsMs = time.Now().UnixMilli()
	return json.Marshal(env)
}

func Unmarshal(data []byte) (*ClientEnvelope, error) {
	var env ClientEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Reject reason strings, aligned with the engine error taxonomy.
const (
	ReasonOutOfTurn        = "out_of_turn"
	ReasonIllegalAction    = "illegal_action"
	ReasonInvalidSeatCount = "invalid_seat_count"
	ReasonSessionEnded     = "session_ended"
	ReasonBadMessage       = "bad_message"
	ReasonInternal         = "internal"
)

// EventEnvelope wraps one authoritative event for a specific viewer,
// applying redaction first.
func EventEnvelope(room string, viewSeat int, ev engine.Event) ServerEnvelope {
	red := RedactEvent(viewSeat, ev)
	return ServerEnvelope{Kind: ServerKindEvent, Seq: ev.Seq, Seat: viewSeat, Room: room, Event: &red}
}

// RedactEvent strips hidden information an event would leak to other seats:
// drawn cards are reduced to a count, and hidden role assignments are
// withheld. The lord's role is public; eliminations reveal the role, which
// the engine reflects in the event stream itself.
func RedactEvent(viewSeat int, ev engine.Event) engine.Event {
	switch ev.Type {
	case engine.EvtCardsDrawn:
		if ev.Seat != viewSeat {
			ev.Count = len(ev.Cards)
			ev.Cards = nil
		}
	case engine.EvtDeckRecycled:
		// Nobody sees the recycled order.
		ev.Count = len(ev.Cards)
		ev.Cards = nil
	case engine.EvtRoleAssigned:
		if ev.Seat != viewSeat && ev.Role != engine.RoleLord {
			ev.Role = engine.RoleNone
		}
	}
	return ev
}

// RedactSnapshot hides other seats' hands and unrevealed roles from a
// viewer. InvalidSeat (a pure spectator) sees only public state.
func RedactSnapshot(viewSeat int, snap engine.Snapshot) engine.Snapshot {
	seats := make([]engine.SeatSnapshot, len(snap.Seats))
	copy(seats, snap.Seats)
	for i := range seats {
		if seats[i].Index == viewSeat {
			continue
		}
		seats[i].Hand = nil
		if !seats[i].RoleRevealed {
			seats[i].Role = engine.RoleNone
		}
	}
	snap.Seats = seats
	return snap
}
