// Package replay records a session's event stream and reconstructs finished
// sessions deterministically from the recorded tape.
package replay

import "kingdoms-lite/engine"

// TapeVersion is the current on-disk tape format version. The field is
// mandatory in every encoded tape so saved sessions stay replayable, or at
// least loudly rejected, across engine versions.
const TapeVersion = 1

// Tape is the append-only record of one session: the initial configuration
// (seats, mode, seed, occupants) plus every event the session emitted, in
// order. Sealed tapes additionally carry the terminal state digest.
type Tape struct {
	Version   int            `json:"tape_version"`
	SessionID string         `json:"session_id"`
	Mode      string         `json:"mode"`
	SeatCount int            `json:"seat_count"`
	Seed      int64          `json:"seed"`
	Players   []string       `json:"players"`
	Events    []engine.Event `json:"events"`

	// FinalDigest is set at seal time from the live session's terminal
	// state. Empty on unsealed tapes.
	FinalDigest string `json:"final_digest,omitempty"`
	SealedAtMs  int64  `json:"sealed_at_ms,omitempty"`
}

// Config reconstructs the engine configuration recorded on the tape.
func (t *Tape) Config() engine.Config {
	return engine.Config{
		SessionID: t.SessionID,
		Mode:      t.Mode,
		SeatCount: t.SeatCount,
		Seed:      t.Seed,
	}
}
