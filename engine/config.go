package engine

import "fmt"

// Config is the full configuration of one session, fixed at creation. It is
// an explicit value passed into NewSession, never shared process state, and
// it is what a replay tape needs to rebuild the session from scratch.
type Config struct {
	SessionID string

	// Game mode identifier, resolved to a rule set by the caller.
	Mode string

	// Number of seats; must have a distribution-table entry.
	SeatCount int

	// RNG seed (0 => caller picks one; the engine never substitutes time
	// for it because the consumed seed must land in the replay tape).
	Seed int64
}

func (c Config) Validate(table DistributionTable) error {
	if c.SessionID == "" {
		return fmt.Errorf("SessionID must not be empty")
	}
	if c.Mode == "" {
		return fmt.Errorf("Mode must not be empty")
	}
	if c.Seed == 0 {
		return fmt.Errorf("Seed must be set")
	}
	if _, ok := table[c.SeatCount]; !ok {
		return &InvalidSeatCountError{Count: c.SeatCount}
	}
	return nil
}
