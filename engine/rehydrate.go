package engine

import (
	"fmt"

	"kingdoms-lite/card"
)

// RehydrateState rebuilds the pre-assignment state of a recorded session so
// its event stream can be replayed through GameState.Apply. It consumes the
// seeded rng in exactly the order Start does (role shuffle, then deck
// shuffle); the returned roles are the locally recomputed assignment, which
// replay compares against the recorded role events to detect engine drift.
func RehydrateState(cfg Config, table DistributionTable, players []string) (*GameState, []Role, error) {
	if err := cfg.Validate(table); err != nil {
		return nil, nil, err
	}
	if len(players) != cfg.SeatCount {
		return nil, nil, fmt.Errorf("player list has %d entries for %d seats", len(players), cfg.SeatCount)
	}

	s, err := NewSession(cfg, table, noRules{})
	if err != nil {
		return nil, nil, err
	}
	st := s.st
	for i, id := range players {
		if id == "" {
			return nil, nil, fmt.Errorf("seat %d has no recorded occupant", i)
		}
		st.Seats[i].PlayerID = id
		st.Seats[i].Connected = true
	}

	roles, err := AssignRoles(cfg.SeatCount, table, s.rng)
	if err != nil {
		return nil, nil, err
	}

	pack := card.StandardPack()
	s.rng.Shuffle(len(pack), func(i, j int) { pack[i], pack[j] = pack[j], pack[i] })
	st.Deck.Init(pack)

	return st, roles, nil
}

// noRules satisfies Rules for rehydration, where events are applied directly
// and the rule set is never consulted.
type noRules struct{}

func (noRules) Mode() string                             { return "replay" }
func (noRules) Setup(*GameState) ([]Event, error)        { return nil, nil }
func (noRules) FirstSeat(*GameState) int                 { return InvalidSeat }
func (noRules) OnTurnStart(*GameState) ([]Event, error)  { return nil, nil }
func (noRules) Apply(*GameState, Action) ([]Event, error) { return nil, nil }
func (noRules) NextSeat(*GameState, int) int             { return InvalidSeat }
func (noRules) Finished(*GameState) (Outcome, bool)      { return Outcome{}, false }
