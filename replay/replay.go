package replay

import (
	"fmt"

	"kingdoms-lite/engine"
)

// Replay reconstructs the final GameState of a sealed tape. It rebuilds the
// pre-assignment state from the recorded configuration, verifies the
// recorded role assignment against a local recomputation from the seed, and
// applies every event through the same GameState.Apply path live play uses.
// No transport or connection hub is involved.
//
// A terminal digest differing from the sealed one is a desync: it signals
// engine or version drift and is reported, never silently accepted.
func Replay(tape *Tape, table engine.DistributionTable) (*engine.GameState, error) {
	if tape.Version != TapeVersion {
		return nil, &ReplayError{
			StepIndex: -1,
			Reason:    "unsupported_version",
			Message:   fmt.Sprintf("tape version %d, engine supports %d", tape.Version, TapeVersion),
		}
	}

	st, roles, err := engine.RehydrateState(tape.Config(), table, tape.Players)
	if err != nil {
		return nil, &ReplayError{StepIndex: -1, Reason: "rehydrate_failed", Message: err.Error()}
	}

	for i, ev := range tape.Events {
		if ev.Type == engine.EvtRoleAssigned {
			if ev.Seat < 0 || ev.Seat >= len(roles) || roles[ev.Seat] != ev.Role {
				return nil, &ReplayError{
					StepIndex: i,
					Reason:    "role_drift",
					Message:   fmt.Sprintf("recorded role %s for seat %d does not match recomputed assignment", ev.Role, ev.Seat),
				}
			}
		}
		if err := st.Apply(ev); err != nil {
			return nil, &ReplayError{StepIndex: i, Reason: "apply_failed", Message: err.Error()}
		}
	}

	if tape.FinalDigest != "" {
		if got := st.Digest(); got != tape.FinalDigest {
			return nil, &ReplayError{
				StepIndex: len(tape.Events),
				Reason:    "state_desync",
				Message:   fmt.Sprintf("terminal digest %s does not match sealed %s", got, tape.FinalDigest),
			}
		}
	}
	return st, nil
}

// Verify replays a sealed tape and reports only the error. Unsealed tapes
// are rejected because there is no digest to check against.
func Verify(tape *Tape, table engine.DistributionTable) error {
	if tape.FinalDigest == "" {
		return ErrNotSealed
	}
	_, err := Replay(tape, table)
	return err
}
