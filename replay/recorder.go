package replay

import (
	"fmt"
	"sync"
	"time"

	"kingdoms-lite/engine"
)

// Recorder is the live ReplayLog of one session: append-only, strictly
// ordered, sealed read-only when the session ends. It observes the event
// stream and never touches game state.
type Recorder struct {
	mu     sync.Mutex
	tape   Tape
	sealed bool
}

// NewRecorder captures the initial configuration before any event exists.
func NewRecorder(cfg engine.Config, players []string) *Recorder {
	return &Recorder{
		tape: Tape{
			Version:   TapeVersion,
			SessionID: cfg.SessionID,
			Mode:      cfg.Mode,
			SeatCount: cfg.SeatCount,
			Seed:      cfg.Seed,
			Players:   append([]string(nil), players...),
		},
	}
}

// Record appends one event. Sequence numbers must be contiguous; a gap means
// the recorder missed an event and the tape would be unreplayable.
func (r *Recorder) Record(ev engine.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrSealed
	}
	want := uint64(len(r.tape.Events)) + 1
	if ev.Seq != want {
		return &ReplayError{
			StepIndex: len(r.tape.Events),
			Reason:    "seq_gap",
			Message:   fmt.Sprintf("recorded seq %d, want %d", ev.Seq, want),
		}
	}
	r.tape.Events = append(r.tape.Events, ev)
	return nil
}

// Seal freezes the tape and stamps the live session's terminal digest.
func (r *Recorder) Seal(finalDigest string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrSealed
	}
	r.sealed = true
	r.tape.FinalDigest = finalDigest
	r.tape.SealedAtMs = time.Now().UTC().UnixMilli()
	return nil
}

func (r *Recorder) Sealed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sealed
}

// Tape returns a copy; the recorder's own tape stays private so prior
// entries can never be mutated from the outside.
func (r *Recorder) Tape() *Tape {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.tape
	out.Players = append([]string(nil), r.tape.Players...)
	out.Events = append([]engine.Event(nil), r.tape.Events...)
	return &out
}
