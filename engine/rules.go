package engine

// Outcome describes how a finished session ended.
type Outcome struct {
	Winners []int // seat indexes, including eliminated winners
	Reason  string
}

// Rules is the pluggable rule set for one game mode. Implementations
// validate and describe changes but never mutate the state themselves: every
// returned event flows through GameState.Apply inside the session, which is
// what makes the event stream sufficient for replay.
//
// Implementations must not retain references into the state beyond the call.
type Rules interface {
	// Mode returns the mode identifier this rule set implements.
	Mode() string

	// Setup emits the opening events (hit points, opening hands) right
	// after role assignment. The deck is already shuffled.
	Setup(st *GameState) ([]Event, error)

	// FirstSeat picks the seat that takes the first turn.
	FirstSeat(st *GameState) int

	// OnTurnStart emits the automatic turn-opening events (draws, phase
	// advance) for the seat whose turn just started.
	OnTurnStart(st *GameState) ([]Event, error)

	// Apply validates a player action against the current turn, phase and
	// game rules. On success it returns the minimal ordered event list
	// fully describing the change; on failure the state is untouched and
	// an *IllegalActionError is returned.
	Apply(st *GameState, a Action) ([]Event, error)

	// NextSeat returns the seat after cur in turn order, skipping
	// eliminated and disconnected seats.
	NextSeat(st *GameState, cur int) int

	// Finished evaluates the terminal condition after every successful
	// apply.
	Finished(st *GameState) (Outcome, bool)
}
