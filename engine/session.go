package engine

import (
	"fmt"
	"math/rand"
	"sync"

	"kingdoms-lite/card"
)

// Session is the server-authoritative state machine of one room:
// Lobby → RoleAssignment → InProgress → {Finished, Aborted}.
//
// Every mutation is expressed as events applied through GameState.Apply and
// returned to the caller in emission order. Callers (the room actor) must
// persist and broadcast the returned batch in that same order. For a fixed
// seed and a fixed action sequence the emitted event stream is byte
// reproducible; the replay package depends on that.
type Session struct {
	cfg   Config
	table DistributionTable
	rules Rules
	rng   *rand.Rand

	mu sync.Mutex
	st *GameState
}

// NewSession validates the configuration against the distribution table and
// builds an empty lobby session. An unknown seat count fails here, before
// any state exists.
func NewSession(cfg Config, table DistributionTable, rules Rules) (*Session, error) {
	if err := cfg.Validate(table); err != nil {
		return nil, err
	}
	if rules == nil {
		return nil, fmt.Errorf("nil rules")
	}
	s := &Session{
		cfg:   cfg,
		table: table,
		rules: rules,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
	}
	s.st = newGameState(cfg.SeatCount)
	s.st.rng = s.rng
	return s, nil
}

func (s *Session) Config() Config { return s.cfg }

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Status
}

// Join seats a player in the first vacant seat. Only valid in the lobby.
func (s *Session) Join(playerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.Status != StatusLobby {
		return InvalidSeat, ErrNotInLobby
	}
	if playerID == "" {
		return InvalidSeat, fmt.Errorf("empty player id")
	}
	if s.st.SeatOf(playerID) != InvalidSeat {
		return InvalidSeat, fmt.Errorf("player %s already seated", playerID)
	}
	for _, seat := range s.st.Seats {
		if seat.PlayerID == "" {
			seat.PlayerID = playerID
			seat.Connected = true
			return seat.Index, nil
		}
	}
	return InvalidSeat, ErrSessionFull
}

// Leave vacates a player's seat while still in the lobby. Once roles are
// assigned seats are never vacated, only marked disconnected.
func (s *Session) Leave(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.Status != StatusLobby {
		return ErrNotInLobby
	}
	idx := s.st.SeatOf(playerID)
	if idx == InvalidSeat {
		return nil
	}
	seat := s.st.Seats[idx]
	seat.PlayerID = ""
	seat.Connected = false
	return nil
}

// Full reports whether every seat is occupied.
func (s *Session) Full() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seat := range s.st.Seats {
		if seat.PlayerID == "" {
			return false
		}
	}
	return true
}

// Start runs role assignment and the opening sequence, transitioning
// Lobby → RoleAssignment → InProgress. Role shuffle and deck shuffle consume
// the session rng in a fixed order so that replay reproduces both.
func (s *Session) Start() ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.Status != StatusLobby {
		return nil, ErrNotInLobby
	}
	for _, seat := range s.st.Seats {
		if seat.PlayerID == "" {
			return nil, fmt.Errorf("cannot start with vacant seat %d", seat.Index)
		}
	}

	roles, err := AssignRoles(s.cfg.SeatCount, s.table, s.rng)
	if err != nil {
		return nil, err
	}

	pack := card.StandardPack()
	s.rng.Shuffle(len(pack), func(i, j int) { pack[i], pack[j] = pack[j], pack[i] })
	s.st.Deck.Init(pack)

	var batch []Event
	for idx, role := range roles {
		ev := NewEvent(EvtRoleAssigned, idx)
		ev.Role = role
		if err := s.emit(&batch, ev); err != nil {
			return nil, err
		}
	}

	setup, err := s.rules.Setup(s.st)
	if err != nil {
		return nil, err
	}
	if err := s.emit(&batch, setup...); err != nil {
		return nil, err
	}

	first := s.rules.FirstSeat(s.st)
	if first == InvalidSeat {
		return nil, ErrInvalidState("rules returned no first seat")
	}
	if err := s.startTurn(&batch, first); err != nil {
		return nil, err
	}
	return batch, nil
}

// Submit validates and applies one action. Rejections (out of turn, illegal
// action) leave the state untouched and emit nothing; only the originating
// client hears about them.
func (s *Session) Submit(a Action) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.Status.Ended() {
		return nil, ErrSessionEnded
	}
	if s.st.Status != StatusInProgress {
		return nil, ErrNotInProgress
	}
	seat, err := s.st.seat(a.Seat)
	if err != nil {
		return nil, err
	}
	if !seat.Alive || seat.PlayerID == "" {
		return nil, &IllegalActionError{Seat: a.Seat, Kind: a.Kind, Reason: "seat not active"}
	}
	if a.Seat != s.st.Turn {
		return nil, ErrOutOfTurn
	}

	evs, err := s.rules.Apply(s.st, a)
	if err != nil {
		return nil, err
	}

	var batch []Event
	if err := s.emit(&batch, evs...); err != nil {
		return nil, err
	}
	return batch, s.afterApply(&batch)
}

// afterApply evaluates the terminal condition and, if the turn ended,
// advances to the next active seat.
func (s *Session) afterApply(batch *[]Event) error {
	if outcome, done := s.rules.Finished(s.st); done {
		ev := NewEvent(EvtSessionFinished, InvalidSeat)
		ev.Winners = outcome.Winners
		ev.Reason = outcome.Reason
		// End of game reveals every role; clients learn them from the event
		// stream without refetching a snapshot.
		ev.Roles = make([]Role, len(s.st.Seats))
		for i, seat := range s.st.Seats {
			ev.Roles[i] = seat.Role
		}
		return s.emit(batch, ev)
	}
	if s.st.Phase != PhaseEnd {
		return nil
	}
	next := s.rules.NextSeat(s.st, s.st.Turn)
	if next == InvalidSeat {
		ev := NewEvent(EvtSessionAborted, InvalidSeat)
		ev.Reason = "no active seats remain"
		return s.emit(batch, ev)
	}
	return s.startTurn(batch, next)
}

func (s *Session) startTurn(batch *[]Event, seat int) error {
	if err := s.emit(batch, NewEvent(EvtTurnStarted, seat)); err != nil {
		return err
	}
	opening, err := s.rules.OnTurnStart(s.st)
	if err != nil {
		return err
	}
	return s.emit(batch, opening...)
}

// Disconnect marks a seat's occupant as detached. Mid-turn disconnects end
// the seat's turn so play continues around them; the seat itself is kept for
// a possible rejoin.
func (s *Session) Disconnect(seatIdx int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seat, err := s.st.seat(seatIdx)
	if err != nil {
		return nil, err
	}
	if s.st.Status == StatusLobby {
		// Pre-session: just vacate, nothing to record yet.
		seat.PlayerID = ""
		seat.Connected = false
		return nil, nil
	}
	if s.st.Status.Ended() || !seat.Connected || seat.PlayerID == "" {
		return nil, nil
	}

	var batch []Event
	if err := s.emit(&batch, NewEvent(EvtSeatDisconnected, seatIdx)); err != nil {
		return nil, err
	}
	if s.st.Status == StatusInProgress && s.st.Turn == seatIdx && seat.Alive {
		if err := s.emit(&batch, NewEvent(EvtTurnEnded, seatIdx)); err != nil {
			return nil, err
		}
		if err := s.afterApply(&batch); err != nil {
			return nil, err
		}
	}
	return batch, nil
}

// Rejoin reattaches the same identity to its seat with no state loss.
func (s *Session) Rejoin(seatIdx int, playerID string) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seat, err := s.st.seat(seatIdx)
	if err != nil {
		return nil, err
	}
	if s.st.Status.Ended() {
		return nil, ErrSessionEnded
	}
	if seat.PlayerID != playerID {
		return nil, fmt.Errorf("seat %d belongs to another identity", seatIdx)
	}
	if seat.Connected {
		return nil, nil
	}

	var batch []Event
	if err := s.emit(&batch, NewEvent(EvtSeatRejoined, seatIdx)); err != nil {
		return nil, err
	}
	return batch, nil
}

// Abort force-terminates the session from any non-terminal state.
func (s *Session) Abort(reason string) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.Status.Ended() {
		return nil, ErrSessionEnded
	}
	var batch []Event
	ev := NewEvent(EvtSessionAborted, InvalidSeat)
	ev.Reason = reason
	if err := s.emit(&batch, ev); err != nil {
		return nil, err
	}
	return batch, nil
}

// CurrentTurn returns the seat entitled to act, or InvalidSeat.
func (s *Session) CurrentTurn() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.Status != StatusInProgress {
		return InvalidSeat
	}
	return s.st.Turn
}

// ConnectedCount counts seats with an attached occupant.
func (s *Session) ConnectedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ConnectedCount()
}

// Digest returns the canonical hash of the current state.
func (s *Session) Digest() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Digest()
}

// PlayerIDs returns occupant identities in seat order; vacant seats yield
// empty strings. The replay tape stores this as initial configuration.
func (s *Session) PlayerIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.st.Seats))
	for i, seat := range s.st.Seats {
		out[i] = seat.PlayerID
	}
	return out
}

// emit assigns sequence numbers and applies events in order. An apply
// failure mid-batch means engine and rules disagree about the state; that is
// unrecoverable for the session.
func (s *Session) emit(batch *[]Event, evs ...Event) error {
	for _, ev := range evs {
		ev.Seq = s.st.Seq + 1
		if err := s.st.Apply(ev); err != nil {
			return err
		}
		*batch = append(*batch, ev)
	}
	return nil
}
