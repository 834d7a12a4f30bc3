package engine

import (
	"fmt"
	"math/rand"

	"kingdoms-lite/card"
)

// Seat is one stable slot in a session. The seat index never changes for the
// session lifetime; occupancy and role do.
type Seat struct {
	Index    int
	PlayerID string // empty if vacant
	Role     Role
	// RoleRevealed is true for the lord from assignment on, and for any
	// seat after elimination or game end.
	RoleRevealed bool

	HP    int
	MaxHP int
	Hand  []card.Card

	Alive     bool
	Connected bool

	// Per-turn flag, reset on turn start.
	StruckThisTurn bool
}

// GameState is the authoritative model of one session. It is mutated only
// through Apply, which is the sole path for both live play and replay.
type GameState struct {
	Status  Status
	Seats   []*Seat
	Deck    card.Deck
	Discard []card.Card

	Turn  int
	Phase Phase

	// Seq is the sequence number of the last applied event.
	Seq uint64

	Winners     []int
	AbortReason string

	// Session-scoped rng, shared with the owning session. Rule sets may
	// consume it for in-game randomness (reshuffles); replay never does,
	// because recorded events already carry the outcomes.
	rng *rand.Rand
}

// Rng exposes the session-scoped random source to rule sets.
func (st *GameState) Rng() *rand.Rand { return st.rng }

func newGameState(seatCount int) *GameState {
	st := &GameState{
		Status: StatusLobby,
		Seats:  make([]*Seat, seatCount),
		Turn:   InvalidSeat,
		Phase:  PhaseNone,
	}
	for i := range st.Seats {
		st.Seats[i] = &Seat{Index: i, Alive: true}
	}
	return st
}

func (st *GameState) seat(idx int) (*Seat, error) {
	if idx < 0 || idx >= len(st.Seats) {
		return nil, ErrInvalidState(fmt.Sprintf("seat %d out of range", idx))
	}
	return st.Seats[idx], nil
}

// SeatOf returns the seat index occupied by playerID, or InvalidSeat.
func (st *GameState) SeatOf(playerID string) int {
	for _, s := range st.Seats {
		if s.PlayerID == playerID {
			return s.Index
		}
	}
	return InvalidSeat
}

// AliveCount 存活人数
func (st *GameState) AliveCount() int {
	n := 0
	for _, s := range st.Seats {
		if s.Alive {
			n++
		}
	}
	return n
}

// ConnectedCount counts occupied seats whose player is still attached.
func (st *GameState) ConnectedCount() int {
	n := 0
	for _, s := range st.Seats {
		if s.PlayerID != "" && s.Connected {
			n++
		}
	}
	return n
}

// NextActiveSeat walks the seat ring after cur and returns the first seat
// that is alive and connected, or InvalidSeat if none qualifies. Eliminated
// and disconnected seats are skipped by the turn order.
func (st *GameState) NextActiveSeat(cur int) int {
	n := len(st.Seats)
	for step := 1; step <= n; step++ {
		idx := (cur + step) % n
		s := st.Seats[idx]
		if s.Alive && s.Connected && s.PlayerID != "" {
			return idx
		}
	}
	return InvalidSeat
}

// Apply mutates the state with one event. Events must arrive in strict
// sequence order; a gap means the caller lost events and the state can no
// longer be trusted.
func (st *GameState) Apply(ev Event) error {
	if ev.Seq != st.Seq+1 {
		return ErrInvalidState(fmt.Sprintf("event seq %d applied on state at seq %d", ev.Seq, st.Seq))
	}

	switch ev.Type {
	case EvtRoleAssigned:
		s, err := st.seat(ev.Seat)
		if err != nil {
			return err
		}
		s.Role = ev.Role
		// The lord is public from assignment on.
		s.RoleRevealed = ev.Role == RoleLord
		if st.Status == StatusLobby {
			st.Status = StatusRoleAssignment
		}

	case EvtSeatHPSet:
		s, err := st.seat(ev.Seat)
		if err != nil {
			return err
		}
		s.MaxHP = ev.MaxHP
		s.HP = ev.HP

	case EvtCardsDrawn:
		s, err := st.seat(ev.Seat)
		if err != nil {
			return err
		}
		drawn, ok := st.Deck.Pop(len(ev.Cards))
		if !ok {
			return ErrInvalidState("deck underflow")
		}
		for i, c := range drawn {
			if c != ev.Cards[i] {
				return ErrInvalidState(fmt.Sprintf("drawn card %v does not match recorded %v", c, ev.Cards[i]))
			}
		}
		s.Hand = append(s.Hand, drawn...)

	case EvtDeckRecycled:
		// The discard pile re-enters the deck in the recorded order, so
		// replay never needs the rng that produced it.
		st.Deck = append(st.Deck, ev.Cards...)
		st.Discard = st.Discard[:0]

	case EvtTurnStarted:
		s, err := st.seat(ev.Seat)
		if err != nil {
			return err
		}
		st.Turn = ev.Seat
		st.Phase = PhaseDraw
		s.StruckThisTurn = false
		if st.Status == StatusRoleAssignment {
			st.Status = StatusInProgress
		}

	case EvtPhaseAdvanced:
		st.Phase = ev.Phase

	case EvtCardsPlayed:
		s, err := st.seat(ev.Seat)
		if err != nil {
			return err
		}
		if err := s.removeCards(ev.Cards); err != nil {
			return err
		}
		st.Discard = append(st.Discard, ev.Cards...)

	case EvtHPChanged:
		s, err := st.seat(ev.Seat)
		if err != nil {
			return err
		}
		s.HP = ev.HP

	case EvtSeatEliminated:
		s, err := st.seat(ev.Seat)
		if err != nil {
			return err
		}
		s.Alive = false
		s.RoleRevealed = true
		st.Discard = append(st.Discard, s.Hand...)
		s.Hand = nil

	case EvtTurnEnded:
		st.Phase = PhaseEnd

	case EvtSeatDisconnected:
		s, err := st.seat(ev.Seat)
		if err != nil {
			return err
		}
		s.Connected = false

	case EvtSeatRejoined:
		s, err := st.seat(ev.Seat)
		if err != nil {
			return err
		}
		s.Connected = true

	case EvtSessionFinished:
		st.Status = StatusFinished
		st.Winners = append([]int(nil), ev.Winners...)
		for _, s := range st.Seats {
			s.RoleRevealed = true
		}

	case EvtSessionAborted:
		st.Status = StatusAborted
		st.AbortReason = ev.Reason

	default:
		return ErrInvalidState(fmt.Sprintf("unknown event type %q", ev.Type))
	}

	st.Seq = ev.Seq
	return nil
}

func (s *Seat) removeCards(cards []card.Card) error {
	for _, want := range cards {
		found := false
		for i, c := range s.Hand {
			if c == want {
				s.Hand = append(s.Hand[:i], s.Hand[i+1:]...)
				found = true
				break
			}
		}
		if !found {
			return ErrInvalidState(fmt.Sprintf("seat %d does not hold %v", s.Index, want))
		}
	}
	return nil
}

// HasCards reports whether the seat holds every card in cards (multiset).
func (s *Seat) HasCards(cards []card.Card) bool {
	remaining := append([]card.Card(nil), s.Hand...)
	for _, want := range cards {
		found := false
		for i, c := range remaining {
			if c == want {
				remaining = append(remaining[:i], remaining[i+1:]...)
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
