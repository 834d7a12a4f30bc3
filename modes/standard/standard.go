// Package standard implements the built-in lord/loyalist/rebel/renegade rule
// set: seeded deal, one strike per play phase, recovery by discarding, and
// the classic faction victory conditions.
package standard

import (
	"fmt"

	"kingdoms-lite/card"
	"kingdoms-lite/engine"
	"kingdoms-lite/modes"
)

const (
	baseHP         = 4
	lordHPBonus    = 1
	openingHand    = 4
	drawPerTurn    = 2
	recoverDiscard = 2
)

// Params are the tunable numbers of the rule set. Scripted modes override
// them; the built-in modes use the defaults.
type Params struct {
	BaseHP         int
	LordHPBonus    int
	OpeningHand    int
	DrawPerTurn    int
	RecoverDiscard int
	StrikeDamage   int
}

func DefaultParams() Params {
	return Params{
		BaseHP:         baseHP,
		LordHPBonus:    lordHPBonus,
		OpeningHand:    openingHand,
		DrawPerTurn:    drawPerTurn,
		RecoverDiscard: recoverDiscard,
		StrikeDamage:   1,
	}
}

func (p Params) validate() error {
	if p.BaseHP < 1 || p.OpeningHand < 0 || p.DrawPerTurn < 0 ||
		p.RecoverDiscard < 1 || p.StrikeDamage < 1 || p.LordHPBonus < 0 {
		return fmt.Errorf("rule params out of range: %+v", p)
	}
	return nil
}

type Rules struct {
	mode string
	p    Params
}

func New() *Rules { return &Rules{mode: "standard", p: DefaultParams()} }

// NewVariant builds the same rule set under a different mode identifier,
// used for the double-renegade distribution variants.
func NewVariant(mode string) *Rules { return &Rules{mode: mode, p: DefaultParams()} }

// NewTuned builds the rule set with overridden parameters.
func NewTuned(mode string, p Params) (*Rules, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Rules{mode: mode, p: p}, nil
}

// RegisterAll wires the standard mode and its double-renegade variant into
// a registry.
func RegisterAll(reg *modes.Registry) error {
	if err := reg.Register("standard", modes.Entry{
		New:   func() engine.Rules { return New() },
		Table: engine.DefaultDistribution(),
	}); err != nil {
		return err
	}
	return reg.Register("double_renegade", modes.Entry{
		New:   func() engine.Rules { return NewVariant("double_renegade") },
		Table: engine.DoubleRenegadeDistribution(),
	})
}

func (r *Rules) Mode() string { return r.mode }

// Setup deals hit points and opening hands. Events are built against the
// untouched deck; the session applies them in order, so each seat's slice
// offsets into the deck sequentially.
func (r *Rules) Setup(st *engine.GameState) ([]engine.Event, error) {
	var evs []engine.Event
	for _, seat := range st.Seats {
		maxHP := r.p.BaseHP
		if seat.Role == engine.RoleLord {
			maxHP += r.p.LordHPBonus
		}
		ev := engine.NewEvent(engine.EvtSeatHPSet, seat.Index)
		ev.MaxHP = maxHP
		ev.HP = maxHP
		evs = append(evs, ev)
	}
	if r.p.OpeningHand == 0 {
		return evs, nil
	}
	offset := 0
	for _, seat := range st.Seats {
		if offset+r.p.OpeningHand > st.Deck.Len() {
			return nil, engine.ErrInvalidState("deck too small for opening deal")
		}
		ev := engine.NewEvent(engine.EvtCardsDrawn, seat.Index)
		ev.Cards = append([]card.Card(nil), st.Deck[offset:offset+r.p.OpeningHand]...)
		offset += r.p.OpeningHand
		evs = append(evs, ev)
	}
	return evs, nil
}

// FirstSeat: the lord opens the session.
func (r *Rules) FirstSeat(st *engine.GameState) int {
	for _, seat := range st.Seats {
		if seat.Role == engine.RoleLord {
			return seat.Index
		}
	}
	return engine.InvalidSeat
}

// OnTurnStart draws the turn allotment and advances to the play phase. When
// the deck runs short the discard pile is reshuffled back in; the new order
// is recorded on the event so replay needs no rng.
func (r *Rules) OnTurnStart(st *engine.GameState) ([]engine.Event, error) {
	seat := st.Turn
	var evs []engine.Event

	deck := append([]card.Card(nil), st.Deck...)
	if len(deck) < r.p.DrawPerTurn && len(st.Discard) > 0 {
		recycled := append([]card.Card(nil), st.Discard...)
		st.Rng().Shuffle(len(recycled), func(i, j int) { recycled[i], recycled[j] = recycled[j], recycled[i] })
		ev := engine.NewEvent(engine.EvtDeckRecycled, engine.InvalidSeat)
		ev.Cards = recycled
		evs = append(evs, ev)
		deck = append(deck, recycled...)
	}

	draw := r.p.DrawPerTurn
	if draw > len(deck) {
		draw = len(deck)
	}
	if draw > 0 {
		ev := engine.NewEvent(engine.EvtCardsDrawn, seat)
		ev.Cards = deck[:draw]
		evs = append(evs, ev)
	}

	phase := engine.NewEvent(engine.EvtPhaseAdvanced, seat)
	phase.Phase = engine.PhasePlay
	evs = append(evs, phase)
	return evs, nil
}

func (r *Rules) Apply(st *engine.GameState, a engine.Action) ([]engine.Event, error) {
	if st.Phase != engine.PhasePlay {
		return nil, &engine.IllegalActionError{Seat: a.Seat, Kind: a.Kind, Reason: "not in play phase"}
	}
	seat := st.Seats[a.Seat]

	switch a.Kind {
	case engine.ActionStrike:
		return r.applyStrike(st, seat, a)
	case engine.ActionRecover:
		return r.applyRecover(seat, a)
	case engine.ActionEndTurn, engine.ActionPass:
		return []engine.Event{engine.NewEvent(engine.EvtTurnEnded, a.Seat)}, nil
	default:
		return nil, &engine.IllegalActionError{Seat: a.Seat, Kind: a.Kind, Reason: "unknown action kind"}
	}
}

func (r *Rules) applyStrike(st *engine.GameState, seat *engine.Seat, a engine.Action) ([]engine.Event, error) {
	if seat.StruckThisTurn {
		return nil, &engine.IllegalActionError{Seat: a.Seat, Kind: a.Kind, Reason: "already struck this turn"}
	}
	if len(a.Cards) != 1 {
		return nil, &engine.IllegalActionError{Seat: a.Seat, Kind: a.Kind, Reason: "strike plays exactly one card"}
	}
	if !seat.HasCards(a.Cards) {
		return nil, &engine.IllegalActionError{Seat: a.Seat, Kind: a.Kind, Reason: fmt.Sprintf("card %v not in hand", a.Cards[0])}
	}
	if a.Target < 0 || a.Target >= len(st.Seats) || a.Target == a.Seat {
		return nil, &engine.IllegalActionError{Seat: a.Seat, Kind: a.Kind, Reason: "invalid target"}
	}
	target := st.Seats[a.Target]
	if !target.Alive || target.PlayerID == "" {
		return nil, &engine.IllegalActionError{Seat: a.Seat, Kind: a.Kind, Reason: "target not in play"}
	}

	played := engine.NewEvent(engine.EvtCardsPlayed, a.Seat)
	played.Cards = append([]card.Card(nil), a.Cards...)
	played.Target = a.Target
	played.Reason = "strike"

	hp := engine.NewEvent(engine.EvtHPChanged, a.Target)
	hp.Delta = -r.p.StrikeDamage
	hp.HP = target.HP - r.p.StrikeDamage

	evs := []engine.Event{played, hp}
	if target.HP-r.p.StrikeDamage <= 0 {
		elim := engine.NewEvent(engine.EvtSeatEliminated, a.Target)
		// Elimination reveals the fallen seat's role.
		elim.Role = target.Role
		evs = append(evs, elim)
	}
	return evs, nil
}

func (r *Rules) applyRecover(seat *engine.Seat, a engine.Action) ([]engine.Event, error) {
	if len(a.Cards) != r.p.RecoverDiscard {
		return nil, &engine.IllegalActionError{Seat: a.Seat, Kind: a.Kind, Reason: fmt.Sprintf("recover discards exactly %d cards", r.p.RecoverDiscard)}
	}
	if !seat.HasCards(a.Cards) {
		return nil, &engine.IllegalActionError{Seat: a.Seat, Kind: a.Kind, Reason: "cards not in hand"}
	}
	if seat.HP >= seat.MaxHP {
		return nil, &engine.IllegalActionError{Seat: a.Seat, Kind: a.Kind, Reason: "already at full hit points"}
	}

	played := engine.NewEvent(engine.EvtCardsPlayed, a.Seat)
	played.Cards = append([]card.Card(nil), a.Cards...)
	played.Reason = "recover"

	hp := engine.NewEvent(engine.EvtHPChanged, a.Seat)
	hp.Delta = 1
	hp.HP = seat.HP + 1

	return []engine.Event{played, hp}, nil
}

func (r *Rules) NextSeat(st *engine.GameState, cur int) int {
	return st.NextActiveSeat(cur)
}

// Finished evaluates the faction victory conditions. When the lord falls the
// rebels win, unless a renegade is the sole survivor. The lord's side wins
// once every rebel and renegade is eliminated.
func (r *Rules) Finished(st *engine.GameState) (engine.Outcome, bool) {
	lordAlive := false
	hostilesAlive := false
	aliveSeats := make([]*engine.Seat, 0, len(st.Seats))
	for _, seat := range st.Seats {
		if seat.Alive {
			aliveSeats = append(aliveSeats, seat)
		}
		switch seat.Role {
		case engine.RoleLord:
			lordAlive = seat.Alive
		case engine.RoleRebel, engine.RoleRenegade:
			if seat.Alive {
				hostilesAlive = true
			}
		}
	}

	if !lordAlive {
		if len(aliveSeats) == 1 && aliveSeats[0].Role == engine.RoleRenegade {
			return engine.Outcome{
				Winners: []int{aliveSeats[0].Index},
				Reason:  "renegade_last_standing",
			}, true
		}
		return engine.Outcome{
			Winners: seatsWithRole(st, engine.RoleRebel),
			Reason:  "lord_eliminated",
		}, true
	}

	if !hostilesAlive {
		winners := seatsWithRole(st, engine.RoleLord)
		winners = append(winners, seatsWithRole(st, engine.RoleLoyalist)...)
		return engine.Outcome{Winners: winners, Reason: "lord_side_victory"}, true
	}

	return engine.Outcome{}, false
}

func seatsWithRole(st *engine.GameState, role engine.Role) []int {
	var out []int
	for _, seat := range st.Seats {
		if seat.Role == role {
			out = append(out, seat.Index)
		}
	}
	return out
}
