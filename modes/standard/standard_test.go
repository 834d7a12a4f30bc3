package standard

import (
	"errors"
	"testing"

	"kingdoms-lite/card"
	"kingdoms-lite/engine"
	"kingdoms-lite/modes"
)

func newSession(t *testing.T, seats int, seed int64) *engine.Session {
	t.Helper()
	s, err := engine.NewSession(engine.Config{
		SessionID: "test",
		Mode:      "standard",
		SeatCount: seats,
		Seed:      seed,
	}, engine.DefaultDistribution(), New())
	if err != nil {
		t.Fatalf("NewSession err: %v", err)
	}
	return s
}

func startGame(t *testing.T, s *engine.Session, seats int) {
	t.Helper()
	players := []string{"alice", "bob", "carol", "dave", "erin"}
	for i := 0; i < seats; i++ {
		if _, err := s.Join(players[i]); err != nil {
			t.Fatalf("Join err: %v", err)
		}
	}
	if _, err := s.Start(); err != nil {
		t.Fatalf("Start err: %v", err)
	}
}

func lordSeat(snap engine.Snapshot) int {
	for _, seat := range snap.Seats {
		if seat.Role == engine.RoleLord {
			return seat.Index
		}
	}
	return engine.InvalidSeat
}

func TestSetupDealsHandsAndHitPoints(t *testing.T) {
	s := newSession(t, 5, 21)
	startGame(t, s, 5)

	snap := s.Snapshot()
	lord := lordSeat(snap)
	if lord == engine.InvalidSeat {
		t.Fatalf("no lord assigned")
	}
	if snap.Turn != lord {
		t.Fatalf("first turn = %d, want lord seat %d", snap.Turn, lord)
	}

	for _, seat := range snap.Seats {
		wantHP := baseHP
		wantHand := openingHand
		if seat.Index == lord {
			wantHP = baseHP + lordHPBonus
			// The lord's opening turn already drew its allotment.
			wantHand += drawPerTurn
		}
		if seat.HP != wantHP || seat.MaxHP != wantHP {
			t.Fatalf("seat %d hp %d/%d, want %d", seat.Index, seat.HP, seat.MaxHP, wantHP)
		}
		if len(seat.Hand) != wantHand {
			t.Fatalf("seat %d hand %d, want %d", seat.Index, len(seat.Hand), wantHand)
		}
	}

	// Lord hidden from nobody, other roles hidden until elimination.
	for _, seat := range snap.Seats {
		if (seat.Index == lord) != seat.RoleRevealed {
			t.Fatalf("seat %d revealed=%v, lord=%d", seat.Index, seat.RoleRevealed, lord)
		}
	}
}

func TestStrikeCostsCardAndHitPoint(t *testing.T) {
	s := newSession(t, 2, 21)
	startGame(t, s, 2)

	snap := s.Snapshot()
	turn := snap.Turn
	target := 1 - turn
	weapon := snap.Seats[turn].Hand[0]
	targetHP := snap.Seats[target].HP

	if _, err := s.Submit(engine.Action{
		Seat:   turn,
		Kind:   engine.ActionStrike,
		Cards:  []card.Card{weapon},
		Target: target,
	}); err != nil {
		t.Fatalf("strike err: %v", err)
	}

	after := s.Snapshot()
	if after.Seats[target].HP != targetHP-1 {
		t.Fatalf("target hp = %d, want %d", after.Seats[target].HP, targetHP-1)
	}
	if len(after.Discard) != 1 || after.Discard[0] != weapon {
		t.Fatalf("played card should be in discard, got %v", after.Discard)
	}

	// One strike per play phase.
	second := after.Seats[turn].Hand[0]
	_, err := s.Submit(engine.Action{
		Seat:   turn,
		Kind:   engine.ActionStrike,
		Cards:  []card.Card{second},
		Target: target,
	})
	var illegal *engine.IllegalActionError
	if !errors.As(err, &illegal) {
		t.Fatalf("second strike should be illegal, got %v", err)
	}
}

func TestStrikeValidation(t *testing.T) {
	s := newSession(t, 3, 21)
	startGame(t, s, 3)

	snap := s.Snapshot()
	turn := snap.Turn
	weapon := snap.Seats[turn].Hand[0]

	cases := []engine.Action{
		{Seat: turn, Kind: engine.ActionStrike, Cards: []card.Card{weapon}, Target: turn},
		{Seat: turn, Kind: engine.ActionStrike, Cards: []card.Card{weapon}, Target: 99},
		{Seat: turn, Kind: engine.ActionStrike, Target: (turn + 1) % 3},
		{Seat: turn, Kind: engine.ActionStrike, Cards: []card.Card{card.Invalid}, Target: (turn + 1) % 3},
	}
	for i, a := range cases {
		_, err := s.Submit(a)
		var illegal *engine.IllegalActionError
		if !errors.As(err, &illegal) {
			t.Fatalf("case %d: expected IllegalActionError, got %v", i, err)
		}
	}
}

func TestRecoverRequiresMissingHitPoints(t *testing.T) {
	s := newSession(t, 2, 21)
	startGame(t, s, 2)

	snap := s.Snapshot()
	turn := snap.Turn
	cards := snap.Seats[turn].Hand[:recoverDiscard]

	_, err := s.Submit(engine.Action{Seat: turn, Kind: engine.ActionRecover, Cards: cards})
	var illegal *engine.IllegalActionError
	if !errors.As(err, &illegal) {
		t.Fatalf("recover at full hp should be illegal, got %v", err)
	}
}

func TestRecoverRestoresHitPoint(t *testing.T) {
	s := newSession(t, 2, 21)
	startGame(t, s, 2)

	// Trade one strike so the next seat is wounded.
	snap := s.Snapshot()
	first := snap.Turn
	wounded := 1 - first
	if _, err := s.Submit(engine.Action{
		Seat:   first,
		Kind:   engine.ActionStrike,
		Cards:  []card.Card{snap.Seats[first].Hand[0]},
		Target: wounded,
	}); err != nil {
		t.Fatalf("strike err: %v", err)
	}
	if _, err := s.Submit(engine.Action{Seat: first, Kind: engine.ActionEndTurn}); err != nil {
		t.Fatalf("end turn err: %v", err)
	}

	snap = s.Snapshot()
	if snap.Turn != wounded {
		t.Fatalf("turn = %d, want %d", snap.Turn, wounded)
	}
	hp := snap.Seats[wounded].HP
	cards := snap.Seats[wounded].Hand[:recoverDiscard]
	if _, err := s.Submit(engine.Action{Seat: wounded, Kind: engine.ActionRecover, Cards: cards}); err != nil {
		t.Fatalf("recover err: %v", err)
	}
	if got := s.Snapshot().Seats[wounded].HP; got != hp+1 {
		t.Fatalf("hp after recover = %d, want %d", got, hp+1)
	}
}

// playToCompletion drives a 2-seat game with both seats striking every turn.
// The lord opens and out-damages the rebel, so the lord side always wins.
func playToCompletion(t *testing.T, s *engine.Session) {
	t.Helper()
	startGame(t, s, 2)
	for i := 0; i < 40; i++ {
		if s.Status().Ended() {
			return
		}
		snap := s.Snapshot()
		turn := snap.Turn
		if _, err := s.Submit(engine.Action{
			Seat:   turn,
			Kind:   engine.ActionStrike,
			Cards:  []card.Card{snap.Seats[turn].Hand[0]},
			Target: 1 - turn,
		}); err != nil {
			t.Fatalf("strike err: %v", err)
		}
		if s.Status().Ended() {
			return
		}
		if _, err := s.Submit(engine.Action{Seat: turn, Kind: engine.ActionEndTurn}); err != nil {
			t.Fatalf("end turn err: %v", err)
		}
	}
	t.Fatalf("game did not finish")
}

func TestLordSideVictory(t *testing.T) {
	s := newSession(t, 2, 33)
	playToCompletion(t, s)

	snap := s.Snapshot()
	if snap.Status != engine.StatusFinished {
		t.Fatalf("status = %s", snap.Status)
	}
	if snap.Reason != "" {
		t.Fatalf("finished game should carry no abort reason, got %q", snap.Reason)
	}
	lord := lordSeat(snap)
	if len(snap.Winners) != 1 || snap.Winners[0] != lord {
		t.Fatalf("winners = %v, want lord seat %d", snap.Winners, lord)
	}
	// Terminal state reveals every role.
	for _, seat := range snap.Seats {
		if !seat.RoleRevealed {
			t.Fatalf("seat %d role still hidden after game end", seat.Index)
		}
	}
}

func TestRebelsWinWhenLordFalls(t *testing.T) {
	st, _, err := engine.RehydrateState(engine.Config{
		SessionID: "test", Mode: "standard", SeatCount: 4, Seed: 9,
	}, engine.DefaultDistribution(), []string{"a", "b", "c", "d"})
	if err != nil {
		t.Fatalf("rehydrate err: %v", err)
	}
	st.Seats[0].Role = engine.RoleLord
	st.Seats[1].Role = engine.RoleLoyalist
	st.Seats[2].Role = engine.RoleRebel
	st.Seats[3].Role = engine.RoleRenegade
	st.Seats[0].Alive = false

	outcome, done := New().Finished(st)
	if !done {
		t.Fatalf("dead lord should end the game")
	}
	if outcome.Reason != "lord_eliminated" {
		t.Fatalf("reason = %s", outcome.Reason)
	}
	if len(outcome.Winners) != 1 || outcome.Winners[0] != 2 {
		t.Fatalf("winners = %v, want rebel seat [2]", outcome.Winners)
	}
}

func TestRenegadeLastStanding(t *testing.T) {
	st, _, err := engine.RehydrateState(engine.Config{
		SessionID: "test", Mode: "standard", SeatCount: 3, Seed: 9,
	}, engine.DefaultDistribution(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("rehydrate err: %v", err)
	}
	st.Seats[0].Role = engine.RoleLord
	st.Seats[1].Role = engine.RoleRebel
	st.Seats[2].Role = engine.RoleRenegade
	st.Seats[0].Alive = false
	st.Seats[1].Alive = false

	outcome, done := New().Finished(st)
	if !done {
		t.Fatalf("sole renegade should end the game")
	}
	if outcome.Reason != "renegade_last_standing" {
		t.Fatalf("reason = %s", outcome.Reason)
	}
	if len(outcome.Winners) != 1 || outcome.Winners[0] != 2 {
		t.Fatalf("winners = %v, want [2]", outcome.Winners)
	}
}

func TestDeckRecycleRestocksFromDiscard(t *testing.T) {
	st, _, err := engine.RehydrateState(engine.Config{
		SessionID: "test", Mode: "standard", SeatCount: 2, Seed: 9,
	}, engine.DefaultDistribution(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("rehydrate err: %v", err)
	}

	// Drain the deck down to one card with the rest in the discard pile.
	full := append([]card.Card(nil), st.Deck...)
	st.Deck.Init(full[:1])
	st.Discard = append([]card.Card(nil), full[1:5]...)
	st.Turn = 0

	evs, err := New().OnTurnStart(st)
	if err != nil {
		t.Fatalf("OnTurnStart err: %v", err)
	}
	if len(evs) != 3 {
		t.Fatalf("events = %d, want recycle+draw+phase", len(evs))
	}
	if evs[0].Type != engine.EvtDeckRecycled {
		t.Fatalf("first event = %s, want deck_recycled", evs[0].Type)
	}
	if len(evs[0].Cards) != 4 {
		t.Fatalf("recycled %d cards, want 4", len(evs[0].Cards))
	}
	if evs[1].Type != engine.EvtCardsDrawn || len(evs[1].Cards) != drawPerTurn {
		t.Fatalf("second event = %+v, want %d-card draw", evs[1], drawPerTurn)
	}
	// The pre-recycle remainder is drawn before any recycled card.
	if evs[1].Cards[0] != full[0] {
		t.Fatalf("draw should start with the remaining deck card")
	}
}

func TestRegisterAll(t *testing.T) {
	reg := modes.NewRegistry()
	if err := RegisterAll(reg); err != nil {
		t.Fatalf("RegisterAll err: %v", err)
	}
	for _, mode := range []string{"standard", "double_renegade"} {
		rules, table, err := reg.Resolve(mode)
		if err != nil {
			t.Fatalf("Resolve(%s) err: %v", mode, err)
		}
		if rules.Mode() != mode {
			t.Fatalf("rules mode = %s", rules.Mode())
		}
		if err := table.Validate(); err != nil {
			t.Fatalf("table for %s invalid: %v", mode, err)
		}
	}
	if _, _, err := reg.Resolve("nonsense"); err == nil {
		t.Fatalf("unknown mode must not resolve")
	}
}

func TestZeroOpeningHandStillStarts(t *testing.T) {
	p := DefaultParams()
	p.OpeningHand = 0
	rules, err := NewTuned("cold_open", p)
	if err != nil {
		t.Fatalf("NewTuned err: %v", err)
	}
	s, err := engine.NewSession(engine.Config{
		SessionID: "test",
		Mode:      "cold_open",
		SeatCount: 2,
		Seed:      7,
	}, engine.DefaultDistribution(), rules)
	if err != nil {
		t.Fatalf("NewSession err: %v", err)
	}
	startGame(t, s, 2)

	snap := s.Snapshot()
	for _, seat := range snap.Seats {
		want := 0
		if seat.Index == snap.Turn {
			// Only the opening turn's draw allotment.
			want = p.DrawPerTurn
		}
		if len(seat.Hand) != want {
			t.Fatalf("seat %d hand %d, want %d", seat.Index, len(seat.Hand), want)
		}
	}
}

func TestEliminationAndFinishRevealRoles(t *testing.T) {
	s := newSession(t, 2, 33)
	startGame(t, s, 2)

	var elim, finish *engine.Event
	for i := 0; i < 40 && finish == nil; i++ {
		snap := s.Snapshot()
		turn := snap.Turn
		evs, err := s.Submit(engine.Action{
			Seat:   turn,
			Kind:   engine.ActionStrike,
			Cards:  []card.Card{snap.Seats[turn].Hand[0]},
			Target: 1 - turn,
		})
		if err != nil {
			t.Fatalf("strike err: %v", err)
		}
		for j := range evs {
			switch evs[j].Type {
			case engine.EvtSeatEliminated:
				elim = &evs[j]
			case engine.EvtSessionFinished:
				finish = &evs[j]
			}
		}
		if finish != nil {
			break
		}
		if _, err := s.Submit(engine.Action{Seat: turn, Kind: engine.ActionEndTurn}); err != nil {
			t.Fatalf("end turn err: %v", err)
		}
	}
	if elim == nil || finish == nil {
		t.Fatalf("game produced no elimination/finish events")
	}

	snap := s.Snapshot()
	if elim.Role != snap.Seats[elim.Seat].Role || elim.Role == engine.RoleNone {
		t.Fatalf("elimination event role = %s, seat holds %s", elim.Role, snap.Seats[elim.Seat].Role)
	}
	if len(finish.Roles) != len(snap.Seats) {
		t.Fatalf("finish event lists %d roles, want %d", len(finish.Roles), len(snap.Seats))
	}
	for i, seat := range snap.Seats {
		if finish.Roles[i] != seat.Role {
			t.Fatalf("finish role for seat %d = %s, want %s", i, finish.Roles[i], seat.Role)
		}
	}
}

func TestNewTunedRejectsBadParams(t *testing.T) {
	p := DefaultParams()
	p.BaseHP = 0
	if _, err := NewTuned("broken", p); err == nil {
		t.Fatalf("zero base hp must be rejected")
	}

	p = DefaultParams()
	p.StrikeDamage = 3
	r, err := NewTuned("brutal", p)
	if err != nil {
		t.Fatalf("NewTuned err: %v", err)
	}
	if r.Mode() != "brutal" {
		t.Fatalf("mode = %s", r.Mode())
	}
}
