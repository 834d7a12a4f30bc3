// Package room hosts one session behind a single-writer actor. Client
// actions, disconnects, rejoins and timer expiries are all serialized into
// one queue, so no two applies ever race against the same game state.
package room

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"kingdoms-lite/engine"
	"kingdoms-lite/internal/codec"
	"kingdoms-lite/internal/store"
	"kingdoms-lite/replay"
)

// Caster delivers envelopes to a seat's connection, if one is attached.
// Implemented by the gateway; a no-op caster works for replay-style tests.
type Caster interface {
	Unicast(seat int, env codec.ServerEnvelope)
}

// Config is the room-level configuration around one engine session.
type Config struct {
	Engine engine.Config

	// RejoinWindow is how long a disconnected seat is held before the
	// session may be aborted for falling below MinConnected. 60s default.
	RejoinWindow time.Duration

	// TurnTimeout converts a stalled turn into a synthetic pass action.
	// 30s default, 0 disables.
	TurnTimeout time.Duration

	// MinConnected is the minimum viable number of attached seats.
	MinConnected int
}

func (c *Config) applyDefaults() {
	if c.RejoinWindow <= 0 {
		c.RejoinWindow = 60 * time.Second
	}
	if c.MinConnected <= 0 {
		c.MinConnected = 2
	}
	if c.TurnTimeout < 0 {
		c.TurnTimeout = 0
	}
}

var ErrRoomClosed = errors.New("room closed")

type cmdType int

const (
	cmdJoin cmdType = iota
	cmdAction
	cmdDisconnect
	cmdRejoin
	cmdClose
)

type cmdResult struct {
	seat int
	err  error
}

type command struct {
	typ      cmdType
	playerID string
	seat     int
	action   engine.Action
	resp     chan cmdResult
}

// SealedHook runs after a tape is sealed and saved.
type SealedHook func(tape *replay.Tape)

type Room struct {
	ID  string
	cfg Config

	session  *engine.Session
	recorder *replay.Recorder
	store    store.Store
	caster   Caster
	sealed   []SealedHook

	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once

	commands chan command
	done     chan struct{}

	// Timer state, owned by the actor goroutine.
	turnSeat        int
	turnDeadline    time.Time
	rejoinDeadlines map[int]time.Time
}

// New builds the room and starts its actor. Seat-count validation happens in
// NewSession, before any room state exists.
func New(cfg Config, table engine.DistributionTable, rules engine.Rules, st store.Store, caster Caster, hooks ...SealedHook) (*Room, error) {
	cfg.applyDefaults()
	session, err := engine.NewSession(cfg.Engine, table, rules)
	if err != nil {
		return nil, err
	}
	r := &Room{
		ID:              cfg.Engine.SessionID,
		cfg:             cfg,
		session:         session,
		store:           st,
		caster:          caster,
		sealed:          hooks,
		commands:        make(chan command, 256),
		done:            make(chan struct{}),
		turnSeat:        engine.InvalidSeat,
		rejoinDeadlines: make(map[int]time.Time),
	}
	go r.run()
	log.Printf("[Room %s] Created (mode=%s, seats=%d)", r.ID, cfg.Engine.Mode, cfg.Engine.SeatCount)
	return r, nil
}

func (r *Room) run() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case cmd := <-r.commands:
			res := r.handle(cmd)
			if cmd.resp != nil {
				cmd.resp <- res
			}
		case <-ticker.C:
			r.tick(time.Now())
		case <-r.done:
			r.drain()
			log.Printf("[Room %s] Actor stopped", r.ID)
			return
		}
	}
}

// drain answers queued commands after shutdown so no caller blocks forever.
func (r *Room) drain() {
	for {
		select {
		case cmd := <-r.commands:
			if cmd.resp != nil {
				cmd.resp <- cmdResult{seat: engine.InvalidSeat, err: ErrRoomClosed}
			}
		default:
			return
		}
	}
}

func (r *Room) handle(cmd command) cmdResult {
	switch cmd.typ {
	case cmdJoin:
		return r.handleJoin(cmd.playerID)
	case cmdAction:
		return cmdResult{seat: cmd.seat, err: r.handleAction(cmd.seat, cmd.action)}
	case cmdDisconnect:
		return cmdResult{seat: cmd.seat, err: r.handleDisconnect(cmd.seat)}
	case cmdRejoin:
		return r.handleRejoin(cmd.playerID)
	case cmdClose:
		r.stop()
		return cmdResult{seat: engine.InvalidSeat}
	default:
		return cmdResult{seat: engine.InvalidSeat, err: engine.ErrInvalidState("unknown room command")}
	}
}

func (r *Room) handleJoin(playerID string) cmdResult {
	seat, err := r.session.Join(playerID)
	if err != nil {
		return cmdResult{seat: engine.InvalidSeat, err: err}
	}
	log.Printf("[Room %s] Player %s seated at %d", r.ID, playerID, seat)

	if r.session.Full() {
		// Seat occupancy reached the configured count: assign roles and
		// open play. The recorder is created here, at session start.
		r.mu.Lock()
		r.recorder = replay.NewRecorder(r.cfg.Engine, r.session.PlayerIDs())
		r.mu.Unlock()
		events, err := r.session.Start()
		if err != nil {
			log.Printf("[Room %s] Start failed: %v", r.ID, err)
			return cmdResult{seat: seat, err: err}
		}
		log.Printf("[Room %s] Session started, %d opening events", r.ID, len(events))
		if err := r.pipeline(events); err != nil {
			return cmdResult{seat: seat, err: err}
		}
	}
	return cmdResult{seat: seat}
}

func (r *Room) handleAction(seat int, a engine.Action) error {
	a.Seat = seat
	events, err := r.session.Submit(a)
	if err != nil {
		return err
	}
	return r.pipeline(events)
}

func (r *Room) handleDisconnect(seat int) error {
	events, err := r.session.Disconnect(seat)
	if err != nil {
		return err
	}
	log.Printf("[Room %s] Seat %d disconnected", r.ID, seat)
	if err := r.pipeline(events); err != nil {
		return err
	}
	if r.session.Status().Ended() {
		return nil
	}
	if r.session.Status() == engine.StatusLobby {
		return nil
	}
	if r.session.ConnectedCount() == 0 {
		return r.abort("all seats disconnected")
	}
	r.rejoinDeadlines[seat] = time.Now().Add(r.cfg.RejoinWindow)
	return nil
}

func (r *Room) handleRejoin(playerID string) cmdResult {
	snap := r.session.Snapshot()
	seat := engine.InvalidSeat
	for _, s := range snap.Seats {
		if s.PlayerID == playerID {
			seat = s.Index
			break
		}
	}
	if seat == engine.InvalidSeat {
		return cmdResult{seat: engine.InvalidSeat, err: errors.New("no seat held by this identity")}
	}
	events, err := r.session.Rejoin(seat, playerID)
	if err != nil {
		return cmdResult{seat: engine.InvalidSeat, err: err}
	}
	delete(r.rejoinDeadlines, seat)
	log.Printf("[Room %s] Player %s rejoined seat %d", r.ID, playerID, seat)
	return cmdResult{seat: seat, err: r.pipeline(events)}
}

// pipeline persists and fans out one emitted batch, in order: replay log
// first, durable store second, broadcast last. Events reach clients only
// after they are part of the log.
func (r *Room) pipeline(events []engine.Event) error {
	turnStarted := false
	for _, ev := range events {
		if ev.Type == engine.EvtTurnStarted {
			turnStarted = true
		}
		if r.recorder != nil {
			if err := r.recorder.Record(ev); err != nil {
				return err
			}
		}
		if r.store != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			if err := r.store.AppendEvent(ctx, r.ID, ev); err != nil {
				log.Printf("[Room %s] append event seq=%d failed: %v", r.ID, ev.Seq, err)
			}
			cancel()
		}
		r.broadcastEvent(ev)
	}

	r.syncTurnDeadline(turnStarted)

	if r.session.Status().Ended() {
		r.sealTape()
	}
	return nil
}

func (r *Room) broadcastEvent(ev engine.Event) {
	if r.caster == nil {
		return
	}
	for seat := 0; seat < r.cfg.Engine.SeatCount; seat++ {
		r.caster.Unicast(seat, codec.EventEnvelope(r.ID, seat, ev))
	}
}

// syncTurnDeadline re-arms the timeout when the turn moved or a new turn
// opened. The same seat can take consecutive turns when everyone else is
// disconnected, so the seat index alone is not enough.
func (r *Room) syncTurnDeadline(turnStarted bool) {
	turn := r.session.CurrentTurn()
	if turn == r.turnSeat && !turnStarted {
		return
	}
	r.turnSeat = turn
	if turn == engine.InvalidSeat || r.cfg.TurnTimeout == 0 {
		r.turnDeadline = time.Time{}
		return
	}
	r.turnDeadline = time.Now().Add(r.cfg.TurnTimeout)
}

func (r *Room) sealTape() {
	if r.recorder == nil {
		// Closed before the session ever started: there is no tape, but the
		// owner still needs to retire the room.
		for _, hook := range r.sealed {
			if hook != nil {
				hook(nil)
			}
		}
		return
	}
	if r.recorder.Sealed() {
		return
	}
	digest := r.session.Digest()
	if err := r.recorder.Seal(digest); err != nil {
		log.Printf("[Room %s] seal failed: %v", r.ID, err)
		return
	}
	tape := r.recorder.Tape()
	if r.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.store.SaveTape(ctx, tape); err != nil {
			log.Printf("[Room %s] save tape failed: %v", r.ID, err)
		}
		cancel()
	}
	log.Printf("[Room %s] Session %s, tape sealed with %d events", r.ID, r.session.Status(), len(tape.Events))
	for _, hook := range r.sealed {
		if hook != nil {
			hook(tape)
		}
	}
	r.stop()
}

func (r *Room) abort(reason string) error {
	events, err := r.session.Abort(reason)
	if err != nil {
		return err
	}
	log.Printf("[Room %s] Aborted: %s", r.ID, reason)
	return r.pipeline(events)
}

// tick handles turn timeouts and rejoin-window expiry. Both enter the same
// serialized path as client actions, so they cannot race an in-flight apply.
func (r *Room) tick(now time.Time) {
	if r.session.Status().Ended() {
		return
	}

	for seat, deadline := range r.rejoinDeadlines {
		if now.Before(deadline) {
			continue
		}
		delete(r.rejoinDeadlines, seat)
		if r.session.ConnectedCount() < r.cfg.MinConnected {
			if err := r.abort("below minimum viable seats"); err != nil {
				log.Printf("[Room %s] abort failed: %v", r.ID, err)
			}
			return
		}
	}

	if !r.turnDeadline.IsZero() && !now.Before(r.turnDeadline) && r.turnSeat != engine.InvalidSeat {
		seat := r.turnSeat
		r.turnDeadline = time.Time{}
		log.Printf("[Room %s] Turn timeout on seat %d, auto pass", r.ID, seat)
		if err := r.handleAction(seat, engine.Action{Kind: engine.ActionPass, Synthetic: true}); err != nil {
			log.Printf("[Room %s] auto pass failed: %v", r.ID, err)
		}
	}
}

// submit sends one command to the actor and waits for the reply.
func (r *Room) submit(cmd command) cmdResult {
	cmd.resp = make(chan cmdResult, 1)

	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return cmdResult{seat: engine.InvalidSeat, err: ErrRoomClosed}
	}

	select {
	case r.commands <- cmd:
	case <-r.done:
		return cmdResult{seat: engine.InvalidSeat, err: ErrRoomClosed}
	}
	select {
	case res := <-cmd.resp:
		return res
	case <-r.done:
		// The actor may be stopping while it handles this very command;
		// its reply can still arrive just after done closes.
		select {
		case res := <-cmd.resp:
			return res
		case <-time.After(100 * time.Millisecond):
			return cmdResult{seat: engine.InvalidSeat, err: ErrRoomClosed}
		}
	}
}

// Join seats a player; when the last seat fills the session starts and the
// opening events are broadcast before Join returns.
func (r *Room) Join(playerID string) (int, error) {
	res := r.submit(command{typ: cmdJoin, playerID: playerID})
	return res.seat, res.err
}

// SubmitAction forwards one action from a seat. A non-nil error is relayed
// to the originating client only.
func (r *Room) SubmitAction(seat int, a engine.Action) error {
	return r.submit(command{typ: cmdAction, seat: seat, action: a}).err
}

// Disconnect marks a seat detached and opens its rejoin window.
func (r *Room) Disconnect(seat int) error {
	return r.submit(command{typ: cmdDisconnect, seat: seat}).err
}

// Rejoin reattaches a known identity to its original seat.
func (r *Room) Rejoin(playerID string) (int, error) {
	res := r.submit(command{typ: cmdRejoin, playerID: playerID})
	return res.seat, res.err
}

func (r *Room) Snapshot() engine.Snapshot { return r.session.Snapshot() }

func (r *Room) Status() engine.Status { return r.session.Status() }

func (r *Room) Mode() string { return r.cfg.Engine.Mode }

func (r *Room) Full() bool { return r.session.Full() }

// Tape returns the current tape copy, or nil before session start.
func (r *Room) Tape() *replay.Tape {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.recorder == nil {
		return nil
	}
	return r.recorder.Tape()
}

// Close stops the actor. An unfinished session is aborted first so its tape
// still seals.
func (r *Room) Close() {
	r.submit(command{typ: cmdClose})
}

func (r *Room) stop() {
	if !r.session.Status().Ended() {
		if events, err := r.session.Abort("room closed"); err == nil {
			// Direct pipeline: we are already on the actor goroutine.
			if err := r.pipeline(events); err != nil {
				log.Printf("[Room %s] close pipeline failed: %v", r.ID, err)
			}
		}
	}
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.stopOnce.Do(func() { close(r.done) })
}