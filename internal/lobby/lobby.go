// Package lobby manages live rooms and the cache of sealed tapes.
package lobby

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"kingdoms-lite/engine"
	"kingdoms-lite/internal/room"
	"kingdoms-lite/internal/store"
	"kingdoms-lite/modes"
	"kingdoms-lite/replay"
)

// CasterFactory binds a room identifier to an outbound caster. Provided by
// the gateway so the lobby never touches connections directly.
type CasterFactory func(roomID string) room.Caster

// Config carries the room defaults every created session inherits.
type Config struct {
	DefaultMode  string
	DefaultSeats int
	RejoinWindow time.Duration
	TurnTimeout  time.Duration
	MinConnected int
}

func (c *Config) applyDefaults() {
	if c.DefaultMode == "" {
		c.DefaultMode = "standard"
	}
	if c.DefaultSeats <= 0 {
		c.DefaultSeats = 5
	}
}

// Lobby manages all rooms and hands out sealed tapes.
type Lobby struct {
	mu    sync.RWMutex
	rooms map[string]*room.Room

	cfg      Config
	registry *modes.Registry
	store    store.Store
	casters  CasterFactory

	// Recently sealed tapes, served without a store round trip.
	tapes *lru.Cache[string, *replay.Tape]
}

func New(cfg Config, registry *modes.Registry, st store.Store, casters CasterFactory) (*Lobby, error) {
	cfg.applyDefaults()
	tapes, err := lru.New[string, *replay.Tape](128)
	if err != nil {
		return nil, err
	}
	return &Lobby{
		rooms:    make(map[string]*room.Room),
		cfg:      cfg,
		registry: registry,
		store:    st,
		casters:  casters,
		tapes:    tapes,
	}, nil
}

// QuickStart finds a room in lobby state with a free seat, or creates one.
// The seed only matters when a room is created; zero draws a fresh one.
func (l *Lobby) QuickStart(playerID, mode string, seats int, seed int64) (*room.Room, error) {
	if mode == "" {
		mode = l.cfg.DefaultMode
	}
	if seats <= 0 {
		seats = l.cfg.DefaultSeats
	}

	l.mu.RLock()
	for _, r := range l.rooms {
		if r.Status() == engine.StatusLobby && r.Mode() == mode && !r.Full() {
			l.mu.RUnlock()
			log.Printf("[Lobby] QuickStart: player %s joining existing room %s", playerID, r.ID)
			return r, nil
		}
	}
	l.mu.RUnlock()

	r, err := l.Create(mode, seats, seed)
	if err != nil {
		return nil, err
	}
	log.Printf("[Lobby] QuickStart: player %s created new room %s", playerID, r.ID)
	return r, nil
}

// Create spins up a new room for the given mode and seat count. A zero seed
// draws a fresh one; either way it travels with the session config into the
// tape.
func (l *Lobby) Create(mode string, seats int, seed int64) (*room.Room, error) {
	rules, table, err := l.registry.Resolve(mode)
	if err != nil {
		return nil, err
	}

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	id := uuid.NewString()
	cfg := room.Config{
		Engine: engine.Config{
			SessionID: id,
			Mode:      mode,
			SeatCount: seats,
			Seed:      seed,
		},
		RejoinWindow: l.cfg.RejoinWindow,
		TurnTimeout:  l.cfg.TurnTimeout,
		MinConnected: l.cfg.MinConnected,
	}

	var caster room.Caster
	if l.casters != nil {
		caster = l.casters(id)
	}

	r, err := room.New(cfg, table, rules, l.store, caster, l.onSealed(id))
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.rooms[id] = r
	l.mu.Unlock()
	return r, nil
}

// onSealed caches the tape and retires the room once its session ends. A nil
// tape means the room closed before its session started; it is still retired.
func (l *Lobby) onSealed(id string) room.SealedHook {
	return func(tape *replay.Tape) {
		if tape != nil {
			l.tapes.Add(id, tape)
		}
		l.mu.Lock()
		delete(l.rooms, id)
		l.mu.Unlock()
		if tape != nil {
			log.Printf("[Lobby] Room %s retired, tape cached (%d events)", id, len(tape.Events))
		} else {
			log.Printf("[Lobby] Room %s retired without a session", id)
		}
	}
}

// Get returns a live room by ID.
func (l *Lobby) Get(id string) (*room.Room, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.rooms[id]
	return r, ok
}

// Rooms lists live room IDs.
func (l *Lobby) Rooms() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.rooms))
	for id := range l.rooms {
		ids = append(ids, id)
	}
	return ids
}

// FetchTape serves a sealed tape, cache first, store second.
func (l *Lobby) FetchTape(ctx context.Context, id string) (*replay.Tape, error) {
	if tape, ok := l.tapes.Get(id); ok {
		return tape, nil
	}
	if l.store == nil {
		return nil, store.ErrTapeNotFound
	}
	tape, err := l.store.LoadTape(ctx, id)
	if err != nil {
		return nil, err
	}
	l.tapes.Add(id, tape)
	return tape, nil
}

// ListTapes lists sealed tapes from the store.
func (l *Lobby) ListTapes(ctx context.Context, limit int) ([]store.TapeInfo, error) {
	if l.store == nil {
		return nil, nil
	}
	return l.store.ListTapes(ctx, limit)
}

// Close shuts down every live room.
func (l *Lobby) Close() {
	l.mu.Lock()
	rooms := make([]*room.Room, 0, len(l.rooms))
	for _, r := range l.rooms {
		rooms = append(rooms, r)
	}
	l.mu.Unlock()
	for _, r := range rooms {
		r.Close()
	}
}
