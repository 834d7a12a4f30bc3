// Package gateway terminates WebSocket connections and bridges them onto
// room actors. It owns per-seat delivery; rooms never see a socket.
package gateway

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"kingdoms-lite/engine"
	"kingdoms-lite/internal/codec"
	"kingdoms-lite/internal/lobby"
	"kingdoms-lite/internal/room"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: Restrict in production
	},
}

// Connection represents a WebSocket client connection
type Connection struct {
	ID       string
	PlayerID string
	Conn     *websocket.Conn
	Send     chan []byte
	Gateway  *Gateway
	LastPing time.Time

	// Current room association
	RoomID string
	Room   *room.Room
	Seat   int
}

// Gateway manages WebSocket connections and the seat bindings each room
// broadcasts through.
type Gateway struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	seats       map[string]map[int]*Connection // roomID -> seat -> connection
	nextConnID  uint64
	lobby       *lobby.Lobby
}

// New creates a new Gateway instance. The lobby is attached afterwards
// because it needs the gateway's caster factory first.
func New() *Gateway {
	return &Gateway{
		connections: make(map[string]*Connection),
		seats:       make(map[string]map[int]*Connection),
	}
}

func (g *Gateway) AttachLobby(lby *lobby.Lobby) { g.lobby = lby }

// CasterFor binds a room ID to seat-addressed delivery through this gateway.
func (g *Gateway) CasterFor(roomID string) room.Caster {
	return roomCaster{g: g, roomID: roomID}
}

type roomCaster struct {
	g      *Gateway
	roomID string
}

func (rc roomCaster) Unicast(seat int, env codec.ServerEnvelope) {
	rc.g.unicastSeat(rc.roomID, seat, env)
}

// HandleWebSocket handles WebSocket upgrade and connection
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] Upgrade error: %v", err)
		return
	}

	g.mu.Lock()
	g.nextConnID++
	connID := fmt.Sprintf("conn_%d", g.nextConnID)
	c := &Connection{
		ID:       connID,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Gateway:  g,
		LastPing: time.Now(),
		Seat:     engine.InvalidSeat,
	}
	g.connections[connID] = c
	g.mu.Unlock()

	log.Printf("[Gateway] Client connected: %s, total: %d", connID, len(g.connections))

	go c.readPump()
	go c.writePump()
}

func (c *Connection) readPump() {
	defer func() {
		c.Gateway.dropConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(65536)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		c.LastPing = time.Now()
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Gateway] Read error: %v", err)
			}
			break
		}

		if messageType == websocket.TextMessage {
			c.handleMessage(message)
		}
	}
}

func (c *Connection) handleMessage(data []byte) {
	env, err := codec.Unmarshal(data)
	if err != nil {
		log.Printf("[Gateway] Failed to unmarshal: %v", err)
		c.sendReject(codec.ReasonBadMessage, "invalid message format")
		return
	}

	switch env.Kind {
	case codec.ClientKindJoin:
		c.handleJoin(env)
	case codec.ClientKindAction:
		c.handleAction(env)
	case codec.ClientKindDisconnect:
		c.handleLeave()
	default:
		c.sendReject(codec.ReasonBadMessage, "unknown message kind "+env.Kind)
	}
}

func (c *Connection) handleJoin(env *codec.ClientEnvelope) {
	if env.PlayerID == "" {
		c.sendReject(codec.ReasonBadMessage, "player_id required")
		return
	}
	if c.Room != nil {
		c.sendReject(codec.ReasonBadMessage, "already in a room")
		return
	}
	c.PlayerID = env.PlayerID

	var (
		r    *room.Room
		seat int
		err  error
	)
	if env.Room != "" {
		// Targeted join: rejoin a held seat, or take a free one in lobby.
		var ok bool
		r, ok = c.Gateway.lobby.Get(env.Room)
		if !ok {
			c.sendReject(codec.ReasonBadMessage, "unknown room "+env.Room)
			return
		}
		seat, err = r.Rejoin(c.PlayerID)
		if err != nil {
			seat, err = r.Join(c.PlayerID)
		}
	} else {
		r, err = c.Gateway.lobby.QuickStart(c.PlayerID, env.Mode, env.Seats, env.Seed)
		if err == nil {
			seat, err = r.Join(c.PlayerID)
		}
	}
	if err != nil {
		c.sendReject(reasonFor(err), err.Error())
		return
	}

	c.Room = r
	c.RoomID = r.ID
	c.Seat = seat
	c.Gateway.bindSeat(r.ID, seat, c)

	log.Printf("[Gateway] Player %s joined room %s at seat %d", c.PlayerID, r.ID, seat)

	c.sendEnvelope(codec.ServerEnvelope{Kind: codec.ServerKindWelcome, Seat: seat, Room: r.ID})

	// The snapshot covers whatever was emitted before this seat was bound,
	// including the opening batch when this join started the session.
	snap := codec.RedactSnapshot(seat, r.Snapshot())
	c.sendEnvelope(codec.ServerEnvelope{Kind: codec.ServerKindSnapshot, Seat: seat, Room: r.ID, Snapshot: &snap})
}

func (c *Connection) handleAction(env *codec.ClientEnvelope) {
	if c.Room == nil {
		c.sendReject(codec.ReasonBadMessage, "not in a room")
		return
	}
	if env.Action == nil {
		c.sendReject(codec.ReasonBadMessage, "action payload required")
		return
	}

	if err := c.Room.SubmitAction(c.Seat, *env.Action); err != nil {
		c.sendReject(reasonFor(err), err.Error())
	}
}

// handleLeave is the explicit counterpart of a dropped socket; both paths
// open the seat's rejoin window.
func (c *Connection) handleLeave() {
	if c.Room == nil {
		return
	}
	c.Gateway.detachSeat(c)
}

func (c *Connection) sendReject(reason, msg string) {
	c.sendEnvelope(codec.ServerEnvelope{
		Kind:   codec.ServerKindReject,
		Seat:   c.Seat,
		Room:   c.RoomID,
		Reject: &codec.Reject{Reason: reason, Message: msg},
	})
}

func (c *Connection) sendEnvelope(env codec.ServerEnvelope) {
	data, err := codec.Marshal(env)
	if err != nil {
		log.Printf("[Gateway] Marshal error: %v", err)
		return
	}
	select {
	case c.Send <- data:
	default:
		// Drop if buffer full
	}
}

// reasonFor maps engine errors onto wire reject reasons.
func reasonFor(err error) string {
	var illegal *engine.IllegalActionError
	var seatCount *engine.InvalidSeatCountError
	switch {
	case errors.Is(err, engine.ErrOutOfTurn):
		return codec.ReasonOutOfTurn
	case errors.As(err, &illegal):
		return codec.ReasonIllegalAction
	case errors.As(err, &seatCount):
		return codec.ReasonInvalidSeatCount
	case errors.Is(err, engine.ErrSessionEnded),
		errors.Is(err, engine.ErrNotInProgress),
		errors.Is(err, room.ErrRoomClosed):
		return codec.ReasonSessionEnded
	case errors.Is(err, engine.ErrSessionFull),
		errors.Is(err, engine.ErrSeatOccupied),
		errors.Is(err, engine.ErrNotInLobby):
		return codec.ReasonIllegalAction
	default:
		return codec.ReasonInternal
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) bindSeat(roomID string, seat int, c *Connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seats[roomID] == nil {
		g.seats[roomID] = make(map[int]*Connection)
	}
	g.seats[roomID][seat] = c
}

// detachSeat unbinds a connection from its seat and tells the room. The
// connection stays open; the client may send a fresh join.
func (g *Gateway) detachSeat(c *Connection) {
	r, seat := c.Room, c.Seat
	c.Room = nil
	c.RoomID = ""
	c.Seat = engine.InvalidSeat

	if r == nil || seat == engine.InvalidSeat {
		return
	}

	g.mu.Lock()
	owned := false
	if byseat, ok := g.seats[r.ID]; ok && byseat[seat] == c {
		owned = true
		delete(byseat, seat)
		if len(byseat) == 0 {
			delete(g.seats, r.ID)
		}
	}
	g.mu.Unlock()

	// The seat binding may already belong to a fresh connection for the same
	// player; a stale socket dying then must not disconnect the rebound seat.
	if !owned {
		return
	}

	if err := r.Disconnect(seat); err != nil && !errors.Is(err, room.ErrRoomClosed) {
		log.Printf("[Gateway] Disconnect seat %d room %s: %v", seat, r.ID, err)
	}
}

func (g *Gateway) dropConnection(c *Connection) {
	g.detachSeat(c)

	g.mu.Lock()
	delete(g.connections, c.ID)
	total := len(g.connections)
	g.mu.Unlock()
	log.Printf("[Gateway] Client disconnected: %s, total: %d", c.ID, total)
}

// unicastSeat sends one envelope to whoever holds a seat right now.
func (g *Gateway) unicastSeat(roomID string, seat int, env codec.ServerEnvelope) {
	g.mu.RLock()
	var c *Connection
	if byseat, ok := g.seats[roomID]; ok {
		c = byseat[seat]
	}
	g.mu.RUnlock()
	if c == nil {
		return
	}

	data, err := codec.Marshal(env)
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	default:
		// Drop message if buffer full
	}
}
