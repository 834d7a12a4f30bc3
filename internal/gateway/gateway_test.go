package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"kingdoms-lite/engine"
	"kingdoms-lite/internal/codec"
	"kingdoms-lite/internal/lobby"
	"kingdoms-lite/internal/store"
	"kingdoms-lite/modes"
	"kingdoms-lite/modes/standard"
)

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func newTestServer(t *testing.T) (*httptest.Server, *Gateway) {
	t.Helper()
	registry := modes.NewRegistry()
	if err := standard.RegisterAll(registry); err != nil {
		t.Fatalf("RegisterAll err: %v", err)
	}
	gw := New()
	lby, err := lobby.New(lobby.Config{DefaultSeats: 2}, registry, store.NewMemoryStore(), gw.CasterFor)
	if err != nil {
		t.Fatalf("lobby.New err: %v", err)
	}
	gw.AttachLobby(lby)

	srv := httptest.NewServer(http.HandlerFunc(gw.HandleWebSocket))
	t.Cleanup(func() {
		srv.Close()
		lby.Close()
	})
	return srv, gw
}

func dial(t *testing.T, srv *httptest.Server) *testClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(env codec.ClientEnvelope) {
	c.t.Helper()
	raw, err := json.Marshal(env)
	if err != nil {
		c.t.Fatalf("marshal err: %v", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		c.t.Fatalf("write err: %v", err)
	}
}

func (c *testClient) recv() codec.ServerEnvelope {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, raw, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("read err: %v", err)
	}
	var env codec.ServerEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.t.Fatalf("unmarshal err: %v", err)
	}
	return env
}

// recvKind reads envelopes until one of the wanted kind arrives.
func (c *testClient) recvKind(kind string) codec.ServerEnvelope {
	c.t.Helper()
	for i := 0; i < 64; i++ {
		env := c.recv()
		if env.Kind == kind {
			return env
		}
	}
	c.t.Fatalf("no %s envelope received", kind)
	return codec.ServerEnvelope{}
}

func TestJoinHandshake(t *testing.T) {
	srv, _ := newTestServer(t)
	client := dial(t, srv)

	client.send(codec.ClientEnvelope{Kind: codec.ClientKindJoin, PlayerID: "alice"})

	welcome := client.recv()
	if welcome.Kind != codec.ServerKindWelcome {
		t.Fatalf("first envelope = %s, want welcome", welcome.Kind)
	}
	if welcome.Seat != 0 || welcome.Room == "" {
		t.Fatalf("welcome = %+v", welcome)
	}

	snap := client.recv()
	if snap.Kind != codec.ServerKindSnapshot || snap.Snapshot == nil {
		t.Fatalf("second envelope = %+v, want snapshot", snap)
	}
	if snap.Snapshot.Status != engine.StatusLobby {
		t.Fatalf("snapshot status = %s", snap.Snapshot.Status)
	}
}

func TestJoinRequiresPlayerID(t *testing.T) {
	srv, _ := newTestServer(t)
	client := dial(t, srv)

	client.send(codec.ClientEnvelope{Kind: codec.ClientKindJoin})
	reject := client.recv()
	if reject.Kind != codec.ServerKindReject || reject.Reject.Reason != codec.ReasonBadMessage {
		t.Fatalf("envelope = %+v, want bad_message reject", reject)
	}
}

func TestSecondJoinStartsSessionAndRedacts(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := dial(t, srv)
	bob := dial(t, srv)

	alice.send(codec.ClientEnvelope{Kind: codec.ClientKindJoin, PlayerID: "alice"})
	welcome := alice.recv()
	alice.recv() // lobby snapshot

	bob.send(codec.ClientEnvelope{Kind: codec.ClientKindJoin, PlayerID: "bob", Room: welcome.Room})
	bobWelcome := bob.recv()
	if bobWelcome.Seat != 1 {
		t.Fatalf("bob seat = %d", bobWelcome.Seat)
	}
	bobSnap := bob.recv()
	if bobSnap.Snapshot.Status != engine.StatusInProgress {
		t.Fatalf("bob snapshot status = %s", bobSnap.Snapshot.Status)
	}

	// Bob's snapshot must not leak alice's hand or hidden role.
	for _, seat := range bobSnap.Snapshot.Seats {
		if seat.Index == 1 {
			continue
		}
		if seat.Hand != nil {
			t.Fatalf("foreign hand leaked in snapshot")
		}
		if !seat.RoleRevealed && seat.Role != engine.RoleNone {
			t.Fatalf("hidden role leaked in snapshot")
		}
	}

	// Alice hears the start as events; her own draws carry cards, bob's
	// arrive as counts only.
	sawOwnDraw := false
	for i := 0; i < 64; i++ {
		env := alice.recv()
		if env.Kind != codec.ServerKindEvent {
			continue
		}
		ev := env.Event
		if ev.Type == engine.EvtCardsDrawn && ev.Seat == 0 && len(ev.Cards) > 0 {
			sawOwnDraw = true
		}
		if ev.Type == engine.EvtCardsDrawn && ev.Seat != 0 && ev.Cards != nil {
			t.Fatalf("alice saw bob's cards")
		}
		if ev.Type == engine.EvtPhaseAdvanced {
			break
		}
	}
	if !sawOwnDraw {
		t.Fatalf("alice never saw her own draw")
	}
}

func TestOutOfTurnActionRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := dial(t, srv)
	bob := dial(t, srv)

	alice.send(codec.ClientEnvelope{Kind: codec.ClientKindJoin, PlayerID: "alice"})
	welcome := alice.recv()
	bob.send(codec.ClientEnvelope{Kind: codec.ClientKindJoin, PlayerID: "bob", Room: welcome.Room})
	bob.recvKind(codec.ServerKindWelcome)
	snap := bob.recvKind(codec.ServerKindSnapshot)

	// Pick the client that does not hold the opening turn; its pass is the
	// only action, so the reject is its next inbound envelope.
	idle, idleSeat := alice, 0
	if snap.Snapshot.Turn == 0 {
		idle, idleSeat = bob, 1
	}

	idle.send(codec.ClientEnvelope{Kind: codec.ClientKindAction, Action: &engine.Action{Kind: engine.ActionPass}})
	reject := idle.recvKind(codec.ServerKindReject)
	if reject.Reject.Reason != codec.ReasonOutOfTurn {
		t.Fatalf("reject reason = %s, want out_of_turn", reject.Reject.Reason)
	}
	if reject.Seat != idleSeat {
		t.Fatalf("reject seat = %d, want %d", reject.Seat, idleSeat)
	}
}

func TestStaleSocketCloseKeepsReboundSeat(t *testing.T) {
	srv, gw := newTestServer(t)
	alice := dial(t, srv)
	bob := dial(t, srv)

	alice.send(codec.ClientEnvelope{Kind: codec.ClientKindJoin, PlayerID: "alice"})
	welcome := alice.recvKind(codec.ServerKindWelcome)
	bob.send(codec.ClientEnvelope{Kind: codec.ClientKindJoin, PlayerID: "bob", Room: welcome.Room})
	bob.recvKind(codec.ServerKindSnapshot)

	// The same identity comes back on a fresh socket while the old one is
	// still open; the seat binding moves to the new connection.
	alice2 := dial(t, srv)
	alice2.send(codec.ClientEnvelope{Kind: codec.ClientKindJoin, PlayerID: "alice", Room: welcome.Room})
	w2 := alice2.recvKind(codec.ServerKindWelcome)
	if w2.Seat != welcome.Seat {
		t.Fatalf("rebound seat = %d, want %d", w2.Seat, welcome.Seat)
	}

	// Now the stale socket dies. That must not disconnect the rebound seat.
	alice.conn.Close()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		gw.mu.RLock()
		remaining := len(gw.connections)
		gw.mu.RUnlock()
		if remaining == 2 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	r, ok := gw.lobby.Get(welcome.Room)
	if !ok {
		t.Fatalf("room %s gone", welcome.Room)
	}
	snap := r.Snapshot()
	if !snap.Seats[welcome.Seat].Connected {
		t.Fatalf("seat %d marked disconnected although its live socket is bound", welcome.Seat)
	}
	if snap.Status != engine.StatusInProgress {
		t.Fatalf("session status = %s, want in_progress", snap.Status)
	}
}

func TestActionWithoutRoomRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	client := dial(t, srv)

	client.send(codec.ClientEnvelope{Kind: codec.ClientKindAction, Action: &engine.Action{Kind: engine.ActionPass}})
	reject := client.recv()
	if reject.Kind != codec.ServerKindReject || reject.Reject.Reason != codec.ReasonBadMessage {
		t.Fatalf("envelope = %+v", reject)
	}
}
