package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"kingdoms-lite/engine"
	"kingdoms-lite/replay"
)

func testTape(id string, sealedAt int64) *replay.Tape {
	ev := engine.NewEvent(engine.EvtTurnEnded, 0)
	ev.Seq = 1
	return &replay.Tape{
		Version:     replay.TapeVersion,
		SessionID:   id,
		Mode:        "standard",
		SeatCount:   2,
		Seed:        42,
		Players:     []string{"alice", "bob"},
		Events:      []engine.Event{ev},
		FinalDigest: "digest-" + id,
		SealedAtMs:  sealedAt,
	}
}

// exerciseStore runs the shared contract against any backend.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	ev := engine.NewEvent(engine.EvtTurnStarted, 0)
	ev.Seq = 1
	if err := s.AppendEvent(ctx, "sess-1", ev); err != nil {
		t.Fatalf("AppendEvent err: %v", err)
	}
	// Re-appending the same seq must be harmless; the room may retry.
	if err := s.AppendEvent(ctx, "sess-1", ev); err != nil {
		t.Fatalf("duplicate AppendEvent err: %v", err)
	}

	if _, err := s.LoadTape(ctx, "sess-1"); !errors.Is(err, ErrTapeNotFound) {
		t.Fatalf("unsaved tape should be ErrTapeNotFound, got %v", err)
	}

	if err := s.SaveTape(ctx, testTape("sess-1", 100)); err != nil {
		t.Fatalf("SaveTape err: %v", err)
	}
	if err := s.SaveTape(ctx, testTape("sess-2", 200)); err != nil {
		t.Fatalf("SaveTape err: %v", err)
	}

	tape, err := s.LoadTape(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LoadTape err: %v", err)
	}
	if tape.SessionID != "sess-1" || tape.FinalDigest != "digest-sess-1" {
		t.Fatalf("loaded tape wrong: %+v", tape)
	}
	if len(tape.Events) != 1 || tape.Events[0].Type != engine.EvtTurnEnded {
		t.Fatalf("loaded events wrong: %+v", tape.Events)
	}

	infos, err := s.ListTapes(ctx, 10)
	if err != nil {
		t.Fatalf("ListTapes err: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("listed %d tapes, want 2", len(infos))
	}
	// Most recently sealed first.
	if infos[0].SessionID != "sess-2" {
		t.Fatalf("list order wrong: %+v", infos)
	}

	infos, err = s.ListTapes(ctx, 1)
	if err != nil {
		t.Fatalf("ListTapes err: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("limit ignored, got %d rows", len(infos))
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	exerciseStore(t, s)

	if n := s.EventCount("sess-1"); n != 2 {
		t.Fatalf("event count = %d, want 2 raw appends", n)
	}
}

func TestMemoryStoreCopies(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	src := testTape("sess-1", 100)
	if err := s.SaveTape(ctx, src); err != nil {
		t.Fatalf("SaveTape err: %v", err)
	}
	src.Events[0].Seat = 42

	got, err := s.LoadTape(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LoadTape err: %v", err)
	}
	if got.Events[0].Seat == 42 {
		t.Fatalf("store aliased caller memory")
	}
	got.Players[0] = "mallory"

	again, err := s.LoadTape(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LoadTape err: %v", err)
	}
	if again.Players[0] == "mallory" {
		t.Fatalf("loaded tape aliased store memory")
	}
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replays.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore err: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replays.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore err: %v", err)
	}
	if err := s.SaveTape(ctx, testTape("sess-1", 100)); err != nil {
		t.Fatalf("SaveTape err: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close err: %v", err)
	}

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen err: %v", err)
	}
	defer s.Close()
	tape, err := s.LoadTape(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LoadTape after reopen err: %v", err)
	}
	if tape.FinalDigest != "digest-sess-1" {
		t.Fatalf("reopened tape wrong: %+v", tape)
	}
}

func TestModeFromEnv(t *testing.T) {
	cases := map[string]string{
		"":           ModeSQLite,
		"sqlite":     ModeSQLite,
		"mem":        ModeMemory,
		"memory":     ModeMemory,
		"pg":         ModePostgres,
		"postgres":   ModePostgres,
		"POSTGRESQL": ModePostgres,
	}
	for raw, want := range cases {
		t.Setenv("REPLAY_STORE", raw)
		if got := modeFromEnv(); got != want {
			t.Fatalf("REPLAY_STORE=%q resolved to %q, want %q", raw, got, want)
		}
	}
}
