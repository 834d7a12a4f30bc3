// Package store persists replay tapes. Live events are appended durably as
// they are emitted; the full tape is saved once sealed.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"kingdoms-lite/engine"
	"kingdoms-lite/replay"
)

var ErrTapeNotFound = errors.New("replay tape not found")

// TapeInfo is a listing row for saved sessions.
type TapeInfo struct {
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
	SeatCount int    `json:"seat_count"`
	SealedAt  int64  `json:"sealed_at_ms"`
}

type Store interface {
	// AppendEvent durably records one live event. Appends happen before
	// the event is broadcast, so a crash cannot leave clients ahead of
	// the log.
	AppendEvent(ctx context.Context, sessionID string, ev engine.Event) error

	// SaveTape stores a sealed tape.
	SaveTape(ctx context.Context, tape *replay.Tape) error

	LoadTape(ctx context.Context, sessionID string) (*replay.Tape, error)
	ListTapes(ctx context.Context, limit int) ([]TapeInfo, error)
	Close() error
}

const (
	ModeMemory   = "memory"
	ModeSQLite   = "sqlite"
	ModePostgres = "postgres"
)

func modeFromEnv() string {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("REPLAY_STORE")))
	switch raw {
	case "", ModeSQLite:
		return ModeSQLite
	case ModeMemory, "mem":
		return ModeMemory
	case ModePostgres, "pg", "postgresql":
		return ModePostgres
	default:
		return raw
	}
}

// NewFromEnv selects a backend from REPLAY_STORE (sqlite by default).
func NewFromEnv() (Store, string, error) {
	mode := modeFromEnv()

	switch mode {
	case ModeSQLite:
		s, err := NewSQLiteStoreFromEnv()
		if err != nil {
			return nil, mode, err
		}
		return s, mode, nil
	case ModePostgres:
		s, err := NewPostgresStoreFromEnv()
		if err != nil {
			return nil, mode, err
		}
		return s, mode, nil
	case ModeMemory:
		return NewMemoryStore(), mode, nil
	default:
		return nil, mode, fmt.Errorf("invalid REPLAY_STORE %q (supported: %s, %s, %s)",
			mode, ModeMemory, ModeSQLite, ModePostgres)
	}
}
