package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"kingdoms-lite/engine"
	"kingdoms-lite/replay"
)

const defaultSQLitePath = "kingdoms_replays.db"

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStoreFromEnv() (*SQLiteStore, error) {
	path := strings.TrimSpace(os.Getenv("REPLAY_SQLITE_PATH"))
	if path == "" {
		path = defaultSQLitePath
	}
	return NewSQLiteStore(path)
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA foreign_keys = ON;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{`
CREATE TABLE IF NOT EXISTS replay_events (
    session_id    TEXT NOT NULL,
    seq           INTEGER NOT NULL,
    event_type    TEXT NOT NULL,
    event_json    TEXT NOT NULL,
    created_at_ms INTEGER NOT NULL,
    PRIMARY KEY (session_id, seq)
)`, `
CREATE TABLE IF NOT EXISTS replay_tapes (
    session_id   TEXT PRIMARY KEY,
    mode         TEXT NOT NULL,
    seat_count   INTEGER NOT NULL,
    seed         INTEGER NOT NULL,
    sealed_at_ms INTEGER NOT NULL,
    tape_json    TEXT NOT NULL
)`}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) AppendEvent(ctx context.Context, sessionID string, ev engine.Event) error {
	raw, err := ev.Encode()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO replay_events (session_id, seq, event_type, event_json, created_at_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (session_id, seq) DO NOTHING
`, sessionID, ev.Seq, string(ev.Type), string(raw), time.Now().UTC().UnixMilli())
	return err
}

func (s *SQLiteStore) SaveTape(ctx context.Context, tape *replay.Tape) error {
	raw, err := json.Marshal(tape)
	if err != nil {
		return fmt.Errorf("encode tape: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO replay_tapes (session_id, mode, seat_count, seed, sealed_at_ms, tape_json)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (session_id) DO UPDATE SET
    sealed_at_ms = excluded.sealed_at_ms,
    tape_json    = excluded.tape_json
`, tape.SessionID, tape.Mode, tape.SeatCount, tape.Seed, tape.SealedAtMs, string(raw))
	return err
}

func (s *SQLiteStore) LoadTape(ctx context.Context, sessionID string) (*replay.Tape, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT tape_json FROM replay_tapes WHERE session_id = ?`, sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTapeNotFound
	}
	if err != nil {
		return nil, err
	}
	var tape replay.Tape
	if err := json.Unmarshal([]byte(raw), &tape); err != nil {
		return nil, fmt.Errorf("decode tape %s: %w", sessionID, err)
	}
	return &tape, nil
}

func (s *SQLiteStore) ListTapes(ctx context.Context, limit int) ([]TapeInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT session_id, mode, seat_count, sealed_at_ms
FROM replay_tapes
ORDER BY sealed_at_ms DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TapeInfo
	for rows.Next() {
		var info TapeInfo
		if err := rows.Scan(&info.SessionID, &info.Mode, &info.SeatCount, &info.SealedAt); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}
