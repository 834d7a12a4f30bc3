package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"kingdoms-lite/engine"
	"kingdoms-lite/replay"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStoreFromEnv() (*PostgresStore, error) {
	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set for the postgres replay store")
	}
	return NewPostgresStore(dsn)
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensurePostgresSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func ensurePostgresSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{`
CREATE TABLE IF NOT EXISTS replay_events (
    session_id    TEXT NOT NULL,
    seq           BIGINT NOT NULL,
    event_type    TEXT NOT NULL,
    event_json    JSONB NOT NULL,
    created_at_ms BIGINT NOT NULL,
    PRIMARY KEY (session_id, seq)
)`, `
CREATE TABLE IF NOT EXISTS replay_tapes (
    session_id   TEXT PRIMARY KEY,
    mode         TEXT NOT NULL,
    seat_count   INTEGER NOT NULL,
    seed         BIGINT NOT NULL,
    sealed_at_ms BIGINT NOT NULL,
    tape_json    JSONB NOT NULL
)`}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) AppendEvent(ctx context.Context, sessionID string, ev engine.Event) error {
	raw, err := ev.Encode()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO replay_events (session_id, seq, event_type, event_json, created_at_ms)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (session_id, seq) DO NOTHING
`, sessionID, ev.Seq, string(ev.Type), string(raw), time.Now().UTC().UnixMilli())
	return err
}

func (s *PostgresStore) SaveTape(ctx context.Context, tape *replay.Tape) error {
	raw, err := json.Marshal(tape)
	if err != nil {
		return fmt.Errorf("encode tape: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO replay_tapes (session_id, mode, seat_count, seed, sealed_at_ms, tape_json)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (session_id) DO UPDATE SET
    sealed_at_ms = EXCLUDED.sealed_at_ms,
    tape_json    = EXCLUDED.tape_json
`, tape.SessionID, tape.Mode, tape.SeatCount, tape.Seed, tape.SealedAtMs, string(raw))
	return err
}

func (s *PostgresStore) LoadTape(ctx context.Context, sessionID string) (*replay.Tape, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT tape_json FROM replay_tapes WHERE session_id = $1`, sessionID).Scan(&raw)
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

func (s *PostgresStore) ListTapes(ctx context.Context, limit int) ([]TapeInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT session_id, mode, seat_count, sealed_at_ms
FROM replay_tapes
ORDER BY sealed_at_ms DESC
LIMIT $1`, limit)
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
