package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// PostgresStore persists audit entries in the audit_entries table. There is
// no UPDATE or DELETE statement in this file on purpose.
//
// Schema contract:
//
//	CREATE TABLE audit_entries (
//	    id          TEXT PRIMARY KEY,
//	    event       TEXT NOT NULL,
//	    actor       TEXT NOT NULL,
//	    action_id   TEXT,
//	    command_id  TEXT,
//	    session_id  TEXT,
//	    environment TEXT NOT NULL,
//	    checksum    TEXT NOT NULL,
//	    payload     JSONB NOT NULL,
//	    created_at  TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX audit_actor_idx  ON audit_entries (actor, created_at DESC);
//	CREATE INDEX audit_action_idx ON audit_entries (action_id);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgresStore over an open connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, e *Entry) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("Append: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (id, event, actor, action_id, command_id, session_id, environment, checksum, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, string(e.Event), e.Actor, e.ActionID, e.CommandID, e.SessionID, e.Environment, e.Checksum, payload, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("Append: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, event, actor, action_id, command_id, session_id, environment, checksum, payload, created_at
		FROM audit_entries WHERE id = $1
	`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) Query(ctx context.Context, f Filter) ([]*Entry, error) {
	conditions := []string{"TRUE"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.Actor != "" {
		conditions = append(conditions, "actor = "+arg(f.Actor))
	}
	if f.ActionID != "" {
		conditions = append(conditions, "action_id = "+arg(f.ActionID))
	}
	if f.Event != "" {
		conditions = append(conditions, "event = "+arg(string(f.Event)))
	}
	if f.Environment != "" {
		conditions = append(conditions, "environment = "+arg(f.Environment))
	}
	if !f.Since.IsZero() {
		conditions = append(conditions, "created_at >= "+arg(f.Since))
	}
	if !f.Until.IsZero() {
		conditions = append(conditions, "created_at <= "+arg(f.Until))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event, actor, action_id, command_id, session_id, environment, checksum, payload, created_at
		FROM audit_entries WHERE `+strings.Join(conditions, " AND ")+`
		ORDER BY created_at ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("Query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("Query scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var event string
	var payload []byte
	if err := row.Scan(
		&e.ID, &event, &e.Actor, &e.ActionID, &e.CommandID,
		&e.SessionID, &e.Environment, &e.Checksum, &payload, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	e.Event = EventType(event)
	if err := json.Unmarshal(payload, &e.Payload); err != nil {
		return nil, err
	}
	return &e, nil
}
