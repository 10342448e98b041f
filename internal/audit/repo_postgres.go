package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"telephony-gateway/pkg/utils"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS gateway_audit_events (
	id          UUID PRIMARY KEY,
	type        TEXT NOT NULL,
	provider    TEXT NOT NULL,
	actor_id    TEXT NOT NULL DEFAULT '',
	actor_role  TEXT NOT NULL DEFAULT '',
	ip_address  TEXT NOT NULL DEFAULT '',
	request_id  TEXT NOT NULL DEFAULT '',
	message_id  TEXT NOT NULL DEFAULT '',
	call_id     TEXT NOT NULL DEFAULT '',
	destination TEXT NOT NULL DEFAULT '',
	segments    INTEGER NOT NULL DEFAULT 0,
	reason      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
)`

const createIndexSQL = `
CREATE INDEX IF NOT EXISTS gateway_audit_events_created_at_idx
	ON gateway_audit_events (created_at)`

const insertEventSQL = `
INSERT INTO gateway_audit_events
	(id, type, provider, actor_id, actor_role, ip_address, request_id, message_id, call_id, destination, segments, reason, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

const listEventsSQL = `
SELECT id, type, provider, actor_id, actor_role, ip_address, request_id, message_id, call_id, destination, segments, reason, created_at
FROM gateway_audit_events
WHERE created_at >= $1 AND created_at < $2
ORDER BY created_at ASC
LIMIT $3`

// maxListedEvents bounds one ListEvents call.
const maxListedEvents = 50_000

// PostgresRepo appends events to gateway_audit_events via database/sql (pgx stdlib driver).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

// EnsureSchema creates the table and index if missing.
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, createTableSQL); err != nil {
			return fmt.Errorf("audit: create table: %w", err)
		}
		if _, err := tx.ExecContext(ctx, createIndexSQL); err != nil {
			return fmt.Errorf("audit: create index: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	if _, err := r.db.ExecContext(ctx, insertEventSQL, insertArgs(e)...); err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}

// ListEvents returns events with from <= created_at < to, oldest first.
func (r *PostgresRepo) ListEvents(ctx context.Context, from, to time.Time) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, listEventsSQL, from, to, maxListedEvents)
	if err != nil {
		return nil, fmt.Errorf("audit: list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e   Event
			typ string
		)
		if err := rows.Scan(&e.ID, &typ, &e.Provider, &e.ActorID, &e.ActorRole, &e.IPAddress, &e.RequestID,
			&e.MessageID, &e.CallID, &e.Destination, &e.Segments, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		e.Type = EventType(typ)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: list events: %w", err)
	}
	return out, nil
}

func insertArgs(e Event) []any {
	return []any{
		e.ID,
		string(e.Type),
		e.Provider,
		e.ActorID,
		e.ActorRole,
		e.IPAddress,
		e.RequestID,
		e.MessageID,
		e.CallID,
		e.Destination,
		e.Segments,
		e.Reason,
		e.CreatedAt,
	}
}
