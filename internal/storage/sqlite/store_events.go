package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/vk2dls/qsonet/internal/domain/event"
)

func (s *Store) AppendEvents(ctx context.Context, events []event.Event) ([]event.Event, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlite store not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	for _, evt := range events {
		if err := evt.Validate(); err != nil {
			return nil, fmt.Errorf("append events: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stored := make([]event.Event, 0, len(events))
	for _, evt := range events {
		res, err := tx.ExecContext(ctx, `
INSERT INTO events (aggregate_id, aggregate_type, event_type, timestamp, payload)
VALUES (?, ?, ?, ?, ?)`,
			evt.AggregateID,
			string(evt.AggregateType),
			string(evt.Type),
			evt.Timestamp.UTC().Format(time.RFC3339Nano),
			evt.Payload,
		)
		if err != nil {
			return nil, fmt.Errorf("insert event: %w", err)
		}
		seq, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("read assigned seq: %w", err)
		}
		evt.Seq = uint64(seq)
		stored = append(stored, evt)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}
	return stored, nil
}

func (s *Store) ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlite store not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT seq, aggregate_id, aggregate_type, event_type, timestamp, payload
FROM events
WHERE seq > ?
ORDER BY seq ASC
LIMIT ?`, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *Store) ListEventsByAggregate(ctx context.Context, aggregateID string) ([]event.Event, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlite store not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT seq, aggregate_id, aggregate_type, event_type, timestamp, payload
FROM events
WHERE aggregate_id = ?
ORDER BY seq ASC`, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("list events by aggregate: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *Store) CountEvents(ctx context.Context) (uint64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlite store not initialized")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var count uint64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEvents(rows rowScanner) ([]event.Event, error) {
	var out []event.Event
	for rows.Next() {
		var (
			evt           event.Event
			aggregateType string
			eventType     string
			timestamp     string
		)
		if err := rows.Scan(&evt.Seq, &evt.AggregateID, &aggregateType, &eventType, &timestamp, &evt.Payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, timestamp)
		if err != nil {
			return nil, fmt.Errorf("parse event timestamp: %w", err)
		}
		evt.AggregateType = event.AggregateType(aggregateType)
		evt.Type = event.Type(eventType)
		evt.Timestamp = ts
		out = append(out, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}
