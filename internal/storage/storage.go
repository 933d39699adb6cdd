// Package storage defines the persistence interfaces for the event
// journal and the session read model.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vk2dls/qsonet/internal/domain/event"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// EventStore is the append-only event journal. Append assigns each
// event a globally monotonic sequence number; listing in sequence
// order is the commit order reprojection depends on.
type EventStore interface {
	// AppendEvents persists events atomically and returns them with
	// assigned sequence numbers, in the order given.
	AppendEvents(ctx context.Context, events []event.Event) ([]event.Event, error)
	// ListEvents returns up to limit events with Seq > afterSeq, in
	// ascending sequence order.
	ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error)
	// ListEventsByAggregate returns one aggregate's events in
	// ascending sequence order.
	ListEventsByAggregate(ctx context.Context, aggregateID string) ([]event.Event, error)
	// CountEvents returns the total number of persisted events.
	CountEvents(ctx context.Context) (uint64, error)
}

// ParticipantRecord is one participant row inside a session row.
type ParticipantRecord struct {
	CallSign string    `json:"call_sign"`
	Order    int       `json:"order"`
	Name     string    `json:"name,omitempty"`
	Country  string    `json:"country,omitempty"`
	AddedAt  time.Time `json:"added_at"`
}

// QsoRecord is the denormalized read-model row for one session.
type QsoRecord struct {
	ID           string
	Name         string
	Description  string
	Frequency    float64
	ModeratorID  string
	StartTime    time.Time
	Participants []ParticipantRecord
	Deleted      bool
	DeletedBy    string
	DeletedAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// QsoStore holds the session read model. Rows are derived from events
// and may be discarded and rebuilt at any time.
type QsoStore interface {
	PutQso(ctx context.Context, record QsoRecord) error
	GetQso(ctx context.Context, id string) (QsoRecord, error)
	// SearchQsosByName returns non-deleted sessions whose name
	// contains term, case-insensitively.
	SearchQsosByName(ctx context.Context, term string) ([]QsoRecord, error)
	// ListQsosByModerator returns non-deleted sessions owned by the
	// given moderator.
	ListQsosByModerator(ctx context.Context, moderatorID string) ([]QsoRecord, error)
	// ResetQsos drops every row. Reprojection always resets first.
	ResetQsos(ctx context.Context) error
}

// Store is the full persistence surface.
type Store interface {
	EventStore
	QsoStore
	Close() error
}
