// Package service exposes the command-handler surface consumed by the
// transport layer. Each command loads an aggregate from its history,
// applies one business operation, appends the produced events in a
// single durable write, and then publishes them onto the pipeline.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/vk2dls/qsonet/internal/domain/qso"
	"github.com/vk2dls/qsonet/internal/domain/validation"
	"github.com/vk2dls/qsonet/internal/pipeline"
	"github.com/vk2dls/qsonet/internal/platform/id"
	"github.com/vk2dls/qsonet/internal/storage"
)

// QsoService handles session commands and read-model queries.
type QsoService struct {
	events storage.EventStore
	qsos   storage.QsoStore
	queue  *pipeline.Queue
	now    func() time.Time
	newID  func() (string, error)
}

// NewQsoService wires the session command handler.
func NewQsoService(events storage.EventStore, qsos storage.QsoStore, queue *pipeline.Queue) *QsoService {
	return &QsoService{
		events: events,
		qsos:   qsos,
		queue:  queue,
		now:    time.Now,
		newID:  id.NewID,
	}
}

func notFoundError(kind, aggregateID string) validation.Error {
	return validation.Error{Code: validation.CodeNotFound, Message: kind + " " + aggregateID + " not found"}
}

// commit persists uncommitted changes in one append, then fans the
// stored events out to the pipeline.
func (s *QsoService) commit(ctx context.Context, q *qso.Qso) validation.Result[*qso.Qso] {
	changes := q.UncommittedChanges()
	if len(changes) == 0 {
		return validation.OK(q)
	}
	stored, err := s.events.AppendEvents(ctx, changes)
	if err != nil {
		return validation.Fail[*qso.Qso](err)
	}
	s.queue.Publish(stored...)
	return validation.OK(q)
}

func (s *QsoService) load(ctx context.Context, qsoID string) (*qso.Qso, error) {
	history, err := s.events.ListEventsByAggregate(ctx, qsoID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, storage.ErrNotFound
	}
	return qso.Load(qsoID, history)
}

// mutate runs one business operation against a rehydrated session and
// commits whatever events it produced.
func (s *QsoService) mutate(ctx context.Context, qsoID string, op func(*qso.Qso, time.Time) validation.Result[*qso.Qso]) validation.Result[*qso.Qso] {
	q, err := s.load(ctx, qsoID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return validation.Err[*qso.Qso](notFoundError("session", qsoID))
		}
		return validation.Fail[*qso.Qso](err)
	}
	result := op(q, s.now())
	if !result.Valid() {
		return result
	}
	return s.commit(ctx, result.Value())
}

// CreateQso creates a session and returns its generated id.
func (s *QsoService) CreateQso(ctx context.Context, name, description string, frequency float64, moderatorID string, startTime time.Time) validation.Result[string] {
	qsoID, err := s.newID()
	if err != nil {
		return validation.Fail[string](err)
	}
	result := qso.New(qsoID, name, description, frequency, moderatorID, startTime, s.now())
	if !result.Valid() {
		return validation.Err[string](result.Errors()...)
	}
	committed := s.commit(ctx, result.Value())
	if !committed.Valid() {
		return validation.Err[string](committed.Errors()...)
	}
	return validation.OK(qsoID)
}

// AddParticipant adds a participant to a session.
func (s *QsoService) AddParticipant(ctx context.Context, qsoID, callSign, name, country string) validation.Result[*qso.Qso] {
	return s.mutate(ctx, qsoID, func(q *qso.Qso, now time.Time) validation.Result[*qso.Qso] {
		return q.AddParticipant(callSign, name, country, now)
	})
}

// RemoveParticipant removes a participant from a session.
func (s *QsoService) RemoveParticipant(ctx context.Context, qsoID, callSign string) validation.Result[*qso.Qso] {
	return s.mutate(ctx, qsoID, func(q *qso.Qso, now time.Time) validation.Result[*qso.Qso] {
		return q.RemoveParticipant(callSign, now)
	})
}

// ReorderParticipants applies a complete call-sign to position remap.
func (s *QsoService) ReorderParticipants(ctx context.Context, qsoID string, orders map[string]int) validation.Result[*qso.Qso] {
	return s.mutate(ctx, qsoID, func(q *qso.Qso, now time.Time) validation.Result[*qso.Qso] {
		return q.ReorderParticipants(orders, now)
	})
}

// MoveParticipant moves one participant to a target position.
func (s *QsoService) MoveParticipant(ctx context.Context, qsoID, callSign string, position int) validation.Result[*qso.Qso] {
	return s.mutate(ctx, qsoID, func(q *qso.Qso, now time.Time) validation.Result[*qso.Qso] {
		return q.MoveParticipant(callSign, position, now)
	})
}

// UpdateParticipantInfo sets a participant's display name and country.
func (s *QsoService) UpdateParticipantInfo(ctx context.Context, qsoID, callSign, name, country string) validation.Result[*qso.Qso] {
	return s.mutate(ctx, qsoID, func(q *qso.Qso, now time.Time) validation.Result[*qso.Qso] {
		return q.UpdateParticipantInfo(callSign, name, country, now)
	})
}

// UpdateFrequency sets a session's frequency.
func (s *QsoService) UpdateFrequency(ctx context.Context, qsoID string, frequency float64) validation.Result[*qso.Qso] {
	return s.mutate(ctx, qsoID, func(q *qso.Qso, now time.Time) validation.Result[*qso.Qso] {
		return q.UpdateFrequency(frequency, now)
	})
}

// UpdateStartTime sets a session's start time.
func (s *QsoService) UpdateStartTime(ctx context.Context, qsoID string, startTime time.Time) validation.Result[*qso.Qso] {
	return s.mutate(ctx, qsoID, func(q *qso.Qso, now time.Time) validation.Result[*qso.Qso] {
		return q.UpdateStartTime(startTime, now)
	})
}

// DeleteQso soft-deletes a session on behalf of requestedBy.
func (s *QsoService) DeleteQso(ctx context.Context, qsoID, requestedBy string) validation.Result[*qso.Qso] {
	return s.mutate(ctx, qsoID, func(q *qso.Qso, now time.Time) validation.Result[*qso.Qso] {
		return q.Delete(requestedBy, now)
	})
}

// GetQso reads one session row from the read model.
func (s *QsoService) GetQso(ctx context.Context, qsoID string) validation.Result[storage.QsoRecord] {
	record, err := s.qsos.GetQso(ctx, qsoID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return validation.Err[storage.QsoRecord](notFoundError("session", qsoID))
		}
		return validation.Fail[storage.QsoRecord](err)
	}
	return validation.OK(record)
}

// SearchQsosByName searches non-deleted sessions by name.
func (s *QsoService) SearchQsosByName(ctx context.Context, term string) validation.Result[[]storage.QsoRecord] {
	records, err := s.qsos.SearchQsosByName(ctx, term)
	if err != nil {
		return validation.Fail[[]storage.QsoRecord](err)
	}
	return validation.OK(records)
}

// ListQsosByModerator lists a moderator's non-deleted sessions.
func (s *QsoService) ListQsosByModerator(ctx context.Context, moderatorID string) validation.Result[[]storage.QsoRecord] {
	records, err := s.qsos.ListQsosByModerator(ctx, moderatorID)
	if err != nil {
		return validation.Fail[[]storage.QsoRecord](err)
	}
	return validation.OK(records)
}
