package service

import (
	"context"
	"errors"
	"time"

	"github.com/vk2dls/qsonet/internal/domain/moderator"
	"github.com/vk2dls/qsonet/internal/domain/validation"
	"github.com/vk2dls/qsonet/internal/pipeline"
	"github.com/vk2dls/qsonet/internal/platform/id"
	"github.com/vk2dls/qsonet/internal/storage"
)

// ModeratorService handles moderator profile commands. Moderators have
// no read-model rows; reads rehydrate from the journal.
type ModeratorService struct {
	events storage.EventStore
	queue  *pipeline.Queue
	now    func() time.Time
	newID  func() (string, error)
}

// NewModeratorService wires the moderator command handler.
func NewModeratorService(events storage.EventStore, queue *pipeline.Queue) *ModeratorService {
	return &ModeratorService{
		events: events,
		queue:  queue,
		now:    time.Now,
		newID:  id.NewID,
	}
}

func (s *ModeratorService) commit(ctx context.Context, m *moderator.Moderator) validation.Result[*moderator.Moderator] {
	changes := m.UncommittedChanges()
	if len(changes) == 0 {
		return validation.OK(m)
	}
	stored, err := s.events.AppendEvents(ctx, changes)
	if err != nil {
		return validation.Fail[*moderator.Moderator](err)
	}
	s.queue.Publish(stored...)
	return validation.OK(m)
}

func (s *ModeratorService) load(ctx context.Context, moderatorID string) (*moderator.Moderator, error) {
	history, err := s.events.ListEventsByAggregate(ctx, moderatorID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, storage.ErrNotFound
	}
	return moderator.Load(moderatorID, history)
}

func (s *ModeratorService) mutate(ctx context.Context, moderatorID string, op func(*moderator.Moderator, time.Time) validation.Result[*moderator.Moderator]) validation.Result[*moderator.Moderator] {
	m, err := s.load(ctx, moderatorID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return validation.Err[*moderator.Moderator](notFoundError("moderator", moderatorID))
		}
		return validation.Fail[*moderator.Moderator](err)
	}
	result := op(m, s.now())
	if !result.Valid() {
		return result
	}
	return s.commit(ctx, result.Value())
}

// CreateModerator creates a moderator profile and returns its id.
func (s *ModeratorService) CreateModerator(ctx context.Context, callSign, email string) validation.Result[string] {
	moderatorID, err := s.newID()
	if err != nil {
		return validation.Fail[string](err)
	}
	result := moderator.New(moderatorID, callSign, email, s.now())
	if !result.Valid() {
		return validation.Err[string](result.Errors()...)
	}
	committed := s.commit(ctx, result.Value())
	if !committed.Valid() {
		return validation.Err[string](committed.Errors()...)
	}
	return validation.OK(moderatorID)
}

// GetModerator rehydrates one moderator from the journal.
func (s *ModeratorService) GetModerator(ctx context.Context, moderatorID string) validation.Result[*moderator.Moderator] {
	m, err := s.load(ctx, moderatorID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return validation.Err[*moderator.Moderator](notFoundError("moderator", moderatorID))
		}
		return validation.Fail[*moderator.Moderator](err)
	}
	return validation.OK(m)
}

// UpdateCallSign sets a moderator's call sign.
func (s *ModeratorService) UpdateCallSign(ctx context.Context, moderatorID, callSign string) validation.Result[*moderator.Moderator] {
	return s.mutate(ctx, moderatorID, func(m *moderator.Moderator, now time.Time) validation.Result[*moderator.Moderator] {
		return m.UpdateCallSign(callSign, now)
	})
}

// UpdateEmail sets a moderator's contact email.
func (s *ModeratorService) UpdateEmail(ctx context.Context, moderatorID, email string) validation.Result[*moderator.Moderator] {
	return s.mutate(ctx, moderatorID, func(m *moderator.Moderator, now time.Time) validation.Result[*moderator.Moderator] {
		return m.UpdateEmail(email, now)
	})
}

// UpdateCredentials sets or clears the directory credential pair.
func (s *ModeratorService) UpdateCredentials(ctx context.Context, moderatorID, username, secret string) validation.Result[*moderator.Moderator] {
	return s.mutate(ctx, moderatorID, func(m *moderator.Moderator, now time.Time) validation.Result[*moderator.Moderator] {
		return m.UpdateCredentials(username, secret, now)
	})
}
