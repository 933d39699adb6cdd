// Package memory provides an in-process Store used by tests and by
// ephemeral runs that do not need a database file.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/vk2dls/qsonet/internal/domain/event"
	"github.com/vk2dls/qsonet/internal/storage"
)

// Store keeps the journal and read model in memory.
type Store struct {
	mu     sync.RWMutex
	events []event.Event
	qsos   map[string]storage.QsoRecord
	seq    uint64
}

// New returns an empty store.
func New() *Store {
	return &Store{qsos: make(map[string]storage.QsoRecord)}
}

func (s *Store) AppendEvents(ctx context.Context, events []event.Event) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, evt := range events {
		if err := evt.Validate(); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]event.Event, 0, len(events))
	for _, evt := range events {
		s.seq++
		evt.Seq = s.seq
		s.events = append(s.events, evt)
		stored = append(stored, evt)
	}
	return stored, nil
}

func (s *Store) ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []event.Event
	for _, evt := range s.events {
		if evt.Seq <= afterSeq {
			continue
		}
		out = append(out, evt)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ListEventsByAggregate(ctx context.Context, aggregateID string) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []event.Event
	for _, evt := range s.events {
		if evt.AggregateID == aggregateID {
			out = append(out, evt)
		}
	}
	return out, nil
}

func (s *Store) CountEvents(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.events)), nil
}

func (s *Store) PutQso(ctx context.Context, record storage.QsoRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record.Participants = append([]storage.ParticipantRecord(nil), record.Participants...)
	s.qsos[record.ID] = record
	return nil
}

func (s *Store) GetQso(ctx context.Context, id string) (storage.QsoRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.QsoRecord{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.qsos[id]
	if !ok {
		return storage.QsoRecord{}, storage.ErrNotFound
	}
	record.Participants = append([]storage.ParticipantRecord(nil), record.Participants...)
	return record, nil
}

func (s *Store) SearchQsosByName(ctx context.Context, term string) ([]storage.QsoRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	term = strings.ToLower(term)
	var out []storage.QsoRecord
	for _, record := range s.qsos {
		if record.Deleted {
			continue
		}
		if strings.Contains(strings.ToLower(record.Name), term) {
			record.Participants = append([]storage.ParticipantRecord(nil), record.Participants...)
			out = append(out, record)
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *Store) ListQsosByModerator(ctx context.Context, moderatorID string) ([]storage.QsoRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []storage.QsoRecord
	for _, record := range s.qsos {
		if record.Deleted || record.ModeratorID != moderatorID {
			continue
		}
		record.Participants = append([]storage.ParticipantRecord(nil), record.Participants...)
		out = append(out, record)
	}
	sortRecords(out)
	return out, nil
}

func (s *Store) ResetQsos(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.qsos = make(map[string]storage.QsoRecord)
	return nil
}

func (s *Store) Close() error {
	return nil
}

func sortRecords(records []storage.QsoRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
}
