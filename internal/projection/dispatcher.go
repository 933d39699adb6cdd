// Package projection maintains the session read model by translating
// committed events, one at a time, into read-model mutations.
package projection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/vk2dls/qsonet/internal/domain/event"
	"github.com/vk2dls/qsonet/internal/storage"
)

type handlerFunc func(ctx context.Context, evt event.Event) error

// Dispatcher applies one event's effect onto the read model. The
// handler table is total over the known event types; dispatching an
// unknown type is a hard error, never a silent skip, because a skipped
// event desynchronizes the read model from the journal.
type Dispatcher struct {
	qsos     storage.QsoStore
	handlers map[event.Type]handlerFunc
}

// New builds a dispatcher over the given read-model store.
func New(qsos storage.QsoStore) *Dispatcher {
	d := &Dispatcher{qsos: qsos}
	d.handlers = map[event.Type]handlerFunc{
		event.TypeQsoCreated:               d.applyCreated,
		event.TypeQsoParticipantAdded:      d.applyParticipantAdded,
		event.TypeQsoParticipantRemoved:    d.applyParticipantRemoved,
		event.TypeQsoParticipantsReordered: d.applyParticipantsReordered,
		event.TypeQsoParticipantUpdated:    d.applyParticipantUpdated,
		event.TypeQsoFrequencyUpdated:      d.applyFrequencyUpdated,
		event.TypeQsoStartTimeUpdated:      d.applyStartTimeUpdated,
		event.TypeQsoDeleted:               d.applyDeleted,

		// Moderator events carry no read-model state but must stay
		// recognized so a full-journal replay never fails on them.
		event.TypeModeratorCreated:            d.applyNoop,
		event.TypeModeratorCallSignUpdated:    d.applyNoop,
		event.TypeModeratorEmailUpdated:       d.applyNoop,
		event.TypeModeratorCredentialsUpdated: d.applyNoop,
	}
	return d
}

// Dispatch applies evt to the read model.
func (d *Dispatcher) Dispatch(ctx context.Context, evt event.Event) error {
	if d == nil || d.qsos == nil {
		return fmt.Errorf("dispatcher not initialized")
	}
	handler, ok := d.handlers[evt.Type]
	if !ok {
		return fmt.Errorf("dispatch: unrecognized event type %q", string(evt.Type))
	}
	if err := handler(ctx, evt); err != nil {
		return fmt.Errorf("dispatch %s for %s: %w", evt.Type, evt.AggregateID, err)
	}
	return nil
}

func (d *Dispatcher) applyNoop(context.Context, event.Event) error {
	return nil
}

func (d *Dispatcher) applyCreated(ctx context.Context, evt event.Event) error {
	var p event.QsoCreated
	if err := event.UnmarshalPayload(evt.Payload, &p); err != nil {
		return err
	}
	return d.qsos.PutQso(ctx, storage.QsoRecord{
		ID:           evt.AggregateID,
		Name:         p.Name,
		Description:  p.Description,
		Frequency:    p.Frequency,
		ModeratorID:  p.ModeratorID,
		StartTime:    p.StartTime,
		Participants: []storage.ParticipantRecord{},
		CreatedAt:    evt.Timestamp,
		UpdatedAt:    evt.Timestamp,
	})
}

// load fetches the row an update event addresses. A missing row is an
// error that propagates to the caller.
func (d *Dispatcher) load(ctx context.Context, evt event.Event) (storage.QsoRecord, error) {
	record, err := d.qsos.GetQso(ctx, evt.AggregateID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.QsoRecord{}, fmt.Errorf("no projection row for %s", evt.AggregateID)
		}
		return storage.QsoRecord{}, err
	}
	return record, nil
}

func (d *Dispatcher) store(ctx context.Context, record storage.QsoRecord, evt event.Event) error {
	record.UpdatedAt = evt.Timestamp
	return d.qsos.PutQso(ctx, record)
}

func (d *Dispatcher) applyParticipantAdded(ctx context.Context, evt event.Event) error {
	var p event.ParticipantAdded
	if err := event.UnmarshalPayload(evt.Payload, &p); err != nil {
		return err
	}
	record, err := d.load(ctx, evt)
	if err != nil {
		return err
	}
	record.Participants = append(record.Participants, storage.ParticipantRecord{
		CallSign: p.CallSign,
		Order:    p.Order,
		Name:     p.Name,
		Country:  p.Country,
		AddedAt:  p.AddedAt,
	})
	sortParticipants(record.Participants)
	return d.store(ctx, record, evt)
}

func (d *Dispatcher) applyParticipantRemoved(ctx context.Context, evt event.Event) error {
	var p event.ParticipantRemoved
	if err := event.UnmarshalPayload(evt.Payload, &p); err != nil {
		return err
	}
	record, err := d.load(ctx, evt)
	if err != nil {
		return err
	}

	removedOrder := -1
	kept := make([]storage.ParticipantRecord, 0, len(record.Participants))
	for _, participant := range record.Participants {
		if strings.EqualFold(participant.CallSign, p.CallSign) {
			removedOrder = participant.Order
			continue
		}
		kept = append(kept, participant)
	}
	if removedOrder == -1 {
		return fmt.Errorf("participant %s not in projection row", p.CallSign)
	}
	for i := range kept {
		if kept[i].Order > removedOrder {
			kept[i].Order--
		}
	}
	sortParticipants(kept)
	record.Participants = kept
	return d.store(ctx, record, evt)
}

func (d *Dispatcher) applyParticipantsReordered(ctx context.Context, evt event.Event) error {
	var p event.ParticipantsReordered
	if err := event.UnmarshalPayload(evt.Payload, &p); err != nil {
		return err
	}
	record, err := d.load(ctx, evt)
	if err != nil {
		return err
	}
	// Only call signs present in the map move; the rest keep their
	// current order.
	for callSign, order := range p.Orders {
		for i := range record.Participants {
			if strings.EqualFold(record.Participants[i].CallSign, callSign) {
				record.Participants[i].Order = order
				break
			}
		}
	}
	sortParticipants(record.Participants)
	return d.store(ctx, record, evt)
}

func (d *Dispatcher) applyParticipantUpdated(ctx context.Context, evt event.Event) error {
	var p event.ParticipantUpdated
	if err := event.UnmarshalPayload(evt.Payload, &p); err != nil {
		return err
	}
	record, err := d.load(ctx, evt)
	if err != nil {
		return err
	}
	updated := false
	for i := range record.Participants {
		if strings.EqualFold(record.Participants[i].CallSign, p.CallSign) {
			record.Participants[i].Name = p.Name
			record.Participants[i].Country = p.Country
			updated = true
			break
		}
	}
	if !updated {
		return fmt.Errorf("participant %s not in projection row", p.CallSign)
	}
	return d.store(ctx, record, evt)
}

func (d *Dispatcher) applyFrequencyUpdated(ctx context.Context, evt event.Event) error {
	var p event.FrequencyUpdated
	if err := event.UnmarshalPayload(evt.Payload, &p); err != nil {
		return err
	}
	record, err := d.load(ctx, evt)
	if err != nil {
		return err
	}
	record.Frequency = p.Frequency
	return d.store(ctx, record, evt)
}

func (d *Dispatcher) applyStartTimeUpdated(ctx context.Context, evt event.Event) error {
	var p event.StartTimeUpdated
	if err := event.UnmarshalPayload(evt.Payload, &p); err != nil {
		return err
	}
	record, err := d.load(ctx, evt)
	if err != nil {
		return err
	}
	record.StartTime = p.StartTime
	return d.store(ctx, record, evt)
}

func (d *Dispatcher) applyDeleted(ctx context.Context, evt event.Event) error {
	var p event.QsoDeleted
	if err := event.UnmarshalPayload(evt.Payload, &p); err != nil {
		return err
	}
	record, err := d.load(ctx, evt)
	if err != nil {
		return err
	}
	record.Deleted = true
	record.DeletedBy = p.DeletedBy
	record.DeletedAt = p.DeletedAt
	return d.store(ctx, record, evt)
}

func sortParticipants(participants []storage.ParticipantRecord) {
	sort.SliceStable(participants, func(i, j int) bool {
		return participants[i].Order < participants[j].Order
	})
}
