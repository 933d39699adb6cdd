// Package qso implements the radio-contact session aggregate. State is
// derived only by folding the session's event history; business
// methods validate, emit an event, and apply it.
package qso

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vk2dls/qsonet/internal/domain/aggregate"
	"github.com/vk2dls/qsonet/internal/domain/event"
)

// Participant is owned by its session. Orders are dense ascending
// integers starting at 1.
type Participant struct {
	CallSign string
	Order    int
	Name     string
	Country  string
	AddedAt  time.Time
}

// Qso is a radio-contact session.
type Qso struct {
	aggregate.Root

	name         string
	description  string
	frequency    float64
	moderatorID  string
	startTime    time.Time
	participants []Participant
	deleted      bool
	deletedBy    string
	deletedAt    time.Time
}

// Load rehydrates a session from its ordered event history.
func Load(id string, history []event.Event) (*Qso, error) {
	q := &Qso{Root: aggregate.NewRoot(id)}
	if err := aggregate.Replay(history, q.apply); err != nil {
		return nil, fmt.Errorf("load qso %s: %w", id, err)
	}
	return q, nil
}

func (q *Qso) Name() string         { return q.name }
func (q *Qso) Description() string  { return q.description }
func (q *Qso) Frequency() float64   { return q.frequency }
func (q *Qso) ModeratorID() string  { return q.moderatorID }
func (q *Qso) StartTime() time.Time { return q.startTime }
func (q *Qso) Deleted() bool        { return q.deleted }
func (q *Qso) DeletedBy() string    { return q.deletedBy }
func (q *Qso) DeletedAt() time.Time { return q.deletedAt }

// Participants returns a copy sorted by order.
func (q *Qso) Participants() []Participant {
	out := make([]Participant, len(q.participants))
	copy(out, q.participants)
	return out
}

func (q *Qso) findParticipant(callSign string) (int, bool) {
	for i, p := range q.participants {
		if strings.EqualFold(p.CallSign, callSign) {
			return i, true
		}
	}
	return -1, false
}

func (q *Qso) emit(typ event.Type, payload any, now time.Time) error {
	data, err := event.MarshalPayload(payload)
	if err != nil {
		return err
	}
	evt := event.Event{
		AggregateID:   q.ID(),
		AggregateType: event.AggregateQso,
		Timestamp:     now.UTC(),
		Type:          typ,
		Payload:       data,
	}
	if err := q.apply(evt); err != nil {
		return err
	}
	q.Record(evt)
	return nil
}

// apply folds one event into state. Both live mutation and replay go
// through here; an event this aggregate does not emit is a hard error.
func (q *Qso) apply(evt event.Event) error {
	switch evt.Type {
	case event.TypeQsoCreated:
		var p event.QsoCreated
		if err := event.UnmarshalPayload(evt.Payload, &p); err != nil {
			return err
		}
		q.name = p.Name
		q.description = p.Description
		q.frequency = p.Frequency
		q.moderatorID = p.ModeratorID
		q.startTime = p.StartTime
		return nil

	case event.TypeQsoParticipantAdded:
		var p event.ParticipantAdded
		if err := event.UnmarshalPayload(evt.Payload, &p); err != nil {
			return err
		}
		q.participants = append(q.participants, Participant{
			CallSign: p.CallSign,
			Order:    p.Order,
			Name:     p.Name,
			Country:  p.Country,
			AddedAt:  p.AddedAt,
		})
		q.sortParticipants()
		return nil

	case event.TypeQsoParticipantRemoved:
		var p event.ParticipantRemoved
		if err := event.UnmarshalPayload(evt.Payload, &p); err != nil {
			return err
		}
		idx, ok := q.findParticipant(p.CallSign)
		if !ok {
			return fmt.Errorf("participant %s not present", p.CallSign)
		}
		removedOrder := q.participants[idx].Order
		q.participants = append(q.participants[:idx], q.participants[idx+1:]...)
		for i := range q.participants {
			if q.participants[i].Order > removedOrder {
				q.participants[i].Order--
			}
		}
		q.sortParticipants()
		return nil

	case event.TypeQsoParticipantsReordered:
		var p event.ParticipantsReordered
		if err := event.UnmarshalPayload(evt.Payload, &p); err != nil {
			return err
		}
		for callSign, order := range p.Orders {
			idx, ok := q.findParticipant(callSign)
			if !ok {
				return fmt.Errorf("participant %s not present", callSign)
			}
			q.participants[idx].Order = order
		}
		q.sortParticipants()
		return nil

	case event.TypeQsoParticipantUpdated:
		var p event.ParticipantUpdated
		if err := event.UnmarshalPayload(evt.Payload, &p); err != nil {
			return err
		}
		idx, ok := q.findParticipant(p.CallSign)
		if !ok {
			return fmt.Errorf("participant %s not present", p.CallSign)
		}
		q.participants[idx].Name = p.Name
		q.participants[idx].Country = p.Country
		return nil

	case event.TypeQsoFrequencyUpdated:
		var p event.FrequencyUpdated
		if err := event.UnmarshalPayload(evt.Payload, &p); err != nil {
			return err
		}
		q.frequency = p.Frequency
		return nil

	case event.TypeQsoStartTimeUpdated:
		var p event.StartTimeUpdated
		if err := event.UnmarshalPayload(evt.Payload, &p); err != nil {
			return err
		}
		q.startTime = p.StartTime
		return nil

	case event.TypeQsoDeleted:
		var p event.QsoDeleted
		if err := event.UnmarshalPayload(evt.Payload, &p); err != nil {
			return err
		}
		q.deleted = true
		q.deletedBy = p.DeletedBy
		q.deletedAt = p.DeletedAt
		return nil

	default:
		return fmt.Errorf("qso aggregate cannot apply event type %q", string(evt.Type))
	}
}

func (q *Qso) sortParticipants() {
	sort.SliceStable(q.participants, func(i, j int) bool {
		return q.participants[i].Order < q.participants[j].Order
	})
}
