package projection

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/vk2dls/qsonet/internal/domain/event"
	"github.com/vk2dls/qsonet/internal/storage"
	"github.com/vk2dls/qsonet/internal/storage/memory"
)

var testNow = time.Date(2026, 6, 15, 18, 0, 0, 0, time.UTC)

func qsoEvent(t *testing.T, typ event.Type, payload any) event.Event {
	t.Helper()
	data, err := event.MarshalPayload(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return event.Event{
		AggregateID:   "qso-1",
		AggregateType: event.AggregateQso,
		Timestamp:     testNow,
		Type:          typ,
		Payload:       data,
	}
}

func createdEvent(t *testing.T) event.Event {
	return qsoEvent(t, event.TypeQsoCreated, event.QsoCreated{
		Name:        "Field Day",
		Description: "annual contest",
		Frequency:   14.285,
		ModeratorID: "mod-1",
		StartTime:   testNow,
	})
}

func addedEvent(t *testing.T, callSign string, order int) event.Event {
	return qsoEvent(t, event.TypeQsoParticipantAdded, event.ParticipantAdded{
		CallSign: callSign,
		Order:    order,
		AddedAt:  testNow,
	})
}

func dispatchAll(t *testing.T, d *Dispatcher, events ...event.Event) {
	t.Helper()
	for _, evt := range events {
		if err := d.Dispatch(context.Background(), evt); err != nil {
			t.Fatalf("Dispatch(%s) error = %v", evt.Type, err)
		}
	}
}

func TestDispatchCreatedInsertsRow(t *testing.T) {
	store := memory.New()
	d := New(store)
	dispatchAll(t, d, createdEvent(t))

	record, err := store.GetQso(context.Background(), "qso-1")
	if err != nil {
		t.Fatalf("GetQso() error = %v", err)
	}
	if record.Name != "Field Day" || record.Frequency != 14.285 || record.ModeratorID != "mod-1" {
		t.Fatalf("record = %+v", record)
	}
	if len(record.Participants) != 0 {
		t.Fatalf("participants = %v, want empty", record.Participants)
	}
	if !record.CreatedAt.Equal(testNow) || !record.UpdatedAt.Equal(testNow) {
		t.Fatalf("timestamps = (%v, %v)", record.CreatedAt, record.UpdatedAt)
	}
}

func TestDispatchUnknownTypeIsHardError(t *testing.T) {
	d := New(memory.New())
	evt := event.Event{AggregateID: "qso-1", Type: "qso.renamed", Timestamp: testNow}
	err := d.Dispatch(context.Background(), evt)
	if err == nil {
		t.Fatal("Dispatch() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "unrecognized event type") {
		t.Fatalf("error = %v", err)
	}
}

func TestDispatchUpdateWithoutRowFails(t *testing.T) {
	d := New(memory.New())
	if err := d.Dispatch(context.Background(), addedEvent(t, "F4AAA", 1)); err == nil {
		t.Fatal("Dispatch() on missing row error = nil, want error")
	}
}

func TestDispatchParticipantAddedAppends(t *testing.T) {
	store := memory.New()
	d := New(store)
	dispatchAll(t, d, createdEvent(t), addedEvent(t, "F4AAA", 1), addedEvent(t, "F4BBB", 2))

	record, _ := store.GetQso(context.Background(), "qso-1")
	if len(record.Participants) != 2 {
		t.Fatalf("participants = %v", record.Participants)
	}
	if record.Participants[0].CallSign != "F4AAA" || record.Participants[1].Order != 2 {
		t.Fatalf("participants = %+v", record.Participants)
	}
}

func TestDispatchParticipantRemovedClosesGap(t *testing.T) {
	store := memory.New()
	d := New(store)
	dispatchAll(t, d,
		createdEvent(t),
		addedEvent(t, "F4AAA", 1),
		addedEvent(t, "F4BBB", 2),
		addedEvent(t, "F4CCC", 3),
		qsoEvent(t, event.TypeQsoParticipantRemoved, event.ParticipantRemoved{CallSign: "f4aaa", Order: 1}),
	)

	record, _ := store.GetQso(context.Background(), "qso-1")
	if len(record.Participants) != 2 {
		t.Fatalf("participants = %+v", record.Participants)
	}
	if record.Participants[0].CallSign != "F4BBB" || record.Participants[0].Order != 1 {
		t.Fatalf("participants[0] = %+v, want F4BBB at 1", record.Participants[0])
	}
	if record.Participants[1].CallSign != "F4CCC" || record.Participants[1].Order != 2 {
		t.Fatalf("participants[1] = %+v, want F4CCC at 2", record.Participants[1])
	}
}

func TestDispatchReorderedOverwritesOnlyMapped(t *testing.T) {
	store := memory.New()
	d := New(store)
	dispatchAll(t, d,
		createdEvent(t),
		addedEvent(t, "F4AAA", 1),
		addedEvent(t, "F4BBB", 2),
		addedEvent(t, "F4CCC", 3),
		qsoEvent(t, event.TypeQsoParticipantsReordered, event.ParticipantsReordered{
			Orders: map[string]int{"F4AAA": 3, "F4CCC": 1},
		}),
	)

	record, _ := store.GetQso(context.Background(), "qso-1")
	got := map[string]int{}
	for _, p := range record.Participants {
		got[p.CallSign] = p.Order
	}
	if got["F4CCC"] != 1 || got["F4BBB"] != 2 || got["F4AAA"] != 3 {
		t.Fatalf("orders = %v", got)
	}
}

func TestDispatchParticipantUpdated(t *testing.T) {
	store := memory.New()
	d := New(store)
	dispatchAll(t, d,
		createdEvent(t),
		addedEvent(t, "F4AAA", 1),
		qsoEvent(t, event.TypeQsoParticipantUpdated, event.ParticipantUpdated{
			CallSign: "F4AAA", Name: "Alice", Country: "France",
		}),
	)

	record, _ := store.GetQso(context.Background(), "qso-1")
	p := record.Participants[0]
	if p.Name != "Alice" || p.Country != "France" {
		t.Fatalf("participant = %+v", p)
	}
}

func TestDispatchFrequencyAndStartTime(t *testing.T) {
	store := memory.New()
	d := New(store)
	next := testNow.Add(time.Hour)
	dispatchAll(t, d,
		createdEvent(t),
		qsoEvent(t, event.TypeQsoFrequencyUpdated, event.FrequencyUpdated{Frequency: 7.074}),
		qsoEvent(t, event.TypeQsoStartTimeUpdated, event.StartTimeUpdated{StartTime: next}),
	)

	record, _ := store.GetQso(context.Background(), "qso-1")
	if record.Frequency != 7.074 || !record.StartTime.Equal(next) {
		t.Fatalf("record = %+v", record)
	}
}

func TestDispatchDeletedMarksRow(t *testing.T) {
	store := memory.New()
	d := New(store)
	dispatchAll(t, d,
		createdEvent(t),
		qsoEvent(t, event.TypeQsoDeleted, event.QsoDeleted{DeletedBy: "mod-1", DeletedAt: testNow}),
	)

	record, _ := store.GetQso(context.Background(), "qso-1")
	if !record.Deleted || record.DeletedBy != "mod-1" {
		t.Fatalf("record = %+v", record)
	}

	results, _ := store.SearchQsosByName(context.Background(), "Field")
	if len(results) != 0 {
		t.Fatalf("deleted session still searchable: %v", results)
	}
}

func TestDispatchModeratorEventsAreRecognizedNoOps(t *testing.T) {
	store := memory.New()
	d := New(store)
	evt := event.Event{
		AggregateID:   "mod-1",
		AggregateType: event.AggregateModerator,
		Timestamp:     testNow,
		Type:          event.TypeModeratorCreated,
		Payload:       []byte(`{"call_sign":"VK2DLS"}`),
	}
	if err := d.Dispatch(context.Background(), evt); err != nil {
		t.Fatalf("Dispatch(moderator.created) error = %v", err)
	}
	if _, err := store.GetQso(context.Background(), "mod-1"); err != storage.ErrNotFound {
		t.Fatalf("moderator event mutated the read model: %v", err)
	}
}
