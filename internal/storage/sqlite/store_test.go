package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/vk2dls/qsonet/internal/domain/event"
	"github.com/vk2dls/qsonet/internal/storage"
)

var testNow = time.Date(2026, 6, 15, 18, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "qsonet.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testEvent(aggregateID string, typ event.Type, payload string) event.Event {
	return event.Event{
		AggregateID:   aggregateID,
		AggregateType: event.AggregateQso,
		Timestamp:     testNow,
		Type:          typ,
		Payload:       []byte(payload),
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("Open() error = nil, want error")
	}
}

func TestAppendEventsAssignsSequence(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stored, err := s.AppendEvents(ctx, []event.Event{
		testEvent("qso-1", event.TypeQsoCreated, `{"name":"Field Day"}`),
		testEvent("qso-1", event.TypeQsoParticipantAdded, `{"call_sign":"F4AAA","order":1}`),
	})
	if err != nil {
		t.Fatalf("AppendEvents() error = %v", err)
	}
	if len(stored) != 2 || stored[0].Seq != 1 || stored[1].Seq != 2 {
		t.Fatalf("stored seqs = %v", stored)
	}

	count, err := s.CountEvents(ctx)
	if err != nil {
		t.Fatalf("CountEvents() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("CountEvents() = %d, want 2", count)
	}
}

func TestAppendEventsRejectsInvalidEnvelope(t *testing.T) {
	s := openTestStore(t)
	bad := testEvent("qso-1", "qso.bogus", `{}`)
	if _, err := s.AppendEvents(context.Background(), []event.Event{bad}); err == nil {
		t.Fatal("AppendEvents() error = nil, want error")
	}
}

func TestListEventsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.AppendEvents(ctx, []event.Event{
		testEvent("qso-1", event.TypeQsoCreated, `{"name":"Field Day"}`),
		testEvent("qso-2", event.TypeQsoCreated, `{"name":"DX net"}`),
		testEvent("qso-1", event.TypeQsoFrequencyUpdated, `{"frequency":7.074}`),
	})

	all, err := s.ListEvents(ctx, 0, 0)
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(all) = %d, want 3", len(all))
	}
	got := all[0]
	if got.Seq != 1 || got.AggregateID != "qso-1" || got.Type != event.TypeQsoCreated {
		t.Fatalf("event = %+v", got)
	}
	if !got.Timestamp.Equal(testNow) {
		t.Fatalf("Timestamp = %v, want %v", got.Timestamp, testNow)
	}
	if string(got.Payload) != `{"name":"Field Day"}` {
		t.Fatalf("Payload = %s", got.Payload)
	}

	page, err := s.ListEvents(ctx, 1, 1)
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(page) != 1 || page[0].Seq != 2 {
		t.Fatalf("page = %v, want single event with seq 2", page)
	}
}

func TestListEventsByAggregate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.AppendEvents(ctx, []event.Event{
		testEvent("qso-1", event.TypeQsoCreated, `{}`),
		testEvent("qso-2", event.TypeQsoCreated, `{}`),
		testEvent("qso-1", event.TypeQsoDeleted, `{}`),
	})

	events, err := s.ListEventsByAggregate(ctx, "qso-1")
	if err != nil {
		t.Fatalf("ListEventsByAggregate() error = %v", err)
	}
	if len(events) != 2 || events[0].Seq != 1 || events[1].Seq != 3 {
		t.Fatalf("events = %v", events)
	}
}

func TestQsoRecordRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	record := storage.QsoRecord{
		ID:          "qso-1",
		Name:        "Field Day",
		Description: "annual contest",
		Frequency:   14.285,
		ModeratorID: "mod-1",
		StartTime:   testNow,
		Participants: []storage.ParticipantRecord{
			{CallSign: "F4AAA", Order: 1, Name: "Alice", Country: "France", AddedAt: testNow},
			{CallSign: "F4BBB", Order: 2, AddedAt: testNow},
		},
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
	if err := s.PutQso(ctx, record); err != nil {
		t.Fatalf("PutQso() error = %v", err)
	}

	got, err := s.GetQso(ctx, "qso-1")
	if err != nil {
		t.Fatalf("GetQso() error = %v", err)
	}
	if got.Name != record.Name || got.Frequency != record.Frequency || len(got.Participants) != 2 {
		t.Fatalf("record = %+v", got)
	}
	if got.Participants[0].CallSign != "F4AAA" || got.Participants[0].Country != "France" {
		t.Fatalf("participants = %+v", got.Participants)
	}
	if !got.StartTime.Equal(testNow) || !got.DeletedAt.IsZero() {
		t.Fatalf("times = (%v, %v)", got.StartTime, got.DeletedAt)
	}
}

func TestPutQsoUpserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	record := storage.QsoRecord{ID: "qso-1", Name: "Field Day", ModeratorID: "mod-1", CreatedAt: testNow, UpdatedAt: testNow}
	if err := s.PutQso(ctx, record); err != nil {
		t.Fatalf("PutQso() error = %v", err)
	}

	record.Frequency = 7.074
	record.Deleted = true
	record.DeletedBy = "mod-1"
	record.DeletedAt = testNow
	if err := s.PutQso(ctx, record); err != nil {
		t.Fatalf("second PutQso() error = %v", err)
	}

	got, err := s.GetQso(ctx, "qso-1")
	if err != nil {
		t.Fatalf("GetQso() error = %v", err)
	}
	if !got.Deleted || got.DeletedBy != "mod-1" || got.Frequency != 7.074 {
		t.Fatalf("record = %+v", got)
	}
}

func TestGetQsoNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetQso(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetQso() error = %v, want ErrNotFound", err)
	}
}

func TestSearchQsosByName(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.PutQso(ctx, storage.QsoRecord{ID: "qso-1", Name: "Field Day", ModeratorID: "mod-1", CreatedAt: testNow, UpdatedAt: testNow})
	s.PutQso(ctx, storage.QsoRecord{ID: "qso-2", Name: "field day redux", ModeratorID: "mod-1", Deleted: true, CreatedAt: testNow, UpdatedAt: testNow})
	s.PutQso(ctx, storage.QsoRecord{ID: "qso-3", Name: "DX net", ModeratorID: "mod-1", CreatedAt: testNow, UpdatedAt: testNow})

	got, err := s.SearchQsosByName(ctx, "field")
	if err != nil {
		t.Fatalf("SearchQsosByName() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "qso-1" {
		t.Fatalf("results = %v, want only qso-1", got)
	}
}

func TestListQsosByModerator(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.PutQso(ctx, storage.QsoRecord{ID: "qso-1", Name: "a", ModeratorID: "mod-1", CreatedAt: testNow, UpdatedAt: testNow})
	s.PutQso(ctx, storage.QsoRecord{ID: "qso-2", Name: "b", ModeratorID: "mod-2", CreatedAt: testNow, UpdatedAt: testNow})

	got, err := s.ListQsosByModerator(ctx, "mod-2")
	if err != nil {
		t.Fatalf("ListQsosByModerator() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "qso-2" {
		t.Fatalf("results = %v, want only qso-2", got)
	}
}

func TestResetQsosDropsOnlyReadModel(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.AppendEvents(ctx, []event.Event{testEvent("qso-1", event.TypeQsoCreated, `{}`)})
	s.PutQso(ctx, storage.QsoRecord{ID: "qso-1", Name: "a", ModeratorID: "mod-1", CreatedAt: testNow, UpdatedAt: testNow})

	if err := s.ResetQsos(ctx); err != nil {
		t.Fatalf("ResetQsos() error = %v", err)
	}

	if _, err := s.GetQso(ctx, "qso-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetQso() after reset error = %v, want ErrNotFound", err)
	}
	count, err := s.CountEvents(ctx)
	if err != nil {
		t.Fatalf("CountEvents() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("CountEvents() = %d, want 1", count)
	}

	// Reset leaves a usable empty table behind.
	if err := s.PutQso(ctx, storage.QsoRecord{ID: "qso-1", Name: "a", ModeratorID: "mod-1", CreatedAt: testNow, UpdatedAt: testNow}); err != nil {
		t.Fatalf("PutQso() after reset error = %v", err)
	}
}

func TestReopenPreservesJournal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qsonet.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	s.AppendEvents(ctx, []event.Event{testEvent("qso-1", event.TypeQsoCreated, `{}`)})
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	count, err := reopened.CountEvents(ctx)
	if err != nil {
		t.Fatalf("CountEvents() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("CountEvents() = %d, want 1", count)
	}
}
