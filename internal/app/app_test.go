package app

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/vk2dls/qsonet/internal/reprojection"
	"github.com/vk2dls/qsonet/internal/storage/memory"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

// Drives the full write path end to end, then proves a reprojection
// reproduces exactly the row that incremental dispatch built.
func TestIncrementalAndReplayedProjectionsMatch(t *testing.T) {
	store := memory.New()
	a := New(store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	modID := a.Moderators.CreateModerator(ctx, "VK2DLS", "ops@example.org")
	if !modID.Valid() {
		t.Fatalf("CreateModerator() failed: %v", modID.Err())
	}

	start := time.Date(2026, 6, 15, 18, 0, 0, 0, time.UTC)
	created := a.Qsos.CreateQso(ctx, "Field Day", "annual contest", 14.285, modID.Value(), start)
	if !created.Valid() {
		t.Fatalf("CreateQso() failed: %v", created.Err())
	}
	qsoID := created.Value()

	for _, callSign := range []string{"A1AAA", "B1BBB", "C1CCC"} {
		if r := a.Qsos.AddParticipant(ctx, qsoID, callSign, "", ""); !r.Valid() {
			t.Fatalf("AddParticipant(%s) failed: %v", callSign, r.Err())
		}
	}
	if r := a.Qsos.MoveParticipant(ctx, qsoID, "C1CCC", 1); !r.Valid() {
		t.Fatalf("MoveParticipant() failed: %v", r.Err())
	}
	if r := a.Qsos.RemoveParticipant(ctx, qsoID, "A1AAA"); !r.Valid() {
		t.Fatalf("RemoveParticipant() failed: %v", r.Err())
	}
	if r := a.Qsos.UpdateFrequency(ctx, qsoID, 7.074); !r.Valid() {
		t.Fatalf("UpdateFrequency() failed: %v", r.Err())
	}

	// Wait for the pipeline to drain and the last change to land.
	waitFor(t, func() bool {
		if a.Queue.Len() != 0 {
			return false
		}
		record, err := store.GetQso(context.Background(), qsoID)
		return err == nil && record.Frequency == 7.074 && len(record.Participants) == 2
	})

	incremental, err := store.GetQso(ctx, qsoID)
	if err != nil {
		t.Fatalf("GetQso() error = %v", err)
	}
	if incremental.Participants[0].CallSign != "C1CCC" || incremental.Participants[0].Order != 1 {
		t.Fatalf("participants = %+v, want C1CCC first", incremental.Participants)
	}

	runID, err := a.Reprojection.Start(ctx)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	var run reprojection.Run
	waitFor(t, func() bool {
		run, err = a.Reprojection.GetStatus(runID)
		if err != nil {
			t.Fatalf("GetStatus() error = %v", err)
		}
		return run.Status == reprojection.StatusCompleted || run.Status == reprojection.StatusFailed
	})
	if run.Status != reprojection.StatusCompleted {
		t.Fatalf("run = %+v, want completed", run)
	}

	replayed, err := store.GetQso(ctx, qsoID)
	if err != nil {
		t.Fatalf("GetQso() after replay error = %v", err)
	}
	if !reflect.DeepEqual(incremental, replayed) {
		t.Fatalf("replayed row differs:\nincremental: %+v\nreplayed:    %+v", incremental, replayed)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestDeletedSessionStaysQueryableByID(t *testing.T) {
	store := memory.New()
	a := New(store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = a.Run(ctx) }()

	start := time.Date(2026, 6, 15, 18, 0, 0, 0, time.UTC)
	created := a.Qsos.CreateQso(ctx, "Field Day", "", 14.285, "mod-1", start)
	if !created.Valid() {
		t.Fatalf("CreateQso() failed: %v", created.Err())
	}
	qsoID := created.Value()

	if r := a.Qsos.DeleteQso(ctx, qsoID, "mod-1"); !r.Valid() {
		t.Fatalf("DeleteQso() failed: %v", r.Err())
	}

	waitFor(t, func() bool {
		record, err := store.GetQso(context.Background(), qsoID)
		return err == nil && record.Deleted
	})

	record, err := store.GetQso(ctx, qsoID)
	if err != nil {
		t.Fatalf("GetQso() error = %v", err)
	}
	if !record.Deleted || record.DeletedBy != "mod-1" {
		t.Fatalf("record = %+v", record)
	}

	search := a.Qsos.SearchQsosByName(ctx, "Field")
	if !search.Valid() || len(search.Value()) != 0 {
		t.Fatalf("deleted session visible in search: %+v", search.Value())
	}
}
