// Package reprojection rebuilds the entire session read model by
// replaying the event journal, in commit order, through the same
// dispatcher that serves the live pipeline.
package reprojection

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vk2dls/qsonet/internal/pipeline"
	"github.com/vk2dls/qsonet/internal/platform/id"
	"github.com/vk2dls/qsonet/internal/projection"
	"github.com/vk2dls/qsonet/internal/storage"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("reprojection run not found")

const errAlreadyRunning = "reprojection already in progress"

// Status of one reprojection run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Run tracks one replay execution. Runs live only in process memory
// and are lost on restart.
type Run struct {
	ID              string
	Status          Status
	TotalEvents     uint64
	ProcessedEvents uint64
	Progress        float64
	Error           string
	StartedAt       time.Time
	CompletedAt     time.Time
}

const defaultPageSize = 256

// Engine starts and tracks reprojection runs.
type Engine struct {
	events     storage.EventStore
	qsos       storage.QsoStore
	dispatcher *projection.Dispatcher
	queue      *pipeline.Queue
	pageSize   int

	mu     sync.Mutex
	runs   map[string]Run
	active bool
}

// NewEngine builds a reprojection engine over the shared stores, the
// live dispatcher, and the pipeline queue it must not race with.
func NewEngine(events storage.EventStore, qsos storage.QsoStore, dispatcher *projection.Dispatcher, queue *pipeline.Queue) *Engine {
	return &Engine{
		events:     events,
		qsos:       qsos,
		dispatcher: dispatcher,
		queue:      queue,
		pageSize:   defaultPageSize,
		runs:       make(map[string]Run),
	}
}

// Start registers a new run and launches the replay in the background,
// returning the run id immediately. At most one replay runs at a time:
// starting a second one while another is active records an immediate
// Failed run instead of racing the first against the shared read model.
func (e *Engine) Start(ctx context.Context) (string, error) {
	runID, err := id.NewID()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	now := time.Now().UTC()

	e.mu.Lock()
	if e.active {
		e.runs[runID] = Run{
			ID:          runID,
			Status:      StatusFailed,
			Error:       errAlreadyRunning,
			StartedAt:   now,
			CompletedAt: now,
		}
		e.mu.Unlock()
		return runID, nil
	}
	e.active = true
	e.runs[runID] = Run{
		ID:        runID,
		Status:    StatusPending,
		StartedAt: now,
	}
	e.mu.Unlock()

	go e.replay(ctx, runID)
	return runID, nil
}

// GetStatus returns one run record.
func (e *Engine) GetStatus(runID string) (Run, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	run, ok := e.runs[runID]
	if !ok {
		return Run{}, ErrRunNotFound
	}
	return run, nil
}

// GetAllStatuses returns every run tracked since process start.
func (e *Engine) GetAllStatuses() []Run {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Run, 0, len(e.runs))
	for _, run := range e.runs {
		out = append(out, run)
	}
	return out
}

func (e *Engine) update(runID string, fn func(*Run)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	run, ok := e.runs[runID]
	if !ok {
		return
	}
	fn(&run)
	e.runs[runID] = run
}

func (e *Engine) fail(runID, message string) {
	log.Printf("reprojection %s failed: %s", runID, message)
	e.update(runID, func(run *Run) {
		run.Status = StatusFailed
		run.Error = message
		run.CompletedAt = time.Now().UTC()
	})
}

func (e *Engine) replay(ctx context.Context, runID string) {
	defer func() {
		e.mu.Lock()
		e.active = false
		e.mu.Unlock()
	}()

	tracer := otel.Tracer("qsonet/reprojection")
	ctx, span := tracer.Start(ctx, "reprojection.replay")
	defer span.End()
	span.SetAttributes(attribute.String("run.id", runID))

	e.update(runID, func(run *Run) { run.Status = StatusInProgress })

	// Replaying while live traffic feeds the same dispatcher would
	// interleave old and new events against a reset store.
	if e.queue.Len() > 0 {
		span.SetStatus(codes.Error, "pipeline busy")
		e.fail(runID, "event pipeline is busy")
		return
	}

	total, err := e.events.CountEvents(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		e.fail(runID, fmt.Sprintf("count events: %v", err))
		return
	}
	e.update(runID, func(run *Run) { run.TotalEvents = total })

	if err := e.qsos.ResetQsos(ctx); err != nil {
		span.SetStatus(codes.Error, err.Error())
		e.fail(runID, fmt.Sprintf("reset read model: %v", err))
		return
	}

	var (
		processed uint64
		afterSeq  uint64
	)
	for {
		page, err := e.events.ListEvents(ctx, afterSeq, e.pageSize)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			e.fail(runID, fmt.Sprintf("list events after %d: %v", afterSeq, err))
			return
		}
		if len(page) == 0 {
			break
		}

		for _, evt := range page {
			if err := ctx.Err(); err != nil {
				span.SetStatus(codes.Error, "cancelled")
				e.fail(runID, fmt.Sprintf("replay cancelled at event %d: %v", evt.Seq, err))
				return
			}
			if err := e.dispatcher.Dispatch(ctx, evt); err != nil {
				span.SetStatus(codes.Error, err.Error())
				e.fail(runID, fmt.Sprintf("dispatch event %d: %v", evt.Seq, err))
				return
			}
			processed++
			afterSeq = evt.Seq
			e.recordProgress(runID, processed, total)
		}
	}

	span.SetAttributes(attribute.Int64("events.processed", int64(processed)))
	e.update(runID, func(run *Run) {
		run.Status = StatusCompleted
		run.ProcessedEvents = processed
		run.Progress = 100
		run.CompletedAt = time.Now().UTC()
	})
}

func (e *Engine) recordProgress(runID string, processed, total uint64) {
	progress := float64(100)
	if total > 0 {
		progress = float64(processed) / float64(total) * 100
	}
	e.update(runID, func(run *Run) {
		run.ProcessedEvents = processed
		run.Progress = progress
	})
}
