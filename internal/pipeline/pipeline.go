// Package pipeline decouples the write path from read-model
// maintenance. Command handlers publish committed events onto an
// unbounded FIFO queue; a single background worker drains it and
// forwards each event to the projection dispatcher.
package pipeline

import (
	"context"
	"log"
	"sync"

	"github.com/vk2dls/qsonet/internal/domain/event"
	"github.com/vk2dls/qsonet/internal/projection"
)

// Queue is an unbounded ordered event queue safe for concurrent use.
type Queue struct {
	mu     sync.Mutex
	items  []event.Event
	signal chan struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Publish appends events in order. It never blocks.
func (q *Queue) Publish(events ...event.Event) {
	if len(events) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, events...)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Len reports the number of queued events. The reprojection engine
// uses this as its busy guard.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) pop() (event.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return event.Event{}, false
	}
	evt := q.items[0]
	q.items = q.items[1:]
	return evt, true
}

// Worker is the single pipeline consumer. It runs for the lifetime of
// the process and stops only when its context is cancelled.
type Worker struct {
	queue      *Queue
	dispatcher *projection.Dispatcher
}

// NewWorker builds the pipeline consumer.
func NewWorker(queue *Queue, dispatcher *projection.Dispatcher) *Worker {
	return &Worker{queue: queue, dispatcher: dispatcher}
}

// Run drains the queue until ctx is cancelled. A failed dispatch is
// logged and the event dropped; the read model self-heals only through
// an explicit reprojection.
func (w *Worker) Run(ctx context.Context) error {
	for {
		evt, ok := w.queue.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-w.queue.signal:
			}
			continue
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.dispatcher.Dispatch(ctx, evt); err != nil {
			log.Printf("pipeline: drop event %s for %s: %v", evt.Type, evt.AggregateID, err)
		}
	}
}
