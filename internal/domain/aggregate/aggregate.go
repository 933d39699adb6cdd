// Package aggregate holds the base type shared by event-sourced
// entities: identity plus the log of events produced since the last
// load or save.
package aggregate

import (
	"fmt"

	"github.com/vk2dls/qsonet/internal/domain/event"
)

// Root is embedded by concrete aggregates. State changes flow through
// exactly one path: build an event, apply it, record it.
type Root struct {
	id      string
	pending []event.Event
}

// NewRoot initializes the base with a stable identity.
func NewRoot(id string) Root {
	return Root{id: id}
}

// ID returns the aggregate identity.
func (r *Root) ID() string {
	return r.id
}

// Record appends an applied event to the uncommitted log.
func (r *Root) Record(evt event.Event) {
	r.pending = append(r.pending, evt)
}

// UncommittedChanges drains and returns the events produced since the
// last load or drain. The caller owns persistence and publishing.
func (r *Root) UncommittedChanges() []event.Event {
	changes := r.pending
	r.pending = nil
	return changes
}

// Replay folds history through apply in order. Rehydration uses the
// same per-type handler as live mutation, so any event the aggregate
// does not recognize fails the whole replay.
func Replay(history []event.Event, apply func(event.Event) error) error {
	for i, evt := range history {
		if err := apply(evt); err != nil {
			return fmt.Errorf("replay event %d (%s): %w", i, evt.Type, err)
		}
	}
	return nil
}
