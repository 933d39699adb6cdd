// Package event defines the persisted event envelope and the closed
// set of event types emitted by the domain aggregates.
package event

import (
	"fmt"
	"strings"
	"time"
)

// AggregateType names the kind of aggregate an event belongs to.
type AggregateType string

const (
	AggregateQso       AggregateType = "qso"
	AggregateModerator AggregateType = "moderator"
)

// Type identifies one event kind, namespaced by aggregate.
type Type string

// Qso event types.
const (
	TypeQsoCreated               Type = "qso.created"
	TypeQsoParticipantAdded      Type = "qso.participant_added"
	TypeQsoParticipantRemoved    Type = "qso.participant_removed"
	TypeQsoParticipantsReordered Type = "qso.participants_reordered"
	TypeQsoParticipantUpdated    Type = "qso.participant_updated"
	TypeQsoFrequencyUpdated      Type = "qso.frequency_updated"
	TypeQsoStartTimeUpdated      Type = "qso.start_time_updated"
	TypeQsoDeleted               Type = "qso.deleted"
)

// Moderator event types.
const (
	TypeModeratorCreated            Type = "moderator.created"
	TypeModeratorCallSignUpdated    Type = "moderator.callsign_updated"
	TypeModeratorEmailUpdated       Type = "moderator.email_updated"
	TypeModeratorCredentialsUpdated Type = "moderator.credentials_updated"
)

var validTypes = map[Type]AggregateType{
	TypeQsoCreated:               AggregateQso,
	TypeQsoParticipantAdded:      AggregateQso,
	TypeQsoParticipantRemoved:    AggregateQso,
	TypeQsoParticipantsReordered: AggregateQso,
	TypeQsoParticipantUpdated:    AggregateQso,
	TypeQsoFrequencyUpdated:      AggregateQso,
	TypeQsoStartTimeUpdated:      AggregateQso,
	TypeQsoDeleted:               AggregateQso,

	TypeModeratorCreated:            AggregateModerator,
	TypeModeratorCallSignUpdated:    AggregateModerator,
	TypeModeratorEmailUpdated:       AggregateModerator,
	TypeModeratorCredentialsUpdated: AggregateModerator,
}

// IsValid reports whether t is a known event type.
func (t Type) IsValid() bool {
	_, ok := validTypes[t]
	return ok
}

// Aggregate returns the aggregate kind this event type belongs to.
func (t Type) Aggregate() (AggregateType, error) {
	agg, ok := validTypes[t]
	if !ok {
		return "", fmt.Errorf("unknown event type %q", string(t))
	}
	return agg, nil
}

// Event is the immutable persisted record of one domain fact. Seq is
// the global commit order assigned by the event store on append; it is
// zero on events not yet persisted.
type Event struct {
	AggregateID   string
	AggregateType AggregateType
	Seq           uint64
	Timestamp     time.Time
	Type          Type
	Payload       []byte
}

// Validate checks the envelope fields required before persistence.
func (e Event) Validate() error {
	if strings.TrimSpace(e.AggregateID) == "" {
		return fmt.Errorf("aggregate id is required")
	}
	if !e.Type.IsValid() {
		return fmt.Errorf("unknown event type %q", string(e.Type))
	}
	agg, err := e.Type.Aggregate()
	if err != nil {
		return err
	}
	if e.AggregateType != agg {
		return fmt.Errorf("event type %q does not belong to aggregate type %q", string(e.Type), string(e.AggregateType))
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	return nil
}
