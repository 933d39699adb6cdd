package qso

import (
	"strings"
	"time"

	"github.com/vk2dls/qsonet/internal/domain/aggregate"
	"github.com/vk2dls/qsonet/internal/domain/event"
	"github.com/vk2dls/qsonet/internal/domain/validation"
)

// Rejection codes.
const (
	CodeEmptyName          = "EMPTY_NAME"
	CodeBadFrequency       = "BAD_FREQUENCY"
	CodeEmptyModeratorID   = "EMPTY_MODERATOR_ID"
	CodeEmptyCallSign      = "EMPTY_CALL_SIGN"
	CodeParticipantExists  = "PARTICIPANT_EXISTS"
	CodeUnknownParticipant = "UNKNOWN_PARTICIPANT"
	CodeBadPosition        = "BAD_POSITION"
	CodeDuplicatePosition  = "DUPLICATE_POSITION"
	CodeDuplicateCallSign  = "DUPLICATE_CALL_SIGN"
	CodeIncompleteRemap    = "INCOMPLETE_REMAP"
	CodeBadStartTime       = "BAD_START_TIME"
	CodeSessionDeleted     = "SESSION_DELETED"
	CodeNotAuthorized      = "NOT_AUTHORIZED"
	CodeAlreadyDeleted     = "ALREADY_DELETED"
)

func validateName(name string) validation.Result[string] {
	name = strings.TrimSpace(name)
	if name == "" {
		return validation.Err[string](validation.Error{Code: CodeEmptyName, Message: "session name is required"})
	}
	return validation.OK(name)
}

func validateFrequency(frequency float64) validation.Result[float64] {
	if frequency <= 0 {
		return validation.Err[float64](validation.Error{Code: CodeBadFrequency, Message: "frequency must be greater than zero"})
	}
	return validation.OK(frequency)
}

func validateModeratorID(moderatorID string) validation.Result[string] {
	moderatorID = strings.TrimSpace(moderatorID)
	if moderatorID == "" {
		return validation.Err[string](validation.Error{Code: CodeEmptyModeratorID, Message: "moderator id is required"})
	}
	return validation.OK(moderatorID)
}

// New validates all creation inputs together, then constructs the
// session through a single created event. Failures report every bad
// field at once and leave no partial state.
func New(id, name, description string, frequency float64, moderatorID string, startTime, now time.Time) validation.Result[*Qso] {
	checked := validation.Join3(
		validateName(name),
		validateFrequency(frequency),
		validateModeratorID(moderatorID),
		func(name string, frequency float64, moderatorID string) event.QsoCreated {
			if startTime.IsZero() {
				startTime = now
			}
			return event.QsoCreated{
				Name:        name,
				Description: strings.TrimSpace(description),
				Frequency:   frequency,
				ModeratorID: moderatorID,
				StartTime:   startTime.UTC(),
			}
		},
	)
	return validation.Bind(checked, func(payload event.QsoCreated) validation.Result[*Qso] {
		q := &Qso{Root: aggregate.NewRoot(id)}
		if err := q.emit(event.TypeQsoCreated, payload, now); err != nil {
			return validation.Fail[*Qso](err)
		}
		return validation.OK(q)
	})
}

func (q *Qso) rejectIfDeleted() *validation.Error {
	if q.deleted {
		return &validation.Error{Code: CodeSessionDeleted, Message: "session is deleted"}
	}
	return nil
}

// AddParticipant appends a participant at the next free order.
// Call signs are unique within a session, compared case-insensitively.
func (q *Qso) AddParticipant(callSign, name, country string, now time.Time) validation.Result[*Qso] {
	if rej := q.rejectIfDeleted(); rej != nil {
		return validation.Err[*Qso](*rej)
	}
	callSign = strings.TrimSpace(callSign)
	if callSign == "" {
		return validation.Err[*Qso](validation.Error{Code: CodeEmptyCallSign, Message: "call sign is required"})
	}
	if _, ok := q.findParticipant(callSign); ok {
		return validation.Err[*Qso](validation.Error{Code: CodeParticipantExists, Message: "participant " + callSign + " already present"})
	}

	maxOrder := 0
	for _, p := range q.participants {
		if p.Order > maxOrder {
			maxOrder = p.Order
		}
	}
	payload := event.ParticipantAdded{
		CallSign: callSign,
		Order:    maxOrder + 1,
		Name:     strings.TrimSpace(name),
		Country:  strings.TrimSpace(country),
		AddedAt:  now.UTC(),
	}
	if err := q.emit(event.TypeQsoParticipantAdded, payload, now); err != nil {
		return validation.Fail[*Qso](err)
	}
	return validation.OK(q)
}

// RemoveParticipant removes by call sign. Remaining participants are
// renumbered so orders stay dense.
func (q *Qso) RemoveParticipant(callSign string, now time.Time) validation.Result[*Qso] {
	if rej := q.rejectIfDeleted(); rej != nil {
		return validation.Err[*Qso](*rej)
	}
	idx, ok := q.findParticipant(callSign)
	if !ok {
		return validation.Err[*Qso](validation.Error{Code: CodeUnknownParticipant, Message: "participant " + callSign + " not present"})
	}
	payload := event.ParticipantRemoved{
		CallSign: q.participants[idx].CallSign,
		Order:    q.participants[idx].Order,
	}
	if err := q.emit(event.TypeQsoParticipantRemoved, payload, now); err != nil {
		return validation.Fail[*Qso](err)
	}
	return validation.OK(q)
}

// ReorderParticipants applies an explicit complete remap of call sign
// to position. Every current participant must be mapped, every mapped
// call sign must exist, and positions must form a permutation of 1..N.
func (q *Qso) ReorderParticipants(orders map[string]int, now time.Time) validation.Result[*Qso] {
	if rej := q.rejectIfDeleted(); rej != nil {
		return validation.Err[*Qso](*rej)
	}

	// Every guard works on the stored call sign, so two map keys that
	// alias the same participant under different casings cannot slip
	// past the duplicate and completeness checks.
	var errs []validation.Error
	normalized := make(map[string]int, len(orders))
	seenPosition := make(map[int]bool, len(orders))
	for callSign, order := range orders {
		idx, ok := q.findParticipant(callSign)
		if !ok {
			errs = append(errs, validation.Error{Code: CodeUnknownParticipant, Message: "participant " + callSign + " not present"})
			continue
		}
		canonical := q.participants[idx].CallSign
		if _, dup := normalized[canonical]; dup {
			errs = append(errs, validation.Error{Code: CodeDuplicateCallSign, Message: "participant " + canonical + " mapped twice"})
			continue
		}
		if order < 1 || order > len(q.participants) {
			errs = append(errs, validation.Error{Code: CodeBadPosition, Message: "position out of range for " + canonical})
			continue
		}
		if seenPosition[order] {
			errs = append(errs, validation.Error{Code: CodeDuplicatePosition, Message: "position assigned twice"})
			continue
		}
		seenPosition[order] = true
		normalized[canonical] = order
	}
	if len(errs) == 0 && len(normalized) != len(q.participants) {
		errs = append(errs, validation.Error{Code: CodeIncompleteRemap, Message: "remap must cover every participant"})
	}
	if len(errs) > 0 {
		return validation.Err[*Qso](errs...)
	}

	payload := event.ParticipantsReordered{Orders: normalized}
	if err := q.emit(event.TypeQsoParticipantsReordered, payload, now); err != nil {
		return validation.Fail[*Qso](err)
	}
	return validation.OK(q)
}

// MoveParticipant moves one participant to a target position, shifting
// the others while preserving their relative order. Moving to the
// current position produces no event.
func (q *Qso) MoveParticipant(callSign string, position int, now time.Time) validation.Result[*Qso] {
	if rej := q.rejectIfDeleted(); rej != nil {
		return validation.Err[*Qso](*rej)
	}
	idx, ok := q.findParticipant(callSign)
	if !ok {
		return validation.Err[*Qso](validation.Error{Code: CodeUnknownParticipant, Message: "participant " + callSign + " not present"})
	}
	if position < 1 || position > len(q.participants) {
		return validation.Err[*Qso](validation.Error{Code: CodeBadPosition, Message: "position out of range"})
	}
	if q.participants[idx].Order == position {
		return validation.OK(q)
	}

	// Take participants in current order, pull the moved one out,
	// reinsert at the target index, renumber 1..N.
	ordered := q.Participants()
	var moved Participant
	rest := make([]Participant, 0, len(ordered)-1)
	for _, p := range ordered {
		if strings.EqualFold(p.CallSign, callSign) {
			moved = p
			continue
		}
		rest = append(rest, p)
	}
	remapped := make([]Participant, 0, len(ordered))
	remapped = append(remapped, rest[:position-1]...)
	remapped = append(remapped, moved)
	remapped = append(remapped, rest[position-1:]...)

	orders := make(map[string]int, len(remapped))
	for i, p := range remapped {
		orders[p.CallSign] = i + 1
	}
	payload := event.ParticipantsReordered{Orders: orders}
	if err := q.emit(event.TypeQsoParticipantsReordered, payload, now); err != nil {
		return validation.Fail[*Qso](err)
	}
	return validation.OK(q)
}

// UpdateParticipantInfo sets the display name and country for the
// participant with the given call sign.
func (q *Qso) UpdateParticipantInfo(callSign, name, country string, now time.Time) validation.Result[*Qso] {
	if rej := q.rejectIfDeleted(); rej != nil {
		return validation.Err[*Qso](*rej)
	}
	idx, ok := q.findParticipant(callSign)
	if !ok {
		return validation.Err[*Qso](validation.Error{Code: CodeUnknownParticipant, Message: "participant " + callSign + " not present"})
	}
	payload := event.ParticipantUpdated{
		CallSign: q.participants[idx].CallSign,
		Name:     strings.TrimSpace(name),
		Country:  strings.TrimSpace(country),
	}
	if err := q.emit(event.TypeQsoParticipantUpdated, payload, now); err != nil {
		return validation.Fail[*Qso](err)
	}
	return validation.OK(q)
}

// UpdateFrequency sets a new session frequency.
func (q *Qso) UpdateFrequency(frequency float64, now time.Time) validation.Result[*Qso] {
	if rej := q.rejectIfDeleted(); rej != nil {
		return validation.Err[*Qso](*rej)
	}
	checked := validateFrequency(frequency)
	if !checked.Valid() {
		return validation.Err[*Qso](checked.Errors()...)
	}
	payload := event.FrequencyUpdated{Frequency: checked.Value()}
	if err := q.emit(event.TypeQsoFrequencyUpdated, payload, now); err != nil {
		return validation.Fail[*Qso](err)
	}
	return validation.OK(q)
}

// UpdateStartTime sets a new session start time.
func (q *Qso) UpdateStartTime(startTime, now time.Time) validation.Result[*Qso] {
	if rej := q.rejectIfDeleted(); rej != nil {
		return validation.Err[*Qso](*rej)
	}
	if startTime.IsZero() {
		return validation.Err[*Qso](validation.Error{Code: CodeBadStartTime, Message: "start time is required"})
	}
	payload := event.StartTimeUpdated{StartTime: startTime.UTC()}
	if err := q.emit(event.TypeQsoStartTimeUpdated, payload, now); err != nil {
		return validation.Fail[*Qso](err)
	}
	return validation.OK(q)
}

// Delete soft-deletes the session. Only the recorded moderator may
// delete, and a deleted session cannot be deleted again.
func (q *Qso) Delete(requestedBy string, now time.Time) validation.Result[*Qso] {
	if q.deleted {
		return validation.Err[*Qso](validation.Error{Code: CodeAlreadyDeleted, Message: "session is already deleted"})
	}
	if strings.TrimSpace(requestedBy) == "" || requestedBy != q.moderatorID {
		return validation.Err[*Qso](validation.Error{Code: CodeNotAuthorized, Message: "only the session moderator may delete it"})
	}
	payload := event.QsoDeleted{DeletedBy: requestedBy, DeletedAt: now.UTC()}
	if err := q.emit(event.TypeQsoDeleted, payload, now); err != nil {
		return validation.Fail[*Qso](err)
	}
	return validation.OK(q)
}
