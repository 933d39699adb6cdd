package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// QsoCreated records the initial session state.
type QsoCreated struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Frequency   float64   `json:"frequency"`
	ModeratorID string    `json:"moderator_id"`
	StartTime   time.Time `json:"start_time"`
}

// ParticipantAdded records one participant joining a session.
type ParticipantAdded struct {
	CallSign string    `json:"call_sign"`
	Order    int       `json:"order"`
	Name     string    `json:"name,omitempty"`
	Country  string    `json:"country,omitempty"`
	AddedAt  time.Time `json:"added_at"`
}

// ParticipantRemoved records one participant leaving a session.
type ParticipantRemoved struct {
	CallSign string `json:"call_sign"`
	Order    int    `json:"order"`
}

// ParticipantsReordered records a call-sign to position remap. Only
// the listed call signs change position.
type ParticipantsReordered struct {
	Orders map[string]int `json:"orders"`
}

// ParticipantUpdated records display-info changes for one participant.
type ParticipantUpdated struct {
	CallSign string `json:"call_sign"`
	Name     string `json:"name"`
	Country  string `json:"country"`
}

// FrequencyUpdated records a session frequency change.
type FrequencyUpdated struct {
	Frequency float64 `json:"frequency"`
}

// StartTimeUpdated records a session start-time change.
type StartTimeUpdated struct {
	StartTime time.Time `json:"start_time"`
}

// QsoDeleted records a soft delete of a session.
type QsoDeleted struct {
	DeletedBy string    `json:"deleted_by"`
	DeletedAt time.Time `json:"deleted_at"`
}

// ModeratorCreated records the initial moderator state.
type ModeratorCreated struct {
	CallSign string `json:"call_sign"`
	Email    string `json:"email,omitempty"`
}

// CallSignUpdated records a moderator call-sign change.
type CallSignUpdated struct {
	CallSign string `json:"call_sign"`
}

// EmailUpdated records a moderator email change.
type EmailUpdated struct {
	Email string `json:"email"`
}

// CredentialsUpdated records a paired directory-credential change.
type CredentialsUpdated struct {
	Username string `json:"username"`
	Secret   string `json:"secret"`
}

// MarshalPayload encodes a payload struct for persistence.
func MarshalPayload(payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	return data, nil
}

// UnmarshalPayload decodes a persisted payload into target.
func UnmarshalPayload(data []byte, target any) error {
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshal event payload: %w", err)
	}
	return nil
}
