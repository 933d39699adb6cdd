// Package moderator implements the moderator aggregate: the operator
// who owns sessions and may enrich participants through the directory
// service.
package moderator

import (
	"fmt"
	"strings"
	"time"

	"github.com/vk2dls/qsonet/internal/domain/aggregate"
	"github.com/vk2dls/qsonet/internal/domain/event"
	"github.com/vk2dls/qsonet/internal/domain/validation"
)

// Rejection codes.
const (
	CodeEmptyCallSign      = "EMPTY_CALL_SIGN"
	CodeBadEmail           = "BAD_EMAIL"
	CodeUnpairedCredential = "UNPAIRED_CREDENTIAL"
)

// Moderator is an operator profile.
type Moderator struct {
	aggregate.Root

	callSign          string
	email             string
	directoryUsername string
	directorySecret   string
}

// Load rehydrates a moderator from its ordered event history.
func Load(id string, history []event.Event) (*Moderator, error) {
	m := &Moderator{Root: aggregate.NewRoot(id)}
	if err := aggregate.Replay(history, m.apply); err != nil {
		return nil, fmt.Errorf("load moderator %s: %w", id, err)
	}
	return m, nil
}

func (m *Moderator) CallSign() string { return m.callSign }

func (m *Moderator) Email() string { return m.email }

func (m *Moderator) DirectoryUsername() string { return m.directoryUsername }

func (m *Moderator) DirectorySecret() string { return m.directorySecret }

func validateCallSign(callSign string) validation.Result[string] {
	callSign = strings.ToUpper(strings.TrimSpace(callSign))
	if callSign == "" {
		return validation.Err[string](validation.Error{Code: CodeEmptyCallSign, Message: "call sign is required"})
	}
	return validation.OK(callSign)
}

func validateEmail(email string) validation.Result[string] {
	email = strings.TrimSpace(email)
	if email == "" {
		return validation.OK("")
	}
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return validation.Err[string](validation.Error{Code: CodeBadEmail, Message: "email must contain @ and ."})
	}
	return validation.OK(email)
}

// New validates call sign and optional email together and constructs
// the moderator through a single created event.
func New(id, callSign, email string, now time.Time) validation.Result[*Moderator] {
	checked := validation.Join2(
		validateCallSign(callSign),
		validateEmail(email),
		func(callSign, email string) event.ModeratorCreated {
			return event.ModeratorCreated{CallSign: callSign, Email: email}
		},
	)
	return validation.Bind(checked, func(payload event.ModeratorCreated) validation.Result[*Moderator] {
		m := &Moderator{Root: aggregate.NewRoot(id)}
		if err := m.emit(event.TypeModeratorCreated, payload, now); err != nil {
			return validation.Fail[*Moderator](err)
		}
		return validation.OK(m)
	})
}

// UpdateCallSign sets a new call sign, normalized to uppercase.
func (m *Moderator) UpdateCallSign(callSign string, now time.Time) validation.Result[*Moderator] {
	checked := validateCallSign(callSign)
	if !checked.Valid() {
		return validation.Err[*Moderator](checked.Errors()...)
	}
	payload := event.CallSignUpdated{CallSign: checked.Value()}
	if err := m.emit(event.TypeModeratorCallSignUpdated, payload, now); err != nil {
		return validation.Fail[*Moderator](err)
	}
	return validation.OK(m)
}

// UpdateEmail sets a new contact email.
func (m *Moderator) UpdateEmail(email string, now time.Time) validation.Result[*Moderator] {
	checked := validateEmail(email)
	if !checked.Valid() {
		return validation.Err[*Moderator](checked.Errors()...)
	}
	payload := event.EmailUpdated{Email: checked.Value()}
	if err := m.emit(event.TypeModeratorEmailUpdated, payload, now); err != nil {
		return validation.Fail[*Moderator](err)
	}
	return validation.OK(m)
}

// UpdateCredentials sets the directory-service credential pair.
// Username and secret must be provided together or both left empty,
// which clears the stored pair.
func (m *Moderator) UpdateCredentials(username, secret string, now time.Time) validation.Result[*Moderator] {
	username = strings.TrimSpace(username)
	secret = strings.TrimSpace(secret)
	if (username == "") != (secret == "") {
		return validation.Err[*Moderator](validation.Error{
			Code:    CodeUnpairedCredential,
			Message: "directory username and secret must be provided together",
		})
	}
	payload := event.CredentialsUpdated{Username: username, Secret: secret}
	if err := m.emit(event.TypeModeratorCredentialsUpdated, payload, now); err != nil {
		return validation.Fail[*Moderator](err)
	}
	return validation.OK(m)
}

func (m *Moderator) emit(typ event.Type, payload any, now time.Time) error {
	data, err := event.MarshalPayload(payload)
	if err != nil {
		return err
	}
	evt := event.Event{
		AggregateID:   m.ID(),
		AggregateType: event.AggregateModerator,
		Timestamp:     now.UTC(),
		Type:          typ,
		Payload:       data,
	}
	if err := m.apply(evt); err != nil {
		return err
	}
	m.Record(evt)
	return nil
}

func (m *Moderator) apply(evt event.Event) error {
	switch evt.Type {
	case event.TypeModeratorCreated:
		var p event.ModeratorCreated
		if err := event.UnmarshalPayload(evt.Payload, &p); err != nil {
			return err
		}
		m.callSign = p.CallSign
		m.email = p.Email
		return nil

	case event.TypeModeratorCallSignUpdated:
		var p event.CallSignUpdated
		if err := event.UnmarshalPayload(evt.Payload, &p); err != nil {
			return err
		}
		m.callSign = p.CallSign
		return nil

	case event.TypeModeratorEmailUpdated:
		var p event.EmailUpdated
		if err := event.UnmarshalPayload(evt.Payload, &p); err != nil {
			return err
		}
		m.email = p.Email
		return nil

	case event.TypeModeratorCredentialsUpdated:
		var p event.CredentialsUpdated
		if err := event.UnmarshalPayload(evt.Payload, &p); err != nil {
			return err
		}
		m.directoryUsername = p.Username
		m.directorySecret = p.Secret
		return nil

	default:
		return fmt.Errorf("moderator aggregate cannot apply event type %q", string(evt.Type))
	}
}
