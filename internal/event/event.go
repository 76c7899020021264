// Package event carries identity-lifecycle notifications between services.
// Events are published by the auth service on each state transition and
// consumed at-least-once by downstream services; consumers must tolerate
// duplicates.
package event

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Kind enumerates identity lifecycle transitions.
type Kind string

const (
	KindRegistered     Kind = "registered"
	KindLoggedIn       Kind = "loggedIn"
	KindLoggedOut      Kind = "loggedOut"
	KindTokenRefreshed Kind = "tokenRefreshed"
)

// Topic names, one per kind.
const (
	TopicRegistered     = "user.registered"
	TopicLoggedIn       = "user.loggedIn"
	TopicLoggedOut      = "user.loggedOut"
	TopicTokenRefreshed = "token.refreshed"
)

// Topics lists every identity event topic a downstream consumer subscribes to.
func Topics() []string {
	return []string{TopicRegistered, TopicLoggedIn, TopicLoggedOut, TopicTokenRefreshed}
}

var ErrDeserialization = errors.New("event: payload deserialization failed")

// Identity is an immutable identity-lifecycle notification.
type Identity struct {
	Kind      Kind      `json:"kind"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName,omitempty"`
	Role      string    `json:"role,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Topic returns the stream the event is published to.
func (e Identity) Topic() string {
	switch e.Kind {
	case KindRegistered:
		return TopicRegistered
	case KindLoggedIn:
		return TopicLoggedIn
	case KindLoggedOut:
		return TopicLoggedOut
	case KindTokenRefreshed:
		return TopicTokenRefreshed
	default:
		return ""
	}
}

// Registered builds a user.registered event.
func Registered(userID, email, fullName, role string, at time.Time) Identity {
	return Identity{Kind: KindRegistered, UserID: userID, Email: email, FullName: fullName, Role: role, Timestamp: at.UTC()}
}

// LoggedIn builds a user.loggedIn event.
func LoggedIn(userID, email string, at time.Time) Identity {
	return Identity{Kind: KindLoggedIn, UserID: userID, Email: email, Timestamp: at.UTC()}
}

// LoggedOut builds a user.loggedOut event.
func LoggedOut(userID, email string, at time.Time) Identity {
	return Identity{Kind: KindLoggedOut, UserID: userID, Email: email, Timestamp: at.UTC()}
}

// TokenRefreshed builds a token.refreshed event.
func TokenRefreshed(userID, email string, at time.Time) Identity {
	return Identity{Kind: KindTokenRefreshed, UserID: userID, Email: email, Timestamp: at.UTC()}
}

// Encode serializes the event payload.
func (e Identity) Encode() ([]byte, error) {
	if e.Topic() == "" {
		return nil, errors.New("event: unknown kind")
	}
	return json.Marshal(e)
}

// Decode parses an event payload. Failures map to ErrDeserialization so the
// consumer can apply its redelivery policy without inspecting the cause.
func Decode(payload []byte) (Identity, error) {
	var evt Identity
	if err := json.Unmarshal(payload, &evt); err != nil {
		return Identity{}, ErrDeserialization
	}
	if strings.TrimSpace(evt.UserID) == "" {
		return Identity{}, ErrDeserialization
	}
	return evt, nil
}
