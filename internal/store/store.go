// Package store defines the persistence contracts for the registration
// engine and the closed set of rejection outcomes its operations produce.
//
// Services depend on these interfaces rather than a concrete database so
// the capacity rules can be exercised deterministically against the
// in-memory implementation; the postgres implementation is the production
// source of truth.
package store

import (
	"context"
	"errors"

	"eventreg/internal/model"
)

// Rejections are expected, non-exceptional outcomes. Handlers translate
// them to client-facing statuses; they never indicate a store fault.
var (
	// ErrUserNotFound is returned when the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrEventNotFound is returned when the referenced event does not exist.
	ErrEventNotFound = errors.New("event not found")

	// ErrEventUnavailable is returned by Register when the event either
	// does not exist or has already started. The two cases are
	// indistinguishable on purpose: neither accepts registrations.
	ErrEventUnavailable = errors.New("event not found or has already passed")

	// ErrAlreadyRegistered is returned when the user already holds an
	// active registration for the event.
	ErrAlreadyRegistered = errors.New("user is already registered for this event")

	// ErrEventFull is returned when the event has no remaining capacity.
	ErrEventFull = errors.New("event is at full capacity")

	// ErrRegistrationNotFound is returned by Cancel when no active
	// registration matches the (event, user) pair. Cancelling twice is
	// safe; the second call simply reports this.
	ErrRegistrationNotFound = errors.New("registration not found")

	// ErrDuplicateEmail is returned when a user's email is already taken.
	ErrDuplicateEmail = errors.New("email is already in use")
)

// ErrUnavailable wraps transient store faults (connection failures,
// timeouts, serialization conflicts). Distinct from a Rejection: the
// caller may retry the whole call, the store never retries writes itself.
var ErrUnavailable = errors.New("store unavailable")

// UserStore persists users.
type UserStore interface {
	CreateUser(ctx context.Context, name, email string) (*model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
}

// EventStore persists events and serves the read-side projections.
type EventStore interface {
	CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error)
	GetEventDetails(ctx context.Context, id int64) (*model.EventDetails, error)
	ListUpcoming(ctx context.Context) ([]model.EventSummary, error)
	EventStats(ctx context.Context, id int64) (*model.EventStats, error)
}

// RegistrationStore owns the only write paths to the registration
// relation. Register must be atomic: the event re-read, duplicate check,
// capacity count and insert execute as one unit, serialized per event
// with respect to concurrent Register calls for the same event.
type RegistrationStore interface {
	Register(ctx context.Context, eventID, userID int64) (*model.Registration, error)
	Cancel(ctx context.Context, eventID, userID int64) (*model.Registration, error)
}
