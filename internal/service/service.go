// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the store layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"eventreg/internal/metrics"
	"eventreg/internal/model"
	"eventreg/internal/store"
)

// ErrInvariantViolation signals that a read observed more registrations
// than capacity. It must never occur given correct isolation; if it does,
// it indicates a serialization bug and is surfaced loudly as an internal
// error rather than silently corrected.
var ErrInvariantViolation = errors.New("registration count exceeds event capacity")

// EventService orchestrates users, events and the registration engine.
type EventService struct {
	users         store.UserStore
	events        store.EventStore
	registrations store.RegistrationStore
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

// New constructs an EventService. metrics may be nil.
func New(
	users store.UserStore,
	events store.EventStore,
	registrations store.RegistrationStore,
	m *metrics.Metrics,
	logger *slog.Logger,
) *EventService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventService{
		users:         users,
		events:        events,
		registrations: registrations,
		metrics:       m,
		logger:        logger,
	}
}

// CreateUser validates the request and delegates to the store.
func (s *EventService) CreateUser(ctx context.Context, req model.CreateUserRequest) (*model.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || len(req.Name) > 255 {
		return nil, fmt.Errorf("name must be between 1 and 255 characters")
	}
	if !isValidEmail(req.Email) {
		return nil, fmt.Errorf("email must be a valid email address")
	}
	return s.users.CreateUser(ctx, req.Name, req.Email)
}

// GetUser returns a single user by ID.
func (s *EventService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.users.GetUser(ctx, id)
}

// ListUsers returns all users, newest first.
func (s *EventService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.users.ListUsers(ctx)
}

// CreateEvent validates the request and delegates to the store.
// Capacity bounds mirror the schema CHECK; the date must be in the future
// because past events never accept registrations.
func (s *EventService) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Location = strings.TrimSpace(req.Location)
	if req.Title == "" || len(req.Title) > 255 {
		return nil, fmt.Errorf("title must be between 1 and 255 characters")
	}
	if req.Location == "" || len(req.Location) > 255 {
		return nil, fmt.Errorf("location must be between 1 and 255 characters")
	}
	if req.Capacity < 1 || req.Capacity > 1000 {
		return nil, fmt.Errorf("capacity must be between 1 and 1000")
	}
	if !req.DateTime.After(time.Now()) {
		return nil, fmt.Errorf("event date must be in the future")
	}
	return s.events.CreateEvent(ctx, req)
}

// GetEventDetails returns an event with its registered users.
func (s *EventService) GetEventDetails(ctx context.Context, id int64) (*model.EventDetails, error) {
	return s.events.GetEventDetails(ctx, id)
}

// ListUpcoming returns all future events with registration counts,
// ordered by start time ascending, ties broken by location.
func (s *EventService) ListUpcoming(ctx context.Context) ([]model.EventSummary, error) {
	return retryRead(ctx, s.events.ListUpcoming)
}

// Register registers a user for an event. The user existence check is a
// boundary concern handled here; the event's existence, timing and
// capacity are decided atomically inside the store transaction.
func (s *EventService) Register(ctx context.Context, eventID, userID int64) (*model.Registration, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			s.metrics.RecordRegistration(metrics.OutcomeUserNotFound)
		}
		return nil, err
	}

	start := time.Now()
	reg, err := s.registrations.Register(ctx, eventID, userID)
	s.metrics.ObserveRegisterDuration(time.Since(start).Seconds())
	s.metrics.RecordRegistration(registerOutcome(err))
	if err != nil {
		return nil, err
	}

	s.logger.Info("registration confirmed",
		"event_id", eventID, "user_id", userID, "registration_id", reg.ID)
	return reg, nil
}

// Cancel removes a user's registration for an event. Cancelling a
// registration that does not exist reports store.ErrRegistrationNotFound,
// which is a legitimate outcome, not a failure.
func (s *EventService) Cancel(ctx context.Context, eventID, userID int64) (*model.Registration, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	reg, err := s.registrations.Cancel(ctx, eventID, userID)
	s.metrics.RecordCancellation(cancelOutcome(err))
	if err != nil {
		return nil, err
	}

	s.logger.Info("registration cancelled",
		"event_id", eventID, "user_id", userID, "registration_id", reg.ID)
	return reg, nil
}

// Stats returns capacity utilization for an event. A negative remaining
// capacity would mean the store committed more registrations than the
// capacity allows; that is treated as fatal, never reported to clients.
func (s *EventService) Stats(ctx context.Context, eventID int64) (*model.EventStats, error) {
	stats, err := retryRead(ctx, func(ctx context.Context) (*model.EventStats, error) {
		return s.events.EventStats(ctx, eventID)
	})
	if err != nil {
		return nil, err
	}
	if stats.RemainingCapacity < 0 || stats.TotalRegistrations > stats.Capacity {
		s.logger.Error("capacity invariant violated",
			"event_id", eventID,
			"capacity", stats.Capacity,
			"total_registrations", stats.TotalRegistrations)
		return nil, fmt.Errorf("event %d: %w", eventID, ErrInvariantViolation)
	}
	return stats, nil
}

// readRetries bounds automatic retries for idempotent reads. Writes are
// never retried here: a retry after an ambiguous commit could violate
// uniqueness, so their ambiguity is surfaced to the caller instead.
const readRetries = 2

func retryRead[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var (
		out T
		err error
	)
	for attempt := 0; ; attempt++ {
		out, err = fn(ctx)
		if err == nil || !errors.Is(err, store.ErrUnavailable) || attempt == readRetries {
			return out, err
		}
		select {
		case <-ctx.Done():
			return out, err
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func registerOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeConfirmed
	case errors.Is(err, store.ErrEventFull):
		return metrics.OutcomeEventFull
	case errors.Is(err, store.ErrAlreadyRegistered):
		return metrics.OutcomeAlreadyRegistered
	case errors.Is(err, store.ErrEventUnavailable):
		return metrics.OutcomeEventUnavailable
	default:
		return metrics.OutcomeError
	}
}

func cancelOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeCancelled
	case errors.Is(err, store.ErrRegistrationNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}

// isValidEmail does a basic structural check.
func isValidEmail(email string) bool {
	if email == "" || len(email) > 255 {
		return false
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	return len(parts[0]) > 0 && strings.Contains(parts[1], ".")
}
