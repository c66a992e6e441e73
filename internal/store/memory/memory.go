// Package memory provides an in-memory store with the same semantics as
// the postgres implementation. It backs deterministic tests; a single
// mutex stands in for the database's row-level locking.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"eventreg/internal/model"
	"eventreg/internal/store"
)

// Store implements store.UserStore, store.EventStore and
// store.RegistrationStore over plain maps.
type Store struct {
	mu sync.Mutex

	users         map[int64]model.User
	emails        map[string]int64
	events        map[int64]model.Event
	registrations map[int64]model.Registration

	nextUserID  int64
	nextEventID int64
	nextRegID   int64

	// now is swappable so tests can pin the clock.
	now func() time.Time
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		users:         make(map[int64]model.User),
		emails:        make(map[string]int64),
		events:        make(map[int64]model.Event),
		registrations: make(map[int64]model.Registration),
		now:           time.Now,
	}
}

// SetClock replaces the store's time source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) CreateUser(_ context.Context, name, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.emails[email]; taken {
		return nil, store.ErrDuplicateEmail
	}
	s.nextUserID++
	u := model.User{
		ID:        s.nextUserID,
		Name:      name,
		Email:     email,
		CreatedAt: s.now().UTC(),
	}
	s.users[u.ID] = u
	s.emails[email] = u.ID
	return &u, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return &u, nil
}

func (s *Store) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	// Newest first, matching the postgres ordering.
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.After(users[j].CreatedAt)
		}
		return users[i].ID > users[j].ID
	})
	return users, nil
}

// CreateEvent stores the event as given. Request validation (future date,
// capacity bounds) lives in the service layer; tests rely on being able
// to seed past events directly.
func (s *Store) CreateEvent(_ context.Context, req model.CreateEventRequest) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextEventID++
	e := model.Event{
		ID:        s.nextEventID,
		Title:     req.Title,
		DateTime:  req.DateTime,
		Location:  req.Location,
		Capacity:  req.Capacity,
		CreatedAt: s.now().UTC(),
	}
	s.events[e.ID] = e
	return &e, nil
}

func (s *Store) GetEventDetails(_ context.Context, id int64) (*model.EventDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return nil, store.ErrEventNotFound
	}

	details := &model.EventDetails{Event: e, Registrations: []model.Attendee{}}
	for _, reg := range s.registrations {
		if reg.EventID != id {
			continue
		}
		u := s.users[reg.UserID]
		details.Registrations = append(details.Registrations, model.Attendee{
			UserID:       u.ID,
			Name:         u.Name,
			Email:        u.Email,
			RegisteredAt: reg.RegisteredAt,
		})
	}
	sort.Slice(details.Registrations, func(i, j int) bool {
		return details.Registrations[i].RegisteredAt.Before(details.Registrations[j].RegisteredAt)
	})
	return details, nil
}

func (s *Store) ListUpcoming(_ context.Context) ([]model.EventSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	summaries := make([]model.EventSummary, 0)
	for _, e := range s.events {
		if !e.DateTime.After(now) {
			continue
		}
		summaries = append(summaries, model.EventSummary{
			Event:             e,
			RegistrationCount: s.countLocked(e.ID),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].DateTime.Equal(summaries[j].DateTime) {
			return summaries[i].DateTime.Before(summaries[j].DateTime)
		}
		return summaries[i].Location < summaries[j].Location
	})
	return summaries, nil
}

func (s *Store) EventStats(_ context.Context, id int64) (*model.EventStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return nil, store.ErrEventNotFound
	}
	total := s.countLocked(id)
	return &model.EventStats{
		EventID:            id,
		Capacity:           e.Capacity,
		TotalRegistrations: total,
		RemainingCapacity:  e.Capacity - total,
		PercentageUsed:     roundPercent(total, e.Capacity),
	}, nil
}

// Register mirrors the postgres transaction: event must exist and lie in
// the future, the user must not already hold a registration, and the live
// registration count must be below capacity. The mutex serializes the
// check-then-insert, which is what the row lock does in postgres.
func (s *Store) Register(_ context.Context, eventID, userID int64) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[eventID]
	if !ok || !e.DateTime.After(s.now()) {
		return nil, store.ErrEventUnavailable
	}
	for _, reg := range s.registrations {
		if reg.EventID == eventID && reg.UserID == userID {
			return nil, store.ErrAlreadyRegistered
		}
	}
	if s.countLocked(eventID) >= e.Capacity {
		return nil, store.ErrEventFull
	}

	s.nextRegID++
	reg := model.Registration{
		ID:           s.nextRegID,
		EventID:      eventID,
		UserID:       userID,
		RegisteredAt: s.now().UTC(),
	}
	s.registrations[reg.ID] = reg
	return &reg, nil
}

func (s *Store) Cancel(_ context.Context, eventID, userID int64) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, reg := range s.registrations {
		if reg.EventID == eventID && reg.UserID == userID {
			delete(s.registrations, id)
			return &reg, nil
		}
	}
	return nil, store.ErrRegistrationNotFound
}

func (s *Store) countLocked(eventID int64) int {
	n := 0
	for _, reg := range s.registrations {
		if reg.EventID == eventID {
			n++
		}
	}
	return n
}

// roundPercent matches the database's ROUND(total/capacity*100, 2).
func roundPercent(total, capacity int) float64 {
	if capacity == 0 {
		return 0
	}
	return math.Round(float64(total)/float64(capacity)*10000) / 100
}
