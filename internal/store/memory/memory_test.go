package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"eventreg/internal/model"
	"eventreg/internal/store"
)

func seedEvent(t *testing.T, s *Store, title string, start time.Time, location string, capacity int) *model.Event {
	t.Helper()
	e, err := s.CreateEvent(context.Background(), model.CreateEventRequest{
		Title:    title,
		DateTime: start,
		Location: location,
		Capacity: capacity,
	})
	require.NoError(t, err)
	return e
}

func seedUser(t *testing.T, s *Store, name, email string) *model.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), name, email)
	require.NoError(t, err)
	return u
}

func TestDuplicateEmail(t *testing.T) {
	s := New()
	seedUser(t, s, "ada", "ada@example.com")

	_, err := s.CreateUser(context.Background(), "other", "ada@example.com")
	require.ErrorIs(t, err, store.ErrDuplicateEmail)
}

func TestListUsersNewestFirst(t *testing.T) {
	s := New()
	now := time.Now()
	s.SetClock(func() time.Time { return now })
	first := seedUser(t, s, "ada", "ada@example.com")
	now = now.Add(time.Second)
	second := seedUser(t, s, "grace", "grace@example.com")

	users, err := s.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, second.ID, users[0].ID)
	require.Equal(t, first.ID, users[1].ID)
}

func TestStatsRounding(t *testing.T) {
	s := New()
	ctx := context.Background()
	e := seedEvent(t, s, "GopherCon", time.Now().Add(time.Hour), "Austin", 3)

	u := seedUser(t, s, "ada", "ada@example.com")
	_, err := s.Register(ctx, e.ID, u.ID)
	require.NoError(t, err)

	stats, err := s.EventStats(ctx, e.ID)
	require.NoError(t, err)
	// 1/3 of capacity, rounded to two decimal places.
	require.InDelta(t, 33.33, stats.PercentageUsed, 0.001)
	require.Equal(t, 2, stats.RemainingCapacity)
}

func TestStatsEmptyEvent(t *testing.T) {
	s := New()
	e := seedEvent(t, s, "GopherCon", time.Now().Add(time.Hour), "Austin", 10)

	stats, err := s.EventStats(context.Background(), e.ID)
	require.NoError(t, err)
	require.Equal(t, 0, stats.TotalRegistrations)
	require.Equal(t, 10, stats.RemainingCapacity)
	require.Equal(t, 0.0, stats.PercentageUsed)
}

func TestEventDetailsOrderedByRegistration(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()
	s.SetClock(func() time.Time { return now })

	e := seedEvent(t, s, "GopherCon", now.Add(time.Hour), "Austin", 10)
	first := seedUser(t, s, "ada", "ada@example.com")
	second := seedUser(t, s, "grace", "grace@example.com")

	_, err := s.Register(ctx, e.ID, second.ID)
	require.NoError(t, err)
	now = now.Add(time.Minute)
	_, err = s.Register(ctx, e.ID, first.ID)
	require.NoError(t, err)

	details, err := s.GetEventDetails(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, details.Registrations, 2)
	require.Equal(t, second.ID, details.Registrations[0].UserID)
	require.Equal(t, first.ID, details.Registrations[1].UserID)
}

func TestUpcomingExcludesStartedEvents(t *testing.T) {
	s := New()
	now := time.Now()
	s.SetClock(func() time.Time { return now })

	seedEvent(t, s, "started", now, "Austin", 10)
	future := seedEvent(t, s, "future", now.Add(time.Minute), "Austin", 10)

	events, err := s.ListUpcoming(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, future.ID, events[0].ID)
}

func TestRegisterAtExactStartTimeRejected(t *testing.T) {
	s := New()
	now := time.Now()
	s.SetClock(func() time.Time { return now })
	e := seedEvent(t, s, "starting", now, "Austin", 10)
	u := seedUser(t, s, "ada", "ada@example.com")

	// Strictly-in-the-future rule: an event starting right now is closed.
	_, err := s.Register(context.Background(), e.ID, u.ID)
	require.ErrorIs(t, err, store.ErrEventUnavailable)
}

func TestCancelReturnsDeletedRegistration(t *testing.T) {
	s := New()
	ctx := context.Background()
	e := seedEvent(t, s, "GopherCon", time.Now().Add(time.Hour), "Austin", 10)
	u := seedUser(t, s, "ada", "ada@example.com")

	reg, err := s.Register(ctx, e.ID, u.ID)
	require.NoError(t, err)

	cancelled, err := s.Cancel(ctx, e.ID, u.ID)
	require.NoError(t, err)
	require.Equal(t, reg.ID, cancelled.ID)
	require.Equal(t, reg.RegisteredAt, cancelled.RegisteredAt)

	_, err = s.Cancel(ctx, e.ID, u.ID)
	require.ErrorIs(t, err, store.ErrRegistrationNotFound)
}
