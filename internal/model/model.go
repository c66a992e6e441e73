// Package model defines the core domain types for the event registration system.
package model

import "time"

// User is a participant who can register for events.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Event is a capacity-bounded event published by an organizer.
// Capacity is fixed for the event's lifetime; there is no resize operation.
type Event struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	DateTime  time.Time `json:"dateTime"`
	Location  string    `json:"location"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"createdAt"`
}

// Registration is the sole unit of "a seat taken". At most one active
// registration exists per (user, event) pair.
type Registration struct {
	ID           int64     `json:"id"`
	EventID      int64     `json:"eventId"`
	UserID       int64     `json:"userId"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// Attendee is a registered user as shown in an event's detail view.
type Attendee struct {
	UserID       int64     `json:"userId"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// EventDetails is an event together with its registered users,
// ordered by registration time.
type EventDetails struct {
	Event
	Registrations []Attendee `json:"registrations"`
}

// EventSummary annotates an event with its current registration count.
type EventSummary struct {
	Event
	RegistrationCount int `json:"registrationCount"`
}

// EventStats reports capacity utilization for a single event. By the
// capacity invariant RemainingCapacity is never negative.
type EventStats struct {
	EventID            int64   `json:"eventId"`
	Capacity           int     `json:"capacity"`
	TotalRegistrations int     `json:"totalRegistrations"`
	RemainingCapacity  int     `json:"remainingCapacity"`
	PercentageUsed     float64 `json:"percentageUsed"`
}

// CreateUserRequest is the payload for creating a new user.
type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title    string    `json:"title"`
	DateTime time.Time `json:"dateTime"`
	Location string    `json:"location"`
	Capacity int       `json:"capacity"`
}

// RegistrationRequest identifies the user registering for (or cancelling
// a registration on) an event.
type RegistrationRequest struct {
	UserID int64 `json:"userId"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
