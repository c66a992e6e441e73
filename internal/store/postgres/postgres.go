// Package postgres implements the store contracts against PostgreSQL
// using pgx. It is the production source of truth: all serialization the
// capacity invariant needs is delegated to row-level locks taken here.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"eventreg/internal/model"
	"eventreg/internal/store"
)

// Store implements store.UserStore, store.EventStore and
// store.RegistrationStore over a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs a Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateUser(ctx context.Context, name, email string) (*model.User, error) {
	u := &model.User{Name: name, Email: email}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (name, email) VALUES ($1, $2)
		 RETURNING id, created_at`,
		name, email,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateEmail
		}
		return nil, wrap("insert user", err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, email, created_at FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, wrap("get user", err)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, email, created_at FROM users ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, wrap("list users", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	e := &model.Event{
		Title:    req.Title,
		DateTime: req.DateTime,
		Location: req.Location,
		Capacity: req.Capacity,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO events (title, date_time, location, capacity)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		req.Title, req.DateTime, req.Location, req.Capacity,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return nil, wrap("insert event", err)
	}
	return e, nil
}

func (s *Store) GetEventDetails(ctx context.Context, id int64) (*model.EventDetails, error) {
	details := &model.EventDetails{Registrations: []model.Attendee{}}
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, date_time, location, capacity, created_at
		 FROM events WHERE id = $1`,
		id,
	).Scan(&details.ID, &details.Title, &details.DateTime, &details.Location, &details.Capacity, &details.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrEventNotFound
		}
		return nil, wrap("get event", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT u.id, u.name, u.email, er.registered_at
		 FROM users u
		 JOIN event_registrations er ON u.id = er.user_id
		 WHERE er.event_id = $1
		 ORDER BY er.registered_at, u.id`,
		id,
	)
	if err != nil {
		return nil, wrap("list event registrations", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a model.Attendee
		if err := rows.Scan(&a.UserID, &a.Name, &a.Email, &a.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		details.Registrations = append(details.Registrations, a)
	}
	return details, rows.Err()
}

// ListUpcoming returns future events with their registration counts in a
// single grouped query, ordered by start time then location.
func (s *Store) ListUpcoming(ctx context.Context) ([]model.EventSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT e.id, e.title, e.date_time, e.location, e.capacity, e.created_at,
		        COUNT(er.user_id) AS registration_count
		 FROM events e
		 LEFT JOIN event_registrations er ON e.id = er.event_id
		 WHERE e.date_time > now()
		 GROUP BY e.id
		 ORDER BY e.date_time ASC, e.location ASC`,
	)
	if err != nil {
		return nil, wrap("list upcoming events", err)
	}
	defer rows.Close()

	summaries := make([]model.EventSummary, 0)
	for rows.Next() {
		var es model.EventSummary
		if err := rows.Scan(&es.ID, &es.Title, &es.DateTime, &es.Location, &es.Capacity, &es.CreatedAt, &es.RegistrationCount); err != nil {
			return nil, fmt.Errorf("scan event summary: %w", err)
		}
		summaries = append(summaries, es)
	}
	return summaries, rows.Err()
}

// EventStats computes capacity utilization in one consistent read so the
// result always agrees with the last committed registration.
func (s *Store) EventStats(ctx context.Context, id int64) (*model.EventStats, error) {
	stats := &model.EventStats{EventID: id}
	err := s.pool.QueryRow(ctx,
		`SELECT e.capacity,
		        COUNT(er.user_id) AS total_registrations,
		        e.capacity - COUNT(er.user_id) AS remaining_capacity,
		        ROUND(COUNT(er.user_id)::DECIMAL / e.capacity * 100, 2) AS percentage_used
		 FROM events e
		 LEFT JOIN event_registrations er ON e.id = er.event_id
		 WHERE e.id = $1
		 GROUP BY e.id, e.capacity`,
		id,
	).Scan(&stats.Capacity, &stats.TotalRegistrations, &stats.RemainingCapacity, &stats.PercentageUsed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrEventNotFound
		}
		return nil, wrap("event stats", err)
	}
	return stats, nil
}

// Register performs the capacity-constrained registration inside a single
// transaction.
//
// The first SELECT takes a FOR UPDATE lock on the event row, constrained
// to future events. The lock serializes concurrent registrations for the
// same event for the rest of the transaction, so the duplicate check, the
// live COUNT(*) against capacity and the insert are effectively atomic:
// two callers can never both observe the last free seat. Registrations
// for different events lock different rows and proceed in parallel.
//
// Capacity is never materialized as a counter; it is derived by counting
// live registration rows at decision time, inside the same transaction.
func (s *Store) Register(ctx context.Context, eventID, userID int64) (*model.Registration, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, wrap("begin transaction", err)
	}
	defer func() {
		// No-op after a successful commit.
		_ = tx.Rollback(ctx)
	}()

	var capacity int
	err = tx.QueryRow(ctx,
		`SELECT capacity FROM events
		 WHERE id = $1 AND date_time > now()
		 FOR UPDATE`,
		eventID,
	).Scan(&capacity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrEventUnavailable
		}
		return nil, wrap("lock event row", err)
	}

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM event_registrations WHERE event_id = $1 AND user_id = $2
		 )`,
		eventID, userID,
	).Scan(&exists)
	if err != nil {
		return nil, wrap("check duplicate registration", err)
	}
	if exists {
		return nil, store.ErrAlreadyRegistered
	}

	var count int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM event_registrations WHERE event_id = $1`,
		eventID,
	).Scan(&count)
	if err != nil {
		return nil, wrap("count registrations", err)
	}
	if count >= capacity {
		return nil, store.ErrEventFull
	}

	reg := &model.Registration{EventID: eventID, UserID: userID}
	err = tx.QueryRow(ctx,
		`INSERT INTO event_registrations (event_id, user_id)
		 VALUES ($1, $2)
		 RETURNING id, registered_at`,
		eventID, userID,
	).Scan(&reg.ID, &reg.RegisteredAt)
	if err != nil {
		// Backstop: the UNIQUE(user_id, event_id) constraint cannot fire
		// under the row lock, but map it anyway rather than 500.
		if isUniqueViolation(err) {
			return nil, store.ErrAlreadyRegistered
		}
		return nil, wrap("insert registration", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrap("commit transaction", err)
	}
	return reg, nil
}

// Cancel deletes the unique registration for (event, user) in a single
// statement; row-level atomicity makes a read-then-delete race impossible.
func (s *Store) Cancel(ctx context.Context, eventID, userID int64) (*model.Registration, error) {
	reg := &model.Registration{EventID: eventID, UserID: userID}
	err := s.pool.QueryRow(ctx,
		`DELETE FROM event_registrations
		 WHERE event_id = $1 AND user_id = $2
		 RETURNING id, registered_at`,
		eventID, userID,
	).Scan(&reg.ID, &reg.RegisteredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrRegistrationNotFound
		}
		return nil, wrap("delete registration", err)
	}
	return reg, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// wrap adds the operation name and tags transient faults with
// store.ErrUnavailable so the boundary can answer 503 instead of 500.
// Writes are never retried here: after an ambiguous commit a retry could
// violate uniqueness, so ambiguity is surfaced to the caller.
func wrap(op string, err error) error {
	if isTransient(err) {
		return fmt.Errorf("%s: %w: %w", op, store.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isTransient reports whether err looks like a fault the caller may retry:
// cancelled/timed-out statements, dropped connections, or a serialization
// conflict between concurrent transactions.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03", // lock_not_available
			"57014": // query_canceled (statement_timeout)
			return true
		}
		// Class 08: connection exceptions.
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08" {
			return true
		}
	}
	return false
}
