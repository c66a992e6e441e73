package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"eventreg/internal/model"
	"eventreg/internal/service"
	"eventreg/internal/store/memory"
)

type HandlerSuite struct {
	suite.Suite
	store  *memory.Store
	router chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.store = memory.New()
	svc := service.New(s.store, s.store, s.store, nil, nil)
	h := New(svc)

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Get("/health", HealthCheck)
	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.CreateUser)
		r.Get("/", h.ListUsers)
		r.Get("/{userID}", h.GetUser)
	})
	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListUpcoming)
		r.Post("/", h.CreateEvent)
		r.Get("/{eventID}", h.GetEvent)
		r.Post("/{eventID}/register", h.Register)
		r.Delete("/{eventID}/register", h.Cancel)
		r.Get("/{eventID}/stats", h.Stats)
	})
	s.router = r
}

func (s *HandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.T(), json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) seedUser(name string) *model.User {
	u, err := s.store.CreateUser(context.Background(), name, name+"@example.com")
	s.Require().NoError(err)
	return u
}

func (s *HandlerSuite) seedEvent(start time.Time, capacity int) *model.Event {
	e, err := s.store.CreateEvent(context.Background(), model.CreateEventRequest{
		Title:    "GopherCon",
		DateTime: start,
		Location: "Austin",
		Capacity: capacity,
	})
	s.Require().NoError(err)
	return e
}

func (s *HandlerSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/health", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.NotEmpty(rec.Header().Get("X-Request-ID"))
}

func (s *HandlerSuite) TestCreateUser() {
	rec := s.do(http.MethodPost, "/users", model.CreateUserRequest{Name: "Ada", Email: "ada@example.com"})
	s.Require().Equal(http.StatusCreated, rec.Code)

	var u model.User
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &u))
	s.Equal("ada@example.com", u.Email)
	s.Positive(u.ID)

	rec = s.do(http.MethodPost, "/users", model.CreateUserRequest{Name: "Ada", Email: "ada@example.com"})
	s.Equal(http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/users", model.CreateUserRequest{Name: "", Email: "x@y.com"})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestGetUser() {
	u := s.seedUser("ada")

	rec := s.do(http.MethodGet, fmt.Sprintf("/users/%d", u.ID), nil)
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/users/999", nil)
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/users/abc", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestRegisterFlow() {
	u := s.seedUser("ada")
	e := s.seedEvent(time.Now().Add(time.Hour), 1)

	rec := s.do(http.MethodPost, fmt.Sprintf("/events/%d/register", e.ID), model.RegistrationRequest{UserID: u.ID})
	s.Require().Equal(http.StatusCreated, rec.Code)

	var reg model.Registration
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &reg))
	s.Equal(e.ID, reg.EventID)
	s.Equal(u.ID, reg.UserID)

	// Duplicate registration.
	rec = s.do(http.MethodPost, fmt.Sprintf("/events/%d/register", e.ID), model.RegistrationRequest{UserID: u.ID})
	s.Equal(http.StatusConflict, rec.Code)

	// Full event.
	other := s.seedUser("grace")
	rec = s.do(http.MethodPost, fmt.Sprintf("/events/%d/register", e.ID), model.RegistrationRequest{UserID: other.ID})
	s.Equal(http.StatusConflict, rec.Code)

	// Unknown event.
	rec = s.do(http.MethodPost, "/events/999/register", model.RegistrationRequest{UserID: u.ID})
	s.Equal(http.StatusNotFound, rec.Code)

	// Unknown user.
	rec = s.do(http.MethodPost, fmt.Sprintf("/events/%d/register", e.ID), model.RegistrationRequest{UserID: 999})
	s.Equal(http.StatusNotFound, rec.Code)

	// Missing user id.
	rec = s.do(http.MethodPost, fmt.Sprintf("/events/%d/register", e.ID), map[string]any{})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestRegisterPastEvent() {
	u := s.seedUser("ada")
	e := s.seedEvent(time.Now().Add(-time.Hour), 10)

	rec := s.do(http.MethodPost, fmt.Sprintf("/events/%d/register", e.ID), model.RegistrationRequest{UserID: u.ID})
	s.Equal(http.StatusNotFound, rec.Code)

	var resp model.ErrorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("event not found or has already passed", resp.Error)
}

func (s *HandlerSuite) TestCancelFlow() {
	u := s.seedUser("ada")
	e := s.seedEvent(time.Now().Add(time.Hour), 1)

	rec := s.do(http.MethodDelete, fmt.Sprintf("/events/%d/register", e.ID), model.RegistrationRequest{UserID: u.ID})
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, fmt.Sprintf("/events/%d/register", e.ID), model.RegistrationRequest{UserID: u.ID})
	s.Require().Equal(http.StatusCreated, rec.Code)

	rec = s.do(http.MethodDelete, fmt.Sprintf("/events/%d/register", e.ID), model.RegistrationRequest{UserID: u.ID})
	s.Require().Equal(http.StatusOK, rec.Code)

	var reg model.Registration
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &reg))
	s.Equal(u.ID, reg.UserID)

	rec = s.do(http.MethodDelete, fmt.Sprintf("/events/%d/register", e.ID), model.RegistrationRequest{UserID: u.ID})
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestStats() {
	u := s.seedUser("ada")
	e := s.seedEvent(time.Now().Add(time.Hour), 2)

	rec := s.do(http.MethodPost, fmt.Sprintf("/events/%d/register", e.ID), model.RegistrationRequest{UserID: u.ID})
	s.Require().Equal(http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, fmt.Sprintf("/events/%d/stats", e.ID), nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var stats model.EventStats
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &stats))
	s.Equal(2, stats.Capacity)
	s.Equal(1, stats.TotalRegistrations)
	s.Equal(1, stats.RemainingCapacity)
	s.InDelta(50.0, stats.PercentageUsed, 0.001)

	rec = s.do(http.MethodGet, "/events/999/stats", nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestListUpcoming() {
	t1 := time.Now().Add(24 * time.Hour)
	s.seedEvent(t1, 5)

	rec := s.do(http.MethodGet, "/events", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var events []model.EventSummary
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &events))
	s.Require().Len(events, 1)
	s.Equal(0, events[0].RegistrationCount)
}

func (s *HandlerSuite) TestGetEventDetails() {
	u := s.seedUser("ada")
	e := s.seedEvent(time.Now().Add(time.Hour), 5)

	rec := s.do(http.MethodPost, fmt.Sprintf("/events/%d/register", e.ID), model.RegistrationRequest{UserID: u.ID})
	s.Require().Equal(http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, fmt.Sprintf("/events/%d", e.ID), nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var details model.EventDetails
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &details))
	s.Equal(e.ID, details.ID)
	s.Require().Len(details.Registrations, 1)
	s.Equal(u.ID, details.Registrations[0].UserID)

	rec = s.do(http.MethodGet, "/events/999", nil)
	s.Equal(http.StatusNotFound, rec.Code)
}
