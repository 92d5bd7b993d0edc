package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/bookwise/session-client/internal/core/domain"
)

type stubState struct {
	state domain.State
}

func (s stubState) State() domain.State { return s.state }

func TestRequireSession_Authenticated(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	sess := &domain.Session{SubjectID: "u1", Role: domain.RoleClient}
	st := stubState{state: domain.State{
		Phase:   domain.PhaseAuthenticated,
		Session: sess,
		Profile: &domain.Profile{SubjectID: "u1", Role: domain.RoleAdmin},
	}}

	called := false
	handler := RequireSession(st)(func(c echo.Context) error {
		called = true
		if c.Get(ContextSession) != sess {
			t.Fatalf("session not set")
		}
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
}

func TestRequireSession_Anonymous(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	handler := RequireSession(stubState{state: domain.State{Phase: domain.PhaseUnauthenticated}})(func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})

	if err := handler(c); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}
