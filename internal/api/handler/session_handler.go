package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bookwise/session-client/internal/core/domain"
	"github.com/bookwise/session-client/internal/core/ports"
)

type SessionHandler struct {
	sessions ports.SessionService
}

func NewSessionHandler(sessions ports.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// sessionResponse is the public view of the session state.
type sessionResponse struct {
	Phase         domain.Phase         `json:"phase"`
	Authenticated bool                 `json:"authenticated"`
	Loading       bool                 `json:"loading"`
	Initialized   bool                 `json:"initialized"`
	Notice        string               `json:"notice,omitempty"`
	Session       *domain.Session      `json:"session,omitempty"`
	ProfileStatus domain.ProfileStatus `json:"profile_status,omitempty"`
	DisplayName   string               `json:"display_name,omitempty"`
}

func toSessionResponse(st domain.State) sessionResponse {
	resp := sessionResponse{
		Phase:         st.Phase,
		Authenticated: st.Authenticated(),
		Loading:       st.Loading,
		Initialized:   st.Initialized,
		Notice:        st.Notice,
		Session:       st.Session,
		ProfileStatus: st.ProfileStatus,
	}
	if st.Profile != nil {
		resp.DisplayName = st.Profile.DisplayName
	}
	return resp
}

// State returns the current session state.
//
// @Summary      Current session
// @Tags         session
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Router       /session [get]
func (h *SessionHandler) State(c echo.Context) error {
	return c.JSON(http.StatusOK, toSessionResponse(h.sessions.State()))
}

// Login authenticates against the primary backend.
//
// @Summary      Login
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  sessionResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /session/login [post]
func (h *SessionHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	creds := domain.Credentials{Email: req.Email, Password: req.Password}
	if _, err := h.sessions.Login(c.Request().Context(), creds); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSessionResponse(h.sessions.State()))
}

// Logout ends the session. Repeated calls succeed.
//
// @Summary      Logout
// @Tags         session
// @Success      204
// @Router       /session/logout [post]
func (h *SessionHandler) Logout(c echo.Context) error {
	if err := h.sessions.Logout(c.Request().Context()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// RefreshProfile reloads the profile of the current user.
//
// @Summary      Refresh profile
// @Tags         session
// @Produce      json
// @Success      200  {object}  domain.Profile
// @Failure      401  {object}  map[string]string
// @Router       /session/profile/refresh [post]
func (h *SessionHandler) RefreshProfile(c echo.Context) error {
	p, err := h.sessions.RefreshProfile(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// RefreshCredential renews the active credential.
//
// @Summary      Refresh credential
// @Tags         session
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Failure      401  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /session/credential/refresh [post]
func (h *SessionHandler) RefreshCredential(c echo.Context) error {
	if err := h.sessions.RefreshCredential(c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSessionResponse(h.sessions.State()))
}

// AdminState dumps the full state snapshot, profile included.
//
// @Summary      Full session state
// @Tags         admin
// @Produce      json
// @Success      200  {object}  domain.State
// @Failure      403  {object}  map[string]string
// @Router       /admin/state [get]
func (h *SessionHandler) AdminState(c echo.Context) error {
	sess, err := ctxSession(c)
	if err != nil {
		return err
	}
	c.Response().Header().Set("X-Session-Subject", sess.SubjectID)
	return c.JSON(http.StatusOK, h.sessions.State())
}
