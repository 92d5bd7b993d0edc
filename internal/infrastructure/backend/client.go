// Package backend holds the HTTP clients for the primary application backend
// and the secondary session provider.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bookwise/session-client/internal/core/domain"
	"github.com/bookwise/session-client/pkg/logger"
)

const (
	defaultRequestTimeout = 10 * time.Second
	maxResponseBytes      = 1 << 20
)

// Client calls the primary backend's auth endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient builds a backend client. A zero timeout uses the default.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.Component(log, "backend"),
	}
}

type verifyResponse struct {
	Valid bool             `json:"valid"`
	Code  string           `json:"code,omitempty"`
	User  *domain.Identity `json:"user,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Verify asks the backend whether token is still accepted.
func (c *Client) Verify(ctx context.Context, token string) (*domain.Identity, error) {
	var out verifyResponse
	if err := c.do(ctx, http.MethodPost, "/auth/verify", token, nil, &out); err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	if !out.Valid {
		code := out.Code
		if code == "" {
			code = domain.CodeTokenInvalid
		}
		return nil, fmt.Errorf("verify: %w", &domain.CodeError{Code: code})
	}
	// A bare {"valid":true} confirms the credential; the caller keeps the
	// identity from its claims.
	if out.User == nil || out.User.SubjectID == "" {
		return nil, nil
	}
	return out.User, nil
}

// Login exchanges credentials for a bearer credential.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.LoginResult, error) {
	var out domain.LoginResult
	err := c.do(ctx, http.MethodPost, "/auth/login", "", creds, &out)
	if errors.Is(err, domain.ErrCredentialRejected) {
		return nil, fmt.Errorf("login: %w", domain.ErrInvalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if !out.Success || out.Token == "" {
		return nil, fmt.Errorf("login: %w", domain.ErrInvalidCredentials)
	}
	return &out, nil
}

// Logout revokes token on the backend.
func (c *Client) Logout(ctx context.Context, token string) error {
	if err := c.do(ctx, http.MethodPost, "/auth/logout", token, nil, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Refresh trades token for a fresh one.
func (c *Client) Refresh(ctx context.Context, token string) (*domain.LoginResult, error) {
	var out domain.LoginResult
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", token, nil, &out); err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if !out.Success || out.Token == "" {
		return nil, fmt.Errorf("refresh: %w", &domain.CodeError{Code: domain.CodeTokenInvalid})
	}
	return &out, nil
}

// do sends a JSON request and decodes a JSON response into out.
// 401/403 map to a CodeError; transport failures and 5xx map to ErrTransport.
func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", domain.ErrTransport, err)
	}

	c.log.Debug().
		Str("request_id", reqID).
		Str("path", path).
		Int("status", resp.StatusCode).
		Msg("backend call")

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return &domain.CodeError{Code: rejectionCode(raw)}
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d", domain.ErrTransport, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func rejectionCode(raw []byte) string {
	var e errorResponse
	if json.Unmarshal(raw, &e) == nil && e.Code != "" {
		return e.Code
	}
	return domain.CodeTokenInvalid
}
