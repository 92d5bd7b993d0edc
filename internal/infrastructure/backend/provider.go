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
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/bookwise/session-client/internal/core/domain"
	"github.com/bookwise/session-client/internal/core/ports"
	"github.com/bookwise/session-client/pkg/logger"
)

const (
	defaultReconnectDelay = 2 * time.Second
	feedReadLimit         = 64 << 10
)

// ProviderConfig configures the secondary session provider client.
type ProviderConfig struct {
	BaseURL        string
	FeedURL        string
	APIKey         string
	RequestTimeout time.Duration
	ReconnectDelay time.Duration
}

// ProviderClient talks to the secondary session provider. The provider
// session itself is persisted as JSON in its own credential slot.
type ProviderClient struct {
	cfg        ProviderConfig
	store      ports.CredentialStore
	httpClient *http.Client
	now        func() time.Time
	log        zerolog.Logger
}

// NewProviderClient builds a provider client persisting its session in store.
func NewProviderClient(cfg ProviderConfig, store ports.CredentialStore, log zerolog.Logger) *ProviderClient {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &ProviderClient{
		cfg:        cfg,
		store:      store,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		now:        time.Now,
		log:        logger.Component(log, "provider"),
	}
}

// CurrentSession returns the stored provider session, refreshing it first
// when its access token has expired.
func (p *ProviderClient) CurrentSession(ctx context.Context) (*domain.ProviderSession, error) {
	sess, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	if !sess.Expired(p.now()) {
		return sess, nil
	}
	if sess.RefreshToken == "" {
		return nil, domain.ErrNoSession
	}
	return p.Refresh(ctx, sess)
}

// Refresh exchanges the refresh token for a new provider session.
func (p *ProviderClient) Refresh(ctx context.Context, existing *domain.ProviderSession) (*domain.ProviderSession, error) {
	if existing == nil || existing.RefreshToken == "" {
		return nil, domain.ErrNoSession
	}

	var next domain.ProviderSession
	in := map[string]string{"refresh_token": existing.RefreshToken}
	if err := p.post(ctx, "/session/refresh", in, &next); err != nil {
		return nil, fmt.Errorf("provider refresh: %w", err)
	}
	if next.AccessToken == "" || next.User.SubjectID == "" {
		return nil, fmt.Errorf("provider refresh: %w", &domain.CodeError{Code: domain.CodeTokenInvalid})
	}
	if err := p.save(ctx, &next); err != nil {
		return nil, fmt.Errorf("provider refresh: %w", err)
	}
	return &next, nil
}

// SignOut ends the provider session remotely and locally. The local copy is
// always dropped, even if the provider cannot be reached.
func (p *ProviderClient) SignOut(ctx context.Context) error {
	sess, err := p.load(ctx)
	var remoteErr error
	if err == nil {
		in := map[string]string{"access_token": sess.AccessToken}
		remoteErr = p.post(ctx, "/session/signout", in, nil)
	}
	if err := p.store.Clear(ctx); err != nil {
		return fmt.Errorf("provider sign-out: %w", err)
	}
	if remoteErr != nil {
		return fmt.Errorf("provider sign-out: %w", remoteErr)
	}
	return nil
}

// feedFrame is one change notification on the provider feed.
type feedFrame struct {
	Type    domain.AuthEventKind    `json:"type"`
	User    *domain.Identity        `json:"user,omitempty"`
	Session *domain.ProviderSession `json:"session,omitempty"`
}

// Subscribe connects to the change feed and delivers events to handler in
// the order they are received. The feed reconnects after a fixed delay until
// the returned func is called.
func (p *ProviderClient) Subscribe(handler func(domain.AuthEvent)) func() {
	if p.cfg.FeedURL == "" {
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			err := p.follow(ctx, handler)
			if ctx.Err() != nil {
				return
			}
			p.log.Warn().Err(err).Dur("retry_in", p.cfg.ReconnectDelay).Msg("provider feed disconnected")

			select {
			case <-ctx.Done():
				return
			case <-time.After(p.cfg.ReconnectDelay):
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}
}

func (p *ProviderClient) follow(ctx context.Context, handler func(domain.AuthEvent)) error {
	h := http.Header{}
	if p.cfg.APIKey != "" {
		h.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	dialCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	conn, resp, err := websocket.Dial(dialCtx, p.cfg.FeedURL, &websocket.DialOptions{HTTPHeader: h})
	cancel()
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial feed: %w", err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()
	conn.SetReadLimit(feedReadLimit)

	p.log.Debug().Str("url", p.cfg.FeedURL).Msg("provider feed connected")

	for {
		var f feedFrame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			return fmt.Errorf("read feed: %w", err)
		}
		if !f.Type.Valid() {
			p.log.Warn().Str("type", string(f.Type)).Msg("ignoring unknown feed frame")
			continue
		}
		p.track(ctx, f)
		handler(domain.NewAuthEvent(f.Type, f.User))
	}
}

// track mirrors feed changes into the persisted provider session.
func (p *ProviderClient) track(ctx context.Context, f feedFrame) {
	var err error
	switch {
	case f.Type == domain.EventSignedOut:
		err = p.store.Clear(ctx)
	case f.Session != nil:
		err = p.save(ctx, f.Session)
	}
	if err != nil {
		p.log.Warn().Err(err).Str("type", string(f.Type)).Msg("failed to persist provider session")
	}
}

func (p *ProviderClient) load(ctx context.Context) (*domain.ProviderSession, error) {
	raw, err := p.store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read provider session: %w", domain.ErrTransport, err)
	}
	if raw == "" {
		return nil, domain.ErrNoSession
	}
	var sess domain.ProviderSession
	if err := json.Unmarshal([]byte(raw), &sess); err != nil || sess.User.SubjectID == "" {
		p.log.Warn().Err(err).Msg("dropping unreadable provider session")
		_ = p.store.Clear(ctx)
		return nil, domain.ErrNoSession
	}
	return &sess, nil
}

func (p *ProviderClient) save(ctx context.Context, sess *domain.ProviderSession) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return p.store.Set(ctx, string(b))
}

func (p *ProviderClient) post(ctx context.Context, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", p.cfg.APIKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return &domain.CodeError{Code: rejectionCode(raw)}
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d", domain.ErrTransport, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return errors.New("provider: unexpected status " + http.StatusText(resp.StatusCode))
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
