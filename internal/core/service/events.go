package service

import (
	"context"
	"fmt"

	"github.com/bookwise/session-client/internal/core/domain"
	"github.com/bookwise/session-client/pkg/metrics"
)

// Apply handles one provider session-change event. The dispatcher calls it
// from a single goroutine; s.mu additionally orders it against login and
// logout.
func (s *SessionService) Apply(ctx context.Context, ev domain.AuthEvent) error {
	if !ev.Kind.Valid() {
		return fmt.Errorf("apply event %s: unknown kind %q", ev.ID, ev.Kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.With().Str("event_id", ev.ID).Str("kind", string(ev.Kind)).Logger()

	switch ev.Kind {
	case domain.EventSignedIn:
		if ev.Identity == nil || ev.Identity.SubjectID == "" {
			return fmt.Errorf("apply event %s: %s without identity", ev.ID, ev.Kind)
		}
		s.signInLocked(*ev.Identity, domain.SourceSecondary)

	case domain.EventSignedOut:
		if err := s.signOutLocked(ctx, ""); err != nil {
			return fmt.Errorf("apply event %s: %w", ev.ID, err)
		}

	case domain.EventTokenRefreshed:
		if ev.Identity == nil || ev.Identity.SubjectID == "" {
			return fmt.Errorf("apply event %s: %s without identity", ev.ID, ev.Kind)
		}
		cur := s.state.Get()
		source := domain.SourceSecondary
		if cur.Session != nil && cur.Session.SubjectID == ev.Identity.SubjectID {
			source = cur.Session.Source
		}
		s.renewLocked(*ev.Identity, source)

	case domain.EventUserUpdated:
		st, epoch := s.state.Snapshot()
		if st.Session == nil {
			log.Debug().Msg("user update without session ignored")
			return nil
		}
		s.loadProfileAsync(epoch, st.Session, true)
	}

	metrics.EventsTotal.WithLabelValues(string(ev.Kind)).Inc()
	log.Debug().Msg("event applied")
	return nil
}
