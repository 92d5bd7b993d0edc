package service

import (
	"testing"

	"github.com/bookwise/session-client/internal/core/domain"
)

func TestStateStore_CommitAtRejectsStaleEpoch(t *testing.T) {
	s := NewStateStore()
	stale := s.Epoch()

	s.rotate(func(st *domain.State) { st.Phase = domain.PhaseUnauthenticated })

	applied := s.commitAt(stale, func(st *domain.State) {
		st.Session = &domain.Session{SubjectID: "ghost"}
	})
	if applied || s.Get().Session != nil {
		t.Fatalf("commit under a stale epoch must be dropped")
	}
}

func TestStateStore_SubscribersGetLatest(t *testing.T) {
	s := NewStateStore()
	ch, unsubscribe := s.Subscribe()

	s.commit(func(st *domain.State) { st.Phase = domain.PhaseCheckingPrimary })
	s.commit(func(st *domain.State) { st.Phase = domain.PhaseCheckingSecondary })

	if got := (<-ch).Phase; got != domain.PhaseCheckingSecondary {
		t.Fatalf("expected latest snapshot, got %s", got)
	}

	unsubscribe()
	unsubscribe()
	s.commit(func(st *domain.State) { st.Phase = domain.PhaseUnauthenticated })
	select {
	case st := <-ch:
		t.Fatalf("unsubscribed channel received %+v", st)
	default:
	}
}

func TestStateStore_ReadyClosesOnce(t *testing.T) {
	s := NewStateStore()
	s.commit(func(st *domain.State) { st.Initialized = true })
	s.commit(func(st *domain.State) { st.Loading = false })

	select {
	case <-s.Ready():
	default:
		t.Fatalf("ready not closed after initialization")
	}
}
