package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestManagerCreateGetEnd(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("u1")
	if s.ID == "" {
		t.Fatalf("session ID should not be empty")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserID != "u1" || got.Status != StatusActive {
		t.Fatalf("unexpected session state: %+v", got)
	}

	ended, err := m.End(s.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != StatusEnded {
		t.Fatalf("ended status = %q, want %q", ended.Status, StatusEnded)
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("ActiveCount() = %d, want 0", m.ActiveCount())
	}
}

func TestManagerRecordTurn(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("")
	if err := m.RecordTurn(s.ID, "leave_policy"); err != nil {
		t.Fatalf("RecordTurn() error = %v", err)
	}
	if err := m.RecordTurn(s.ID, "chitchat"); err != nil {
		t.Fatalf("RecordTurn() error = %v", err)
	}

	got, _ := m.Get(s.ID)
	if got.TurnCount != 2 || got.LastIntent != "chitchat" {
		t.Fatalf("session = %+v, want 2 turns ending in chitchat", got)
	}

	_, _ = m.End(s.ID)
	if err := m.RecordTurn(s.ID, "leave_policy"); !errors.Is(err, ErrEnded) {
		t.Fatalf("RecordTurn() on ended session error = %v, want ErrEnded", err)
	}
	if err := m.RecordTurn("missing", "leave_policy"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("RecordTurn() on missing session error = %v, want ErrNotFound", err)
	}
}

func TestManagerGetReturnsCopy(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("u1")
	got, _ := m.Get(s.ID)
	got.TurnCount = 99
	again, _ := m.Get(s.ID)
	if again.TurnCount != 0 {
		t.Fatalf("TurnCount = %d, Get() leaked internal state", again.TurnCount)
	}
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	s := m.Create("u1")

	var (
		mu      sync.Mutex
		expired []string
	)
	m.SetExpireHook(func(s *Session) {
		mu.Lock()
		defer mu.Unlock()
		expired = append(expired, s.ID)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	time.Sleep(90 * time.Millisecond)
	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusEnded {
		t.Fatalf("Status = %q, want %q", got.Status, StatusEnded)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(expired) != 1 || expired[0] != s.ID {
		t.Fatalf("expired = %v, want [%s]", expired, s.ID)
	}
}
