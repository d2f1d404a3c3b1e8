package mcp

import (
	"testing"
	"time"
)

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	b := NewBreaker("tool-a", 3, time.Minute, nil, nil)
	for i := 0; i < 2; i++ {
		if !b.Allow() {
			t.Fatalf("expected breaker to allow attempt %d", i)
		}
		b.Failure()
	}
	if b.State() != StateClosed {
		t.Fatalf("expected breaker still closed before threshold, got %s", b.State())
	}
	b.Allow()
	b.Failure()
	if b.State() != StateOpen {
		t.Fatalf("expected breaker open after threshold failures, got %s", b.State())
	}
}

func TestBreaker_HalfOpenAfterCooldownThenCloses(t *testing.T) {
	b := NewBreaker("tool-b", 1, 10*time.Millisecond, nil, nil)
	b.Allow()
	b.Failure()
	if b.State() != StateOpen {
		t.Fatal("expected breaker open after single failure with threshold 1")
	}

	time.Sleep(20 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("expected half-open trial to be allowed after cooldown")
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open state, got %s", b.State())
	}
	b.Success()
	if b.State() != StateClosed {
		t.Fatalf("expected breaker closed after successful half-open trial, got %s", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker("tool-c", 1, 10*time.Millisecond, nil, nil)
	b.Allow()
	b.Failure()
	time.Sleep(20 * time.Millisecond)
	b.Allow()
	b.Failure()
	if b.State() != StateOpen {
		t.Fatalf("expected breaker re-opened after failed half-open trial, got %s", b.State())
	}
}

type memPersister struct {
	states map[string]struct {
		state    BreakerState
		failures int
	}
}

func (m *memPersister) Load(tool string) (BreakerState, int, *time.Time, bool) {
	v, ok := m.states[tool]
	return v.state, v.failures, nil, ok
}

func (m *memPersister) Save(tool string, state BreakerState, failures int, openedAt *time.Time) {
	if m.states == nil {
		m.states = map[string]struct {
			state    BreakerState
			failures int
		}{}
	}
	m.states[tool] = struct {
		state    BreakerState
		failures int
	}{state, failures}
}

func TestBreaker_RestoresPersistedState(t *testing.T) {
	p := &memPersister{}
	b1 := NewBreaker("tool-d", 2, time.Minute, p, nil)
	b1.Allow()
	b1.Failure()

	b2 := NewBreaker("tool-d", 2, time.Minute, p, nil)
	if b2.State() != StateClosed {
		t.Fatalf("expected restored closed state, got %s", b2.State())
	}
}

func TestRegistry_ReusesBreakerPerTool(t *testing.T) {
	r := NewRegistry(3, time.Minute, nil, nil)
	a := r.For("x")
	b := r.For("x")
	if a != b {
		t.Error("expected the same breaker instance for repeated lookups")
	}
}
