package mcp

import (
	"sync"
	"time"
)

// BreakerState is one of the three canonical circuit breaker states.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

// BreakerPersister loads and saves per-tool breaker state so a trip survives
// a process restart, per §4.7's index-table breaker persistence design.
type BreakerPersister interface {
	Load(toolName string) (state BreakerState, consecutiveFailures int, openedAt *time.Time, found bool)
	Save(toolName string, state BreakerState, consecutiveFailures int, openedAt *time.Time)
}

// Breaker is a single tool's circuit breaker.
type Breaker struct {
	mu                  sync.Mutex
	toolName            string
	state               BreakerState
	consecutiveFailures int
	openedAt            time.Time
	failureThreshold    int
	cooldown            time.Duration
	persist             BreakerPersister
	onTransition        func(from, to BreakerState)
}

// NewBreaker constructs a Breaker for toolName, restoring persisted state if
// a BreakerPersister is supplied and has a prior record.
func NewBreaker(toolName string, failureThreshold int, cooldown time.Duration, persist BreakerPersister, onTransition func(from, to BreakerState)) *Breaker {
	b := &Breaker{
		toolName:         toolName,
		state:            StateClosed,
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		persist:          persist,
		onTransition:     onTransition,
	}
	if persist != nil {
		if state, failures, openedAt, found := persist.Load(toolName); found {
			b.state = state
			b.consecutiveFailures = failures
			if openedAt != nil {
				b.openedAt = *openedAt
			}
		}
	}
	return b
}

// Allow reports whether an attempt through this tool should proceed. A
// half-open trial is allowed exactly once per cooldown expiry; the caller
// must report the trial's outcome via Success/Failure.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.openedAt) >= b.cooldown {
			b.transition(StateHalfOpen)
			return true
		}
		return false
	case StateHalfOpen:
		return false // a trial is already in flight
	default:
		return true
	}
}

// Success records a successful invocation, closing the breaker.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures = 0
	if b.state != StateClosed {
		b.transition(StateClosed)
	} else {
		b.save()
	}
}

// Failure records a failed invocation, tripping the breaker once the
// consecutive-failure threshold is reached, or immediately re-opening a
// half-open trial that failed.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.openedAt = time.Now()
		b.transition(StateOpen)
		return
	}

	b.consecutiveFailures++
	if b.consecutiveFailures >= b.failureThreshold {
		b.openedAt = time.Now()
		b.transition(StateOpen)
		return
	}
	b.save()
}

// State returns the breaker's current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	b.save()
	if b.onTransition != nil && from != to {
		b.onTransition(from, to)
	}
}

func (b *Breaker) save() {
	if b.persist == nil {
		return
	}
	var openedAt *time.Time
	if !b.openedAt.IsZero() {
		t := b.openedAt
		openedAt = &t
	}
	b.persist.Save(b.toolName, b.state, b.consecutiveFailures, openedAt)
}

// Registry holds one Breaker per tool name, created lazily.
type Registry struct {
	mu               sync.Mutex
	breakers         map[string]*Breaker
	failureThreshold int
	cooldown         time.Duration
	persist          BreakerPersister
	onTransition     func(tool string, from, to BreakerState)
}

// NewRegistry constructs a breaker Registry with shared defaults for newly
// created breakers.
func NewRegistry(failureThreshold int, cooldown time.Duration, persist BreakerPersister, onTransition func(tool string, from, to BreakerState)) *Registry {
	return &Registry{
		breakers:         make(map[string]*Breaker),
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		persist:          persist,
		onTransition:     onTransition,
	}
}

// For returns the Breaker for toolName, creating it on first use.
func (r *Registry) For(toolName string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[toolName]; ok {
		return b
	}
	b := NewBreaker(toolName, r.failureThreshold, r.cooldown, r.persist, func(from, to BreakerState) {
		if r.onTransition != nil {
			r.onTransition(toolName, from, to)
		}
	})
	r.breakers[toolName] = b
	return b
}
