package testutil

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MockClock is a controllable clock for rate gate tests.
//
// In manual mode (the default) channels returned by After fire only when
// Advance or Set moves the clock past their deadline. In auto-advance mode
// After jumps the clock forward by the requested duration and fires at once,
// which simulates a sleep without any real delay.
type MockClock struct {
	mu          sync.Mutex
	now         time.Time
	autoAdvance bool
	waiters     []mockWaiter
	sleeps      []time.Duration
}

type mockWaiter struct {
	deadline time.Time
	ch       chan time.Time
}

// NewMockClock creates a new MockClock starting at the given time.
// If zero time is provided, uses current time.
func NewMockClock(start time.Time) *MockClock {
	if start.IsZero() {
		start = time.Now()
	}
	return &MockClock{now: start}
}

// NewAutoClock creates a MockClock in auto-advance mode.
func NewAutoClock(start time.Time) *MockClock {
	c := NewMockClock(start)
	c.autoAdvance = true
	return c
}

// Now returns the current mock time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// After returns a channel that receives the mock time once d has elapsed.
func (m *MockClock) After(d time.Duration) <-chan time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sleeps = append(m.sleeps, d)
	ch := make(chan time.Time, 1)

	if m.autoAdvance {
		m.now = m.now.Add(d)
		ch <- m.now
		return ch
	}

	deadline := m.now.Add(d)
	if !deadline.After(m.now) {
		ch <- m.now
		return ch
	}
	m.waiters = append(m.waiters, mockWaiter{deadline: deadline, ch: ch})
	return ch
}

// Advance moves the mock clock forward by the given duration.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(m.now.Add(d))
}

// Set sets the mock clock to a specific time.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(t)
}

func (m *MockClock) setLocked(t time.Time) {
	m.now = t
	pending := m.waiters[:0]
	for _, w := range m.waiters {
		if !w.deadline.After(t) {
			w.ch <- t
			continue
		}
		pending = append(pending, w)
	}
	m.waiters = pending
}

// Waiters returns the number of After channels that have not fired yet.
func (m *MockClock) Waiters() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiters)
}

// Sleeps returns every duration passed to After, in call order.
func (m *MockClock) Sleeps() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, len(m.sleeps))
	copy(out, m.sleeps)
	return out
}

// BlockUntilWaiters polls until at least n After channels are pending or ctx ends.
func (m *MockClock) BlockUntilWaiters(ctx context.Context, n int) error {
	for {
		if m.Waiters() >= n {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

// ErrSimulated is a sentinel for tests that need a recognizable failure.
var ErrSimulated = errors.New("simulated error")
