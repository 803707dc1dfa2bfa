package mocks

import (
	"sync"
	"time"

	"github.com/mcoot/chesschain-go/internal/dependencies/clock"
)

// MockClock is a mock implementation of Clock for testing.
// AfterFunc callbacks fire synchronously from Advance or Set once their deadline passes.
type MockClock struct {
	mu          sync.Mutex
	CurrentTime time.Time
	timers      []*mockTimer
}

// Ensure MockClock implements Clock
var _ clock.Clock = (*MockClock)(nil)

// NewMockClock creates a MockClock set to the given time
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{CurrentTime: t}
}

// Now returns the mocked current time
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CurrentTime
}

// AfterFunc registers f to run when the clock is advanced past now+d.
// A non-positive d fires immediately.
func (c *MockClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	t := &mockTimer{fn: f}
	if d <= 0 {
		t.fired = true
		f()
		return t
	}
	c.mu.Lock()
	t.deadline = c.CurrentTime.Add(d)
	c.timers = append(c.timers, t)
	c.mu.Unlock()
	return t
}

// Advance moves the clock forward by the given duration
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.CurrentTime = c.CurrentTime.Add(d)
	c.mu.Unlock()
	c.fire()
}

// Set sets the clock to the given time
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	c.CurrentTime = t
	c.mu.Unlock()
	c.fire()
}

// PendingTimers returns the number of registered timers yet to fire
func (c *MockClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done() {
			n++
		}
	}
	return n
}

func (c *MockClock) fire() {
	c.mu.Lock()
	now := c.CurrentTime
	var due []*mockTimer
	remaining := c.timers[:0]
	for _, t := range c.timers {
		if t.done() {
			continue
		}
		if !t.deadline.After(now) {
			due = append(due, t)
			continue
		}
		remaining = append(remaining, t)
	}
	c.timers = remaining
	c.mu.Unlock()

	for _, t := range due {
		if t.claim() {
			t.fn()
		}
	}
}

type mockTimer struct {
	mu       sync.Mutex
	deadline time.Time
	fn       func()
	fired    bool
	stopped  bool
}

func (t *mockTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func (t *mockTimer) done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired || t.stopped
}

func (t *mockTimer) claim() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.fired = true
	return true
}
