// Package clock supplies wall-clock time to the verification components.
//
// Production code uses Real. Tests use Mock to move time forward without sleeping.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Real is the system clock. Readings are UTC at microsecond precision, the
// resolution Postgres timestamps keep.
type Real struct{}

func (Real) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// New returns the system clock.
func New() Clock {
	return Real{}
}

// Mock is a manually driven clock safe for concurrent use.
type Mock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewMock creates a mock clock frozen at start.
func NewMock(start time.Time) *Mock {
	return &Mock{now: start}
}

func (m *Mock) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// Set moves the clock to t.
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance moves the clock forward by d.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
