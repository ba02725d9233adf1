package engine

import (
	"sync/atomic"
	"time"
)

// TimeProvider is the loop's source of wall time
type TimeProvider interface {
	Now() time.Time
}

// MonotonicTimeProvider reads the system clock, including its monotonic component
type MonotonicTimeProvider struct{}

func NewMonotonicTimeProvider() *MonotonicTimeProvider {
	return &MonotonicTimeProvider{}
}

func (p *MonotonicTimeProvider) Now() time.Time {
	return time.Now()
}

// MockTimeProvider is a manually advanced clock for tests, safe across goroutines
type MockTimeProvider struct {
	base   time.Time
	offset atomic.Int64 // nanoseconds past base
}

func NewMockTimeProvider(start time.Time) *MockTimeProvider {
	return &MockTimeProvider{base: start}
}

func (m *MockTimeProvider) Now() time.Time {
	return m.base.Add(time.Duration(m.offset.Load()))
}

// SetTime moves the clock to t, which must not precede the start time
func (m *MockTimeProvider) SetTime(t time.Time) {
	m.offset.Store(int64(t.Sub(m.base)))
}

func (m *MockTimeProvider) Advance(d time.Duration) {
	m.offset.Add(int64(d))
}
