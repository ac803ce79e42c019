package core

import (
	"context"
	"sync"
	"time"
)

// --- MockMetricsCollector ---

// RequestMetric records the arguments of a single RecordRequest invocation.
type RequestMetric struct {
	Method   string
	Endpoint string
	Status   string
	Duration time.Duration
}

// MockMetricsCollector implements the MetricsCollector interface for testing.
// It records every invocation for assertion.
//
// Usage:
//
//	mock := &MockMetricsCollector{}
//	srv.Metrics = mock
//	// ... drive requests ...
//	calls := mock.Recorded()
type MockMetricsCollector struct {
	// RecordRequestFunc is an optional function invoked on every call after
	// recording. This allows tests to implement dynamic behavior.
	RecordRequestFunc func(ctx context.Context, method, endpoint, status string, duration time.Duration)

	// mu protects calls for concurrent access.
	mu sync.Mutex

	calls []RequestMetric
}

// RecordRequest implements the MetricsCollector interface.
func (m *MockMetricsCollector) RecordRequest(ctx context.Context, method, endpoint, status string, duration time.Duration) {
	m.mu.Lock()
	m.calls = append(m.calls, RequestMetric{
		Method:   method,
		Endpoint: endpoint,
		Status:   status,
		Duration: duration,
	})
	m.mu.Unlock()

	if m.RecordRequestFunc != nil {
		m.RecordRequestFunc(ctx, method, endpoint, status, duration)
	}
}

// Recorded returns a snapshot of every recorded request metric.
func (m *MockMetricsCollector) Recorded() []RequestMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RequestMetric, len(m.calls))
	copy(out, m.calls)
	return out
}

// --- MockProbe ---

// MockProbe implements the HealthProbe interface for testing.
// It allows injecting a predefined error, an artificial delay, or a panic to
// exercise every branch of the health handler.
//
// Usage:
//
//	healthy := &MockProbe{ProbeName: "database"}
//	failing := &MockProbe{ProbeName: "broker", Err: errors.New("connection refused")}
type MockProbe struct {
	// ProbeName is the identifier returned by Name.
	ProbeName string

	// Err is the error returned by Check after any configured delay.
	Err error

	// Delay, when positive, makes Check block for the given duration.
	// Unless IgnoreContext is set, a context cancellation cuts the delay
	// short and Check returns ctx.Err().
	Delay time.Duration

	// IgnoreContext makes the delay insensitive to context cancellation,
	// simulating a probe that does not honor deadlines.
	IgnoreContext bool

	// PanicValue, when non-nil, makes Check panic with this value.
	PanicValue any

	// mu protects calls for concurrent access.
	mu sync.Mutex

	calls int
}

// Name implements the HealthProbe interface.
func (m *MockProbe) Name() string {
	return m.ProbeName
}

// Check implements the HealthProbe interface.
func (m *MockProbe) Check(ctx context.Context) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.PanicValue != nil {
		panic(m.PanicValue)
	}

	if m.Delay > 0 {
		if m.IgnoreContext {
			time.Sleep(m.Delay)
		} else {
			select {
			case <-time.After(m.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return m.Err
}

// Calls returns the number of times Check was invoked.
func (m *MockProbe) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Compile-time interface assertions.
var (
	_ MetricsCollector = (*MockMetricsCollector)(nil)
	_ HealthProbe      = (*MockProbe)(nil)
)
