package services

import (
	"context"
	"sync"
)

// MockSheetDetector is a scripted sheet detector for testing
type MockSheetDetector struct {
	mu       sync.Mutex
	verdicts []mockVerdict
	fallback mockVerdict
	calls    []string
}

type mockVerdict struct {
	accepted bool
	err      error
}

// NewMockSheetDetector creates a detector that accepts every photo unless scripted otherwise
func NewMockSheetDetector() *MockSheetDetector {
	return &MockSheetDetector{fallback: mockVerdict{accepted: true}}
}

// Then queues a verdict for the next call
func (m *MockSheetDetector) Then(accepted bool, err error) *MockSheetDetector {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verdicts = append(m.verdicts, mockVerdict{accepted: accepted, err: err})
	return m
}

// Always sets the verdict used once the queue is empty
func (m *MockSheetDetector) Always(accepted bool, err error) *MockSheetDetector {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = mockVerdict{accepted: accepted, err: err}
	return m
}

// Validate returns the next scripted verdict
func (m *MockSheetDetector) Validate(ctx context.Context, photoPath string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, photoPath)

	verdict := m.fallback
	if len(m.verdicts) > 0 {
		verdict = m.verdicts[0]
		m.verdicts = m.verdicts[1:]
	}
	return verdict.accepted, verdict.err
}

// Calls returns the photo paths passed to Validate
func (m *MockSheetDetector) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
