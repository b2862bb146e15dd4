// stores.go
//
// Shared mock implementations of store.Auditor, gate.IntegrationProvider and
// gate.HealthChecker. Imported by test files across packages to avoid
// duplicate mock definitions.
package testutil

import (
	"context"
	"sync"

	"github.com/MGallo-Code/styx/internal/rules"
	"github.com/MGallo-Code/styx/internal/store"
)

// MockAuditor implements store.Auditor for tests.
// Always stateful...recorded events are kept in order.
// Set RecordErr to inject a failure; events are still not recorded in that case.
type MockAuditor struct {
	RecordErr error

	Events []store.AdmissionEvent

	mu sync.Mutex
}

func (m *MockAuditor) RecordDecision(_ context.Context, ev store.AdmissionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.Events = append(m.Events, ev)
	return nil
}

// Recorded returns a copy of the events recorded so far.
func (m *MockAuditor) Recorded() []store.AdmissionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.AdmissionEvent(nil), m.Events...)
}

// MockIntegrationProvider serves a fixed document, or Err when set.
type MockIntegrationProvider struct {
	Doc *rules.CustomerIntegration
	Err error

	Calls int

	mu sync.Mutex
}

func (m *MockIntegrationProvider) Integration(_ context.Context) (*rules.CustomerIntegration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Doc, nil
}

// MockHealthChecker reports Err from CheckHealth.
type MockHealthChecker struct {
	Err error
}

func (m *MockHealthChecker) CheckHealth(_ context.Context) error {
	return m.Err
}
