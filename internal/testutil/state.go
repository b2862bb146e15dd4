// state.go
//
// Mock implementations of admission.StateRepository and admission.EnqueueTokenProvider.
package testutil

import (
	"sync"

	"github.com/MGallo-Code/styx/internal/state"
)

// StoreCall records one Store invocation.
type StoreCall struct {
	EventID              string
	QueueID              string
	FixedValidityMinutes *int
	Options              state.CookieOptions
	RedirectType         string
	HashedIP             string
	SecretKey            string
}

// GetStateCall records one GetState invocation.
type GetStateCall struct {
	EventID               string
	CookieValidityMinutes int
	SecretKey             string
	ValidateTime          bool
}

// CancelCall records one Cancel invocation.
type CancelCall struct {
	EventID string
	Options state.CookieOptions
}

// ReissueCall records one Reissue invocation.
type ReissueCall struct {
	EventID               string
	CookieValidityMinutes int
	Options               state.CookieOptions
	SecretKey             string
}

// MockStateRepository returns Info from every GetState and records all calls.
type MockStateRepository struct {
	Info state.Info

	StoreCalls    []StoreCall
	GetStateCalls []GetStateCall
	CancelCalls   []CancelCall
	ReissueCalls  []ReissueCall

	mu sync.Mutex
}

func (m *MockStateRepository) Store(eventID, queueID string, fixedValidityMinutes *int, opts state.CookieOptions, redirectType, hashedIP, secretKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StoreCalls = append(m.StoreCalls, StoreCall{
		EventID:              eventID,
		QueueID:              queueID,
		FixedValidityMinutes: fixedValidityMinutes,
		Options:              opts,
		RedirectType:         redirectType,
		HashedIP:             hashedIP,
		SecretKey:            secretKey,
	})
}

func (m *MockStateRepository) GetState(eventID string, cookieValidityMinutes int, secretKey string, validateTime bool) state.Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetStateCalls = append(m.GetStateCalls, GetStateCall{
		EventID:               eventID,
		CookieValidityMinutes: cookieValidityMinutes,
		SecretKey:             secretKey,
		ValidateTime:          validateTime,
	})
	return m.Info
}

func (m *MockStateRepository) Cancel(eventID string, opts state.CookieOptions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CancelCalls = append(m.CancelCalls, CancelCall{EventID: eventID, Options: opts})
}

func (m *MockStateRepository) Reissue(eventID string, cookieValidityMinutes int, opts state.CookieOptions, secretKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReissueCalls = append(m.ReissueCalls, ReissueCall{
		EventID:               eventID,
		CookieValidityMinutes: cookieValidityMinutes,
		Options:               opts,
		SecretKey:             secretKey,
	})
}

// MockEnqueueProvider returns Token (or Err) and records requested event ids.
type MockEnqueueProvider struct {
	Token string
	Err   error

	Calls []string
}

func (m *MockEnqueueProvider) EnqueueToken(eventID string) (string, error) {
	m.Calls = append(m.Calls, eventID)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Token, nil
}
