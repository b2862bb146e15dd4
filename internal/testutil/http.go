// http.go
//
// Mock implementations of httpctx.Request and httpctx.Response.
// Shared so state, rules and admission tests build requests the same way.
package testutil

import (
	"strings"
	"sync"

	"github.com/MGallo-Code/styx/internal/httpctx"
)

// MockRequest implements httpctx.Request from plain fields.
// Headers keys are matched case-insensitively.
type MockRequest struct {
	UserAgentValue string
	Headers        map[string]string
	URLValue       string
	IP             string
	Cookies        map[string]string
	BodyValue      string
}

// NewMockRequest returns a MockRequest for url with empty header and cookie maps.
func NewMockRequest(url string) *MockRequest {
	return &MockRequest{
		URLValue: url,
		Headers:  make(map[string]string),
		Cookies:  make(map[string]string),
	}
}

func (m *MockRequest) UserAgent() string { return m.UserAgentValue }

func (m *MockRequest) Header(name string) string {
	if strings.EqualFold(name, httpctx.ClientIPHeader) {
		return m.IP
	}
	for k, v := range m.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func (m *MockRequest) URL() string      { return m.URLValue }
func (m *MockRequest) ClientIP() string { return m.IP }
func (m *MockRequest) Body() string     { return m.BodyValue }

func (m *MockRequest) CookieValue(name string) (string, bool) {
	v, ok := m.Cookies[name]
	return v, ok
}

// CookieWrite records one SetCookie call.
type CookieWrite struct {
	Name     string
	Value    string
	MaxAge   int
	Domain   string
	HttpOnly bool
	Secure   bool
}

// MockResponse implements httpctx.Response and records every cookie write in order.
type MockResponse struct {
	Writes []CookieWrite

	mu sync.Mutex
}

func (m *MockResponse) SetCookie(name, value string, maxAge int, domain string, httpOnly, secure bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes = append(m.Writes, CookieWrite{
		Name:     name,
		Value:    value,
		MaxAge:   maxAge,
		Domain:   domain,
		HttpOnly: httpOnly,
		Secure:   secure,
	})
}

// Last returns the most recent write for name.
func (m *MockResponse) Last(name string) (CookieWrite, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.Writes) - 1; i >= 0; i-- {
		if m.Writes[i].Name == name {
			return m.Writes[i], true
		}
	}
	return CookieWrite{}, false
}
