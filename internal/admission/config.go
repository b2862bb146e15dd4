// config.go -- Per-event settings for queue and cancel decisions.
package admission

import (
	"fmt"

	"github.com/MGallo-Code/styx/internal/rules"
	"github.com/MGallo-Code/styx/internal/state"
)

// QueueEventConfig holds what a queue decision needs for one event.
type QueueEventConfig struct {
	EventID              string
	QueueDomain          string
	LayoutName           string
	Culture              string
	CookieDomain         string
	IsCookieHttpOnly     bool
	IsCookieSecure       bool
	ExtendCookieValidity bool
	CookieValidityMinute int
	Version              int
	ActionName           string
}

// CookieOptions returns the cookie attributes for session writes.
func (c QueueEventConfig) CookieOptions() state.CookieOptions {
	return state.CookieOptions{Domain: c.CookieDomain, HttpOnly: c.IsCookieHttpOnly, Secure: c.IsCookieSecure}
}

// String renders the config for the debug trace.
func (c QueueEventConfig) String() string {
	return fmt.Sprintf("EventId:%s&Version:%d&QueueDomain:%s&CookieDomain:%s&IsCookieHttpOnly:%t&IsCookieSecure:%t&ExtendCookieValidity:%t&CookieValidityMinute:%d&LayoutName:%s&Culture:%s&ActionName:%s",
		c.EventID, c.Version, c.QueueDomain, c.CookieDomain, c.IsCookieHttpOnly, c.IsCookieSecure,
		c.ExtendCookieValidity, c.CookieValidityMinute, c.LayoutName, c.Culture, c.ActionName)
}

// CancelEventConfig holds what a cancel decision needs for one event.
type CancelEventConfig struct {
	EventID          string
	QueueDomain      string
	CookieDomain     string
	IsCookieHttpOnly bool
	IsCookieSecure   bool
	Version          int
	ActionName       string
}

// CookieOptions returns the cookie attributes for session writes.
func (c CancelEventConfig) CookieOptions() state.CookieOptions {
	return state.CookieOptions{Domain: c.CookieDomain, HttpOnly: c.IsCookieHttpOnly, Secure: c.IsCookieSecure}
}

// String renders the config for the debug trace.
func (c CancelEventConfig) String() string {
	return fmt.Sprintf("EventId:%s&Version:%d&QueueDomain:%s&CookieDomain:%s&IsCookieHttpOnly:%t&IsCookieSecure:%t&ActionName:%s",
		c.EventID, c.Version, c.QueueDomain, c.CookieDomain, c.IsCookieHttpOnly, c.IsCookieSecure, c.ActionName)
}

// queueConfigFrom maps a matched integration onto a queue decision config.
func queueConfigFrom(ic *rules.IntegrationConfig, version int) QueueEventConfig {
	return QueueEventConfig{
		EventID:              ic.EventID,
		QueueDomain:          ic.QueueDomain,
		LayoutName:           ic.LayoutName,
		Culture:              ic.Culture,
		CookieDomain:         ic.CookieDomain,
		IsCookieHttpOnly:     ic.IsCookieHttpOnly,
		IsCookieSecure:       ic.IsCookieSecure,
		ExtendCookieValidity: ic.ExtendCookieValidity,
		CookieValidityMinute: ic.CookieValidityMinute,
		Version:              version,
		ActionName:           ic.Name,
	}
}

// cancelConfigFrom maps a matched integration onto a cancel decision config.
func cancelConfigFrom(ic *rules.IntegrationConfig, version int) CancelEventConfig {
	return CancelEventConfig{
		EventID:          ic.EventID,
		QueueDomain:      ic.QueueDomain,
		CookieDomain:     ic.CookieDomain,
		IsCookieHttpOnly: ic.IsCookieHttpOnly,
		IsCookieSecure:   ic.IsCookieSecure,
		Version:          version,
		ActionName:       ic.Name,
	}
}
