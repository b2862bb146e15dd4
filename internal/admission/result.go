// result.go -- Outcome of one admission decision.
package admission

import (
	"fmt"
	"strings"
)

// Result action types.
const (
	ActionQueue       = "Queue"
	ActionCancel      = "Cancel"
	ActionIgnore      = "Ignore"
	ActionDiagnostics = "ConnectorDiagnosticsRedirect"
)

// AjaxRedirectHeader carries the redirect target back to AJAX callers.
const AjaxRedirectHeader = "x-queueit-redirect"

// Result describes what the caller should do with the request.
// A zero Result means no integration matched.
type Result struct {
	ActionType   string
	EventID      string
	QueueID      string
	RedirectURL  string
	RedirectType string
	ActionName   string
	IsAjaxResult bool

	// ErrorCode is set when an admission token was rejected. Informational only.
	ErrorCode string
}

// DoRedirect reports whether the visitor must be redirected.
func (r *Result) DoRedirect() bool {
	return strings.TrimSpace(r.RedirectURL) != ""
}

// AjaxRedirectURL returns RedirectURL form-encoded for the AjaxRedirectHeader value,
// or "" when there is no redirect.
func (r *Result) AjaxRedirectURL() string {
	if !r.DoRedirect() {
		return ""
	}
	return formEncode(r.RedirectURL)
}

// Outcome is a short label for logs and metrics.
func (r *Result) Outcome() string {
	switch {
	case r.ActionType == "":
		return "nomatch"
	case r.ActionType == ActionDiagnostics:
		return "diagnostics"
	case r.ErrorCode != "":
		return "error"
	case r.DoRedirect():
		return "redirect"
	default:
		return "pass"
	}
}

func (r *Result) String() string {
	return fmt.Sprintf("action=%s event=%s queue=%s redirect=%t", r.ActionType, r.EventID, r.QueueID, r.DoRedirect())
}
