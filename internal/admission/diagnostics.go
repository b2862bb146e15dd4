// diagnostics.go -- Debug tokens and the queueitdebug trace cookie.
//
// A token with rt_debug asks the connector to record a trace of the decision.
// The token must be correctly signed and unexpired; otherwise the visitor is
// sent to the diagnostics error page instead.
package admission

import (
	"net/url"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/MGallo-Code/styx/internal/httpctx"
	"github.com/MGallo-Code/styx/internal/signing"
	"github.com/MGallo-Code/styx/internal/token"
)

const (
	// DebugCookieName holds the trace written for debug tokens.
	DebugCookieName   = "queueitdebug"
	debugCookieMaxAge = 20 * 60

	debugRedirectType = "debug"
	setupErrorURL     = "https://api2.queue-it.net/diagnostics/connector/error/?code=setup"
)

// diagnostics is the verdict on a request's debug token.
type diagnostics struct {
	enabled bool
	// errResult, when set, replaces the whole decision.
	errResult *Result
}

// verifyDiagnostics checks queueitToken for a debug request. Tokens that are
// absent or not rt_debug leave diagnostics off.
func verifyDiagnostics(customerID, secretKey, queueitToken string, now time.Time) diagnostics {
	params := token.Parse(queueitToken)
	if params == nil || params.RedirectType != debugRedirectType {
		return diagnostics{}
	}
	if strings.TrimSpace(customerID) == "" || strings.TrimSpace(secretKey) == "" {
		return diagnostics{errResult: &Result{ActionType: ActionDiagnostics, RedirectURL: setupErrorURL}}
	}
	if !strings.EqualFold(signing.Sign(secretKey, params.RawWithoutHash), params.Hash) {
		return diagnostics{errResult: diagnosticsError(customerID, token.CodeHash)}
	}
	if params.Timestamp < now.Unix() {
		return diagnostics{errResult: diagnosticsError(customerID, token.CodeTimestamp)}
	}
	return diagnostics{enabled: true}
}

func diagnosticsError(customerID string, code token.ErrorCode) *Result {
	return &Result{
		ActionType:  ActionDiagnostics,
		RedirectURL: "https://" + customerID + ".api2.queue-it.net/" + customerID + "/diagnostics/connector/error/?code=" + string(code),
	}
}

// debugTrace collects key/value pairs while diagnostics are enabled.
// A disabled trace ignores every set.
type debugTrace struct {
	enabled bool
	entries map[string]string
}

func newDebugTrace(enabled bool) *debugTrace {
	return &debugTrace{enabled: enabled, entries: make(map[string]string)}
}

func (d *debugTrace) set(key, value string) {
	if d.enabled {
		d.entries[key] = value
	}
}

// setRequest records the runtime, clock and forwarding details of req.
func (d *debugTrace) setRequest(req httpctx.Request, now time.Time) {
	if !d.enabled {
		return
	}
	d.set("SdkVersion", SDKVersion)
	d.set("Runtime", url.QueryEscape(runtime.Version()))
	d.set("OriginalUrl", req.URL())
	d.set("ServerUtcTime", now.UTC().Format("2006-01-02T15:04:05Z"))
	d.set("RequestIP", req.ClientIP())
	d.set("RequestHttpHeader_Via", req.Header("via"))
	d.set("RequestHttpHeader_Forwarded", req.Header("forwarded"))
	d.set("RequestHttpHeader_XForwardedFor", req.Header("x-forwarded-for"))
	d.set("RequestHttpHeader_XForwardedHost", req.Header("x-forwarded-host"))
	d.set("RequestHttpHeader_XForwardedProto", req.Header("x-forwarded-proto"))
}

// encode renders entries as k=v joined by "|", keys sorted.
func (d *debugTrace) encode() string {
	keys := make([]string, 0, len(d.entries))
	for k := range d.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + d.entries[k]
	}
	return strings.Join(pairs, "|")
}

// write stores the trace cookie. Nothing is written for an empty trace.
func (d *debugTrace) write(resp httpctx.Response) {
	if len(d.entries) == 0 {
		return
	}
	resp.SetCookie(DebugCookieName, d.encode(), debugCookieMaxAge, "", false, false)
}
