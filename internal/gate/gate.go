// gate.go

// Admission middleware: decides per request whether the visitor is sent to
// the waiting room or allowed through to the origin.
package gate

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/MGallo-Code/styx/internal/admission"
	"github.com/MGallo-Code/styx/internal/enqueue"
	"github.com/MGallo-Code/styx/internal/httpctx"
	"github.com/MGallo-Code/styx/internal/metrics"
	"github.com/MGallo-Code/styx/internal/rules"
	"github.com/MGallo-Code/styx/internal/store"
)

// auditTimeout bounds the audit insert so a slow database never stalls a visitor.
const auditTimeout = 2 * time.Second

// IntegrationProvider returns the integration document for the current request.
// Implemented by store.IntegrationSource.
type IntegrationProvider interface {
	Integration(ctx context.Context) (*rules.CustomerIntegration, error)
}

// Handler holds the gate's dependencies. Build with a struct literal in main.go.
// Enqueue, Audit, Metrics, RS and PS may be nil.
type Handler struct {
	CustomerID   string
	SecretKey    string
	Integrations IntegrationProvider
	Enqueue      *enqueue.JWTProvider
	Audit        store.Auditor
	Metrics      *metrics.Collectors

	// BodyLimit is how many body bytes body validators may see; 0 disables capture.
	BodyLimit int64

	// Backends reported by CheckHealth.
	RS HealthChecker
	PS HealthChecker
}

// RequireAdmission evaluates every request against the integration config.
// Redirects to the queue (302, or a header for AJAX callers) when required,
// strips a consumed queueittoken with a redirect to the clean URL, and
// otherwise calls next. Any failure is logged and the request passes through.
func (h *Handler) RequireAdmission(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		req, err := httpctx.NewRequest(r, h.BodyLimit)
		if err != nil {
			h.passThrough(w, r, next, "body", err)
			return
		}

		ci, err := h.Integrations.Integration(r.Context())
		if err != nil {
			h.passThrough(w, r, next, "integration", err)
			return
		}

		requestURL := req.URL()
		cleanURL, queueitToken := StripToken(requestURL)

		var enq admission.EnqueueTokenProvider
		if h.Enqueue != nil {
			enq = h.Enqueue.ForRequest(req.ClientIP(), r.Header.Get("X-Forwarded-For"))
		}
		conn := admission.NewRequestConnector(h.CustomerID, h.SecretKey, req, httpctx.NewResponse(w), enq)

		result, err := conn.ValidateRequestByIntegrationConfig(cleanURL, queueitToken, ci)
		if err != nil {
			h.passThrough(w, r, next, "connector", err)
			return
		}

		outcome := result.Outcome()
		if h.Metrics != nil {
			h.Metrics.ObserveDecision(result.ActionType, outcome, time.Since(start))
		}
		if outcome != "pass" && outcome != "nomatch" {
			logInfo(r, "admission decision", "action", result.ActionType, "event_id", result.EventID,
				"outcome", outcome, "error_code", result.ErrorCode, "ajax", result.IsAjaxResult)
			h.record(r, req.ClientIP(), result, outcome)
		}

		if result.DoRedirect() {
			setNoCache(w)
			if result.IsAjaxResult {
				w.Header().Set(admission.AjaxRedirectHeader, result.AjaxRedirectURL())
				w.Header().Add("Access-Control-Expose-Headers", admission.AjaxRedirectHeader)
				w.WriteHeader(http.StatusOK)
				return
			}
			http.Redirect(w, r, result.RedirectURL, http.StatusFound)
			return
		}

		// Consumed token must not stay in the address bar where it can be shared.
		if requestURL != cleanURL && result.ActionType == admission.ActionQueue {
			logDebug(r, "stripping admission token", "event_id", result.EventID)
			http.Redirect(w, r, cleanURL, http.StatusFound)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// passThrough logs a failed decision and lets the visitor continue.
func (h *Handler) passThrough(w http.ResponseWriter, r *http.Request, next http.Handler, stage string, err error) {
	logError(r, "admission check failed, passing through", "stage", stage, "error", err)
	if h.Metrics != nil {
		h.Metrics.ObserveError(stage)
	}
	next.ServeHTTP(w, r)
}

// record writes the decision to the audit store. Failures are logged, never surfaced.
func (h *Handler) record(r *http.Request, clientIP string, result *admission.Result, outcome string) {
	if h.Audit == nil {
		return
	}
	ev := store.AdmissionEvent{
		EventID:      result.EventID,
		QueueID:      result.QueueID,
		ActionType:   result.ActionType,
		ActionName:   result.ActionName,
		Outcome:      outcome,
		RedirectType: result.RedirectType,
		ErrorCode:    result.ErrorCode,
		IPAddress:    optional(clientIP),
		UserAgent:    optional(r.UserAgent()),
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), auditTimeout)
	defer cancel()
	if err := h.Audit.RecordDecision(ctx, ev); err != nil {
		logWarn(r, "failed to record admission decision", "event_id", result.EventID, "error", err)
	}
}

// setNoCache stops browsers and CDNs from caching a redirect decision.
func setNoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "Fri, 01 Jan 1990 00:00:00 GMT")
}

// optional returns nil for blank strings so the column stores NULL.
func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
