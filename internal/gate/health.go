// health.go -- Health check handler for GET /health.
package gate

import (
	"context"
	"encoding/json"
	"net/http"
)

// HealthChecker is satisfied by store.RedisStore and store.PostgresStore.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// CheckHealth handles GET /health, pinging each configured backend and loading
// the integration config. Unconfigured backends report "disabled".
// Returns 200 if everything configured is healthy, 503 otherwise.
func (h *Handler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	status := struct {
		Integration string `json:"integration"`
		Postgres    string `json:"postgres"`
		Redis       string `json:"redis"`
	}{"ok", check(r, "postgres", h.PS), check(r, "redis", h.RS)}

	if _, err := h.Integrations.Integration(r.Context()); err != nil {
		logError(r, "integration health check failed", "error", err)
		status.Integration = "error"
	}

	w.Header().Set("Content-Type", "application/json")
	if status.Integration == "error" || status.Postgres == "error" || status.Redis == "error" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(status)
}

func check(r *http.Request, name string, hc HealthChecker) string {
	if hc == nil {
		return "disabled"
	}
	if err := hc.CheckHealth(r.Context()); err != nil {
		logError(r, name+" health check failed", "error", err)
		return "error"
	}
	return "ok"
}
