// proxy.go -- Reverse proxy to the protected origin.
package gate

import (
	"net/http"
	"net/http/httputil"
	"net/url"
)

// NewOriginProxy forwards admitted requests to origin with X-Forwarded-* set.
// Upstream failures answer 502 without details.
func NewOriginProxy(origin *url.URL) http.Handler {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(origin)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logError(r, "origin request failed", "origin", origin.Host, "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"message":"bad gateway"}`))
		},
	}
}
