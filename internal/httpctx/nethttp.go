// nethttp.go -- net/http adapters for Request and Response.
package httpctx

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// HTTPRequest adapts *http.Request to Request.
type HTTPRequest struct {
	r       *http.Request
	fullURL string
	body    string
}

// NewRequest wraps r. When bodyLimit > 0 up to bodyLimit bytes of the body are
// captured for body validators and the body is restored for downstream handlers.
func NewRequest(r *http.Request, bodyLimit int64) (*HTTPRequest, error) {
	req := &HTTPRequest{r: r, fullURL: AbsoluteURL(r)}
	if bodyLimit <= 0 || r.Body == nil || r.Body == http.NoBody {
		return req, nil
	}

	captured, err := io.ReadAll(io.LimitReader(r.Body, bodyLimit))
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	// Replay the captured prefix, then whatever was left past the limit.
	r.Body = readCloser{io.MultiReader(bytes.NewReader(captured), r.Body), r.Body}
	req.body = string(captured)
	return req, nil
}

// readCloser joins a replay reader with the original body's Close.
type readCloser struct {
	io.Reader
	io.Closer
}

func (h *HTTPRequest) UserAgent() string { return h.r.UserAgent() }

func (h *HTTPRequest) Header(name string) string {
	if strings.EqualFold(name, ClientIPHeader) {
		return h.ClientIP()
	}
	return h.r.Header.Get(name)
}

func (h *HTTPRequest) URL() string { return h.fullURL }

// ClientIP strips the port from RemoteAddr. chi's RealIP middleware stores a bare
// IP there, so both forms are accepted.
func (h *HTTPRequest) ClientIP() string {
	host, _, err := net.SplitHostPort(h.r.RemoteAddr)
	if err != nil {
		return h.r.RemoteAddr
	}
	return host
}

// CookieValue returns the URL-decoded cookie value. A value that fails to decode
// is treated as absent.
func (h *HTTPRequest) CookieValue(name string) (string, bool) {
	c, err := h.r.Cookie(name)
	if err != nil {
		return "", false
	}
	v, err := url.QueryUnescape(c.Value)
	if err != nil {
		return "", false
	}
	return v, true
}

func (h *HTTPRequest) Body() string { return h.body }

// AbsoluteURL rebuilds the full URL the client requested. Scheme comes from TLS
// or X-Forwarded-Proto, since a gate behind a load balancer rarely sees TLS itself.
func AbsoluteURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// HTTPResponse adapts http.ResponseWriter to Response.
type HTTPResponse struct {
	w http.ResponseWriter
}

// NewResponse wraps w.
func NewResponse(w http.ResponseWriter) *HTTPResponse {
	return &HTTPResponse{w: w}
}

// SetCookie writes a Path=/ cookie with a URL-encoded value.
// Domain is only set when non-blank.
func (h *HTTPResponse) SetCookie(name, value string, maxAge int, domain string, httpOnly, secure bool) {
	c := &http.Cookie{
		Name:     name,
		Value:    url.QueryEscape(value),
		Path:     "/",
		HttpOnly: httpOnly,
		Secure:   secure,
	}
	if strings.TrimSpace(domain) != "" {
		c.Domain = domain
	}
	// net/http treats MaxAge 0 as "unset" and -1 as "Max-Age=0".
	if maxAge <= 0 {
		c.MaxAge = -1
	} else {
		c.MaxAge = maxAge
	}
	http.SetCookie(h.w, c)
}
