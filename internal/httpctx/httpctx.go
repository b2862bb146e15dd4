// httpctx.go -- Request/response boundary consumed by the admission core.
//
// The core never touches net/http directly. It reads the inbound request
// through Request and writes cookies through Response, so decisions can be
// tested against plain mocks.
package httpctx

// ClientIPHeader is a pseudo-header. Looking it up returns the client IP
// instead of a real header value, so trigger rules can match on the caller's address.
const ClientIPHeader = "x-queueit-clientip"

// Request exposes the parts of an inbound request the admission core reads.
type Request interface {
	UserAgent() string
	// Header returns the named header (case-insensitive), or "" when absent.
	Header(name string) string
	// URL returns the absolute request URL, including the query string.
	URL() string
	// ClientIP returns the caller's address without port, or "" when unknown.
	ClientIP() string
	// CookieValue returns the decoded value of the named cookie and whether it was sent.
	CookieValue(name string) (string, bool)
	// Body returns the request body as text, or "" when it was not captured.
	Body() string
}

// Response exposes the cookie write the admission core performs.
// maxAge is in seconds; 0 deletes the cookie.
type Response interface {
	SetCookie(name, value string, maxAge int, domain string, httpOnly, secure bool)
}
