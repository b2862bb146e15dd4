// state.go -- Cookie-backed session-state repository.
//
// An admitted visitor carries one signed cookie per event:
//
//	EventId=<id>&QueueId=<id>&FixedValidityMins=<int>&RedirectType=<label>&IssueTime=<unix>&Hash=<hmac>&Hip=<hmac>
//
// The signature covers EventId+QueueId+FixedValidityMins+RedirectType+IssueTime.
// Nothing is stored server-side; the browser round-trips the cookie on every request.
package state

import (
	"strconv"
	"strings"
	"time"

	"github.com/MGallo-Code/styx/internal/httpctx"
	"github.com/MGallo-Code/styx/internal/signing"
)

// CookiePrefix is joined with "_" and the event id to name each event's cookie.
const CookiePrefix = "QueueITAccepted-SDFrts345E-V3"

// CookieMaxAge is the browser lifetime of a session cookie, in seconds.
// Session validity is enforced separately via IssueTime.
const CookieMaxAge = 24 * 60 * 60

const (
	keyEventID       = "EventId"
	keyQueueID       = "QueueId"
	keyFixedValidity = "FixedValidityMins"
	keyRedirectType  = "RedirectType"
	keyIssueTime     = "IssueTime"
	keyHash          = "Hash"
	keyHashedIP      = "Hip"
)

// CookieName returns the session cookie name for eventID.
func CookieName(eventID string) string {
	return CookiePrefix + "_" + eventID
}

// CookieOptions are the caller-supplied attributes for session cookie writes.
type CookieOptions struct {
	Domain   string
	HttpOnly bool
	Secure   bool
}

// Info is the result of reading a session cookie.
type Info struct {
	Found        bool // cookie was present
	Valid        bool // present, signed, event-matching, unexpired and IP-matching
	QueueID      string
	RedirectType string
	HashedIP     string

	// FixedValidityMinutes is the raw cookie field; blank when the session
	// follows the caller's default validity.
	FixedValidityMinutes string
}

// Extendable reports whether the session may have its issue time refreshed.
// Sessions with a fixed validity are never extended.
func (i Info) Extendable() bool {
	return i.Valid && strings.TrimSpace(i.FixedValidityMinutes) == ""
}

// CookieRepository reads and writes session cookies for one request/response pair.
type CookieRepository struct {
	req  httpctx.Request
	resp httpctx.Response

	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// NewCookieRepository returns a repository bound to req and resp.
func NewCookieRepository(req httpctx.Request, resp httpctx.Response) *CookieRepository {
	return &CookieRepository{req: req, resp: resp, Now: time.Now}
}

// Store writes a fresh session cookie issued now.
// fixedValidityMinutes nil means the session follows the caller's default validity.
// Empty queueID and hashedIP segments are omitted.
func (r *CookieRepository) Store(eventID, queueID string, fixedValidityMinutes *int, opts CookieOptions, redirectType, hashedIP, secretKey string) {
	value := encode(eventID, queueID, fixedValidityMinutes, redirectType, hashedIP, r.Now().Unix(), secretKey)
	r.resp.SetCookie(CookieName(eventID), value, CookieMaxAge, opts.Domain, opts.HttpOnly, opts.Secure)
}

// GetState reads the session cookie for eventID.
// With validateTime, the session expires IssueTime + validity*60 seconds after issue,
// where validity is the cookie's FixedValidityMins if set, else cookieValidityMinutes.
func (r *CookieRepository) GetState(eventID string, cookieValidityMinutes int, secretKey string, validateTime bool) Info {
	raw, ok := r.req.CookieValue(CookieName(eventID))
	if !ok {
		return Info{}
	}

	fields := parseFields(raw)
	if !r.isValid(fields, eventID, cookieValidityMinutes, secretKey, validateTime) {
		return Info{Found: true}
	}
	return Info{
		Found:                true,
		Valid:                true,
		QueueID:              fields[keyQueueID],
		RedirectType:         fields[keyRedirectType],
		HashedIP:             fields[keyHashedIP],
		FixedValidityMinutes: fields[keyFixedValidity],
	}
}

// Cancel overwrites the session cookie with an empty, immediately expiring value.
// The write is always made with HttpOnly and Secure off, whatever opts says;
// the hosted queue pages rely on that.
func (r *CookieRepository) Cancel(eventID string, opts CookieOptions) {
	r.resp.SetCookie(CookieName(eventID), "", 0, opts.Domain, false, false)
}

// Reissue rewrites a currently valid session with a fresh issue time and a fresh
// browser lifetime, keeping every other field. Missing or invalid sessions are left alone.
func (r *CookieRepository) Reissue(eventID string, cookieValidityMinutes int, opts CookieOptions, secretKey string) {
	raw, ok := r.req.CookieValue(CookieName(eventID))
	if !ok {
		return
	}
	fields := parseFields(raw)
	if !r.isValid(fields, eventID, cookieValidityMinutes, secretKey, true) {
		return
	}

	var fixed *int
	if v, ok := fields[keyFixedValidity]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return
		}
		fixed = &n
	}

	value := encode(eventID, fields[keyQueueID], fixed, fields[keyRedirectType], fields[keyHashedIP], r.Now().Unix(), secretKey)
	r.resp.SetCookie(CookieName(eventID), value, CookieMaxAge, opts.Domain, opts.HttpOnly, opts.Secure)
}

// isValid checks required keys, signature, event binding, expiry and IP binding in that order.
//
// A numeric field that fails to parse during the expiry check makes the cookie
// valid, skipping the remaining checks. Existing sessions in the wild depend on
// this, so it is kept as is.
func (r *CookieRepository) isValid(fields map[string]string, eventID string, cookieValidityMinutes int, secretKey string, validateTime bool) bool {
	for _, key := range []string{keyEventID, keyRedirectType, keyIssueTime, keyHash} {
		if _, ok := fields[key]; !ok {
			return false
		}
	}

	fixed := fields[keyFixedValidity]
	expected := signing.Sign(secretKey, signedString(fields[keyEventID], fields[keyQueueID], fixed, fields[keyRedirectType], fields[keyIssueTime]))
	// Case-sensitive, unlike admission tokens.
	if expected != fields[keyHash] {
		return false
	}
	if !strings.EqualFold(eventID, fields[keyEventID]) {
		return false
	}

	if validateTime {
		validity := cookieValidityMinutes
		if strings.TrimSpace(fixed) != "" {
			n, err := strconv.Atoi(fixed)
			if err != nil {
				return true
			}
			validity = n
		}
		issued, err := strconv.ParseInt(fields[keyIssueTime], 10, 64)
		if err != nil {
			return true
		}
		if issued+int64(validity)*60 < r.Now().Unix() {
			return false
		}
	}

	if hip, ok := fields[keyHashedIP]; ok {
		if ip := r.req.ClientIP(); ip != "" && hip != signing.Sign(secretKey, ip) {
			return false
		}
	}
	return true
}

// encode serializes and signs a session record.
func encode(eventID, queueID string, fixedValidityMinutes *int, redirectType, hashedIP string, issueTime int64, secretKey string) string {
	fixed := ""
	if fixedValidityMinutes != nil {
		fixed = strconv.Itoa(*fixedValidityMinutes)
	}
	issued := strconv.FormatInt(issueTime, 10)
	hash := signing.Sign(secretKey, signedString(eventID, queueID, fixed, redirectType, issued))

	var b strings.Builder
	b.WriteString(keyEventID + "=" + eventID + "&")
	if strings.TrimSpace(queueID) != "" {
		b.WriteString(keyQueueID + "=" + queueID + "&")
	}
	if fixedValidityMinutes != nil {
		b.WriteString(keyFixedValidity + "=" + fixed + "&")
	}
	b.WriteString(keyRedirectType + "=" + redirectType)
	b.WriteString("&" + keyIssueTime + "=" + issued)
	b.WriteString("&" + keyHash + "=" + hash)
	if hashedIP != "" {
		b.WriteString("&" + keyHashedIP + "=" + hashedIP)
	}
	return b.String()
}

// signedString is the exact byte sequence a session signature covers.
func signedString(eventID, queueID, fixedValidity, redirectType, issueTime string) string {
	if strings.TrimSpace(queueID) == "" {
		queueID = ""
	}
	return eventID + queueID + fixedValidity + redirectType + issueTime
}

// parseFields decodes "k=v&k=v". A pair survives only if splitting it on "="
// yields exactly two parts once trailing empty parts are dropped, so "Hip="
// and "a=b=c" are discarded while "a=b=" keeps a=b.
func parseFields(raw string) map[string]string {
	fields := make(map[string]string)
	for _, pair := range strings.Split(raw, "&") {
		parts := trimTrailingEmpty(strings.Split(pair, "="))
		if len(parts) == 2 {
			fields[parts[0]] = parts[1]
		}
	}
	return fields
}

func trimTrailingEmpty(parts []string) []string {
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}
