package state_test

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/MGallo-Code/styx/internal/signing"
	"github.com/MGallo-Code/styx/internal/state"
	"github.com/MGallo-Code/styx/internal/testutil"
)

const (
	testSecret = "secret-key-for-tests"
	testEvent  = "event1"
)

var (
	issuedAt   = time.Unix(1_700_000_000, 0)
	cookieName = state.CookieName(testEvent)
)

// newRepo returns a repository over fresh mocks with its clock pinned to now.
func newRepo(now time.Time) (*state.CookieRepository, *testutil.MockRequest, *testutil.MockResponse) {
	req := testutil.NewMockRequest("https://shop.example.com/")
	resp := &testutil.MockResponse{}
	repo := state.NewCookieRepository(req, resp)
	repo.Now = func() time.Time { return now }
	return repo, req, resp
}

// issue stores a session at issuedAt and returns the cookie value written.
func issue(t *testing.T, queueID string, fixed *int, redirectType, hashedIP string) string {
	t.Helper()
	repo, _, resp := newRepo(issuedAt)
	repo.Store(testEvent, queueID, fixed, state.CookieOptions{}, redirectType, hashedIP, testSecret)
	w, ok := resp.Last(cookieName)
	if !ok {
		t.Fatal("expected Store to write a cookie")
	}
	return w.Value
}

// readAt reads value back through a repository whose clock is now.
func readAt(now time.Time, value, clientIP string, validity int, validateTime bool) state.Info {
	repo, req, _ := newRepo(now)
	req.IP = clientIP
	req.Cookies[cookieName] = value
	return repo.GetState(testEvent, validity, testSecret, validateTime)
}

func intPtr(n int) *int { return &n }

// signedCookie builds a cookie value with a correct signature over arbitrary field text.
func signedCookie(eventID, queueID, fixed, redirectType, issueTime string) string {
	hash := signing.Sign(testSecret, eventID+queueID+fixed+redirectType+issueTime)
	v := "EventId=" + eventID + "&"
	if queueID != "" {
		v += "QueueId=" + queueID + "&"
	}
	if fixed != "" {
		v += "FixedValidityMins=" + fixed + "&"
	}
	return v + "RedirectType=" + redirectType + "&IssueTime=" + issueTime + "&Hash=" + hash
}

// --- Store ---

func TestStore(t *testing.T) {
	t.Run("writes canonical cookie with 24h max-age and caller flags", func(t *testing.T) {
		repo, _, resp := newRepo(issuedAt)
		repo.Store(testEvent, "queue-1", intPtr(3), state.CookieOptions{Domain: ".example.com", HttpOnly: true, Secure: true}, "queue", "iphash", testSecret)

		w, ok := resp.Last(cookieName)
		if !ok {
			t.Fatal("expected cookie write")
		}
		if w.Name != "QueueITAccepted-SDFrts345E-V3_event1" {
			t.Errorf("Name: unexpected %q", w.Name)
		}
		if w.MaxAge != 86400 || w.Domain != ".example.com" || !w.HttpOnly || !w.Secure {
			t.Errorf("unexpected attributes: %+v", w)
		}

		ts := strconv.FormatInt(issuedAt.Unix(), 10)
		hash := signing.Sign(testSecret, "event1queue-13queue"+ts)
		want := "EventId=event1&QueueId=queue-1&FixedValidityMins=3&RedirectType=queue&IssueTime=" + ts + "&Hash=" + hash + "&Hip=iphash"
		if w.Value != want {
			t.Errorf("Value:\n expected %q\n      got %q", want, w.Value)
		}
	})

	t.Run("omits blank queue id, absent fixed validity and empty ip", func(t *testing.T) {
		v := issue(t, "  ", nil, "idle", "")
		for _, key := range []string{"QueueId=", "FixedValidityMins=", "Hip="} {
			if strings.Contains(v, key) {
				t.Errorf("expected no %q in %q", key, v)
			}
		}
	})
}

// --- GetState ---

func TestGetState(t *testing.T) {
	t.Run("missing cookie is not found", func(t *testing.T) {
		repo, _, _ := newRepo(issuedAt)
		info := repo.GetState(testEvent, 10, testSecret, true)
		if info.Found || info.Valid {
			t.Errorf("expected zero Info, got %+v", info)
		}
	})

	t.Run("round trip reproduces every field", func(t *testing.T) {
		v := issue(t, "queue-1", intPtr(20), "queue", "iphash")
		info := readAt(issuedAt.Add(48*time.Hour), v, "", 10, false)
		if !info.Found || !info.Valid {
			t.Fatalf("expected found and valid, got %+v", info)
		}
		if info.QueueID != "queue-1" || info.RedirectType != "queue" || info.HashedIP != "iphash" || info.FixedValidityMinutes != "20" {
			t.Errorf("unexpected fields: %+v", info)
		}
		if info.Extendable() {
			t.Error("expected fixed-validity session to not be extendable")
		}
	})

	t.Run("session without fixed validity is extendable", func(t *testing.T) {
		v := issue(t, "queue-1", nil, "queue", "")
		info := readAt(issuedAt, v, "", 10, true)
		if !info.Extendable() {
			t.Errorf("expected extendable, got %+v", info)
		}
	})

	t.Run("tampering with any signed field invalidates", func(t *testing.T) {
		v := issue(t, "queue-1", intPtr(3), "queue", "")
		tampered := []string{
			strings.Replace(v, "QueueId=queue-1", "QueueId=queue-2", 1),
			strings.Replace(v, "RedirectType=queue", "RedirectType=idle", 1),
			strings.Replace(v, "FixedValidityMins=3", "FixedValidityMins=4", 1),
			strings.Replace(v, "IssueTime=1700000000", "IssueTime=1700000001", 1),
		}
		for _, tv := range tampered {
			info := readAt(issuedAt, tv, "", 10, false)
			if !info.Found || info.Valid {
				t.Errorf("expected found and invalid for %q, got %+v", tv, info)
			}
		}
	})

	t.Run("signature comparison is case-sensitive", func(t *testing.T) {
		v := issue(t, "queue-1", nil, "queue", "")
		i := strings.Index(v, "&Hash=") + len("&Hash=")
		upper := v[:i] + strings.ToUpper(v[i:])
		if info := readAt(issuedAt, upper, "", 10, false); info.Valid {
			t.Error("expected uppercased hash to be invalid")
		}
	})

	t.Run("missing required key invalidates", func(t *testing.T) {
		v := issue(t, "queue-1", nil, "queue", "")
		stripped := strings.Replace(v, "RedirectType=queue&", "", 1)
		if info := readAt(issuedAt, stripped, "", 10, false); !info.Found || info.Valid {
			t.Errorf("expected found and invalid, got %+v", info)
		}
	})

	t.Run("garbage value is found but invalid", func(t *testing.T) {
		info := readAt(issuedAt, "not a cookie", "", 10, false)
		if !info.Found || info.Valid {
			t.Errorf("expected found and invalid, got %+v", info)
		}
	})

	t.Run("event id match is case-insensitive", func(t *testing.T) {
		ts := strconv.FormatInt(issuedAt.Unix(), 10)
		v := signedCookie("EVENT1", "", "", "queue", ts)
		if info := readAt(issuedAt, v, "", 10, true); !info.Valid {
			t.Errorf("expected valid, got %+v", info)
		}
	})

	t.Run("different event is invalid", func(t *testing.T) {
		ts := strconv.FormatInt(issuedAt.Unix(), 10)
		v := signedCookie("event2", "", "", "queue", ts)
		if info := readAt(issuedAt, v, "", 10, true); info.Valid {
			t.Error("expected invalid")
		}
	})

	t.Run("expiry boundary", func(t *testing.T) {
		v := issue(t, "queue-1", nil, "queue", "")
		validity := 10
		lifetime := time.Duration(validity) * time.Minute

		if info := readAt(issuedAt.Add(lifetime+time.Second), v, "", validity, true); info.Valid {
			t.Error("expected session one second past validity to be invalid")
		}
		if info := readAt(issuedAt.Add(lifetime-time.Second), v, "", validity, true); !info.Valid {
			t.Error("expected session one second before expiry to be valid")
		}
		if info := readAt(issuedAt.Add(lifetime+time.Hour), v, "", validity, false); !info.Valid {
			t.Error("expected expired session to be valid when time is not validated")
		}
	})

	t.Run("fixed validity overrides caller validity", func(t *testing.T) {
		v := issue(t, "queue-1", intPtr(3), "queue", "")
		if info := readAt(issuedAt.Add(5*time.Minute), v, "", 60, true); info.Valid {
			t.Error("expected fixed 3 minute session to be expired after 5 minutes")
		}
	})

	t.Run("non-numeric fixed validity is treated as valid", func(t *testing.T) {
		ts := strconv.FormatInt(issuedAt.Unix(), 10)
		v := signedCookie(testEvent, "queue-1", "abc", "queue", ts)
		info := readAt(issuedAt.Add(365*24*time.Hour), v, "", 10, true)
		if !info.Valid {
			t.Errorf("expected valid, got %+v", info)
		}
	})

	t.Run("non-numeric issue time is treated as valid", func(t *testing.T) {
		v := signedCookie(testEvent, "", "", "queue", "yesterday")
		if info := readAt(issuedAt, v, "", 10, true); !info.Valid {
			t.Errorf("expected valid, got %+v", info)
		}
	})

	t.Run("hashed ip must match known client ip", func(t *testing.T) {
		v := issue(t, "queue-1", nil, "queue", signing.Sign(testSecret, "10.0.0.1"))
		if info := readAt(issuedAt, v, "10.0.0.1", 10, true); !info.Valid {
			t.Error("expected matching ip to be valid")
		}
		if info := readAt(issuedAt, v, "10.0.0.2", 10, true); info.Valid {
			t.Error("expected other ip to be invalid")
		}
		if info := readAt(issuedAt, v, "", 10, true); !info.Valid {
			t.Error("expected unknown client ip to skip the check")
		}
	})

	t.Run("empty Hip pair is dropped", func(t *testing.T) {
		v := issue(t, "queue-1", nil, "queue", "") + "&Hip="
		info := readAt(issuedAt, v, "10.0.0.9", 10, true)
		if !info.Valid || info.HashedIP != "" {
			t.Errorf("expected valid with no hashed ip, got %+v", info)
		}
	})
}

// --- Cancel ---

func TestCancel(t *testing.T) {
	repo, _, resp := newRepo(issuedAt)
	repo.Cancel(testEvent, state.CookieOptions{Domain: ".example.com", HttpOnly: true, Secure: true})

	w, ok := resp.Last(cookieName)
	if !ok {
		t.Fatal("expected cookie write")
	}
	if w.Value != "" || w.MaxAge != 0 || w.Domain != ".example.com" {
		t.Errorf("unexpected cancel write: %+v", w)
	}
	if w.HttpOnly || w.Secure {
		t.Errorf("expected cancel write with HttpOnly and Secure off, got %+v", w)
	}
}

// --- Reissue ---

func TestReissue(t *testing.T) {
	opts := state.CookieOptions{Domain: "example.com", HttpOnly: true}

	t.Run("missing cookie is a no-op", func(t *testing.T) {
		repo, _, resp := newRepo(issuedAt)
		repo.Reissue(testEvent, 10, opts, testSecret)
		if len(resp.Writes) != 0 {
			t.Errorf("expected no writes, got %d", len(resp.Writes))
		}
	})

	t.Run("expired cookie is a no-op", func(t *testing.T) {
		v := issue(t, "queue-1", nil, "queue", "")
		repo, req, resp := newRepo(issuedAt.Add(time.Hour))
		req.Cookies[cookieName] = v
		repo.Reissue(testEvent, 10, opts, testSecret)
		if len(resp.Writes) != 0 {
			t.Errorf("expected no writes, got %d", len(resp.Writes))
		}
	})

	t.Run("valid cookie is rewritten with fresh issue time", func(t *testing.T) {
		v := issue(t, "queue-1", intPtr(30), "queue", "iphash")
		later := issuedAt.Add(5 * time.Minute)
		repo, req, resp := newRepo(later)
		req.Cookies[cookieName] = v
		repo.Reissue(testEvent, 10, opts, testSecret)

		w, ok := resp.Last(cookieName)
		if !ok {
			t.Fatal("expected cookie write")
		}
		if !strings.Contains(w.Value, "IssueTime="+strconv.FormatInt(later.Unix(), 10)) {
			t.Errorf("expected refreshed issue time in %q", w.Value)
		}
		if w.MaxAge != state.CookieMaxAge || w.Domain != "example.com" || !w.HttpOnly || w.Secure {
			t.Errorf("unexpected attributes: %+v", w)
		}

		info := readAt(later, w.Value, "", 10, true)
		if !info.Valid || info.QueueID != "queue-1" || info.FixedValidityMinutes != "30" || info.HashedIP != "iphash" {
			t.Errorf("expected fields preserved, got %+v", info)
		}
	})

	t.Run("non-numeric fixed validity is a no-op", func(t *testing.T) {
		ts := strconv.FormatInt(issuedAt.Unix(), 10)
		repo, req, resp := newRepo(issuedAt)
		req.Cookies[cookieName] = signedCookie(testEvent, "", "abc", "queue", ts)
		repo.Reissue(testEvent, 10, opts, testSecret)
		if len(resp.Writes) != 0 {
			t.Errorf("expected no writes, got %d", len(resp.Writes))
		}
	})
}
