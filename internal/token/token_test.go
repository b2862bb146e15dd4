package token

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/MGallo-Code/styx/internal/signing"
)

const testSecret = "4e1deweb-a4a6-4c2b-8e1d-6f2f4d1e7d3e"

// fixedNow is the reference clock for validation tests.
var fixedNow = time.Unix(1_700_000_000, 0)

// signed appends a valid h_ segment to unsigned.
func signed(unsigned string) string {
	return unsigned + "~h_" + signing.Sign(testSecret, unsigned)
}

// --- Parse ---

func TestParse(t *testing.T) {
	t.Run("returns nil for blank input", func(t *testing.T) {
		for _, raw := range []string{"", "   ", "\t"} {
			if got := Parse(raw); got != nil {
				t.Errorf("Parse(%q): expected nil, got %+v", raw, got)
			}
		}
	})

	t.Run("decodes every known key", func(t *testing.T) {
		raw := "ts_1700000300~cv_3~e_event1~q_queue-1~ce_True~rt_queue~hip_abc~h_DEADBEEF"
		p := Parse(raw)
		if p == nil {
			t.Fatal("expected params, got nil")
		}
		if p.Timestamp != 1700000300 {
			t.Errorf("Timestamp: expected 1700000300, got %d", p.Timestamp)
		}
		if p.CookieValidityMinutes == nil || *p.CookieValidityMinutes != 3 {
			t.Errorf("CookieValidityMinutes: expected 3, got %v", p.CookieValidityMinutes)
		}
		if p.EventID != "event1" {
			t.Errorf("EventID: expected %q, got %q", "event1", p.EventID)
		}
		if p.QueueID != "queue-1" {
			t.Errorf("QueueID: expected %q, got %q", "queue-1", p.QueueID)
		}
		if !p.ExtendableCookie {
			t.Error("ExtendableCookie: expected true for \"True\"")
		}
		if p.RedirectType != "queue" {
			t.Errorf("RedirectType: expected %q, got %q", "queue", p.RedirectType)
		}
		if p.HashedIP != "abc" {
			t.Errorf("HashedIP: expected %q, got %q", "abc", p.HashedIP)
		}
		if p.Hash != "DEADBEEF" {
			t.Errorf("Hash: expected %q, got %q", "DEADBEEF", p.Hash)
		}
		if p.Raw != raw {
			t.Errorf("Raw: expected %q, got %q", raw, p.Raw)
		}
	})

	t.Run("strips the hash segment to produce the signed bytes", func(t *testing.T) {
		p := Parse("e_event1~ts_1~h_abc~rt_queue")
		want := "e_event1~ts_1~rt_queue"
		if p.RawWithoutHash != want {
			t.Errorf("RawWithoutHash: expected %q, got %q", want, p.RawWithoutHash)
		}
	})

	t.Run("ignores unknown keys and segments without separator", func(t *testing.T) {
		p := Parse("e_event1~zz_future~garbage~ts_5")
		if p.EventID != "event1" || p.Timestamp != 5 {
			t.Errorf("unexpected params: %+v", p)
		}
	})

	t.Run("skips non-numeric cookie validity and timestamp", func(t *testing.T) {
		p := Parse("e_event1~cv_abc~ts_soon")
		if p.CookieValidityMinutes != nil {
			t.Errorf("CookieValidityMinutes: expected nil, got %d", *p.CookieValidityMinutes)
		}
		if p.Timestamp != 0 {
			t.Errorf("Timestamp: expected 0, got %d", p.Timestamp)
		}
	})

	t.Run("splits key from value on the first underscore only", func(t *testing.T) {
		p := Parse("q_a_b_c~e_event1")
		if p.QueueID != "a_b_c" {
			t.Errorf("QueueID: expected %q, got %q", "a_b_c", p.QueueID)
		}
	})

	t.Run("non-true extendable text is false", func(t *testing.T) {
		p := Parse("ce_yes")
		if p.ExtendableCookie {
			t.Error("ExtendableCookie: expected false for \"yes\"")
		}
	})
}

// --- Validate ---

func TestValidate(t *testing.T) {
	future := fixedNow.Add(3 * time.Minute).Unix()
	past := fixedNow.Add(-time.Second).Unix()

	tokenWith := func(eventID string, ts int64, extra string) string {
		unsigned := "e_" + eventID + "~ts_" + itoa(ts) + "~rt_queue" + extra
		return signed(unsigned)
	}

	t.Run("valid token returns CodeNone", func(t *testing.T) {
		p := Parse(tokenWith("event1", future, ""))
		if code := p.Validate(testSecret, "event1", "", fixedNow); code != CodeNone {
			t.Errorf("expected CodeNone, got %q", code)
		}
	})

	t.Run("hash comparison is case-insensitive", func(t *testing.T) {
		unsigned := "e_event1~ts_" + itoa(future)
		raw := unsigned + "~h_" + strings.ToUpper(signing.Sign(testSecret, unsigned))
		if code := Parse(raw).Validate(testSecret, "event1", "", fixedNow); code != CodeNone {
			t.Errorf("expected CodeNone, got %q", code)
		}
	})

	t.Run("wrong signature fails with hash even when other fields are valid", func(t *testing.T) {
		raw := "e_event1~ts_" + itoa(future) + "~h_" + signing.Sign("other-secret", "e_event1~ts_"+itoa(future))
		if code := Parse(raw).Validate(testSecret, "event1", "", fixedNow); code != CodeHash {
			t.Errorf("expected %q, got %q", CodeHash, code)
		}
	})

	t.Run("tampered field fails with hash", func(t *testing.T) {
		raw := tokenWith("event1", future, "")
		raw = strings.Replace(raw, "rt_queue", "rt_idle", 1)
		if code := Parse(raw).Validate(testSecret, "event1", "", fixedNow); code != CodeHash {
			t.Errorf("expected %q, got %q", CodeHash, code)
		}
	})

	t.Run("hash is reported before expiry", func(t *testing.T) {
		raw := "e_event1~ts_" + itoa(past) + "~h_bad"
		if code := Parse(raw).Validate(testSecret, "event1", "", fixedNow); code != CodeHash {
			t.Errorf("expected %q, got %q", CodeHash, code)
		}
	})

	t.Run("event mismatch fails with eventid", func(t *testing.T) {
		p := Parse(tokenWith("event2", future, ""))
		if code := p.Validate(testSecret, "event1", "", fixedNow); code != CodeEventID {
			t.Errorf("expected %q, got %q", CodeEventID, code)
		}
	})

	t.Run("event comparison is case-insensitive", func(t *testing.T) {
		p := Parse(tokenWith("EVENT1", future, ""))
		if code := p.Validate(testSecret, "event1", "", fixedNow); code != CodeNone {
			t.Errorf("expected CodeNone, got %q", code)
		}
	})

	t.Run("expired token fails with timestamp", func(t *testing.T) {
		p := Parse(tokenWith("event1", past, ""))
		if code := p.Validate(testSecret, "event1", "", fixedNow); code != CodeTimestamp {
			t.Errorf("expected %q, got %q", CodeTimestamp, code)
		}
	})

	t.Run("timestamp equal to now is not expired", func(t *testing.T) {
		p := Parse(tokenWith("event1", fixedNow.Unix(), ""))
		if code := p.Validate(testSecret, "event1", "", fixedNow); code != CodeNone {
			t.Errorf("expected CodeNone, got %q", code)
		}
	})

	t.Run("mismatched client IP fails with ip", func(t *testing.T) {
		hip := signing.Sign(testSecret, "10.0.0.1")
		p := Parse(tokenWith("event1", future, "~hip_"+hip))
		if code := p.Validate(testSecret, "event1", "10.0.0.2", fixedNow); code != CodeIP {
			t.Errorf("expected %q, got %q", CodeIP, code)
		}
	})

	t.Run("matching client IP passes", func(t *testing.T) {
		hip := strings.ToUpper(signing.Sign(testSecret, "10.0.0.1"))
		p := Parse(tokenWith("event1", future, "~hip_"+hip))
		if code := p.Validate(testSecret, "event1", "10.0.0.1", fixedNow); code != CodeNone {
			t.Errorf("expected CodeNone, got %q", code)
		}
	})

	t.Run("IP check skipped when caller has no IP", func(t *testing.T) {
		p := Parse(tokenWith("event1", future, "~hip_whatever"))
		if code := p.Validate(testSecret, "event1", "", fixedNow); code != CodeNone {
			t.Errorf("expected CodeNone, got %q", code)
		}
	})
}

// --- Mint ---

func TestMint(t *testing.T) {
	t.Run("minted token parses back and validates", func(t *testing.T) {
		cv := 3
		raw := Mint(Params{
			EventID:               "event1",
			QueueID:               "queue-1",
			Timestamp:             fixedNow.Add(time.Minute).Unix(),
			CookieValidityMinutes: &cv,
			RedirectType:          "queue",
		}, testSecret)

		p := Parse(raw)
		if code := p.Validate(testSecret, "event1", "", fixedNow); code != CodeNone {
			t.Fatalf("expected CodeNone, got %q (token %q)", code, raw)
		}
		if p.QueueID != "queue-1" || p.RedirectType != "queue" {
			t.Errorf("unexpected params: %+v", p)
		}
		if p.CookieValidityMinutes == nil || *p.CookieValidityMinutes != 3 {
			t.Errorf("CookieValidityMinutes: expected 3, got %v", p.CookieValidityMinutes)
		}
	})

	t.Run("omits empty optional segments", func(t *testing.T) {
		raw := Mint(Params{EventID: "event1", Timestamp: 10}, testSecret)
		for _, seg := range []string{"q_", "cv_", "rt_", "hip_"} {
			if strings.Contains(raw, "~"+seg) {
				t.Errorf("expected no %q segment in %q", seg, raw)
			}
		}
	})
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
