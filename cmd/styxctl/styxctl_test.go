package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MGallo-Code/styx/internal/signing"
	"github.com/MGallo-Code/styx/internal/token"
)

// execute runs styxctl with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// --- token mint ---

func TestTokenMint(t *testing.T) {
	t.Run("mints a token that validates", func(t *testing.T) {
		out, err := execute(t, "token", "mint", "--event", "e1", "--secret", "k", "--queue-id", "q1", "--extendable")
		if err != nil {
			t.Fatalf("mint failed: %v", err)
		}
		p := token.Parse(strings.TrimSpace(out))
		if p == nil {
			t.Fatal("expected a token")
		}
		if p.EventID != "e1" || p.QueueID != "q1" || !p.ExtendableCookie || p.RedirectType != "queue" {
			t.Errorf("unexpected params: %+v", p)
		}
		if code := p.Validate("k", "e1", "", time.Now()); code != token.CodeNone {
			t.Errorf("expected valid token, got %q", code)
		}
	})

	t.Run("validity and ip are embedded only when given", func(t *testing.T) {
		out, _ := execute(t, "token", "mint", "--event", "e1", "--secret", "k")
		p := token.Parse(strings.TrimSpace(out))
		if p.CookieValidityMinutes != nil || p.HashedIP != "" {
			t.Errorf("expected no cv/hip, got %+v", p)
		}

		out, _ = execute(t, "token", "mint", "--event", "e1", "--secret", "k", "--validity", "3", "--ip", "203.0.113.7")
		p = token.Parse(strings.TrimSpace(out))
		if p.CookieValidityMinutes == nil || *p.CookieValidityMinutes != 3 {
			t.Errorf("expected cv 3, got %v", p.CookieValidityMinutes)
		}
		if p.HashedIP != signing.Sign("k", "203.0.113.7") {
			t.Errorf("unexpected hip %q", p.HashedIP)
		}
	})

	t.Run("requires event and secret", func(t *testing.T) {
		if _, err := execute(t, "token", "mint", "--secret", "k"); err == nil {
			t.Error("expected error without --event")
		}
		if _, err := execute(t, "token", "mint", "--event", "e1"); err == nil {
			t.Error("expected error without --secret")
		}
	})
}

// --- token inspect ---

func TestTokenInspect(t *testing.T) {
	raw := token.Mint(token.Params{EventID: "e1", QueueID: "q1", Timestamp: time.Now().Add(time.Minute).Unix()}, "k")

	t.Run("prints fields and ok verdict", func(t *testing.T) {
		out, err := execute(t, "token", "inspect", raw, "--secret", "k")
		if err != nil {
			t.Fatalf("inspect failed: %v", err)
		}
		if !strings.Contains(out, "event:       e1") || !strings.Contains(out, "verdict:     ok") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("reports the failing check", func(t *testing.T) {
		out, err := execute(t, "token", "inspect", raw, "--secret", "wrong")
		if err == nil {
			t.Fatal("expected error for bad secret")
		}
		if !strings.Contains(out, "invalid (hash)") {
			t.Errorf("unexpected output:\n%s", out)
		}

		out, _ = execute(t, "token", "inspect", raw, "--secret", "k", "--event", "e2")
		if !strings.Contains(out, "invalid (eventid)") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("skips validation without secret", func(t *testing.T) {
		out, err := execute(t, "token", "inspect", raw)
		if err != nil {
			t.Fatalf("inspect failed: %v", err)
		}
		if !strings.Contains(out, "skipped") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})
}

// --- config check ---

func TestConfigCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "integration.json")
	doc := `{"Version":5,"Integrations":[{"Name":"vip","EventId":"e1","ActionType":"Queue","Triggers":[
		{"LogicalOperator":"And","TriggerParts":[
			{"ValidatorType":"UrlValidator","UrlPart":"PagePath","Operator":"Contains","ValueToCompare":"checkout"},
			{"ValidatorType":"CookieValidator","CookieName":"segment","Operator":"Equals","ValueToCompare":"vip"}]}]}]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	t.Run("summarizes document", func(t *testing.T) {
		out, err := execute(t, "config", "check", path)
		if err != nil {
			t.Fatalf("check failed: %v", err)
		}
		if !strings.Contains(out, "version 5, 1 integrations") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("reports matched integration", func(t *testing.T) {
		out, err := execute(t, "config", "check", path, "--url", "https://shop.example.com/checkout", "--cookie", "segment=vip")
		if err != nil {
			t.Fatalf("check failed: %v", err)
		}
		if !strings.Contains(out, `matched "vip" (action Queue, event e1)`) {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("reports no match", func(t *testing.T) {
		out, err := execute(t, "config", "check", path, "--url", "https://shop.example.com/checkout")
		if err != nil {
			t.Fatalf("check failed: %v", err)
		}
		if !strings.Contains(out, "no integration matched") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("rejects invalid json and malformed flags", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		os.WriteFile(bad, []byte("{"), 0o644)
		if _, err := execute(t, "config", "check", bad); err == nil {
			t.Error("expected error for invalid json")
		}
		if _, err := execute(t, "config", "check", path, "--url", "https://a.com/", "--header", "nope"); err == nil {
			t.Error("expected error for malformed header")
		}
	})
}
