package observability

import (
	"strings"
	"testing"
)

func TestSanitizer_Levels(t *testing.T) {
	prompt := "the fox emails fox@example.com from 10.0.0.1"

	if got := NewSanitizer(PIILevelNone, "salt").Prompt(prompt); got != "[REDACTED]" {
		t.Fatalf("none: got %q", got)
	}
	if got := NewSanitizer(PIILevelFull, "salt").Prompt(prompt); got != prompt {
		t.Fatalf("full: got %q", got)
	}

	hashed := NewSanitizer(PIILevelHashed, "salt").Prompt(prompt)
	if strings.Contains(hashed, "fox@example.com") || strings.Contains(hashed, "10.0.0.1") {
		t.Fatalf("hashed prompt leaks contact details: %q", hashed)
	}
	if !strings.HasPrefix(hashed, "the fox emails [EMAIL:") || !strings.Contains(hashed, "[IP:") {
		t.Fatalf("unexpected hashed prompt %q", hashed)
	}
}

func TestSanitizer_UserIDIsSaltedAndStable(t *testing.T) {
	a := NewSanitizer(PIILevelHashed, "salt-a")
	b := NewSanitizer(PIILevelHashed, "salt-b")

	if a.UserID("alice") != a.UserID("alice") {
		t.Fatalf("hash must be stable")
	}
	if a.UserID("alice") == b.UserID("alice") {
		t.Fatalf("hash must depend on the salt")
	}
	if len(a.UserID("alice")) != 8 || a.UserID("") != "" {
		t.Fatalf("unexpected hash %q", a.UserID("alice"))
	}
	if NewSanitizer("bogus", "s").UserID("alice") == "alice" {
		t.Fatalf("unknown levels must not record raw ids")
	}
}
