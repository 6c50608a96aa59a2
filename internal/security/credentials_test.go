package security

import (
	"strings"
	"testing"
)

func TestSealOpen_RoundTrip(t *testing.T) {
	t.Parallel()

	box, errBox := NewRandomBox()
	if errBox != nil {
		t.Fatalf("new box: %v", errBox)
	}

	token, errSeal := box.Seal("sk-or-v1-abcdef0123456789")
	if errSeal != nil {
		t.Fatalf("seal: %v", errSeal)
	}
	if token == "" || strings.Contains(token, "sk-or-v1") {
		t.Fatalf("sealed token leaks plaintext: %q", token)
	}

	plain, errOpen := box.Open(token)
	if errOpen != nil {
		t.Fatalf("open: %v", errOpen)
	}
	if plain != "sk-or-v1-abcdef0123456789" {
		t.Fatalf("open = %q, want original plaintext", plain)
	}
}

func TestSealOpen_EmptyPassesThrough(t *testing.T) {
	t.Parallel()

	box, errBox := NewRandomBox()
	if errBox != nil {
		t.Fatalf("new box: %v", errBox)
	}
	token, errSeal := box.Seal("")
	if errSeal != nil || token != "" {
		t.Fatalf("seal empty = (%q, %v), want empty token", token, errSeal)
	}
	plain, errOpen := box.Open("")
	if errOpen != nil || plain != "" {
		t.Fatalf("open empty = (%q, %v), want empty plaintext", plain, errOpen)
	}
}

func TestOpen_WrongKeyFails(t *testing.T) {
	t.Parallel()

	first, _ := NewRandomBox()
	second, _ := NewRandomBox()
	token, errSeal := first.Seal("secret")
	if errSeal != nil {
		t.Fatalf("seal: %v", errSeal)
	}
	if _, errOpen := second.Open(token); errOpen == nil {
		t.Fatalf("expected open with wrong key to fail")
	}
}

func TestNewBox_RejectsBadKeys(t *testing.T) {
	t.Parallel()

	if _, err := NewBox("not-hex"); err == nil {
		t.Fatalf("expected error for non-hex key")
	}
	if _, err := NewBox("abcd"); err == nil {
		t.Fatalf("expected error for short key")
	}
}

func TestMaskCredential(t *testing.T) {
	t.Parallel()

	if got := MaskCredential(""); got != "" {
		t.Fatalf("mask empty = %q", got)
	}
	if got := MaskCredential("short"); got != "********" {
		t.Fatalf("mask short = %q", got)
	}
	got := MaskCredential("sk-or-v1-abcdef0123456789")
	if !strings.HasPrefix(got, "sk-o") || !strings.HasSuffix(got, "6789") || strings.Contains(got, "abcdef") {
		t.Fatalf("mask = %q", got)
	}
}
