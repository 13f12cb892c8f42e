package cipherr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMatchesSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		kind     Kind
	}{
		{"validation", Validationf("substitution", "key too short"), ErrValidation, KindValidation},
		{"range", Rangef("rsa", "m=%d exceeds n", 99), ErrRange, KindRange},
		{"format", Formatf("columnar", "bad length"), ErrFormat, KindFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("execute: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Fatalf("expected %v to match sentinel %v", wrapped, tt.sentinel)
			}
			kind, ok := KindOf(wrapped)
			if !ok || kind != tt.kind {
				t.Fatalf("expected kind %q, got %q (ok=%v)", tt.kind, kind, ok)
			}
		})
	}
}

func TestErrorMessageIncludesOperation(t *testing.T) {
	err := Rangef("rsa_encrypt", "message %d must be below modulus %d", 80, 77)
	want := "rsa_encrypt: message 80 must be below modulus 77"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestKindOfUntypedError(t *testing.T) {
	if _, ok := KindOf(errors.New("boom")); ok {
		t.Fatal("plain errors must not carry a kind")
	}
	if _, ok := KindOf(nil); ok {
		t.Fatal("nil must not carry a kind")
	}
	if kind, ok := KindOf(fmt.Errorf("outer: %w", ErrFormat)); !ok || kind != KindFormat {
		t.Fatalf("bare sentinel should map to format, got %q", kind)
	}
}
