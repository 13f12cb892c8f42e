package classical

import (
	"errors"
	"strings"
	"testing"

	"github.com/RowanDark/cipherlab/internal/cipherr"
)

const wikiPlain = "WE ARE DISCOVERED FLEE AT ONCE"

func TestRailFenceKnownVector(t *testing.T) {
	got := RailFence(wikiPlain, 3, Encrypt)
	if got != "WECRLTEERDSOEEFEAOCAIVDEN" {
		t.Fatalf("unexpected ciphertext %q", got)
	}
	if back := RailFence(got, 3, Decrypt); back != "WEAREDISCOVEREDFLEEATONCE" {
		t.Fatalf("unexpected plaintext %q", back)
	}
}

func TestRailFenceRoundTrip(t *testing.T) {
	texts := []string{wikiPlain, "Merhaba dünya, nasılsın?", "ab", "x", "İğne ile kuyu kazmak"}
	for rails := 2; rails <= 10; rails++ {
		for _, text := range texts {
			enc := RailFence(text, rails, Encrypt)
			want := string(stripAndUpper(text))
			if dec := RailFence(enc, rails, Decrypt); dec != want {
				t.Fatalf("rails %d: round trip of %q gave %q, want %q", rails, text, dec, want)
			}
		}
	}
}

func TestRailFenceSingleRailIsIdentity(t *testing.T) {
	for _, rails := range []int{1, 0, -3} {
		if got := RailFence("ab c", rails, Encrypt); got != "ABC" {
			t.Fatalf("rails %d: expected ABC, got %q", rails, got)
		}
		if got := RailFence("ABC", rails, Decrypt); got != "ABC" {
			t.Fatalf("rails %d: expected ABC, got %q", rails, got)
		}
	}
}

func TestRailFenceMoreRailsThanText(t *testing.T) {
	enc := RailFence("abc", 8, Encrypt)
	if enc != "ABC" {
		t.Fatalf("expected ABC, got %q", enc)
	}
	if dec := RailFence(enc, 8, Decrypt); dec != "ABC" {
		t.Fatalf("expected ABC, got %q", dec)
	}
}

func TestKeyOrder(t *testing.T) {
	tests := []struct {
		key  string
		want []int
	}{
		{"ZEBRAS", []int{5, 2, 1, 3, 0, 4}},
		{"BANANA", []int{3, 0, 4, 1, 5, 2}},
		{"çay", []int{1, 0, 2}},
		{"ıi", []int{0, 1}},
		{"B2A", []int{2, 0, 1}},
		{"a1 b2", []int{2, 0, 3, 1}},
		{"", []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := KeyOrder(tt.key)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestColumnarKnownVector(t *testing.T) {
	got, err := Columnar(wikiPlain, "ZEBRAS", Encrypt)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if got != "EVLNXACDTXESEAXROFOXDEECXWIREE" {
		t.Fatalf("unexpected ciphertext %q", got)
	}
	back, err := Columnar(got, "ZEBRAS", Decrypt)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if back != "WEAREDISCOVEREDFLEEATONCEXXXXX" {
		t.Fatalf("unexpected plaintext %q", back)
	}
}

func TestColumnarDecryptUnpaddedCiphertext(t *testing.T) {
	// Irregular grid: only the first column holds five characters.
	got, err := Columnar("EVLNACDTESEAROFODEECWIREE", "ZEBRAS", Decrypt)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got != "WEAREDISCOVEREDFLEEATONCE" {
		t.Fatalf("unexpected plaintext %q", got)
	}
}

func TestColumnarRoundTrip(t *testing.T) {
	texts := []string{wikiPlain, "Merhaba dünya", "abc", "çok gizli mesaj!"}
	keys := []string{"ZEBRAS", "anahtar", "k", "LİMONATA"}
	for _, key := range keys {
		cols := len(KeyOrder(key))
		for _, text := range texts {
			enc, err := Columnar(text, key, Encrypt)
			if err != nil {
				t.Fatalf("encrypt: %v", err)
			}
			dec, err := Columnar(enc, key, Decrypt)
			if err != nil {
				t.Fatalf("decrypt: %v", err)
			}
			want := string(stripAndUpper(text))
			if pad := (cols - len([]rune(want))%cols) % cols; pad > 0 {
				want += strings.Repeat(string(ColumnarFiller), pad)
			}
			if dec != want {
				t.Fatalf("key %q: round trip of %q gave %q, want %q", key, text, dec, want)
			}
		}
	}
}

func TestColumnarFormatErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		key  string
		mode Mode
	}{
		{"empty key encrypt", "abc", "", Encrypt},
		{"blank key decrypt", "abc", "   ", Decrypt},
		{"ciphertext shorter than key", "ABC", "ZEBRAS", Decrypt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Columnar(tt.text, tt.key, tt.mode)
			if !errors.Is(err, cipherr.ErrFormat) {
				t.Fatalf("expected format error, got %v", err)
			}
		})
	}
}

func TestColumnarEmptyText(t *testing.T) {
	got, err := Columnar("   ", "KEY", Encrypt)
	if err != nil || got != "" {
		t.Fatalf("expected empty output, got %q, %v", got, err)
	}
}
