// Package classical implements the letter-based historical ciphers: the shift
// family (Caesar, Vigenère, Beaufort), monoalphabetic substitution and Atbash,
// the Playfair-style digraph matrix, and the rail fence and columnar
// transpositions.
//
// Every function is a pure transform of its arguments. Key squares, key orders
// and rail buffers are rebuilt on each call and never shared, so all functions
// are safe for concurrent use.
package classical

import (
	"fmt"
	"strings"
)

// Mode selects the direction of a transform.
type Mode int

const (
	Encrypt Mode = iota
	Decrypt
)

func (m Mode) String() string {
	switch m {
	case Encrypt:
		return "encrypt"
	case Decrypt:
		return "decrypt"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts "encrypt"/"decrypt" and their short forms.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "encrypt", "enc", "e":
		return Encrypt, nil
	case "decrypt", "dec", "d":
		return Decrypt, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}
