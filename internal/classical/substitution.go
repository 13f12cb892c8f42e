package classical

import (
	"github.com/RowanDark/cipherlab/internal/alphabet"
	"github.com/RowanDark/cipherlab/internal/cipherr"
)

// ValidateSubstitutionKey checks that key, uppercased, is a permutation of
// the alphabet: exactly N members, each appearing once.
func ValidateSubstitutionKey(a *alphabet.Alphabet, key string) error {
	_, err := substitutionKey(a, key)
	return err
}

// substitutionKey returns, for each alphabet position, the position of the
// key symbol that replaces it.
func substitutionKey(a *alphabet.Alphabet, key string) ([]int, error) {
	runes := []rune(key)
	if len(runes) != a.Size() {
		return nil, cipherr.Validationf("substitution", "key must contain exactly %d letters, got %d", a.Size(), len(runes))
	}
	forward := make([]int, len(runes))
	seen := make(map[int]bool, len(runes))
	for i, r := range runes {
		idx, ok := a.IndexOf(r)
		if !ok {
			return nil, cipherr.Validationf("substitution", "key symbol %q is not in the alphabet", r)
		}
		if seen[idx] {
			return nil, cipherr.Validationf("substitution", "key symbol %q appears more than once", alphabet.Upper(r))
		}
		seen[idx] = true
		forward[i] = idx
	}
	return forward, nil
}

// Substitution replaces each letter with the key symbol at the same position.
// Decryption looks the letter up in the key and emits the alphabet symbol at
// that position. The key is validated before any output is produced.
func Substitution(a *alphabet.Alphabet, text, key string, mode Mode) (string, error) {
	forward, err := substitutionKey(a, key)
	if err != nil {
		return "", err
	}
	if mode == Decrypt {
		inverse := make([]int, len(forward))
		for pos, idx := range forward {
			inverse[idx] = pos
		}
		return a.Map(text, func(i int) int { return inverse[i] }), nil
	}
	return a.Map(text, func(i int) int { return forward[i] }), nil
}

// Atbash is substitution with the reversed alphabet as key. It is its own
// inverse.
func Atbash(a *alphabet.Alphabet, text string) string {
	// The reversed alphabet is always a valid permutation.
	out, _ := Substitution(a, text, a.Reversed(), Encrypt)
	return out
}
