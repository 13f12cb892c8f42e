package classical

import "github.com/RowanDark/cipherlab/internal/alphabet"

// Caesar shifts every letter by shift positions. Decryption applies the
// complementary shift N-s. Shifts outside [0, N) are reduced first.
func Caesar(a *alphabet.Alphabet, text string, shift int, mode Mode) string {
	n := a.Size()
	s := ((shift % n) + n) % n
	if mode == Decrypt {
		s = (n - s) % n
	}
	return a.Map(text, func(i int) int {
		return (i + s) % n
	})
}

// Vigenere adds the running key to each letter. The key pointer advances only
// on alphabet members, so spaces and punctuation consume no key material.
// An empty normalized key leaves text unchanged.
func Vigenere(a *alphabet.Alphabet, text, key string, mode Mode) string {
	k := a.Indices(a.Normalize(key))
	if len(k) == 0 {
		return text
	}
	n := a.Size()
	pos := 0
	return a.Map(text, func(i int) int {
		shift := k[pos%len(k)]
		pos++
		if mode == Decrypt {
			return (i - shift + n) % n
		}
		return (i + shift) % n
	})
}

// Beaufort computes key-minus-letter for every letter. The transform is its
// own inverse, so there is no mode. An empty normalized key leaves text
// unchanged.
func Beaufort(a *alphabet.Alphabet, text, key string) string {
	k := a.Indices(a.Normalize(key))
	if len(k) == 0 {
		return text
	}
	n := a.Size()
	pos := 0
	return a.Map(text, func(i int) int {
		shift := k[pos%len(k)]
		pos++
		return (shift - i + n) % n
	})
}
