package numtheory

import (
	"strconv"
	"strings"

	"github.com/RowanDark/cipherlab/internal/alphabet"
	"github.com/RowanDark/cipherlab/internal/cipherr"
)

// EncryptText maps each alphabet letter of text to its index and encrypts the
// index, returning space separated integers. Non-members are dropped. The
// modulus must exceed the alphabet size so every index is a valid plaintext.
func EncryptText(a *alphabet.Alphabet, k PublicKey, text string) (string, error) {
	if k.N <= int64(a.Size()) {
		return "", cipherr.Validationf("rsa text encrypt", "modulus n=%d must exceed alphabet size %d", k.N, a.Size())
	}
	indices := a.Indices(a.Normalize(text))
	parts := make([]string, 0, len(indices))
	for _, idx := range indices {
		c, err := k.Encrypt(int64(idx))
		if err != nil {
			return "", err
		}
		parts = append(parts, strconv.FormatInt(c, 10))
	}
	return strings.Join(parts, " "), nil
}

// DecryptText reverses EncryptText. Tokens that are not integers are format
// errors; a decrypted value outside the alphabet is a range error.
func DecryptText(a *alphabet.Alphabet, k PrivateKey, ciphertext string) (string, error) {
	values, err := ParseIntegers("rsa text decrypt", ciphertext)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, c := range values {
		m, err := k.Decrypt(c)
		if err != nil {
			return "", err
		}
		if m >= int64(a.Size()) {
			return "", cipherr.Rangef("rsa text decrypt", "decrypted value %d is not an alphabet index", m)
		}
		sb.WriteRune(a.CharAt(int(m)))
	}
	return sb.String(), nil
}

// ParseIntegers splits s on whitespace and commas and parses each token as a
// base-10 int64.
func ParseIntegers(op, s string) ([]int64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	values := make([]int64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, cipherr.Formatf(op, "%q is not an integer", f)
		}
		values = append(values, v)
	}
	return values, nil
}

// FormatIntegers joins values with single spaces.
func FormatIntegers(values []int64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, " ")
}
