package numtheory

import (
	"github.com/RowanDark/cipherlab/internal/cipherr"
)

// KeyPair holds every value derived from the primes p and q and the public
// exponent e.
type KeyPair struct {
	P   int64 `json:"p"`
	Q   int64 `json:"q"`
	N   int64 `json:"n"`
	Phi int64 `json:"phi"`
	E   int64 `json:"e"`
	D   int64 `json:"d"`
}

// PublicKey is the (n, e) half of a key pair.
type PublicKey struct {
	N int64 `json:"n"`
	E int64 `json:"e"`
}

// PrivateKey is the (n, d) half of a key pair.
type PrivateKey struct {
	N int64 `json:"n"`
	D int64 `json:"d"`
}

// GenerateKeyPair derives n, φ and d. p and q must be distinct primes, e must
// lie in (1, φ) and be coprime with φ.
func GenerateKeyPair(p, q, e int64) (KeyPair, error) {
	const op = "rsa keygen"
	if !IsPrime(p) {
		return KeyPair{}, cipherr.Validationf(op, "p=%d is not prime", p)
	}
	if !IsPrime(q) {
		return KeyPair{}, cipherr.Validationf(op, "q=%d is not prime", q)
	}
	if p == q {
		return KeyPair{}, cipherr.Validationf(op, "p and q must differ")
	}
	if mulOverflows(p, q) {
		return KeyPair{}, cipherr.Validationf(op, "p*q overflows 64-bit integers")
	}
	n := p * q
	phi := (p - 1) * (q - 1)
	if e <= 1 || e >= phi {
		return KeyPair{}, cipherr.Validationf(op, "e=%d must satisfy 1 < e < φ=%d", e, phi)
	}
	if g := GCD(e, phi); g != 1 {
		return KeyPair{}, cipherr.Validationf(op, "e=%d is not coprime with φ=%d (gcd %d)", e, phi, g)
	}
	d, err := ModInverse(e, phi)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{P: p, Q: q, N: n, Phi: phi, E: e, D: d}, nil
}

func (k KeyPair) Public() PublicKey {
	return PublicKey{N: k.N, E: k.E}
}

func (k KeyPair) Private() PrivateKey {
	return PrivateKey{N: k.N, D: k.D}
}

// Encrypt returns m^e mod n. m must lie in [0, n).
func (k PublicKey) Encrypt(m int64) (int64, error) {
	if err := checkKey("rsa encrypt", k.N, k.E); err != nil {
		return 0, err
	}
	if m < 0 || m >= k.N {
		return 0, cipherr.Rangef("rsa encrypt", "plaintext %d outside [0, %d)", m, k.N)
	}
	return ModPow(m, k.E, k.N), nil
}

// Decrypt returns c^d mod n. c must lie in [0, n).
func (k PrivateKey) Decrypt(c int64) (int64, error) {
	if err := checkKey("rsa decrypt", k.N, k.D); err != nil {
		return 0, err
	}
	if c < 0 || c >= k.N {
		return 0, cipherr.Rangef("rsa decrypt", "ciphertext %d outside [0, %d)", c, k.N)
	}
	return ModPow(c, k.D, k.N), nil
}

func checkKey(op string, n, exp int64) error {
	if n < 2 {
		return cipherr.Validationf(op, "modulus n=%d must be at least 2", n)
	}
	if exp < 1 {
		return cipherr.Validationf(op, "exponent %d must be positive", exp)
	}
	return nil
}
