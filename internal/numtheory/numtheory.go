// Package numtheory implements the integer arithmetic behind the toy RSA
// cipher: gcd, modular inverse, modular exponentiation and key generation.
//
// Values are int64. The package is for teaching and makes no attempt at
// constant-time arithmetic.
package numtheory

import (
	"math"
	"math/bits"

	"github.com/RowanDark/cipherlab/internal/cipherr"
)

// GCD returns the greatest common divisor of |a| and |b|.
func GCD(a, b int64) int64 {
	a, b = abs(a), abs(b)
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// ExtendedGCD returns g = gcd(a, b) together with Bézout coefficients x and y
// such that a*x + b*y = g.
func ExtendedGCD(a, b int64) (g, x, y int64) {
	oldR, r := a, b
	oldS, s := int64(1), int64(0)
	oldT, t := int64(0), int64(1)
	for r != 0 {
		q := oldR / r
		oldR, r = r, oldR-q*r
		oldS, s = s, oldS-q*s
		oldT, t = t, oldT-q*t
	}
	if oldR < 0 {
		oldR, oldS, oldT = -oldR, -oldS, -oldT
	}
	return oldR, oldS, oldT
}

// ModInverse returns x in [0, m) with a*x ≡ 1 (mod m).
func ModInverse(a, m int64) (int64, error) {
	if m <= 1 {
		return 0, cipherr.Validationf("modinverse", "modulus must be greater than 1, got %d", m)
	}
	g, x, _ := ExtendedGCD(mod(a, m), m)
	if g != 1 {
		return 0, cipherr.Validationf("modinverse", "%d has no inverse modulo %d (gcd %d)", a, m, g)
	}
	return mod(x, m), nil
}

// ModPow computes base^exp mod m by square-and-multiply. Products are taken
// at 128 bits so no intermediate overflows. m must be positive and exp
// non-negative; ModPow(x, 0, 1) is 0.
func ModPow(base, exp, m int64) int64 {
	if m <= 0 {
		panic("numtheory: ModPow modulus must be positive")
	}
	if exp < 0 {
		panic("numtheory: ModPow exponent must be non-negative")
	}
	if m == 1 {
		return 0
	}
	um := uint64(m)
	b := uint64(mod(base, m))
	e := uint64(exp)
	result := uint64(1)
	for e > 0 {
		if e&1 == 1 {
			result = mulMod(result, b, um)
		}
		b = mulMod(b, b, um)
		e >>= 1
	}
	return int64(result)
}

func mulMod(a, b, m uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	return bits.Rem64(hi, lo, m)
}

// IsPrime reports whether n is prime using 6k±1 trial division.
func IsPrime(n int64) bool {
	switch {
	case n < 2:
		return false
	case n < 4:
		return true
	case n%2 == 0 || n%3 == 0:
		return false
	}
	for i := int64(5); i <= n/i; i += 6 {
		if n%i == 0 || n%(i+2) == 0 {
			return false
		}
	}
	return true
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func mod(a, m int64) int64 {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

func mulOverflows(a, b int64) bool {
	if a == 0 || b == 0 {
		return false
	}
	return a > math.MaxInt64/b
}
