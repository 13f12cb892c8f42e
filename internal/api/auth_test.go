package api

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestMintAndValidate(t *testing.T) {
	auth, err := NewAuthenticator([]byte("test-jwt-secret-key-12345"), "test-issuer", time.Hour)
	if err != nil {
		t.Fatalf("NewAuthenticator failed: %v", err)
	}

	token, expires, err := auth.Mint("ogrenci", "", 48*time.Hour)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	if until := time.Until(expires); until > maxTokenTTL || until < maxTokenTTL-time.Minute {
		t.Fatalf("expected ttl capped at %s, got %s", maxTokenTTL, until)
	}

	claims, err := auth.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.Subject != "ogrenci" || claims.Issuer != "test-issuer" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != "default" {
		t.Fatalf("expected default audience, got %v", claims.Audience)
	}
	if claims.ID == "" {
		t.Fatal("expected a token id")
	}
}

func TestValidateRejectsForeignTokens(t *testing.T) {
	auth, err := NewAuthenticator([]byte("secret-a"), "cipherlab", time.Hour)
	if err != nil {
		t.Fatalf("NewAuthenticator failed: %v", err)
	}
	other, err := NewAuthenticator([]byte("secret-b"), "cipherlab", time.Hour)
	if err != nil {
		t.Fatalf("NewAuthenticator failed: %v", err)
	}
	wrongIssuer, err := NewAuthenticator([]byte("secret-a"), "someone-else", time.Hour)
	if err != nil {
		t.Fatalf("NewAuthenticator failed: %v", err)
	}

	foreign, _, err := other.Mint("user", "", 0)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	issuer, _, err := wrongIssuer.Mint("user", "", 0)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	now := time.Now()
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "cipherlab",
		Subject:   "user",
		IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
		ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
	}}).SignedString([]byte("secret-a"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "cipherlab",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}}).SignedString([]byte("secret-a"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "cipherlab",
		Subject:   "user",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tests := map[string]string{
		"empty":          "",
		"garbage":        "not-a-jwt",
		"other secret":   foreign,
		"other issuer":   issuer,
		"expired":        expired,
		"missing sub":    noSubject,
		"none algorithm": noneAlg,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := auth.Validate(token); err == nil {
				t.Fatalf("expected %s token to be rejected", name)
			}
		})
	}
}

func TestNewAuthenticatorValidation(t *testing.T) {
	if _, err := NewAuthenticator(nil, "cipherlab", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewAuthenticator([]byte("s"), "  ", time.Hour); err == nil {
		t.Fatal("expected error for empty issuer")
	}
	auth, err := NewAuthenticator([]byte("s"), "cipherlab", time.Hour)
	if err != nil {
		t.Fatalf("NewAuthenticator failed: %v", err)
	}
	if _, _, err := auth.Mint("  ", "", 0); err == nil {
		t.Fatal("expected error for empty subject")
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer   abc  ", "abc", true},
		{"BEARER abc", "abc", true},
		{"Basic abc", "", false},
		{"Bearer ", "", false},
		{"abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("bearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestStaticTokenMatching(t *testing.T) {
	plain, err := newStaticToken(" bootstrap ")
	if err != nil {
		t.Fatalf("newStaticToken: %v", err)
	}
	hashed, err := HashStaticToken("bootstrap")
	if err != nil {
		t.Fatalf("HashStaticToken: %v", err)
	}
	prehashed, err := newStaticToken(hashed)
	if err != nil {
		t.Fatalf("newStaticToken(hash): %v", err)
	}

	for name, tok := range map[string]*staticToken{"plain": plain, "prehashed": prehashed} {
		t.Run(name, func(t *testing.T) {
			if !tok.matches("bootstrap") {
				t.Fatal("expected configured token to match")
			}
			for _, bad := range []string{"", "bootstrap2", hashed} {
				if tok.matches(bad) {
					t.Fatalf("unexpected match for %q", bad)
				}
			}
		})
	}

	if tok, err := newStaticToken("  "); err != nil || tok != nil {
		t.Fatalf("blank token should disable issuance, got %v, %v", tok, err)
	}
	if tok := (*staticToken)(nil); tok.matches("bootstrap") {
		t.Fatal("nil token must never match")
	}
	if _, err := HashStaticToken(""); err == nil {
		t.Fatal("expected error hashing empty token")
	}
}
