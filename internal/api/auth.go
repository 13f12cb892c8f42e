package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const maxTokenTTL = 24 * time.Hour

// Claims represents the JWT payload used for API authentication.
type Claims struct {
	jwt.RegisteredClaims
}

// Authenticator issues and validates HS256 tokens for the API.
type Authenticator struct {
	secret     []byte
	issuer     string
	defaultTTL time.Duration
	parser     *jwt.Parser
}

// NewAuthenticator constructs an authenticator using the provided secret and issuer.
func NewAuthenticator(secret []byte, issuer string, defaultTTL time.Duration) (*Authenticator, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret must not be empty")
	}
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return nil, errors.New("jwt issuer must not be empty")
	}
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &Authenticator{
		secret:     secret,
		issuer:     issuer,
		defaultTTL: defaultTTL,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}, nil
}

// Mint generates a signed JWT for the provided subject and audience. The TTL
// falls back to the default and is capped at one day.
func (a *Authenticator) Mint(subject, audience string, ttl time.Duration) (string, time.Time, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, errors.New("subject is required")
	}
	audience = strings.TrimSpace(audience)
	if audience == "" {
		audience = "default"
	}
	if ttl <= 0 {
		ttl = a.defaultTTL
	}
	if ttl > maxTokenTTL {
		ttl = maxTokenTTL
	}
	now := time.Now().UTC().Truncate(time.Second)
	expires := now.Add(ttl)
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    a.issuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
		ID:        uuid.NewString(),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Validate parses and validates a JWT, returning the embedded claims.
func (a *Authenticator) Validate(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, errors.New("token is required")
	}
	var claims Claims
	_, err := a.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, errors.New("token has no subject")
	}
	return claims, nil
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

// staticToken guards the bootstrap token endpoint. Only a bcrypt hash is kept
// in memory; a configured value that is already a bcrypt hash is used as is.
type staticToken struct {
	hash []byte
}

// HashStaticToken returns the bcrypt hash operators can store as
// static_token instead of the plain value.
func HashStaticToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("token must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(hash), nil
}

func newStaticToken(configured string) (*staticToken, error) {
	configured = strings.TrimSpace(configured)
	if configured == "" {
		return nil, nil
	}
	if _, err := bcrypt.Cost([]byte(configured)); err == nil {
		return &staticToken{hash: []byte(configured)}, nil
	}
	hash, err := HashStaticToken(configured)
	if err != nil {
		return nil, err
	}
	return &staticToken{hash: []byte(hash)}, nil
}

func (t *staticToken) matches(candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if t == nil || candidate == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(t.hash, []byte(candidate)) == nil
}
