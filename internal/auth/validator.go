package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized wraps any bearer-token validation failure; boundaries
// (HTTP handlers, the WS auth message) map it to 401 / auth_error.
var ErrUnauthorized = errors.New("auth: unauthorized")

// TestPrincipal is injected in place of real validation when TTS_TEST_MODE
// is set.
const TestPrincipal = "test_user"

// Principal identifies an authenticated caller.
type Principal struct {
	Username string
}

type claims struct {
	jwt.RegisteredClaims
	PreferredUsername string `json:"preferred_username"`
}

// Validator validates bearer JWTs against a Keycloak-issued JWKS, checking
// signature (RS256), expiration, and audience.
type Validator struct {
	cache    *JWKSCache
	audience string
	testMode bool
}

// NewValidator builds a Validator. If testMode is true, Validate always
// succeeds with TestPrincipal regardless of the token's contents, matching
// spec.md's TTS_TEST_MODE bypass.
func NewValidator(keycloakURL, realm, audience string, testMode bool) *Validator {
	return &Validator{
		cache:    NewJWKSCache(keycloakURL, realm),
		audience: audience,
		testMode: testMode,
	}
}

// ValidateBearer extracts the token from an "Authorization: Bearer ..."
// header value and validates it.
func (v *Validator) ValidateBearer(header string) (Principal, error) {
	if v.testMode {
		return Principal{Username: TestPrincipal}, nil
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return Principal{}, fmt.Errorf("%w: missing or invalid Authorization header", ErrUnauthorized)
	}
	return v.Validate(strings.TrimPrefix(header, prefix))
}

// Validate validates a raw JWT string (no "Bearer " prefix).
func (v *Validator) Validate(tokenString string) (Principal, error) {
	if v.testMode {
		return Principal{Username: TestPrincipal}, nil
	}

	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("token missing kid")
		}
		return v.cache.Key(kid)
	}, jwt.WithAudience(v.audience), jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !token.Valid {
		return Principal{}, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}

	username := c.PreferredUsername
	if username == "" {
		username = c.Subject
	}
	if username == "" {
		return Principal{}, fmt.Errorf("%w: token has neither preferred_username nor sub", ErrUnauthorized)
	}
	return Principal{Username: username}, nil
}
