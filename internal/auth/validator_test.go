package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func startJWKS(t *testing.T, kid string, pub *rsa.PublicKey) *httptest.Server {
	t.Helper()
	body := jwksResponse{Keys: []jwkKey{{
		Kid: kid,
		Kty: "RSA",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(bigEndianBytes(pub.E)),
	}}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func bigEndianBytes(e int) []byte {
	if e == 65537 {
		return []byte{0x01, 0x00, 0x01}
	}
	b := make([]byte, 4)
	b[0] = byte(e >> 24)
	b[1] = byte(e >> 16)
	b[2] = byte(e >> 8)
	b[3] = byte(e)
	return b
}

func signToken(t *testing.T, priv *rsa.PrivateKey, kid, audience, username string, expired bool) string {
	t.Helper()
	exp := time.Now().Add(time.Hour)
	if expired {
		exp = time.Now().Add(-time.Hour)
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		PreferredUsername: username,
	})
	tok.Header["kid"] = kid
	s, err := tok.SignedString(priv)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestValidateHappyPath(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	srv := startJWKS(t, "key-1", &priv.PublicKey)

	v := NewValidator(srv.URL, "myrealm", "tts", false)
	// point the cache at the test server's "certs" path directly
	v.cache.url = srv.URL

	token := signToken(t, priv, "key-1", "tts", "alice", false)
	principal, err := v.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if principal.Username != "alice" {
		t.Fatalf("username = %q, want alice", principal.Username)
	}
}

func TestValidateExpired(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	srv := startJWKS(t, "key-1", &priv.PublicKey)
	v := NewValidator(srv.URL, "myrealm", "tts", false)
	v.cache.url = srv.URL

	token := signToken(t, priv, "key-1", "tts", "alice", true)
	if _, err := v.Validate(token); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestValidateSubFallback(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	srv := startJWKS(t, "key-1", &priv.PublicKey)
	v := NewValidator(srv.URL, "myrealm", "tts", false)
	v.cache.url = srv.URL

	token := signToken(t, priv, "key-1", "tts", "", false)
	principal, err := v.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if principal.Username != "user-123" {
		t.Fatalf("username = %q, want sub fallback user-123", principal.Username)
	}
}

func TestTestModeBypass(t *testing.T) {
	v := NewValidator("http://unused", "realm", "tts", true)
	p, err := v.ValidateBearer("garbage")
	if err != nil {
		t.Fatalf("test mode should bypass validation: %v", err)
	}
	if p.Username != TestPrincipal {
		t.Fatalf("username = %q, want %q", p.Username, TestPrincipal)
	}
}
