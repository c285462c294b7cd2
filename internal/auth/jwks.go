package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/aldengreen/kokoro-live-tts/internal/metrics"
)

// jwksTTL is how long a fetched key set is trusted; after it, the next
// lookup refetches even for a cached kid. A kid miss refetches at any time.
const jwksTTL = time.Hour

type jwkKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwksResponse struct {
	Keys []jwkKey `json:"keys"`
}

// JWKSCache is a process-wide, single-writer/many-reader cache of RSA
// public keys fetched from a Keycloak JWKS endpoint, keyed by kid. Stale
// reads are acceptable; a kid miss or an expired cache forces a refetch.
type JWKSCache struct {
	url string

	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	lastFetched time.Time

	httpClient *http.Client
}

// NewJWKSCache builds a cache that fetches from
// {keycloakURL}/realms/{realm}/protocol/openid-connect/certs.
func NewJWKSCache(keycloakURL, realm string) *JWKSCache {
	return &JWKSCache{
		url:        fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", keycloakURL, realm),
		keys:       make(map[string]*rsa.PublicKey),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Key returns the RSA public key for kid, fetching (and replacing) the
// whole key set if kid isn't cached or the cache has expired.
func (c *JWKSCache) Key(kid string) (*rsa.PublicKey, error) {
	if key, fresh := c.lookupFresh(kid); fresh {
		return key, nil
	}

	keys, err := c.fetch()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.keys = keys
	c.lastFetched = time.Now()
	c.mu.Unlock()

	key, ok := keys[kid]
	if !ok {
		return nil, fmt.Errorf("auth: key with kid %q not found", kid)
	}
	return key, nil
}

func (c *JWKSCache) lookupFresh(kid string) (*rsa.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if time.Since(c.lastFetched) >= jwksTTL {
		return nil, false
	}
	key, ok := c.keys[kid]
	return key, ok
}

func (c *JWKSCache) fetch() (map[string]*rsa.PublicKey, error) {
	metrics.JWKSCacheRefreshes.Inc()
	resp, err := c.httpClient.Get(c.url)
	if err != nil {
		return nil, fmt.Errorf("auth: fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: jwks endpoint returned %d", resp.StatusCode)
	}

	var parsed jwksResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("auth: parse jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(parsed.Keys))
	for _, k := range parsed.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := rsaPublicKeyFromComponents(k.N, k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	return keys, nil
}

func rsaPublicKeyFromComponents(nB64, eB64 string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nB64)
	if err != nil {
		return nil, fmt.Errorf("auth: decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eB64)
	if err != nil {
		return nil, fmt.Errorf("auth: decode exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)

	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}
