// Package auth provides JWT verification helpers.
package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ModeDev  = "dev"
	ModeHMAC = "hmac"
	ModeJWKS = "jwks"
)

var (
	ErrInvalidToken  = errors.New("auth: invalid token")
	ErrMissingTenant = errors.New("auth: missing tenant claim")
)

// Principal is the caller identity attached to a request.
type Principal struct {
	Tenant  string
	Role    string // admin, user
	Subject string
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }

type ctxKey struct{}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

type Options struct {
	Mode        string
	HMACSecret  string
	JWKSURL     string
	TenantClaim string
	RoleClaim   string
	// HTTPClient fetches the JWKS document.
	HTTPClient *http.Client
	CacheTTL   time.Duration
}

// Verifier validates JWTs and extracts tenant/role claims.
// Supports modes: dev (no verify), hmac (HS256), jwks (RS256 from JWKS URL).
type Verifier struct {
	mode        string
	hmacSecret  []byte
	jwksURL     string
	tenantClaim string
	roleClaim   string
	http        *http.Client
	cacheTTL    time.Duration

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	lastFetch time.Time
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
	Alg string `json:"alg"`
}

func NewVerifier(o Options) *Verifier {
	mode := strings.ToLower(strings.TrimSpace(o.Mode))
	if mode == "" {
		mode = ModeDev
	}
	if o.TenantClaim == "" {
		o.TenantClaim = "tenant"
	}
	if o.RoleClaim == "" {
		o.RoleClaim = "role"
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 10 * time.Minute
	}
	return &Verifier{
		mode:        mode,
		hmacSecret:  []byte(o.HMACSecret),
		jwksURL:     o.JWKSURL,
		tenantClaim: o.TenantClaim,
		roleClaim:   o.RoleClaim,
		http:        o.HTTPClient,
		cacheTTL:    o.CacheTTL,
	}
}

func (v *Verifier) Mode() string { return v.mode }

func (v *Verifier) Verify(token string) (Principal, error) {
	if v.mode == ModeDev {
		// token format: tenant:role
		parts := strings.Split(token, ":")
		if len(parts) >= 2 && parts[0] != "" {
			return Principal{Tenant: parts[0], Role: strings.ToLower(parts[1])}, nil
		}
		return Principal{}, fmt.Errorf("%w: expected tenant:role", ErrInvalidToken)
	}

	var parserOpts []jwt.ParserOption
	var keyFunc jwt.Keyfunc
	switch v.mode {
	case ModeHMAC:
		parserOpts = append(parserOpts, jwt.WithValidMethods([]string{"HS256"}))
		keyFunc = func(*jwt.Token) (any, error) { return v.hmacSecret, nil }
	case ModeJWKS:
		parserOpts = append(parserOpts, jwt.WithValidMethods([]string{"RS256"}))
		keyFunc = func(t *jwt.Token) (any, error) {
			kid, _ := t.Header["kid"].(string)
			return v.rsaKey(kid)
		}
	default:
		return Principal{}, fmt.Errorf("auth: unsupported mode %q", v.mode)
	}

	claims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(token, claims, keyFunc, parserOpts...); err != nil {
		return Principal{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	tenant, _ := claims[v.tenantClaim].(string)
	if tenant == "" {
		return Principal{}, ErrMissingTenant
	}
	role, _ := claims[v.roleClaim].(string)
	if role == "" {
		role = "user"
	}
	sub, _ := claims.GetSubject()
	return Principal{Tenant: tenant, Role: strings.ToLower(role), Subject: sub}, nil
}

// rsaKey returns the key for kid, refreshing the JWKS cache when stale or
// when kid is unknown.
func (v *Verifier) rsaKey(kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	stale := time.Since(v.lastFetch) > v.cacheTTL
	v.mu.RUnlock()
	if ok && !stale {
		return key, nil
	}
	if err := v.fetchJWKS(); err != nil {
		return nil, err
	}
	v.mu.RLock()
	key, ok = v.keys[kid]
	v.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("auth: kid %q not found in JWKS", kid)
	}
	return key, nil
}

func (v *Verifier) fetchJWKS() error {
	if v.jwksURL == "" {
		return errors.New("auth: AUTH_JWKS_URL not set")
	}
	req, err := http.NewRequest(http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: JWKS fetch returned %d", resp.StatusCode)
	}
	var set jwks
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return err
	}
	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if !strings.EqualFold(k.Kty, "RSA") {
			continue
		}
		pub, err := k.rsaPublicKey()
		if err != nil {
			return fmt.Errorf("auth: jwk %q: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}
	v.mu.Lock()
	v.keys = keys
	v.lastFetch = time.Now()
	v.mu.Unlock()
	return nil
}

func (k jwk) rsaPublicKey() (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	// e is big-endian, typically 0x010001
	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() <= 1 {
		return nil, errors.New("invalid exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: int(e.Int64())}, nil
}
