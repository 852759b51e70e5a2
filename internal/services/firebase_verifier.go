package services

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/yungbote/pythagon-backend/internal/domain"
)

const (
	FirebaseJWKSURL      = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"
	firebaseIssuerPrefix = "https://securetoken.google.com/"
)

type firebaseVerifier struct {
	projectID string
	issuer    string
	jwks      *jwksCache
	now       func() time.Time
}

// NewFirebaseVerifier verifies Firebase ID tokens for projectID. jwksURL may
// be empty to use Google's published securetoken keys.
func NewFirebaseVerifier(httpClient *http.Client, projectID, jwksURL string) (IdentityVerifier, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, fmt.Errorf("FIREBASE_PROJECT_ID is required")
	}
	if strings.TrimSpace(jwksURL) == "" {
		jwksURL = FirebaseJWKSURL
	}
	return &firebaseVerifier{
		projectID: projectID,
		issuer:    firebaseIssuerPrefix + projectID,
		jwks:      newJWKSCache(httpClient, jwksURL),
		now:       time.Now,
	}, nil
}

func (v *firebaseVerifier) Verify(ctx context.Context, credential string) (*Identity, error) {
	claims, err := v.verify(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrAuth)
	}
	sub, _ := claims["sub"].(string)
	return &Identity{CallerID: sub, Provider: "firebase"}, nil
}

func (v *firebaseVerifier) verify(ctx context.Context, tokenString string) (jwt.MapClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("id token is empty")
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}), jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}

	tok, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if strings.TrimSpace(kid) == "" {
			return nil, fmt.Errorf("missing kid")
		}
		return v.jwks.getKey(ctx, kid)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid id token: %w", err)
	}
	if tok == nil || !tok.Valid {
		return nil, fmt.Errorf("invalid id token")
	}

	if err := validateTimeClaims(claims, v.now(), 0); err != nil {
		return nil, err
	}
	if iss, _ := claims["iss"].(string); iss != v.issuer {
		return nil, fmt.Errorf("issuer mismatch: %q", iss)
	}
	if !audContains(claims["aud"], v.projectID) {
		return nil, fmt.Errorf("audience mismatch")
	}
	sub, _ := claims["sub"].(string)
	if strings.TrimSpace(sub) == "" || len(sub) > 128 {
		return nil, fmt.Errorf("invalid sub")
	}
	return claims, nil
}

func validateTimeClaims(claims jwt.MapClaims, now time.Time, leeway time.Duration) error {
	expAny, ok := claims["exp"]
	if !ok {
		return fmt.Errorf("missing exp")
	}
	exp, err := parseNumericTime(expAny)
	if err != nil {
		return fmt.Errorf("invalid exp: %w", err)
	}
	if now.After(exp.Add(leeway)) {
		return fmt.Errorf("token expired")
	}

	if nbfAny, ok := claims["nbf"]; ok {
		nbf, err := parseNumericTime(nbfAny)
		if err != nil {
			return fmt.Errorf("invalid nbf: %w", err)
		}
		if now.Add(leeway).Before(nbf) {
			return fmt.Errorf("token not valid yet")
		}
	}

	// Firebase requires iat and auth_time to be in the past.
	for _, key := range []string{"iat", "auth_time"} {
		raw, ok := claims[key]
		if !ok {
			continue
		}
		ts, err := parseNumericTime(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		if ts.After(now.Add(5 * time.Minute)) {
			return fmt.Errorf("%s in the future", key)
		}
	}
	return nil
}

func parseNumericTime(v any) (time.Time, error) {
	var sec int64
	switch x := v.(type) {
	case float64:
		sec = int64(x)
	case int64:
		sec = x
	case int:
		sec = int64(x)
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return time.Time{}, err
		}
		sec = n
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		sec = n
	default:
		return time.Time{}, fmt.Errorf("unexpected type %T", v)
	}
	if sec <= 0 {
		return time.Time{}, fmt.Errorf("non-positive numeric date")
	}
	return time.Unix(sec, 0).UTC(), nil
}

func audContains(aud any, required string) bool {
	switch v := aud.(type) {
	case string:
		return v == required
	case []any:
		for _, it := range v {
			if s, ok := it.(string); ok && s == required {
				return true
			}
		}
	}
	return false
}

// ----- JWKS cache (RSA only; securetoken publishes RS256 keys) -----

const (
	jwksDefaultTTL = time.Hour
	// Unknown kids may force a refetch at most this often.
	jwksMissInterval = time.Minute
)

type jwksCache struct {
	httpClient *http.Client
	url        string
	now        func() time.Time

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	expires time.Time

	fetches singleflight.Group
	misses  *rate.Limiter
}

func newJWKSCache(httpClient *http.Client, url string) *jwksCache {
	return &jwksCache{
		httpClient: httpClient,
		url:        url,
		now:        time.Now,
		keys:       map[string]*rsa.PublicKey{},
		misses:     rate.NewLimiter(rate.Every(jwksMissInterval), 1),
	}
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (j *jwksCache) lookup(kid string) (*rsa.PublicKey, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.keys[kid], j.now().Before(j.expires)
}

func (j *jwksCache) getKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	key, fresh := j.lookup(kid)
	switch {
	case key != nil && fresh:
		return key, nil
	case fresh && !j.misses.Allow():
		return nil, fmt.Errorf("kid not found in jwks: %s", kid)
	}

	_, err, _ := j.fetches.Do("jwks", func() (any, error) {
		return nil, j.refresh(ctx)
	})
	key, _ = j.lookup(kid)
	if key != nil {
		// A failed refresh keeps serving the keys we already had.
		return key, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("kid not found in jwks: %s", kid)
}

func (j *jwksCache) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.url, nil)
	if err != nil {
		return err
	}
	res, err := j.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("jwks fetch failed: %s", res.Status)
	}

	var set jwkSet
	if err := json.NewDecoder(res.Body).Decode(&set); err != nil {
		return err
	}

	next := map[string]*rsa.PublicKey{}
	for _, k := range set.Keys {
		if strings.TrimSpace(k.Kid) == "" || k.Kty != "RSA" {
			continue
		}
		pub, err := rsaFromModExp(k.N, k.E)
		if err == nil {
			next[k.Kid] = pub
		}
	}
	if len(next) == 0 {
		return fmt.Errorf("jwks contained no usable keys")
	}

	ttl, ok := maxAge(res.Header.Get("Cache-Control"))
	if !ok {
		ttl = jwksDefaultTTL
	}
	j.mu.Lock()
	j.keys = next
	j.expires = j.now().Add(ttl)
	j.mu.Unlock()
	return nil
}

// maxAge reads the max-age directive of a Cache-Control header.
func maxAge(header string) (time.Duration, bool) {
	for _, directive := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(k, "max-age") {
			continue
		}
		n, err := strconv.Atoi(strings.Trim(v, `" `))
		if err != nil || n <= 0 {
			return 0, false
		}
		return time.Duration(n) * time.Second, true
	}
	return 0, false
}

func rsaFromModExp(nB64, eB64 string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(nB64)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(eB64)
	if err != nil {
		return nil, err
	}
	n := new(big.Int).SetBytes(nb)
	e := 0
	for _, b := range eb {
		e = e<<8 + int(b)
	}
	if e == 0 {
		return nil, fmt.Errorf("invalid exponent")
	}
	return &rsa.PublicKey{N: n, E: e}, nil
}
