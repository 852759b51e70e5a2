package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/pythagon-backend/internal/domain"
)

// Identity is the verified caller. CallerID partitions the stores.
type Identity struct {
	CallerID string
	Provider string
}

// IdentityVerifier turns a bearer credential into an Identity. Every failure
// wraps domain.ErrAuth.
type IdentityVerifier interface {
	Verify(ctx context.Context, credential string) (*Identity, error)
}

type staticVerifier struct {
	callerID string
}

// NewStaticVerifier accepts any non-empty credential and reports a fixed
// caller. Local development only.
func NewStaticVerifier(callerID string) IdentityVerifier {
	if strings.TrimSpace(callerID) == "" {
		callerID = "mock_user_id"
	}
	return &staticVerifier{callerID: callerID}
}

func (v *staticVerifier) Verify(ctx context.Context, credential string) (*Identity, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, fmt.Errorf("empty credential: %w", domain.ErrAuth)
	}
	return &Identity{CallerID: v.callerID, Provider: "static"}, nil
}

type hmacVerifier struct {
	secret []byte
	issuer string
}

// NewHMACVerifier verifies HS256 tokens whose subject is the caller id.
// issuer is checked when non-empty.
func NewHMACVerifier(secret, issuer string) (IdentityVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("AUTH_HMAC_SECRET is required")
	}
	return &hmacVerifier{secret: []byte(secret), issuer: strings.TrimSpace(issuer)}, nil
}

func (v *hmacVerifier) Verify(ctx context.Context, credential string) (*Identity, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, fmt.Errorf("empty credential: %w", domain.ErrAuth)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse token: %v: %w", err, domain.ErrAuth)
	}
	if tok == nil || !tok.Valid {
		return nil, fmt.Errorf("invalid token: %w", domain.ErrAuth)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("missing sub: %w", domain.ErrAuth)
	}
	return &Identity{CallerID: claims.Subject, Provider: "hmac"}, nil
}
