// Package token issues and verifies the signed session tokens carried in
// the Authorization header. Tokens hold identity lookup claims only; roles
// are always resolved from storage at verification time.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalidOrExpired is the umbrella error for every verification failure
	ErrTokenInvalidOrExpired = errors.New("invalid or expired token")
	// ErrTokenExpired is returned when the expiry window has elapsed
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrTokenInvalidOrExpired)
	// ErrTokenMalformed is returned for structurally corrupt tokens
	ErrTokenMalformed = fmt.Errorf("%w: malformed", ErrTokenInvalidOrExpired)
	// ErrTokenSignature is returned on signature mismatch or unexpected algorithm
	ErrTokenSignature = fmt.Errorf("%w: bad signature", ErrTokenInvalidOrExpired)
)

// DefaultTTL is the token lifetime when none is configured
const DefaultTTL = 24 * time.Hour

// Claims is the session claim set
type Claims struct {
	IdentityID string  `json:"uid"`
	Email      string  `json:"email"`
	TenantID   *string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// Subject is what a token is minted for
type Subject struct {
	IdentityID string
	Email      string
	TenantID   *string
}

// Config holds token service settings
type Config struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// Service issues and verifies HS256 session tokens
type Service struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewService creates a token service
func NewService(cfg Config) *Service {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		secret: []byte(cfg.Secret),
		ttl:    ttl,
		issuer: cfg.Issuer,
		now:    time.Now,
	}
}

// TTL returns the fixed token lifetime
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue mints a token for sub; expiry is fixed at issuance
func (s *Service) Issue(sub Subject) (string, error) {
	now := s.now()
	claims := Claims{
		IdentityID: sub.IdentityID,
		Email:      sub.Email,
		TenantID:   sub.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.Email,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry. Every failure wraps ErrTokenInvalidOrExpired.
func (s *Service) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, classify(err)
	}
	if !parsed.Valid || claims.Email == "" {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenSignature
	default:
		return ErrTokenMalformed
	}
}
