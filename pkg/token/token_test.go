package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return NewService(Config{Secret: "test-secret", TTL: time.Hour, Issuer: "multicore-crm"})
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	svc := newTestService()
	tenant := "tenant-1"

	tests := []struct {
		name string
		sub  Subject
	}{
		{"with tenant", Subject{IdentityID: "id-1", Email: "owner@x.com", TenantID: &tenant}},
		{"without tenant", Subject{IdentityID: "id-2", Email: "a@x.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := svc.Issue(tt.sub)
			require.NoError(t, err)

			claims, err := svc.Verify(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.sub.IdentityID, claims.IdentityID)
			assert.Equal(t, tt.sub.Email, claims.Email)
			assert.Equal(t, tt.sub.TenantID, claims.TenantID)
			assert.Equal(t, time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
		})
	}
}

func TestVerify_Expired(t *testing.T) {
	svc := newTestService()
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	raw, err := svc.Issue(Subject{IdentityID: "id-1", Email: "a@x.com"})
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Verify(raw)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.ErrorIs(t, err, ErrTokenInvalidOrExpired)
}

func TestVerify_WrongSecret(t *testing.T) {
	raw, err := newTestService().Issue(Subject{IdentityID: "id-1", Email: "a@x.com"})
	require.NoError(t, err)

	other := NewService(Config{Secret: "other-secret", TTL: time.Hour, Issuer: "multicore-crm"})
	_, err = other.Verify(raw)
	assert.ErrorIs(t, err, ErrTokenSignature)
	assert.ErrorIs(t, err, ErrTokenInvalidOrExpired)
}

func TestVerify_Malformed(t *testing.T) {
	svc := newTestService()

	for _, raw := range []string{"", "garbage", "a.b.c"} {
		_, err := svc.Verify(raw)
		assert.ErrorIs(t, err, ErrTokenInvalidOrExpired, raw)
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	svc := newTestService()
	raw, err := svc.Issue(Subject{IdentityID: "id-1", Email: "a@x.com"})
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	parts[1] = parts[1][:len(parts[1])-2] + "AA"

	_, err = svc.Verify(strings.Join(parts, "."))
	assert.ErrorIs(t, err, ErrTokenInvalidOrExpired)
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	svc := newTestService()
	claims := Claims{
		IdentityID: "id-1",
		Email:      "a@x.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "multicore-crm",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.Verify(raw)
	assert.ErrorIs(t, err, ErrTokenSignature)
}

func TestVerify_MissingExpiry(t *testing.T) {
	svc := newTestService()
	claims := Claims{
		IdentityID:       "id-1",
		Email:            "a@x.com",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "multicore-crm"},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.Verify(raw)
	assert.ErrorIs(t, err, ErrTokenInvalidOrExpired)
}

func TestNewService_DefaultTTL(t *testing.T) {
	svc := NewService(Config{Secret: "s"})
	assert.Equal(t, DefaultTTL, svc.TTL())
}
