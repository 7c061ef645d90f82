package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/prohmpiriya/multicore-crm/pkg/logger"
	"github.com/prohmpiriya/multicore-crm/pkg/response"
	"github.com/prohmpiriya/multicore-crm/pkg/token"
)

// Messages written by the authentication gate
const (
	MsgInvalidToken = "Invalid or expired token"
	MsgUserNotFound = "User not found"
)

// ErrPrincipalNotFound is returned by resolvers when the claimed identity no longer exists
var ErrPrincipalNotFound = errors.New("principal not found")

// TokenVerifier validates a raw bearer token
type TokenVerifier interface {
	Verify(raw string) (*token.Claims, error)
}

// PrincipalResolver loads the live identity, tenant and role set for a token's email
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, email string) (*Principal, error)
}

// PublicMatcher reports whether a route is on the public allow-list
type PublicMatcher interface {
	IsPublic(method, path string) bool
}

// AuthConfig holds the authentication gate's collaborators
type AuthConfig struct {
	Verifier TokenVerifier
	Resolver PrincipalResolver
	Public   PublicMatcher
	Log      *logger.Logger
}

type gateDoneKey struct{}

// Authenticate turns an optional bearer token into a request Principal.
//
// No token: the request continues unauthenticated.
// Bad token: 401 unless the route is public, in which case the token is ignored.
// Valid token for a missing identity: 401 "User not found".
//
// The gate runs once per request; a re-dispatched request reuses the first result.
func Authenticate(cfg AuthConfig) gin.HandlerFunc {
	log := cfg.Log
	if log == nil {
		log = logger.Get()
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if ctx.Value(gateDoneKey{}) != nil {
			if p, ok := PrincipalFromContext(ctx); ok {
				setPrincipal(c, p)
			}
			c.Next()
			return
		}
		c.Request = c.Request.WithContext(context.WithValue(ctx, gateDoneKey{}, true))

		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}

		claims, err := cfg.Verifier.Verify(raw)
		if err != nil {
			if cfg.Public != nil && cfg.Public.IsPublic(c.Request.Method, c.Request.URL.Path) {
				c.Next()
				return
			}
			log.WithContext(ctx).Debug("rejected bearer token",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Flat(MsgInvalidToken))
			return
		}

		p, err := cfg.Resolver.ResolvePrincipal(ctx, claims.Email)
		if err != nil {
			if !errors.Is(err, ErrPrincipalNotFound) {
				log.WithContext(ctx).Error("resolve principal failed",
					zap.String("email", claims.Email),
					zap.Error(err),
				)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Flat(MsgUserNotFound))
			return
		}

		setPrincipal(c, p)
		c.Next()
	}
}

// bearerToken extracts the token from "Bearer <token>". Anything else counts as no credential.
func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	raw := strings.TrimSpace(header[len(prefix):])
	return raw, raw != ""
}
