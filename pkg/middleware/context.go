package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/prohmpiriya/multicore-crm/pkg/logger"
)

// Context keys for the authenticated principal
const (
	ContextKeyIdentityID  = "identity_id"
	ContextKeyEmail       = "email"
	ContextKeyTenantID    = "tenant_id"
	ContextKeyTenantScope = "current_tenant"
	ContextKeyRoles       = "roles"
	// ContextKeyForbiddenReason holds the ForbiddenReason of a 403
	ContextKeyForbiddenReason = "forbidden_reason"
)

// Principal is the authenticated caller as resolved from storage for this request
type Principal struct {
	IdentityID string
	Email      string
	TenantID   *string
	Roles      []string
}

// HasAnyRole reports whether the principal holds at least one of roles
func (p *Principal) HasAnyRole(roles ...string) bool {
	for _, want := range roles {
		for _, have := range p.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

type principalKey struct{}

// WithPrincipal stores p on ctx and copies its ids into the logger fields
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	ctx = context.WithValue(ctx, principalKey{}, p)
	ctx = context.WithValue(ctx, logger.IdentityIDKey, p.IdentityID)
	if p.TenantID != nil {
		ctx = context.WithValue(ctx, logger.TenantIDKey, *p.TenantID)
	}
	return ctx
}

// PrincipalFromContext returns the principal stored by the authentication gate
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

func setPrincipal(c *gin.Context, p *Principal) {
	c.Set(ContextKeyIdentityID, p.IdentityID)
	c.Set(ContextKeyEmail, p.Email)
	c.Set(ContextKeyRoles, p.Roles)
	if p.TenantID != nil {
		c.Set(ContextKeyTenantID, *p.TenantID)
		c.Set(ContextKeyTenantScope, *p.TenantID)
	}
	c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), p))
}

// GetPrincipal returns the principal attached to the request, if any
func GetPrincipal(c *gin.Context) (*Principal, bool) {
	return PrincipalFromContext(c.Request.Context())
}

// GetIdentityID extracts the identity ID from gin context
func GetIdentityID(c *gin.Context) (string, bool) {
	id := c.GetString(ContextKeyIdentityID)
	return id, id != ""
}

// GetEmail extracts the email from gin context
func GetEmail(c *gin.Context) (string, bool) {
	email := c.GetString(ContextKeyEmail)
	return email, email != ""
}

// GetTenantID extracts the tenant ID from gin context
func GetTenantID(c *gin.Context) (string, bool) {
	tenantID := c.GetString(ContextKeyTenantID)
	return tenantID, tenantID != ""
}

// GetRoles extracts the live role set from gin context
func GetRoles(c *gin.Context) []string {
	return c.GetStringSlice(ContextKeyRoles)
}
