package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prohmpiriya/multicore-crm/pkg/response"
)

// ErrTenantMismatch is returned when the caller targets a tenant other than its own
var ErrTenantMismatch = errors.New("tenant mismatch")

// MsgTenantMismatch is written when the tenant guard rejects a request
const MsgTenantMismatch = "Access denied for this business"

// CheckTenant compares the caller's tenant with the requested one. A caller
// without a tenant never matches, whatever its roles.
func CheckTenant(p *Principal, requestedTenantID string) error {
	if p == nil || p.TenantID == nil || *p.TenantID == "" || requestedTenantID == "" {
		return ErrTenantMismatch
	}
	if *p.TenantID != requestedTenantID {
		return ErrTenantMismatch
	}
	return nil
}

// TenantScope rejects requests whose path parameter names another tenant
func TenantScope(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, _ := GetPrincipal(c)
		if err := CheckTenant(p, c.Param(param)); err != nil {
			c.Set(ContextKeyForbiddenReason, string(ReasonTenantMismatch))
			c.AbortWithStatusJSON(http.StatusForbidden, response.Flat(MsgTenantMismatch))
			return
		}
		c.Next()
	}
}
