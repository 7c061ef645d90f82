package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/service"
	"github.com/prohmpiriya/multicore-crm/pkg/response"
)

// errorCodes maps service error kinds to response codes, checked in order
var errorCodes = []struct {
	err  error
	code string
}{
	{service.ErrInvalidCredentials, response.ErrCodeInvalidCredentials},
	{service.ErrAccountInactive, response.ErrCodeAccountInactive},
	{service.ErrDuplicateEmail, response.ErrCodeDuplicateEmail},
	{service.ErrSuperAdminExists, response.ErrCodeSuperAdminExists},
	{service.ErrTenantNotFound, response.ErrCodeTenantNotFound},
	{service.ErrTenantHasOwner, response.ErrCodeConflict},
	{service.ErrIdentityNotFound, response.ErrCodeIdentityNotFound},
	{service.ErrInvalidRoleForFlow, response.ErrCodeInvalidRoleForFlow},
	{service.ErrInvalidInput, response.ErrCodeValidationFailed},
	{service.ErrLoginTimeout, response.ErrCodeGatewayTimeout},
}

// codeFor returns the response code for err
func codeFor(err error) string {
	for _, m := range errorCodes {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	return response.ErrCodeInternalError
}

// writeError writes err with the status of its kind. Unknown errors never
// reveal their detail.
func writeError(c *gin.Context, err error) {
	code := codeFor(err)
	c.JSON(response.GetHTTPStatus(code), response.Error(code, service.Message(err)))
}
