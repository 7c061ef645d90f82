package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/service"
	"github.com/prohmpiriya/multicore-crm/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"invalid credentials", service.ErrInvalidCredentials, http.StatusUnauthorized, response.ErrCodeInvalidCredentials, "Invalid email or password"},
		{"inactive", service.ErrAccountInactive, http.StatusForbidden, response.ErrCodeAccountInactive, "User account is inactive or suspended"},
		{"duplicate email", service.ErrDuplicateEmail, http.StatusConflict, response.ErrCodeDuplicateEmail, "Email already registered"},
		{"super admin exists", service.ErrSuperAdminExists, http.StatusConflict, response.ErrCodeSuperAdminExists, "Super admin already exists"},
		{"tenant not found", service.ErrTenantNotFound, http.StatusNotFound, response.ErrCodeTenantNotFound, "Business not found"},
		{"tenant has owner", service.ErrTenantHasOwner, http.StatusConflict, response.ErrCodeConflict, "Business already has an owner"},
		{"identity not found", service.ErrIdentityNotFound, http.StatusNotFound, response.ErrCodeIdentityNotFound, "User not found"},
		{"invalid role", service.ErrInvalidRoleForFlow, http.StatusBadRequest, response.ErrCodeInvalidRoleForFlow, "Invalid role for this operation"},
		{"login timeout", service.ErrLoginTimeout, http.StatusGatewayTimeout, response.ErrCodeGatewayTimeout, "Login timed out, please retry"},
		{
			name:       "invalid input keeps its detail",
			err:        fmt.Errorf("%w: password must be at least 8 characters", service.ErrInvalidInput),
			wantStatus: http.StatusBadRequest,
			wantCode:   response.ErrCodeValidationFailed,
			wantMsg:    "invalid input: password must be at least 8 characters",
		},
		{
			name:       "wrapped kind",
			err:        fmt.Errorf("create staff: %w", service.ErrTenantNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   response.ErrCodeTenantNotFound,
			wantMsg:    "Business not found",
		},
		{
			name:       "unknown error hides detail",
			err:        errors.New("pq: relation identities does not exist"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   response.ErrCodeInternalError,
			wantMsg:    "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			writeError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			var body response.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.Equal(t, tt.wantMsg, body.Error.Message)
			assert.NotContains(t, w.Body.String(), "relation")
		})
	}
}

func TestHealthHandler(t *testing.T) {
	serve := func(h gin.HandlerFunc) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		h(c)
		return w
	}

	t.Run("health", func(t *testing.T) {
		h := NewHealthHandler("crm-auth", nil)
		w := serve(h.Health)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"healthy","service":"crm-auth"}`, w.Body.String())
	})

	t.Run("ready", func(t *testing.T) {
		h := NewHealthHandler("crm-auth", func(ctx context.Context) error { return nil })
		w := serve(h.Ready)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ready","service":"crm-auth"}`, w.Body.String())
	})

	t.Run("storage down", func(t *testing.T) {
		h := NewHealthHandler("crm-auth", func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			assert.True(t, ok, "ping runs under a deadline")
			return errors.New("connection refused")
		})
		w := serve(h.Ready)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.NotContains(t, w.Body.String(), "connection refused")
	})
}
