package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/dto"
	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/service"
	"github.com/prohmpiriya/multicore-crm/pkg/middleware"
	"github.com/prohmpiriya/multicore-crm/pkg/response"
)

// AuthHandler handles login, self-registration and profile requests
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}

// RegisterCustomer handles POST /auth/register/customer and POST /portal/register
func (h *AuthHandler) RegisterCustomer(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	result, err := h.authService.RegisterCustomer(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	middleware.SetAuditResource(c, "identity", result.IdentityID)
	c.JSON(http.StatusCreated, response.Success(result))
}

// RegisterAdmin handles POST /auth/register/admin
func (h *AuthHandler) RegisterAdmin(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	result, err := h.authService.RegisterAdmin(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	middleware.SetAuditResource(c, "identity", result.IdentityID)
	c.JSON(http.StatusCreated, response.Success(result))
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	identityID, ok := middleware.GetIdentityID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Flat(middleware.MsgAuthenticationRequired))
		return
	}

	result, err := h.authService.Me(c.Request.Context(), identityID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}
