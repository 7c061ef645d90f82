package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/dto"
	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/service"
	"github.com/prohmpiriya/multicore-crm/pkg/middleware"
	"github.com/prohmpiriya/multicore-crm/pkg/response"
)

// TenantHandler handles business administration by the platform admin
type TenantHandler struct {
	tenantService       service.TenantService
	provisioningService service.ProvisioningService
}

// NewTenantHandler creates a new TenantHandler
func NewTenantHandler(tenantService service.TenantService, provisioningService service.ProvisioningService) *TenantHandler {
	return &TenantHandler{
		tenantService:       tenantService,
		provisioningService: provisioningService,
	}
}

// List handles retrieving businesses with pagination
// GET /admin/businesses
func (h *TenantHandler) List(c *gin.Context) {
	var query dto.ListTenantsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	result, total, err := h.tenantService.List(c.Request.Context(), &query)
	if err != nil {
		writeError(c, err)
		return
	}

	params := response.PaginationParams{Page: query.Page, PerPage: query.PerPage}
	c.JSON(http.StatusOK, response.Paginated(result, params, int64(total)))
}

// GetByID handles retrieving a business by ID
// GET /admin/businesses/:id
func (h *TenantHandler) GetByID(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("Business ID is required"))
		return
	}

	result, err := h.tenantService.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}

// SetStatus enables or disables a business
// PATCH /admin/businesses/:id/status?active=true|false
func (h *TenantHandler) SetStatus(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("Business ID is required"))
		return
	}

	var query dto.SetStatusQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	result, err := h.tenantService.SetActive(c.Request.Context(), id, *query.Active)
	if err != nil {
		writeError(c, err)
		return
	}

	middleware.SetAuditResource(c, "business", id)
	c.JSON(http.StatusOK, response.Success(result))
}

// CreateOwner creates a business admin with an optional new business
// POST /admin/owners
func (h *TenantHandler) CreateOwner(c *gin.Context) {
	var req dto.CreateOwnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	creator, _ := middleware.GetPrincipal(c)
	result, err := h.provisioningService.CreateOwner(c.Request.Context(), creator, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	middleware.SetAuditResource(c, "identity", result.IdentityID)
	c.JSON(http.StatusCreated, response.Success(result))
}

// CreateOwnerForTenant creates the owner of an existing business
// POST /admin/create-owner
func (h *TenantHandler) CreateOwnerForTenant(c *gin.Context) {
	var req dto.CreateOwnerForTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	creator, _ := middleware.GetPrincipal(c)
	result, err := h.provisioningService.CreateOwnerForTenant(c.Request.Context(), creator, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	middleware.SetAuditResource(c, "identity", result.IdentityID)
	c.JSON(http.StatusCreated, response.Success(result))
}
