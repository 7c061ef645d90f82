package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/dto"
	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/service"
	"github.com/prohmpiriya/multicore-crm/pkg/middleware"
	"github.com/prohmpiriya/multicore-crm/pkg/response"
)

// OwnerHandler handles requests made by a business admin about its own business
type OwnerHandler struct {
	provisioningService service.ProvisioningService
}

// NewOwnerHandler creates a new OwnerHandler
func NewOwnerHandler(provisioningService service.ProvisioningService) *OwnerHandler {
	return &OwnerHandler{provisioningService: provisioningService}
}

// SaveBusiness handles POST /owner/business. Responds 201 when the business
// is created and 200 when an existing one is updated.
func (h *OwnerHandler) SaveBusiness(c *gin.Context) {
	var req dto.BusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	caller, _ := middleware.GetPrincipal(c)
	result, created, err := h.provisioningService.SaveBusiness(c.Request.Context(), caller, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	middleware.SetAuditResource(c, "business", result.ID)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, response.Success(result))
}

// CreateStaff handles POST /owner/create-staff under the caller's own business
func (h *OwnerHandler) CreateStaff(c *gin.Context) {
	caller, _ := middleware.GetPrincipal(c)
	if caller == nil || caller.TenantID == nil {
		c.JSON(http.StatusBadRequest, response.Error(response.ErrCodeTenantNotFound, "Create your business before adding staff"))
		return
	}
	h.createStaff(c, caller, *caller.TenantID)
}

// CreateStaffForTenant handles POST /business/:tenantId/staff. It is mounted
// behind middleware.TenantScope, which rejects callers of another tenant.
func (h *OwnerHandler) CreateStaffForTenant(c *gin.Context) {
	caller, _ := middleware.GetPrincipal(c)
	h.createStaff(c, caller, c.Param("tenantId"))
}

func (h *OwnerHandler) createStaff(c *gin.Context, caller *middleware.Principal, tenantID string) {
	var req dto.CreateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	result, err := h.provisioningService.CreateStaff(c.Request.Context(), caller, tenantID, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	middleware.SetAuditResource(c, "identity", result.IdentityID)
	c.JSON(http.StatusCreated, response.Success(result))
}
