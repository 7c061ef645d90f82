package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/dto"
	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/service"
	"github.com/prohmpiriya/multicore-crm/pkg/middleware"
	"github.com/prohmpiriya/multicore-crm/pkg/response"
)

// OnboardingHandler handles business onboarding by the platform admin
type OnboardingHandler struct {
	onboardingService service.OnboardingService
}

// NewOnboardingHandler creates a new OnboardingHandler
func NewOnboardingHandler(onboardingService service.OnboardingService) *OnboardingHandler {
	return &OnboardingHandler{onboardingService: onboardingService}
}

// Bulk handles POST /onboarding/bulk. Per-item failures are reported in the
// body; the request itself succeeds.
func (h *OnboardingHandler) Bulk(c *gin.Context) {
	var req dto.BulkOnboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	creator, _ := middleware.GetPrincipal(c)
	result := h.onboardingService.Onboard(c.Request.Context(), creator, &req)

	middleware.SetAuditMetadata(c, map[string]interface{}{
		"requested": result.Requested,
		"succeeded": result.Succeeded,
	})
	c.JSON(http.StatusOK, response.Success(result))
}

// Single handles POST /onboarding/single
func (h *OnboardingHandler) Single(c *gin.Context) {
	var req dto.OnboardingItem
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	creator, _ := middleware.GetPrincipal(c)
	result := h.onboardingService.OnboardSingle(c.Request.Context(), creator, &req)
	if !result.Success {
		c.JSON(http.StatusUnprocessableEntity, &response.Response{
			Success: false,
			Data:    result,
			Error:   &response.ErrorInfo{Code: response.ErrCodeValidationFailed, Message: result.Message},
		})
		return
	}

	if result.TenantID != nil {
		middleware.SetAuditResource(c, "business", *result.TenantID)
	}
	c.JSON(http.StatusCreated, response.Success(result))
}
