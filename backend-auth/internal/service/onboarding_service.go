package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/domain"
	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/dto"
	"github.com/prohmpiriya/multicore-crm/pkg/middleware"
	"github.com/prohmpiriya/multicore-crm/pkg/saga"
)

// OnboardingService onboards businesses in bulk
type OnboardingService interface {
	// Onboard processes items in order. Each item commits or rolls back on
	// its own; a failed item never stops the batch.
	Onboard(ctx context.Context, creator *middleware.Principal, req *dto.BulkOnboardingRequest) *dto.BulkOnboardingResponse
	// OnboardSingle onboards one business
	OnboardSingle(ctx context.Context, creator *middleware.Principal, item *dto.OnboardingItem) dto.OnboardingResult
}

// onboardingService implements OnboardingService
type onboardingService struct {
	*Deps
}

// NewOnboardingService creates a new OnboardingService
func NewOnboardingService(deps *Deps) OnboardingService {
	return &onboardingService{Deps: deps.withDefaults()}
}

// Onboard runs every item sequentially and preserves input order in the results
func (s *onboardingService) Onboard(ctx context.Context, creator *middleware.Principal, req *dto.BulkOnboardingRequest) *dto.BulkOnboardingResponse {
	resp := &dto.BulkOnboardingResponse{
		Requested: len(req.Businesses),
		Results:   make([]dto.OnboardingResult, 0, len(req.Businesses)),
	}

	for i := range req.Businesses {
		result := s.OnboardSingle(ctx, creator, &req.Businesses[i])
		if result.Success {
			resp.Succeeded++
		}
		resp.Results = append(resp.Results, result)
	}

	s.Log.WithContext(ctx).Info("bulk onboarding finished",
		zap.Int("requested", resp.Requested),
		zap.Int("succeeded", resp.Succeeded),
	)
	return resp
}

// OnboardSingle creates the business, its optional owner and its services in
// one transaction. Failures become a result entry rather than an error.
func (s *onboardingService) OnboardSingle(ctx context.Context, creator *middleware.Principal, item *dto.OnboardingItem) dto.OnboardingResult {
	result := dto.OnboardingResult{BusinessName: item.Name}

	var owner *domain.Identity
	if item.HasOwner() {
		var err error
		owner, err = s.prepare(newAccount{
			fullName:  item.OwnerFullName,
			email:     item.OwnerEmail,
			password:  item.OwnerPassword,
			phone:     item.OwnerPhone,
			role:      domain.RoleBusinessAdmin,
			createdBy: creatorID(creator),
		})
		if err != nil {
			return s.failed(ctx, result, sanitize(ctx, s.Log, "onboard_tenant", err))
		}
	}

	email := ""
	if owner != nil {
		email = owner.Email
	}

	tenant := newTenant(&dto.BusinessRequest{
		Name:        item.Name,
		Description: item.Description,
		Address:     item.Address,
		Industry:    item.Industry,
	}, nil)

	created := 0
	err := s.runFlow(ctx, saga.FlowOnboardTenant, email, func(ctx context.Context, step *flowStep) error {
		if err := s.persistTenantWithOwner(ctx, step, tenant, owner, saga.FlowOnboardTenant); err != nil {
			return err
		}

		n, err := s.Store.Services.CreateMany(ctx, buildServices(tenant.ID, item.Services))
		if err != nil {
			return err
		}
		created = n
		return nil
	})
	if err != nil {
		return s.failed(ctx, result, sanitize(ctx, s.Log, "onboard_tenant", err))
	}

	s.Metrics.OnboardingItem(ctx, true)
	result.TenantID = &tenant.ID
	result.OwnerCreated = owner != nil
	result.ServicesCreated = created
	result.Success = true
	result.Message = "Business onboarded successfully"
	return result
}

func (s *onboardingService) failed(ctx context.Context, result dto.OnboardingResult, err error) dto.OnboardingResult {
	s.Metrics.OnboardingItem(ctx, false)
	s.Log.WithContext(ctx).Warn("onboarding item failed",
		zap.String("business", result.BusinessName),
		zap.Error(err),
	)
	result.Success = false
	result.Message = Message(err)
	return result
}

func buildServices(tenantID string, payloads []dto.ServicePayload) []*domain.BusinessService {
	now := time.Now()
	out := make([]*domain.BusinessService, 0, len(payloads))
	for _, p := range payloads {
		active := true
		if p.Active != nil {
			active = *p.Active
		}
		out = append(out, &domain.BusinessService{
			ID:          uuid.New().String(),
			TenantID:    tenantID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			IsActive:    active,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return out
}

// Message renders an error kind as caller-facing text
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDuplicateEmail):
		return "Email already registered"
	case errors.Is(err, ErrSuperAdminExists):
		return "Super admin already exists"
	case errors.Is(err, ErrTenantNotFound):
		return "Business not found"
	case errors.Is(err, ErrTenantHasOwner):
		return "Business already has an owner"
	case errors.Is(err, ErrIdentityNotFound):
		return "User not found"
	case errors.Is(err, ErrInvalidRoleForFlow):
		return "Invalid role for this operation"
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, ErrAccountInactive):
		return "User account is inactive or suspended"
	case errors.Is(err, ErrLoginTimeout):
		return "Login timed out, please retry"
	case errors.Is(err, ErrInvalidInput):
		return err.Error()
	default:
		return "Internal server error"
	}
}
