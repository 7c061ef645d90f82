package service

import (
	"context"
	"time"

	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/domain"
	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/dto"
	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/repository"
)

// TenantService defines the interface for business administration
type TenantService interface {
	// List retrieves businesses with pagination and an optional active filter
	List(ctx context.Context, query *dto.ListTenantsQuery) ([]dto.TenantResponse, int, error)
	// GetByID retrieves a business by ID
	GetByID(ctx context.Context, id string) (*dto.TenantResponse, error)
	// SetActive enables or disables a business
	SetActive(ctx context.Context, id string, active bool) (*dto.TenantResponse, error)
}

// tenantService implements TenantService
type tenantService struct {
	*Deps
}

// NewTenantService creates a new TenantService
func NewTenantService(deps *Deps) TenantService {
	return &tenantService{Deps: deps.withDefaults()}
}

// List retrieves businesses with pagination and filters
func (s *tenantService) List(ctx context.Context, query *dto.ListTenantsQuery) ([]dto.TenantResponse, int, error) {
	query.SetDefaults()

	offset := (query.Page - 1) * query.PerPage
	tenants, total, err := s.Store.Tenants.List(ctx, offset, query.PerPage, query.IsActive)
	if err != nil {
		return nil, 0, sanitize(ctx, s.Log, "list_tenants", err)
	}

	out := make([]dto.TenantResponse, 0, len(tenants))
	for _, tenant := range tenants {
		out = append(out, *toTenantResponse(tenant))
	}
	return out, total, nil
}

// GetByID retrieves a business by ID
func (s *tenantService) GetByID(ctx context.Context, id string) (*dto.TenantResponse, error) {
	tenant, err := s.Store.Tenants.GetByID(ctx, id)
	if err != nil {
		return nil, sanitize(ctx, s.Log, "get_tenant", err)
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}
	return toTenantResponse(tenant), nil
}

// SetActive enables or disables a business
func (s *tenantService) SetActive(ctx context.Context, id string, active bool) (*dto.TenantResponse, error) {
	if err := s.Store.Tenants.SetActive(ctx, id, active); err != nil {
		if err == repository.ErrNotFound {
			return nil, ErrTenantNotFound
		}
		return nil, sanitize(ctx, s.Log, "set_tenant_active", err)
	}
	return s.GetByID(ctx, id)
}

// toTenantResponse converts domain.Tenant to dto.TenantResponse
func toTenantResponse(tenant *domain.Tenant) *dto.TenantResponse {
	return &dto.TenantResponse{
		ID:          tenant.ID,
		Name:        tenant.Name,
		Description: tenant.Description,
		Address:     tenant.Address,
		Phone:       tenant.Phone,
		Industry:    tenant.Industry,
		Timezone:    tenant.Timezone,
		IsActive:    tenant.IsActive,
		OwnerID:     tenant.OwnerID,
		CreatedAt:   tenant.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   tenant.UpdatedAt.Format(time.RFC3339),
	}
}
