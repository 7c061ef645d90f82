package repository

import (
	"context"
	"errors"

	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/domain"
	"github.com/prohmpiriya/multicore-crm/pkg/database"
	"github.com/prohmpiriya/multicore-crm/pkg/middleware"
)

// Errors raised by the storage layer when a uniqueness constraint rejects a write
var (
	ErrDuplicateEmail   = errors.New("email already registered")
	ErrSuperAdminExists = errors.New("super admin already exists")
	ErrNotFound         = errors.New("record not found")
	ErrTenantHasOwner   = errors.New("business already has an owner")
)

// Lookups return (nil, nil) when the record does not exist.

// IdentityRepository defines the interface for identity data access
type IdentityRepository interface {
	// Create persists an identity and its role assignments. Fails with
	// ErrDuplicateEmail or ErrSuperAdminExists when a unique constraint rejects it.
	Create(ctx context.Context, identity *domain.Identity) error
	// GetByID retrieves an identity by ID
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	// GetByEmail retrieves an identity by normalized email
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
	// ExistsByEmail checks if an identity exists with the given email
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// SuperAdminExists checks whether the SUPER_ADMIN role is assigned to anyone
	SuperAdminExists(ctx context.Context) (bool, error)
	// SetTenant links an identity to its tenant
	SetTenant(ctx context.Context, identityID, tenantID string) error
}

// TenantRepository defines the interface for tenant data access
type TenantRepository interface {
	// Create creates a new tenant
	Create(ctx context.Context, tenant *domain.Tenant) error
	// GetByID retrieves a tenant by ID
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	// List retrieves tenants ordered by creation time, oldest first
	List(ctx context.Context, offset, limit int, isActive *bool) ([]*domain.Tenant, int, error)
	// FirstActive returns the oldest active tenant
	FirstActive(ctx context.Context) (*domain.Tenant, error)
	// Update updates the descriptive fields of a tenant
	Update(ctx context.Context, tenant *domain.Tenant) error
	// SetOwner back-fills the owner reference of a tenant that has none.
	// Fails with ErrTenantHasOwner when an owner is already set.
	SetOwner(ctx context.Context, tenantID, ownerID string) error
	// SetActive toggles the active flag
	SetActive(ctx context.Context, tenantID string, active bool) error
}

// RoleRepository defines the interface for the shared role table
type RoleRepository interface {
	// GetOrCreate returns the role row, inserting it if absent
	GetOrCreate(ctx context.Context, name domain.Role) (*domain.RoleRecord, error)
}

// LeadRepository defines the interface for lead data access
type LeadRepository interface {
	Create(ctx context.Context, lead *domain.Lead) error
	ListByTenant(ctx context.Context, tenantID string) ([]*domain.Lead, error)
}

// BusinessServiceRepository defines the interface for tenant service records
type BusinessServiceRepository interface {
	// CreateMany persists services and returns how many were written
	CreateMany(ctx context.Context, services []*domain.BusinessService) (int, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*domain.BusinessService, error)
}

// Store bundles the repositories of one backing store
type Store struct {
	Tx         database.Transactor
	Identities IdentityRepository
	Tenants    TenantRepository
	Roles      RoleRepository
	Leads      LeadRepository
	Services   BusinessServiceRepository
	Audit      middleware.AuditSink
	Ping       func(ctx context.Context) error
}
