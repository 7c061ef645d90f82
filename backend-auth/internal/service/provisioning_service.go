package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/domain"
	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/dto"
	"github.com/prohmpiriya/multicore-crm/pkg/middleware"
	"github.com/prohmpiriya/multicore-crm/pkg/saga"
)

const msgLoginSeparately = "Account created. The user must log in to obtain a session."

// ProvisioningService creates identities and businesses on behalf of a caller
type ProvisioningService interface {
	// CreateOwner creates a BUSINESS_ADMIN and, when a business name is
	// given, the business it owns. No token is returned.
	CreateOwner(ctx context.Context, creator *middleware.Principal, req *dto.CreateOwnerRequest) (*dto.ProvisionedIdentityResponse, error)
	// CreateOwnerForTenant creates the owner of an existing business. No token is returned.
	CreateOwnerForTenant(ctx context.Context, creator *middleware.Principal, req *dto.CreateOwnerForTenantRequest) (*dto.ProvisionedIdentityResponse, error)
	// CreateStaff creates a staff member under tenantID and issues its token
	CreateStaff(ctx context.Context, creator *middleware.Principal, tenantID string, req *dto.CreateStaffRequest) (*dto.AuthResponse, error)
	// SaveBusiness creates the caller's business, or updates it if one exists.
	// The bool reports whether a business was created.
	SaveBusiness(ctx context.Context, caller *middleware.Principal, req *dto.BusinessRequest) (*dto.TenantResponse, bool, error)
}

// provisioningService implements ProvisioningService
type provisioningService struct {
	*Deps
}

// NewProvisioningService creates a new ProvisioningService
func NewProvisioningService(deps *Deps) ProvisioningService {
	return &provisioningService{Deps: deps.withDefaults()}
}

// newAccount is the input shared by every identity-creating flow
type newAccount struct {
	fullName  string
	email     string
	password  string
	phone     string
	role      domain.Role
	createdBy *string
}

// prepare validates the password and builds the identity outside the transaction
func (d *Deps) prepare(acct newAccount) (*domain.Identity, error) {
	if len(acct.password) < d.Config.MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, d.Config.MinPasswordLength)
	}
	hash, err := d.Hasher.Hash(acct.password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &domain.Identity{
		ID:           uuid.New().String(),
		Email:        domain.NormalizeEmail(acct.email),
		PasswordHash: hash,
		FullName:     acct.fullName,
		Phone:        acct.phone,
		Status:       domain.StatusActive,
		Roles:        []domain.Role{acct.role},
		CreatedBy:    acct.createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// persistIdentity runs the uniqueness pre-check, resolves the role and
// inserts identity inside the current transaction.
func (d *Deps) persistIdentity(ctx context.Context, step *flowStep, identity *domain.Identity) error {
	exists, err := d.Store.Identities.ExistsByEmail(ctx, identity.Email)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateEmail
	}
	step.advance(ctx, saga.StateValidated, "email available")

	role := identity.PrimaryRole()
	if _, err := d.Store.Roles.GetOrCreate(ctx, role); err != nil {
		return err
	}
	step.advance(ctx, saga.StateRoleResolved, string(role))

	if err := d.Store.Identities.Create(ctx, identity); err != nil {
		return err
	}
	step.identity(ctx, identity.ID)
	return nil
}

func newTenant(req *dto.BusinessRequest, ownerID *string) *domain.Tenant {
	now := time.Now()
	return &domain.Tenant{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Address:     req.Address,
		Phone:       req.Phone,
		Industry:    req.Industry,
		Timezone:    req.Timezone,
		IsActive:    true,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func creatorID(p *middleware.Principal) *string {
	if p == nil {
		return nil
	}
	return domain.StringPtr(p.IdentityID)
}

// CreateOwner persists the business first, then the owner referencing it,
// then back-fills the business owner so both sides agree at commit.
func (s *provisioningService) CreateOwner(ctx context.Context, creator *middleware.Principal, req *dto.CreateOwnerRequest) (*dto.ProvisionedIdentityResponse, error) {
	owner, err := s.prepare(newAccount{
		fullName:  req.FullName,
		email:     req.Email,
		password:  req.Password,
		phone:     req.Phone,
		role:      domain.RoleBusinessAdmin,
		createdBy: creatorID(creator),
	})
	if err != nil {
		return nil, sanitize(ctx, s.Log, "create_owner", err)
	}

	err = s.runFlow(ctx, saga.FlowCreateOwner, owner.Email, func(ctx context.Context, step *flowStep) error {
		if req.BusinessName != "" {
			tenant := newTenant(&dto.BusinessRequest{Name: req.BusinessName, Address: req.Address}, nil)
			return s.persistTenantWithOwner(ctx, step, tenant, owner, saga.FlowCreateOwner)
		}
		if err := s.persistIdentity(ctx, step, owner); err != nil {
			return err
		}

		s.scheduleIdentityEvent(ctx, owner, string(saga.FlowCreateOwner))
		return nil
	})
	if err != nil {
		return nil, sanitize(ctx, s.Log, "create_owner", err)
	}

	s.Log.WithContext(ctx).Info("owner created",
		zap.String("email", owner.Email),
		zap.String("identity_id", owner.ID),
		zap.Stringp("tenant_id", owner.TenantID),
	)
	return provisioned(owner), nil
}

// persistTenantWithOwner inserts tenant, then owner referencing it when
// owner is non-nil, then back-fills the tenant's owner. Runs inside the
// caller's transaction.
func (d *Deps) persistTenantWithOwner(ctx context.Context, step *flowStep, tenant *domain.Tenant, owner *domain.Identity, kind saga.FlowKind) error {
	if owner != nil {
		exists, err := d.Store.Identities.ExistsByEmail(ctx, owner.Email)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateEmail
		}
	}
	step.advance(ctx, saga.StateValidated, "input accepted")

	if owner != nil {
		role := owner.PrimaryRole()
		if _, err := d.Store.Roles.GetOrCreate(ctx, role); err != nil {
			return err
		}
		step.advance(ctx, saga.StateRoleResolved, string(role))
	}

	if err := d.Store.Tenants.Create(ctx, tenant); err != nil {
		return err
	}
	step.tenant(ctx, tenant.ID)

	if owner != nil {
		owner.TenantID = &tenant.ID
		if err := d.Store.Identities.Create(ctx, owner); err != nil {
			return err
		}
		step.identity(ctx, owner.ID)

		if err := d.Store.Tenants.SetOwner(ctx, tenant.ID, owner.ID); err != nil {
			return err
		}
		tenant.OwnerID = &owner.ID
		step.advance(ctx, saga.StateLinked, "owner back-filled")
		d.scheduleIdentityEvent(ctx, owner, string(kind))
	}

	d.scheduleTenantEvent(ctx, tenant, string(kind))
	return nil
}

// CreateOwnerForTenant links a new owner to an existing business
func (s *provisioningService) CreateOwnerForTenant(ctx context.Context, creator *middleware.Principal, req *dto.CreateOwnerForTenantRequest) (*dto.ProvisionedIdentityResponse, error) {
	owner, err := s.prepare(newAccount{
		fullName:  req.FullName,
		email:     req.Email,
		password:  req.Password,
		phone:     req.Phone,
		role:      domain.RoleBusinessAdmin,
		createdBy: creatorID(creator),
	})
	if err != nil {
		return nil, sanitize(ctx, s.Log, "create_owner_for_tenant", err)
	}

	err = s.runFlow(ctx, saga.FlowCreateOwnerForTenant, owner.Email, func(ctx context.Context, step *flowStep) error {
		return s.attachOwner(ctx, step, req.TenantID, owner)
	})
	if err != nil {
		return nil, sanitize(ctx, s.Log, "create_owner_for_tenant", err)
	}

	s.Log.WithContext(ctx).Info("owner created for business",
		zap.String("email", owner.Email),
		zap.String("tenant_id", req.TenantID),
	)
	return provisioned(owner), nil
}

// attachOwner creates owner under an existing tenant and back-fills the
// tenant's owner reference. Runs inside the caller's transaction.
func (d *Deps) attachOwner(ctx context.Context, step *flowStep, tenantID string, owner *domain.Identity) error {
	tenant, err := d.Store.Tenants.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}
	if tenant == nil {
		return ErrTenantNotFound
	}
	if tenant.HasOwner() {
		return ErrTenantHasOwner
	}

	owner.TenantID = &tenant.ID
	if err := d.persistIdentity(ctx, step, owner); err != nil {
		return err
	}

	if err := d.Store.Tenants.SetOwner(ctx, tenant.ID, owner.ID); err != nil {
		return err
	}
	step.advance(ctx, saga.StateLinked, "owner back-filled")

	d.scheduleIdentityEvent(ctx, owner, string(saga.FlowCreateOwnerForTenant))
	return nil
}

// CreateStaff creates a staff identity. The tenant guard is the caller's job;
// this only checks that the business exists and the role is a staff role.
func (s *provisioningService) CreateStaff(ctx context.Context, creator *middleware.Principal, tenantID string, req *dto.CreateStaffRequest) (*dto.AuthResponse, error) {
	role := domain.Role(req.Role)
	if !role.IsStaff() {
		return nil, ErrInvalidRoleForFlow
	}
	if tenantID == "" {
		return nil, ErrTenantNotFound
	}

	staff, err := s.prepare(newAccount{
		fullName:  req.FullName,
		email:     req.Email,
		password:  req.Password,
		phone:     req.Phone,
		role:      role,
		createdBy: creatorID(creator),
	})
	if err != nil {
		return nil, sanitize(ctx, s.Log, "create_staff", err)
	}
	staff.TenantID = &tenantID

	err = s.runFlow(ctx, saga.FlowCreateStaff, staff.Email, func(ctx context.Context, step *flowStep) error {
		tenant, err := s.Store.Tenants.GetByID(ctx, tenantID)
		if err != nil {
			return err
		}
		if tenant == nil {
			return ErrTenantNotFound
		}
		if err := s.persistIdentity(ctx, step, staff); err != nil {
			return err
		}
		s.scheduleIdentityEvent(ctx, staff, string(saga.FlowCreateStaff))
		return nil
	})
	if err != nil {
		return nil, sanitize(ctx, s.Log, "create_staff", err)
	}

	s.Log.WithContext(ctx).Info("staff created",
		zap.String("email", staff.Email),
		zap.String("role", string(role)),
		zap.String("tenant_id", tenantID),
	)

	resp, err := issueSession(s.Tokens, staff, "Staff created successfully")
	if err != nil {
		return nil, sanitize(ctx, s.Log, "create_staff", err)
	}
	return resp, nil
}

// SaveBusiness creates the business then back-fills the caller's tenant
// link in the same transaction. A caller that already has a business gets
// it updated instead.
func (s *provisioningService) SaveBusiness(ctx context.Context, caller *middleware.Principal, req *dto.BusinessRequest) (*dto.TenantResponse, bool, error) {
	identity, err := s.Store.Identities.GetByID(ctx, caller.IdentityID)
	if err != nil {
		return nil, false, sanitize(ctx, s.Log, "save_business", err)
	}
	if identity == nil {
		return nil, false, ErrIdentityNotFound
	}

	if identity.TenantID != nil {
		tenant, err := s.updateBusiness(ctx, *identity.TenantID, req)
		if err != nil {
			return nil, false, sanitize(ctx, s.Log, "save_business", err)
		}
		return toTenantResponse(tenant), false, nil
	}

	tenant := newTenant(req, &identity.ID)
	err = s.runFlow(ctx, saga.FlowCreateBusiness, identity.Email, func(ctx context.Context, step *flowStep) error {
		step.advance(ctx, saga.StateValidated, "caller has no business")

		if err := s.Store.Tenants.Create(ctx, tenant); err != nil {
			return err
		}
		step.tenant(ctx, tenant.ID)

		if err := s.Store.Identities.SetTenant(ctx, identity.ID, tenant.ID); err != nil {
			return err
		}
		step.advance(ctx, saga.StateLinked, "owner tenant back-filled")

		s.scheduleTenantEvent(ctx, tenant, string(saga.FlowCreateBusiness))
		return nil
	})
	if err != nil {
		return nil, false, sanitize(ctx, s.Log, "save_business", err)
	}

	s.Log.WithContext(ctx).Info("business created for owner",
		zap.String("email", identity.Email),
		zap.String("tenant_id", tenant.ID),
	)
	return toTenantResponse(tenant), true, nil
}

func (s *provisioningService) updateBusiness(ctx context.Context, tenantID string, req *dto.BusinessRequest) (*domain.Tenant, error) {
	tenant, err := s.Store.Tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}

	tenant.Name = req.Name
	if req.Description != "" {
		tenant.Description = req.Description
	}
	if req.Address != "" {
		tenant.Address = req.Address
	}
	if req.Phone != "" {
		tenant.Phone = req.Phone
	}
	if req.Industry != "" {
		tenant.Industry = req.Industry
	}
	if req.Timezone != "" {
		tenant.Timezone = req.Timezone
	}

	if err := s.Store.Tenants.Update(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

func provisioned(identity *domain.Identity) *dto.ProvisionedIdentityResponse {
	return &dto.ProvisionedIdentityResponse{
		IdentityID: identity.ID,
		Email:      identity.Email,
		FullName:   identity.FullName,
		Role:       string(identity.PrimaryRole()),
		TenantID:   identity.TenantID,
		Message:    msgLoginSeparately,
	}
}
