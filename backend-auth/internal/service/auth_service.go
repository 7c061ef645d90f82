package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/domain"
	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/dto"
	"github.com/prohmpiriya/multicore-crm/pkg/middleware"
	"github.com/prohmpiriya/multicore-crm/pkg/password"
	"github.com/prohmpiriya/multicore-crm/pkg/saga"
	"github.com/prohmpiriya/multicore-crm/pkg/telemetry"
	"github.com/prohmpiriya/multicore-crm/pkg/token"
)

// AuthService defines the interface for authentication and self-registration
type AuthService interface {
	// Login verifies credentials and issues a token
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error)
	// RegisterCustomer creates a CUSTOMER identity and issues a token
	RegisterCustomer(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error)
	// RegisterAdmin creates the single SUPER_ADMIN identity and issues a token
	RegisterAdmin(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error)
	// Me returns the live profile of an identity
	Me(ctx context.Context, identityID string) (*dto.MeResponse, error)
	// ResolvePrincipal loads the live roles and tenant for an email
	ResolvePrincipal(ctx context.Context, email string) (*middleware.Principal, error)
}

// authService implements AuthService
type authService struct {
	*Deps

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates a new AuthService
func NewAuthService(deps *Deps) AuthService {
	return &authService{Deps: deps.withDefaults()}
}

// Login runs under the configured login timeout. Unknown email and wrong
// password produce the same error.
func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "auth.login")
	resp, outcome, err := s.login(ctx, req)
	s.Metrics.LoginAttempt(ctx, outcome)
	telemetry.EndSpan(span, err)
	return resp, err
}

func (s *authService) login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Config.LoginTimeout)
	defer cancel()

	identity, err := s.Store.Identities.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, "timeout", ErrLoginTimeout
		}
		return nil, "error", sanitize(ctx, s.Log, "login", err)
	}
	if identity == nil {
		// Unknown emails pay for one comparison like known ones do.
		_ = s.Hasher.Verify(s.unknownIdentityHash(), req.Password)
		return nil, "invalid_credentials", ErrInvalidCredentials
	}

	if err := s.Hasher.Verify(identity.PasswordHash, req.Password); err != nil {
		if !errors.Is(err, password.ErrMismatch) {
			s.Log.WithContext(ctx).Warn("password verification error", zap.String("email", identity.Email), zap.Error(err))
		}
		return nil, "invalid_credentials", ErrInvalidCredentials
	}
	if ctx.Err() != nil {
		return nil, "timeout", ErrLoginTimeout
	}

	if !identity.IsActive() {
		return nil, "inactive", ErrAccountInactive
	}

	resp, err := s.sessionFor(identity, "Login successful")
	if err != nil {
		return nil, "error", sanitize(ctx, s.Log, "login", err)
	}

	s.Log.WithContext(ctx).Info("user logged in",
		zap.String("email", identity.Email),
		zap.String("role", resp.Role),
	)
	return resp, "success", nil
}

// unknownIdentityHash is a hash at the configured cost that no login matches
func (s *authService) unknownIdentityHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.Hasher.Hash("unknown-identity-" + uuid.NewString())
		if err != nil {
			s.Log.Warn("dummy password hash unavailable", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// RegisterCustomer creates a CUSTOMER identity. The lead and event that
// follow are deferred until after commit and never fail the registration.
func (s *authService) RegisterCustomer(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	identity, err := s.selfRegister(ctx, saga.FlowRegisterCustomer, domain.RoleCustomer, req, func(ctx context.Context, identity *domain.Identity) {
		s.scheduleCustomerLead(ctx, identity)
		s.scheduleIdentityEvent(ctx, identity, string(saga.FlowRegisterCustomer))
	})
	if err != nil {
		return nil, sanitize(ctx, s.Log, "register_customer", err)
	}

	resp, err := s.sessionFor(identity, "Registration successful")
	if err != nil {
		return nil, sanitize(ctx, s.Log, "register_customer", err)
	}
	return resp, nil
}

// RegisterAdmin creates the single SUPER_ADMIN. The existence check is a
// fast path; the storage constraint decides concurrent attempts.
func (s *authService) RegisterAdmin(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	exists, err := s.Store.Identities.SuperAdminExists(ctx)
	if err != nil {
		return nil, sanitize(ctx, s.Log, "register_admin", err)
	}
	if exists {
		return nil, ErrSuperAdminExists
	}

	identity, err := s.selfRegister(ctx, saga.FlowRegisterAdmin, domain.RoleSuperAdmin, req, func(ctx context.Context, identity *domain.Identity) {
		s.scheduleIdentityEvent(ctx, identity, string(saga.FlowRegisterAdmin))
	})
	if err != nil {
		return nil, sanitize(ctx, s.Log, "register_admin", err)
	}

	resp, err := s.sessionFor(identity, "Admin registered successfully")
	if err != nil {
		return nil, sanitize(ctx, s.Log, "register_admin", err)
	}
	return resp, nil
}

func (s *authService) selfRegister(
	ctx context.Context,
	kind saga.FlowKind,
	role domain.Role,
	req *dto.RegisterRequest,
	afterPersist func(ctx context.Context, identity *domain.Identity),
) (*domain.Identity, error) {
	identity, err := s.prepare(newAccount{
		fullName: req.FullName,
		email:    req.Email,
		password: req.Password,
		phone:    req.Phone,
		role:     role,
	})
	if err != nil {
		return nil, err
	}

	err = s.runFlow(ctx, kind, identity.Email, func(ctx context.Context, step *flowStep) error {
		if err := s.persistIdentity(ctx, step, identity); err != nil {
			return err
		}
		afterPersist(ctx, identity)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.WithContext(ctx).Info("identity registered",
		zap.String("email", identity.Email),
		zap.String("identity_id", identity.ID),
		zap.String("flow", string(kind)),
	)
	return identity, nil
}

// Me reads the profile from storage, never from the token
func (s *authService) Me(ctx context.Context, identityID string) (*dto.MeResponse, error) {
	identity, err := s.Store.Identities.GetByID(ctx, identityID)
	if err != nil {
		return nil, sanitize(ctx, s.Log, "me", err)
	}
	if identity == nil {
		return nil, ErrIdentityNotFound
	}

	return &dto.MeResponse{
		ID:       identity.ID,
		Email:    identity.Email,
		FullName: identity.FullName,
		Role:     string(identity.PrimaryRole()),
		Roles:    domain.RoleStrings(identity.Roles),
		TenantID: identity.TenantID,
	}, nil
}

// ResolvePrincipal implements middleware.PrincipalResolver
func (s *authService) ResolvePrincipal(ctx context.Context, email string) (*middleware.Principal, error) {
	identity, err := s.Store.Identities.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, middleware.ErrPrincipalNotFound
	}

	return &middleware.Principal{
		IdentityID: identity.ID,
		Email:      identity.Email,
		TenantID:   identity.TenantID,
		Roles:      domain.RoleStrings(identity.Roles),
	}, nil
}

// sessionFor issues a token for identity
func (s *authService) sessionFor(identity *domain.Identity, message string) (*dto.AuthResponse, error) {
	return issueSession(s.Tokens, identity, message)
}

func issueSession(tokens *token.Service, identity *domain.Identity, message string) (*dto.AuthResponse, error) {
	raw, err := tokens.Issue(token.Subject{
		IdentityID: identity.ID,
		Email:      identity.Email,
		TenantID:   identity.TenantID,
	})
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &dto.AuthResponse{
		Token:      raw,
		TokenType:  "Bearer",
		ExpiresIn:  int64(tokens.TTL().Seconds()),
		IdentityID: identity.ID,
		Email:      identity.Email,
		FullName:   identity.FullName,
		Role:       string(identity.PrimaryRole()),
		TenantID:   identity.TenantID,
		Message:    message,
	}, nil
}
