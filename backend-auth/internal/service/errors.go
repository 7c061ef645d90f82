package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/repository"
	"github.com/prohmpiriya/multicore-crm/pkg/logger"
)

// Error kinds surfaced to callers. Anything else leaves the service layer as
// ErrInternalFailure.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("user account is inactive or suspended")
	ErrDuplicateEmail     = repository.ErrDuplicateEmail
	ErrSuperAdminExists   = repository.ErrSuperAdminExists
	ErrTenantNotFound     = errors.New("business not found")
	ErrTenantHasOwner     = repository.ErrTenantHasOwner
	ErrIdentityNotFound   = errors.New("user not found")
	ErrInvalidRoleForFlow = errors.New("invalid role for this operation")
	ErrInvalidInput       = errors.New("invalid input")
	ErrLoginTimeout       = errors.New("login timed out")
	ErrInternalFailure    = errors.New("internal error")
)

var knownErrors = []error{
	ErrInvalidCredentials,
	ErrAccountInactive,
	ErrDuplicateEmail,
	ErrSuperAdminExists,
	ErrTenantNotFound,
	ErrTenantHasOwner,
	ErrIdentityNotFound,
	ErrInvalidRoleForFlow,
	ErrInvalidInput,
	ErrLoginTimeout,
	ErrInternalFailure,
}

// IsKnown reports whether err wraps one of the caller-visible error kinds
func IsKnown(err error) bool {
	for _, known := range knownErrors {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}

// sanitize passes caller-visible kinds through and replaces everything else
// with ErrInternalFailure after logging the detail.
func sanitize(ctx context.Context, log *logger.Logger, op string, err error) error {
	if err == nil || IsKnown(err) {
		return err
	}
	log.WithContext(ctx).Error("operation failed", zap.String("op", op), zap.Error(err))
	return ErrInternalFailure
}
