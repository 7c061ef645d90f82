package domain

import (
	"strings"
	"time"
)

// Status is the account state of an identity
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusInactive  Status = "INACTIVE"
	StatusSuspended Status = "SUSPENDED"
)

// Identity is a login-capable account
type Identity struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Phone        string    `json:"phone,omitempty"`
	Status       Status    `json:"status"`
	Roles        []Role    `json:"roles"`
	TenantID     *string   `json:"tenant_id,omitempty"`
	CreatedBy    *string   `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsActive reports whether the identity may log in
func (i *Identity) IsActive() bool {
	return i.Status == StatusActive
}

// HasRole reports whether r is assigned to the identity
func (i *Identity) HasRole(r Role) bool {
	for _, have := range i.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// PrimaryRole returns the first assigned role, CUSTOMER when none is assigned
func (i *Identity) PrimaryRole() Role {
	if len(i.Roles) == 0 {
		return RoleCustomer
	}
	return i.Roles[0]
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// StringPtr returns a pointer to s, or nil when s is empty
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
