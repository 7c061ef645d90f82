package domain

import (
	"time"
)

// Tenant represents a business in the multi-tenant system
type Tenant struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Address     string    `json:"address,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Industry    string    `json:"industry,omitempty"`
	Timezone    string    `json:"timezone,omitempty"`
	IsActive    bool      `json:"is_active"`
	OwnerID     *string   `json:"owner_id,omitempty"` // Primary admin, set once the owner exists
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasOwner reports whether the tenant is linked to an owner identity
func (t *Tenant) HasOwner() bool {
	return t.OwnerID != nil && *t.OwnerID != ""
}
