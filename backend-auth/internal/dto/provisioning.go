package dto

// CreateOwnerRequest creates a business admin, optionally with a new business
type CreateOwnerRequest struct {
	FullName     string `json:"full_name" binding:"required,max=200"`
	Email        string `json:"email" binding:"required,email,max=255"`
	Password     string `json:"password" binding:"required,max=72"`
	Phone        string `json:"phone" binding:"omitempty,max=50"`
	BusinessName string `json:"business_name" binding:"omitempty,max=255"`
	Address      string `json:"address" binding:"omitempty"`
}

// CreateOwnerForTenantRequest creates the owner of an existing business
type CreateOwnerForTenantRequest struct {
	TenantID string `json:"tenant_id" binding:"required"`
	FullName string `json:"full_name" binding:"required,max=200"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,max=72"`
	Phone    string `json:"phone" binding:"omitempty,max=50"`
}

// CreateStaffRequest creates a staff member of the caller's business
type CreateStaffRequest struct {
	FullName string `json:"full_name" binding:"required,max=200"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,max=72"`
	Phone    string `json:"phone" binding:"omitempty,max=50"`
	Role     string `json:"role" binding:"required"`
}

// ProvisionedIdentityResponse describes an identity created on someone else's
// behalf. It never carries a token.
type ProvisionedIdentityResponse struct {
	IdentityID string  `json:"identity_id"`
	Email      string  `json:"email"`
	FullName   string  `json:"full_name"`
	Role       string  `json:"role"`
	TenantID   *string `json:"tenant_id"`
	Message    string  `json:"message"`
}
