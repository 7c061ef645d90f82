package dto

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest represents a self-registration (customer or system admin)
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,max=72"`
	FullName string `json:"full_name" binding:"omitempty,max=200"`
	Phone    string `json:"phone" binding:"omitempty,max=50"`
}

// AuthResponse is returned by flows that start a session
type AuthResponse struct {
	Token      string  `json:"token"`
	TokenType  string  `json:"token_type"`
	ExpiresIn  int64   `json:"expires_in"` // seconds
	IdentityID string  `json:"identity_id"`
	Email      string  `json:"email"`
	FullName   string  `json:"full_name"`
	Role       string  `json:"role"`
	TenantID   *string `json:"tenant_id"`
	Message    string  `json:"message"`
}

// MeResponse is the live profile of the caller
type MeResponse struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     string   `json:"role"`
	Roles    []string `json:"roles"`
	TenantID *string  `json:"tenant_id"`
}
