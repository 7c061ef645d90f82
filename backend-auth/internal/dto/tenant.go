package dto

// BusinessRequest creates or updates the caller's business
type BusinessRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=255"`
	Description string `json:"description" binding:"omitempty"`
	Address     string `json:"address" binding:"omitempty"`
	Phone       string `json:"phone" binding:"omitempty,max=50"`
	Industry    string `json:"industry" binding:"omitempty,max=100"`
	Timezone    string `json:"timezone" binding:"omitempty,max=64"`
}

// TenantResponse represents business data in response
type TenantResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Address     string  `json:"address,omitempty"`
	Phone       string  `json:"phone,omitempty"`
	Industry    string  `json:"industry,omitempty"`
	Timezone    string  `json:"timezone,omitempty"`
	IsActive    bool    `json:"is_active"`
	OwnerID     *string `json:"owner_id"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// ListTenantsQuery represents query parameters for listing businesses
type ListTenantsQuery struct {
	Page     int   `form:"page" binding:"omitempty,min=1"`
	PerPage  int   `form:"per_page" binding:"omitempty,min=1,max=100"`
	IsActive *bool `form:"is_active" binding:"omitempty"`
}

// SetDefaults sets default values for query parameters
func (q *ListTenantsQuery) SetDefaults() {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PerPage == 0 {
		q.PerPage = 20
	}
}

// SetStatusQuery toggles a business on or off
type SetStatusQuery struct {
	Active *bool `form:"active" binding:"required"`
}
