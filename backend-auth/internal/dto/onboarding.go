package dto

// ServicePayload describes one service offered by an onboarded business
type ServicePayload struct {
	Name        string   `json:"name" binding:"required,max=150"`
	Description string   `json:"description" binding:"omitempty,max=500"`
	Price       *float64 `json:"price" binding:"omitempty,min=0"`
	Active      *bool    `json:"active"`
}

// OnboardingItem is a single business to onboard
type OnboardingItem struct {
	Name          string           `json:"name" binding:"required,max=255"`
	Description   string           `json:"description"`
	Address       string           `json:"address"`
	Industry      string           `json:"industry" binding:"omitempty,max=100"`
	OwnerFullName string           `json:"owner_full_name" binding:"omitempty,max=200"`
	OwnerEmail    string           `json:"owner_email" binding:"omitempty,email"`
	OwnerPassword string           `json:"owner_password" binding:"omitempty,max=72"`
	OwnerPhone    string           `json:"owner_phone" binding:"omitempty,max=50"`
	Services      []ServicePayload `json:"services" binding:"omitempty,dive"`
}

// HasOwner reports whether the item asks for an owner account
func (i *OnboardingItem) HasOwner() bool {
	return i.OwnerEmail != "" && i.OwnerPassword != ""
}

// BulkOnboardingRequest is an ordered batch of businesses
type BulkOnboardingRequest struct {
	Businesses []OnboardingItem `json:"businesses" binding:"required,min=1,dive"`
}

// OnboardingResult reports the outcome of one item
type OnboardingResult struct {
	TenantID        *string `json:"tenant_id"`
	BusinessName    string  `json:"business_name"`
	OwnerCreated    bool    `json:"owner_created"`
	ServicesCreated int     `json:"services_created"`
	Success         bool    `json:"success"`
	Message         string  `json:"message"`
}

// BulkOnboardingResponse aggregates the results in request order
type BulkOnboardingResponse struct {
	Requested int                `json:"requested"`
	Succeeded int                `json:"succeeded"`
	Results   []OnboardingResult `json:"results"`
}
