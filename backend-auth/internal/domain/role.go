package domain

// Role is one of the fixed roles an identity can be assigned
type Role string

const (
	RoleSuperAdmin     Role = "SUPER_ADMIN"
	RoleBusinessAdmin  Role = "BUSINESS_ADMIN"
	RoleSalesManager   Role = "SALES_MANAGER"
	RoleSalesAgent     Role = "SALES_AGENT"
	RoleSupportManager Role = "SUPPORT_MANAGER"
	RoleSupportAgent   Role = "SUPPORT_AGENT"
	RoleFinance        Role = "FINANCE"
	RoleViewer         Role = "VIEWER"
	RoleCustomer       Role = "CUSTOMER"
)

// AllRoles lists every role in declaration order
var AllRoles = []Role{
	RoleSuperAdmin,
	RoleBusinessAdmin,
	RoleSalesManager,
	RoleSalesAgent,
	RoleSupportManager,
	RoleSupportAgent,
	RoleFinance,
	RoleViewer,
	RoleCustomer,
}

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// IsStaff reports whether r can be assigned by a business admin to its staff
func (r Role) IsStaff() bool {
	return r.IsValid() && r != RoleSuperAdmin && r != RoleBusinessAdmin && r != RoleCustomer
}

// RoleRecord is the shared reference row for a role
type RoleRecord struct {
	ID          string `json:"id"`
	Name        Role   `json:"name"`
	Description string `json:"description,omitempty"`
}

// RoleStrings converts roles to their string form
func RoleStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
