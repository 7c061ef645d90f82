package router

import (
	"net/http"

	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/domain"
	"github.com/prohmpiriya/multicore-crm/pkg/middleware"
)

func roles(rs ...domain.Role) []string {
	return domain.RoleStrings(rs)
}

// Rules is the route policy, evaluated top to bottom. The staff rule sits
// above /business/** so it stays reachable.
func Rules() []middleware.Rule {
	return []middleware.Rule{
		{Method: http.MethodPost, Pattern: "/auth/login", Public: true},
		{Method: http.MethodPost, Pattern: "/auth/register/customer", Public: true},
		{Method: http.MethodPost, Pattern: "/auth/register/admin", Public: true},
		{Method: http.MethodPost, Pattern: "/portal/register", Public: true},
		{Method: http.MethodGet, Pattern: "/health", Public: true},
		{Method: http.MethodGet, Pattern: "/ready", Public: true},

		{Pattern: "/admin/**", Roles: roles(domain.RoleSuperAdmin)},
		{Pattern: "/onboarding/**", Roles: roles(domain.RoleSuperAdmin)},
		{Pattern: "/owner/**", Roles: roles(domain.RoleBusinessAdmin)},
		{Pattern: "/customers/**", Roles: roles(
			domain.RoleBusinessAdmin, domain.RoleSalesManager, domain.RoleSalesAgent,
			domain.RoleSupportManager, domain.RoleSupportAgent, domain.RoleFinance, domain.RoleViewer,
		)},
		{Pattern: "/leads/**", Roles: roles(
			domain.RoleBusinessAdmin, domain.RoleSalesManager, domain.RoleSalesAgent, domain.RoleViewer,
		)},
		{Pattern: "/tickets/**", Roles: roles(
			domain.RoleBusinessAdmin, domain.RoleSupportManager, domain.RoleSupportAgent,
			domain.RoleViewer, domain.RoleCustomer,
		)},
		{Pattern: "/business/*/sales/**", Roles: roles(
			domain.RoleBusinessAdmin, domain.RoleSalesAgent, domain.RoleSupportManager, domain.RoleSupportAgent,
		)},
		{Method: http.MethodPost, Pattern: "/business/*/staff", Roles: roles(domain.RoleBusinessAdmin)},
		{Pattern: "/business/**", Roles: roles(domain.RoleBusinessAdmin)},
		{Pattern: "/audit/**", Roles: roles(domain.RoleSuperAdmin, domain.RoleBusinessAdmin)},
	}
}

// NewPolicy compiles Rules
func NewPolicy() *middleware.Policy {
	return middleware.MustPolicy(Rules()...)
}
