package di

import (
	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/handler"
	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/repository"
	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/router"
	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/service"
	"github.com/prohmpiriya/multicore-crm/pkg/kafka"
	"github.com/prohmpiriya/multicore-crm/pkg/logger"
	"github.com/prohmpiriya/multicore-crm/pkg/password"
	"github.com/prohmpiriya/multicore-crm/pkg/saga"
	"github.com/prohmpiriya/multicore-crm/pkg/telemetry"
	"github.com/prohmpiriya/multicore-crm/pkg/token"
)

// Container holds all dependencies for the auth service
type Container struct {
	// Infrastructure
	Store  *repository.Store
	Tokens *token.Service

	// Services
	AuthService         service.AuthService
	ProvisioningService service.ProvisioningService
	TenantService       service.TenantService
	OnboardingService   service.OnboardingService

	// Handlers
	HealthHandler     *handler.HealthHandler
	AuthHandler       *handler.AuthHandler
	TenantHandler     *handler.TenantHandler
	OwnerHandler      *handler.OwnerHandler
	OnboardingHandler *handler.OnboardingHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	ServiceName   string
	Store         *repository.Store
	Tokens        *token.Service
	Hasher        password.Hasher
	Publisher     kafka.Publisher
	Flows         *saga.StateMachine
	Metrics       *telemetry.Metrics
	Log           *logger.Logger
	ServiceConfig service.Config
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		Store:  cfg.Store,
		Tokens: cfg.Tokens,
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = password.NewBcryptHasher(0)
	}

	// Initialize services
	deps := &service.Deps{
		Store:     cfg.Store,
		Hasher:    hasher,
		Tokens:    cfg.Tokens,
		Publisher: cfg.Publisher,
		Flows:     cfg.Flows,
		Metrics:   cfg.Metrics,
		Log:       cfg.Log,
		Config:    cfg.ServiceConfig,
	}
	c.AuthService = service.NewAuthService(deps)
	c.ProvisioningService = service.NewProvisioningService(deps)
	c.TenantService = service.NewTenantService(deps)
	c.OnboardingService = service.NewOnboardingService(deps)

	// Initialize handlers
	c.HealthHandler = handler.NewHealthHandler(cfg.ServiceName, cfg.Store.Ping)
	c.AuthHandler = handler.NewAuthHandler(c.AuthService)
	c.TenantHandler = handler.NewTenantHandler(c.TenantService, c.ProvisioningService)
	c.OwnerHandler = handler.NewOwnerHandler(c.ProvisioningService)
	c.OnboardingHandler = handler.NewOnboardingHandler(c.OnboardingService)

	return c
}

// Handlers returns the handler set mounted by the router
func (c *Container) Handlers() router.Handlers {
	return router.Handlers{
		Health:     c.HealthHandler,
		Auth:       c.AuthHandler,
		Tenant:     c.TenantHandler,
		Owner:      c.OwnerHandler,
		Onboarding: c.OnboardingHandler,
	}
}
