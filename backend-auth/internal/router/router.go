package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/handler"
	"github.com/prohmpiriya/multicore-crm/pkg/logger"
	"github.com/prohmpiriya/multicore-crm/pkg/middleware"
	"github.com/prohmpiriya/multicore-crm/pkg/telemetry"
)

// maxConcurrentBulkOnboarding caps simultaneous bulk onboarding requests
const maxConcurrentBulkOnboarding = 2

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Health     *handler.HealthHandler
	Auth       *handler.AuthHandler
	Tenant     *handler.TenantHandler
	Owner      *handler.OwnerHandler
	Onboarding *handler.OnboardingHandler
}

// Config holds the router's collaborators
type Config struct {
	Handlers  Handlers
	Policy    *middleware.Policy
	Verifier  middleware.TokenVerifier
	Resolver  middleware.PrincipalResolver
	Audit     *middleware.AuditLogger // nil disables the audit trail
	CORS      middleware.CORSConfig
	LoginRate middleware.RateLimitConfig
	// TrustedProxies may set X-Forwarded-For; empty means the socket address is the client
	TrustedProxies []string
	Metrics        *telemetry.Metrics
	Log            *logger.Logger
}

// New builds the gin engine. Middleware order: rejection metrics, CORS,
// authentication gate, audit, authorization policy.
func New(cfg Config) *gin.Engine {
	if cfg.Policy == nil {
		cfg.Policy = NewPolicy()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NopMetrics()
	}

	if cfg.Log == nil {
		cfg.Log = logger.NewNop()
	}

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		cfg.Log.Warn("Invalid trusted proxies, trusting none", zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(rejections(cfg.Metrics))
	r.Use(middleware.CORSWithConfig(cfg.CORS))
	r.Use(middleware.Authenticate(middleware.AuthConfig{
		Verifier: cfg.Verifier,
		Resolver: cfg.Resolver,
		Public:   cfg.Policy,
		Log:      cfg.Log,
	}))
	if cfg.Audit != nil {
		r.Use(middleware.AuditMiddleware(cfg.Audit))
	}
	r.Use(middleware.Authorize(cfg.Policy))

	h := cfg.Handlers

	r.GET("/health", h.Health.Health)
	r.GET("/ready", h.Health.Ready)

	auth := r.Group("/auth")
	{
		auth.POST("/login", middleware.RateLimiter(cfg.LoginRate), h.Auth.Login)
		auth.POST("/register/customer", h.Auth.RegisterCustomer)
		auth.POST("/register/admin", h.Auth.RegisterAdmin)
		auth.GET("/me", h.Auth.Me)
	}
	r.POST("/portal/register", h.Auth.RegisterCustomer)

	admin := r.Group("/admin")
	{
		admin.GET("/businesses", h.Tenant.List)
		admin.GET("/businesses/:id", h.Tenant.GetByID)
		admin.PATCH("/businesses/:id/status", h.Tenant.SetStatus)
		admin.POST("/owners", h.Tenant.CreateOwner)
		admin.POST("/create-owner", h.Tenant.CreateOwnerForTenant)
	}

	owner := r.Group("/owner")
	{
		owner.POST("/business", h.Owner.SaveBusiness)
		owner.POST("/create-staff", h.Owner.CreateStaff)
	}

	r.POST("/business/:tenantId/staff", middleware.TenantScope("tenantId"), h.Owner.CreateStaffForTenant)

	onboarding := r.Group("/onboarding")
	{
		onboarding.POST("/bulk", middleware.ConcurrencyLimiter(maxConcurrentBulkOnboarding), h.Onboarding.Bulk)
		onboarding.POST("/single", h.Onboarding.Single)
	}

	return r
}

// rejections counts 401, 403 and 429 responses by reason
func rejections(m *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		switch status {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
			reason := c.GetString(middleware.ContextKeyForbiddenReason)
			if reason == "" {
				reason = http.StatusText(status)
			}
			m.Rejection(c.Request.Context(), status, reason)
		}
	}
}
