package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"

	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/di"
	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/domain"
	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/repository"
	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/router"
	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/service"
	"github.com/prohmpiriya/multicore-crm/pkg/logger"
	"github.com/prohmpiriya/multicore-crm/pkg/middleware"
	"github.com/prohmpiriya/multicore-crm/pkg/password"
	"github.com/prohmpiriya/multicore-crm/pkg/telemetry"
	"github.com/prohmpiriya/multicore-crm/pkg/token"
)

type testEnv struct {
	engine *gin.Engine
	mem    *repository.MemoryStore
	audit  *middleware.AuditLogger
	reader *sdkmetric.ManualReader
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type session struct {
	Token      string  `json:"token"`
	IdentityID string  `json:"identity_id"`
	Role       string  `json:"role"`
	TenantID   *string `json:"tenant_id"`
}

func newEnv(t *testing.T, opts ...func(*router.Config)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := repository.NewMemoryStore()
	tokens := token.NewService(token.Config{Secret: "router-test-secret", TTL: time.Hour, Issuer: "test"})

	reader := sdkmetric.NewManualReader()
	metrics, err := telemetry.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("router-test"))
	require.NoError(t, err)

	log := logger.NewNop()
	c := di.NewContainer(&di.ContainerConfig{
		ServiceName: "auth-test",
		Store:       mem.Store(),
		Tokens:      tokens,
		Hasher:      password.NewBcryptHasher(bcrypt.MinCost),
		Metrics:     metrics,
		Log:         log,
		ServiceConfig: service.Config{
			LoginTimeout:      time.Second,
			MinPasswordLength: 8,
		},
	})

	auditCfg := middleware.DefaultAuditConfig(mem)
	auditCfg.Log = log
	audit := middleware.NewAuditLogger(auditCfg)
	t.Cleanup(func() { _ = audit.Close() })

	cfg := router.Config{
		Handlers: c.Handlers(),
		Verifier: tokens,
		Resolver: c.AuthService,
		Audit:    audit,
		CORS:     middleware.DefaultCORSConfig(),
		Metrics:  metrics,
		Log:      log,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	engine := router.New(cfg)
	return &testEnv{engine: engine, mem: mem, audit: audit, reader: reader}
}

func (e *testEnv) do(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out), w.Body.String())
	}
	return env
}

func flatError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	require.Len(t, body, 1, "flat error body has a single field")
	msg, ok := body["error"].(string)
	require.True(t, ok, w.Body.String())
	return msg
}

func credentials(email string) map[string]string {
	return map[string]string{"email": email, "password": "pw123456", "full_name": "Test User"}
}

func (e *testEnv) seedTenant(t *testing.T, name string) *domain.Tenant {
	t.Helper()
	now := time.Now()
	tenant := &domain.Tenant{ID: uuid.New().String(), Name: name, IsActive: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, e.mem.Store().Tenants.Create(context.Background(), tenant))
	return tenant
}

func (e *testEnv) registerAdmin(t *testing.T) session {
	t.Helper()
	w := e.do(t, http.MethodPost, "/auth/register/admin", "", credentials("root@x.com"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var s session
	decode(t, w, &s)
	return s
}

// ownerSession provisions a business admin with its own business and logs in
func (e *testEnv) ownerSession(t *testing.T, admin session, email, business string) session {
	t.Helper()
	w := e.do(t, http.MethodPost, "/admin/owners", admin.Token, map[string]string{
		"full_name":     "Owner " + business,
		"email":         email,
		"password":      "pw123456",
		"business_name": business,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var provisioned map[string]interface{}
	decode(t, w, &provisioned)
	_, hasToken := provisioned["token"]
	require.False(t, hasToken, "admin-provisioned owners never receive a session")

	w = e.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": "pw123456"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var s session
	decode(t, w, &s)
	require.NotNil(t, s.TenantID)
	return s
}

func TestPolicy_DefaultTableHasNoShadowedRules(t *testing.T) {
	p := router.NewPolicy()
	assert.Empty(t, p.Shadowed())

	staff, ok := p.Match(http.MethodPost, "/business/t1/staff")
	require.True(t, ok)
	assert.Equal(t, "/business/*/staff", staff.Pattern)

	broad, ok := p.Match(http.MethodGet, "/business/t1/anything")
	require.True(t, ok)
	assert.Equal(t, "/business/**", broad.Pattern)

	_, ok = p.Match(http.MethodGet, "/auth/me")
	assert.False(t, ok)
}

func TestPolicy_StaffRuleAfterBroadRuleIsReportedAsShadowed(t *testing.T) {
	p := middleware.MustPolicy(
		middleware.Rule{Pattern: "/business/**", Roles: []string{"BUSINESS_ADMIN"}},
		middleware.Rule{Method: http.MethodPost, Pattern: "/business/*/staff", Roles: []string{"BUSINESS_ADMIN"}},
	)
	require.Len(t, p.Shadowed(), 1)
	assert.Equal(t, 1, p.Shadowed()[0].Index)
}

func TestRouter_RegisterCustomerEndToEnd(t *testing.T) {
	env := newEnv(t)
	first := env.seedTenant(t, "First Active")

	w := env.do(t, http.MethodPost, "/auth/register/customer", "", map[string]string{"email": "a@x.com", "password": "pw123456"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var s session
	env.decodeOK(t, w, &s)
	require.NotEmpty(t, s.Token)

	w = env.do(t, http.MethodGet, "/auth/me", s.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var me map[string]interface{}
	decode(t, w, &me)
	assert.Equal(t, "CUSTOMER", me["role"])
	assert.Nil(t, me["tenant_id"])
	assert.Contains(t, me, "tenant_id")

	leads, err := env.mem.Store().Leads.ListByTenant(context.Background(), first.ID)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "a@x.com", leads[0].Email)
}

func (e *testEnv) decodeOK(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	env := decode(t, w, out)
	require.True(t, env.Success, w.Body.String())
}

func TestRouter_PortalRegisterIsPublic(t *testing.T) {
	env := newEnv(t)

	w := env.do(t, http.MethodPost, "/portal/register", "", credentials("portal@x.com"))
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestRouter_AuthenticationGate(t *testing.T) {
	env := newEnv(t)

	t.Run("no token on protected route", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/auth/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, middleware.MsgAuthenticationRequired, flatError(t, w))
	})

	t.Run("bad token on protected route", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/auth/me", "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, middleware.MsgInvalidToken, flatError(t, w))
	})

	t.Run("bad token on public route is ignored", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/auth/register/customer", "not-a-jwt", credentials("public@x.com"))
		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	})

	t.Run("token for a deleted identity", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/auth/register/customer", "", credentials("doomed@x.com"))
		require.Equal(t, http.StatusCreated, w.Code)
		var s session
		decode(t, w, &s)

		require.True(t, env.mem.DeleteIdentity("doomed@x.com"))

		w = env.do(t, http.MethodGet, "/auth/me", s.Token, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "User not found", flatError(t, w))
	})
}

func TestRouter_LoginErrors(t *testing.T) {
	env := newEnv(t)
	w := env.do(t, http.MethodPost, "/auth/register/customer", "", credentials("known@x.com"))
	require.Equal(t, http.StatusCreated, w.Code)

	unknown := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "unknown@x.com", "password": "pw123456"})
	wrong := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "known@x.com", "password": "nope-nope"})

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.JSONEq(t, unknown.Body.String(), wrong.Body.String())

	body := decode(t, wrong, nil)
	require.NotNil(t, body.Error)
	assert.Equal(t, "INVALID_CREDENTIALS", body.Error.Code)
}

func TestRouter_DuplicateSuperAdmin(t *testing.T) {
	env := newEnv(t)
	env.registerAdmin(t)

	w := env.do(t, http.MethodPost, "/auth/register/admin", "", credentials("root2@x.com"))
	assert.Equal(t, http.StatusConflict, w.Code)
	body := decode(t, w, nil)
	require.NotNil(t, body.Error)
	assert.Equal(t, "SUPER_ADMIN_EXISTS", body.Error.Code)
}

func TestRouter_RoleChecksAreForbiddenNotUnauthorized(t *testing.T) {
	env := newEnv(t)
	admin := env.registerAdmin(t)
	owner := env.ownerSession(t, admin, "owner@x.com", "Shop A")

	w := env.do(t, http.MethodPost, "/business/"+*owner.TenantID+"/staff", owner.Token, map[string]string{
		"full_name": "Sally Agent",
		"email":     "sally@x.com",
		"password":  "pw123456",
		"role":      "SALES_AGENT",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var agent session
	decode(t, w, &agent)
	require.NotEmpty(t, agent.Token)

	w = env.do(t, http.MethodPost, "/owner/business", agent.Token, map[string]string{"name": "Hijack"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, middleware.MsgAccessDenied, flatError(t, w))

	w = env.do(t, http.MethodGet, "/admin/businesses", owner.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// allowed by the policy, served by another service
	w = env.do(t, http.MethodGet, "/customers/42", agent.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/tickets/7", agent.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_TenantGuardOnStaffCreation(t *testing.T) {
	env := newEnv(t)
	admin := env.registerAdmin(t)
	ownerA := env.ownerSession(t, admin, "a-owner@x.com", "Shop A")
	ownerB := env.ownerSession(t, admin, "b-owner@x.com", "Shop B")

	staff := map[string]string{
		"full_name": "Cross Tenant",
		"email":     "cross@x.com",
		"password":  "pw123456",
		"role":      "VIEWER",
	}

	w := env.do(t, http.MethodPost, "/business/"+*ownerB.TenantID+"/staff", ownerA.Token, staff)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, middleware.MsgTenantMismatch, flatError(t, w))

	exists, err := env.mem.Store().Identities.ExistsByEmail(context.Background(), "cross@x.com")
	require.NoError(t, err)
	assert.False(t, exists)

	staff["email"] = "own-path@x.com"
	w = env.do(t, http.MethodPost, "/business/"+*ownerA.TenantID+"/staff", ownerA.Token, staff)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var viaPath session
	decode(t, w, &viaPath)
	require.NotNil(t, viaPath.TenantID)
	assert.Equal(t, *ownerA.TenantID, *viaPath.TenantID)

	staff["email"] = "cross@x.com"
	w = env.do(t, http.MethodPost, "/owner/create-staff", ownerA.Token, staff)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created session
	decode(t, w, &created)
	require.NotNil(t, created.TenantID)
	assert.Equal(t, *ownerA.TenantID, *created.TenantID)

	staff["email"] = "bad-role@x.com"
	staff["role"] = "SUPER_ADMIN"
	w = env.do(t, http.MethodPost, "/owner/create-staff", ownerA.Token, staff)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w, nil)
	require.NotNil(t, body.Error)
	assert.Equal(t, "INVALID_ROLE_FOR_FLOW", body.Error.Code)
}

func TestRouter_RoleRevocationTakesEffectImmediately(t *testing.T) {
	env := newEnv(t)
	admin := env.registerAdmin(t)
	owner := env.ownerSession(t, admin, "revoked@x.com", "Shop R")

	w := env.do(t, http.MethodPost, "/owner/business", owner.Token, map[string]string{"name": "Shop R Renamed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.True(t, env.mem.RevokeRole("revoked@x.com", domain.RoleBusinessAdmin))

	w = env.do(t, http.MethodPost, "/owner/business", owner.Token, map[string]string{"name": "Shop R Again"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_OwnerCreatesBusinessOnce(t *testing.T) {
	env := newEnv(t)
	admin := env.registerAdmin(t)

	w := env.do(t, http.MethodPost, "/admin/owners", admin.Token, map[string]string{
		"full_name": "Solo Owner",
		"email":     "solo@x.com",
		"password":  "pw123456",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "solo@x.com", "password": "pw123456"})
	require.Equal(t, http.StatusOK, w.Code)
	var owner session
	decode(t, w, &owner)
	assert.Nil(t, owner.TenantID)

	w = env.do(t, http.MethodPost, "/owner/business", owner.Token, map[string]string{"name": "Solo Studio"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var tenant map[string]interface{}
	decode(t, w, &tenant)
	assert.Equal(t, "Solo Studio", tenant["name"])

	// the same token now resolves the tenant from storage
	w = env.do(t, http.MethodGet, "/auth/me", owner.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me map[string]interface{}
	decode(t, w, &me)
	assert.Equal(t, tenant["id"], me["tenant_id"])
}

func TestRouter_AdminBusinesses(t *testing.T) {
	env := newEnv(t)
	admin := env.registerAdmin(t)
	env.ownerSession(t, admin, "one@x.com", "One")
	env.ownerSession(t, admin, "two@x.com", "Two")

	w := env.do(t, http.MethodGet, "/admin/businesses?page=1&per_page=1", admin.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Data []map[string]interface{} `json:"data"`
		Meta struct {
			Total      int `json:"total"`
			TotalPages int `json:"total_pages"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, 2, body.Meta.Total)
	assert.Equal(t, 2, body.Meta.TotalPages)

	id := body.Data[0]["id"].(string)
	w = env.do(t, http.MethodPatch, "/admin/businesses/"+id+"/status?active=false", admin.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated map[string]interface{}
	decode(t, w, &updated)
	assert.Equal(t, false, updated["is_active"])

	w = env.do(t, http.MethodGet, "/admin/businesses/missing", admin.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/admin/create-owner", admin.Token, map[string]string{
		"tenant_id": id,
		"full_name": "Second Owner",
		"email":     "second-owner@x.com",
		"password":  "pw123456",
	})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
}

func TestRouter_BulkOnboarding(t *testing.T) {
	env := newEnv(t)
	admin := env.registerAdmin(t)

	w := env.do(t, http.MethodPost, "/onboarding/bulk", admin.Token, map[string]interface{}{
		"businesses": []map[string]interface{}{
			{"name": "One", "owner_email": "dup@x.com", "owner_password": "pw123456"},
			{"name": "Two", "owner_email": "dup@x.com", "owner_password": "pw123456"},
			{"name": "Three", "services": []map[string]interface{}{{"name": "Consulting", "price": 99.5}}},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result struct {
		Requested int `json:"requested"`
		Succeeded int `json:"succeeded"`
		Results   []struct {
			BusinessName    string `json:"business_name"`
			Success         bool   `json:"success"`
			Message         string `json:"message"`
			ServicesCreated int    `json:"services_created"`
		} `json:"results"`
	}
	decode(t, w, &result)
	assert.Equal(t, 3, result.Requested)
	assert.Equal(t, 2, result.Succeeded)
	require.Len(t, result.Results, 3)
	assert.Equal(t, []string{"One", "Two", "Three"}, []string{
		result.Results[0].BusinessName, result.Results[1].BusinessName, result.Results[2].BusinessName,
	})
	assert.False(t, result.Results[1].Success)
	assert.Equal(t, "Email already registered", result.Results[1].Message)
	assert.Equal(t, 1, result.Results[2].ServicesCreated)

	owner := env.ownerSession(t, admin, "bulk-owner@x.com", "Bulk")
	w = env.do(t, http.MethodPost, "/onboarding/single", owner.Token, map[string]string{"name": "Nope"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_BulkOnboardingLargerThanAuditCapture(t *testing.T) {
	env := newEnv(t)
	admin := env.registerAdmin(t)

	items := make([]map[string]interface{}, 40)
	for i := range items {
		items[i] = map[string]interface{}{
			"name":        fmt.Sprintf("Business %02d", i),
			"description": strings.Repeat("d", 300),
		}
	}
	body, err := json.Marshal(map[string]interface{}{"businesses": items})
	require.NoError(t, err)
	require.Greater(t, len(body), middleware.DefaultAuditConfig(nil).MaxBodySize)

	w := env.do(t, http.MethodPost, "/onboarding/bulk", admin.Token, json.RawMessage(body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result struct {
		Requested int `json:"requested"`
		Succeeded int `json:"succeeded"`
	}
	decode(t, w, &result)
	assert.Equal(t, 40, result.Requested)
	assert.Equal(t, 40, result.Succeeded)
}

func TestRouter_LoginRateLimitKeysOnSocketAddress(t *testing.T) {
	limited := func(proxies ...string) func(*router.Config) {
		return func(cfg *router.Config) {
			cfg.LoginRate = middleware.RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}
			cfg.TrustedProxies = proxies
		}
	}
	login := func(env *testEnv, remoteAddr, forwardedFor string) int {
		body, _ := json.Marshal(credentials("nobody@x.com"))
		req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = remoteAddr
		req.Header.Set("X-Forwarded-For", forwardedFor)
		w := httptest.NewRecorder()
		env.engine.ServeHTTP(w, req)
		return w.Code
	}

	t.Run("spoofed forwarded header does not reset the bucket", func(t *testing.T) {
		env := newEnv(t, limited())
		allowed := 0
		for i := 0; i < 10; i++ {
			if login(env, "10.0.0.1:40000", fmt.Sprintf("203.0.113.%d", i+1)) != http.StatusTooManyRequests {
				allowed++
			}
		}
		assert.Equal(t, 1, allowed)
	})

	t.Run("trusted proxy forwards distinct clients", func(t *testing.T) {
		env := newEnv(t, limited("10.0.0.0/8"))
		assert.NotEqual(t, http.StatusTooManyRequests, login(env, "10.0.0.1:40000", "203.0.113.1"))
		assert.NotEqual(t, http.StatusTooManyRequests, login(env, "10.0.0.1:40000", "203.0.113.2"))
		assert.Equal(t, http.StatusTooManyRequests, login(env, "10.0.0.1:40000", "203.0.113.1"))
	})
}

func TestRouter_HealthAndReady(t *testing.T) {
	env := newEnv(t)

	w := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/ready", "garbage-token", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_RecordsRejectionsAndAudit(t *testing.T) {
	env := newEnv(t)

	env.do(t, http.MethodGet, "/auth/me", "", nil)
	env.do(t, http.MethodGet, "/auth/me", "bad-token", nil)
	w := env.do(t, http.MethodPost, "/auth/register/customer", "", credentials("audited@x.com"))
	require.Equal(t, http.StatusCreated, w.Code)

	var rm metricdata.ResourceMetrics
	require.NoError(t, env.reader.Collect(context.Background(), &rm))
	var rejected int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "crm.auth.rejections" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				rejected += dp.Value
			}
		}
	}
	assert.Equal(t, int64(2), rejected)

	require.NoError(t, env.audit.Close())
	entries := env.mem.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, middleware.AuditActionRegister, entries[0].Action)
	assert.Equal(t, "[REDACTED]", entries[0].Payload["password"])
	assert.Equal(t, "audited@x.com", entries[0].Payload["email"])
}
