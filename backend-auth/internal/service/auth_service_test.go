package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/domain"
	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/dto"
	"github.com/prohmpiriya/multicore-crm/pkg/middleware"
	"github.com/prohmpiriya/multicore-crm/pkg/saga"
)

func registerReq(email string) *dto.RegisterRequest {
	return &dto.RegisterRequest{Email: email, Password: "pw123456", FullName: "Ann Example"}
}

func TestAuthService_RegisterCustomer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.seedTenant(t, "First Shop", true)
	f.seedTenant(t, "Second Shop", true)
	svc := NewAuthService(f.deps)

	resp, err := svc.RegisterCustomer(ctx, registerReq("A@X.com"))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, "a@x.com", resp.Email)
	assert.Equal(t, string(domain.RoleCustomer), resp.Role)
	assert.Nil(t, resp.TenantID)

	claims, err := f.deps.Tokens.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Email)

	leads, err := f.deps.Store.Leads.ListByTenant(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "a@x.com", leads[0].Email)
	assert.Equal(t, domain.LeadStatusNew, leads[0].Status)
	assert.Equal(t, 0, leads[0].Score)
	assert.Equal(t, "N/A", leads[0].Phone)

	assert.Equal(t, []string{EventIdentityProvisioned}, f.publisher.types())
}

func TestAuthService_RegisterCustomer_NoActiveTenant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inactive := f.seedTenant(t, "Closed Shop", false)
	svc := NewAuthService(f.deps)

	resp, err := svc.RegisterCustomer(ctx, registerReq("solo@x.com"))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)

	leads, err := f.deps.Store.Leads.ListByTenant(ctx, inactive.ID)
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestAuthService_RegisterCustomer_DeferredFailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedTenant(t, "Shop", true)
	f.deps.Store.Leads = failingLeads{f.deps.Store.Leads}
	f.publisher.err = errBoom
	svc := NewAuthService(f.deps)

	resp, err := svc.RegisterCustomer(ctx, registerReq("lead-fails@x.com"))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)

	identity, err := f.deps.Store.Identities.GetByEmail(ctx, "lead-fails@x.com")
	require.NoError(t, err)
	require.NotNil(t, identity)
}

func TestAuthService_RegisterCustomer_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewAuthService(f.deps)

	_, err := svc.RegisterCustomer(ctx, &dto.RegisterRequest{Email: "short@x.com", Password: "pw1", FullName: "S"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.RegisterCustomer(ctx, registerReq("dup@x.com"))
	require.NoError(t, err)

	_, err = svc.RegisterCustomer(ctx, registerReq("DUP@x.com"))
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	failed, err := f.deps.Flows.GetFailedFlows(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, saga.FlowRegisterCustomer, failed[0].Kind)
}

func TestAuthService_RegisterCustomer_ConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewAuthService(f.deps)

	const workers = 12
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		duplicates int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RegisterCustomer(ctx, registerReq("race@x.com"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrDuplicateEmail):
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, duplicates)
	identities, _ := f.mem.Counts()
	assert.Equal(t, 1, identities)
}

func TestAuthService_RegisterCustomer_StorageErrorIsSanitized(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.deps.Store.Identities = failingIdentityCreate{f.deps.Store.Identities}
	svc := NewAuthService(f.deps)

	_, err := svc.RegisterCustomer(ctx, registerReq("db-down@x.com"))
	require.ErrorIs(t, err, ErrInternalFailure)
	assert.NotContains(t, err.Error(), "connection reset")
}

func TestAuthService_RegisterAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewAuthService(f.deps)

	resp, err := svc.RegisterAdmin(ctx, registerReq("root@x.com"))
	require.NoError(t, err)
	assert.Equal(t, string(domain.RoleSuperAdmin), resp.Role)
	assert.NotEmpty(t, resp.Token)
	assert.Nil(t, resp.TenantID)

	_, err = svc.RegisterAdmin(ctx, registerReq("root2@x.com"))
	assert.ErrorIs(t, err, ErrSuperAdminExists)

	exists, err := f.deps.Store.Identities.ExistsByEmail(ctx, "root2@x.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAuthService_RegisterAdmin_ConcurrentOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewAuthService(f.deps)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.RegisterAdmin(ctx, registerReq(fmt.Sprintf("admin%d@x.com", i)))
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrSuperAdminExists)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenant := f.seedTenant(t, "Shop", true)
	f.seedIdentity(t, "agent@x.com", "correct-horse", domain.StatusActive, domain.RoleSalesAgent, &tenant.ID)
	f.seedIdentity(t, "gone@x.com", "correct-horse", domain.StatusSuspended, domain.RoleViewer, &tenant.ID)
	svc := NewAuthService(f.deps)

	t.Run("success", func(t *testing.T) {
		resp, err := svc.Login(ctx, &dto.LoginRequest{Email: "Agent@X.com", Password: "correct-horse"})
		require.NoError(t, err)
		assert.Equal(t, string(domain.RoleSalesAgent), resp.Role)
		require.NotNil(t, resp.TenantID)
		assert.Equal(t, tenant.ID, *resp.TenantID)

		claims, err := f.deps.Tokens.Verify(resp.Token)
		require.NoError(t, err)
		require.NotNil(t, claims.TenantID)
		assert.Equal(t, tenant.ID, *claims.TenantID)
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		_, errUnknown := svc.Login(ctx, &dto.LoginRequest{Email: "nobody@x.com", Password: "correct-horse"})
		_, errWrong := svc.Login(ctx, &dto.LoginRequest{Email: "agent@x.com", Password: "wrong-horse"})
		require.ErrorIs(t, errUnknown, ErrInvalidCredentials)
		require.ErrorIs(t, errWrong, ErrInvalidCredentials)
		assert.Equal(t, errUnknown.Error(), errWrong.Error())
	})

	t.Run("inactive account", func(t *testing.T) {
		_, err := svc.Login(ctx, &dto.LoginRequest{Email: "gone@x.com", Password: "correct-horse"})
		assert.ErrorIs(t, err, ErrAccountInactive)
	})
}

func TestAuthService_Login_UnknownEmailStillComparesHash(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	hasher := &countingHasher{Hasher: f.deps.Hasher}
	f.deps.Hasher = hasher
	svc := NewAuthService(f.deps)

	for _, email := range []string{"nobody@x.com", "nobody-else@x.com"} {
		_, err := svc.Login(ctx, &dto.LoginRequest{Email: email, Password: "correct-horse"})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	hasher.mu.Lock()
	defer hasher.mu.Unlock()
	assert.Equal(t, 1, hasher.hashes, "the stand-in hash is built once")
	require.Len(t, hasher.verified, 2)
	assert.NotEmpty(t, hasher.verified[0])
	assert.Equal(t, hasher.verified[0], hasher.verified[1])
	_, err := bcrypt.Cost([]byte(hasher.verified[0]))
	assert.NoError(t, err, "the stand-in is a real bcrypt hash")
}

func TestAuthService_Login_Timeout(t *testing.T) {
	f := newFixture(t)
	f.deps.Store.Identities = blockingIdentities{f.deps.Store.Identities}
	f.deps.Config.LoginTimeout = 20 * time.Millisecond
	svc := NewAuthService(f.deps)

	start := time.Now()
	_, err := svc.Login(context.Background(), &dto.LoginRequest{Email: "slow@x.com", Password: "whatever1"})
	assert.ErrorIs(t, err, ErrLoginTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestAuthService_MeReadsLiveData(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewAuthService(f.deps)

	resp, err := svc.RegisterCustomer(ctx, registerReq("me@x.com"))
	require.NoError(t, err)

	me, err := svc.Me(ctx, resp.IdentityID)
	require.NoError(t, err)
	assert.Equal(t, "me@x.com", me.Email)
	assert.Equal(t, string(domain.RoleCustomer), me.Role)
	assert.Nil(t, me.TenantID)

	require.True(t, f.mem.DeleteIdentity("me@x.com"))
	_, err = svc.Me(ctx, resp.IdentityID)
	assert.ErrorIs(t, err, ErrIdentityNotFound)
}

func TestAuthService_ResolvePrincipal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenant := f.seedTenant(t, "Shop", true)
	f.seedIdentity(t, "owner@x.com", "correct-horse", domain.StatusActive, domain.RoleBusinessAdmin, &tenant.ID)
	svc := NewAuthService(f.deps)

	p, err := svc.ResolvePrincipal(ctx, "owner@x.com")
	require.NoError(t, err)
	assert.Equal(t, []string{string(domain.RoleBusinessAdmin)}, p.Roles)
	require.NotNil(t, p.TenantID)
	assert.Equal(t, tenant.ID, *p.TenantID)

	f.mem.RevokeRole("owner@x.com", domain.RoleBusinessAdmin)
	p, err = svc.ResolvePrincipal(ctx, "owner@x.com")
	require.NoError(t, err)
	assert.Empty(t, p.Roles)

	_, err = svc.ResolvePrincipal(ctx, "missing@x.com")
	assert.ErrorIs(t, err, middleware.ErrPrincipalNotFound)
}
