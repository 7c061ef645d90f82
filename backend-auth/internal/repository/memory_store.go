package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/domain"
	"github.com/prohmpiriya/multicore-crm/pkg/database"
	"github.com/prohmpiriya/multicore-crm/pkg/middleware"
)

// MemoryStore is an in-process backing store. It enforces the same unique
// constraints and foreign keys as the Postgres schema, and transactions
// opened with WithinTx are serialized and rolled back through an undo log.
type MemoryStore struct {
	txMu sync.Mutex

	mu           sync.RWMutex
	identities   map[string]*domain.Identity
	emails       map[string]string // normalized email -> identity id
	superAdminID string
	tenants      map[string]*domain.Tenant
	tenantOrder  []string
	roles        map[domain.Role]*domain.RoleRecord
	leads        []*domain.Lead
	services     []*domain.BusinessService
	audit        []*middleware.AuditEntry
}

type memTx struct {
	undo []func()
}

type memTxKey struct{}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		identities: make(map[string]*domain.Identity),
		emails:     make(map[string]string),
		tenants:    make(map[string]*domain.Tenant),
		roles:      make(map[domain.Role]*domain.RoleRecord),
	}
}

// Store exposes the memory store through the repository interfaces
func (s *MemoryStore) Store() *Store {
	return &Store{
		Tx:         s,
		Identities: &memoryIdentities{s},
		Tenants:    &memoryTenants{s},
		Roles:      &memoryRoles{s},
		Leads:      &memoryLeads{s},
		Services:   &memoryServices{s},
		Audit:      s,
		Ping:       func(context.Context) error { return nil },
	}
}

// WithinTx runs fn in a transaction. A ctx that already carries a
// transaction joins it.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if database.InTx(ctx) {
		return fn(ctx)
	}

	tx := &memTx{}
	txCtx, hooks := database.WithAfterCommit(context.WithValue(ctx, memTxKey{}, tx))

	if err := s.runTx(txCtx, tx, fn); err != nil {
		return err
	}
	// Hooks run outside txMu so they may open transactions of their own.
	hooks.Run(ctx)
	return nil
}

// runTx holds txMu for fn and undoes its writes unless fn returns nil. A
// panic in fn rolls back and unlocks before propagating.
func (s *MemoryStore) runTx(ctx context.Context, tx *memTx, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	committed := false
	defer func() {
		if committed {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
	}()

	if err := fn(ctx); err != nil {
		return err
	}
	committed = true
	return nil
}

// onRollback registers an undo step. Callers hold s.mu.
func (s *MemoryStore) onRollback(ctx context.Context, fn func()) {
	if tx, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		tx.undo = append(tx.undo, fn)
	}
}

// InsertAuditEntries implements middleware.AuditSink
func (s *MemoryStore) InsertAuditEntries(ctx context.Context, entries []*middleware.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entries...)
	return nil
}

// AuditEntries returns the recorded audit entries
func (s *MemoryStore) AuditEntries() []*middleware.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*middleware.AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out
}

// Counts returns the number of identities and tenants
func (s *MemoryStore) Counts() (identities, tenants int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.identities), len(s.tenants)
}

type memoryIdentities struct{ s *MemoryStore }

func (r *memoryIdentities) Create(ctx context.Context, identity *domain.Identity) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	email := domain.NormalizeEmail(identity.Email)
	if _, exists := s.emails[email]; exists {
		return ErrDuplicateEmail
	}
	if identity.HasRole(domain.RoleSuperAdmin) && s.superAdminID != "" {
		return ErrSuperAdminExists
	}
	for _, role := range identity.Roles {
		if _, ok := s.roles[role]; !ok {
			return fmt.Errorf("role %s is not defined", role)
		}
	}
	if identity.TenantID != nil {
		if _, ok := s.tenants[*identity.TenantID]; !ok {
			return fmt.Errorf("tenant %s does not exist", *identity.TenantID)
		}
	}

	stored := copyIdentity(identity)
	stored.Email = email
	s.identities[stored.ID] = stored
	s.emails[email] = stored.ID
	superAdmin := stored.HasRole(domain.RoleSuperAdmin)
	if superAdmin {
		s.superAdminID = stored.ID
	}

	s.onRollback(ctx, func() {
		delete(s.identities, stored.ID)
		delete(s.emails, email)
		if superAdmin {
			s.superAdminID = ""
		}
	})
	return nil
}

func (r *memoryIdentities) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if identity, ok := r.s.identities[id]; ok {
		return copyIdentity(identity), nil
	}
	return nil, nil
}

func (r *memoryIdentities) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if id, ok := r.s.emails[domain.NormalizeEmail(email)]; ok {
		return copyIdentity(r.s.identities[id]), nil
	}
	return nil, nil
}

func (r *memoryIdentities) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.emails[domain.NormalizeEmail(email)]
	return ok, nil
}

func (r *memoryIdentities) SuperAdminExists(ctx context.Context) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.superAdminID != "", nil
}

func (r *memoryIdentities) SetTenant(ctx context.Context, identityID, tenantID string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[identityID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := s.tenants[tenantID]; !ok {
		return fmt.Errorf("tenant %s does not exist", tenantID)
	}

	prev, prevUpdated := identity.TenantID, identity.UpdatedAt
	identity.TenantID = &tenantID
	identity.UpdatedAt = time.Now()
	s.onRollback(ctx, func() {
		identity.TenantID, identity.UpdatedAt = prev, prevUpdated
	})
	return nil
}

// RevokeRole removes role from the identity registered under email
func (s *MemoryStore) RevokeRole(email string, role domain.Role) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.emails[domain.NormalizeEmail(email)]
	if !ok {
		return false
	}
	identity := s.identities[id]
	kept := identity.Roles[:0]
	for _, r := range identity.Roles {
		if r != role {
			kept = append(kept, r)
		}
	}
	identity.Roles = kept
	if role == domain.RoleSuperAdmin && s.superAdminID == id {
		s.superAdminID = ""
	}
	return true
}

// DeleteIdentity removes the identity registered under email
func (s *MemoryStore) DeleteIdentity(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = domain.NormalizeEmail(email)
	id, ok := s.emails[email]
	if !ok {
		return false
	}
	delete(s.identities, id)
	delete(s.emails, email)
	if s.superAdminID == id {
		s.superAdminID = ""
	}
	return true
}

type memoryTenants struct{ s *MemoryStore }

func (r *memoryTenants) Create(ctx context.Context, tenant *domain.Tenant) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tenants[tenant.ID]; exists {
		return fmt.Errorf("tenant %s already exists", tenant.ID)
	}

	stored := copyTenant(tenant)
	s.tenants[stored.ID] = stored
	s.tenantOrder = append(s.tenantOrder, stored.ID)

	s.onRollback(ctx, func() {
		delete(s.tenants, stored.ID)
		for i, id := range s.tenantOrder {
			if id == stored.ID {
				s.tenantOrder = append(s.tenantOrder[:i], s.tenantOrder[i+1:]...)
				break
			}
		}
	})
	return nil
}

func (r *memoryTenants) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if tenant, ok := r.s.tenants[id]; ok {
		return copyTenant(tenant), nil
	}
	return nil, nil
}

func (r *memoryTenants) List(ctx context.Context, offset, limit int, isActive *bool) ([]*domain.Tenant, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matched := make([]*domain.Tenant, 0)
	for _, id := range r.s.tenantOrder {
		tenant := r.s.tenants[id]
		if isActive != nil && tenant.IsActive != *isActive {
			continue
		}
		matched = append(matched, tenant)
	}

	total := len(matched)
	if offset >= total {
		return []*domain.Tenant{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	page := make([]*domain.Tenant, 0, end-offset)
	for _, tenant := range matched[offset:end] {
		page = append(page, copyTenant(tenant))
	}
	return page, total, nil
}

func (r *memoryTenants) FirstActive(ctx context.Context) (*domain.Tenant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, id := range r.s.tenantOrder {
		if tenant := r.s.tenants[id]; tenant.IsActive {
			return copyTenant(tenant), nil
		}
	}
	return nil, nil
}

func (r *memoryTenants) Update(ctx context.Context, tenant *domain.Tenant) error {
	return r.mutate(ctx, tenant.ID, func(t *domain.Tenant) error {
		t.Name = tenant.Name
		t.Description = tenant.Description
		t.Address = tenant.Address
		t.Phone = tenant.Phone
		t.Industry = tenant.Industry
		t.Timezone = tenant.Timezone
		return nil
	})
}

func (r *memoryTenants) SetOwner(ctx context.Context, tenantID, ownerID string) error {
	return r.mutate(ctx, tenantID, func(t *domain.Tenant) error {
		if t.HasOwner() {
			return ErrTenantHasOwner
		}
		t.OwnerID = &ownerID
		return nil
	})
}

func (r *memoryTenants) SetActive(ctx context.Context, tenantID string, active bool) error {
	return r.mutate(ctx, tenantID, func(t *domain.Tenant) error {
		t.IsActive = active
		return nil
	})
}

func (r *memoryTenants) mutate(ctx context.Context, id string, apply func(t *domain.Tenant) error) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	tenant, ok := s.tenants[id]
	if !ok {
		return ErrNotFound
	}
	before := *copyTenant(tenant)
	if err := apply(tenant); err != nil {
		return err
	}
	tenant.UpdatedAt = time.Now()
	s.onRollback(ctx, func() { *tenant = before })
	return nil
}

type memoryRoles struct{ s *MemoryStore }

func (r *memoryRoles) GetOrCreate(ctx context.Context, name domain.Role) (*domain.RoleRecord, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if role, ok := s.roles[name]; ok {
		copied := *role
		return &copied, nil
	}

	role := &domain.RoleRecord{ID: uuid.New().String(), Name: name, Description: "Role: " + string(name)}
	s.roles[name] = role
	s.onRollback(ctx, func() { delete(s.roles, name) })

	copied := *role
	return &copied, nil
}

type memoryLeads struct{ s *MemoryStore }

func (r *memoryLeads) Create(ctx context.Context, lead *domain.Lead) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenants[lead.TenantID]; !ok {
		return fmt.Errorf("tenant %s does not exist", lead.TenantID)
	}

	stored := &domain.Lead{}
	*stored = *lead
	s.leads = append(s.leads, stored)
	s.onRollback(ctx, func() {
		for i, l := range s.leads {
			if l == stored {
				s.leads = append(s.leads[:i], s.leads[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (r *memoryLeads) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Lead, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	leads := make([]*domain.Lead, 0)
	for _, lead := range r.s.leads {
		if lead.TenantID == tenantID {
			copied := *lead
			leads = append(leads, &copied)
		}
	}
	sort.SliceStable(leads, func(i, j int) bool { return leads[i].CreatedAt.After(leads[j].CreatedAt) })
	return leads, nil
}

type memoryServices struct{ s *MemoryStore }

func (r *memoryServices) CreateMany(ctx context.Context, services []*domain.BusinessService) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, svc := range services {
		if _, ok := s.tenants[svc.TenantID]; !ok {
			return 0, fmt.Errorf("tenant %s does not exist", svc.TenantID)
		}
	}

	added := make(map[*domain.BusinessService]bool, len(services))
	for _, svc := range services {
		stored := &domain.BusinessService{}
		*stored = *svc
		s.services = append(s.services, stored)
		added[stored] = true
	}
	s.onRollback(ctx, func() {
		kept := s.services[:0]
		for _, svc := range s.services {
			if !added[svc] {
				kept = append(kept, svc)
			}
		}
		s.services = kept
	})
	return len(services), nil
}

func (r *memoryServices) ListByTenant(ctx context.Context, tenantID string) ([]*domain.BusinessService, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	services := make([]*domain.BusinessService, 0)
	for _, svc := range r.s.services {
		if svc.TenantID == tenantID {
			copied := *svc
			services = append(services, &copied)
		}
	}
	return services, nil
}

func copyIdentity(identity *domain.Identity) *domain.Identity {
	copied := *identity
	copied.Roles = append([]domain.Role(nil), identity.Roles...)
	if identity.TenantID != nil {
		tenantID := *identity.TenantID
		copied.TenantID = &tenantID
	}
	if identity.CreatedBy != nil {
		createdBy := *identity.CreatedBy
		copied.CreatedBy = &createdBy
	}
	return &copied
}

func copyTenant(tenant *domain.Tenant) *domain.Tenant {
	copied := *tenant
	if tenant.OwnerID != nil {
		ownerID := *tenant.OwnerID
		copied.OwnerID = &ownerID
	}
	return &copied
}
