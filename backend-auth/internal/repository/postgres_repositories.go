package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/domain"
	"github.com/prohmpiriya/multicore-crm/pkg/database"
	"github.com/prohmpiriya/multicore-crm/pkg/middleware"
)

// PostgresRoleRepository implements RoleRepository using PostgreSQL
type PostgresRoleRepository struct {
	db *database.PostgresDB
}

// NewPostgresRoleRepository creates a new PostgresRoleRepository
func NewPostgresRoleRepository(db *database.PostgresDB) *PostgresRoleRepository {
	return &PostgresRoleRepository{db: db}
}

// GetOrCreate inserts the role if absent and reads it back. Concurrent
// creators collapse onto the roles_name_key constraint.
func (r *PostgresRoleRepository) GetOrCreate(ctx context.Context, name domain.Role) (*domain.RoleRecord, error) {
	q := r.db.Querier(ctx)

	_, err := q.Exec(ctx,
		`INSERT INTO roles (id, name, description) VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING`,
		uuid.New().String(), name, "Role: "+string(name),
	)
	if err != nil {
		return nil, err
	}

	role := &domain.RoleRecord{}
	err = q.QueryRow(ctx,
		`SELECT id, name, COALESCE(description, '') FROM roles WHERE name = $1`, name,
	).Scan(&role.ID, &role.Name, &role.Description)
	if err != nil {
		return nil, err
	}
	return role, nil
}

// PostgresLeadRepository implements LeadRepository using PostgreSQL
type PostgresLeadRepository struct {
	db *database.PostgresDB
}

// NewPostgresLeadRepository creates a new PostgresLeadRepository
func NewPostgresLeadRepository(db *database.PostgresDB) *PostgresLeadRepository {
	return &PostgresLeadRepository{db: db}
}

// Create creates a new lead
func (r *PostgresLeadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	_, err := r.db.Querier(ctx).Exec(ctx, `
		INSERT INTO leads (id, tenant_id, name, email, phone, status, score, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		lead.ID,
		lead.TenantID,
		nullStringOrValue(lead.Name),
		lead.Email,
		lead.Phone,
		lead.Status,
		lead.Score,
		nullStringOrValue(lead.Notes),
		lead.CreatedAt,
	)
	return err
}

// ListByTenant retrieves the leads of a tenant, newest first
func (r *PostgresLeadRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Lead, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, `
		SELECT id, tenant_id, COALESCE(name, ''), email, phone, status, score, COALESCE(notes, ''), created_at
		FROM leads
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]*domain.Lead, 0)
	for rows.Next() {
		lead := &domain.Lead{}
		if err := rows.Scan(
			&lead.ID,
			&lead.TenantID,
			&lead.Name,
			&lead.Email,
			&lead.Phone,
			&lead.Status,
			&lead.Score,
			&lead.Notes,
			&lead.CreatedAt,
		); err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// PostgresBusinessServiceRepository implements BusinessServiceRepository using PostgreSQL
type PostgresBusinessServiceRepository struct {
	db *database.PostgresDB
}

// NewPostgresBusinessServiceRepository creates a new PostgresBusinessServiceRepository
func NewPostgresBusinessServiceRepository(db *database.PostgresDB) *PostgresBusinessServiceRepository {
	return &PostgresBusinessServiceRepository{db: db}
}

// CreateMany inserts services in one round trip
func (r *PostgresBusinessServiceRepository) CreateMany(ctx context.Context, services []*domain.BusinessService) (int, error) {
	if len(services) == 0 {
		return 0, nil
	}

	rows := make([][]interface{}, len(services))
	for i, svc := range services {
		rows[i] = []interface{}{
			svc.ID, svc.TenantID, svc.Name, nullStringOrValue(svc.Description),
			svc.Price, svc.IsActive, svc.CreatedAt, svc.UpdatedAt,
		}
	}

	var written int
	err := r.db.WithinTx(ctx, func(ctx context.Context) error {
		batch := &pgx.Batch{}
		for _, row := range rows {
			batch.Queue(`
				INSERT INTO business_services (id, tenant_id, name, description, price, is_active, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, row...)
		}

		results := r.db.SendBatch(ctx, batch)
		defer results.Close()
		for range rows {
			if _, err := results.Exec(); err != nil {
				return err
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// ListByTenant retrieves the services of a tenant
func (r *PostgresBusinessServiceRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.BusinessService, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, `
		SELECT id, tenant_id, name, COALESCE(description, ''), price::float8, is_active, created_at, updated_at
		FROM business_services
		WHERE tenant_id = $1
		ORDER BY created_at, id
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	services := make([]*domain.BusinessService, 0)
	for rows.Next() {
		svc := &domain.BusinessService{}
		if err := rows.Scan(
			&svc.ID, &svc.TenantID, &svc.Name, &svc.Description,
			&svc.Price, &svc.IsActive, &svc.CreatedAt, &svc.UpdatedAt,
		); err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

// PostgresAuditRepository persists audit entries
type PostgresAuditRepository struct {
	db *database.PostgresDB
}

// NewPostgresAuditRepository creates a new PostgresAuditRepository
func NewPostgresAuditRepository(db *database.PostgresDB) *PostgresAuditRepository {
	return &PostgresAuditRepository{db: db}
}

// InsertAuditEntries writes a batch of audit entries
func (r *PostgresAuditRepository) InsertAuditEntries(ctx context.Context, entries []*middleware.AuditEntry) error {
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO audit_logs (
				id, tenant_id, identity_id, email, roles, action, resource_type, resource_id,
				method, path, status, ip_address, user_agent, request_id, payload, metadata, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		`,
			e.ID, e.TenantID, e.IdentityID, nullStringOrValue(e.Email), e.Roles, e.Action, e.ResourceType, e.ResourceID,
			e.Method, e.Path, e.Status, nullStringOrValue(e.IPAddress), nullStringOrValue(e.UserAgent),
			nullStringOrValue(e.RequestID), e.Payload, e.Metadata, e.CreatedAt,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()
	for range entries {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// NewPostgresStore wires every repository onto one pool
func NewPostgresStore(db *database.PostgresDB) *Store {
	return &Store{
		Tx:         db,
		Identities: NewPostgresIdentityRepository(db),
		Tenants:    NewPostgresTenantRepository(db),
		Roles:      NewPostgresRoleRepository(db),
		Leads:      NewPostgresLeadRepository(db),
		Services:   NewPostgresBusinessServiceRepository(db),
		Audit:      NewPostgresAuditRepository(db),
		Ping: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return db.HealthCheck(ctx)
		},
	}
}
