package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/domain"
	"github.com/prohmpiriya/multicore-crm/pkg/database"
)

const tenantColumns = `
	id, name, COALESCE(description, ''), COALESCE(address, ''), COALESCE(phone, ''),
	COALESCE(industry, ''), COALESCE(timezone, ''), is_active, owner_id::text, created_at, updated_at
`

// PostgresTenantRepository implements TenantRepository using PostgreSQL
type PostgresTenantRepository struct {
	db *database.PostgresDB
}

// NewPostgresTenantRepository creates a new PostgresTenantRepository
func NewPostgresTenantRepository(db *database.PostgresDB) *PostgresTenantRepository {
	return &PostgresTenantRepository{db: db}
}

// Create creates a new tenant
func (r *PostgresTenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	query := `
		INSERT INTO tenants (id, name, description, address, phone, industry, timezone, is_active, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Querier(ctx).Exec(ctx, query,
		tenant.ID,
		tenant.Name,
		nullStringOrValue(tenant.Description),
		nullStringOrValue(tenant.Address),
		nullStringOrValue(tenant.Phone),
		nullStringOrValue(tenant.Industry),
		nullStringOrValue(tenant.Timezone),
		tenant.IsActive,
		tenant.OwnerID,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	)
	return err
}

// GetByID retrieves a tenant by ID
func (r *PostgresTenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	query := fmt.Sprintf(`SELECT %s FROM tenants WHERE id = $1`, tenantColumns)
	return scanTenant(r.db.Querier(ctx).QueryRow(ctx, query, id))
}

// FirstActive returns the oldest active tenant
func (r *PostgresTenantRepository) FirstActive(ctx context.Context) (*domain.Tenant, error) {
	query := fmt.Sprintf(`SELECT %s FROM tenants WHERE is_active ORDER BY created_at, id LIMIT 1`, tenantColumns)
	return scanTenant(r.db.Querier(ctx).QueryRow(ctx, query))
}

// List retrieves tenants with pagination and an optional active filter
func (r *PostgresTenantRepository) List(ctx context.Context, offset, limit int, isActive *bool) ([]*domain.Tenant, int, error) {
	whereClause := ""
	args := []interface{}{}
	argIndex := 1

	if isActive != nil {
		whereClause = fmt.Sprintf("WHERE is_active = $%d", argIndex)
		args = append(args, *isActive)
		argIndex++
	}

	q := r.db.Querier(ctx)

	var totalCount int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM tenants %s", whereClause)
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM tenants
		%s
		ORDER BY created_at, id
		LIMIT $%d OFFSET $%d
	`, tenantColumns, whereClause, argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tenants := make([]*domain.Tenant, 0)
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, 0, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, totalCount, rows.Err()
}

// Update updates the descriptive fields of a tenant
func (r *PostgresTenantRepository) Update(ctx context.Context, tenant *domain.Tenant) error {
	query := `
		UPDATE tenants
		SET name = $2, description = $3, address = $4, phone = $5, industry = $6, timezone = $7, updated_at = $8
		WHERE id = $1
	`
	tenant.UpdatedAt = time.Now()
	tag, err := r.db.Querier(ctx).Exec(ctx, query,
		tenant.ID,
		tenant.Name,
		nullStringOrValue(tenant.Description),
		nullStringOrValue(tenant.Address),
		nullStringOrValue(tenant.Phone),
		nullStringOrValue(tenant.Industry),
		nullStringOrValue(tenant.Timezone),
		tenant.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetOwner back-fills the owner reference of a tenant. The row lock taken by
// the UPDATE makes a concurrent second owner see the first one's value.
func (r *PostgresTenantRepository) SetOwner(ctx context.Context, tenantID, ownerID string) error {
	q := r.db.Querier(ctx)
	tag, err := q.Exec(ctx,
		`UPDATE tenants SET owner_id = $2, updated_at = $3 WHERE id = $1 AND owner_id IS NULL`,
		tenantID, ownerID, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tenants WHERE id = $1)`, tenantID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrTenantHasOwner
}

// SetActive toggles the active flag
func (r *PostgresTenantRepository) SetActive(ctx context.Context, tenantID string, active bool) error {
	return r.exec1(ctx, `UPDATE tenants SET is_active = $2, updated_at = $3 WHERE id = $1`, tenantID, active, time.Now())
}

func (r *PostgresTenantRepository) exec1(ctx context.Context, query string, args ...interface{}) error {
	tag, err := r.db.Querier(ctx).Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTenant(row pgx.Row) (*domain.Tenant, error) {
	tenant := &domain.Tenant{}
	err := row.Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.Description,
		&tenant.Address,
		&tenant.Phone,
		&tenant.Industry,
		&tenant.Timezone,
		&tenant.IsActive,
		&tenant.OwnerID,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return tenant, nil
}
