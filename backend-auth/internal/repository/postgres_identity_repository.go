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

const identityColumns = `
	i.id, i.email, i.password_hash, COALESCE(i.full_name, ''), COALESCE(i.phone, ''), i.status,
	i.tenant_id::text, i.created_by::text, i.created_at, i.updated_at,
	COALESCE(array_agg(r.role_name ORDER BY r.position) FILTER (WHERE r.role_name IS NOT NULL), '{}')
`

// PostgresIdentityRepository implements IdentityRepository using PostgreSQL
type PostgresIdentityRepository struct {
	db *database.PostgresDB
}

// NewPostgresIdentityRepository creates a new PostgresIdentityRepository
func NewPostgresIdentityRepository(db *database.PostgresDB) *PostgresIdentityRepository {
	return &PostgresIdentityRepository{db: db}
}

// Create inserts the identity row and its role assignments in one transaction
func (r *PostgresIdentityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	return r.db.WithinTx(ctx, func(ctx context.Context) error {
		q := r.db.Querier(ctx)

		_, err := q.Exec(ctx, `
			INSERT INTO identities (id, email, password_hash, full_name, phone, status, tenant_id, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			identity.ID,
			identity.Email,
			identity.PasswordHash,
			nullStringOrValue(identity.FullName),
			nullStringOrValue(identity.Phone),
			identity.Status,
			identity.TenantID,
			identity.CreatedBy,
			identity.CreatedAt,
			identity.UpdatedAt,
		)
		if err != nil {
			return translateIdentityError(err)
		}

		for pos, role := range identity.Roles {
			_, err := q.Exec(ctx,
				`INSERT INTO identity_roles (identity_id, role_name, position) VALUES ($1, $2, $3)`,
				identity.ID, role, pos,
			)
			if err != nil {
				return translateIdentityError(err)
			}
		}
		return nil
	})
}

// GetByID retrieves an identity by ID
func (r *PostgresIdentityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	return r.getOne(ctx, "i.id = $1", id)
}

// GetByEmail retrieves an identity by email
func (r *PostgresIdentityRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return r.getOne(ctx, "i.email = $1", domain.NormalizeEmail(email))
}

func (r *PostgresIdentityRepository) getOne(ctx context.Context, where string, arg interface{}) (*domain.Identity, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM identities i
		LEFT JOIN identity_roles r ON r.identity_id = i.id
		WHERE %s
		GROUP BY i.id
	`, identityColumns, where)

	identity := &domain.Identity{}
	var roles []string
	err := r.db.Querier(ctx).QueryRow(ctx, query, arg).Scan(
		&identity.ID,
		&identity.Email,
		&identity.PasswordHash,
		&identity.FullName,
		&identity.Phone,
		&identity.Status,
		&identity.TenantID,
		&identity.CreatedBy,
		&identity.CreatedAt,
		&identity.UpdatedAt,
		&roles,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	identity.Roles = make([]domain.Role, len(roles))
	for i, role := range roles {
		identity.Roles[i] = domain.Role(role)
	}
	return identity, nil
}

// ExistsByEmail checks if an identity exists with the given email
func (r *PostgresIdentityRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.Querier(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM identities WHERE email = $1)`,
		domain.NormalizeEmail(email),
	).Scan(&exists)
	return exists, err
}

// SuperAdminExists checks the partial unique index on the SUPER_ADMIN assignment
func (r *PostgresIdentityRepository) SuperAdminExists(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db.Querier(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM identity_roles WHERE role_name = $1)`,
		domain.RoleSuperAdmin,
	).Scan(&exists)
	return exists, err
}

// SetTenant links an identity to its tenant
func (r *PostgresIdentityRepository) SetTenant(ctx context.Context, identityID, tenantID string) error {
	tag, err := r.db.Querier(ctx).Exec(ctx,
		`UPDATE identities SET tenant_id = $2, updated_at = $3 WHERE id = $1`,
		identityID, tenantID, time.Now(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func translateIdentityError(err error) error {
	switch {
	case database.IsUniqueViolation(err, constraintIdentityEmail):
		return ErrDuplicateEmail
	case database.IsUniqueViolation(err, constraintSingleSuperAdmin):
		return ErrSuperAdminExists
	default:
		return err
	}
}

// nullStringOrValue returns nil for empty strings, otherwise returns the value
func nullStringOrValue(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
