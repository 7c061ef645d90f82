package repository

// Schema is applied in order by the migrate command. Every statement is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS roles (
		id          UUID PRIMARY KEY,
		name        VARCHAR(50) NOT NULL,
		description TEXT,
		CONSTRAINT roles_name_key UNIQUE (name)
	)`,
	`CREATE TABLE IF NOT EXISTS tenants (
		id          UUID PRIMARY KEY,
		name        VARCHAR(255) NOT NULL,
		description TEXT,
		address     TEXT,
		phone       VARCHAR(50),
		industry    VARCHAR(100),
		timezone    VARCHAR(64),
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		owner_id    UUID,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS tenants_active_created_idx ON tenants (created_at) WHERE is_active`,
	`CREATE TABLE IF NOT EXISTS identities (
		id            UUID PRIMARY KEY,
		email         VARCHAR(255) NOT NULL,
		password_hash TEXT NOT NULL,
		full_name     VARCHAR(200),
		phone         VARCHAR(50),
		status        VARCHAR(20) NOT NULL DEFAULT 'ACTIVE',
		tenant_id     UUID REFERENCES tenants (id),
		created_by    UUID REFERENCES identities (id),
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT identities_email_key UNIQUE (email)
	)`,
	`CREATE TABLE IF NOT EXISTS identity_roles (
		identity_id UUID NOT NULL REFERENCES identities (id) ON DELETE CASCADE,
		role_name   VARCHAR(50) NOT NULL REFERENCES roles (name),
		position    SMALLINT NOT NULL DEFAULT 0,
		PRIMARY KEY (identity_id, role_name)
	)`,
	// A single SUPER_ADMIN, enforced by the index rather than a scan
	`CREATE UNIQUE INDEX IF NOT EXISTS identity_roles_single_super_admin
		ON identity_roles (role_name) WHERE role_name = 'SUPER_ADMIN'`,
	`CREATE TABLE IF NOT EXISTS leads (
		id         UUID PRIMARY KEY,
		tenant_id  UUID NOT NULL REFERENCES tenants (id),
		name       VARCHAR(200),
		email      VARCHAR(255) NOT NULL,
		phone      VARCHAR(50) NOT NULL,
		status     VARCHAR(20) NOT NULL,
		score      INTEGER NOT NULL DEFAULT 0,
		notes      TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS leads_tenant_idx ON leads (tenant_id)`,
	`CREATE TABLE IF NOT EXISTS business_services (
		id          UUID PRIMARY KEY,
		tenant_id   UUID NOT NULL REFERENCES tenants (id),
		name        VARCHAR(150) NOT NULL,
		description VARCHAR(500),
		price       NUMERIC(15, 2),
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id            UUID PRIMARY KEY,
		tenant_id     UUID,
		identity_id   UUID,
		email         VARCHAR(255),
		roles         TEXT[],
		action        VARCHAR(20) NOT NULL,
		resource_type VARCHAR(50) NOT NULL,
		resource_id   VARCHAR(100),
		method        VARCHAR(10) NOT NULL,
		path          TEXT NOT NULL,
		status        INTEGER NOT NULL,
		ip_address    VARCHAR(64),
		user_agent    TEXT,
		request_id    VARCHAR(64),
		payload       JSONB,
		metadata      JSONB,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS audit_logs_tenant_created_idx ON audit_logs (tenant_id, created_at DESC)`,
}

// Constraint names translated into domain errors
const (
	constraintIdentityEmail    = "identities_email_key"
	constraintSingleSuperAdmin = "identity_roles_single_super_admin"
)
