package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the schema migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create identity tables",
			SQL: `
				CREATE EXTENSION IF NOT EXISTS pgcrypto;

				CREATE TABLE IF NOT EXISTS auth_users (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					email TEXT NOT NULL UNIQUE,
					password_hash TEXT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS user_profiles (
					id UUID PRIMARY KEY REFERENCES auth_users(id) ON DELETE CASCADE,
					role TEXT NOT NULL DEFAULT 'technician'
						CHECK (role IN ('admin', 'manager', 'technician', 'sales_rep')),
					full_name TEXT NOT NULL DEFAULT '',
					phone TEXT,
					department TEXT,
					language TEXT NOT NULL DEFAULT 'en',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     2,
			Description: "Create settings tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					name TEXT NOT NULL,
					description TEXT,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS permissions (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					role_name TEXT NOT NULL,
					module TEXT NOT NULL,
					action TEXT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS workflows (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					name TEXT NOT NULL,
					config JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS forms (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					name TEXT NOT NULL,
					config JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS languages (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					code TEXT NOT NULL,
					name TEXT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_roles_created_at ON roles(created_at DESC);
				CREATE INDEX IF NOT EXISTS idx_permissions_created_at ON permissions(created_at DESC);
				CREATE INDEX IF NOT EXISTS idx_workflows_created_at ON workflows(created_at DESC);
				CREATE INDEX IF NOT EXISTS idx_forms_created_at ON forms(created_at DESC);
				CREATE INDEX IF NOT EXISTS idx_languages_created_at ON languages(created_at DESC);
			`,
		},
		{
			Version:     3,
			Description: "Create CRM tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS lead_sources (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					name TEXT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS tags (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					name TEXT NOT NULL,
					color TEXT,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS leads (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					name TEXT NOT NULL,
					email TEXT,
					phone TEXT,
					company TEXT,
					address TEXT,
					status TEXT NOT NULL DEFAULT 'new',
					priority TEXT NOT NULL DEFAULT 'medium',
					estimated_value NUMERIC(12, 2),
					notes TEXT,
					source_id UUID REFERENCES lead_sources(id) ON DELETE SET NULL,
					assigned_to UUID REFERENCES user_profiles(id) ON DELETE SET NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS lead_tags (
					lead_id UUID NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
					tag_id UUID NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
					PRIMARY KEY (lead_id, tag_id)
				);

				CREATE TABLE IF NOT EXISTS customers (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					name TEXT NOT NULL,
					email TEXT,
					phone TEXT,
					company TEXT,
					address TEXT,
					customer_type TEXT NOT NULL DEFAULT 'residential',
					converted_from_lead UUID REFERENCES leads(id) ON DELETE SET NULL,
					assigned_to UUID REFERENCES user_profiles(id) ON DELETE SET NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
				CREATE INDEX IF NOT EXISTS idx_leads_assigned_to ON leads(assigned_to);
			`,
		},
		{
			Version:     4,
			Description: "Create project and compliance tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS project_types (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					name TEXT NOT NULL,
					category TEXT,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS projects (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					name TEXT NOT NULL,
					description TEXT,
					status TEXT NOT NULL DEFAULT 'planning',
					priority TEXT NOT NULL DEFAULT 'medium',
					customer_id UUID REFERENCES customers(id) ON DELETE SET NULL,
					project_type_id UUID REFERENCES project_types(id) ON DELETE SET NULL,
					project_manager UUID REFERENCES user_profiles(id) ON DELETE SET NULL,
					start_date DATE,
					end_date DATE,
					budget NUMERIC(12, 2),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS compliance_records (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					project_id UUID REFERENCES projects(id) ON DELETE CASCADE,
					requirement TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'pending',
					due_date DATE,
					notes TEXT,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);
				CREATE INDEX IF NOT EXISTS idx_projects_manager ON projects(project_manager);
			`,
		},
		{
			Version:     5,
			Description: "Create audit log table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_logs (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					event_type TEXT NOT NULL,
					status TEXT NOT NULL,
					user_id TEXT,
					role TEXT,
					resource_type TEXT,
					resource_id TEXT,
					request_id TEXT,
					message TEXT,
					metadata JSONB,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_audit_logs_event_type ON audit_logs(event_type);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs(created_at DESC);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB, logger logrus.FieldLogger) error {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		log := logger.WithField("version", migration.Version)
		log.Infof("running migration: %s", migration.Description)

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
