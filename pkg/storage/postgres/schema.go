package postgres

import (
	"database/sql"
	"fmt"
)

// EnsureSchema creates the entitlement tables and indexes if they do not
// exist. The daemon runs this at startup; tests reuse it against throwaway
// containers.
func EnsureSchema(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS institutions (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		max_student_seats INTEGER NOT NULL DEFAULT 0,
		max_staff_seats INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS content_products (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL UNIQUE,
		available_to_institutions BOOLEAN NOT NULL DEFAULT false,
		institution_access_model VARCHAR(50),
		access_model VARCHAR(50),
		included_in_institution_bundle BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS institution_memberships (
		id BIGSERIAL PRIMARY KEY,
		institution_id BIGINT NOT NULL REFERENCES institutions(id),
		user_id BIGINT NOT NULL,
		member_type VARCHAR(50) NOT NULL,
		status VARCHAR(50) NOT NULL DEFAULT 'pending_approval',
		is_active BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		UNIQUE (institution_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS institution_product_subscriptions (
		id BIGSERIAL PRIMARY KEY,
		institution_id BIGINT NOT NULL REFERENCES institutions(id),
		content_product_id BIGINT NOT NULL REFERENCES content_products(id),
		status VARCHAR(50) NOT NULL DEFAULT 'pending',
		start_date TIMESTAMP WITH TIME ZONE NOT NULL,
		end_date TIMESTAMP WITH TIME ZONE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS institution_subscription_audit (
		id BIGSERIAL PRIMARY KEY,
		subscription_id BIGINT NOT NULL REFERENCES institution_product_subscriptions(id),
		action VARCHAR(50) NOT NULL,
		performed_by_user_id BIGINT,
		old_status VARCHAR(50) NOT NULL,
		new_status VARCHAR(50) NOT NULL,
		old_start_date TIMESTAMP WITH TIME ZONE NOT NULL,
		old_end_date TIMESTAMP WITH TIME ZONE NOT NULL,
		new_start_date TIMESTAMP WITH TIME ZONE NOT NULL,
		new_end_date TIMESTAMP WITH TIME ZONE NOT NULL,
		note TEXT,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_memberships_institution ON institution_memberships(institution_id, status, is_active);
	CREATE INDEX IF NOT EXISTS idx_subscriptions_pair ON institution_product_subscriptions(institution_id, content_product_id, id DESC);
	CREATE INDEX IF NOT EXISTS idx_subscriptions_status ON institution_product_subscriptions(status, end_date);
	CREATE INDEX IF NOT EXISTS idx_subscription_audit_subscription ON institution_subscription_audit(subscription_id, id DESC);
	`

	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
