package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations are idempotent and run inside one transaction. Migration is an
// explicit step invoked from the entrypoint (serve with migrate-on-start, or
// the migrate subcommand), never an import-time side effect, so concurrent
// cold starts cannot race a half-applied schema.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		wallet_address TEXT UNIQUE NOT NULL,
		name TEXT,
		email TEXT,
		organization TEXT,
		last_login TIMESTAMPTZ,
		login_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS wallet_nonces (
		id BIGSERIAL PRIMARY KEY,
		wallet_address TEXT NOT NULL,
		nonce TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		used BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (wallet_address, nonce)
	)`,
	`CREATE TABLE IF NOT EXISTS wallet_sessions (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		session_token TEXT UNIQUE NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		invalidated_at TIMESTAMPTZ,
		ip_address TEXT,
		user_agent TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS wallet_sessions_user_id_idx ON wallet_sessions (user_id)`,
	`CREATE TABLE IF NOT EXISTS wallet_activity (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		activity_type TEXT NOT NULL,
		details JSONB NOT NULL DEFAULT '{}'::jsonb,
		ip_address TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS datasets (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		data_type TEXT NOT NULL,
		license_type TEXT NOT NULL,
		keywords TEXT[],
		owner_id BIGINT NOT NULL REFERENCES users(id),
		tx_hash TEXT,
		walrus_blob_ids TEXT[],
		encrypted BOOLEAN NOT NULL DEFAULT TRUE,
		encryption_type TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS access_grants (
		id BIGSERIAL PRIMARY KEY,
		dataset_id BIGINT NOT NULL REFERENCES datasets(id),
		grantee_id BIGINT NOT NULL REFERENCES users(id),
		access_level TEXT NOT NULL,
		granted_by BIGINT NOT NULL REFERENCES users(id),
		granted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		expires_at TIMESTAMPTZ NOT NULL,
		tx_hash TEXT,
		revoked BOOLEAN NOT NULL DEFAULT FALSE,
		revoked_at TIMESTAMPTZ,
		revoked_by BIGINT REFERENCES users(id),
		revocation_tx_hash TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS access_requests (
		id BIGSERIAL PRIMARY KEY,
		dataset_id BIGINT NOT NULL REFERENCES datasets(id),
		requester_id BIGINT NOT NULL REFERENCES users(id),
		purpose TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		requested_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		processed_at TIMESTAMPTZ,
		processed_by BIGINT REFERENCES users(id),
		tx_hash TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGSERIAL PRIMARY KEY,
		action TEXT NOT NULL,
		dataset_id BIGINT REFERENCES datasets(id),
		user_id BIGINT REFERENCES users(id),
		details JSONB,
		tx_hash TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate applies the schema. Safe to run repeatedly and from multiple
// processes; statements are IF NOT EXISTS and wrapped in one transaction.
func Migrate(ctx context.Context, pg *pgxpool.Pool) error {
	tx, err := pg.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range migrations {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return tx.Commit(ctx)
}
