package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const currentSchemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version     INTEGER PRIMARY KEY,
    applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS users (
    id          BIGSERIAL PRIMARY KEY,
    username    TEXT NOT NULL UNIQUE,
    password    TEXT NOT NULL,
    email       TEXT NOT NULL DEFAULT '',
    is_device   BOOLEAN NOT NULL DEFAULT FALSE,
    owner_id    BIGINT REFERENCES users(id) ON DELETE CASCADE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS spaces (
    id          BIGSERIAL PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    owner_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS space_members (
    space_id    BIGINT NOT NULL REFERENCES spaces(id) ON DELETE CASCADE,
    user_id     BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    PRIMARY KEY (space_id, user_id)
);

CREATE TABLE IF NOT EXISTS devices (
    id          BIGSERIAL PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    data        JSONB NOT NULL DEFAULT '{"components": []}',
    owner_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    account_id  BIGINT REFERENCES users(id) ON DELETE SET NULL,
    space_id    BIGINT REFERENCES spaces(id) ON DELETE SET NULL,
    added_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS commands (
    id                 BIGSERIAL PRIMARY KEY,
    author_id          BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    device_id          BIGINT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
    data               JSONB NOT NULL,
    description        TEXT NOT NULL DEFAULT '',
    scheduled_at       TIMESTAMPTZ,
    repeat_interval_us BIGINT,
    self_execute       BOOLEAN NOT NULL DEFAULT FALSE,
    executed           BOOLEAN NOT NULL DEFAULT FALSE,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS commands_links (
    id          BIGSERIAL PRIMARY KEY,
    owner_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    triggers    JSONB NOT NULL,
    results     JSONB NOT NULL,
    ttl_us      BIGINT,
    started_at  TIMESTAMPTZ,
    version     BIGINT NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_devices_owner ON devices(owner_id);
CREATE INDEX IF NOT EXISTS idx_devices_account ON devices(account_id);
CREATE INDEX IF NOT EXISTS idx_devices_space ON devices(space_id);
CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(device_id, executed, scheduled_at);
CREATE INDEX IF NOT EXISTS idx_links_owner ON commands_links(owner_id);
CREATE INDEX IF NOT EXISTS idx_links_triggers ON commands_links USING GIN (triggers jsonb_path_ops);
`

// Migrate brings the schema up to date
func (d *DB) Migrate(ctx context.Context) error {
	version, err := d.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}
	if version >= currentSchemaVersion {
		return nil
	}

	if version < 1 {
		err := d.Tx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, schemaV1); err != nil {
				return fmt.Errorf("failed to execute schema: %w", err)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO schema_version (version) VALUES (1)`); err != nil {
				return fmt.Errorf("failed to record schema version: %w", err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to apply schema v1: %w", err)
		}
	}
	return nil
}

// SchemaVersion returns the applied schema version, or 0 for an empty database
func (d *DB) SchemaVersion(ctx context.Context) (int, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `SELECT to_regclass('schema_version') IS NOT NULL`).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}
	var version int
	err = d.pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	return version, err
}
