package db

import (
	"context"
	"fmt"
)

// schema holds the DDL for the git engine's own tables. The surrounding
// application owns everything else; these are only the records the sync
// engine reconciles the working copies against.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS application (
		application_id UUID PRIMARY KEY,
		workspace_id   UUID NOT NULL,
		name           TEXT NOT NULL,
		pages          JSONB NOT NULL DEFAULT '[]',
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS git_metadata (
		application_id     UUID PRIMARY KEY REFERENCES application(application_id) ON DELETE CASCADE,
		remote_url         TEXT NOT NULL,
		default_branch     TEXT NOT NULL,
		protected_branches TEXT[] NOT NULL DEFAULT '{}',
		auto_commit        BOOLEAN NOT NULL DEFAULT true,
		credential_id      UUID,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS git_branch_tip (
		application_id UUID NOT NULL REFERENCES application(application_id) ON DELETE CASCADE,
		branch         TEXT NOT NULL,
		commit_hash    TEXT NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (application_id, branch)
	)`,
	`CREATE TABLE IF NOT EXISTS git_credential (
		credential_id  UUID PRIMARY KEY,
		application_id UUID REFERENCES application(application_id) ON DELETE CASCADE,
		key_type       TEXT NOT NULL,
		public_key     TEXT NOT NULL,
		private_key    TEXT NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	// application_id is the nil UUID for a user's default profile
	`CREATE TABLE IF NOT EXISTS git_profile (
		user_id        TEXT NOT NULL,
		application_id UUID NOT NULL DEFAULT '00000000-0000-0000-0000-000000000000',
		author_name    TEXT NOT NULL,
		author_email   TEXT NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (user_id, application_id)
	)`,
}

// InitSchema creates the engine's tables if they do not exist.
// Wired as the bootstrap dbInitHook.
func InitSchema(ctx context.Context, db *DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
