package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			CREATE TABLE IF NOT EXISTS identity_links (
				discord_user_id BIGINT       NOT NULL,
				game_id         VARCHAR(17)  NOT NULL,
				confidence      DOUBLE PRECISION NOT NULL DEFAULT 0,
				source          TEXT         NOT NULL,
				is_primary      BOOLEAN      NOT NULL DEFAULT FALSE,
				created_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
				updated_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
				PRIMARY KEY (discord_user_id, game_id),
				CONSTRAINT confidence_range CHECK (confidence >= 0 AND confidence <= 1)
			);

			-- One authoritative link per Discord user.
			CREATE UNIQUE INDEX IF NOT EXISTS idx_identity_links_one_primary
				ON identity_links (discord_user_id) WHERE is_primary;

			-- And at most one primary claimant per game identity.
			CREATE UNIQUE INDEX IF NOT EXISTS idx_identity_links_one_primary_game
				ON identity_links (game_id) WHERE is_primary;

			CREATE INDEX IF NOT EXISTS idx_identity_links_game
				ON identity_links (game_id);

			CREATE TABLE IF NOT EXISTS whitelist_entries (
				id              BIGSERIAL    PRIMARY KEY,
				game_id         VARCHAR(17)  NOT NULL DEFAULT '',
				discord_user_id BIGINT,
				type            TEXT         NOT NULL,
				source          TEXT         NOT NULL,
				role_name       TEXT,
				duration_value  BIGINT,
				duration_unit   TEXT,
				granted_by      TEXT         NOT NULL,
				granted_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
				approved        BOOLEAN      NOT NULL DEFAULT FALSE,
				revoked         BOOLEAN      NOT NULL DEFAULT FALSE,
				revoked_by      TEXT,
				revoked_at      TIMESTAMPTZ,
				revoked_reason  TEXT,
				metadata        JSONB,
				updated_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_whitelist_entries_game
				ON whitelist_entries (game_id);

			CREATE INDEX IF NOT EXISTS idx_whitelist_entries_role
				ON whitelist_entries (game_id, role_name) WHERE source = 'ROLE';

			CREATE INDEX IF NOT EXISTS idx_whitelist_entries_user
				ON whitelist_entries (discord_user_id) WHERE discord_user_id IS NOT NULL;

			CREATE TABLE IF NOT EXISTS audit_entries (
				id              BIGSERIAL    PRIMARY KEY,
				action          TEXT         NOT NULL,
				actor           TEXT         NOT NULL,
				discord_user_id BIGINT,
				game_id         VARCHAR(17),
				before          JSONB,
				after           JSONB,
				severity        TEXT         NOT NULL,
				metadata        JSONB,
				created_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_audit_entries_cursor
				ON audit_entries (created_at DESC, id DESC);

			CREATE INDEX IF NOT EXISTS idx_audit_entries_game
				ON audit_entries (game_id) WHERE game_id IS NOT NULL;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create initial schema: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			DROP TABLE IF EXISTS audit_entries;
			DROP TABLE IF EXISTS whitelist_entries;
			DROP TABLE IF EXISTS identity_links;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop initial schema: %w", err)
		}

		return nil
	})
}
