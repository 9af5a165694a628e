package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/wardenhq/warden/internal/database/dbretry"
	"github.com/wardenhq/warden/internal/database/types"
	"go.uber.org/zap"
)

// WhitelistModel handles database operations for whitelist ledger entries.
type WhitelistModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewWhitelist creates a new whitelist model instance.
func NewWhitelist(db *bun.DB, logger *zap.Logger) *WhitelistModel {
	return &WhitelistModel{
		db:     db,
		logger: logger.Named("db_whitelist"),
	}
}

// GetEntriesForGame retrieves all ledger entries for one game identity.
func (m *WhitelistModel) GetEntriesForGame(ctx context.Context, gameID string) ([]*types.WhitelistEntry, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.WhitelistEntry, error) {
		var entries []*types.WhitelistEntry

		err := m.db.NewSelect().
			Model(&entries).
			Where("game_id = ?", gameID).
			Order("granted_at ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get whitelist entries: %w", err)
		}

		return entries, nil
	})
}

// GetByID retrieves one ledger entry.
func (m *WhitelistModel) GetByID(ctx context.Context, db bun.IDB, id int64) (*types.WhitelistEntry, error) {
	entry := new(types.WhitelistEntry)

	err := db.NewSelect().
		Model(entry).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrEntryNotFound
		}

		return nil, fmt.Errorf("failed to get whitelist entry: %w", err)
	}

	return entry, nil
}

// GetRoleEntry retrieves the most recent role-sourced entry for a
// (discordUserID, gameID, roleName) triple, revoked or not, so the
// grant path can see the latest block. Each user's grant is a distinct
// row even when several users share a game identity. Returns nil when
// there is none.
func (m *WhitelistModel) GetRoleEntry(
	ctx context.Context, db bun.IDB, discordUserID uint64, gameID, roleName string,
) (*types.WhitelistEntry, error) {
	entry := new(types.WhitelistEntry)

	err := db.NewSelect().
		Model(entry).
		Where("discord_user_id = ?", discordUserID).
		Where("game_id = ?", gameID).
		Where("source = ?", types.EntrySourceRole).
		Where("role_name = ?", roleName).
		Order("granted_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to get role entry: %w", err)
	}

	return entry, nil
}

// GetUnlinkedPlaceholder retrieves an existing "no linked identity"
// placeholder for a (discordUserID, roleName) pair. Returns nil when
// there is none.
func (m *WhitelistModel) GetUnlinkedPlaceholder(
	ctx context.Context, db bun.IDB, discordUserID uint64, roleName string,
) (*types.WhitelistEntry, error) {
	entry := new(types.WhitelistEntry)

	err := db.NewSelect().
		Model(entry).
		Where("discord_user_id = ?", discordUserID).
		Where("role_name = ?", roleName).
		Where("source = ?", types.EntrySourceRole).
		Where("game_id = ''").
		Where("approved = FALSE").
		Where("revoked = FALSE").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to get unlinked placeholder: %w", err)
	}

	return entry, nil
}

// GetBlockedRoleEntries retrieves the user's unapproved role-sourced
// entries that a confidence upgrade on the given link could promote:
// security blocks on the game identity plus unlinked placeholders left
// behind before the user had any link. Another user's blocked entries
// on the same game identity are never candidates.
func (m *WhitelistModel) GetBlockedRoleEntries(
	ctx context.Context, gameID string, discordUserID uint64,
) ([]*types.WhitelistEntry, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.WhitelistEntry, error) {
		var entries []*types.WhitelistEntry

		err := m.db.NewSelect().
			Model(&entries).
			Where("source = ?", types.EntrySourceRole).
			Where("approved = FALSE").
			Where("discord_user_id = ?", discordUserID).
			WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.
					WhereGroup(" OR ", func(q *bun.SelectQuery) *bun.SelectQuery {
						return q.
							Where("game_id = ?", gameID).
							Where("revoked = TRUE").
							Where("revoked_reason = ?", types.RevokeReasonInsufficientConfidence)
					}).
					WhereGroup(" OR ", func(q *bun.SelectQuery) *bun.SelectQuery {
						return q.
							Where("game_id = ''").
							Where("revoked = FALSE")
					})
			}).
			Order("granted_at ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get blocked role entries: %w", err)
		}

		return entries, nil
	})
}

// Insert stores a new ledger entry.
func (m *WhitelistModel) Insert(ctx context.Context, db bun.IDB, entry *types.WhitelistEntry) error {
	entry.UpdatedAt = time.Now()

	_, err := db.NewInsert().Model(entry).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert whitelist entry: %w", err)
	}

	return nil
}

// Approve marks an entry approved and clears any revocation, promoting a
// blocked placeholder into a live grant. The game identity is set at the
// same time so unlinked placeholders attach to the link that unblocked
// them.
func (m *WhitelistModel) Approve(ctx context.Context, db bun.IDB, id int64, gameID string) error {
	_, err := db.NewUpdate().
		Model((*types.WhitelistEntry)(nil)).
		Set("approved = TRUE").
		Set("revoked = FALSE").
		Set("revoked_by = NULL").
		Set("revoked_at = NULL").
		Set("revoked_reason = NULL").
		Set("game_id = ?", gameID).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to approve whitelist entry: %w", err)
	}

	return nil
}

// Revoke marks a single entry revoked.
func (m *WhitelistModel) Revoke(ctx context.Context, db bun.IDB, id int64, revokedBy, reason string) error {
	now := time.Now()

	_, err := db.NewUpdate().
		Model((*types.WhitelistEntry)(nil)).
		Set("revoked = TRUE").
		Set("revoked_by = ?", revokedBy).
		Set("revoked_at = ?", now).
		Set("revoked_reason = ?", reason).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("revoked = FALSE").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to revoke whitelist entry: %w", err)
	}

	return nil
}

// revokeUserRoleEntriesQuery builds the revocation update shared by the
// role-removal and departure paths. Only the given user's non-revoked
// role-sourced entries are candidates; entries another user earned on
// the same game identity, and manual, donation and import entries, can
// never match.
func revokeUserRoleEntriesQuery(
	db bun.IDB, discordUserID uint64, revokedBy, reason string,
) *bun.UpdateQuery {
	now := time.Now()

	return db.NewUpdate().
		Model((*types.WhitelistEntry)(nil)).
		Set("revoked = TRUE").
		Set("revoked_by = ?", revokedBy).
		Set("revoked_at = ?", now).
		Set("revoked_reason = ?", reason).
		Set("updated_at = ?", now).
		Where("discord_user_id = ?", discordUserID).
		Where("source = ?", types.EntrySourceRole).
		Where("revoked = FALSE")
}

// RevokeRoleEntries revokes the user's non-revoked role-sourced entries
// matching roleName, including unlinked placeholders. Returns the game
// identity of each revoked entry, empty string for placeholders.
func (m *WhitelistModel) RevokeRoleEntries(
	ctx context.Context, db bun.IDB, discordUserID uint64, roleName, revokedBy, reason string,
) ([]string, error) {
	var affected []string

	err := revokeUserRoleEntriesQuery(db, discordUserID, revokedBy, reason).
		Where("role_name = ?", roleName).
		Returning("game_id").
		Scan(ctx, &affected)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to revoke role entries: %w", err)
	}

	return affected, nil
}

// RevokeAllRoleEntriesForUser revokes every non-revoked role-sourced
// entry carrying the user's Discord ID, placeholders included. Returns
// the affected game identities.
func (m *WhitelistModel) RevokeAllRoleEntriesForUser(
	ctx context.Context, db bun.IDB, discordUserID uint64, revokedBy, reason string,
) ([]string, error) {
	var affected []string

	err := revokeUserRoleEntriesQuery(db, discordUserID, revokedBy, reason).
		Returning("game_id").
		Scan(ctx, &affected)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to revoke role entries for user: %w", err)
	}

	return affected, nil
}

// Extend repairs an entry's duration through the explicit stacking-repair
// path. This is the only way an existing entry's duration may change.
func (m *WhitelistModel) Extend(
	ctx context.Context, db bun.IDB, id int64, value int64, unit types.DurationUnit,
) error {
	result, err := db.NewUpdate().
		Model((*types.WhitelistEntry)(nil)).
		Set("duration_value = ?", value).
		Set("duration_unit = ?", unit).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to extend whitelist entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return types.ErrEntryNotFound
	}

	return nil
}
