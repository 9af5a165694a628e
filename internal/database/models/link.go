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

// LinkModel handles database operations for identity links.
type LinkModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewLink creates a new link model instance.
func NewLink(db *bun.DB, logger *zap.Logger) *LinkModel {
	return &LinkModel{
		db:     db,
		logger: logger.Named("db_link"),
	}
}

// Get retrieves the link for one (discordUserID, gameID) pair.
// Returns types.ErrLinkNotFound when no link exists.
func (m *LinkModel) Get(ctx context.Context, db bun.IDB, discordUserID uint64, gameID string) (*types.IdentityLink, error) {
	link := new(types.IdentityLink)

	err := db.NewSelect().
		Model(link).
		Where("discord_user_id = ?", discordUserID).
		Where("game_id = ?", gameID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrLinkNotFound
		}

		return nil, fmt.Errorf("failed to get identity link: %w", err)
	}

	return link, nil
}

// GetHighestConfidence retrieves the user's most trusted link, preferring
// the primary link when confidences tie. Returns nil when the user has no
// links at all.
func (m *LinkModel) GetHighestConfidence(ctx context.Context, discordUserID uint64) (*types.IdentityLink, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.IdentityLink, error) {
		link := new(types.IdentityLink)

		err := m.db.NewSelect().
			Model(link).
			Where("discord_user_id = ?", discordUserID).
			Order("confidence DESC", "is_primary DESC", "created_at ASC").
			Limit(1).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}

			return nil, fmt.Errorf("failed to get highest confidence link: %w", err)
		}

		return link, nil
	})
}

// GetPrimaryForGame retrieves the primary link bound to a game identity.
func (m *LinkModel) GetPrimaryForGame(ctx context.Context, gameID string) (*types.IdentityLink, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.IdentityLink, error) {
		link := new(types.IdentityLink)

		err := m.db.NewSelect().
			Model(link).
			Where("game_id = ?", gameID).
			Where("is_primary = TRUE").
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, types.ErrLinkNotFound
			}

			return nil, fmt.Errorf("failed to get primary link for game: %w", err)
		}

		return link, nil
	})
}

// GetForUser retrieves all links of a Discord user.
func (m *LinkModel) GetForUser(ctx context.Context, discordUserID uint64) ([]*types.IdentityLink, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.IdentityLink, error) {
		var links []*types.IdentityLink

		err := m.db.NewSelect().
			Model(&links).
			Where("discord_user_id = ?", discordUserID).
			Order("confidence DESC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get links for user: %w", err)
		}

		return links, nil
	})
}

// Upsert inserts a link or updates its confidence, source and primary
// flag when the (discordUserID, gameID) pair already exists.
func (m *LinkModel) Upsert(ctx context.Context, db bun.IDB, link *types.IdentityLink) error {
	link.UpdatedAt = time.Now()

	_, err := db.NewInsert().
		Model(link).
		On("CONFLICT (discord_user_id, game_id) DO UPDATE").
		Set("confidence = EXCLUDED.confidence").
		Set("source = EXCLUDED.source").
		Set("is_primary = EXCLUDED.is_primary").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert identity link: %w", err)
	}

	return nil
}

// DemoteOtherPrimaries clears the primary flag on every other link of the
// user so the (user, game) pair being promoted stays the single
// authoritative link for privilege decisions.
func (m *LinkModel) DemoteOtherPrimaries(ctx context.Context, db bun.IDB, discordUserID uint64, gameID string) error {
	_, err := db.NewUpdate().
		Model((*types.IdentityLink)(nil)).
		Set("is_primary = FALSE").
		Set("updated_at = ?", time.Now()).
		Where("discord_user_id = ?", discordUserID).
		Where("game_id != ?", gameID).
		Where("is_primary = TRUE").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to demote primary links: %w", err)
	}

	return nil
}

// demoteOtherPrimariesForGameQuery clears the primary flag on every
// other user's link to a game identity. The link being promoted is the
// only row left out.
func demoteOtherPrimariesForGameQuery(db bun.IDB, discordUserID uint64, gameID string) *bun.UpdateQuery {
	return db.NewUpdate().
		Model((*types.IdentityLink)(nil)).
		Set("is_primary = FALSE").
		Set("updated_at = ?", time.Now()).
		Where("game_id = ?", gameID).
		Where("discord_user_id != ?", discordUserID).
		Where("is_primary = TRUE")
}

// DemoteOtherPrimariesForGame ensures at most one Discord account
// claims a game identity as primary. A partial unique index on
// identity_links enforces the same invariant against concurrent
// transactions.
func (m *LinkModel) DemoteOtherPrimariesForGame(ctx context.Context, db bun.IDB, discordUserID uint64, gameID string) error {
	_, err := demoteOtherPrimariesForGameQuery(db, discordUserID, gameID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to demote primary links for game: %w", err)
	}

	return nil
}

// UpdateConfidence sets a link's confidence and source.
func (m *LinkModel) UpdateConfidence(
	ctx context.Context, db bun.IDB, discordUserID uint64, gameID string, confidence float64, source types.LinkSource,
) error {
	_, err := db.NewUpdate().
		Model((*types.IdentityLink)(nil)).
		Set("confidence = ?", confidence).
		Set("source = ?", source).
		Set("updated_at = ?", time.Now()).
		Where("discord_user_id = ?", discordUserID).
		Where("game_id = ?", gameID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update link confidence: %w", err)
	}

	return nil
}
