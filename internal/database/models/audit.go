package models

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/wardenhq/warden/internal/database/dbretry"
	"github.com/wardenhq/warden/internal/database/types"
	"go.uber.org/zap"
)

// AuditModel handles database operations for the audit trail.
type AuditModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewAudit creates a new audit model instance.
func NewAudit(db *bun.DB, logger *zap.Logger) *AuditModel {
	return &AuditModel{
		db:     db,
		logger: logger.Named("db_audit"),
	}
}

// Log stores an audit entry. When called with a transaction the entry is
// durable before the surrounding mutation commits; a failed audit write
// fails the whole transaction.
func (m *AuditModel) Log(ctx context.Context, db bun.IDB, entry *types.AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := db.NewInsert().Model(entry).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}

	m.logger.Debug("Wrote audit entry",
		zap.String("action", string(entry.Action)),
		zap.String("actor", entry.Actor),
		zap.Uint64("discordUserID", entry.DiscordUserID),
		zap.String("gameID", entry.GameID))

	return nil
}

// GetLogs retrieves audit entries matching the filter with cursor-based
// pagination, newest first.
func (m *AuditModel) GetLogs(
	ctx context.Context, filter types.AuditFilter, cursor *types.AuditCursor, limit int,
) ([]*types.AuditEntry, *types.AuditCursor, error) {
	var (
		entries    []*types.AuditEntry
		nextCursor *types.AuditCursor
	)

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		query := m.db.NewSelect().
			Model(&entries).
			Limit(limit + 1) // One extra to detect the next page

		if filter.Action != "" {
			query = query.Where("action = ?", filter.Action)
		}

		if filter.Actor != "" {
			query = query.Where("actor = ?", filter.Actor)
		}

		if filter.DiscordUserID != 0 {
			query = query.Where("discord_user_id = ?", filter.DiscordUserID)
		}

		if filter.GameID != "" {
			query = query.Where("game_id = ?", filter.GameID)
		}

		if cursor != nil {
			query = query.Where("(created_at, id) <= (?, ?)", cursor.Timestamp, cursor.Sequence)
		}

		err := query.Order("created_at DESC", "id DESC").Scan(ctx)
		if err != nil {
			return fmt.Errorf("failed to get audit logs: %w", err)
		}

		if len(entries) > limit {
			last := entries[limit]
			nextCursor = &types.AuditCursor{
				Timestamp: last.CreatedAt,
				Sequence:  last.ID,
			}
			entries = entries[:limit]
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return entries, nextCursor, nil
}
