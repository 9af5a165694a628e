package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/wardenhq/warden/internal/database/models"
	"github.com/wardenhq/warden/internal/database/types"
	"github.com/wardenhq/warden/internal/steamid"
	"github.com/wardenhq/warden/internal/whitelist"
	"go.uber.org/zap"
)

// WhitelistService handles ledger business logic. Every mutating
// operation runs in a single transaction together with its audit write,
// so a crash can never leave a privilege change without its trail.
type WhitelistService struct {
	db     *bun.DB
	model  *models.WhitelistModel
	audit  *models.AuditModel
	logger *zap.Logger
}

// NewWhitelist creates a new whitelist service.
func NewWhitelist(db *bun.DB, model *models.WhitelistModel, audit *models.AuditModel, logger *zap.Logger) *WhitelistService {
	return &WhitelistService{
		db:     db,
		model:  model,
		audit:  audit,
		logger: logger.Named("whitelist_service"),
	}
}

// Status derives the aggregate whitelist state for one game identity.
func (s *WhitelistService) Status(ctx context.Context, gameID string) (whitelist.Result, error) {
	if err := steamid.Validate(gameID); err != nil {
		return whitelist.Result{}, err
	}

	entries, err := s.model.GetEntriesForGame(ctx, gameID)
	if err != nil {
		return whitelist.Result{}, err
	}

	return whitelist.Calculate(entries, time.Now()), nil
}

// GrantRoleEntry creates or re-approves an approved role-sourced entry
// for a trusted link. Re-processing the same observation is a no-op so
// duplicate events never produce duplicate rows.
func (s *WhitelistService) GrantRoleEntry(ctx context.Context, grant types.RoleGrant) (bool, error) {
	if err := steamid.Validate(grant.GameID); err != nil {
		return false, err
	}

	var mutated bool

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := s.model.GetRoleEntry(ctx, tx, grant.DiscordUserID, grant.GameID, grant.RoleName)
		if err != nil {
			return err
		}

		// Already live: nothing to do.
		if existing != nil && existing.IsLive() {
			return nil
		}

		// A security block for the same role gets promoted in place once
		// the link is trusted; anything else gets a fresh grant event.
		if existing != nil && existing.IsConfidenceBlocked() {
			if err := s.model.Approve(ctx, tx, existing.ID, grant.GameID); err != nil {
				return err
			}

			mutated = true

			after := *existing
			after.Approved = true
			after.Revoked = false
			after.RevokedReason = ""

			return s.audit.Log(ctx, tx, &types.AuditEntry{
				Action:        types.AuditActionWhitelistGranted,
				Actor:         types.SystemActor,
				DiscordUserID: grant.DiscordUserID,
				GameID:        grant.GameID,
				Before:        existing.Snapshot(),
				After:         after.Snapshot(),
				Severity:      types.AuditSeverityInfo,
				Metadata:      map[string]any{"confidence": grant.Confidence, "roleName": grant.RoleName},
			})
		}

		entry := &types.WhitelistEntry{
			GameID:        grant.GameID,
			DiscordUserID: grant.DiscordUserID,
			Type:          grant.Type,
			Source:        types.EntrySourceRole,
			RoleName:      grant.RoleName,
			DurationValue: grant.DurationValue,
			DurationUnit:  grant.DurationUnit,
			GrantedBy:     types.SystemActor,
			GrantedAt:     time.Now(),
			Approved:      true,
			Metadata:      map[string]any{"confidence": grant.Confidence},
		}

		if err := s.model.Insert(ctx, tx, entry); err != nil {
			return err
		}

		mutated = true

		return s.audit.Log(ctx, tx, &types.AuditEntry{
			Action:        types.AuditActionWhitelistGranted,
			Actor:         types.SystemActor,
			DiscordUserID: grant.DiscordUserID,
			GameID:        grant.GameID,
			After:         entry.Snapshot(),
			Severity:      types.AuditSeverityInfo,
			Metadata:      map[string]any{"confidence": grant.Confidence, "roleName": grant.RoleName},
		})
	})
	if err != nil {
		return false, fmt.Errorf("failed to grant role entry: %w", err)
	}

	return mutated, nil
}

// BlockRoleEntry creates an unapproved, pre-revoked placeholder because
// the identity link is below the required confidence. The block is a
// deliberate terminal state, not an error: access is withheld rather
// than silently degraded.
func (s *WhitelistService) BlockRoleEntry(ctx context.Context, grant types.RoleGrant, required float64) (bool, error) {
	if err := steamid.Validate(grant.GameID); err != nil {
		return false, err
	}

	var mutated bool

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := s.model.GetRoleEntry(ctx, tx, grant.DiscordUserID, grant.GameID, grant.RoleName)
		if err != nil {
			return err
		}

		// An existing block or live grant absorbs duplicate observations.
		if existing != nil && (existing.IsLive() || existing.IsConfidenceBlocked()) {
			return nil
		}

		now := time.Now()
		entry := &types.WhitelistEntry{
			GameID:        grant.GameID,
			DiscordUserID: grant.DiscordUserID,
			Type:          grant.Type,
			Source:        types.EntrySourceRole,
			RoleName:      grant.RoleName,
			DurationValue: grant.DurationValue,
			DurationUnit:  grant.DurationUnit,
			GrantedBy:     types.SystemActor,
			GrantedAt:     now,
			Approved:      false,
			Revoked:       true,
			RevokedBy:     types.SystemActor,
			RevokedAt:     &now,
			RevokedReason: types.RevokeReasonInsufficientConfidence,
			Metadata: map[string]any{
				"actualConfidence":   grant.Confidence,
				"requiredConfidence": required,
			},
		}

		if err := s.model.Insert(ctx, tx, entry); err != nil {
			return err
		}

		mutated = true

		return s.audit.Log(ctx, tx, &types.AuditEntry{
			Action:        types.AuditActionWhitelistBlocked,
			Actor:         types.SystemActor,
			DiscordUserID: grant.DiscordUserID,
			GameID:        grant.GameID,
			After:         entry.Snapshot(),
			Severity:      types.AuditSeverityWarning,
			Metadata: map[string]any{
				"actualConfidence":   grant.Confidence,
				"requiredConfidence": required,
				"roleName":           grant.RoleName,
			},
		})
	})
	if err != nil {
		return false, fmt.Errorf("failed to block role entry: %w", err)
	}

	return mutated, nil
}

// CreateUnlinkedPlaceholder records a role observation for a user with
// no identity link at all. The placeholder stays unrevoked so operators
// can tell "unlinked" apart from "linked but untrusted".
func (s *WhitelistService) CreateUnlinkedPlaceholder(
	ctx context.Context, discordUserID uint64, roleName string, tier types.EntryType,
) (bool, error) {
	var mutated bool

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := s.model.GetUnlinkedPlaceholder(ctx, tx, discordUserID, roleName)
		if err != nil {
			return err
		}

		if existing != nil {
			return nil
		}

		entry := &types.WhitelistEntry{
			DiscordUserID: discordUserID,
			Type:          tier,
			Source:        types.EntrySourceRole,
			RoleName:      roleName,
			GrantedBy:     types.SystemActor,
			GrantedAt:     time.Now(),
			Metadata:      map[string]any{"reason": "no linked identity"},
		}

		if err := s.model.Insert(ctx, tx, entry); err != nil {
			return err
		}

		mutated = true

		return s.audit.Log(ctx, tx, &types.AuditEntry{
			Action:        types.AuditActionWhitelistUnlinked,
			Actor:         types.SystemActor,
			DiscordUserID: discordUserID,
			After:         entry.Snapshot(),
			Severity:      types.AuditSeverityWarning,
			Metadata:      map[string]any{"roleName": roleName},
		})
	})
	if err != nil {
		return false, fmt.Errorf("failed to create unlinked placeholder: %w", err)
	}

	return mutated, nil
}

// RevokeRoleEntries revokes the user's role-sourced entries matching
// the removed role. Entries another user earned on the same game
// identity, and manual, donation and import entries, are never touched
// by this path. Returns the game identity of each revoked entry, with
// one audit record per distinct identity.
func (s *WhitelistService) RevokeRoleEntries(
	ctx context.Context, discordUserID uint64, roleName string,
) ([]string, error) {
	var affected []string

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error

		affected, err = s.model.RevokeRoleEntries(
			ctx, tx, discordUserID, roleName, types.SystemActor, types.RevokeReasonRoleRemoved,
		)
		if err != nil {
			return err
		}

		counts := make(map[string]int, len(affected))
		for _, gameID := range affected {
			counts[gameID]++
		}

		for gameID, count := range counts {
			err := s.audit.Log(ctx, tx, &types.AuditEntry{
				Action:        types.AuditActionWhitelistRevoked,
				Actor:         types.SystemActor,
				DiscordUserID: discordUserID,
				GameID:        gameID,
				Severity:      types.AuditSeverityInfo,
				Metadata: map[string]any{
					"roleName":     roleName,
					"reason":       types.RevokeReasonRoleRemoved,
					"revokedCount": count,
				},
			})
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to revoke role entries: %w", err)
	}

	return affected, nil
}

// RevokeDeparture revokes every role-sourced entry of a user who left
// the community and writes one audit entry summarizing the batch.
// Entries from other sources survive.
func (s *WhitelistService) RevokeDeparture(
	ctx context.Context, discordUserID uint64,
) ([]string, error) {
	var affected []string

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error

		affected, err = s.model.RevokeAllRoleEntriesForUser(
			ctx, tx, discordUserID, types.SystemActor, types.RevokeReasonDeparture,
		)
		if err != nil {
			return err
		}

		if len(affected) == 0 {
			return nil
		}

		return s.audit.Log(ctx, tx, &types.AuditEntry{
			Action:        types.AuditActionDepartureRevocation,
			Actor:         types.SystemActor,
			DiscordUserID: discordUserID,
			Severity:      types.AuditSeverityInfo,
			Metadata: map[string]any{
				"batchId":      uuid.NewString(),
				"gameIds":      affected,
				"revokedCount": len(affected),
				"reason":       types.RevokeReasonDeparture,
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to revoke departed user entries: %w", err)
	}

	return affected, nil
}

// BlockedRoleEntries returns the unapproved role entries a confidence
// upgrade on (gameID, discordUserID) could promote.
func (s *WhitelistService) BlockedRoleEntries(
	ctx context.Context, gameID string, discordUserID uint64,
) ([]*types.WhitelistEntry, error) {
	return s.model.GetBlockedRoleEntries(ctx, gameID, discordUserID)
}

// UnblockEntry approves a previously blocked entry after revalidation
// confirmed the user still holds the role and the link is now trusted.
func (s *WhitelistService) UnblockEntry(
	ctx context.Context, entry *types.WhitelistEntry, gameID string, metadata map[string]any,
) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.model.Approve(ctx, tx, entry.ID, gameID); err != nil {
			return err
		}

		after := *entry
		after.GameID = gameID
		after.Approved = true
		after.Revoked = false
		after.RevokedReason = ""

		return s.audit.Log(ctx, tx, &types.AuditEntry{
			Action:        types.AuditActionWhitelistUnblocked,
			Actor:         types.SystemActor,
			DiscordUserID: entry.DiscordUserID,
			GameID:        gameID,
			Before:        entry.Snapshot(),
			After:         after.Snapshot(),
			Severity:      types.AuditSeverityInfo,
			Metadata:      metadata,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to unblock entry: %w", err)
	}

	return nil
}

// CreateManualEntry records an operator-issued grant outside the role
// sync path.
func (s *WhitelistService) CreateManualEntry(ctx context.Context, entry *types.WhitelistEntry) error {
	if err := steamid.Validate(entry.GameID); err != nil {
		return err
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if entry.GrantedAt.IsZero() {
			entry.GrantedAt = time.Now()
		}

		entry.Approved = true

		if err := s.model.Insert(ctx, tx, entry); err != nil {
			return err
		}

		return s.audit.Log(ctx, tx, &types.AuditEntry{
			Action:        types.AuditActionWhitelistGranted,
			Actor:         entry.GrantedBy,
			DiscordUserID: entry.DiscordUserID,
			GameID:        entry.GameID,
			After:         entry.Snapshot(),
			Severity:      types.AuditSeverityInfo,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to create manual entry: %w", err)
	}

	return nil
}

// ExtendEntry repairs an entry's duration through the explicit stacking
// repair path, the only sanctioned way to change a duration after grant.
func (s *WhitelistService) ExtendEntry(
	ctx context.Context, id int64, value int64, unit types.DurationUnit, actor string,
) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := s.model.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}

		if err := s.model.Extend(ctx, tx, id, value, unit); err != nil {
			return err
		}

		after := *existing
		after.DurationValue = &value
		after.DurationUnit = &unit

		return s.audit.Log(ctx, tx, &types.AuditEntry{
			Action:        types.AuditActionWhitelistExtended,
			Actor:         actor,
			DiscordUserID: existing.DiscordUserID,
			GameID:        existing.GameID,
			Before:        existing.Snapshot(),
			After:         after.Snapshot(),
			Severity:      types.AuditSeverityInfo,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to extend entry: %w", err)
	}

	return nil
}

// RevokeEntry revokes a single entry by explicit operator action.
func (s *WhitelistService) RevokeEntry(ctx context.Context, id int64, actor, reason string) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := s.model.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}

		if err := s.model.Revoke(ctx, tx, id, actor, reason); err != nil {
			return err
		}

		after := *existing
		after.Revoked = true
		after.RevokedReason = reason

		return s.audit.Log(ctx, tx, &types.AuditEntry{
			Action:        types.AuditActionWhitelistRevoked,
			Actor:         actor,
			DiscordUserID: existing.DiscordUserID,
			GameID:        existing.GameID,
			Before:        existing.Snapshot(),
			After:         after.Snapshot(),
			Severity:      types.AuditSeverityInfo,
			Metadata:      map[string]any{"reason": reason},
		})
	})
	if err != nil {
		return fmt.Errorf("failed to revoke entry: %w", err)
	}

	return nil
}
