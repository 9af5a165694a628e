// Package sync turns role-membership observations into whitelist ledger
// mutations under the security policy. It never grants access on a
// stale or insufficiently trusted identity link.
package sync

import (
	"context"

	"github.com/wardenhq/warden/internal/database/types"
)

// Links is the identity link store consumed by the reconcilers.
type Links interface {
	// HighestConfidence returns the user's most trusted link, or nil
	// when the user has no links at all.
	HighestConfidence(ctx context.Context, discordUserID uint64) (*types.IdentityLink, error)
}

// Ledger is the whitelist ledger surface consumed by the reconcilers.
// Every mutating call is transactional and writes its own audit trail.
type Ledger interface {
	GrantRoleEntry(ctx context.Context, grant types.RoleGrant) (bool, error)
	BlockRoleEntry(ctx context.Context, grant types.RoleGrant, required float64) (bool, error)
	CreateUnlinkedPlaceholder(ctx context.Context, discordUserID uint64, roleName string, tier types.EntryType) (bool, error)
	RevokeRoleEntries(ctx context.Context, discordUserID uint64, roleName string) ([]string, error)
	RevokeDeparture(ctx context.Context, discordUserID uint64) ([]string, error)
	BlockedRoleEntries(ctx context.Context, gameID string, discordUserID uint64) ([]*types.WhitelistEntry, error)
	UnblockEntry(ctx context.Context, entry *types.WhitelistEntry, gameID string, metadata map[string]any) error
}

// Invalidator signals read-side caches after committed mutations so no
// stale privilege decision survives.
type Invalidator interface {
	InvalidateGame(ctx context.Context, gameID string)
	InvalidateUser(ctx context.Context, discordUserID uint64)
}

// Observation is one role-membership change delivered by the
// observation feed. Delivery is at-least-once; the reconciler absorbs
// duplicates.
type Observation struct {
	DiscordUserID uint64
	Role          string
	Added         bool
}
