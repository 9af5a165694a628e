package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/wardenhq/warden/internal/database/types"
	"go.uber.org/zap"
)

// Reconciler is the single entry point for role-membership
// observations. Each observation becomes at most one ledger mutation:
// an approved grant for a trusted link, a security block for an
// untrusted one, an operator-facing placeholder when no link exists, or
// a targeted revocation when the role was removed.
type Reconciler struct {
	links       Links
	ledger      Ledger
	invalidator Invalidator
	policy      Policy
	debouncer   *Debouncer
	logger      *zap.Logger
}

// NewReconciler creates a role-sync reconciler.
func NewReconciler(
	links Links,
	ledger Ledger,
	invalidator Invalidator,
	policy Policy,
	debounceWindow time.Duration,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		links:       links,
		ledger:      ledger,
		invalidator: invalidator,
		policy:      policy,
		debouncer:   NewDebouncer(debounceWindow),
		logger:      logger.Named("role_sync"),
	}
}

// HandleObservation reconciles one role observation. All observations
// for one (user, role) pair serialize on the same key so an add and a
// remove can never interleave their multi-statement passes; only
// repeats in the same direction are collapsed. A collapsed duplicate
// skips the ledger pass but still emits a cache invalidation so the
// read side can never get stuck on a decision the winner of the burst
// just changed.
func (r *Reconciler) HandleObservation(ctx context.Context, obs Observation) error {
	rule, ok := r.policy.Rule(obs.Role)
	if !ok {
		r.logger.Debug("Ignoring observation for unmanaged role",
			zap.Uint64("discordUserID", obs.DiscordUserID),
			zap.String("role", obs.Role))

		return nil
	}

	key := fmt.Sprintf("%d:%s", obs.DiscordUserID, obs.Role)

	variant := "removed"
	if obs.Added {
		variant = "added"
	}

	ran, err := r.debouncer.Run(key, variant, func() error {
		return r.reconcile(ctx, obs, rule)
	})
	if !ran {
		r.invalidator.InvalidateUser(ctx, obs.DiscordUserID)
		r.logger.Debug("Collapsed duplicate observation",
			zap.Uint64("discordUserID", obs.DiscordUserID),
			zap.String("role", obs.Role),
			zap.Bool("added", obs.Added))
	}

	return err
}

func (r *Reconciler) reconcile(ctx context.Context, obs Observation, rule RoleRule) error {
	if !obs.Added {
		return r.roleRemoved(ctx, obs)
	}

	link, err := r.links.HighestConfidence(ctx, obs.DiscordUserID)
	if err != nil {
		return fmt.Errorf("failed to look up identity link: %w", err)
	}

	if link == nil {
		created, err := r.ledger.CreateUnlinkedPlaceholder(ctx, obs.DiscordUserID, obs.Role, rule.Tier)
		if err != nil {
			return err
		}

		if created {
			r.logger.Warn("Role observation without linked identity",
				zap.Uint64("discordUserID", obs.DiscordUserID),
				zap.String("role", obs.Role))
		}

		r.invalidator.InvalidateUser(ctx, obs.DiscordUserID)

		return nil
	}

	grant := types.RoleGrant{
		DiscordUserID: obs.DiscordUserID,
		GameID:        link.GameID,
		RoleName:      obs.Role,
		Type:          rule.Tier,
		DurationValue: rule.DurationValue,
		DurationUnit:  rule.DurationUnit,
		Confidence:    link.Confidence,
	}

	required := r.policy.Threshold(rule.Tier)
	if link.MeetsThreshold(required) {
		if _, err := r.ledger.GrantRoleEntry(ctx, grant); err != nil {
			return err
		}
	} else {
		created, err := r.ledger.BlockRoleEntry(ctx, grant, required)
		if err != nil {
			return err
		}

		if created {
			r.logger.Warn("Blocked role grant on untrusted link",
				zap.Uint64("discordUserID", obs.DiscordUserID),
				zap.String("gameID", link.GameID),
				zap.String("role", obs.Role),
				zap.Float64("confidence", link.Confidence),
				zap.Float64("required", required))
		}
	}

	r.invalidator.InvalidateGame(ctx, link.GameID)

	return nil
}

// roleRemoved revokes this user's role-sourced entries matching the
// removed role, including any unlinked placeholder it left behind.
// Entries justified by another user's roles and manual, donation and
// import entries are never touched.
func (r *Reconciler) roleRemoved(ctx context.Context, obs Observation) error {
	affected, err := r.ledger.RevokeRoleEntries(ctx, obs.DiscordUserID, obs.Role)
	if err != nil {
		return err
	}

	for _, gameID := range affected {
		if gameID == "" {
			r.invalidator.InvalidateUser(ctx, obs.DiscordUserID)
			continue
		}

		r.invalidator.InvalidateGame(ctx, gameID)
	}

	if len(affected) > 0 {
		r.logger.Info("Revoked role-sourced entries",
			zap.Uint64("discordUserID", obs.DiscordUserID),
			zap.String("role", obs.Role),
			zap.Strings("gameIDs", affected))
	}

	return nil
}
