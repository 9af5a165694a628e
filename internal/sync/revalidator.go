package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/wardenhq/warden/internal/database/types"
	"github.com/wardenhq/warden/internal/membership"
	"go.uber.org/zap"
)

// Revalidator re-evaluates security-blocked ledger entries after an
// identity link's confidence strictly increased. An entry is only
// promoted when the membership source confirms, live, that the user
// still holds the role it was granted for; any lookup failure, timeout
// or absence leaves the entry blocked. This is fail-safe-closed so a
// stale placeholder can never be silently promoted after the triggering
// role was removed or the user departed.
type Revalidator struct {
	ledger        Ledger
	membership    membership.Source
	invalidator   Invalidator
	policy        Policy
	lookupTimeout time.Duration
	logger        *zap.Logger
}

// NewRevalidator creates a confidence-upgrade revalidator.
func NewRevalidator(
	ledger Ledger,
	source membership.Source,
	invalidator Invalidator,
	policy Policy,
	lookupTimeout time.Duration,
	logger *zap.Logger,
) *Revalidator {
	return &Revalidator{
		ledger:        ledger,
		membership:    source,
		invalidator:   invalidator,
		policy:        policy,
		lookupTimeout: lookupTimeout,
		logger:        logger.Named("revalidator"),
	}
}

// HandleConfidenceIncrease re-evaluates blocked entries for the link
// whose confidence just rose.
func (v *Revalidator) HandleConfidenceIncrease(ctx context.Context, link *types.IdentityLink) error {
	entries, err := v.ledger.BlockedRoleEntries(ctx, link.GameID, link.DiscordUserID)
	if err != nil {
		return fmt.Errorf("failed to fetch blocked entries: %w", err)
	}

	if len(entries) == 0 {
		return nil
	}

	// Never trust a cached role set here; only a live, time-bounded
	// lookup can confirm the user still holds the role.
	lookupCtx, cancel := context.WithTimeout(ctx, v.lookupTimeout)
	defer cancel()

	roles, found, err := v.membership.CurrentRoles(lookupCtx, link.DiscordUserID)
	if err != nil || !found {
		v.logger.Warn("Membership not confirmed, leaving entries blocked",
			zap.Uint64("discordUserID", link.DiscordUserID),
			zap.String("gameID", link.GameID),
			zap.Int("blockedEntries", len(entries)),
			zap.Bool("found", found),
			zap.Error(err))

		return nil
	}

	roleSet := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	unblocked := false

	for _, entry := range entries {
		if _, holds := roleSet[entry.RoleName]; !holds {
			v.logger.Debug("Skipping blocked entry, role no longer held",
				zap.Int64("entryID", entry.ID),
				zap.String("role", entry.RoleName))

			continue
		}

		rule, ok := v.policy.Rule(entry.RoleName)
		if !ok {
			continue
		}

		required := v.policy.Threshold(rule.Tier)
		if !link.MeetsThreshold(required) {
			v.logger.Debug("Skipping blocked entry, confidence still below threshold",
				zap.Int64("entryID", entry.ID),
				zap.Float64("confidence", link.Confidence),
				zap.Float64("required", required))

			continue
		}

		err := v.ledger.UnblockEntry(ctx, entry, link.GameID, map[string]any{
			"confidence":         link.Confidence,
			"requiredConfidence": required,
			"roleName":           entry.RoleName,
		})
		if err != nil {
			return err
		}

		unblocked = true

		v.logger.Info("Unblocked entry after confidence upgrade",
			zap.Int64("entryID", entry.ID),
			zap.Uint64("discordUserID", link.DiscordUserID),
			zap.String("gameID", link.GameID),
			zap.String("role", entry.RoleName))
	}

	if unblocked {
		v.invalidator.InvalidateGame(ctx, link.GameID)
	}

	return nil
}
