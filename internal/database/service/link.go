package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/wardenhq/warden/internal/database/models"
	"github.com/wardenhq/warden/internal/database/types"
	"github.com/wardenhq/warden/internal/steamid"
	"go.uber.org/zap"
)

var ErrUnverifiedSource = errors.New("source does not qualify as verified")

// LinkService handles identity link business logic. Confidence may only
// rise through re-verification; the single explicit exception is
// AdminSetConfidence, which always leaves an audit trail.
type LinkService struct {
	db     *bun.DB
	model  *models.LinkModel
	audit  *models.AuditModel
	logger *zap.Logger
}

// NewLink creates a new link service.
func NewLink(db *bun.DB, model *models.LinkModel, audit *models.AuditModel, logger *zap.Logger) *LinkService {
	return &LinkService{
		db:     db,
		model:  model,
		audit:  audit,
		logger: logger.Named("link_service"),
	}
}

// UpsertVerifiedLink writes a fully trusted link for a verified source,
// demotes the user's other primary links and reports whether this was a
// first-time creation so callers can trigger a role re-sync.
func (s *LinkService) UpsertVerifiedLink(
	ctx context.Context, discordUserID uint64, gameID string, source types.LinkSource,
) (bool, *types.IdentityLink, error) {
	if err := steamid.Validate(gameID); err != nil {
		return false, nil, err
	}

	if !source.Verified() {
		return false, nil, fmt.Errorf("%w: %s", ErrUnverifiedSource, source)
	}

	var (
		created bool
		link    *types.IdentityLink
	)

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := s.model.Get(ctx, tx, discordUserID, gameID)
		if err != nil && !errors.Is(err, types.ErrLinkNotFound) {
			return err
		}

		created = existing == nil

		if err := s.model.DemoteOtherPrimaries(ctx, tx, discordUserID, gameID); err != nil {
			return err
		}

		// A game identity can only have one primary claimant; a second
		// user verifying the same identity takes it over.
		if err := s.model.DemoteOtherPrimariesForGame(ctx, tx, discordUserID, gameID); err != nil {
			return err
		}

		link = &types.IdentityLink{
			DiscordUserID: discordUserID,
			GameID:        gameID,
			Confidence:    1.0,
			Source:        source,
			IsPrimary:     true,
			CreatedAt:     time.Now(),
		}
		if existing != nil {
			link.CreatedAt = existing.CreatedAt
		}

		if err := s.model.Upsert(ctx, tx, link); err != nil {
			return err
		}

		// Creation is silent; only a strict confidence increase on an
		// existing link is audit-worthy.
		if audit := confidenceAudit(existing, link, string(source)); audit != nil {
			return s.audit.Log(ctx, tx, audit)
		}

		return nil
	})
	if err != nil {
		return false, nil, fmt.Errorf("failed to upsert verified link: %w", err)
	}

	s.logger.Debug("Upserted verified link",
		zap.Uint64("discordUserID", discordUserID),
		zap.String("gameID", gameID),
		zap.Bool("created", created))

	return created, link, nil
}

// RecordConfidenceChange applies a new confidence observation to an
// existing link. Confidence never silently drops: lower or equal values
// are a no-op, a missing link is created without audit, and only a
// strict increase produces an audit entry. Returns the updated link when
// confidence rose so callers can run the blocked-entry revalidation.
func (s *LinkService) RecordConfidenceChange(
	ctx context.Context, discordUserID uint64, gameID string, confidence float64, source types.LinkSource,
) (*types.IdentityLink, error) {
	if err := steamid.Validate(gameID); err != nil {
		return nil, err
	}

	var increased *types.IdentityLink

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := s.model.Get(ctx, tx, discordUserID, gameID)
		if err != nil {
			if !errors.Is(err, types.ErrLinkNotFound) {
				return err
			}

			link := &types.IdentityLink{
				DiscordUserID: discordUserID,
				GameID:        gameID,
				Confidence:    confidence,
				Source:        source,
				CreatedAt:     time.Now(),
			}

			return s.model.Upsert(ctx, tx, link)
		}

		if confidence <= existing.Confidence {
			return nil
		}

		if err := s.model.UpdateConfidence(ctx, tx, discordUserID, gameID, confidence, source); err != nil {
			return err
		}

		updated := *existing
		updated.Confidence = confidence
		updated.Source = source
		increased = &updated

		return s.audit.Log(ctx, tx, confidenceAudit(existing, &updated, string(source)))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record confidence change: %w", err)
	}

	return increased, nil
}

// AdminSetConfidence overrides a link's confidence by explicit admin
// action. Unlike RecordConfidenceChange this may lower confidence, and
// it always writes an audit entry. The increased flag reports whether
// confidence strictly rose, so callers run the blocked-entry
// revalidation only when new trust could actually unblock something.
func (s *LinkService) AdminSetConfidence(
	ctx context.Context, discordUserID uint64, gameID string, confidence float64, actor string,
) (*types.IdentityLink, bool, error) {
	if err := steamid.Validate(gameID); err != nil {
		return nil, false, err
	}

	var (
		updated   *types.IdentityLink
		increased bool
	)

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := s.model.Get(ctx, tx, discordUserID, gameID)
		if err != nil {
			return err
		}

		if err := s.model.UpdateConfidence(ctx, tx, discordUserID, gameID, confidence, existing.Source); err != nil {
			return err
		}

		link := *existing
		link.Confidence = confidence
		updated = &link
		increased = confidence > existing.Confidence

		severity := types.AuditSeverityInfo
		if confidence < existing.Confidence {
			severity = types.AuditSeverityWarning
		}

		return s.audit.Log(ctx, tx, &types.AuditEntry{
			Action:        types.AuditActionConfidenceAdminSet,
			Actor:         actor,
			DiscordUserID: discordUserID,
			GameID:        gameID,
			Before:        map[string]any{"confidence": existing.Confidence, "source": existing.Source},
			After:         map[string]any{"confidence": confidence, "source": existing.Source},
			Severity:      severity,
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to set link confidence: %w", err)
	}

	return updated, increased, nil
}

// CreateExtractedLink records a link discovered through text extraction
// at its low initial confidence. Existing links are left untouched.
func (s *LinkService) CreateExtractedLink(
	ctx context.Context, discordUserID uint64, gameID string,
) (*types.IdentityLink, error) {
	if err := steamid.Validate(gameID); err != nil {
		return nil, err
	}

	link := new(types.IdentityLink)

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := s.model.Get(ctx, tx, discordUserID, gameID)
		if err != nil && !errors.Is(err, types.ErrLinkNotFound) {
			return err
		}

		if existing != nil {
			*link = *existing
			return nil
		}

		*link = types.IdentityLink{
			DiscordUserID: discordUserID,
			GameID:        gameID,
			Confidence:    types.LinkSourceTextExtracted.InitialConfidence(),
			Source:        types.LinkSourceTextExtracted,
			CreatedAt:     time.Now(),
		}

		return s.model.Upsert(ctx, tx, link)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create extracted link: %w", err)
	}

	return link, nil
}

// ImportLinks bulk-creates links from an external system at import
// confidence. Pairs whose link already exists are skipped so an import
// can never lower the confidence of a better-provenance link. Returns
// how many links were created.
func (s *LinkService) ImportLinks(ctx context.Context, pairs []types.LinkPair) (int, error) {
	for _, pair := range pairs {
		if err := steamid.Validate(pair.GameID); err != nil {
			return 0, fmt.Errorf("pair %d/%s: %w", pair.DiscordUserID, pair.GameID, err)
		}
	}

	var created int

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, pair := range pairs {
			existing, err := s.model.Get(ctx, tx, pair.DiscordUserID, pair.GameID)
			if err != nil && !errors.Is(err, types.ErrLinkNotFound) {
				return err
			}

			if existing != nil {
				continue
			}

			link := &types.IdentityLink{
				DiscordUserID: pair.DiscordUserID,
				GameID:        pair.GameID,
				Confidence:    types.LinkSourceImported.InitialConfidence(),
				Source:        types.LinkSourceImported,
				CreatedAt:     time.Now(),
			}

			if err := s.model.Upsert(ctx, tx, link); err != nil {
				return err
			}

			created++
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to import links: %w", err)
	}

	s.logger.Info("Imported links",
		zap.Int("total", len(pairs)),
		zap.Int("created", created))

	return created, nil
}

// HighestConfidence returns the user's most trusted link, or nil when
// the user has no links.
func (s *LinkService) HighestConfidence(ctx context.Context, discordUserID uint64) (*types.IdentityLink, error) {
	return s.model.GetHighestConfidence(ctx, discordUserID)
}

// ForUser returns all links of a Discord user.
func (s *LinkService) ForUser(ctx context.Context, discordUserID uint64) ([]*types.IdentityLink, error) {
	return s.model.GetForUser(ctx, discordUserID)
}

// PrimaryForGame returns the primary link bound to a game identity.
func (s *LinkService) PrimaryForGame(ctx context.Context, gameID string) (*types.IdentityLink, error) {
	return s.model.GetPrimaryForGame(ctx, gameID)
}

// confidenceAudit builds the audit entry for a confidence transition.
// Returns nil when nothing audit-worthy happened: link creation and
// non-increases are silent.
func confidenceAudit(old, updated *types.IdentityLink, actor string) *types.AuditEntry {
	if old == nil || updated == nil || updated.Confidence <= old.Confidence {
		return nil
	}

	return &types.AuditEntry{
		Action:        types.AuditActionConfidenceIncreased,
		Actor:         actor,
		DiscordUserID: updated.DiscordUserID,
		GameID:        updated.GameID,
		Before:        map[string]any{"confidence": old.Confidence, "source": old.Source},
		After:         map[string]any{"confidence": updated.Confidence, "source": updated.Source},
		Severity:      types.AuditSeverityInfo,
	}
}
