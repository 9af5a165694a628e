package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/uptrace/bunrouter"
	"github.com/wardenhq/warden/internal/database"
	"github.com/wardenhq/warden/internal/database/service"
	dbtypes "github.com/wardenhq/warden/internal/database/types"
	"github.com/wardenhq/warden/internal/membership"
	restTypes "github.com/wardenhq/warden/internal/rest/types"
	"github.com/wardenhq/warden/internal/steamid"
	syncer "github.com/wardenhq/warden/internal/sync"
	"go.uber.org/zap"
)

// LinkHandler handles identity link mutation endpoints. Link writes are
// the trigger for the follow-up passes: a freshly created link replays
// the user's current roles through the reconciler, and any confidence
// increase re-evaluates security-blocked entries.
type LinkHandler struct {
	db          database.Client
	membership  membership.Source
	reconciler  *syncer.Reconciler
	revalidator *syncer.Revalidator
	logger      *zap.Logger
}

// NewLinkHandler creates a new link handler.
func NewLinkHandler(
	db database.Client,
	source membership.Source,
	reconciler *syncer.Reconciler,
	revalidator *syncer.Revalidator,
	logger *zap.Logger,
) *LinkHandler {
	return &LinkHandler{
		db:          db,
		membership:  source,
		reconciler:  reconciler,
		revalidator: revalidator,
		logger:      logger,
	}
}

// VerifyLink establishes a verified link and replays the user's current
// roles so grants held back by the missing link are applied.
func (h *LinkHandler) VerifyLink(w http.ResponseWriter, req bunrouter.Request) error {
	var body restTypes.VerifyLinkRequest
	if err := sonic.ConfigDefault.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return nil
	}

	if body.DiscordUserID == 0 {
		http.Error(w, "Missing discord user id", http.StatusBadRequest)
		return nil
	}

	source := dbtypes.LinkSourceSelfVerified
	if body.Admin {
		source = dbtypes.LinkSourceAdminManual
	}

	created, link, err := h.db.Service().Link().UpsertVerifiedLink(
		req.Context(), body.DiscordUserID, body.GameID, source)
	if err != nil {
		if errors.Is(err, steamid.ErrInvalidGameID) || errors.Is(err, service.ErrUnverifiedSource) {
			http.Error(w, "Invalid link request", http.StatusBadRequest)
			return nil
		}

		h.logger.Error("Failed to upsert verified link", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return nil
	}

	// Placeholder and blocked entries predating the link are promoted
	// first, then every currently held role is replayed as a fresh
	// observation. Follow-up failures do not fail the verification; the
	// link itself is already committed.
	if err := h.revalidator.HandleConfidenceIncrease(req.Context(), link); err != nil {
		h.logger.Error("Failed to revalidate blocked entries after verification",
			zap.Uint64("discordUserID", body.DiscordUserID),
			zap.Error(err))
	}

	if created {
		h.replayRoles(req, body.DiscordUserID)
	}

	return bunrouter.JSON(w, restTypes.LinkResponse{
		DiscordUserID: link.DiscordUserID,
		GameID:        link.GameID,
		Confidence:    link.Confidence,
		Source:        string(link.Source),
		IsPrimary:     link.IsPrimary,
		Created:       created,
	})
}

// RecordConfidence applies a confidence observation to a link and runs
// the blocked-entry revalidation when confidence rose.
func (h *LinkHandler) RecordConfidence(w http.ResponseWriter, req bunrouter.Request) error {
	var body restTypes.ConfidenceChangeRequest
	if err := sonic.ConfigDefault.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return nil
	}

	if body.DiscordUserID == 0 || body.Confidence < 0 || body.Confidence > 1 {
		http.Error(w, "Invalid confidence request", http.StatusBadRequest)
		return nil
	}

	increased, err := h.db.Service().Link().RecordConfidenceChange(
		req.Context(), body.DiscordUserID, body.GameID, body.Confidence, dbtypes.LinkSource(body.Source))
	if err != nil {
		if errors.Is(err, steamid.ErrInvalidGameID) {
			http.Error(w, "Invalid game id", http.StatusBadRequest)
			return nil
		}

		h.logger.Error("Failed to record confidence change", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return nil
	}

	if increased != nil {
		if err := h.revalidator.HandleConfidenceIncrease(req.Context(), increased); err != nil {
			h.logger.Error("Failed to revalidate blocked entries after confidence increase",
				zap.Uint64("discordUserID", body.DiscordUserID),
				zap.Error(err))
		}
	}

	w.WriteHeader(http.StatusNoContent)

	return nil
}

// SetConfidence overrides a link's confidence by explicit admin action.
// This is the only path that may lower confidence. Only a raised
// confidence goes through the fail-closed revalidation; lowering can
// never unblock anything.
func (h *LinkHandler) SetConfidence(w http.ResponseWriter, req bunrouter.Request) error {
	var body restTypes.AdminConfidenceRequest
	if err := sonic.ConfigDefault.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return nil
	}

	if body.Actor == "" || body.Confidence < 0 || body.Confidence > 1 {
		http.Error(w, "Invalid confidence request", http.StatusBadRequest)
		return nil
	}

	updated, increased, err := h.db.Service().Link().AdminSetConfidence(
		req.Context(), body.DiscordUserID, body.GameID, body.Confidence, body.Actor)
	if err != nil {
		switch {
		case errors.Is(err, steamid.ErrInvalidGameID):
			http.Error(w, "Invalid game id", http.StatusBadRequest)
		case errors.Is(err, dbtypes.ErrLinkNotFound):
			http.Error(w, "Link not found", http.StatusNotFound)
		default:
			h.logger.Error("Failed to set link confidence", zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}

		return nil
	}

	if increased {
		if err := h.revalidator.HandleConfidenceIncrease(req.Context(), updated); err != nil {
			h.logger.Error("Failed to revalidate blocked entries after admin override",
				zap.Uint64("discordUserID", body.DiscordUserID),
				zap.Error(err))
		}
	}

	w.WriteHeader(http.StatusNoContent)

	return nil
}

// CreateExtracted records a link discovered through text extraction at
// its low initial confidence. Existing links are left untouched.
func (h *LinkHandler) CreateExtracted(w http.ResponseWriter, req bunrouter.Request) error {
	var body restTypes.ExtractedLinkRequest
	if err := sonic.ConfigDefault.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return nil
	}

	if body.DiscordUserID == 0 {
		http.Error(w, "Missing discord user id", http.StatusBadRequest)
		return nil
	}

	link, err := h.db.Service().Link().CreateExtractedLink(req.Context(), body.DiscordUserID, body.GameID)
	if err != nil {
		if errors.Is(err, steamid.ErrInvalidGameID) {
			http.Error(w, "Invalid game id", http.StatusBadRequest)
			return nil
		}

		h.logger.Error("Failed to create extracted link", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return nil
	}

	return bunrouter.JSON(w, restTypes.LinkResponse{
		DiscordUserID: link.DiscordUserID,
		GameID:        link.GameID,
		Confidence:    link.Confidence,
		Source:        string(link.Source),
		IsPrimary:     link.IsPrimary,
	})
}

// ImportLinks bulk-creates links from an external system at import
// confidence. Existing links are skipped, never overwritten.
func (h *LinkHandler) ImportLinks(w http.ResponseWriter, req bunrouter.Request) error {
	var body restTypes.ImportLinksRequest
	if err := sonic.ConfigDefault.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return nil
	}

	if len(body.Links) == 0 {
		http.Error(w, "No links to import", http.StatusBadRequest)
		return nil
	}

	created, err := h.db.Service().Link().ImportLinks(req.Context(), body.Links)
	if err != nil {
		if errors.Is(err, steamid.ErrInvalidGameID) {
			http.Error(w, "Invalid game id in import", http.StatusBadRequest)
			return nil
		}

		h.logger.Error("Failed to import links", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return nil
	}

	return bunrouter.JSON(w, restTypes.ImportLinksResponse{
		Total:   len(body.Links),
		Created: created,
	})
}

// GetUserLinks returns all links of a Discord user, most trusted first.
func (h *LinkHandler) GetUserLinks(w http.ResponseWriter, req bunrouter.Request) error {
	discordUserID, err := strconv.ParseUint(req.Param("discordUserId"), 10, 64)
	if err != nil || discordUserID == 0 {
		http.Error(w, "Invalid discord user id", http.StatusBadRequest)
		return nil
	}

	links, err := h.db.Service().Link().ForUser(req.Context(), discordUserID)
	if err != nil {
		h.logger.Error("Failed to get user links", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return nil
	}

	resp := make([]restTypes.LinkResponse, 0, len(links))
	for _, link := range links {
		resp = append(resp, restTypes.LinkResponse{
			DiscordUserID: link.DiscordUserID,
			GameID:        link.GameID,
			Confidence:    link.Confidence,
			Source:        string(link.Source),
			IsPrimary:     link.IsPrimary,
		})
	}

	return bunrouter.JSON(w, resp)
}

// GetPrimaryLink returns the primary link claiming a game identity.
func (h *LinkHandler) GetPrimaryLink(w http.ResponseWriter, req bunrouter.Request) error {
	link, err := h.db.Service().Link().PrimaryForGame(req.Context(), req.Param("gameId"))
	if err != nil {
		if errors.Is(err, dbtypes.ErrLinkNotFound) {
			http.Error(w, "No primary link", http.StatusNotFound)
			return nil
		}

		h.logger.Error("Failed to get primary link", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return nil
	}

	return bunrouter.JSON(w, restTypes.LinkResponse{
		DiscordUserID: link.DiscordUserID,
		GameID:        link.GameID,
		Confidence:    link.Confidence,
		Source:        string(link.Source),
		IsPrimary:     link.IsPrimary,
	})
}

func (h *LinkHandler) replayRoles(req bunrouter.Request, discordUserID uint64) {
	roles, found, err := h.membership.CurrentRoles(req.Context(), discordUserID)
	if err != nil || !found {
		h.logger.Warn("Could not replay roles after link creation",
			zap.Uint64("discordUserID", discordUserID),
			zap.Bool("found", found),
			zap.Error(err))

		return
	}

	for _, role := range roles {
		obs := syncer.Observation{DiscordUserID: discordUserID, Role: role, Added: true}
		if err := h.reconciler.HandleObservation(req.Context(), obs); err != nil {
			h.logger.Error("Failed to replay role observation",
				zap.Uint64("discordUserID", discordUserID),
				zap.String("role", role),
				zap.Error(err))
		}
	}
}
