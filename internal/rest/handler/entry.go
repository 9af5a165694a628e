package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/uptrace/bunrouter"
	"github.com/wardenhq/warden/internal/database"
	dbtypes "github.com/wardenhq/warden/internal/database/types"
	restTypes "github.com/wardenhq/warden/internal/rest/types"
	"github.com/wardenhq/warden/internal/steamid"
	syncer "github.com/wardenhq/warden/internal/sync"
	"go.uber.org/zap"
)

// EntryHandler handles operator-facing ledger mutations: grants outside
// the role sync path, duration repairs and explicit revocations.
type EntryHandler struct {
	db          database.Client
	invalidator syncer.Invalidator
	logger      *zap.Logger
}

// NewEntryHandler creates a new entry handler.
func NewEntryHandler(db database.Client, invalidator syncer.Invalidator, logger *zap.Logger) *EntryHandler {
	return &EntryHandler{
		db:          db,
		invalidator: invalidator,
		logger:      logger,
	}
}

// CreateEntry records an operator-issued grant.
func (h *EntryHandler) CreateEntry(w http.ResponseWriter, req bunrouter.Request) error {
	var body restTypes.CreateEntryRequest
	if err := sonic.ConfigDefault.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return nil
	}

	if body.GrantedBy == "" || body.Source == dbtypes.EntrySourceRole {
		http.Error(w, "Invalid entry request", http.StatusBadRequest)
		return nil
	}

	entry := &dbtypes.WhitelistEntry{
		GameID:        body.GameID,
		DiscordUserID: body.DiscordUserID,
		Type:          body.Type,
		Source:        body.Source,
		DurationValue: body.DurationValue,
		DurationUnit:  body.DurationUnit,
		GrantedBy:     body.GrantedBy,
	}

	if err := h.db.Service().Whitelist().CreateManualEntry(req.Context(), entry); err != nil {
		if errors.Is(err, steamid.ErrInvalidGameID) {
			http.Error(w, "Invalid game id", http.StatusBadRequest)
			return nil
		}

		h.logger.Error("Failed to create entry", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return nil
	}

	h.invalidator.InvalidateGame(req.Context(), entry.GameID)

	w.WriteHeader(http.StatusCreated)

	return bunrouter.JSON(w, restTypes.EntryResponse{ID: entry.ID})
}

// ExtendEntry repairs an entry's duration.
func (h *EntryHandler) ExtendEntry(w http.ResponseWriter, req bunrouter.Request) error {
	id, err := strconv.ParseInt(req.Param("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid entry id", http.StatusBadRequest)
		return nil
	}

	var body restTypes.ExtendEntryRequest
	if err := sonic.ConfigDefault.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return nil
	}

	if body.Actor == "" || body.DurationValue < 0 {
		http.Error(w, "Invalid extend request", http.StatusBadRequest)
		return nil
	}

	err = h.db.Service().Whitelist().ExtendEntry(
		req.Context(), id, body.DurationValue, body.DurationUnit, body.Actor)
	if err != nil {
		if errors.Is(err, dbtypes.ErrEntryNotFound) {
			http.Error(w, "Entry not found", http.StatusNotFound)
			return nil
		}

		h.logger.Error("Failed to extend entry", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return nil
	}

	h.invalidateEntry(req, id)

	w.WriteHeader(http.StatusNoContent)

	return nil
}

// RevokeEntry revokes a single entry by explicit operator action.
func (h *EntryHandler) RevokeEntry(w http.ResponseWriter, req bunrouter.Request) error {
	id, err := strconv.ParseInt(req.Param("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid entry id", http.StatusBadRequest)
		return nil
	}

	var body restTypes.RevokeEntryRequest
	if err := sonic.ConfigDefault.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return nil
	}

	if body.Actor == "" || body.Reason == "" {
		http.Error(w, "Invalid revoke request", http.StatusBadRequest)
		return nil
	}

	if err := h.db.Service().Whitelist().RevokeEntry(req.Context(), id, body.Actor, body.Reason); err != nil {
		if errors.Is(err, dbtypes.ErrEntryNotFound) {
			http.Error(w, "Entry not found", http.StatusNotFound)
			return nil
		}

		h.logger.Error("Failed to revoke entry", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return nil
	}

	h.invalidateEntry(req, id)

	w.WriteHeader(http.StatusNoContent)

	return nil
}

func (h *EntryHandler) invalidateEntry(req bunrouter.Request, id int64) {
	entry, err := h.db.Model().Whitelist().GetByID(req.Context(), h.db.DB(), id)
	if err != nil || entry.GameID == "" {
		return
	}

	h.invalidator.InvalidateGame(req.Context(), entry.GameID)
}
