package handler

import (
	"errors"
	"net/http"

	"github.com/uptrace/bunrouter"
	"github.com/wardenhq/warden/internal/database"
	restTypes "github.com/wardenhq/warden/internal/rest/types"
	"github.com/wardenhq/warden/internal/steamid"
	"go.uber.org/zap"
)

// WhitelistHandler handles whitelist read endpoints.
type WhitelistHandler struct {
	db     database.Client
	logger *zap.Logger
}

// NewWhitelistHandler creates a new whitelist handler.
func NewWhitelistHandler(db database.Client, logger *zap.Logger) *WhitelistHandler {
	return &WhitelistHandler{
		db:     db,
		logger: logger,
	}
}

// GetStatus returns the derived whitelist status for one game identity.
// Unknown identities report status NONE rather than an error; only a
// malformed identity is rejected.
func (h *WhitelistHandler) GetStatus(w http.ResponseWriter, req bunrouter.Request) error {
	gameID := req.Param("gameId")

	result, err := h.db.Service().Whitelist().Status(req.Context(), gameID)
	if err != nil {
		if errors.Is(err, steamid.ErrInvalidGameID) {
			http.Error(w, "Invalid game id", http.StatusBadRequest)
			return nil
		}

		h.logger.Error("Failed to get whitelist status", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return nil
	}

	return bunrouter.JSON(w, restTypes.WhitelistStatusResponse{
		Status:     result.Status,
		Expiration: result.Expiration,
		EntryCount: result.EntryCount,
	})
}
