package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/uptrace/bunrouter"
	"github.com/wardenhq/warden/internal/database"
	dbtypes "github.com/wardenhq/warden/internal/database/types"
	restTypes "github.com/wardenhq/warden/internal/rest/types"
	"go.uber.org/zap"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

// AuditHandler handles audit trail read endpoints.
type AuditHandler struct {
	db     database.Client
	logger *zap.Logger
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(db database.Client, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		db:     db,
		logger: logger,
	}
}

// GetLogs returns one page of the audit stream, newest first. The cursor
// is the (timestamp, sequence) pair echoed back from the previous page.
func (h *AuditHandler) GetLogs(w http.ResponseWriter, req bunrouter.Request) error {
	query := req.URL.Query()

	filter := dbtypes.AuditFilter{
		Action: dbtypes.AuditAction(query.Get("action")),
		Actor:  query.Get("actor"),
		GameID: query.Get("gameId"),
	}

	if raw := query.Get("discordUserId"); raw != "" {
		userID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "Invalid discord user id", http.StatusBadRequest)
			return nil
		}

		filter.DiscordUserID = userID
	}

	limit := defaultAuditLimit

	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return nil
		}

		limit = min(parsed, maxAuditLimit)
	}

	cursor, err := parseCursor(query.Get("cursorTime"), query.Get("cursorSeq"))
	if err != nil {
		http.Error(w, "Invalid cursor", http.StatusBadRequest)
		return nil
	}

	logs, nextCursor, err := h.db.Model().Audit().GetLogs(req.Context(), filter, cursor, limit)
	if err != nil {
		h.logger.Error("Failed to get audit logs", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return nil
	}

	return bunrouter.JSON(w, restTypes.AuditLogsResponse{
		Logs:       logs,
		NextCursor: nextCursor,
	})
}

func parseCursor(rawTime, rawSeq string) (*dbtypes.AuditCursor, error) {
	if rawTime == "" && rawSeq == "" {
		return nil, nil
	}

	timestamp, err := time.Parse(time.RFC3339Nano, rawTime)
	if err != nil {
		return nil, err
	}

	sequence, err := strconv.ParseInt(rawSeq, 10, 64)
	if err != nil {
		return nil, err
	}

	return &dbtypes.AuditCursor{Timestamp: timestamp, Sequence: sequence}, nil
}
