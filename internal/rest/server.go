package rest

import (
	"net/http"
	"time"

	"github.com/uptrace/bunrouter"
	"github.com/wardenhq/warden/internal/database"
	"github.com/wardenhq/warden/internal/membership"
	"github.com/wardenhq/warden/internal/rest/handler"
	syncer "github.com/wardenhq/warden/internal/sync"
	"go.uber.org/zap"
)

// Server implements the REST API service.
type Server struct {
	whitelistHandler *handler.WhitelistHandler
	auditHandler     *handler.AuditHandler
	linkHandler      *handler.LinkHandler
	entryHandler     *handler.EntryHandler
}

// NewServer creates a new REST API server.
func NewServer(
	db database.Client,
	source membership.Source,
	reconciler *syncer.Reconciler,
	revalidator *syncer.Revalidator,
	invalidator syncer.Invalidator,
	logger *zap.Logger,
) http.Handler {
	logger = logger.Named("rest")

	server := &Server{
		whitelistHandler: handler.NewWhitelistHandler(db, logger),
		auditHandler:     handler.NewAuditHandler(db, logger),
		linkHandler:      handler.NewLinkHandler(db, source, reconciler, revalidator, logger),
		entryHandler:     handler.NewEntryHandler(db, invalidator, logger),
	}

	router := bunrouter.New()

	router.Use(requestLogger(logger)).WithGroup("/v1", func(g *bunrouter.Group) {
		g.GET("/whitelist/:gameId", server.whitelistHandler.GetStatus)
		g.GET("/audit", server.auditHandler.GetLogs)
		g.POST("/links/verify", server.linkHandler.VerifyLink)
		g.POST("/links/confidence", server.linkHandler.RecordConfidence)
		g.PUT("/links/confidence", server.linkHandler.SetConfidence)
		g.POST("/links/extracted", server.linkHandler.CreateExtracted)
		g.POST("/links/import", server.linkHandler.ImportLinks)
		g.GET("/links/user/:discordUserId", server.linkHandler.GetUserLinks)
		g.GET("/links/primary/:gameId", server.linkHandler.GetPrimaryLink)
		g.POST("/whitelist/entries", server.entryHandler.CreateEntry)
		g.POST("/whitelist/entries/:id/extend", server.entryHandler.ExtendEntry)
		g.POST("/whitelist/entries/:id/revoke", server.entryHandler.RevokeEntry)
	})

	return router
}

// requestLogger logs each request with its route and duration.
func requestLogger(logger *zap.Logger) bunrouter.MiddlewareFunc {
	return func(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
		return func(w http.ResponseWriter, req bunrouter.Request) error {
			start := time.Now()
			err := next(w, req)

			logger.Debug("Handled request",
				zap.String("method", req.Method),
				zap.String("route", req.Route()),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err))

			return err
		}
	}
}
