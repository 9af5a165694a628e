package database

import (
	"github.com/uptrace/bun"
	"github.com/wardenhq/warden/internal/database/models"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	link      *models.LinkModel
	whitelist *models.WhitelistModel
	audit     *models.AuditModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		link:      models.NewLink(db, logger),
		whitelist: models.NewWhitelist(db, logger),
		audit:     models.NewAudit(db, logger),
	}
}

// Link returns the identity link model repository.
func (r *Repository) Link() *models.LinkModel {
	return r.link
}

// Whitelist returns the whitelist ledger model repository.
func (r *Repository) Whitelist() *models.WhitelistModel {
	return r.whitelist
}

// Audit returns the audit trail model repository.
func (r *Repository) Audit() *models.AuditModel {
	return r.audit
}
