package database

import (
	"github.com/uptrace/bun"
	"github.com/wardenhq/warden/internal/database/service"
	"go.uber.org/zap"
)

// Service provides access to all business logic services.
type Service struct {
	link      *service.LinkService
	whitelist *service.WhitelistService
}

// NewService creates a new service instance with all services.
func NewService(db *bun.DB, repository *Repository, logger *zap.Logger) *Service {
	return &Service{
		link:      service.NewLink(db, repository.Link(), repository.Audit(), logger),
		whitelist: service.NewWhitelist(db, repository.Whitelist(), repository.Audit(), logger),
	}
}

// Link returns the identity link service.
func (s *Service) Link() *service.LinkService {
	return s.link
}

// Whitelist returns the whitelist ledger service.
func (s *Service) Whitelist() *service.WhitelistService {
	return s.whitelist
}
