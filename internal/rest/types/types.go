package types

import (
	"time"

	dbtypes "github.com/wardenhq/warden/internal/database/types"
	"github.com/wardenhq/warden/internal/whitelist"
)

// WhitelistStatusResponse is the read model exposed per game identity.
type WhitelistStatusResponse struct {
	Status     whitelist.Status `json:"status"`
	Expiration *time.Time       `json:"expiration,omitempty"`
	EntryCount int              `json:"entryCount"`
}

// AuditLogsResponse is one page of the audit stream.
type AuditLogsResponse struct {
	Logs       []*dbtypes.AuditEntry `json:"logs"`
	NextCursor *dbtypes.AuditCursor  `json:"nextCursor,omitempty"`
}

// VerifyLinkRequest establishes a verified identity link.
type VerifyLinkRequest struct {
	DiscordUserID uint64 `json:"discordUserId"`
	GameID        string `json:"gameId"`
	Admin         bool   `json:"admin"` // True when verified by an admin rather than the user
}

// ConfidenceChangeRequest applies a new confidence observation to a link.
type ConfidenceChangeRequest struct {
	DiscordUserID uint64  `json:"discordUserId"`
	GameID        string  `json:"gameId"`
	Confidence    float64 `json:"confidence"`
	Source        string  `json:"source"`
}

// ImportLinksRequest bulk-creates links from an external system.
type ImportLinksRequest struct {
	Links []dbtypes.LinkPair `json:"links"`
}

// ImportLinksResponse reports the outcome of a bulk import.
type ImportLinksResponse struct {
	Total   int `json:"total"`
	Created int `json:"created"`
}

// AdminConfidenceRequest overrides a link's confidence by admin action.
type AdminConfidenceRequest struct {
	DiscordUserID uint64  `json:"discordUserId"`
	GameID        string  `json:"gameId"`
	Confidence    float64 `json:"confidence"`
	Actor         string  `json:"actor"`
}

// ExtractedLinkRequest records a link discovered through text extraction.
type ExtractedLinkRequest struct {
	DiscordUserID uint64 `json:"discordUserId"`
	GameID        string `json:"gameId"`
}

// CreateEntryRequest records an operator-issued grant.
type CreateEntryRequest struct {
	GameID        string                `json:"gameId"`
	DiscordUserID uint64                `json:"discordUserId"`
	Type          dbtypes.EntryType     `json:"type"`
	Source        dbtypes.EntrySource   `json:"source"`
	DurationValue *int64                `json:"durationValue,omitempty"`
	DurationUnit  *dbtypes.DurationUnit `json:"durationUnit,omitempty"`
	GrantedBy     string                `json:"grantedBy"`
}

// EntryResponse identifies a created ledger entry.
type EntryResponse struct {
	ID int64 `json:"id"`
}

// ExtendEntryRequest repairs an entry's duration.
type ExtendEntryRequest struct {
	DurationValue int64                `json:"durationValue"`
	DurationUnit  dbtypes.DurationUnit `json:"durationUnit"`
	Actor         string               `json:"actor"`
}

// RevokeEntryRequest revokes an entry by operator action.
type RevokeEntryRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

// LinkResponse mirrors an identity link.
type LinkResponse struct {
	DiscordUserID uint64  `json:"discordUserId"`
	GameID        string  `json:"gameId"`
	Confidence    float64 `json:"confidence"`
	Source        string  `json:"source"`
	IsPrimary     bool    `json:"isPrimary"`
	Created       bool    `json:"created"`
}
