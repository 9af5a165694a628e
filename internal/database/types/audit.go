package types

import "time"

// AuditAction is the kind of security-relevant mutation being recorded.
type AuditAction string

const (
	AuditActionWhitelistGranted    AuditAction = "WHITELIST_GRANTED"
	AuditActionWhitelistBlocked    AuditAction = "WHITELIST_BLOCKED"
	AuditActionWhitelistUnlinked   AuditAction = "WHITELIST_UNLINKED"
	AuditActionWhitelistUnblocked  AuditAction = "WHITELIST_UNBLOCKED"
	AuditActionWhitelistRevoked    AuditAction = "WHITELIST_REVOKED"
	AuditActionWhitelistExtended   AuditAction = "WHITELIST_EXTENDED"
	AuditActionConfidenceIncreased AuditAction = "CONFIDENCE_INCREASED"
	AuditActionConfidenceAdminSet  AuditAction = "CONFIDENCE_ADMIN_SET"
	AuditActionDepartureRevocation AuditAction = "DEPARTURE_REVOCATION"
)

// AuditSeverity classifies audit records for reviewer triage.
type AuditSeverity string

const (
	AuditSeverityInfo     AuditSeverity = "INFO"
	AuditSeverityWarning  AuditSeverity = "WARNING"
	AuditSeverityCritical AuditSeverity = "CRITICAL"
)

// AuditEntry is an immutable record of a security-relevant mutation.
// Entries are written inside the transaction that performs the mutation
// so a privilege change can never commit without its audit trail.
type AuditEntry struct {
	ID            int64          `bun:",pk,autoincrement"`
	Action        AuditAction    `bun:",notnull"`
	Actor         string         `bun:",notnull"`
	DiscordUserID uint64         `bun:",nullzero"`
	GameID        string         `bun:",nullzero"`
	Before        map[string]any `bun:",type:jsonb"`
	After         map[string]any `bun:",type:jsonb"`
	Severity      AuditSeverity  `bun:",notnull"`
	Metadata      map[string]any `bun:",type:jsonb"`
	CreatedAt     time.Time      `bun:",notnull"`
}

// AuditCursor marks a position in the audit stream for stable pagination.
type AuditCursor struct {
	Timestamp time.Time `json:"timestamp"`
	Sequence  int64     `json:"sequence"`
}

// AuditFilter limits which audit entries are returned by queries.
type AuditFilter struct {
	Action        AuditAction
	Actor         string
	DiscordUserID uint64
	GameID        string
}
