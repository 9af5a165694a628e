package types

import (
	"errors"
	"time"
)

var ErrEntryNotFound = errors.New("whitelist entry not found")

// SystemActor is recorded as the acting party for mutations performed by
// the reconcilers rather than a human operator.
const SystemActor = "SYSTEM"

// Revocation reasons written by the reconcilers.
const (
	RevokeReasonInsufficientConfidence = "insufficient link confidence"
	RevokeReasonRoleRemoved            = "role removed"
	RevokeReasonDeparture              = "user left the community"
)

// EntryType is the privilege tier of a whitelist entry.
type EntryType string

const (
	EntryTypeStaff   EntryType = "STAFF"
	EntryTypeGeneral EntryType = "GENERAL"
)

// EntrySource identifies what created a whitelist entry. Only role-sourced
// entries are ever touched by the role reconcilers.
type EntrySource string

const (
	EntrySourceRole     EntrySource = "ROLE"
	EntrySourceManual   EntrySource = "MANUAL"
	EntrySourceDonation EntrySource = "DONATION"
	EntrySourceImport   EntrySource = "IMPORT"
)

// DurationUnit is the unit of a whitelist entry's duration.
type DurationUnit string

const (
	DurationHours  DurationUnit = "HOURS"
	DurationDays   DurationUnit = "DAYS"
	DurationMonths DurationUnit = "MONTHS"
)

// WhitelistEntry is one grant event in the privilege ledger. A player's
// live status is always derived from the full set of entries for their
// game identity, never stored.
type WhitelistEntry struct {
	ID            int64       `bun:",pk,autoincrement"`
	GameID        string      `bun:",notnull"` // Empty for unlinked placeholders
	DiscordUserID uint64      `bun:",nullzero"`
	Type          EntryType   `bun:",notnull"`
	Source        EntrySource `bun:",notnull"`
	RoleName      string      `bun:",nullzero"` // Set for role-sourced entries
	DurationValue *int64      // Both nil = permanent grant
	DurationUnit  *DurationUnit
	GrantedBy     string         `bun:",notnull"`
	GrantedAt     time.Time      `bun:",notnull"`
	Approved      bool           `bun:",notnull"`
	Revoked       bool           `bun:",notnull"`
	RevokedBy     string         `bun:",nullzero"`
	RevokedAt     *time.Time     `bun:",nullzero"`
	RevokedReason string         `bun:",nullzero"`
	Metadata      map[string]any `bun:",type:jsonb"`
	UpdatedAt     time.Time      `bun:",notnull"`
}

// IsPermanent reports whether the entry grants access without expiry.
func (e *WhitelistEntry) IsPermanent() bool {
	return e.DurationValue == nil || e.DurationUnit == nil
}

// IsLive reports whether the entry currently contributes to access.
func (e *WhitelistEntry) IsLive() bool {
	return e.Approved && !e.Revoked
}

// IsConfidenceBlocked reports whether the entry is a security block:
// deliberately pre-revoked because the identity link was not trusted
// enough when the role observation arrived.
func (e *WhitelistEntry) IsConfidenceBlocked() bool {
	return !e.Approved && e.Revoked && e.RevokedReason == RevokeReasonInsufficientConfidence
}

// IsUnlinkedPlaceholder reports whether the entry was created for a role
// observation with no identity link at all. These are kept unrevoked so
// operators can tell "unlinked" apart from "linked but untrusted".
func (e *WhitelistEntry) IsUnlinkedPlaceholder() bool {
	return !e.Approved && !e.Revoked && e.GameID == ""
}

// ExpiresAt computes the entry's individual expiration from its own
// duration alone, ignoring stacking. Returns nil for permanent entries.
func (e *WhitelistEntry) ExpiresAt() *time.Time {
	if e.IsPermanent() {
		return nil
	}

	var exp time.Time

	switch *e.DurationUnit {
	case DurationMonths:
		exp = e.GrantedAt.AddDate(0, int(*e.DurationValue), 0)
	case DurationDays:
		exp = e.GrantedAt.AddDate(0, 0, int(*e.DurationValue))
	case DurationHours:
		exp = e.GrantedAt.Add(time.Duration(*e.DurationValue) * time.Hour)
	default:
		exp = e.GrantedAt
	}

	return &exp
}

// Snapshot returns the audit-relevant state of the entry for
// before/after comparison in audit records.
func (e *WhitelistEntry) Snapshot() map[string]any {
	if e == nil {
		return nil
	}

	snapshot := map[string]any{
		"id":        e.ID,
		"gameId":    e.GameID,
		"type":      e.Type,
		"source":    e.Source,
		"approved":  e.Approved,
		"revoked":   e.Revoked,
		"grantedBy": e.GrantedBy,
		"grantedAt": e.GrantedAt,
	}
	if e.RoleName != "" {
		snapshot["roleName"] = e.RoleName
	}

	if e.RevokedReason != "" {
		snapshot["revokedReason"] = e.RevokedReason
	}

	if e.DurationValue != nil && e.DurationUnit != nil {
		snapshot["durationValue"] = *e.DurationValue
		snapshot["durationUnit"] = *e.DurationUnit
	}

	return snapshot
}
