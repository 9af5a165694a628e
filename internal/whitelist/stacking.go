// Package whitelist derives a player's live access status from their
// set of ledger entries. Status is always computed, never stored.
package whitelist

import (
	"time"

	"github.com/wardenhq/warden/internal/database/types"
)

// Status is the aggregate whitelist state of one game identity.
type Status string

const (
	StatusNone      Status = "NONE"
	StatusRevoked   Status = "REVOKED"
	StatusExpired   Status = "EXPIRED"
	StatusActive    Status = "ACTIVE"
	StatusPermanent Status = "PERMANENT"
)

// Result is the derived whitelist state for one game identity.
type Result struct {
	Status     Status
	Expiration *time.Time // nil for NONE and PERMANENT
	EntryCount int        // Non-revoked entries
}

// Calculate derives the aggregate status for all ledger entries of one
// game identity. Durations stack: overlapping grants compound from the
// earliest grant date instead of each new grant resetting from "now".
func Calculate(entries []*types.WhitelistEntry, now time.Time) Result {
	if len(entries) == 0 {
		return Result{Status: StatusNone}
	}

	var (
		live       []*types.WhitelistEntry
		nonRevoked int
		anyRevoked bool
	)

	for _, entry := range entries {
		if !entry.Revoked {
			nonRevoked++
		} else {
			anyRevoked = true
		}

		if entry.IsLive() {
			live = append(live, entry)
		}
	}

	if len(live) == 0 {
		// Unapproved placeholders never grant access. All-revoked is
		// surfaced distinctly from "never whitelisted".
		if anyRevoked && nonRevoked == 0 {
			return Result{Status: StatusRevoked}
		}

		return Result{Status: StatusNone, EntryCount: nonRevoked}
	}

	// Any live permanent entry wins regardless of the rest.
	for _, entry := range live {
		if entry.IsPermanent() {
			return Result{Status: StatusPermanent, EntryCount: nonRevoked}
		}
	}

	// Split live entries into ones still contributing to the stack and
	// ones individually expired or explicitly voided (duration 0). The
	// latest individual expiration is kept for display when nothing
	// contributes anymore.
	var (
		valid      []*types.WhitelistEntry
		lastExpiry *time.Time
	)

	for _, entry := range live {
		if *entry.DurationValue == 0 {
			continue
		}

		exp := entry.ExpiresAt()
		if exp.Before(now) {
			if lastExpiry == nil || exp.After(*lastExpiry) {
				lastExpiry = exp
			}

			continue
		}

		valid = append(valid, entry)
	}

	if len(valid) == 0 {
		if lastExpiry == nil {
			// Only voided entries remain.
			return Result{Status: StatusNone, EntryCount: nonRevoked}
		}

		return Result{Status: StatusExpired, Expiration: lastExpiry, EntryCount: nonRevoked}
	}

	expiration := stackedExpiration(valid)
	if expiration.Before(now) {
		return Result{Status: StatusExpired, Expiration: &expiration, EntryCount: nonRevoked}
	}

	return Result{Status: StatusActive, Expiration: &expiration, EntryCount: nonRevoked}
}

// stackedExpiration sums the durations of all valid entries, bucketed by
// unit, and applies them to the earliest grant date. Months and days use
// calendar arithmetic; hours are a flat offset. The application order is
// fixed (months, days, hours) so the result is deterministic.
func stackedExpiration(valid []*types.WhitelistEntry) time.Time {
	anchor := valid[0].GrantedAt

	var months, days, hours int64

	for _, entry := range valid {
		if entry.GrantedAt.Before(anchor) {
			anchor = entry.GrantedAt
		}

		switch *entry.DurationUnit {
		case types.DurationMonths:
			months += *entry.DurationValue
		case types.DurationDays:
			days += *entry.DurationValue
		case types.DurationHours:
			hours += *entry.DurationValue
		}
	}

	return anchor.
		AddDate(0, int(months), int(days)).
		Add(time.Duration(hours) * time.Hour)
}
