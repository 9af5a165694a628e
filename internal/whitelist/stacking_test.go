package whitelist_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wardenhq/warden/internal/database/types"
	"github.com/wardenhq/warden/internal/whitelist"
)

func entry(grantedAt time.Time, value int64, unit types.DurationUnit) *types.WhitelistEntry {
	return &types.WhitelistEntry{
		GameID:        "76561197960287930",
		Type:          types.EntryTypeGeneral,
		Source:        types.EntrySourceRole,
		GrantedBy:     types.SystemActor,
		GrantedAt:     grantedAt,
		DurationValue: &value,
		DurationUnit:  &unit,
		Approved:      true,
	}
}

func permanentEntry(grantedAt time.Time) *types.WhitelistEntry {
	return &types.WhitelistEntry{
		GameID:    "76561197960287930",
		Type:      types.EntryTypeGeneral,
		Source:    types.EntrySourceManual,
		GrantedBy: "admin",
		GrantedAt: grantedAt,
		Approved:  true,
	}
}

func TestCalculateNoEntries(t *testing.T) {
	t.Parallel()

	result := whitelist.Calculate(nil, time.Now())
	assert.Equal(t, whitelist.StatusNone, result.Status)
	assert.Nil(t, result.Expiration)
	assert.Zero(t, result.EntryCount)
}

func TestCalculateStacksDurationsFromEarliestGrant(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	first := entry(now.AddDate(0, 0, -2), 10, types.DurationDays)
	second := entry(now.AddDate(0, 0, -1), 5, types.DurationDays)

	result := whitelist.Calculate([]*types.WhitelistEntry{first, second}, now)

	require.Equal(t, whitelist.StatusActive, result.Status)
	require.NotNil(t, result.Expiration)

	// 15 days total, anchored on the earliest grant rather than on each
	// grant resetting from "now".
	expected := first.GrantedAt.AddDate(0, 0, 15)
	assert.Equal(t, expected, *result.Expiration)
	assert.Equal(t, 2, result.EntryCount)
}

func TestCalculateStacksMixedUnits(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	anchor := now.AddDate(0, 0, -3)

	entries := []*types.WhitelistEntry{
		entry(anchor, 1, types.DurationMonths),
		entry(now.AddDate(0, 0, -1), 3, types.DurationDays),
		entry(now, 12, types.DurationHours),
	}

	result := whitelist.Calculate(entries, now)

	require.Equal(t, whitelist.StatusActive, result.Status)
	require.NotNil(t, result.Expiration)

	expected := anchor.AddDate(0, 1, 3).Add(12 * time.Hour)
	assert.Equal(t, expected, *result.Expiration)
}

func TestCalculatePermanentWins(t *testing.T) {
	t.Parallel()

	now := time.Now()
	entries := []*types.WhitelistEntry{
		entry(now.AddDate(0, 0, -30), 1, types.DurationDays), // Long expired
		permanentEntry(now.AddDate(0, 0, -10)),
	}

	result := whitelist.Calculate(entries, now)

	assert.Equal(t, whitelist.StatusPermanent, result.Status)
	assert.Nil(t, result.Expiration)
	assert.Equal(t, 2, result.EntryCount)
}

func TestCalculateZeroDurationIsVoided(t *testing.T) {
	t.Parallel()

	now := time.Now()
	voided := entry(now.AddDate(0, 0, -1), 0, types.DurationDays)
	active := entry(now.AddDate(0, 0, -1), 5, types.DurationDays)

	// A voided entry contributes nothing to the stack.
	result := whitelist.Calculate([]*types.WhitelistEntry{voided, active}, now)
	require.Equal(t, whitelist.StatusActive, result.Status)
	assert.Equal(t, active.GrantedAt.AddDate(0, 0, 5), *result.Expiration)

	// Only voided entries left means no access at all.
	result = whitelist.Calculate([]*types.WhitelistEntry{voided}, now)
	assert.Equal(t, whitelist.StatusNone, result.Status)
	assert.Equal(t, 1, result.EntryCount)
}

func TestCalculateExpired(t *testing.T) {
	t.Parallel()

	now := time.Now()
	first := entry(now.AddDate(0, 0, -20), 5, types.DurationDays)
	second := entry(now.AddDate(0, 0, -10), 2, types.DurationDays)

	result := whitelist.Calculate([]*types.WhitelistEntry{first, second}, now)

	require.Equal(t, whitelist.StatusExpired, result.Status)
	require.NotNil(t, result.Expiration)

	// The latest individual expiration is reported for display.
	expected := second.GrantedAt.AddDate(0, 0, 2)
	assert.Equal(t, expected, *result.Expiration)
}

func TestCalculateIndividuallyExpiredEntriesLeaveTheStack(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	expired := entry(now.AddDate(0, 0, -30), 5, types.DurationDays)
	active := entry(now.AddDate(0, 0, -1), 10, types.DurationDays)

	result := whitelist.Calculate([]*types.WhitelistEntry{expired, active}, now)

	require.Equal(t, whitelist.StatusActive, result.Status)

	// The expired entry neither contributes its duration nor drags the
	// anchor back to its grant date.
	expected := active.GrantedAt.AddDate(0, 0, 10)
	assert.Equal(t, expected, *result.Expiration)
}

func TestCalculateAllRevoked(t *testing.T) {
	t.Parallel()

	now := time.Now()
	revoked := entry(now.AddDate(0, 0, -1), 5, types.DurationDays)
	revoked.Revoked = true
	revoked.RevokedBy = types.SystemActor
	revoked.RevokedReason = types.RevokeReasonRoleRemoved

	result := whitelist.Calculate([]*types.WhitelistEntry{revoked}, now)

	assert.Equal(t, whitelist.StatusRevoked, result.Status)
	assert.Zero(t, result.EntryCount)
}

func TestCalculateBlockedEntriesGrantNothing(t *testing.T) {
	t.Parallel()

	now := time.Now()
	blocked := entry(now.AddDate(0, 0, -1), 5, types.DurationDays)
	blocked.Approved = false
	blocked.Revoked = true
	blocked.RevokedBy = types.SystemActor
	blocked.RevokedReason = types.RevokeReasonInsufficientConfidence

	result := whitelist.Calculate([]*types.WhitelistEntry{blocked}, now)

	assert.Equal(t, whitelist.StatusRevoked, result.Status)
}

func TestCalculateRevokedMixedWithLive(t *testing.T) {
	t.Parallel()

	now := time.Now()
	revoked := entry(now.AddDate(0, 0, -2), 5, types.DurationDays)
	revoked.Revoked = true
	active := entry(now.AddDate(0, 0, -1), 5, types.DurationDays)

	result := whitelist.Calculate([]*types.WhitelistEntry{revoked, active}, now)

	require.Equal(t, whitelist.StatusActive, result.Status)
	assert.Equal(t, 1, result.EntryCount)

	// The revoked entry must not contribute to the stack or the anchor.
	expected := active.GrantedAt.AddDate(0, 0, 5)
	assert.Equal(t, expected, *result.Expiration)
}
