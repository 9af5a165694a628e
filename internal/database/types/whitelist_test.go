package types

import (
	"testing"
	"time"
)

func TestExpiresAt(t *testing.T) {
	granted := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)

	value := int64(1)
	unit := DurationMonths
	entry := &WhitelistEntry{GrantedAt: granted, DurationValue: &value, DurationUnit: &unit}

	exp := entry.ExpiresAt()
	if exp == nil {
		t.Fatal("Expected expiration, got nil")
	}

	// Calendar arithmetic: Jan 31 + 1 month normalizes to Mar 2/3.
	expected := granted.AddDate(0, 1, 0)
	if !exp.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, *exp)
	}
}

func TestExpiresAtPermanent(t *testing.T) {
	entry := &WhitelistEntry{GrantedAt: time.Now()}
	if entry.ExpiresAt() != nil {
		t.Error("Expected nil expiration for permanent entry")
	}
}

func TestIsConfidenceBlocked(t *testing.T) {
	entry := &WhitelistEntry{
		Approved:      false,
		Revoked:       true,
		RevokedReason: RevokeReasonInsufficientConfidence,
	}
	if !entry.IsConfidenceBlocked() {
		t.Error("Expected entry to be confidence blocked")
	}

	entry.RevokedReason = RevokeReasonRoleRemoved
	if entry.IsConfidenceBlocked() {
		t.Error("Ordinary revocation must not count as a security block")
	}
}

func TestIsUnlinkedPlaceholder(t *testing.T) {
	entry := &WhitelistEntry{GameID: "", Approved: false, Revoked: false}
	if !entry.IsUnlinkedPlaceholder() {
		t.Error("Expected unlinked placeholder")
	}

	entry.GameID = "76561197960287930"
	if entry.IsUnlinkedPlaceholder() {
		t.Error("Entry with game id is not a placeholder")
	}
}
