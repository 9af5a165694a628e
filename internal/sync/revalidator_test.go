package sync_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wardenhq/warden/internal/database/types"
	"github.com/wardenhq/warden/internal/sync"
	"go.uber.org/zap"
)

func blockedEntry(id int64, role string) *types.WhitelistEntry {
	return &types.WhitelistEntry{
		ID:            id,
		GameID:        testGameID,
		DiscordUserID: testUserID,
		Type:          types.EntryTypeGeneral,
		Source:        types.EntrySourceRole,
		RoleName:      role,
		GrantedBy:     types.SystemActor,
		GrantedAt:     time.Now(),
		Approved:      false,
		Revoked:       true,
		RevokedReason: types.RevokeReasonInsufficientConfidence,
	}
}

func trustedLink() *types.IdentityLink {
	return &types.IdentityLink{
		DiscordUserID: testUserID,
		GameID:        testGameID,
		Confidence:    0.9,
		Source:        types.LinkSourceImported,
	}
}

func newTestRevalidator(ledger *fakeLedger, source *fakeMembership, inv *fakeInvalidator) *sync.Revalidator {
	return sync.NewRevalidator(ledger, source, inv, testPolicy(), time.Second, zap.NewNop())
}

func TestRevalidatorUnblocksConfirmedRole(t *testing.T) {
	t.Parallel()

	ledger := &fakeLedger{blockedEntries: []*types.WhitelistEntry{blockedEntry(1, memberRole)}}
	source := &fakeMembership{roles: []string{memberRole}, found: true}
	inv := &fakeInvalidator{}

	v := newTestRevalidator(ledger, source, inv)
	require.NoError(t, v.HandleConfidenceIncrease(t.Context(), trustedLink()))

	require.Len(t, ledger.unblocks, 1)
	assert.Equal(t, int64(1), ledger.unblocks[0].entry.ID)
	assert.Equal(t, testGameID, ledger.unblocks[0].gameID)
	assert.Equal(t, 0.9, ledger.unblocks[0].metadata["confidence"])
	assert.Equal(t, []string{testGameID}, inv.games)
}

func TestRevalidatorFailsClosedOnLookupError(t *testing.T) {
	t.Parallel()

	ledger := &fakeLedger{blockedEntries: []*types.WhitelistEntry{blockedEntry(1, memberRole)}}
	source := &fakeMembership{err: errors.New("gateway unavailable")}
	inv := &fakeInvalidator{}

	v := newTestRevalidator(ledger, source, inv)
	require.NoError(t, v.HandleConfidenceIncrease(t.Context(), trustedLink()))

	assert.Empty(t, ledger.unblocks)
	assert.Empty(t, inv.games)
}

func TestRevalidatorFailsClosedOnDepartedUser(t *testing.T) {
	t.Parallel()

	ledger := &fakeLedger{blockedEntries: []*types.WhitelistEntry{blockedEntry(1, memberRole)}}
	source := &fakeMembership{found: false}

	v := newTestRevalidator(ledger, source, &fakeInvalidator{})
	require.NoError(t, v.HandleConfidenceIncrease(t.Context(), trustedLink()))

	assert.Empty(t, ledger.unblocks)
}

func TestRevalidatorSkipsRoleNoLongerHeld(t *testing.T) {
	t.Parallel()

	ledger := &fakeLedger{blockedEntries: []*types.WhitelistEntry{
		blockedEntry(1, memberRole),
		blockedEntry(2, staffRole),
	}}
	source := &fakeMembership{roles: []string{memberRole}, found: true}

	link := trustedLink()
	link.Confidence = 1.0

	v := newTestRevalidator(ledger, source, &fakeInvalidator{})
	require.NoError(t, v.HandleConfidenceIncrease(t.Context(), link))

	// Only the still-held role is promoted even though confidence now
	// clears both tiers.
	require.Len(t, ledger.unblocks, 1)
	assert.Equal(t, int64(1), ledger.unblocks[0].entry.ID)
}

func TestRevalidatorSkipsEntriesStillBelowThreshold(t *testing.T) {
	t.Parallel()

	ledger := &fakeLedger{blockedEntries: []*types.WhitelistEntry{blockedEntry(1, staffRole)}}
	source := &fakeMembership{roles: []string{staffRole}, found: true}

	// 0.9 is above general but below the staff threshold.
	v := newTestRevalidator(ledger, source, &fakeInvalidator{})
	require.NoError(t, v.HandleConfidenceIncrease(t.Context(), trustedLink()))

	assert.Empty(t, ledger.unblocks)
}

func TestRevalidatorNoBlockedEntriesSkipsLookup(t *testing.T) {
	t.Parallel()

	ledger := &fakeLedger{}
	source := &fakeMembership{roles: []string{memberRole}, found: true}

	v := newTestRevalidator(ledger, source, &fakeInvalidator{})
	require.NoError(t, v.HandleConfidenceIncrease(t.Context(), trustedLink()))

	assert.Zero(t, source.calls)
}
