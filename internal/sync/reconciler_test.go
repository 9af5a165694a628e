package sync_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wardenhq/warden/internal/database/types"
	"github.com/wardenhq/warden/internal/sync"
	"go.uber.org/zap"
)

const (
	testUserID = uint64(111222333444555666)
	testGameID = "76561197960287930"
	staffRole  = "100000000000000001"
	memberRole = "100000000000000002"
)

func testPolicy() sync.Policy {
	months := int64(1)
	unit := types.DurationMonths

	return sync.Policy{
		Rules: map[string]sync.RoleRule{
			staffRole: {Tier: types.EntryTypeStaff},
			memberRole: {
				Tier:          types.EntryTypeGeneral,
				DurationValue: &months,
				DurationUnit:  &unit,
			},
		},
		Thresholds: map[types.EntryType]float64{
			types.EntryTypeStaff:   1.0,
			types.EntryTypeGeneral: 0.7,
		},
	}
}

func newTestReconciler(links *fakeLinks, ledger *fakeLedger, inv *fakeInvalidator) *sync.Reconciler {
	return sync.NewReconciler(links, ledger, inv, testPolicy(), time.Minute, zap.NewNop())
}

func TestReconcilerGrantsTrustedLink(t *testing.T) {
	t.Parallel()

	links := &fakeLinks{links: map[uint64][]*types.IdentityLink{
		testUserID: {{DiscordUserID: testUserID, GameID: testGameID, Confidence: 1.0}},
	}}
	ledger := &fakeLedger{}
	inv := &fakeInvalidator{}

	r := newTestReconciler(links, ledger, inv)
	err := r.HandleObservation(t.Context(), sync.Observation{
		DiscordUserID: testUserID,
		Role:          memberRole,
		Added:         true,
	})
	require.NoError(t, err)

	require.Len(t, ledger.grants, 1)
	grant := ledger.grants[0]
	assert.Equal(t, testGameID, grant.GameID)
	assert.Equal(t, memberRole, grant.RoleName)
	assert.Equal(t, types.EntryTypeGeneral, grant.Type)
	require.NotNil(t, grant.DurationValue)
	assert.Equal(t, int64(1), *grant.DurationValue)

	assert.Empty(t, ledger.blocks)
	assert.Equal(t, []string{testGameID}, inv.games)
}

func TestReconcilerBlocksUntrustedLink(t *testing.T) {
	t.Parallel()

	links := &fakeLinks{links: map[uint64][]*types.IdentityLink{
		testUserID: {{DiscordUserID: testUserID, GameID: testGameID, Confidence: 0.5}},
	}}
	ledger := &fakeLedger{}
	inv := &fakeInvalidator{}

	r := newTestReconciler(links, ledger, inv)
	err := r.HandleObservation(t.Context(), sync.Observation{
		DiscordUserID: testUserID,
		Role:          staffRole,
		Added:         true,
	})
	require.NoError(t, err)

	assert.Empty(t, ledger.grants)
	require.Len(t, ledger.blocks, 1)
	assert.Equal(t, 0.5, ledger.blocks[0].grant.Confidence)
	assert.Equal(t, 1.0, ledger.blocks[0].required)
}

func TestReconcilerStaffRequiresFullConfidence(t *testing.T) {
	t.Parallel()

	// 0.7 clears the general tier but not staff.
	links := &fakeLinks{links: map[uint64][]*types.IdentityLink{
		testUserID: {{DiscordUserID: testUserID, GameID: testGameID, Confidence: 0.7}},
	}}

	staffLedger := &fakeLedger{}
	r := newTestReconciler(links, staffLedger, &fakeInvalidator{})
	err := r.HandleObservation(t.Context(), sync.Observation{
		DiscordUserID: testUserID, Role: staffRole, Added: true,
	})
	require.NoError(t, err)
	assert.Empty(t, staffLedger.grants)
	assert.Len(t, staffLedger.blocks, 1)

	generalLedger := &fakeLedger{}
	r = newTestReconciler(links, generalLedger, &fakeInvalidator{})
	err = r.HandleObservation(t.Context(), sync.Observation{
		DiscordUserID: testUserID, Role: memberRole, Added: true,
	})
	require.NoError(t, err)
	assert.Len(t, generalLedger.grants, 1)
	assert.Empty(t, generalLedger.blocks)
}

func TestReconcilerUnlinkedCreatesPlaceholder(t *testing.T) {
	t.Parallel()

	links := &fakeLinks{links: map[uint64][]*types.IdentityLink{}}
	ledger := &fakeLedger{}
	inv := &fakeInvalidator{}

	r := newTestReconciler(links, ledger, inv)
	err := r.HandleObservation(t.Context(), sync.Observation{
		DiscordUserID: testUserID,
		Role:          memberRole,
		Added:         true,
	})
	require.NoError(t, err)

	assert.Empty(t, ledger.grants)
	assert.Equal(t, []uint64{testUserID}, ledger.placeholders)
	assert.Equal(t, []uint64{testUserID}, inv.users)
}

func TestReconcilerIgnoresUnmanagedRole(t *testing.T) {
	t.Parallel()

	ledger := &fakeLedger{}
	inv := &fakeInvalidator{}

	r := newTestReconciler(&fakeLinks{}, ledger, inv)
	err := r.HandleObservation(t.Context(), sync.Observation{
		DiscordUserID: testUserID,
		Role:          "999999999999999999",
		Added:         true,
	})
	require.NoError(t, err)

	assert.Empty(t, ledger.grants)
	assert.Empty(t, ledger.blocks)
	assert.Empty(t, ledger.placeholders)
	assert.Empty(t, inv.games)
	assert.Empty(t, inv.users)
}

func TestReconcilerCollapsesDuplicateObservations(t *testing.T) {
	t.Parallel()

	links := &fakeLinks{links: map[uint64][]*types.IdentityLink{
		testUserID: {{DiscordUserID: testUserID, GameID: testGameID, Confidence: 1.0}},
	}}
	ledger := &fakeLedger{}
	inv := &fakeInvalidator{}

	r := newTestReconciler(links, ledger, inv)
	obs := sync.Observation{DiscordUserID: testUserID, Role: memberRole, Added: true}

	for range 5 {
		require.NoError(t, r.HandleObservation(t.Context(), obs))
	}

	// One ledger pass, but every duplicate still signals the read side.
	assert.Len(t, ledger.grants, 1)
	assert.Len(t, inv.games, 1)
	assert.Len(t, inv.users, 4)
}

func TestReconcilerRoleRemovedRevokesOwnEntries(t *testing.T) {
	t.Parallel()

	otherGameID := "76561197960287931"
	links := &fakeLinks{links: map[uint64][]*types.IdentityLink{
		testUserID: {{DiscordUserID: testUserID, GameID: testGameID, Confidence: 1.0}},
	}}
	ledger := &fakeLedger{revokeAffected: []string{testGameID, otherGameID}}
	inv := &fakeInvalidator{}

	r := newTestReconciler(links, ledger, inv)
	err := r.HandleObservation(t.Context(), sync.Observation{
		DiscordUserID: testUserID,
		Role:          memberRole,
		Added:         false,
	})
	require.NoError(t, err)

	// The revocation targets the observed user's entries, never a game
	// identity wholesale.
	require.Len(t, ledger.revokes, 1)
	assert.Equal(t, testUserID, ledger.revokes[0].discordUserID)
	assert.Equal(t, memberRole, ledger.revokes[0].roleName)

	// Every identity with a revoked entry is invalidated.
	assert.ElementsMatch(t, []string{testGameID, otherGameID}, inv.games)
}

func TestReconcilerRoleRemovedInvalidatesUserForPlaceholder(t *testing.T) {
	t.Parallel()

	links := &fakeLinks{links: map[uint64][]*types.IdentityLink{}}

	// A revoked placeholder carries no game identity; the user-side cache
	// is signalled instead.
	ledger := &fakeLedger{revokeAffected: []string{""}}
	inv := &fakeInvalidator{}

	r := newTestReconciler(links, ledger, inv)
	err := r.HandleObservation(t.Context(), sync.Observation{
		DiscordUserID: testUserID,
		Role:          memberRole,
		Added:         false,
	})
	require.NoError(t, err)

	assert.Empty(t, inv.games)
	assert.Equal(t, []uint64{testUserID}, inv.users)
}

func TestReconcilerAddThenRemoveBothMutate(t *testing.T) {
	t.Parallel()

	links := &fakeLinks{links: map[uint64][]*types.IdentityLink{
		testUserID: {{DiscordUserID: testUserID, GameID: testGameID, Confidence: 1.0}},
	}}
	ledger := &fakeLedger{revokeAffected: []string{testGameID}}
	inv := &fakeInvalidator{}

	r := newTestReconciler(links, ledger, inv)

	// A rapid add and remove for one (user, role) pair are opposite
	// mutations; neither may be swallowed as a duplicate of the other.
	err := r.HandleObservation(t.Context(), sync.Observation{
		DiscordUserID: testUserID, Role: memberRole, Added: true,
	})
	require.NoError(t, err)

	err = r.HandleObservation(t.Context(), sync.Observation{
		DiscordUserID: testUserID, Role: memberRole, Added: false,
	})
	require.NoError(t, err)

	assert.Len(t, ledger.grants, 1)
	assert.Len(t, ledger.revokes, 1)
}
