package sync_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wardenhq/warden/internal/sync"
	"go.uber.org/zap"
)

func TestDepartureRevokesAcrossLinkedGames(t *testing.T) {
	t.Parallel()

	otherGameID := "76561197960287931"
	ledger := &fakeLedger{departureAffected: []string{testGameID, otherGameID, testGameID}}
	inv := &fakeInvalidator{}

	d := sync.NewDeparture(ledger, inv, zap.NewNop())
	require.NoError(t, d.HandleDeparture(t.Context(), testUserID))

	assert.Equal(t, []uint64{testUserID}, ledger.departures)

	// Each affected identity is invalidated exactly once.
	assert.ElementsMatch(t, []string{testGameID, otherGameID}, inv.games)
}

func TestDepartureWithNoEntries(t *testing.T) {
	t.Parallel()

	ledger := &fakeLedger{}
	inv := &fakeInvalidator{}

	d := sync.NewDeparture(ledger, inv, zap.NewNop())
	require.NoError(t, d.HandleDeparture(t.Context(), testUserID))

	assert.Equal(t, []uint64{testUserID}, ledger.departures)
	assert.Empty(t, inv.games)
}

func TestDepartureSkipsPlaceholderGameID(t *testing.T) {
	t.Parallel()

	// Placeholder entries surface an empty game id; there is nothing to
	// invalidate for them.
	ledger := &fakeLedger{departureAffected: []string{""}}
	inv := &fakeInvalidator{}

	d := sync.NewDeparture(ledger, inv, zap.NewNop())
	require.NoError(t, d.HandleDeparture(t.Context(), testUserID))

	assert.Empty(t, inv.games)
}
