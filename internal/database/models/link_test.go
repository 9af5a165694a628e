package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDemoteOtherPrimariesForGameTargetsOtherUsers(t *testing.T) {
	t.Parallel()

	db := renderDB()

	q := demoteOtherPrimariesForGameQuery(db, 12345, "76561197960287930").String()

	// Every other claimant of the game identity loses the primary flag;
	// the link being promoted keeps it.
	assert.Contains(t, q, "SET is_primary = FALSE")
	assert.Contains(t, q, "game_id = '76561197960287930'")
	assert.Contains(t, q, "discord_user_id != 12345")
	assert.Contains(t, q, "is_primary = TRUE")
}
