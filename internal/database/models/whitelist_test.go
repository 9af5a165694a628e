package models

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// renderDB builds a dialect-only bun.DB for rendering SQL. Nothing
// connects; pgdriver defers dialing until a query executes.
func renderDB() *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithAddr("localhost:5432"),
		pgdriver.WithInsecure(true),
	))

	return bun.NewDB(sqldb, pgdialect.New())
}

func TestRevokeRoleEntriesScopedToUserAndSource(t *testing.T) {
	t.Parallel()

	db := renderDB()

	q := revokeUserRoleEntriesQuery(db, 12345, "system", "role_removed").String()

	// Only the observing user's rows are candidates. Entries another user
	// earned on the same game identity must never match.
	assert.Contains(t, q, "discord_user_id = 12345")

	// Manual, donation and import entries survive role removal and
	// departure; only role-sourced grants are revocable here.
	assert.Contains(t, q, "source = 'ROLE'")

	// Already revoked rows stay untouched so revocation metadata is not
	// overwritten.
	assert.Contains(t, q, "revoked = FALSE")

	assert.NotContains(t, q, "game_id =")
}
