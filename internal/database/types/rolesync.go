package types

// RoleGrant carries everything needed to write a role-sourced ledger
// entry for one (discordUserID, role) observation.
type RoleGrant struct {
	DiscordUserID uint64
	GameID        string
	RoleName      string
	Type          EntryType
	DurationValue *int64
	DurationUnit  *DurationUnit
	Confidence    float64 // Link confidence at decision time
}
