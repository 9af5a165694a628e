package sync_test

import (
	"context"
	stdsync "sync"

	"github.com/wardenhq/warden/internal/database/types"
)

// fakeLinks is an in-memory link store for reconciler tests.
type fakeLinks struct {
	links map[uint64][]*types.IdentityLink
}

func (f *fakeLinks) HighestConfidence(_ context.Context, discordUserID uint64) (*types.IdentityLink, error) {
	var best *types.IdentityLink

	for _, link := range f.links[discordUserID] {
		if best == nil || link.Confidence > best.Confidence {
			best = link
		}
	}

	return best, nil
}

type blockCall struct {
	grant    types.RoleGrant
	required float64
}

type revokeCall struct {
	discordUserID uint64
	roleName      string
}

type unblockCall struct {
	entry    *types.WhitelistEntry
	gameID   string
	metadata map[string]any
}

// fakeLedger records every mutation the reconcilers request.
type fakeLedger struct {
	mu stdsync.Mutex

	grants            []types.RoleGrant
	blocks            []blockCall
	placeholders      []uint64
	revokes           []revokeCall
	departures        []uint64
	unblocks          []unblockCall
	blockedEntries    []*types.WhitelistEntry
	revokeAffected    []string
	departureAffected []string
}

func (f *fakeLedger) GrantRoleEntry(_ context.Context, grant types.RoleGrant) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.grants = append(f.grants, grant)

	return true, nil
}

func (f *fakeLedger) BlockRoleEntry(_ context.Context, grant types.RoleGrant, required float64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.blocks = append(f.blocks, blockCall{grant: grant, required: required})

	return true, nil
}

func (f *fakeLedger) CreateUnlinkedPlaceholder(
	_ context.Context, discordUserID uint64, _ string, _ types.EntryType,
) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.placeholders = append(f.placeholders, discordUserID)

	return true, nil
}

func (f *fakeLedger) RevokeRoleEntries(
	_ context.Context, discordUserID uint64, roleName string,
) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.revokes = append(f.revokes, revokeCall{
		discordUserID: discordUserID,
		roleName:      roleName,
	})

	return f.revokeAffected, nil
}

func (f *fakeLedger) RevokeDeparture(_ context.Context, discordUserID uint64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.departures = append(f.departures, discordUserID)

	return f.departureAffected, nil
}

func (f *fakeLedger) BlockedRoleEntries(_ context.Context, _ string, _ uint64) ([]*types.WhitelistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.blockedEntries, nil
}

func (f *fakeLedger) UnblockEntry(
	_ context.Context, entry *types.WhitelistEntry, gameID string, metadata map[string]any,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.unblocks = append(f.unblocks, unblockCall{entry: entry, gameID: gameID, metadata: metadata})

	return nil
}

// fakeInvalidator records invalidation signals.
type fakeInvalidator struct {
	mu    stdsync.Mutex
	games []string
	users []uint64
}

func (f *fakeInvalidator) InvalidateGame(_ context.Context, gameID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.games = append(f.games, gameID)
}

func (f *fakeInvalidator) InvalidateUser(_ context.Context, discordUserID uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.users = append(f.users, discordUserID)
}

// fakeMembership is a scripted membership source.
type fakeMembership struct {
	roles []string
	found bool
	err   error

	mu    stdsync.Mutex
	calls int
}

func (f *fakeMembership) CurrentRoles(_ context.Context, _ uint64) ([]string, bool, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	return f.roles, f.found, f.err
}
