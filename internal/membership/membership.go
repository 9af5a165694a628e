// Package membership exposes the community membership source consumed
// by the reconcilers. The source is authoritative but unreliable: it may
// fail or time out, and callers must treat any failure as "not
// confirmed" rather than guessing.
package membership

import (
	"context"
	"errors"
)

var ErrLookupFailed = errors.New("membership lookup failed")

// Source reports a user's current live role membership.
type Source interface {
	// CurrentRoles returns the roles the user holds right now. found is
	// false when the user is not a member of the community anymore.
	CurrentRoles(ctx context.Context, discordUserID uint64) (roles []string, found bool, err error)
}
