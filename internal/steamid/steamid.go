// Package steamid validates game identities at the boundary so malformed
// identifiers are rejected before any ledger or link write.
package steamid

import "errors"

var ErrInvalidGameID = errors.New("invalid game id format")

const (
	// Length is the fixed length of a Steam64-style identifier.
	Length = 17

	// Prefix is the fixed leading digit run shared by all individual
	// account identifiers.
	Prefix = "7656119"
)

// Validate checks that id is a well-formed Steam64-style game identity:
// exactly 17 digits with the fixed account prefix.
func Validate(id string) error {
	if len(id) != Length {
		return ErrInvalidGameID
	}

	for _, c := range id {
		if c < '0' || c > '9' {
			return ErrInvalidGameID
		}
	}

	if id[:len(Prefix)] != Prefix {
		return ErrInvalidGameID
	}

	return nil
}
