package types

import (
	"errors"
	"time"
)

var ErrLinkNotFound = errors.New("identity link not found")

// LinkSource identifies how an identity link was established.
type LinkSource string

const (
	LinkSourceSelfVerified  LinkSource = "SELF_VERIFIED"
	LinkSourceAdminManual   LinkSource = "ADMIN_MANUAL"
	LinkSourceTextExtracted LinkSource = "TEXT_EXTRACTED"
	LinkSourceImported      LinkSource = "IMPORTED"
)

// Verified reports whether the source guarantees the link was confirmed
// by the user or an administrator rather than inferred.
func (s LinkSource) Verified() bool {
	return s == LinkSourceSelfVerified || s == LinkSourceAdminManual
}

// InitialConfidence returns the confidence assigned to a freshly created
// link from this source. Verified sources are always fully trusted;
// text extraction is unverified provenance and starts low.
func (s LinkSource) InitialConfidence() float64 {
	switch s {
	case LinkSourceSelfVerified, LinkSourceAdminManual:
		return 1.0
	case LinkSourceImported:
		return 0.5
	case LinkSourceTextExtracted:
		return 0.3
	default:
		return 0.0
	}
}

// IdentityLink binds a Discord user to a game identity with a confidence
// score expressing how trustworthy the binding's provenance is.
// Links are never physically deleted; superseding links mark prior links
// non-primary instead.
type IdentityLink struct {
	DiscordUserID uint64     `bun:",pk"`
	GameID        string     `bun:",pk"`
	Confidence    float64    `bun:",notnull"` // 0.0 - 1.0
	Source        LinkSource `bun:",notnull"`
	IsPrimary     bool       `bun:",notnull"` // At most one primary link per Discord user
	CreatedAt     time.Time  `bun:",notnull"`
	UpdatedAt     time.Time  `bun:",notnull"`
}

// LinkPair is one (user, game identity) binding in a bulk import.
type LinkPair struct {
	DiscordUserID uint64 `json:"discordUserId"`
	GameID        string `json:"gameId"`
}

// MeetsThreshold reports whether the link is trusted enough for the
// given required confidence.
func (l *IdentityLink) MeetsThreshold(required float64) bool {
	return l.Confidence >= required
}
