package sync

import "github.com/wardenhq/warden/internal/database/types"

// RoleRule describes what a community role grants when held: the
// privilege tier and an optional duration (nil = permanent).
type RoleRule struct {
	Tier          types.EntryType
	DurationValue *int64
	DurationUnit  *types.DurationUnit
}

// Policy is the security policy the reconcilers enforce: which roles are
// whitelist-relevant and how much link confidence each privilege tier
// requires.
type Policy struct {
	Rules      map[string]RoleRule // Keyed by role name
	Thresholds map[types.EntryType]float64
}

// Rule looks up the rule for a role. Roles without a rule are not
// whitelist-relevant and their observations are ignored.
func (p Policy) Rule(role string) (RoleRule, bool) {
	rule, ok := p.Rules[role]
	return rule, ok
}

// Threshold returns the required link confidence for a tier. Unknown
// tiers require full confidence so a misconfiguration fails closed.
func (p Policy) Threshold(tier types.EntryType) float64 {
	required, ok := p.Thresholds[tier]
	if !ok {
		return 1.0
	}

	return required
}
