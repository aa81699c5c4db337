// Package policy decides what an actor may do with a challenge.
package policy

import "github.com/bily-amin/habitica/internal/server/models"

// Capabilities is a bit set of allowed actions.
type Capabilities uint8

const (
	View Capabilities = 1 << iota
	Join
	Modify
)

// Has reports whether every bit of c2 is set in c.
func (c Capabilities) Has(c2 Capabilities) bool {
	return c&c2 == c2
}

// Actor is the acting user as far as authorization is concerned.
type Actor struct {
	ID      string
	IsAdmin bool
}

// Relationship carries facts about the actor that live outside the challenge
// and group records.
type Relationship struct {
	// IsMember is true when the challenge is in the actor's challenge set.
	IsMember bool
	// InGroup is true when the actor belongs to the challenge's group.
	InGroup bool
	// PublicGroupID identifies the sentinel public group.
	PublicGroupID string
}

// Evaluate returns the actor's capabilities on the challenge.
func Evaluate(actor Actor, c *models.Challenge, g *models.Group, rel Relationship) Capabilities {
	var caps Capabilities

	if actor.IsAdmin || (c != nil && c.LeaderID == actor.ID) {
		caps |= Modify
	}
	if hasAccess(g, rel) {
		caps |= Join
	}
	if rel.IsMember || caps&(Join|Modify) != 0 {
		caps |= View
	}
	return caps
}

func hasAccess(g *models.Group, rel Relationship) bool {
	if g == nil {
		return false
	}
	if g.ID == rel.PublicGroupID {
		return true
	}
	if g.Kind == models.GroupGuild && g.Privacy == models.PrivacyPublic {
		return true
	}
	return rel.InGroup
}

// Membership selects how strictly a group lookup enforces membership.
type Membership int

const (
	// Default requires membership only for private groups.
	Default Membership = iota
	// MustBeMember requires membership for every group but the public one.
	MustBeMember
	// OptionalMembership never rejects; the caller decides.
	OptionalMembership
)

// CanSeeGroup applies a membership mode to a group. The public group is
// visible to everyone.
func CanSeeGroup(g *models.Group, inGroup bool, mode Membership, publicGroupID string) bool {
	if g == nil {
		return false
	}
	if g.ID == publicGroupID {
		return true
	}
	switch mode {
	case OptionalMembership:
		return true
	case MustBeMember:
		return inGroup
	default:
		return inGroup || g.Privacy == models.PrivacyPublic
	}
}
