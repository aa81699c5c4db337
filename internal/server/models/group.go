package models

import "github.com/shopspring/decimal"

type GroupKind string

const (
	GroupParty GroupKind = "party"
	GroupGuild GroupKind = "guild"
)

type GroupPrivacy string

const (
	PrivacyPublic  GroupPrivacy = "public"
	PrivacyPrivate GroupPrivacy = "private"
)

type Group struct {
	ID                   string
	Name                 string
	Kind                 GroupKind
	Privacy              GroupPrivacy
	LeaderID             string
	LeaderOnlyChallenges bool
	Balance              decimal.Decimal
	ChallengeCount       int
	// IsMember is filled by membership-aware lookups for the acting user.
	IsMember bool
}
