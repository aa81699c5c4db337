package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID          string
	UserName    string
	DisplayName string
	Balance     decimal.Decimal
	IsAdmin     bool
	Preferences NotificationPreferences
	CreatedAt   time.Time
}

// NotificationPreferences are the user's opt-ins for challenge outcomes.
type NotificationPreferences struct {
	EmailWonChallenge bool
	PushWonChallenge  bool
}

// Achievement records a challenge the user has won.
type Achievement struct {
	UserID        string
	ChallengeName string
	WonAt         time.Time
}
