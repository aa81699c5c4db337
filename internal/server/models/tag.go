package models

// Tag is a user's label. Joining a challenge adds a tag whose ID equals the
// challenge id with Challenge set; closure flips Challenge off.
type Tag struct {
	ID        string
	UserID    string
	Name      string
	Challenge bool
}
