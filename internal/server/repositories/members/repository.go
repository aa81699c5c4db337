package members

import "context"

// Repository stores each user's set of joined challenges.
type Repository interface {
	Add(ctx context.Context, challengeID, userID string) error
	Remove(ctx context.Context, challengeID, userID string) error
	IsMember(ctx context.Context, challengeID, userID string) (bool, error)
	ListUserIDs(ctx context.Context, challengeID string) ([]string, error)
}
