package tasks

import (
	"context"

	"github.com/bily-amin/habitica/internal/server/models"
)

// Repository stores challenge template tasks and their per-member mirrors.
type Repository interface {
	Create(ctx context.Context, tasks ...*models.Task) error
	ListTemplates(ctx context.Context, challengeID string) ([]*models.Task, error)
	ListMirrors(ctx context.Context, challengeID string) ([]*models.Task, error)
	DetachMirrors(ctx context.Context, challengeID, userID string) (int64, error)
	DeleteMirrors(ctx context.Context, challengeID, userID string) (int64, error)
	DeleteTemplates(ctx context.Context, challengeID string) (int64, error)
	BreakMirrors(ctx context.Context, challengeID string, reason models.ClosureReason, winner string) (int64, error)
}
