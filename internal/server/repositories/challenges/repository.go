package challenges

import (
	"context"

	"github.com/bily-amin/habitica/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, c *models.Challenge) error
	GetByID(ctx context.Context, id string) (*models.Challenge, error)
	Update(ctx context.Context, c *models.Challenge) error
	AppendTaskOrder(ctx context.Context, id string, t models.TaskType, taskID string) (models.TasksOrder, error)
	AdjustMemberCount(ctx context.Context, id string, delta int) (int, error)
	Delete(ctx context.Context, id string) (*models.Challenge, error)
	ListForUser(ctx context.Context, userID, publicGroupID string, offset, limit int) ([]*models.Challenge, error)
	ListByGroup(ctx context.Context, groupID string) ([]*models.Challenge, error)
}
