package groups

import (
	"context"

	"github.com/bily-amin/habitica/internal/server/models"
	"github.com/shopspring/decimal"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*models.Group, error)
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
	DebitBalance(ctx context.Context, id string, amount decimal.Decimal) error
	AdjustChallengeCount(ctx context.Context, id string, delta int) error
}
