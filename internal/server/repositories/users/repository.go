package users

import (
	"context"

	"github.com/bily-amin/habitica/internal/server/models"
	"github.com/shopspring/decimal"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]*models.User, error)
	DebitBalance(ctx context.Context, id string, amount decimal.Decimal) error
	CreditBalance(ctx context.Context, id string, amount decimal.Decimal) error
	AddAchievement(ctx context.Context, userID, challengeName string) error
}
