package tags

import (
	"context"

	"github.com/bily-amin/habitica/internal/server/models"
)

type Repository interface {
	Upsert(ctx context.Context, tag *models.Tag) error
	SetChallenge(ctx context.Context, userID, tagID string, challenge bool) error
}
