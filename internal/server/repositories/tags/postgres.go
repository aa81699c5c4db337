// Package tags provides the PostgreSQL-backed user tag repository.
package tags

import (
	"context"
	"fmt"

	"github.com/bily-amin/habitica/internal/dbx"
	"github.com/bily-amin/habitica/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert creates the tag or refreshes its name and challenge flag.
func (r *PostgresRepository) Upsert(ctx context.Context, tag *models.Tag) error {
	query := `
		INSERT INTO tags (user_id, id, name, challenge)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, id)
		DO UPDATE SET name = EXCLUDED.name, challenge = EXCLUDED.challenge`

	if _, err := r.db.ExecContext(ctx, query, tag.UserID, tag.ID, tag.Name, tag.Challenge); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// SetChallenge flips the challenge flag. A missing tag is not an error.
func (r *PostgresRepository) SetChallenge(ctx context.Context, userID, tagID string, challenge bool) error {
	query := `UPDATE tags SET challenge = $3 WHERE user_id = $1 AND id = $2`

	if _, err := r.db.ExecContext(ctx, query, userID, tagID, challenge); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
