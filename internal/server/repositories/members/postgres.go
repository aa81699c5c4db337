// Package members provides the PostgreSQL-backed challenge membership repository.
package members

import (
	"context"
	"fmt"

	"github.com/bily-amin/habitica/internal/common"
	"github.com/bily-amin/habitica/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Add links the user to the challenge. An existing link yields
// common.ErrorAlreadyExists.
func (r *PostgresRepository) Add(ctx context.Context, challengeID, userID string) error {
	query := `INSERT INTO challenge_members (challenge_id, user_id) VALUES ($1, $2)`

	if _, err := r.db.ExecContext(ctx, query, challengeID, userID); err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Remove unlinks the user. Removing an absent link yields common.ErrorNotFound.
func (r *PostgresRepository) Remove(ctx context.Context, challengeID, userID string) error {
	query := `DELETE FROM challenge_members WHERE challenge_id = $1 AND user_id = $2`

	res, err := r.db.ExecContext(ctx, query, challengeID, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.AffectedOne(res, common.ErrorNotFound)
}

func (r *PostgresRepository) IsMember(ctx context.Context, challengeID, userID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM challenge_members WHERE challenge_id = $1 AND user_id = $2)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, challengeID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func (r *PostgresRepository) ListUserIDs(ctx context.Context, challengeID string) ([]string, error) {
	query := `SELECT user_id FROM challenge_members WHERE challenge_id = $1 ORDER BY joined_at`

	rows, err := r.db.QueryContext(ctx, query, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to select members: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
