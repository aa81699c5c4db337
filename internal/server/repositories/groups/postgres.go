// Package groups provides the PostgreSQL-backed group repository.
package groups

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bily-amin/habitica/internal/common"
	"github.com/bily-amin/habitica/internal/dbx"
	"github.com/bily-amin/habitica/internal/server/models"
	"github.com/shopspring/decimal"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Group, error) {
	query := `
		SELECT id, name, kind, privacy, COALESCE(leader_id::text, ''), leader_only_challenges, balance, challenge_count
		FROM groups WHERE id = $1`

	g := &models.Group{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&g.ID, &g.Name, &g.Kind, &g.Privacy, &g.LeaderID, &g.LeaderOnlyChallenges, &g.Balance, &g.ChallengeCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return g, nil
}

func (r *PostgresRepository) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, groupID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

// DebitBalance subtracts amount from the group balance. It fails with
// common.ErrorInsufficientBalance when the stored balance does not cover it.
func (r *PostgresRepository) DebitBalance(ctx context.Context, id string, amount decimal.Decimal) error {
	query := `UPDATE groups SET balance = balance - $2 WHERE id = $1 AND balance >= $2`

	res, err := r.db.ExecContext(ctx, query, id, amount)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.AffectedOne(res, common.ErrorInsufficientBalance)
}

// AdjustChallengeCount adds delta to challenge_count, clamping at zero so a
// stale counter cannot fail a closure.
func (r *PostgresRepository) AdjustChallengeCount(ctx context.Context, id string, delta int) error {
	query := `UPDATE groups SET challenge_count = GREATEST(challenge_count + $2, 0) WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, delta)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.AffectedOne(res, common.ErrorNotFound)
}
