// Package challenges provides the PostgreSQL-backed challenge repository.
package challenges

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bily-amin/habitica/internal/common"
	"github.com/bily-amin/habitica/internal/dbx"
	"github.com/bily-amin/habitica/internal/server/models"
)

const columns = `id, name, short_name, summary, description, group_id, leader_id,
		prize, member_count, official, tasks_order, created_at, updated_at`

// PostgresRepository implements challenge storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChallenge(s scanner) (*models.Challenge, error) {
	c := &models.Challenge{}
	err := s.Scan(&c.ID, &c.Name, &c.ShortName, &c.Summary, &c.Description, &c.GroupID, &c.LeaderID,
		&c.Prize, &c.MemberCount, &c.Official, &c.TasksOrder, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Challenge) error {
	query := `
		INSERT INTO challenges (id, name, short_name, summary, description, group_id, leader_id,
			prize, member_count, official, tasks_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		c.ID, c.Name, c.ShortName, c.Summary, c.Description, c.GroupID, c.LeaderID,
		c.Prize, c.MemberCount, c.Official, c.TasksOrder,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Challenge, error) {
	query := `SELECT ` + columns + ` FROM challenges WHERE id = $1`

	c, err := scanChallenge(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

// Update persists the editable fields and refreshes c from the stored row.
// The tasks order is only changed through AppendTaskOrder.
func (r *PostgresRepository) Update(ctx context.Context, c *models.Challenge) error {
	query := `
		UPDATE challenges
		SET name = $2, short_name = $3, summary = $4, description = $5, updated_at = now()
		WHERE id = $1
		RETURNING ` + columns

	fresh, err := scanChallenge(r.db.QueryRowContext(ctx, query, c.ID, c.Name, c.ShortName, c.Summary, c.Description))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	*c = *fresh
	return nil
}

// AppendTaskOrder appends taskID to the tasks order partition of the given
// task type in a single statement and returns the resulting order.
func (r *PostgresRepository) AppendTaskOrder(ctx context.Context, id string, t models.TaskType, taskID string) (models.TasksOrder, error) {
	query := `
		UPDATE challenges
		SET tasks_order = jsonb_set(
				COALESCE(tasks_order, '{}'::jsonb),
				ARRAY[$2::text],
				CASE WHEN jsonb_typeof(tasks_order->$2) = 'array' THEN tasks_order->$2 ELSE '[]'::jsonb END
					|| to_jsonb($3::text)),
			updated_at = now()
		WHERE id = $1
		RETURNING tasks_order`

	var order models.TasksOrder
	err := r.db.QueryRowContext(ctx, query, id, t.OrderKey(), taskID).Scan(&order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.TasksOrder{}, common.ErrorNotFound
		}
		return models.TasksOrder{}, fmt.Errorf("db error: %w", err)
	}
	return order, nil
}

// AdjustMemberCount atomically adds delta to member_count and returns the
// new count. The count never drops below zero.
func (r *PostgresRepository) AdjustMemberCount(ctx context.Context, id string, delta int) (int, error) {
	query := `
		UPDATE challenges SET member_count = member_count + $2
		WHERE id = $1 AND member_count + $2 >= 0
		RETURNING member_count`

	var count int
	if err := r.db.QueryRowContext(ctx, query, id, delta).Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return count, nil
}

// Delete hard-deletes the challenge and returns the removed row. A second
// call for the same id returns common.ErrorNotFound.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (*models.Challenge, error) {
	query := `DELETE FROM challenges WHERE id = $1 RETURNING ` + columns

	c, err := scanChallenge(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

// ListForUser returns challenges the user is a member of, leads, or whose
// group the user belongs to, plus every challenge of the public group.
// Official challenges come first, then the newest.
func (r *PostgresRepository) ListForUser(ctx context.Context, userID, publicGroupID string, offset, limit int) ([]*models.Challenge, error) {
	query := `SELECT ` + columns + ` FROM challenges c
		WHERE c.leader_id = $1
		   OR c.group_id = $2
		   OR EXISTS (SELECT 1 FROM challenge_members m WHERE m.challenge_id = c.id AND m.user_id = $1)
		   OR EXISTS (SELECT 1 FROM group_members g WHERE g.group_id = c.group_id AND g.user_id = $1)
		ORDER BY c.official DESC, c.created_at DESC
		LIMIT $3 OFFSET $4`

	return r.list(ctx, query, userID, publicGroupID, limit, offset)
}

func (r *PostgresRepository) ListByGroup(ctx context.Context, groupID string) ([]*models.Challenge, error) {
	query := `SELECT ` + columns + ` FROM challenges
		WHERE group_id = $1
		ORDER BY official DESC, created_at DESC`

	return r.list(ctx, query, groupID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Challenge, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select challenges: %w", err)
	}
	defer rows.Close()

	var result []*models.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
