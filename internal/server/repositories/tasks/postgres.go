// Package tasks provides the PostgreSQL-backed task repository.
package tasks

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bily-amin/habitica/internal/dbx"
	"github.com/bily-amin/habitica/internal/server/models"
)

const columns = `id, type, text, notes, value, completed, user_id, challenge_id,
		challenge_task_id, challenge_broken, challenge_winner, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// nullable maps the empty string to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Create inserts the tasks in order and fills CreatedAt.
func (r *PostgresRepository) Create(ctx context.Context, tasks ...*models.Task) error {
	query := `
		INSERT INTO tasks (id, type, text, notes, value, completed, user_id, challenge_id, challenge_task_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`

	for _, t := range tasks {
		err := r.db.QueryRowContext(ctx, query,
			t.ID, string(t.Type), t.Text, t.Notes, t.Value, t.Completed,
			nullable(t.UserID), nullable(t.Challenge.ID), nullable(t.Challenge.TaskID),
		).Scan(&t.CreatedAt)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

// ListTemplates returns the challenge's master tasks.
func (r *PostgresRepository) ListTemplates(ctx context.Context, challengeID string) ([]*models.Task, error) {
	query := `SELECT ` + columns + ` FROM tasks
		WHERE challenge_id = $1 AND user_id IS NULL
		ORDER BY created_at, id`

	return r.list(ctx, query, challengeID)
}

// ListMirrors returns every member copy still linked to the challenge.
func (r *PostgresRepository) ListMirrors(ctx context.Context, challengeID string) ([]*models.Task, error) {
	query := `SELECT ` + columns + ` FROM tasks
		WHERE challenge_id = $1 AND user_id IS NOT NULL
		ORDER BY user_id, created_at`

	return r.list(ctx, query, challengeID)
}

// DetachMirrors turns the user's copies into standalone tasks.
func (r *PostgresRepository) DetachMirrors(ctx context.Context, challengeID, userID string) (int64, error) {
	query := `
		UPDATE tasks SET challenge_id = NULL, challenge_task_id = NULL
		WHERE challenge_id = $1 AND user_id = $2`

	return r.exec(ctx, query, challengeID, userID)
}

func (r *PostgresRepository) DeleteMirrors(ctx context.Context, challengeID, userID string) (int64, error) {
	query := `DELETE FROM tasks WHERE challenge_id = $1 AND user_id = $2`

	return r.exec(ctx, query, challengeID, userID)
}

func (r *PostgresRepository) DeleteTemplates(ctx context.Context, challengeID string) (int64, error) {
	query := `DELETE FROM tasks WHERE challenge_id = $1 AND user_id IS NULL`

	return r.exec(ctx, query, challengeID)
}

// BreakMirrors stamps the closure reason on member copies that are not yet
// broken. Already broken rows are left untouched so the reason never changes.
func (r *PostgresRepository) BreakMirrors(ctx context.Context, challengeID string, reason models.ClosureReason, winner string) (int64, error) {
	query := `
		UPDATE tasks SET challenge_broken = $2, challenge_winner = $3
		WHERE challenge_id = $1 AND user_id IS NOT NULL AND challenge_broken IS NULL`

	return r.exec(ctx, query, challengeID, string(reason), nullable(winner))
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select tasks: %w", err)
	}
	defer rows.Close()

	var result []*models.Task
	for rows.Next() {
		var (
			t                                         models.Task
			typ                                       string
			userID, chID, chTaskID, broken, winnerCol sql.NullString
		)
		err := rows.Scan(&t.ID, &typ, &t.Text, &t.Notes, &t.Value, &t.Completed,
			&userID, &chID, &chTaskID, &broken, &winnerCol, &t.CreatedAt)
		if err != nil {
			return nil, err
		}
		t.Type = models.TaskType(typ)
		t.UserID = userID.String
		t.Challenge = models.TaskChallenge{
			ID:     chID.String,
			TaskID: chTaskID.String,
			Broken: models.ClosureReason(broken.String),
			Winner: winnerCol.String,
		}
		result = append(result, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
