// Package users provides the PostgreSQL-backed user repository. Only the
// fields the challenge lifecycle reads or writes are mapped.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/bily-amin/habitica/internal/common"
	"github.com/bily-amin/habitica/internal/dbx"
	"github.com/bily-amin/habitica/internal/server/models"
	"github.com/shopspring/decimal"
)

const columns = `id, username, display_name, balance, is_admin, email_won_challenge, push_won_challenge, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*models.User, error) {
	u := &models.User{}
	err := s.Scan(&u.ID, &u.UserName, &u.DisplayName, &u.Balance, &u.IsAdmin,
		&u.Preferences.EmailWonChallenge, &u.Preferences.PushWonChallenge, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + columns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

// ListByIDs loads the given users; unknown ids are skipped.
func (r *PostgresRepository) ListByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := `SELECT ` + columns + ` FROM users WHERE id IN (` + strings.Join(placeholders, ", ") + `) ORDER BY username`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select users: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// DebitBalance subtracts amount from the user's balance. It fails with
// common.ErrorInsufficientBalance when the stored balance does not cover it.
func (r *PostgresRepository) DebitBalance(ctx context.Context, id string, amount decimal.Decimal) error {
	query := `UPDATE users SET balance = balance - $2 WHERE id = $1 AND balance >= $2`

	res, err := r.db.ExecContext(ctx, query, id, amount)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.AffectedOne(res, common.ErrorInsufficientBalance)
}

func (r *PostgresRepository) CreditBalance(ctx context.Context, id string, amount decimal.Decimal) error {
	query := `UPDATE users SET balance = balance + $2 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, amount)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.AffectedOne(res, common.ErrorNotFound)
}

func (r *PostgresRepository) AddAchievement(ctx context.Context, userID, challengeName string) error {
	query := `INSERT INTO user_achievements (user_id, challenge_name) VALUES ($1, $2)`

	if _, err := r.db.ExecContext(ctx, query, userID, challengeName); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
