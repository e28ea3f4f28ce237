package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/targup/targup/backend/auth-service/internal/apperrors"
	"github.com/targup/targup/backend/auth-service/internal/credentials"
	"github.com/targup/targup/backend/auth-service/internal/database"
	"github.com/targup/targup/backend/auth-service/internal/models"
)

const selectUser = `SELECT id, email, password, name, is_active, created_at, updated_at FROM users`

// PostgresRepository implements Repository on PostgreSQL via database/sql.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.User, error) {
	var (
		id, email, password, name string
		active                    bool
		created, updated          time.Time
	)
	err := row.Scan(&id, &email, &password, &name, &active, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return restoreUser(id, email, password, name, active, created, updated)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id credentials.UserID) (*models.User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectUser+` WHERE id = $1`, id.String()))
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email credentials.Email) (*models.User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectUser+` WHERE email = $1`, email.String()))
}

func (r *PostgresRepository) FindByEmailString(ctx context.Context, email string) (*models.User, error) {
	return findByEmailString(ctx, r, email)
}

func (r *PostgresRepository) Save(ctx context.Context, u *models.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password, name, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID.String(), u.Email.String(), u.Password.Value(), u.Name, u.IsActive, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return fmt.Errorf("failed to insert user %s: %w", u.Email, apperrors.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, u *models.User) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET email = $2, password = $3, name = $4, is_active = $5, updated_at = $6 WHERE id = $1`,
		u.ID.String(), u.Email.String(), u.Password.Value(), u.Name, u.IsActive, u.UpdatedAt,
	)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return fmt.Errorf("failed to update user %s: %w", u.ID, apperrors.ErrDuplicate)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return expectOneRow(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id credentials.UserID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return expectOneRow(res)
}

func (r *PostgresRepository) Exists(ctx context.Context, email credentials.Email) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// compile-time interface check
var _ Repository = (*PostgresRepository)(nil)
