package accounts

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

const selectAccount = `SELECT id, provider, provider_id, email, user_id, created_at, updated_at FROM oauth_accounts`

// PostgresRepository implements Repository on PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (*models.OAuthAccount, error) {
	var (
		a                models.OAuthAccount
		userID           string
		created, updated time.Time
	)
	if err := s.Scan(&a.ID, &a.Provider, &a.ProviderID, &a.Email, &userID, &created, &updated); err != nil {
		return nil, err
	}
	uid, err := credentials.ParseUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", a.ID, err)
	}
	a.UserID = uid
	a.Entity = models.Entity{CreatedAt: created, UpdatedAt: updated}
	return &a, nil
}

func (r *PostgresRepository) FindByProvider(ctx context.Context, provider, providerID string) (*models.OAuthAccount, error) {
	row := r.db.QueryRowContext(ctx, selectAccount+` WHERE provider = $1 AND provider_id = $2`, provider, providerID)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) FindByUserID(ctx context.Context, userID credentials.UserID) ([]*models.OAuthAccount, error) {
	rows, err := r.db.QueryContext(ctx, selectAccount+` WHERE user_id = $1 ORDER BY id`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()
	out := []*models.OAuthAccount{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.OAuthAccount) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO oauth_accounts (id, provider, provider_id, email, user_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Provider, a.ProviderID, a.Email, a.UserID.String(), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return fmt.Errorf("failed to insert account %s: %w", a.ID, apperrors.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// compile-time interface check
var _ Repository = (*PostgresRepository)(nil)
