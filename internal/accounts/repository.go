// Package accounts stores the links between external provider identities and
// users.
package accounts

import (
	"context"

	"github.com/targup/targup/backend/auth-service/internal/credentials"
	"github.com/targup/targup/backend/auth-service/internal/models"
)

// Repository persists OAuthAccount links.
//
// FindByProvider returns (nil, nil) when no link exists. Create fails with
// apperrors.ErrDuplicate when (provider, providerId) is already linked. There
// is no update: a link's owner never changes.
type Repository interface {
	FindByProvider(ctx context.Context, provider, providerID string) (*models.OAuthAccount, error)
	FindByUserID(ctx context.Context, userID credentials.UserID) ([]*models.OAuthAccount, error)
	Create(ctx context.Context, a *models.OAuthAccount) error
}
