package models

import (
	"github.com/targup/targup/backend/auth-service/internal/credentials"
)

// OAuthAccount links one (Provider, ProviderID) identity to exactly one User.
// The owning UserID is fixed at creation; nothing in the service reassigns it.
type OAuthAccount struct {
	ID         string             `json:"id"`
	Provider   string             `json:"provider"`
	ProviderID string             `json:"providerId"`
	Email      string             `json:"email"`
	UserID     credentials.UserID `json:"userId"`
	Entity
}

// NewOAuthAccount builds a link whose surrogate id is derived from the
// natural key.
func NewOAuthAccount(provider, providerID, email string, userID credentials.UserID) *OAuthAccount {
	return &OAuthAccount{
		ID:         provider + ":" + providerID,
		Provider:   provider,
		ProviderID: providerID,
		Email:      email,
		UserID:     userID,
		Entity:     newEntity(),
	}
}
