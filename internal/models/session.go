package models

import (
	"time"

	"github.com/targup/targup/backend/auth-service/internal/credentials"
)

// Session records an issued bearer token so it can be listed and revoked.
type Session struct {
	ID        credentials.SessionID `json:"id"`
	UserID    credentials.UserID    `json:"userId"`
	Token     credentials.Token     `json:"token"`
	Provider  string                `json:"provider"`
	ExpiresAt time.Time             `json:"expiresAt"`
	IsActive  bool                  `json:"isActive"`
	UserAgent string                `json:"userAgent,omitempty"`
	IPAddress string                `json:"ipAddress,omitempty"`
	Entity
}

// NewSession creates an active session record.
func NewSession(id credentials.SessionID, userID credentials.UserID, token credentials.Token, provider string, expiresAt time.Time) *Session {
	return &Session{
		ID:        id,
		UserID:    userID,
		Token:     token,
		Provider:  provider,
		ExpiresAt: expiresAt,
		IsActive:  true,
		Entity:    newEntity(),
	}
}

func (s *Session) IsExpired(now time.Time) bool { return now.After(s.ExpiresAt) }

func (s *Session) Deactivate() {
	s.IsActive = false
	s.touch()
}

func (s *Session) ExtendExpiration(t time.Time) {
	s.ExpiresAt = t
	s.touch()
}
