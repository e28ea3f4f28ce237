package credentials

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/targup/targup/backend/auth-service/internal/apperrors"
)

// UserID identifies a User. The zero value is invalid.
type UserID struct {
	value string
}

// SessionID identifies an issued session (the token's jti).
type SessionID struct {
	value string
}

// NewUserID generates a fresh random UserID.
func NewUserID() UserID { return UserID{value: uuid.NewString()} }

// ParseUserID validates s as a canonical UUID.
func ParseUserID(s string) (UserID, error) {
	v, err := parseUUID(s)
	if err != nil {
		return UserID{}, fmt.Errorf("user id: %w", err)
	}
	return UserID{value: v}, nil
}

func (id UserID) String() string { return id.value }
func (id UserID) IsZero() bool   { return id.value == "" }

// NewSessionID generates a fresh random SessionID.
func NewSessionID() SessionID { return SessionID{value: uuid.NewString()} }

// ParseSessionID validates s as a canonical UUID.
func ParseSessionID(s string) (SessionID, error) {
	v, err := parseUUID(s)
	if err != nil {
		return SessionID{}, fmt.Errorf("session id: %w", err)
	}
	return SessionID{value: v}, nil
}

func (id SessionID) String() string { return id.value }
func (id SessionID) IsZero() bool   { return id.value == "" }

// parseUUID accepts only the hyphenated 36 character form; uuid.Parse alone
// would also accept braces, urn: prefixes and bare hex.
func parseUUID(s string) (string, error) {
	if len(s) != 36 {
		return "", fmt.Errorf("%q is not a uuid: %w", s, apperrors.ErrInvalidFormat)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%q is not a uuid: %w", s, apperrors.ErrInvalidFormat)
	}
	return u.String(), nil
}

func (id UserID) MarshalText() ([]byte, error) { return []byte(id.value), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	v, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

func (id SessionID) MarshalText() ([]byte, error) { return []byte(id.value), nil }

func (id *SessionID) UnmarshalText(b []byte) error {
	v, err := ParseSessionID(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}
