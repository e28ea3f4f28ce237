package credentials

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/targup/targup/backend/auth-service/internal/apperrors"
)

const (
	// DefaultMinPasswordLength is used when no policy is configured.
	DefaultMinPasswordLength = 8
	// DefaultHashCost is the bcrypt cost used when none is configured.
	DefaultHashCost = 10
)

// Password is either a plaintext candidate or a one-way digest.
type Password struct {
	value  string
	hashed bool
}

// NewPassword validates plain against the minimum length and returns an
// unhashed Password. minLen <= 0 falls back to DefaultMinPasswordLength.
func NewPassword(plain string, minLen int) (Password, error) {
	if minLen <= 0 {
		minLen = DefaultMinPasswordLength
	}
	if len(plain) < minLen {
		return Password{}, fmt.Errorf("password shorter than %d characters: %w", minLen, apperrors.ErrTooShort)
	}
	return Password{value: plain}, nil
}

// HashedPassword wraps a digest loaded from storage or an OAuth placeholder.
func HashedPassword(digest string) Password {
	return Password{value: digest, hashed: true}
}

// Hash returns a hashed copy of p. Hashing an already hashed password
// returns it unchanged.
func (p Password) Hash(cost int) (Password, error) {
	if p.hashed {
		return p, nil
	}
	if cost <= 0 {
		cost = DefaultHashCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(p.value), cost)
	if err != nil {
		return Password{}, fmt.Errorf("hash password: %w", err)
	}
	return Password{value: string(b), hashed: true}, nil
}

// Compare reports whether plain matches the digest. Digests that are not
// bcrypt hashes, such as OAuth placeholders, never match.
func (p Password) Compare(plain string) (bool, error) {
	if !p.hashed {
		return false, fmt.Errorf("compare unhashed password: %w", apperrors.ErrInvalidState)
	}
	// any bcrypt error (mismatch, too short, bad prefix) is a non-match
	return bcrypt.CompareHashAndPassword([]byte(p.value), []byte(plain)) == nil, nil
}

// Value returns the digest or plaintext. Only hashed values should ever be persisted.
func (p Password) Value() string { return p.value }

func (p Password) IsHashed() bool { return p.hashed }
