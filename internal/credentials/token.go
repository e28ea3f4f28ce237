package credentials

import (
	"fmt"

	"github.com/targup/targup/backend/auth-service/internal/apperrors"
)

// MinTokenLength is the shortest accepted session secret.
const MinTokenLength = 10

// Token is an opaque session secret.
type Token struct {
	value string
}

// NewToken rejects values shorter than MinTokenLength.
func NewToken(s string) (Token, error) {
	if len(s) < MinTokenLength {
		return Token{}, fmt.Errorf("token shorter than %d characters: %w", MinTokenLength, apperrors.ErrTooShort)
	}
	return Token{value: s}, nil
}

func (t Token) String() string { return t.value }

func (t Token) MarshalText() ([]byte, error) { return []byte(t.value), nil }

func (t *Token) UnmarshalText(b []byte) error {
	v, err := NewToken(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
