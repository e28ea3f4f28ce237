// Package credentials holds the self-validating value objects used by the
// auth core: email addresses, passwords, identifiers and opaque tokens.
//
// Every value is immutable once constructed and compares equal by value, so
// instances can be used directly with == and as map keys.
package credentials

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/targup/targup/backend/auth-service/internal/apperrors"
)

var validate = validator.New()

// Email is a validated, lower-cased email address.
type Email struct {
	value string
}

// NewEmail validates raw and returns its canonical (lower-cased) form.
func NewEmail(raw string) (Email, error) {
	if err := validate.Var(raw, "required,email"); err != nil {
		return Email{}, fmt.Errorf("email %q: %w", raw, apperrors.ErrInvalidFormat)
	}
	return Email{value: strings.ToLower(raw)}, nil
}

// MustEmail is NewEmail for literals known to be valid; it panics otherwise.
func MustEmail(raw string) Email {
	e, err := NewEmail(raw)
	if err != nil {
		panic(err)
	}
	return e
}

func (e Email) String() string { return e.value }

// IsZero reports whether e was never constructed.
func (e Email) IsZero() bool { return e.value == "" }

func (e Email) Equal(o Email) bool { return e.value == o.value }

func (e Email) MarshalText() ([]byte, error) { return []byte(e.value), nil }

func (e *Email) UnmarshalText(b []byte) error {
	v, err := NewEmail(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}
