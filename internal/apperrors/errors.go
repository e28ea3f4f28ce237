// Package apperrors defines the error kinds surfaced by the auth core and
// their mapping to HTTP responses.
package apperrors

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidFormat is returned for a malformed email, id or token.
	ErrInvalidFormat = errors.New("invalid format")
	// ErrTooShort is returned when a password or token is below its minimum length.
	ErrTooShort = errors.New("value too short")
	// ErrInvalidAuthCode is returned when the provider profile lacks required fields.
	ErrInvalidAuthCode = errors.New("invalid authorization code")
	// ErrUserNotFound is returned when a linked account points at a missing user.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserAlreadyExists is returned when registering an email that is taken.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrInvalidToken is returned for a bad signature, issuer, expiry or a revoked token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidState is returned when comparing against an unhashed password.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidCredentials is returned when local email/password login fails.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnknownProvider is returned for a provider name that is not registered.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrDuplicate is returned by repositories when a unique constraint is violated.
	ErrDuplicate = errors.New("duplicate key")
)

// ErrorResponse is the JSON body written for failed requests.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type kind struct {
	err    error
	status int
	code   string
	// opaque kinds answer with the sentinel text only
	opaque bool
}

// order matters: the first kind matched by errors.Is wins.
var kinds = []kind{
	{ErrInvalidFormat, http.StatusBadRequest, "INVALID_FORMAT", false},
	{ErrTooShort, http.StatusBadRequest, "WEAK_CREDENTIAL", false},
	{ErrInvalidAuthCode, http.StatusBadRequest, "INVALID_AUTH_CODE", true},
	{ErrInvalidToken, http.StatusUnauthorized, "INVALID_TOKEN", false},
	{ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS", false},
	{ErrUnknownProvider, http.StatusNotFound, "UNKNOWN_PROVIDER", false},
	{ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND", false},
	{ErrUserAlreadyExists, http.StatusConflict, "USER_ALREADY_EXISTS", false},
	{ErrInvalidState, http.StatusInternalServerError, "INVALID_STATE", false},
}

// HTTPStatus maps err to the status code the HTTP layer should return.
func HTTPStatus(err error) int {
	if k, ok := lookup(err); ok {
		return k.status
	}
	return http.StatusInternalServerError
}

// Code returns the stable machine-readable code for err.
func Code(err error) string {
	if k, ok := lookup(err); ok {
		return k.code
	}
	return "INTERNAL_ERROR"
}

// ToResponse builds the response body for err. Unknown errors are reported
// generically so storage or network details do not leak to clients.
func ToResponse(err error) ErrorResponse {
	k, ok := lookup(err)
	switch {
	case !ok:
		return ErrorResponse{Success: false, Message: "internal server error", Code: "INTERNAL_ERROR"}
	case k.status >= http.StatusInternalServerError:
		return ErrorResponse{Success: false, Message: "internal server error", Code: k.code}
	case k.opaque:
		return ErrorResponse{Success: false, Message: k.err.Error(), Code: k.code}
	}
	return ErrorResponse{Success: false, Message: err.Error(), Code: k.code}
}

// Withheld reports whether ToResponse drops detail from err's message.
func Withheld(err error) bool {
	k, ok := lookup(err)
	return ok && k.opaque && err.Error() != k.err.Error()
}

func lookup(err error) (kind, bool) {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k, true
		}
	}
	return kind{}, false
}
