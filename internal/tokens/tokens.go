package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/targup/targup/backend/auth-service/internal/apperrors"
	"github.com/targup/targup/backend/auth-service/internal/credentials"
	"github.com/targup/targup/backend/auth-service/pkg/metrics"
)

const (
	DefaultIssuer = "targup-backend"
	DefaultTTL    = 10080 * time.Minute
)

// Claims is the payload of an access token. Subject is the user id and ID
// (jti) is the session id.
type Claims struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Provider string `json:"provider"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (credentials.UserID, error) {
	return credentials.ParseUserID(c.Subject)
}

// SessionID parses the jti claim.
func (c *Claims) SessionID() (credentials.SessionID, error) {
	return credentials.ParseSessionID(c.ID)
}

// Remaining returns how long the token stays valid after now (zero if expired).
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	if d := c.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// RevocationChecker reports whether a raw token has been revoked.
type RevocationChecker interface {
	Has(ctx context.Context, token string) (bool, error)
}

// Options configure an Issuer.
type Options struct {
	Secret      []byte
	Issuer      string
	TTL         time.Duration
	Now         func() time.Time
	Revocations RevocationChecker
}

// Issuer signs and verifies HS256 access tokens.
type Issuer struct {
	secret  []byte
	issuer  string
	ttl     time.Duration
	now     func() time.Time
	revoked RevocationChecker
}

func NewIssuer(opts Options) (*Issuer, error) {
	if len(opts.Secret) == 0 {
		return nil, errors.New("tokens: empty signing secret")
	}
	i := &Issuer{secret: opts.Secret, issuer: opts.Issuer, ttl: opts.TTL, now: opts.Now, revoked: opts.Revocations}
	if i.issuer == "" {
		i.issuer = DefaultIssuer
	}
	if i.ttl <= 0 {
		i.ttl = DefaultTTL
	}
	if i.now == nil {
		i.now = time.Now
	}
	return i, nil
}

// TTL is the lifetime given to new tokens.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Now returns the issuer's clock reading.
func (i *Issuer) Now() time.Time { return i.now() }

// SignInput identifies whom a token is issued to.
type SignInput struct {
	UserID   credentials.UserID
	Email    credentials.Email
	Name     string
	Provider string
}

// Sign issues a token for in. Every token gets a fresh session id as jti.
func (i *Issuer) Sign(in SignInput) (string, *Claims, error) {
	now := i.now().UTC().Truncate(time.Second)
	claims := &Claims{
		Email:    in.Email.String(),
		Name:     in.Name,
		Provider: in.Provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   in.UserID.String(),
			ID:        credentials.NewSessionID().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return raw, claims, nil
}

// Verify checks signature, algorithm, issuer and expiry, then consults the
// revocation set. Any validation failure is ErrInvalidToken; a revocation
// store failure is returned wrapped as-is.
func (i *Issuer) Verify(ctx context.Context, raw string) (*Claims, error) {
	claims, err := i.verify(ctx, raw)
	switch {
	case err == nil:
		metrics.TokenVerifications.WithLabelValues("valid").Inc()
	case errors.Is(err, apperrors.ErrInvalidToken):
		metrics.TokenVerifications.WithLabelValues("invalid").Inc()
	default:
		metrics.TokenVerifications.WithLabelValues("error").Inc()
	}
	return claims, err
}

func (i *Issuer) verify(ctx context.Context, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidToken, err)
	}
	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("%w: bad subject", apperrors.ErrInvalidToken)
	}
	if i.revoked != nil {
		revoked, err := i.revoked.Has(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, fmt.Errorf("%w: revoked", apperrors.ErrInvalidToken)
		}
	}
	return claims, nil
}
