// Package signin links external provider identities to users and issues
// session tokens for them.
package signin

import (
	"context"
	"errors"
	"fmt"

	"github.com/targup/targup/backend/auth-service/internal/accounts"
	"github.com/targup/targup/backend/auth-service/internal/apperrors"
	"github.com/targup/targup/backend/auth-service/internal/credentials"
	"github.com/targup/targup/backend/auth-service/internal/models"
	"github.com/targup/targup/backend/auth-service/internal/providers"
	"github.com/targup/targup/backend/auth-service/internal/sessions"
	"github.com/targup/targup/backend/auth-service/internal/tokens"
	"github.com/targup/targup/backend/auth-service/internal/users"
	"github.com/targup/targup/backend/auth-service/pkg/logger"
	"github.com/targup/targup/backend/auth-service/pkg/metrics"
)

// Outcome classifies a successful sign-in.
type Outcome string

const (
	OutcomeNewUser   Outcome = "new_user"  // user and link created
	OutcomeLinked    Outcome = "linked"    // existing user, new link
	OutcomeReturning Outcome = "returning" // existing link
)

// ProviderLookup resolves a provider by name. Satisfied by *providers.Registry.
type ProviderLookup interface {
	Get(name string) (providers.Provider, error)
}

// Signer issues tokens. Satisfied by *tokens.Issuer.
type Signer interface {
	Sign(in tokens.SignInput) (string, *tokens.Claims, error)
}

// SessionRecorder stores issued sessions. Satisfied by *sessions.Service.
type SessionRecorder interface {
	Record(ctx context.Context, claims *tokens.Claims, token string, meta sessions.Meta) error
}

// Result is returned by a successful sign-in.
type Result struct {
	User    *models.User
	Token   string
	Claims  *tokens.Claims
	Outcome Outcome
}

type Service struct {
	providers ProviderLookup
	users     users.Repository
	accounts  accounts.Repository
	signer    Signer
	sessions  SessionRecorder
}

// NewService wires the linking service. recorder may be nil.
func NewService(p ProviderLookup, u users.Repository, a accounts.Repository, signer Signer, recorder SessionRecorder) *Service {
	return &Service{providers: p, users: u, accounts: a, signer: signer, sessions: recorder}
}

// AuthURL returns the provider's authorization URL carrying state.
func (s *Service) AuthURL(providerName, state string) (string, error) {
	p, err := s.providers.Get(providerName)
	if err != nil {
		return "", err
	}
	return p.AuthURL(state), nil
}

// CompleteProviderSignIn exchanges code with the named provider, links the
// resulting identity to a user and issues a token.
func (s *Service) CompleteProviderSignIn(ctx context.Context, providerName, code string) (*Result, error) {
	return s.CompleteProviderSignInWithMeta(ctx, providerName, code, sessions.Meta{})
}

// CompleteProviderSignInWithMeta is CompleteProviderSignIn recording request
// metadata with the session.
func (s *Service) CompleteProviderSignInWithMeta(ctx context.Context, providerName, code string, meta sessions.Meta) (*Result, error) {
	res, err := s.complete(ctx, providerName, code, meta)
	if err != nil {
		metrics.SignIns.WithLabelValues(providerName, "error").Inc()
		return nil, err
	}
	metrics.SignIns.WithLabelValues(providerName, string(res.Outcome)).Inc()
	logger.Infow("provider sign-in", "provider", providerName, "outcome", string(res.Outcome), "user", res.User.ID.String())
	return res, nil
}

func (s *Service) complete(ctx context.Context, providerName, code string, meta sessions.Meta) (*Result, error) {
	p, err := s.providers.Get(providerName)
	if err != nil {
		return nil, err
	}
	toks, err := p.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}
	profile, err := p.FetchProfile(ctx, toks)
	if err != nil {
		return nil, err
	}
	traits := p.Traits()
	email, err := resolveEmail(profile, traits)
	if err != nil {
		return nil, fmt.Errorf("%s sign-in: %w", p.Name(), err)
	}

	u, outcome, err := s.link(ctx, p.Name(), traits, profile, email)
	if err != nil {
		return nil, fmt.Errorf("%s sign-in: %w", p.Name(), err)
	}

	raw, claims, err := s.signer.Sign(tokens.SignInput{UserID: u.ID, Email: u.Email, Name: u.Name, Provider: p.Name()})
	if err != nil {
		return nil, err
	}
	if s.sessions != nil {
		if err := s.sessions.Record(ctx, claims, raw, meta); err != nil {
			// the token is self-contained; a missing registry entry only hides it from session listings
			logger.Warnf("record session for user %s: %v", u.ID, err)
		}
	}
	return &Result{User: u, Token: raw, Claims: claims, Outcome: outcome}, nil
}

// resolveEmail picks the profile email, or synthesizes one under the
// provider's pseudo-email domain.
func resolveEmail(profile *providers.Profile, traits providers.Traits) (credentials.Email, error) {
	if profile.ExternalID == "" {
		return credentials.Email{}, fmt.Errorf("profile without id: %w", apperrors.ErrInvalidAuthCode)
	}
	if traits.RequireDisplayName && profile.DisplayName == "" {
		return credentials.Email{}, fmt.Errorf("profile without display name: %w", apperrors.ErrInvalidAuthCode)
	}
	if profile.Email != "" && profile.EmailUnverified {
		// an unconfirmed address must not claim an existing user by email
		return credentials.Email{}, fmt.Errorf("profile email not verified: %w", apperrors.ErrInvalidAuthCode)
	}
	raw := profile.Email
	if raw == "" {
		if traits.EmailDomain == "" {
			return credentials.Email{}, fmt.Errorf("profile without email: %w", apperrors.ErrInvalidAuthCode)
		}
		raw = profile.ExternalID + "@" + traits.EmailDomain
	}
	return credentials.NewEmail(raw)
}

// link finds the user owning the provider identity, creating the user and the
// link as needed. Provider-account lookup always precedes email lookup.
func (s *Service) link(ctx context.Context, provider string, traits providers.Traits, profile *providers.Profile, email credentials.Email) (*models.User, Outcome, error) {
	acct, err := s.accounts.FindByProvider(ctx, provider, profile.ExternalID)
	if err != nil {
		return nil, "", err
	}
	if acct != nil {
		u, err := s.owner(ctx, acct)
		return u, OutcomeReturning, err
	}

	u, created, err := s.findOrCreateUser(ctx, email, profile.DisplayName, traits.PasswordPlaceholder)
	if err != nil {
		return nil, "", err
	}

	if err := s.accounts.Create(ctx, models.NewOAuthAccount(provider, profile.ExternalID, email.String(), u.ID)); err != nil {
		if !errors.Is(err, apperrors.ErrDuplicate) {
			return nil, "", err
		}
		// a concurrent sign-in linked this identity first; adopt its owner and
		// drop the user created here, which nothing references
		if created {
			if derr := s.users.Delete(ctx, u.ID); derr != nil {
				logger.Warnf("remove unlinked user %s: %v", u.ID, derr)
			}
		}
		acct, err := s.accounts.FindByProvider(ctx, provider, profile.ExternalID)
		if err != nil {
			return nil, "", err
		}
		if acct == nil {
			return nil, "", fmt.Errorf("link %s:%s: %w", provider, profile.ExternalID, apperrors.ErrDuplicate)
		}
		owner, err := s.owner(ctx, acct)
		return owner, OutcomeReturning, err
	}

	if created {
		return u, OutcomeNewUser, nil
	}
	return u, OutcomeLinked, nil
}

func (s *Service) owner(ctx context.Context, acct *models.OAuthAccount) (*models.User, error) {
	u, err := s.users.FindByID(ctx, acct.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("account %s owner %s: %w", acct.ID, acct.UserID, apperrors.ErrUserNotFound)
	}
	return u, nil
}

func (s *Service) findOrCreateUser(ctx context.Context, email credentials.Email, name, placeholder string) (*models.User, bool, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if u != nil {
		return u, false, nil
	}
	nu, err := models.NewUser(email, credentials.HashedPassword(placeholder), name)
	if err != nil {
		return nil, false, err
	}
	if err := s.users.Save(ctx, nu); err != nil {
		if !errors.Is(err, apperrors.ErrDuplicate) {
			return nil, false, err
		}
		// lost a race on the email; the winner's user is the one to link
		u, ferr := s.users.FindByEmail(ctx, email)
		if ferr != nil {
			return nil, false, ferr
		}
		if u == nil {
			return nil, false, err
		}
		return u, false, nil
	}
	return nu, true, nil
}
