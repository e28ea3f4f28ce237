package providers

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/targup/targup/backend/auth-service/internal/oidc"
)

const (
	GoogleName               = "google"
	defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	defaultGooglePlaceholder = "oauth-google"
)

// IDTokenVerifier verifies an OIDC id_token and returns its standard claims.
// Satisfied by *oidc.Verifier.
type IDTokenVerifier interface {
	VerifyClaims(ctx context.Context, raw string) (*oidc.Claims, error)
}

// Google signs users in with Google OAuth 2.0. When the token response carries
// an id_token and a verifier is set, the profile comes from the verified
// claims and the userinfo call is skipped.
type Google struct {
	cfg         Config
	oauth       *oauth2.Config
	userInfoURL string
	verifier    IDTokenVerifier
}

func NewGoogle(cfg Config, verifier IDTokenVerifier) *Google {
	return &Google{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     cfg.endpoint(endpoints.Google),
			Scopes:       []string{"openid", "profile", "email"},
		},
		userInfoURL: orDefault(cfg.UserInfoURL, defaultGoogleUserInfoURL),
		verifier:    verifier,
	}
}

func (g *Google) Name() string { return GoogleName }

func (g *Google) Traits() Traits {
	return Traits{PasswordPlaceholder: orDefault(g.cfg.PasswordPlaceholder, defaultGooglePlaceholder)}
}

func (g *Google) AuthURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

func (g *Google) ExchangeCode(ctx context.Context, code string) (*Tokens, error) {
	return exchange(g.cfg.withClient(ctx), GoogleName, g.oauth, code)
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (g *Google) FetchProfile(ctx context.Context, tokens *Tokens) (*Profile, error) {
	if tokens.IDToken != "" && g.verifier != nil {
		c, err := g.verifier.VerifyClaims(ctx, tokens.IDToken)
		if err != nil {
			return nil, fmt.Errorf("google: %w", err)
		}
		return &Profile{
			ExternalID:      c.Subject,
			Email:           c.Email,
			EmailUnverified: c.Email != "" && !c.EmailVerified,
			DisplayName:     c.Name,
			AvatarURL:       c.Picture,
		}, nil
	}

	ctx = g.cfg.withClient(ctx)
	var info googleUserInfo
	if err := getJSON(ctx, g.oauth.Client(ctx, tokens.oauth2Token()), g.userInfoURL, &info); err != nil {
		return nil, fmt.Errorf("google: fetch userinfo: %w", err)
	}
	return &Profile{
		ExternalID:      info.ID,
		Email:           info.Email,
		EmailUnverified: info.Email != "" && !info.VerifiedEmail,
		DisplayName:     info.Name,
		AvatarURL:       info.Picture,
	}, nil
}

var _ Provider = (*Google)(nil)
