package providers

import (
	"context"
	"fmt"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	InstagramName               = "instagram"
	InstagramEmailDomain        = "instagram.com"
	defaultInstagramUserInfoURL = "https://graph.instagram.com/me"
	defaultInstagramPlaceholder = "oauth-instagram"
)

// Instagram signs users in with the Instagram Basic Display API. Instagram
// never returns an email, so users get a pseudo-address under
// InstagramEmailDomain.
type Instagram struct {
	cfg         Config
	oauth       *oauth2.Config
	userInfoURL string
}

func NewInstagram(cfg Config) *Instagram {
	ep := cfg.endpoint(endpoints.Instagram)
	ep.AuthStyle = oauth2.AuthStyleInParams
	return &Instagram{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     ep,
			Scopes:       []string{"user_profile,user_media"},
		},
		userInfoURL: orDefault(cfg.UserInfoURL, defaultInstagramUserInfoURL),
	}
}

func (i *Instagram) Name() string { return InstagramName }

func (i *Instagram) Traits() Traits {
	return Traits{
		EmailDomain:         InstagramEmailDomain,
		RequireDisplayName:  true,
		PasswordPlaceholder: orDefault(i.cfg.PasswordPlaceholder, defaultInstagramPlaceholder),
	}
}

func (i *Instagram) AuthURL(state string) string {
	return i.oauth.AuthCodeURL(state)
}

func (i *Instagram) ExchangeCode(ctx context.Context, code string) (*Tokens, error) {
	return exchange(i.cfg.withClient(ctx), InstagramName, i.oauth, code)
}

type instagramUser struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	AccountType string `json:"account_type"`
}

func (i *Instagram) FetchProfile(ctx context.Context, tokens *Tokens) (*Profile, error) {
	u, err := url.Parse(i.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("instagram: userinfo url: %w", err)
	}
	q := u.Query()
	q.Set("fields", "id,username,account_type")
	q.Set("access_token", tokens.AccessToken)
	u.RawQuery = q.Encode()

	ctx = i.cfg.withClient(ctx)
	var me instagramUser
	if err := getJSON(ctx, oauth2.NewClient(ctx, nil), u.String(), &me); err != nil {
		return nil, fmt.Errorf("instagram: fetch profile: %w", err)
	}
	return &Profile{ExternalID: me.ID, DisplayName: me.Username}, nil
}

var _ Provider = (*Instagram)(nil)
