// Package providers adapts third-party OAuth identity providers to a single
// contract: build an authorization URL, exchange a code, fetch a normalized
// profile.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/targup/targup/backend/auth-service/internal/apperrors"
	"github.com/targup/targup/backend/auth-service/pkg/logger"
)

// Tokens is the credential material returned by a code exchange.
type Tokens struct {
	AccessToken string
	IDToken     string
	Expiry      time.Time

	raw *oauth2.Token
}

func (t *Tokens) oauth2Token() *oauth2.Token {
	if t.raw != nil {
		return t.raw
	}
	return &oauth2.Token{AccessToken: t.AccessToken, Expiry: t.Expiry}
}

// Profile is the provider-neutral identity returned by FetchProfile. Email and
// DisplayName may be empty; ExternalID is required by callers.
// EmailUnverified is set when the provider says it has not confirmed Email.
type Profile struct {
	ExternalID      string
	Email           string
	EmailUnverified bool
	DisplayName     string
	AvatarURL       string
}

// Traits describe how a provider's profiles are turned into users.
type Traits struct {
	// EmailDomain, when set, synthesizes "{externalId}@{EmailDomain}" for
	// profiles without an email. Empty means email is required.
	EmailDomain string
	// RequireDisplayName rejects profiles without a display name.
	RequireDisplayName bool
	// PasswordPlaceholder is stored as the (never matching) password digest
	// of users created by this provider.
	PasswordPlaceholder string
}

// Provider is implemented by each identity provider adapter.
type Provider interface {
	Name() string
	Traits() Traits
	AuthURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*Tokens, error)
	FetchProfile(ctx context.Context, tokens *Tokens) (*Profile, error)
}

// Config holds the OAuth client settings shared by the adapters. The URL
// fields override the provider defaults, which lets tests point an adapter at
// an httptest server.
type Config struct {
	ClientID            string
	ClientSecret        string
	RedirectURL         string
	AuthURL             string
	TokenURL            string
	UserInfoURL         string
	PasswordPlaceholder string
	HTTPClient          *http.Client
}

func (c Config) endpoint(def oauth2.Endpoint) oauth2.Endpoint {
	ep := def
	if c.AuthURL != "" {
		ep.AuthURL = c.AuthURL
	}
	if c.TokenURL != "" {
		ep.TokenURL = c.TokenURL
	}
	return ep
}

func (c Config) withClient(ctx context.Context) context.Context {
	if c.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// exchange runs the authorization code grant. A token endpoint rejecting the
// code (4xx) is reported as ErrInvalidAuthCode; transport failures are not.
func exchange(ctx context.Context, name string, cfg *oauth2.Config, code string) (*Tokens, error) {
	if code == "" {
		return nil, fmt.Errorf("%s: empty code: %w", name, apperrors.ErrInvalidAuthCode)
	}
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode >= 400 && re.Response.StatusCode < 500 {
			// the provider's body stays in the log; callers only see the kind
			logger.Warnf("%s: token endpoint rejected code: %v", name, err)
			return nil, fmt.Errorf("%s: token exchange rejected with status %d: %w", name, re.Response.StatusCode, apperrors.ErrInvalidAuthCode)
		}
		return nil, fmt.Errorf("%s: token exchange: %w", name, err)
	}
	idToken, _ := tok.Extra("id_token").(string)
	return &Tokens{AccessToken: tok.AccessToken, IDToken: idToken, Expiry: tok.Expiry, raw: tok}, nil
}

// getJSON fetches target with client and decodes a 200 response into v.
// Errors never carry target, which may hold an access token in its query.
func getJSON(ctx context.Context, client *http.Client, target string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return errors.New("failed to create request")
	}
	resp, err := client.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return fmt.Errorf("request to %s failed: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
