package sso

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Config describes the OIDC client registration
type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string // openid, email and profile when empty
}

// Validate checks the required fields
func (c Config) Validate() error {
	switch {
	case c.IssuerURL == "":
		return errors.New("OIDC issuer URL is required")
	case c.ClientID == "":
		return errors.New("OIDC client ID is required")
	case c.RedirectURL == "":
		return errors.New("OIDC redirect URL is required")
	}
	return nil
}

// Claims are the ID token fields used to sign a user in
type Claims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	Name          string `json:"name"`
}

// Provider starts logins and turns callback codes into verified claims
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Claims, error)
}

// OIDCProvider implements Provider with discovery and ID token verification
type OIDCProvider struct {
	verifier *oidc.IDTokenVerifier
	oauth2   *oauth2.Config
}

// NewOIDCProvider discovers the issuer's endpoints and keys
func NewOIDCProvider(ctx context.Context, cfg Config) (*OIDCProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}

	return &OIDCProvider{
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		oauth2: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
		},
	}, nil
}

// AuthCodeURL returns the provider's authorization URL for state
func (p *OIDCProvider) AuthCodeURL(state string) string {
	return p.oauth2.AuthCodeURL(state)
}

// Exchange redeems code and verifies the returned ID token
func (p *OIDCProvider) Exchange(ctx context.Context, code string) (*Claims, error) {
	if code == "" {
		return nil, errors.New("missing authorization code")
	}

	token, err := p.oauth2.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("missing id_token in token response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}
	if claims.Email == "" {
		return nil, errors.New("missing email in ID token")
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return nil, errors.New("email not verified by provider")
	}
	return &claims, nil
}
