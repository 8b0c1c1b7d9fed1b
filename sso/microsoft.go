package sso

import (
	"context"
	"net/http"
	"net/mail"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Microsoft is the registry identifier of Microsoft Entra ID sign-in
const Microsoft ID = "microsoft"

// MicrosoftProvider normalizes Microsoft identity platform id_tokens
type MicrosoftProvider struct {
	base
}

// NewMicrosoftProvider creates a new Microsoft provider for the configured tenant
func NewMicrosoftProvider(c Credentials) *MicrosoftProvider {
	tenant := c.Tenant
	if tenant == "" {
		tenant = "common"
	}
	return &MicrosoftProvider{base{
		id: Microsoft,
		params: OAuthParams{
			Config: oauth2.Config{
				ClientID:     c.ClientID,
				ClientSecret: c.ClientSecret,
				RedirectURL:  c.RedirectURL,
				Scopes:       c.scopesOr("openid", "profile", "email"),
				Endpoint:     endpoints.AzureAD(tenant),
			},
			AuthParams: map[string]string{"response_mode": "query"},
			ProfileURL: "https://graph.microsoft.com/oidc/userinfo",
			OIDC:       true,
		},
	}}
}

type microsoftClaims struct {
	Sub               string `json:"sub"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
}

// Normalize maps the id_token claims. Microsoft never asserts email
// verification, so EmailVerified stays absent.
func (p *MicrosoftProvider) Normalize(_ context.Context, raw RawResponse, _ *http.Client) (*Profile, error) {
	var c microsoftClaims
	if err := p.decodeIdentity(raw, &c); err != nil {
		return nil, err
	}
	if c.Sub == "" {
		return nil, missingField(p.id, "sub")
	}

	email := c.Email
	if email == "" {
		if addr, err := mail.ParseAddress(c.PreferredUsername); err == nil && addr.Name == "" {
			email = addr.Address
		}
	}

	profile := &Profile{
		ID:          c.Sub,
		DisplayName: firstNonEmpty(c.Name, c.PreferredUsername),
	}
	profile.setEmail(email, nil)
	return profile, nil
}
