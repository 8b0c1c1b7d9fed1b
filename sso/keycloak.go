package sso

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// Keycloak is the registry identifier of a Keycloak realm
const Keycloak ID = "keycloak"

// KeycloakProvider normalizes Keycloak OpenID Connect responses
type KeycloakProvider struct {
	base
}

// NewKeycloakProvider creates a new Keycloak provider for the configured realm
func NewKeycloakProvider(c Credentials) *KeycloakProvider {
	realmURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect", strings.TrimRight(c.BaseURL, "/"), c.Realm)
	return &KeycloakProvider{base{
		id: Keycloak,
		params: OAuthParams{
			Config: oauth2.Config{
				ClientID:     c.ClientID,
				ClientSecret: c.ClientSecret,
				RedirectURL:  c.RedirectURL,
				Scopes:       c.scopesOr("openid", "profile", "email"),
				Endpoint: oauth2.Endpoint{
					AuthURL:  realmURL + "/auth",
					TokenURL: realmURL + "/token",
				},
			},
			ProfileURL: realmURL + "/userinfo",
			OIDC:       true,
		},
	}}
}

type keycloakClaims struct {
	Sub               string   `json:"sub"`
	PreferredUsername string   `json:"preferred_username"`
	Name              string   `json:"name"`
	GivenName         string   `json:"given_name"`
	FamilyName        string   `json:"family_name"`
	Email             string   `json:"email"`
	EmailVerified     flexBool `json:"email_verified"`
	Picture           string   `json:"picture"`
	Locale            string   `json:"locale"`
}

// Normalize maps the id_token claims, or the userinfo payload without one
func (p *KeycloakProvider) Normalize(_ context.Context, raw RawResponse, _ *http.Client) (*Profile, error) {
	var c keycloakClaims
	if err := p.decodeIdentity(raw, &c); err != nil {
		return nil, err
	}
	if c.Sub == "" {
		return nil, missingField(p.id, "sub")
	}

	profile := &Profile{
		ID:          c.Sub,
		DisplayName: firstNonEmpty(c.Name, joinName(c.GivenName, c.FamilyName), c.PreferredUsername),
		AvatarURL:   c.Picture,
		Locale:      canonicalLocale(c.Locale),
	}
	profile.setEmail(c.Email, c.EmailVerified.ptr())
	return profile, nil
}
