package sso

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// LinkedIn is the registry identifier of Sign In with LinkedIn (OpenID Connect)
const LinkedIn ID = "linkedin"

// LinkedInProvider normalizes LinkedIn OpenID Connect userinfo responses
type LinkedInProvider struct {
	base
}

// NewLinkedInProvider creates a new LinkedIn provider
func NewLinkedInProvider(c Credentials) *LinkedInProvider {
	return &LinkedInProvider{base{
		id: LinkedIn,
		params: OAuthParams{
			Config: oauth2.Config{
				ClientID:     c.ClientID,
				ClientSecret: c.ClientSecret,
				RedirectURL:  c.RedirectURL,
				Scopes:       c.scopesOr("openid", "profile", "email"),
				Endpoint:     endpoints.LinkedIn,
			},
			ProfileURL: "https://api.linkedin.com/v2/userinfo",
			OIDC:       true,
		},
	}}
}

type linkedinUser struct {
	Sub           string          `json:"sub"`
	Name          string          `json:"name"`
	GivenName     string          `json:"given_name"`
	FamilyName    string          `json:"family_name"`
	Email         string          `json:"email"`
	EmailVerified flexBool        `json:"email_verified"`
	Picture       string          `json:"picture"`
	Locale        json.RawMessage `json:"locale"`
}

// Normalize maps the userinfo payload, falling back to id_token claims
func (p *LinkedInProvider) Normalize(_ context.Context, raw RawResponse, _ *http.Client) (*Profile, error) {
	var u linkedinUser
	var err error
	if hasProfile(raw) {
		err = p.decodeProfile(raw, &u)
	} else {
		err = p.decodeIdentity(raw, &u)
	}
	if err != nil {
		return nil, err
	}
	if u.Sub == "" {
		return nil, missingField(p.id, "sub")
	}

	profile := &Profile{
		ID:          u.Sub,
		DisplayName: firstNonEmpty(u.Name, joinName(u.GivenName, u.FamilyName)),
		AvatarURL:   u.Picture,
		Locale:      linkedinLocale(u.Locale),
	}
	profile.setEmail(u.Email, u.EmailVerified.ptr())
	return profile, nil
}

// linkedinLocale accepts "en_US" as well as {"language":"en","country":"US"}
func linkedinLocale(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var tag string
	if err := json.Unmarshal(raw, &tag); err == nil {
		return canonicalLocale(tag)
	}
	var obj struct {
		Language string `json:"language"`
		Country  string `json:"country"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return canonicalLocale(obj.Language)
	}
	return ""
}
