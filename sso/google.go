package sso

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Google is the registry identifier of Google sign-in
const Google ID = "google"

// GoogleProvider normalizes Google OpenID Connect responses
type GoogleProvider struct {
	base
}

// NewGoogleProvider creates a new Google provider
func NewGoogleProvider(c Credentials) *GoogleProvider {
	return &GoogleProvider{base{
		id: Google,
		params: OAuthParams{
			Config: oauth2.Config{
				ClientID:     c.ClientID,
				ClientSecret: c.ClientSecret,
				RedirectURL:  c.RedirectURL,
				Scopes:       c.scopesOr("openid", "email", "profile"),
				Endpoint:     endpoints.Google,
			},
			AuthParams: map[string]string{"prompt": "select_account"},
			ProfileURL: "https://openidconnect.googleapis.com/v1/userinfo",
			OIDC:       true,
		},
	}}
}

// googleUser covers both the id_token claims and the legacy v2 userinfo shape
type googleUser struct {
	Sub           string     `json:"sub"`
	ID            flexString `json:"id"`
	Name          string     `json:"name"`
	GivenName     string     `json:"given_name"`
	FamilyName    string     `json:"family_name"`
	Email         string     `json:"email"`
	EmailVerified flexBool   `json:"email_verified"`
	VerifiedEmail flexBool   `json:"verified_email"`
	Picture       string     `json:"picture"`
	Locale        string     `json:"locale"`
}

// Normalize maps the id_token claims, or the userinfo payload without one
func (p *GoogleProvider) Normalize(_ context.Context, raw RawResponse, _ *http.Client) (*Profile, error) {
	var u googleUser
	if err := p.decodeIdentity(raw, &u); err != nil {
		return nil, err
	}

	id := firstNonEmpty(u.Sub, u.ID.String())
	if id == "" {
		return nil, missingField(p.id, "sub")
	}

	verified := u.EmailVerified
	if !verified.set {
		verified = u.VerifiedEmail
	}

	profile := &Profile{
		ID:          id,
		DisplayName: firstNonEmpty(u.Name, joinName(u.GivenName, u.FamilyName)),
		AvatarURL:   u.Picture,
		Locale:      canonicalLocale(u.Locale),
	}
	profile.setEmail(u.Email, verified.ptr())
	return profile, nil
}
