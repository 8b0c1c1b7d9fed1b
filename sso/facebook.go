package sso

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Facebook is the registry identifier of Facebook Login
const Facebook ID = "facebook"

// FacebookProvider normalizes Graph API /me responses
type FacebookProvider struct {
	base
}

// NewFacebookProvider creates a new Facebook provider
func NewFacebookProvider(c Credentials) *FacebookProvider {
	return &FacebookProvider{base{
		id: Facebook,
		params: OAuthParams{
			Config: oauth2.Config{
				ClientID:     c.ClientID,
				ClientSecret: c.ClientSecret,
				RedirectURL:  c.RedirectURL,
				Scopes:       c.scopesOr("public_profile", "email"),
				Endpoint:     endpoints.Facebook,
			},
			ScopeDelimiter: ",",
			ProfileURL:     "https://graph.facebook.com/me?fields=id,name,first_name,last_name,email,picture.type(large)",
		},
	}}
}

type facebookUser struct {
	ID        flexString `json:"id"`
	Name      string     `json:"name"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Email     string     `json:"email"`
	Picture   struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

// Normalize maps the /me payload. Facebook does not report verification.
func (p *FacebookProvider) Normalize(_ context.Context, raw RawResponse, _ *http.Client) (*Profile, error) {
	var u facebookUser
	if err := p.decodeProfile(raw, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, missingField(p.id, "id")
	}

	profile := &Profile{
		ID:          u.ID.String(),
		DisplayName: firstNonEmpty(u.Name, joinName(u.FirstName, u.LastName)),
		AvatarURL:   u.Picture.Data.URL,
	}
	profile.setEmail(u.Email, nil)
	return profile, nil
}
