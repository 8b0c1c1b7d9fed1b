package sso

import (
	"context"
	"html"
	"net/http"

	"golang.org/x/oauth2"
)

// Reddit is the registry identifier of Reddit sign-in
const Reddit ID = "reddit"

// RedditProvider normalizes /api/v1/me responses. Reddit never exposes an email.
type RedditProvider struct {
	base
}

// NewRedditProvider creates a new Reddit provider
func NewRedditProvider(c Credentials) *RedditProvider {
	return &RedditProvider{base{
		id: Reddit,
		params: OAuthParams{
			Config: oauth2.Config{
				ClientID:     c.ClientID,
				ClientSecret: c.ClientSecret,
				RedirectURL:  c.RedirectURL,
				Scopes:       c.scopesOr("identity"),
				Endpoint: oauth2.Endpoint{
					AuthURL:   "https://www.reddit.com/api/v1/authorize",
					TokenURL:  "https://www.reddit.com/api/v1/access_token",
					AuthStyle: oauth2.AuthStyleInHeader,
				},
			},
			AuthParams: map[string]string{"duration": "temporary"},
			ProfileURL: "https://oauth.reddit.com/api/v1/me",
		},
	}}
}

type redditUser struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IconImg string `json:"icon_img"`
}

// Normalize maps the /me payload; icon_img comes HTML-escaped
func (p *RedditProvider) Normalize(_ context.Context, raw RawResponse, _ *http.Client) (*Profile, error) {
	var u redditUser
	if err := p.decodeProfile(raw, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, missingField(p.id, "id")
	}

	return &Profile{
		ID:          u.ID,
		DisplayName: u.Name,
		AvatarURL:   html.UnescapeString(u.IconImg),
	}, nil
}
