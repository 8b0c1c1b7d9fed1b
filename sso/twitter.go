package sso

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// Twitter is the registry identifier of X (Twitter) OAuth 2.0 sign-in
const Twitter ID = "twitter"

// TwitterProvider normalizes X API v2 /users/me responses. The API never
// exposes an email, so profiles from this provider have none.
type TwitterProvider struct {
	base
}

// NewTwitterProvider creates a new X provider
func NewTwitterProvider(c Credentials) *TwitterProvider {
	return &TwitterProvider{base{
		id: Twitter,
		params: OAuthParams{
			Config: oauth2.Config{
				ClientID:     c.ClientID,
				ClientSecret: c.ClientSecret,
				RedirectURL:  c.RedirectURL,
				Scopes:       c.scopesOr("users.read", "tweet.read"),
				Endpoint: oauth2.Endpoint{
					AuthURL:   "https://twitter.com/i/oauth2/authorize",
					TokenURL:  "https://api.twitter.com/2/oauth2/token",
					AuthStyle: oauth2.AuthStyleInHeader,
				},
			},
			ProfileURL: "https://api.twitter.com/2/users/me?user.fields=profile_image_url",
		},
	}}
}

type twitterUser struct {
	Data *struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		Username        string `json:"username"`
		ProfileImageURL string `json:"profile_image_url"`
	} `json:"data"`
}

// Normalize maps the data object of /users/me
func (p *TwitterProvider) Normalize(_ context.Context, raw RawResponse, _ *http.Client) (*Profile, error) {
	var u twitterUser
	if err := p.decodeProfile(raw, &u); err != nil {
		return nil, err
	}
	if u.Data == nil {
		return nil, missingField(p.id, "data")
	}
	if u.Data.ID == "" {
		return nil, missingField(p.id, "id")
	}

	return &Profile{
		ID:          u.Data.ID,
		DisplayName: firstNonEmpty(u.Data.Name, u.Data.Username),
		// "_normal" is the 48x48 variant; without the suffix X serves the original
		AvatarURL: strings.Replace(u.Data.ProfileImageURL, "_normal.", ".", 1),
	}, nil
}
