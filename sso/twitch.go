package sso

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Twitch is the registry identifier of Twitch sign-in
const Twitch ID = "twitch"

// TwitchProvider normalizes Helix /users responses
type TwitchProvider struct {
	base
}

// NewTwitchProvider creates a new Twitch provider
func NewTwitchProvider(c Credentials) *TwitchProvider {
	return &TwitchProvider{base{
		id: Twitch,
		params: OAuthParams{
			Config: oauth2.Config{
				ClientID:     c.ClientID,
				ClientSecret: c.ClientSecret,
				RedirectURL:  c.RedirectURL,
				Scopes:       c.scopesOr("user:read:email"),
				Endpoint:     endpoints.Twitch,
			},
			AuthParams:     map[string]string{"force_verify": "false"},
			ProfileURL:     "https://api.twitch.tv/helix/users",
			ProfileHeaders: map[string]string{"Client-Id": c.ClientID},
		},
	}}
}

type twitchUsers struct {
	Data []struct {
		ID              string `json:"id"`
		Login           string `json:"login"`
		DisplayName     string `json:"display_name"`
		Email           string `json:"email"`
		ProfileImageURL string `json:"profile_image_url"`
	} `json:"data"`
}

// Normalize maps the first user of the Helix listing
func (p *TwitchProvider) Normalize(_ context.Context, raw RawResponse, _ *http.Client) (*Profile, error) {
	var users twitchUsers
	if err := p.decodeProfile(raw, &users); err != nil {
		return nil, err
	}
	if len(users.Data) == 0 {
		return nil, missingField(p.id, "data")
	}
	u := users.Data[0]
	if u.ID == "" {
		return nil, missingField(p.id, "id")
	}

	profile := &Profile{
		ID:          u.ID,
		DisplayName: firstNonEmpty(u.DisplayName, u.Login),
		AvatarURL:   u.ProfileImageURL,
	}
	profile.setEmail(u.Email, nil)
	return profile, nil
}
