package sso

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

// Slack is the registry identifier of Sign in with Slack
const Slack ID = "slack"

// SlackProvider normalizes Sign in with Slack (OpenID Connect) responses
type SlackProvider struct {
	base
}

// NewSlackProvider creates a new Slack provider
func NewSlackProvider(c Credentials) *SlackProvider {
	return &SlackProvider{base{
		id: Slack,
		params: OAuthParams{
			Config: oauth2.Config{
				ClientID:     c.ClientID,
				ClientSecret: c.ClientSecret,
				RedirectURL:  c.RedirectURL,
				Scopes:       c.scopesOr("openid", "email", "profile"),
				Endpoint: oauth2.Endpoint{
					AuthURL:  "https://slack.com/openid/connect/authorize",
					TokenURL: "https://slack.com/api/openid.connect.token",
				},
			},
			ProfileURL: "https://slack.com/api/openid.connect.userInfo",
			OIDC:       true,
		},
	}}
}

type slackClaims struct {
	UserID        string   `json:"https://slack.com/user_id"`
	Sub           string   `json:"sub"`
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	Picture       string   `json:"picture"`
	Locale        string   `json:"locale"`
}

// Normalize maps the id_token claims, or the userInfo payload without one
func (p *SlackProvider) Normalize(_ context.Context, raw RawResponse, _ *http.Client) (*Profile, error) {
	var c slackClaims
	if err := p.decodeIdentity(raw, &c); err != nil {
		return nil, err
	}
	id := firstNonEmpty(c.UserID, c.Sub)
	if id == "" {
		return nil, missingField(p.id, "https://slack.com/user_id")
	}

	profile := &Profile{
		ID:          id,
		DisplayName: c.Name,
		AvatarURL:   c.Picture,
		Locale:      canonicalLocale(c.Locale),
	}
	profile.setEmail(c.Email, c.EmailVerified.ptr())
	return profile, nil
}
