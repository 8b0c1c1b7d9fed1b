package sso

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// GitLab is the registry identifier of GitLab sign-in
const GitLab ID = "gitlab"

// GitLabProvider normalizes gitlab.com /api/v4/user responses
type GitLabProvider struct {
	base
}

// NewGitLabProvider creates a new GitLab provider
func NewGitLabProvider(c Credentials) *GitLabProvider {
	return &GitLabProvider{base{
		id: GitLab,
		params: OAuthParams{
			Config: oauth2.Config{
				ClientID:     c.ClientID,
				ClientSecret: c.ClientSecret,
				RedirectURL:  c.RedirectURL,
				Scopes:       c.scopesOr("read_user"),
				Endpoint:     endpoints.GitLab,
			},
			ProfileURL: "https://gitlab.com/api/v4/user",
		},
	}}
}

type gitlabUser struct {
	ID                flexString `json:"id"`
	Username          string     `json:"username"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	ConfirmedAt       *string    `json:"confirmed_at"`
	AvatarURL         string     `json:"avatar_url"`
	PreferredLanguage string     `json:"preferred_language"`
}

// Normalize maps the /user payload; a confirmed account has a verified email
func (p *GitLabProvider) Normalize(_ context.Context, raw RawResponse, _ *http.Client) (*Profile, error) {
	var u gitlabUser
	if err := p.decodeProfile(raw, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, missingField(p.id, "id")
	}

	profile := &Profile{
		ID:          u.ID.String(),
		DisplayName: firstNonEmpty(u.Name, u.Username),
		AvatarURL:   u.AvatarURL,
		Locale:      canonicalLocale(u.PreferredLanguage),
	}
	profile.setEmail(u.Email, boolPtr(u.ConfirmedAt != nil && *u.ConfirmedAt != ""))
	return profile, nil
}
