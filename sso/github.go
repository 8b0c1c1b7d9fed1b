package sso

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// GitHub is the registry identifier of GitHub sign-in
const GitHub ID = "github"

// GitHubProvider normalizes GitHub OAuth responses. GitHub has no id_token and
// hides private emails from /user, so the email may need a call to /user/emails.
type GitHubProvider struct {
	base
}

// NewGitHubProvider creates a new GitHub provider
func NewGitHubProvider(c Credentials) *GitHubProvider {
	return &GitHubProvider{base{
		id: GitHub,
		params: OAuthParams{
			Config: oauth2.Config{
				ClientID:     c.ClientID,
				ClientSecret: c.ClientSecret,
				RedirectURL:  c.RedirectURL,
				Scopes:       c.scopesOr("read:user", "user:email"),
				Endpoint:     endpoints.GitHub,
			},
			AuthParams:   map[string]string{"allow_signup": "true"},
			ProfileURL:   "https://api.github.com/user",
			SecondaryURL: "https://api.github.com/user/emails",
		},
	}}
}

type githubUser struct {
	ID        flexString `json:"id"`
	Login     string     `json:"login"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	AvatarURL string     `json:"avatar_url"`
}

type githubEmail struct {
	Email    *string `json:"email"`
	Primary  bool    `json:"primary"`
	Verified bool    `json:"verified"`
}

// Normalize maps the /user payload and fetches /user/emails when no email is public
func (p *GitHubProvider) Normalize(ctx context.Context, raw RawResponse, client *http.Client) (*Profile, error) {
	var u githubUser
	if err := p.decodeProfile(raw, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, missingField(p.id, "id")
	}

	profile := &Profile{
		ID:          u.ID.String(),
		DisplayName: firstNonEmpty(u.Name, u.Login),
		AvatarURL:   u.AvatarURL,
	}

	if u.Email != "" {
		profile.setEmail(u.Email, nil)
		return profile, nil
	}

	email, err := p.fetchEmail(ctx, client, raw.AccessToken)
	if err != nil {
		return nil, err
	}
	if email != nil {
		profile.setEmail(email.Email, boolPtr(email.Verified))
	}
	return profile, nil
}

// fetchEmail fetches the user's email listing from the GitHub API
func (p *GitHubProvider) fetchEmail(ctx context.Context, client *http.Client, token string) (*emailRecord, error) {
	var emails *[]githubEmail
	if err := fetchJSON(ctx, client, p.id, p.params.SecondaryURL, token, &emails); err != nil {
		return nil, err
	}
	if emails == nil {
		return nil, &UpstreamError{
			Provider: string(p.id),
			Endpoint: p.params.SecondaryURL,
			Err:      errors.New("response has no email listing"),
		}
	}

	records := make([]emailRecord, 0, len(*emails))
	for _, e := range *emails {
		if e.Email == nil || *e.Email == "" {
			return nil, &UpstreamError{
				Provider: string(p.id),
				Endpoint: p.params.SecondaryURL,
				Err:      errors.New("email record without address"),
			}
		}
		records = append(records, emailRecord{Email: *e.Email, Primary: e.Primary, Verified: e.Verified})
	}

	record, ok := pickEmail(records)
	if !ok {
		return nil, nil
	}
	return &record, nil
}
