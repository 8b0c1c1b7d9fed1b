package sso

import (
	"context"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
)

// WorkOS is the registry identifier of WorkOS enterprise SSO
const WorkOS ID = "workos"

// WorkOSProvider normalizes WorkOS SSO profiles. The authorization request
// must name an organization, connection or domain, so it carries a pre-flow hook.
type WorkOSProvider struct {
	base
	defaults      Selector
	errorRedirect string
}

// NewWorkOSProvider creates a new WorkOS provider
func NewWorkOSProvider(c Credentials) *WorkOSProvider {
	return &WorkOSProvider{
		base: base{
			id: WorkOS,
			params: OAuthParams{
				Config: oauth2.Config{
					ClientID:     c.ClientID,
					ClientSecret: c.ClientSecret,
					RedirectURL:  c.RedirectURL,
					Endpoint: oauth2.Endpoint{
						AuthURL:   "https://api.workos.com/sso/authorize",
						TokenURL:  "https://api.workos.com/sso/token",
						AuthStyle: oauth2.AuthStyleInParams,
					},
				},
				ProfileTokenField: "profile",
			},
		},
		defaults:      c.Defaults,
		errorRedirect: c.ErrorRedirect,
	}
}

// PreFlow requires a selector from the query or the configured defaults
func (p *WorkOSProvider) PreFlow(query url.Values) (DynamicParams, error) {
	return RequireSelector(p.id, query, p.defaults, p.errorRedirect)
}

type workosProfile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Normalize maps the profile returned with the token
func (p *WorkOSProvider) Normalize(_ context.Context, raw RawResponse, _ *http.Client) (*Profile, error) {
	var u workosProfile
	if err := p.decodeProfile(raw, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, missingField(p.id, "id")
	}

	profile := &Profile{
		ID:          u.ID,
		DisplayName: joinName(u.FirstName, u.LastName),
	}
	profile.setEmail(u.Email, nil)
	return profile, nil
}
