package sso

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

// Apple is the registry identifier of Sign in with Apple
const Apple ID = "apple"

// AppleProvider normalizes Sign in with Apple responses. Identity comes from
// the id_token; the user's name is only posted on the first authorization.
type AppleProvider struct {
	base
}

// NewAppleProvider creates a new Apple provider
func NewAppleProvider(c Credentials) *AppleProvider {
	return &AppleProvider{base{
		id: Apple,
		params: OAuthParams{
			Config: oauth2.Config{
				ClientID:     c.ClientID,
				ClientSecret: c.ClientSecret,
				RedirectURL:  c.RedirectURL,
				Scopes:       c.scopesOr("name", "email"),
				Endpoint: oauth2.Endpoint{
					AuthURL:   "https://appleid.apple.com/auth/authorize",
					TokenURL:  "https://appleid.apple.com/auth/token",
					AuthStyle: oauth2.AuthStyleInParams,
				},
			},
			AuthParams: map[string]string{"response_mode": "form_post"},
			OIDC:       true,
		},
	}}
}

type appleClaims struct {
	Sub           string   `json:"sub"`
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
}

type appleUser struct {
	Name struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	} `json:"name"`
}

// Normalize requires the id_token; the posted user object is optional
func (p *AppleProvider) Normalize(_ context.Context, raw RawResponse, _ *http.Client) (*Profile, error) {
	payload, ok := raw.claims()
	if !ok {
		return nil, missingField(p.id, "id_token")
	}
	var c appleClaims
	if err := decodePayload(p.id, "id_token payload", payload, &c); err != nil {
		return nil, err
	}
	if c.Sub == "" {
		return nil, missingField(p.id, "sub")
	}

	profile := &Profile{ID: c.Sub}
	if hasProfile(raw) {
		var u appleUser
		if err := p.decodeProfile(raw, &u); err != nil {
			return nil, err
		}
		profile.DisplayName = joinName(u.Name.FirstName, u.Name.LastName)
	}
	profile.setEmail(c.Email, c.EmailVerified.ptr())
	return profile, nil
}
