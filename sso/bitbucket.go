package sso

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Bitbucket is the registry identifier of Bitbucket Cloud sign-in
const Bitbucket ID = "bitbucket"

// BitbucketProvider normalizes Bitbucket Cloud responses. The /user payload
// never carries an email, so /user/emails is always called.
type BitbucketProvider struct {
	base
}

// NewBitbucketProvider creates a new Bitbucket provider
func NewBitbucketProvider(c Credentials) *BitbucketProvider {
	return &BitbucketProvider{base{
		id: Bitbucket,
		params: OAuthParams{
			Config: oauth2.Config{
				ClientID:     c.ClientID,
				ClientSecret: c.ClientSecret,
				RedirectURL:  c.RedirectURL,
				Scopes:       c.scopesOr("account", "email"),
				Endpoint:     endpoints.Bitbucket,
			},
			ProfileURL:   "https://api.bitbucket.org/2.0/user",
			SecondaryURL: "https://api.bitbucket.org/2.0/user/emails",
		},
	}}
}

type bitbucketUser struct {
	UUID        string `json:"uuid"`
	AccountID   string `json:"account_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Links       struct {
		Avatar struct {
			Href string `json:"href"`
		} `json:"avatar"`
	} `json:"links"`
}

type bitbucketEmails struct {
	Values *[]struct {
		Email       string `json:"email"`
		IsPrimary   bool   `json:"is_primary"`
		IsConfirmed bool   `json:"is_confirmed"`
	} `json:"values"`
}

// Normalize maps the /2.0/user payload and the email listing
func (p *BitbucketProvider) Normalize(ctx context.Context, raw RawResponse, client *http.Client) (*Profile, error) {
	var u bitbucketUser
	if err := p.decodeProfile(raw, &u); err != nil {
		return nil, err
	}
	if u.UUID == "" {
		return nil, missingField(p.id, "uuid")
	}

	var listing bitbucketEmails
	if err := fetchJSON(ctx, client, p.id, p.params.SecondaryURL, raw.AccessToken, &listing); err != nil {
		return nil, err
	}
	if listing.Values == nil {
		return nil, &UpstreamError{
			Provider: string(p.id),
			Endpoint: p.params.SecondaryURL,
			Err:      errors.New("response has no values"),
		}
	}

	records := make([]emailRecord, 0, len(*listing.Values))
	for _, v := range *listing.Values {
		records = append(records, emailRecord{Email: v.Email, Primary: v.IsPrimary, Verified: v.IsConfirmed})
	}

	profile := &Profile{
		ID:          u.UUID,
		DisplayName: firstNonEmpty(u.DisplayName, u.Username),
		AvatarURL:   u.Links.Avatar.Href,
	}
	if record, ok := pickEmail(records); ok {
		profile.setEmail(record.Email, boolPtr(record.Verified))
	}
	return profile, nil
}
