package sso

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/oauth2"
)

// ID identifies a provider in the registry (e.g. "google", "github")
type ID string

// Provider is the strategy object registered for one identity provider.
// Implementations hold configuration only and are never mutated after construction.
type Provider interface {
	// Name returns the registry identifier of the provider
	Name() ID

	// OAuth returns the parameters forwarded to the OAuth library
	OAuth() OAuthParams

	// Normalize converts the provider's raw sign-in response into a Profile.
	// client is used for the provider's secondary endpoint, if it has one.
	Normalize(ctx context.Context, raw RawResponse, client *http.Client) (*Profile, error)
}

// PreFlowHook is implemented by providers whose authorization request needs
// request-scoped routing parameters.
type PreFlowHook interface {
	PreFlow(query url.Values) (DynamicParams, error)
}

// DynamicParams are merged into the outgoing authorization request
type DynamicParams map[string]string

// Credentials contains the environment-sourced configuration of a provider
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Scopes overrides the provider's default scopes when non-empty
	Scopes []string

	// Tenant selects the Microsoft directory ("common" when empty)
	Tenant string
	// BaseURL and Realm locate a Keycloak server
	BaseURL string
	Realm   string
	// Defaults are substituted for missing selector query parameters (WorkOS)
	Defaults Selector
	// ErrorRedirect is where pre-flow validation errors are shown
	ErrorRedirect string
}

func (c Credentials) usable() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

func (c Credentials) scopesOr(defaults ...string) []string {
	if len(c.Scopes) > 0 {
		return c.Scopes
	}
	return defaults
}

// OAuthParams is everything the OAuth library needs to drive a provider.
// The core forwards these values and never interprets them.
type OAuthParams struct {
	Config oauth2.Config
	// ScopeDelimiter joins scopes in the authorization URL; empty means space
	ScopeDelimiter string
	// AuthParams are fixed provider-specific authorization parameters
	AuthParams map[string]string
	// ProfileURL is the primary profile endpoint, fetched after the token exchange
	ProfileURL string
	// ProfileHeaders are extra headers the profile endpoint requires
	ProfileHeaders map[string]string
	// ProfileTokenField names the token response field carrying the profile,
	// for providers that return it with the token
	ProfileTokenField string
	// SecondaryURL is the provider's one fixed secondary endpoint, if any
	SecondaryURL string
	// OIDC reports whether the token response carries an id_token
	OIDC bool
}

// AuthCodeURL builds the authorization URL with fixed and dynamic parameters merged.
// Dynamic parameters win over fixed ones with the same name.
func (p OAuthParams) AuthCodeURL(state string, dyn DynamicParams) string {
	cfg := p.Config
	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOnline}

	if p.ScopeDelimiter != "" && p.ScopeDelimiter != " " && len(cfg.Scopes) > 0 {
		opts = append(opts, oauth2.SetAuthURLParam("scope", strings.Join(cfg.Scopes, p.ScopeDelimiter)))
		cfg.Scopes = nil
	}

	for _, k := range sortedKeys(p.AuthParams) {
		if _, ok := dyn[k]; ok {
			continue
		}
		opts = append(opts, oauth2.SetAuthURLParam(k, p.AuthParams[k]))
	}
	for _, k := range sortedKeys(dyn) {
		opts = append(opts, oauth2.SetAuthURLParam(k, dyn[k]))
	}

	return cfg.AuthCodeURL(state, opts...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RawResponse is the OAuth layer's output handed to the pipeline
type RawResponse struct {
	Profile     json.RawMessage `json:"profile,omitempty"`
	AccessToken string          `json:"access_token"`
	JWT         *JWT            `json:"jwt,omitempty"`
}

// JWT holds decoded tokens of OpenID-Connect style providers
type JWT struct {
	IDToken *IDToken `json:"id_token,omitempty"`
}

// IDToken is a decoded identity token
type IDToken struct {
	Payload json.RawMessage `json:"payload"`
}

// claims returns the id_token payload when present
func (r RawResponse) claims() (json.RawMessage, bool) {
	if r.JWT == nil || r.JWT.IDToken == nil || len(r.JWT.IDToken.Payload) == 0 {
		return nil, false
	}
	return r.JWT.IDToken.Payload, true
}
