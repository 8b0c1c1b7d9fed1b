package sso

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"

	"profilenorm/logger"
)

// builders is the closed set of supported providers. Adding a provider means
// adding its file and one entry here.
var builders = map[ID]func(Credentials) Provider{
	Apple:     func(c Credentials) Provider { return NewAppleProvider(c) },
	Bitbucket: func(c Credentials) Provider { return NewBitbucketProvider(c) },
	Discord:   func(c Credentials) Provider { return NewDiscordProvider(c) },
	Facebook:  func(c Credentials) Provider { return NewFacebookProvider(c) },
	GitHub:    func(c Credentials) Provider { return NewGitHubProvider(c) },
	GitLab:    func(c Credentials) Provider { return NewGitLabProvider(c) },
	Google:    func(c Credentials) Provider { return NewGoogleProvider(c) },
	Keycloak:  func(c Credentials) Provider { return NewKeycloakProvider(c) },
	LinkedIn:  func(c Credentials) Provider { return NewLinkedInProvider(c) },
	Microsoft: func(c Credentials) Provider { return NewMicrosoftProvider(c) },
	Reddit:    func(c Credentials) Provider { return NewRedditProvider(c) },
	Slack:     func(c Credentials) Provider { return NewSlackProvider(c) },
	Twitch:    func(c Credentials) Provider { return NewTwitchProvider(c) },
	Twitter:   func(c Credentials) Provider { return NewTwitterProvider(c) },
	WorkOS:    func(c Credentials) Provider { return NewWorkOSProvider(c) },
}

// Catalog returns every provider identifier the registry knows, sorted
func Catalog() []ID {
	ids := make([]ID, 0, len(builders))
	for id := range builders {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// Registry is the read-only lookup table of usable providers. It is built
// once at startup and safe for concurrent use.
type Registry struct {
	providers map[ID]Provider
}

type registryOptions struct {
	required []ID
	log      *logger.Logger
}

// RegistryOption configures NewRegistry
type RegistryOption func(*registryOptions)

// WithRequired makes startup fail when any of ids lacks credentials
func WithRequired(ids ...ID) RegistryOption {
	return func(o *registryOptions) {
		o.required = append(o.required, ids...)
	}
}

// WithRegistryLogger sets the logger used to report disabled providers
func WithRegistryLogger(l *logger.Logger) RegistryOption {
	return func(o *registryOptions) {
		o.log = l
	}
}

// NewRegistry builds every catalog provider that has credentials.
// Providers without a client id or secret are left out; lookups for them
// fail with a NotFoundError.
func NewRegistry(settings map[ID]Credentials, opts ...RegistryOption) (*Registry, error) {
	o := registryOptions{log: logger.NewLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	var errs []error
	for id := range settings {
		if _, ok := builders[id]; !ok {
			errs = append(errs, fmt.Errorf("settings for unknown provider %q", id))
		}
	}

	providers := make(map[ID]Provider)
	for _, id := range Catalog() {
		creds, ok := settings[id]
		if !ok || !creds.usable() {
			continue
		}
		if err := validateExtras(id, creds); err != nil {
			errs = append(errs, err)
			continue
		}
		providers[id] = builders[id](creds)
	}

	for _, id := range o.required {
		if _, ok := builders[id]; !ok {
			errs = append(errs, fmt.Errorf("required provider %q is unknown", id))
			continue
		}
		if _, ok := providers[id]; !ok {
			errs = append(errs, fmt.Errorf("required provider %q has no credentials", id))
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	reg := &Registry{providers: providers}
	ctx := context.Background()
	for _, id := range Catalog() {
		if _, ok := providers[id]; !ok {
			o.log.Debug(ctx, "provider disabled: missing credentials", logger.F("provider", string(id)))
		}
	}
	o.log.Info(ctx, "provider registry ready", logger.F("enabled", len(providers)))
	return reg, nil
}

// validateExtras checks provider-specific settings
func validateExtras(id ID, c Credentials) error {
	if id == Keycloak && (c.BaseURL == "" || c.Realm == "") {
		return fmt.Errorf("provider %q needs a base URL and realm", id)
	}
	return nil
}

// Lookup returns the provider registered under id
func (r *Registry) Lookup(id string) (Provider, error) {
	if p, ok := r.providers[ID(id)]; ok {
		return p, nil
	}
	if _, known := builders[ID(id)]; known {
		return nil, &NotFoundError{Provider: id, Reason: "not configured"}
	}
	return nil, &NotFoundError{Provider: id, Reason: "unknown"}
}

// PreFlow runs the provider's pre-flow hook, if it has one. Providers without
// a hook need no dynamic parameters.
func (r *Registry) PreFlow(id string, query url.Values) (DynamicParams, error) {
	p, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}
	hook, ok := p.(PreFlowHook)
	if !ok {
		return DynamicParams{}, nil
	}
	return hook.PreFlow(query)
}

// Enabled returns the identifiers of usable providers, sorted
func (r *Registry) Enabled() []ID {
	ids := make([]ID, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

func sortIDs(ids []ID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
