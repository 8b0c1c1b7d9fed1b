// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"profilenorm/sso"
)

// OAuthClient holds the registration of one OAuth application.
type OAuthClient struct {
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	RedirectURL  string   `env:"REDIRECT_URL"`
	Scopes       []string `env:"SCOPES" envSeparator:","`
}

func (c OAuthClient) configured() bool {
	return c.ClientID != "" || c.ClientSecret != ""
}

func (c OAuthClient) credentials() sso.Credentials {
	var scopes []string
	for _, s := range c.Scopes {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	return sso.Credentials{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       scopes,
	}
}

// MicrosoftConfig adds the directory tenant.
type MicrosoftConfig struct {
	Client OAuthClient
	Tenant string `env:"TENANT" envDefault:"common"`
}

// KeycloakConfig adds the server location.
type KeycloakConfig struct {
	Client  OAuthClient
	BaseURL string `env:"BASE_URL"`
	Realm   string `env:"REALM"`
}

// WorkOSConfig adds the selector defaults used when a login request names none.
type WorkOSConfig struct {
	Client              OAuthClient
	DefaultOrganization string `env:"DEFAULT_ORGANIZATION"`
	DefaultConnection   string `env:"DEFAULT_CONNECTION"`
	DefaultDomain       string `env:"DEFAULT_DOMAIN"`
}

// Providers groups every provider registration. Each is read from
// <PROVIDER>_CLIENT_ID, <PROVIDER>_CLIENT_SECRET and so on.
type Providers struct {
	Apple     OAuthClient     `envPrefix:"APPLE_"`
	Bitbucket OAuthClient     `envPrefix:"BITBUCKET_"`
	Discord   OAuthClient     `envPrefix:"DISCORD_"`
	Facebook  OAuthClient     `envPrefix:"FACEBOOK_"`
	GitHub    OAuthClient     `envPrefix:"GITHUB_"`
	GitLab    OAuthClient     `envPrefix:"GITLAB_"`
	Google    OAuthClient     `envPrefix:"GOOGLE_"`
	Keycloak  KeycloakConfig  `envPrefix:"KEYCLOAK_"`
	LinkedIn  OAuthClient     `envPrefix:"LINKEDIN_"`
	Microsoft MicrosoftConfig `envPrefix:"MICROSOFT_"`
	Reddit    OAuthClient     `envPrefix:"REDDIT_"`
	Slack     OAuthClient     `envPrefix:"SLACK_"`
	Twitch    OAuthClient     `envPrefix:"TWITCH_"`
	Twitter   OAuthClient     `envPrefix:"TWITTER_"`
	WorkOS    WorkOSConfig    `envPrefix:"WORKOS_"`
}

// RedisConfig locates the optional Redis state store.
type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// Config is the full service configuration.
type Config struct {
	ServiceName      string `env:"SERVICE_NAME" envDefault:"profilenorm"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr         string `env:"HTTP_ADDR" envDefault:":8080"`
	TelemetryEnabled bool   `env:"TELEMETRY_ENABLED" envDefault:"false"`

	SecondaryTimeout  time.Duration `env:"SSO_SECONDARY_TIMEOUT" envDefault:"10s"`
	ErrorRedirect     string        `env:"SSO_ERROR_REDIRECT" envDefault:"/login"`
	RequiredProviders []string      `env:"SSO_REQUIRED_PROVIDERS" envSeparator:","`

	Redis     RedisConfig `envPrefix:"REDIS_"`
	Providers Providers
}

// Load reads the optional env files (".env" when none are named), then the
// process environment, and validates the result. Variables already set in
// the environment win over file values.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.SecondaryTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SSO_SECONDARY_TIMEOUT must be positive, got %s", c.SecondaryTimeout))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error", "fatal":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is not a known level", c.LogLevel))
	}
	if _, err := url.Parse(c.ErrorRedirect); err != nil {
		errs = append(errs, fmt.Errorf("SSO_ERROR_REDIRECT: %w", err))
	}
	if c.Redis.DB < 0 {
		errs = append(errs, errors.New("REDIS_DB must not be negative"))
	}

	known := make(map[sso.ID]bool)
	for _, id := range sso.Catalog() {
		known[id] = true
	}
	for _, id := range c.RequiredProviderIDs() {
		if !known[id] {
			errs = append(errs, fmt.Errorf("SSO_REQUIRED_PROVIDERS names unknown provider %q", id))
		}
	}

	for id, client := range c.Providers.clients() {
		if !client.configured() {
			continue
		}
		if client.ClientID == "" || client.ClientSecret == "" {
			errs = append(errs, fmt.Errorf("provider %s: client id and secret must be set together", id))
		}
	}
	if c.Providers.Keycloak.Client.configured() && (c.Providers.Keycloak.BaseURL == "" || c.Providers.Keycloak.Realm == "") {
		errs = append(errs, errors.New("KEYCLOAK_BASE_URL and KEYCLOAK_REALM are required when Keycloak is configured"))
	}

	return errors.Join(errs...)
}

// RequiredProviderIDs returns the providers that must be usable at startup.
func (c *Config) RequiredProviderIDs() []sso.ID {
	var ids []sso.ID
	for _, name := range c.RequiredProviders {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			ids = append(ids, sso.ID(name))
		}
	}
	return ids
}

// ProviderSettings converts the provider registrations into registry input.
func (c *Config) ProviderSettings() map[sso.ID]sso.Credentials {
	settings := make(map[sso.ID]sso.Credentials)
	for id, client := range c.Providers.clients() {
		creds := client.credentials()
		switch id {
		case sso.Microsoft:
			creds.Tenant = c.Providers.Microsoft.Tenant
		case sso.Keycloak:
			creds.BaseURL = c.Providers.Keycloak.BaseURL
			creds.Realm = c.Providers.Keycloak.Realm
		case sso.WorkOS:
			creds.Defaults = sso.Selector{
				Organization: c.Providers.WorkOS.DefaultOrganization,
				Connection:   c.Providers.WorkOS.DefaultConnection,
				Domain:       c.Providers.WorkOS.DefaultDomain,
			}
			creds.ErrorRedirect = c.ErrorRedirect
		}
		settings[id] = creds
	}
	return settings
}

func (p Providers) clients() map[sso.ID]OAuthClient {
	return map[sso.ID]OAuthClient{
		sso.Apple:     p.Apple,
		sso.Bitbucket: p.Bitbucket,
		sso.Discord:   p.Discord,
		sso.Facebook:  p.Facebook,
		sso.GitHub:    p.GitHub,
		sso.GitLab:    p.GitLab,
		sso.Google:    p.Google,
		sso.Keycloak:  p.Keycloak.Client,
		sso.LinkedIn:  p.LinkedIn,
		sso.Microsoft: p.Microsoft.Client,
		sso.Reddit:    p.Reddit,
		sso.Slack:     p.Slack,
		sso.Twitch:    p.Twitch,
		sso.Twitter:   p.Twitter,
		sso.WorkOS:    p.WorkOS.Client,
	}
}
