package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"profilenorm/cache"
)

const stateKeyPrefix = "sso:state:"

// errInvalidState is returned for unknown, expired or replayed state tokens
var errInvalidState = errors.New("invalid or expired state token")

// loginState is what the login step remembers for the callback
type loginState struct {
	Provider    string `json:"provider"`
	RedirectURL string `json:"redirect_url"`
	Verifier    string `json:"verifier"`
}

// StateStore keeps CSRF state tokens in a cache. A token is valid once.
type StateStore struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewStateStore creates a StateStore whose tokens expire after ttl
func NewStateStore(c cache.Cache, ttl time.Duration) *StateStore {
	return &StateStore{cache: c, ttl: ttl}
}

// Issue creates a state token for a login with the given provider.
// The returned state also carries a fresh PKCE verifier.
func (s *StateStore) Issue(ctx context.Context, provider, redirectURL string) (string, loginState, error) {
	token, err := GenerateRandomString(32)
	if err != nil {
		return "", loginState{}, fmt.Errorf("generate state: %w", err)
	}
	st := loginState{
		Provider:    provider,
		RedirectURL: redirectURL,
		Verifier:    oauth2.GenerateVerifier(),
	}
	if err := s.cache.Set(ctx, stateKeyPrefix+token, st, s.ttl); err != nil {
		return "", loginState{}, fmt.Errorf("store state: %w", err)
	}
	return token, st, nil
}

// Consume returns the login state for token and invalidates it
func (s *StateStore) Consume(ctx context.Context, token string) (loginState, error) {
	if token == "" {
		return loginState{}, errInvalidState
	}
	var st loginState
	if err := s.cache.Take(ctx, stateKeyPrefix+token, &st); err != nil {
		if errors.Is(err, cache.ErrKeyNotFound) {
			return loginState{}, errInvalidState
		}
		return loginState{}, fmt.Errorf("load state: %w", err)
	}
	return st, nil
}

// GenerateRandomBytes returns securely generated random bytes
func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// GenerateRandomString returns a URL-safe, base64 encoded
// securely generated random string
func GenerateRandomString(s int) (string, error) {
	b, err := GenerateRandomBytes(s)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// IsValidRedirectURL accepts local paths only, so the callback can not be
// turned into an open redirect
func IsValidRedirectURL(redirectURL string) bool {
	if redirectURL == "" || !strings.HasPrefix(redirectURL, "/") {
		return false
	}
	if strings.HasPrefix(redirectURL, "//") || strings.HasPrefix(redirectURL, "/\\") {
		return false
	}
	u, err := url.Parse(redirectURL)
	if err != nil {
		return false
	}
	return !u.IsAbs() && u.Host == ""
}
