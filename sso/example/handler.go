package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"profilenorm/logger"
	"profilenorm/sso"
)

const maxProfileBody = 1 << 20

// LoginHandler drives the login flow for every registered provider and
// returns the normalized profile as JSON
type LoginHandler struct {
	registry *sso.Registry
	pipeline *sso.Pipeline
	states   *StateStore
	client   *http.Client
	log      *logger.Logger
	// DefaultRedirectURL is used when a login names no redirect_url
	DefaultRedirectURL string
}

// NewLoginHandler creates a LoginHandler. client is used for the token
// exchange and the primary profile request.
func NewLoginHandler(reg *sso.Registry, pipeline *sso.Pipeline, states *StateStore, client *http.Client, log *logger.Logger) *LoginHandler {
	return &LoginHandler{
		registry:           reg,
		pipeline:           pipeline,
		states:             states,
		client:             client,
		log:                log,
		DefaultRedirectURL: "/",
	}
}

// RegisterHandlers registers the login routes with the provided ServeMux
func (h *LoginHandler) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/auth/login", h.Login)
	mux.HandleFunc("/auth/callback", h.Callback)
	mux.HandleFunc("/healthz", h.Health)
}

// Login validates the request, stores the state and redirects to the provider
func (h *LoginHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerName := r.URL.Query().Get("provider")
	if providerName == "" {
		http.Error(w, "Provider not specified", http.StatusBadRequest)
		return
	}

	dyn, err := h.registry.PreFlow(providerName, r.URL.Query())
	if err != nil {
		var verr *sso.ValidationError
		if errors.As(err, &verr) && verr.RedirectTo != "" {
			http.Redirect(w, r, verr.RedirectTo, http.StatusFound)
			return
		}
		h.writeError(ctx, w, err)
		return
	}

	provider, err := h.registry.Lookup(providerName)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	redirectURL := r.URL.Query().Get("redirect_url")
	if redirectURL == "" {
		redirectURL = h.DefaultRedirectURL
	}
	if !IsValidRedirectURL(redirectURL) {
		http.Error(w, "Invalid redirect URL", http.StatusBadRequest)
		return
	}

	state, st, err := h.states.Issue(ctx, providerName, redirectURL)
	if err != nil {
		h.log.Error(ctx, "failed to issue login state", logger.F("error", err.Error()))
		http.Error(w, "Failed to generate state token", http.StatusInternalServerError)
		return
	}

	if dyn == nil {
		dyn = sso.DynamicParams{}
	}
	dyn["code_challenge"] = oauth2.S256ChallengeFromVerifier(st.Verifier)
	dyn["code_challenge_method"] = "S256"

	http.Redirect(w, r, provider.OAuth().AuthCodeURL(state, dyn), http.StatusFound)
}

// Callback exchanges the code, assembles the raw response and normalizes it
func (h *LoginHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// FormValue covers both query callbacks and form_post (Apple)
	st, err := h.states.Consume(ctx, r.FormValue("state"))
	if err != nil {
		if errors.Is(err, errInvalidState) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error(ctx, "failed to load login state", logger.F("error", err.Error()))
		http.Error(w, "Failed to load state", http.StatusInternalServerError)
		return
	}

	if msg := r.FormValue("error"); msg != "" {
		h.log.Info(ctx, "provider denied login",
			logger.F("provider", st.Provider),
			logger.F("reason", msg),
		)
		http.Error(w, fmt.Sprintf("Authentication denied: %s", msg), http.StatusBadRequest)
		return
	}
	code := r.FormValue("code")
	if code == "" {
		http.Error(w, "Missing code parameter", http.StatusBadRequest)
		return
	}

	provider, err := h.registry.Lookup(st.Provider)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	params := provider.OAuth()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, h.client)
	token, err := params.Config.Exchange(ctx, code, oauth2.VerifierOption(st.Verifier))
	if err != nil {
		h.log.Warn(ctx, "token exchange failed",
			logger.F("provider", st.Provider),
			logger.F("error", err.Error()),
		)
		http.Error(w, "Token exchange failed", http.StatusBadGateway)
		return
	}

	raw, err := h.rawResponse(ctx, st.Provider, params, token)
	if err == nil && len(raw.Profile) == 0 {
		// Apple posts the user's name once, alongside the code
		if user := r.FormValue("user"); user != "" {
			raw.Profile = json.RawMessage(user)
		}
	}
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	profile, err := h.pipeline.Normalize(ctx, st.Provider, raw)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	h.log.Info(ctx, "user authenticated",
		logger.F("provider", st.Provider),
		logger.F("user_id", profile.ID),
	)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"provider":     st.Provider,
		"profile":      profile,
		"redirect_url": st.RedirectURL,
	})
}

// Health reports the enabled providers
func (h *LoginHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"providers": h.registry.Enabled(),
	})
}

// rawResponse collects the access token, id_token and primary profile
func (h *LoginHandler) rawResponse(ctx context.Context, provider string, params sso.OAuthParams, token *oauth2.Token) (sso.RawResponse, error) {
	raw := sso.RawResponse{AccessToken: token.AccessToken}

	if idToken, ok := token.Extra("id_token").(string); ok && idToken != "" {
		withID, err := raw.WithIDToken(idToken)
		if err != nil {
			return raw, &sso.MalformedResponseError{Provider: provider, Field: "id_token", Err: err}
		}
		raw = withID
	}

	switch {
	case params.ProfileTokenField != "":
		if v := token.Extra(params.ProfileTokenField); v != nil {
			data, err := json.Marshal(v)
			if err != nil {
				return raw, &sso.MalformedResponseError{Provider: provider, Field: params.ProfileTokenField, Err: err}
			}
			raw.Profile = data
		}
	case params.ProfileURL != "":
		data, err := h.fetchProfile(ctx, provider, params, token)
		if err != nil {
			return raw, err
		}
		raw.Profile = data
	}
	return raw, nil
}

func (h *LoginHandler) fetchProfile(ctx context.Context, provider string, params sso.OAuthParams, token *oauth2.Token) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, params.ProfileURL, nil)
	if err != nil {
		return nil, &sso.UpstreamError{Provider: provider, Endpoint: params.ProfileURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range params.ProfileHeaders {
		req.Header.Set(k, v)
	}

	resp, err := params.Config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, &sso.UpstreamError{Provider: provider, Endpoint: params.ProfileURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &sso.UpstreamError{Provider: provider, Endpoint: params.ProfileURL, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBody))
	if err != nil {
		return nil, &sso.UpstreamError{Provider: provider, Endpoint: params.ProfileURL, Err: err}
	}
	return body, nil
}

// writeError maps the error kinds onto HTTP statuses
func (h *LoginHandler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sso.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, sso.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, sso.ErrUpstream), errors.Is(err, sso.ErrMalformedResponse):
		status = http.StatusBadGateway
	default:
		h.log.Error(ctx, "login failed", logger.F("error", err.Error()))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
