package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profilenorm/cache"
	"profilenorm/logger"
	"profilenorm/sso"
)

// rewriteTransport sends every request to target, keeping path and query
type rewriteTransport struct {
	target *url.URL
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = rt.target.Scheme
	out.URL.Host = rt.target.Host
	out.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(out)
}

// fakeProviders serves the Twitch and Apple token endpoints and Helix users
func fakeProviders(t *testing.T, idToken string) *http.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tw-token","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/helix/users", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Client-Id") != "tw-client" || r.Header.Get("Authorization") != "Bearer tw-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Unauthorized","message":"Client ID and OAuth token do not match"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"141981764","login":"twitchdev","display_name":"TwitchDev","email":"dev@example.com","profile_image_url":"https://static-cdn.jtvnw.net/dev.png"}]}`))
	})
	mux.HandleFunc("/auth/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body, _ := json.Marshal(map[string]interface{}{
			"access_token": "apple-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     idToken,
		})
		_, _ = w.Write(body)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	target, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return &http.Client{Transport: rewriteTransport{target: target}, Timeout: 5 * time.Second}
}

func appleIDToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":            "001234.abcdef",
		"email":          "ada@privaterelay.appleid.com",
		"email_verified": "true",
	})
	signed, err := token.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return signed
}

func newProvidersHandler(t *testing.T, client *http.Client) *LoginHandler {
	t.Helper()
	reg, err := sso.NewRegistry(map[sso.ID]sso.Credentials{
		sso.Twitch: {ClientID: "tw-client", ClientSecret: "tw-secret", RedirectURL: "http://localhost:8080/auth/callback"},
		sso.Apple:  {ClientID: "apple-client", ClientSecret: "apple-secret", RedirectURL: "http://localhost:8080/auth/callback"},
	})
	require.NoError(t, err)

	log := logger.NewLogger()
	pipeline := sso.NewPipeline(reg, sso.WithHTTPClient(client), sso.WithLogger(log))
	states := NewStateStore(cache.NewMemoryCache(time.Minute, time.Minute), time.Minute)
	return NewLoginHandler(reg, pipeline, states, client, log)
}

func issueState(t *testing.T, h *LoginHandler, provider string) string {
	t.Helper()
	rec := serve(h, http.MethodGet, "/auth/login?provider="+provider)
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

type callbackBody struct {
	Provider string      `json:"provider"`
	Profile  sso.Profile `json:"profile"`
}

func TestCallback_TwitchSendsClientID(t *testing.T) {
	client := fakeProviders(t, "")
	h := newProvidersHandler(t, client)
	state := issueState(t, h, "twitch")

	rec := serve(h, http.MethodGet, "/auth/callback?code=tw-code&state="+url.QueryEscape(state))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body callbackBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "141981764", body.Profile.ID)
	assert.Equal(t, "TwitchDev", body.Profile.DisplayName)
	assert.Equal(t, "dev@example.com", body.Profile.Email)
	assert.Equal(t, "https://static-cdn.jtvnw.net/dev.png", body.Profile.AvatarURL)
}

func TestCallback_AppleFormPostUser(t *testing.T) {
	client := fakeProviders(t, appleIDToken(t))
	h := newProvidersHandler(t, client)
	state := issueState(t, h, "apple")

	form := url.Values{
		"state": {state},
		"code":  {"apple-code"},
		"user":  {`{"name":{"firstName":"Ada","lastName":"Lovelace"},"email":"ada@privaterelay.appleid.com"}`},
	}
	req := httptest.NewRequest(http.MethodPost, "/auth/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	mux := http.NewServeMux()
	h.RegisterHandlers(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body callbackBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "apple", body.Provider)
	assert.Equal(t, "001234.abcdef", body.Profile.ID)
	assert.Equal(t, "Ada Lovelace", body.Profile.DisplayName)
	assert.Equal(t, "ada@privaterelay.appleid.com", body.Profile.Email)
	require.NotNil(t, body.Profile.EmailVerified)
	assert.True(t, *body.Profile.EmailVerified)
}

func TestCallback_AppleLaterLoginWithoutUser(t *testing.T) {
	client := fakeProviders(t, appleIDToken(t))
	h := newProvidersHandler(t, client)
	state := issueState(t, h, "apple")

	rec := serve(h, http.MethodGet, "/auth/callback?code=apple-code&state="+url.QueryEscape(state))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body callbackBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "001234.abcdef", body.Profile.ID)
	assert.Empty(t, body.Profile.DisplayName)
}
