package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profilenorm/cache"
	"profilenorm/logger"
	"profilenorm/sso"
)

// fakeKeycloak serves the token and userinfo endpoints of realm "staff"
func fakeKeycloak(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/realms/staff/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != "good-code" || r.PostForm.Get("code_verifier") == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"kc-token","token_type":"Bearer","expires_in":300}`))
	})
	mux.HandleFunc("/realms/staff/protocol/openid-connect/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer kc-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"kc-1","given_name":"Ada","family_name":"Lovelace","email":"ada@example.com","email_verified":true,"locale":"en_GB"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestHandler(t *testing.T, idp *httptest.Server) *LoginHandler {
	t.Helper()
	reg, err := sso.NewRegistry(map[sso.ID]sso.Credentials{
		sso.Keycloak: {
			ClientID:     "kc-client",
			ClientSecret: "kc-secret",
			RedirectURL:  "http://localhost:8080/auth/callback",
			BaseURL:      idp.URL,
			Realm:        "staff",
		},
		sso.WorkOS: {
			ClientID:      "wo-client",
			ClientSecret:  "wo-secret",
			ErrorRedirect: "/signin",
		},
	})
	require.NoError(t, err)

	log := logger.NewLogger()
	pipeline := sso.NewPipeline(reg, sso.WithHTTPClient(idp.Client()), sso.WithLogger(log))
	states := NewStateStore(cache.NewMemoryCache(time.Minute, time.Minute), time.Minute)
	return NewLoginHandler(reg, pipeline, states, idp.Client(), log)
}

func serve(h *LoginHandler, method, target string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.RegisterHandlers(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestLoginCallback_Keycloak(t *testing.T) {
	idp := fakeKeycloak(t)
	h := newTestHandler(t, idp)

	rec := serve(h, http.MethodGet, "/auth/login?provider=keycloak&redirect_url=/home")
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/realms/staff/protocol/openid-connect/auth", loc.Path)
	q := loc.Query()
	assert.Equal(t, "kc-client", q.Get("client_id"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	state := q.Get("state")
	require.NotEmpty(t, state)

	callback := "/auth/callback?code=good-code&state=" + url.QueryEscape(state)
	rec = serve(h, http.MethodGet, callback)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Provider    string      `json:"provider"`
		Profile     sso.Profile `json:"profile"`
		RedirectURL string      `json:"redirect_url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "keycloak", body.Provider)
	assert.Equal(t, "/home", body.RedirectURL)
	assert.Equal(t, "kc-1", body.Profile.ID)
	assert.Equal(t, "Ada Lovelace", body.Profile.DisplayName)
	assert.Equal(t, "ada@example.com", body.Profile.Email)
	require.NotNil(t, body.Profile.EmailVerified)
	assert.True(t, *body.Profile.EmailVerified)
	assert.Equal(t, "en", body.Profile.Locale)

	// state tokens are single use
	rec = serve(h, http.MethodGet, callback)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallback_ExchangeFailure(t *testing.T) {
	idp := fakeKeycloak(t)
	h := newTestHandler(t, idp)

	rec := serve(h, http.MethodGet, "/auth/login?provider=keycloak")
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)

	rec = serve(h, http.MethodGet, "/auth/callback?code=bad-code&state="+url.QueryEscape(loc.Query().Get("state")))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCallback_ProviderDenied(t *testing.T) {
	idp := fakeKeycloak(t)
	h := newTestHandler(t, idp)

	rec := serve(h, http.MethodGet, "/auth/login?provider=keycloak")
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)

	rec = serve(h, http.MethodGet, "/auth/callback?error=access_denied&state="+url.QueryEscape(loc.Query().Get("state")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "access_denied")
}

func TestLogin_WorkOSWithoutSelectorRedirectsToErrorPage(t *testing.T) {
	h := newTestHandler(t, fakeKeycloak(t))

	rec := serve(h, http.MethodGet, "/auth/login?provider=workos")

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/signin", loc.Path)
	assert.Equal(t, "An organization, connection or domain is required to sign in.", loc.Query().Get("error"))
}

func TestLogin_WorkOSSelectorForwarded(t *testing.T) {
	h := newTestHandler(t, fakeKeycloak(t))

	rec := serve(h, http.MethodGet, "/auth/login?provider=workos&organization=org_01H")

	require.Equal(t, http.StatusFound, rec.Code)
	loc := rec.Header().Get("Location")
	assert.True(t, strings.HasPrefix(loc, "https://api.workos.com/sso/authorize?"), loc)
	u, err := url.Parse(loc)
	require.NoError(t, err)
	assert.Equal(t, "org_01H", u.Query().Get("organization"))
	assert.Empty(t, u.Query().Get("connection"))
}

func TestLogin_Errors(t *testing.T) {
	h := newTestHandler(t, fakeKeycloak(t))

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"missing provider", "/auth/login", http.StatusBadRequest},
		{"unknown provider", "/auth/login?provider=myspace", http.StatusNotFound},
		{"unconfigured provider", "/auth/login?provider=google", http.StatusNotFound},
		{"open redirect", "/auth/login?provider=keycloak&redirect_url=//evil.example.com", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, http.MethodGet, tt.target)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, fakeKeycloak(t))

	rec := serve(h, http.MethodGet, "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status    string   `json:"status"`
		Providers []string `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, []string{"keycloak", "workos"}, body.Providers)
}

type recordedEntries struct {
	list []logger.Entry
}

func (r *recordedEntries) Handle(e logger.Entry) error {
	r.list = append(r.list, e)
	return nil
}

func (r *recordedEntries) Close() error { return nil }

func TestLoggingMiddleware_OmitsQuery(t *testing.T) {
	logs := &recordedEntries{}
	log := logger.NewLogger(logger.WithHandler(logs))
	h := loggingMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?code=secret-code&state=s", nil))

	require.Len(t, logs.list, 1)
	e := logs.list[0]
	assert.Equal(t, "/auth/callback", e.Fields["path"])
	assert.Equal(t, http.StatusTeapot, e.Fields["status"])
	assert.Equal(t, int64(len("short and stout")), e.Fields["size"])
	for _, v := range e.Fields {
		if s, ok := v.(string); ok {
			assert.NotContains(t, s, "secret-code")
		}
	}
}
