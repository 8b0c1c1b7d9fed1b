package sso

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeAPI stands in for a provider API. Every request sent through its
// client is routed to the test server whatever the original host.
type fakeAPI struct {
	srv *httptest.Server

	mu       sync.Mutex
	requests []*http.Request
}

func newFakeAPI(t *testing.T, handler http.HandlerFunc) *fakeAPI {
	t.Helper()
	api := &fakeAPI{}
	api.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		api.requests = append(api.requests, r.Clone(r.Context()))
		api.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(api.srv.Close)
	return api
}

// jsonAPI answers every request with status and body
func jsonAPI(t *testing.T, status int, body string) *fakeAPI {
	return newFakeAPI(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func (a *fakeAPI) client() *http.Client {
	target, _ := url.Parse(a.srv.URL)
	return &http.Client{Transport: rewriteTransport{target: target, next: a.srv.Client().Transport}}
}

func (a *fakeAPI) calls() []*http.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*http.Request(nil), a.requests...)
}

type rewriteTransport struct {
	target *url.URL
	next   http.RoundTripper
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = rt.target.Scheme
	out.URL.Host = rt.target.Host
	out.Host = rt.target.Host
	return rt.next.RoundTrip(out)
}

// noNetwork is a client that fails the test on any request
func noNetwork(t *testing.T) *http.Client {
	return &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		t.Errorf("unexpected request to %s", r.URL)
		return nil, errors.New("network disabled in test")
	})}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func profileJSON(s string) RawResponse {
	return RawResponse{Profile: json.RawMessage(s), AccessToken: "access-token"}
}

func idTokenJSON(claims string) RawResponse {
	return RawResponse{AccessToken: "access-token", JWT: &JWT{IDToken: &IDToken{Payload: json.RawMessage(claims)}}}
}

func creds() Credentials {
	return Credentials{ClientID: "client", ClientSecret: "secret", RedirectURL: "https://app.example.com/callback"}
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	settings := make(map[ID]Credentials)
	for _, id := range Catalog() {
		c := creds()
		if id == Keycloak {
			c.BaseURL = "https://id.example.com"
			c.Realm = "staff"
		}
		settings[id] = c
	}
	reg, err := NewRegistry(settings)
	require.NoError(t, err)
	return reg
}
