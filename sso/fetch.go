package sso

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

// maxSecondaryBody caps how much of a secondary response is read
const maxSecondaryBody = 1 << 20

// fetchJSON performs the single authenticated secondary request of a provider.
// It is never retried: a failed call aborts the normalization.
func fetchJSON(ctx context.Context, client *http.Client, provider ID, endpoint, accessToken string, dest interface{}) error {
	upstream := func(status int, err error) error {
		return &UpstreamError{Provider: string(provider), Endpoint: endpoint, StatusCode: status, Err: err}
	}

	if accessToken == "" {
		return upstream(0, fmt.Errorf("no access token for secondary request"))
	}
	if client == nil {
		client = http.DefaultClient
	}

	// The bearer client wraps the injected client's transport
	ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	authed := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	authed.Timeout = client.Timeout

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return upstream(0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := authed.Do(req)
	if err != nil {
		return upstream(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxSecondaryBody))
		return upstream(resp.StatusCode, nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSecondaryBody))
	if err != nil {
		return upstream(0, fmt.Errorf("failed reading response body: %w", err))
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return upstream(0, fmt.Errorf("failed parsing response: %w", err))
	}
	return nil
}

// emailRecord is one entry of a provider's email listing
type emailRecord struct {
	Email    string
	Primary  bool
	Verified bool
}

// pickEmail applies the tie-break: the record flagged primary wins,
// otherwise the first record in returned order.
func pickEmail(records []emailRecord) (emailRecord, bool) {
	for _, r := range records {
		if r.Primary {
			return r, true
		}
	}
	if len(records) > 0 {
		return records[0], true
	}
	return emailRecord{}, false
}
