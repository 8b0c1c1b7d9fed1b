package sso

import (
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// DecodeIDToken decodes the payload of a compact identity token.
// The signature is not checked here: the OAuth layer validates the token
// before its response reaches the pipeline.
func DecodeIDToken(token string) (*IDToken, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser(jwt.WithJSONNumber()).ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed parsing id_token: %w", err)
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return nil, fmt.Errorf("failed encoding id_token claims: %w", err)
	}
	return &IDToken{Payload: payload}, nil
}

// WithIDToken returns a copy of raw carrying the decoded id_token
func (r RawResponse) WithIDToken(token string) (RawResponse, error) {
	if token == "" {
		return r, nil
	}
	idToken, err := DecodeIDToken(token)
	if err != nil {
		return r, err
	}
	r.JWT = &JWT{IDToken: idToken}
	return r, nil
}
