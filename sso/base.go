package sso

import (
	"encoding/json"
)

// base carries the fields every provider shares
type base struct {
	id     ID
	params OAuthParams
}

// Name returns the registry identifier of the provider
func (b *base) Name() ID {
	return b.id
}

// OAuth returns a copy of the provider's OAuth parameters
func (b *base) OAuth() OAuthParams {
	p := b.params
	p.Config.Scopes = append([]string(nil), b.params.Config.Scopes...)
	p.AuthParams = copyParams(b.params.AuthParams)
	p.ProfileHeaders = copyParams(b.params.ProfileHeaders)
	return p
}

func copyParams(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// decodeIdentity decodes the id_token payload when present, the profile otherwise
func (b *base) decodeIdentity(raw RawResponse, dest interface{}) error {
	if payload, ok := raw.claims(); ok {
		return decodePayload(b.id, "id_token payload", payload, dest)
	}
	return decodePayload(b.id, "profile", raw.Profile, dest)
}

// decodeProfile decodes the primary profile payload
func (b *base) decodeProfile(raw RawResponse, dest interface{}) error {
	return decodePayload(b.id, "profile", raw.Profile, dest)
}

// hasProfile reports whether the primary payload carries data
func hasProfile(raw RawResponse) bool {
	var probe json.RawMessage
	if len(raw.Profile) == 0 {
		return false
	}
	if err := json.Unmarshal(raw.Profile, &probe); err != nil {
		return false
	}
	return string(probe) != "null"
}
