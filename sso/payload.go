package sso

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// decodePayload unmarshals a provider payload into dest
func decodePayload(provider ID, field string, data json.RawMessage, dest interface{}) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return missingField(provider, field)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return &MalformedResponseError{
			Provider: string(provider),
			Field:    field,
			Err:      fmt.Errorf("decode %s: %w", field, err),
		}
	}
	return nil
}

// flexString accepts a JSON string or number. Providers disagree on whether
// user ids are numeric.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*s = flexString(n.String())
	return nil
}

func (s flexString) String() string { return string(s) }

// flexBool accepts a JSON boolean or a "true"/"false" string and remembers
// whether the field was present at all.
type flexBool struct {
	set   bool
	value bool
}

func (f *flexBool) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = flexBool{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("expected boolean, got %q", v)
		}
		*f = flexBool{set: true, value: parsed}
		return nil
	}
	var v bool
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexBool{set: true, value: v}
	return nil
}

// ptr returns nil when the field was absent
func (f flexBool) ptr() *bool {
	if !f.set {
		return nil
	}
	return boolPtr(f.value)
}
