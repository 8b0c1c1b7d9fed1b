package sso

import (
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalLocale(t *testing.T) {
	tests := map[string]string{
		"":           "",
		"en":         "en",
		"EN":         "en",
		"en-US":      "en",
		"pt_BR":      "pt",
		"zh-Hant-TW": "zh",
		" de-DE ":    "de",
	}
	for in, want := range tests {
		assert.Equal(t, want, canonicalLocale(in), in)
	}
}

func TestJoinNameAndFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", joinName(" Ada ", "", "Lovelace"))
	assert.Equal(t, "", joinName("", " "))
	assert.Equal(t, "b", firstNonEmpty("", "  ", "b", "c"))
	assert.Equal(t, "", firstNonEmpty())
}

func TestSetEmail(t *testing.T) {
	var p Profile
	p.setEmail("  ", boolPtr(true))
	assert.Empty(t, p.Email)
	assert.Nil(t, p.EmailVerified)

	p.setEmail(" ada@example.com ", nil)
	assert.Equal(t, "ada@example.com", p.Email)
	assert.Nil(t, p.EmailVerified)
}

func TestProfileJSON_OmitsAbsentFields(t *testing.T) {
	data, err := json.Marshal(Profile{ID: "1", EmailVerified: nil})
	require.NoError(t, err)
	assert.Equal(t, `{"id":"1"}`, string(data))

	data, err = json.Marshal(Profile{ID: "1", Email: "a@b.c", EmailVerified: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, `{"id":"1","email":"a@b.c","emailVerified":false}`, string(data))
}

func TestFlexString(t *testing.T) {
	var v struct {
		A flexString `json:"a"`
		B flexString `json:"b"`
		C flexString `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":583231,"b":"x1","c":null}`), &v))
	assert.Equal(t, "583231", v.A.String())
	assert.Equal(t, "x1", v.B.String())
	assert.Equal(t, "", v.C.String())

	assert.Error(t, json.Unmarshal([]byte(`{"a":true}`), &v))
}

func TestFlexBool(t *testing.T) {
	var v struct {
		A flexBool `json:"a"`
		B flexBool `json:"b"`
		C flexBool `json:"c"`
		D flexBool `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":true,"b":"false","c":null}`), &v))
	assert.Equal(t, boolPtr(true), v.A.ptr())
	assert.Equal(t, boolPtr(false), v.B.ptr())
	assert.Nil(t, v.C.ptr())
	assert.Nil(t, v.D.ptr())

	assert.Error(t, json.Unmarshal([]byte(`{"a":"maybe"}`), &v))
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		kind string
	}{
		{&NotFoundError{Provider: "x", Reason: "unknown"}, "not_found"},
		{&ValidationError{Provider: "workos", Message: "m"}, "validation"},
		{&UpstreamError{Provider: "github", Endpoint: "e", StatusCode: 500}, "upstream"},
		{missingField(GitHub, "id"), "malformed"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, errorKind(tt.err), tt.err.Error())
	}
}

func TestErrorsUnwrap(t *testing.T) {
	up := &UpstreamError{Provider: "github", Endpoint: "https://api.github.com/user/emails", Err: io.ErrUnexpectedEOF}
	assert.ErrorIs(t, up, io.ErrUnexpectedEOF)
	assert.ErrorIs(t, up, ErrUpstream)
	assert.NotErrorIs(t, up, ErrMalformedResponse)
	assert.Contains(t, up.Error(), "unexpected EOF")

	mal := &MalformedResponseError{Provider: "google", Field: "profile", Err: io.EOF}
	assert.ErrorIs(t, mal, io.EOF)
	assert.Equal(t, `provider "google": response has no id`, missingField(Google, "id").Error())
}
