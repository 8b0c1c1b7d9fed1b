package sso

import (
	"strings"

	"golang.org/x/text/language"
)

// Profile is the canonical user profile every provider maps into
type Profile struct {
	ID            string `json:"id"`
	DisplayName   string `json:"displayName,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified *bool  `json:"emailVerified,omitempty"`
	AvatarURL     string `json:"avatarUrl,omitempty"`
	Locale        string `json:"locale,omitempty"`
}

// setEmail records an email together with the provider's verification claim.
// An empty email leaves both fields absent.
func (p *Profile) setEmail(email string, verified *bool) {
	email = strings.TrimSpace(email)
	if email == "" {
		return
	}
	p.Email = email
	p.EmailVerified = verified
}

func boolPtr(b bool) *bool {
	return &b
}

// joinName builds a display name from name parts, skipping empty ones
func joinName(parts ...string) string {
	var kept []string
	for _, part := range parts {
		if s := strings.TrimSpace(part); s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, " ")
}

// firstNonEmpty returns the first non-blank value
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// canonicalLocale reduces a locale tag such as "en-US" or "pt_BR" to its base language
func canonicalLocale(tag string) string {
	tag = strings.TrimSpace(strings.ReplaceAll(tag, "_", "-"))
	if tag == "" {
		return ""
	}
	if t, err := language.Parse(tag); err == nil {
		if base, conf := t.Base(); conf != language.No {
			return base.String()
		}
	}
	if i := strings.IndexByte(tag, '-'); i > 0 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}
