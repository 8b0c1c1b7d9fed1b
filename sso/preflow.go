package sso

import (
	"net/url"
	"strings"
)

// Selector picks the enterprise identity to sign in with. At least one
// field must be set before the flow can start.
type Selector struct {
	Organization string
	Connection   string
	Domain       string
}

// Selector query parameter names, also used as authorization parameters
const (
	ParamOrganization = "organization"
	ParamConnection   = "connection"
	ParamDomain       = "domain"
)

// Empty reports whether no selector value is set
func (s Selector) Empty() bool {
	return s.Organization == "" && s.Connection == "" && s.Domain == ""
}

// Params returns the non-empty selector values as authorization parameters
func (s Selector) Params() DynamicParams {
	params := DynamicParams{}
	if s.Organization != "" {
		params[ParamOrganization] = s.Organization
	}
	if s.Connection != "" {
		params[ParamConnection] = s.Connection
	}
	if s.Domain != "" {
		params[ParamDomain] = s.Domain
	}
	return params
}

// ResolveSelector substitutes the configured defaults for missing or blank query
// values. Present values are kept unchanged.
func ResolveSelector(query url.Values, defaults Selector) Selector {
	pick := func(key, fallback string) string {
		if v := query.Get(key); strings.TrimSpace(v) != "" {
			return v
		}
		if strings.TrimSpace(fallback) != "" {
			return fallback
		}
		return ""
	}
	return Selector{
		Organization: pick(ParamOrganization, defaults.Organization),
		Connection:   pick(ParamConnection, defaults.Connection),
		Domain:       pick(ParamDomain, defaults.Domain),
	}
}

// selectorRequiredMessage is shown to the user when no selector was supplied
const selectorRequiredMessage = "An organization, connection or domain is required to sign in."

// RequireSelector resolves the selector and fails with a ValidationError when
// it is empty. It never performs I/O.
func RequireSelector(provider ID, query url.Values, defaults Selector, errorRedirect string) (DynamicParams, error) {
	sel := ResolveSelector(query, defaults)
	if sel.Empty() {
		return nil, &ValidationError{
			Provider:   string(provider),
			Message:    selectorRequiredMessage,
			RedirectTo: errorRedirectURL(errorRedirect, selectorRequiredMessage),
		}
	}
	return sel.Params(), nil
}

// errorRedirectURL appends the message as the error query parameter
func errorRedirectURL(target, message string) string {
	if target == "" {
		target = "/login"
	}
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set("error", message)
	u.RawQuery = q.Encode()
	return u.String()
}
