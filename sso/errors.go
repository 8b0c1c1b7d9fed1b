package sso

import (
	"errors"
	"fmt"
)

// Error kinds, matchable with errors.Is
var (
	ErrNotFound          = errors.New("provider not found")
	ErrValidation        = errors.New("validation failed")
	ErrUpstream          = errors.New("upstream request failed")
	ErrMalformedResponse = errors.New("malformed provider response")
)

// NotFoundError is returned when a provider identifier is not registered
type NotFoundError struct {
	Provider string
	// Reason is "unknown" or "not configured"
	Reason string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("provider %q: %s", e.Provider, e.Reason)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError is returned by the pre-flow guard before any network call
type ValidationError struct {
	Provider string
	// Message is safe to show to the user
	Message string
	// RedirectTo is where the caller should send the user to show Message
	RedirectTo string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("provider %q: %s", e.Provider, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// UpstreamError is returned when a secondary provider call fails
type UpstreamError struct {
	Provider   string
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %q: %s returned status %d", e.Provider, e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("provider %q: %s: %v", e.Provider, e.Endpoint, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// MalformedResponseError is returned when the primary payload lacks a required field
type MalformedResponseError struct {
	Provider string
	Field    string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %q: malformed response: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("provider %q: response has no %s", e.Provider, e.Field)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

func (e *MalformedResponseError) Is(target error) bool { return target == ErrMalformedResponse }

func missingField(provider ID, field string) error {
	return &MalformedResponseError{Provider: string(provider), Field: field}
}

// errorKind names the kind of err for logs and metrics
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	default:
		return "internal"
	}
}
