package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind tags an Error so callers can branch on the failure class.
type ErrorKind string

const (
	// KindValidation marks malformed caller input. Never retried.
	KindValidation ErrorKind = "VALIDATION_ERROR"
	// KindAuth marks a failed login exchange or a rejected token.
	KindAuth ErrorKind = "AUTH_ERROR"
	// KindTokenMismatch marks a cached token bound to a stale credential
	// version. It is handled inside the token manager and never surfaced.
	KindTokenMismatch ErrorKind = "TOKEN_MISMATCH"
	// KindTransientHTTP marks a non-2xx or network failure that survived
	// the retry budget.
	KindTransientHTTP ErrorKind = "TRANSIENT_HTTP_ERROR"
	// KindMalformedResponse marks a response that violates the
	// {headers, data[]} contract. Never retried.
	KindMalformedResponse ErrorKind = "MALFORMED_RESPONSE"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrAuth              = &Error{Kind: KindAuth}
	ErrTokenMismatch     = &Error{Kind: KindTokenMismatch}
	ErrTransientHTTP     = &Error{Kind: KindTransientHTTP}
	ErrMalformedResponse = &Error{Kind: KindMalformedResponse}
)

// ErrNoCredentials is wrapped by auth errors raised before any credential set exists.
var ErrNoCredentials = errors.New("no credentials stored")

// Error is the single error type crossing component boundaries.
type Error struct {
	Kind             ErrorKind
	Op               string
	StatusCode       int
	NeedsCredentials bool
	Violations       []string
	Err              error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case len(e.Violations) > 0:
		b.WriteString(strings.Join(e.Violations, "; "))
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(strings.ToLower(strings.ReplaceAll(string(e.Kind), "_", " ")))
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrAuth) works
// regardless of Op or wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// NeedsCredentials reports whether err signals that the user must re-enter credentials.
func NeedsCredentials(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.NeedsCredentials
}

// NewValidationError builds a validation error listing every violation.
func NewValidationError(op string, violations ...string) *Error {
	return &Error{Kind: KindValidation, Op: op, Violations: violations}
}

// NewAuthError builds an auth error that asks the caller for credentials.
func NewAuthError(op string, err error) *Error {
	return &Error{Kind: KindAuth, Op: op, NeedsCredentials: true, Err: err}
}

// NewMalformedResponseError builds a contract-violation error.
func NewMalformedResponseError(op string, format string, args ...any) *Error {
	return &Error{Kind: KindMalformedResponse, Op: op, Err: fmt.Errorf(format, args...)}
}

// HTTPError is returned by the API adapter for non-2xx replies. StatusCode 0
// means the request never produced a response (network failure or timeout).
type HTTPError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *HTTPError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("network error: %v", e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// StatusCodeOf returns the HTTP status carried by err, or 0 when err has none.
func StatusCodeOf(err error) int {
	var h *HTTPError
	if errors.As(err, &h) {
		return h.StatusCode
	}
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}
