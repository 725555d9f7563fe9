// Package source defines the result and error types every dashboard data
// source returns.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidewatch/tidewatch/internal/displaymode"
	"github.com/tidewatch/tidewatch/internal/provider/resilience"
)

// Kind classifies why a fetch failed.
type Kind string

const (
	// KindConfig means a required setting is missing; no network call was made.
	KindConfig Kind = "config"
	// KindNetwork covers transport failures and non-2xx responses.
	KindNetwork Kind = "network"
	// KindData means the provider answered with an unexpected shape.
	KindData Kind = "data"
	// KindAuth means the provider rejected the credentials (401/403).
	KindAuth Kind = "auth"
)

// Reason codes carried by successful results that have nothing to show.
const (
	ReasonNotConfigured       = "not_configured"
	ReasonNoAccountsConnected = "no_accounts_connected"
)

// Error is a classified fetch failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind) + " error"
	}
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so errors.Is(err, ErrData) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Err == nil && t.Kind == e.Kind
}

// MarshalJSON renders the kind and message.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind    Kind   `json:"kind"`
		Message string `json:"message"`
	}{e.Kind, e.Error()})
}

// Sentinels for errors.Is comparisons by kind.
var (
	ErrConfig  = &Error{Kind: KindConfig}
	ErrNetwork = &Error{Kind: KindNetwork}
	ErrData    = &Error{Kind: KindData}
	ErrAuth    = &Error{Kind: KindAuth}
)

// ConfigError reports a missing or invalid setting.
func ConfigError(format string, args ...any) *Error {
	return &Error{Kind: KindConfig, Err: fmt.Errorf(format, args...)}
}

// DataError reports an unexpected provider response.
func DataError(format string, args ...any) *Error {
	return &Error{Kind: KindData, Err: fmt.Errorf(format, args...)}
}

// Classify maps an error from a provider call onto a Kind.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	var statusErr *resilience.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Unauthorized() {
			return &Error{Kind: KindAuth, Err: err}
		}
		return &Error{Kind: KindNetwork, Err: err}
	}

	var decodeErr *resilience.DecodeError
	if errors.As(err, &decodeErr) {
		return &Error{Kind: KindData, Err: err}
	}

	return &Error{Kind: KindNetwork, Err: err}
}

// Result is the outcome of one fetch from one source. Exactly one of a value
// or Err is meaningful; a nil Err means success.
type Result[T any] struct {
	Value  T      `json:"value"`
	Source string `json:"source"`
	Err    *Error `json:"error,omitempty"`

	// Reason explains an empty success ("not_configured", ...).
	Reason string `json:"reason,omitempty"`
}

// Ok builds a successful result.
func Ok[T any](value T, source string) Result[T] {
	return Result[T]{Value: value, Source: source}
}

// Empty builds a successful result that has nothing to show for reason.
func Empty[T any](reason, source string) Result[T] {
	var zero T
	return Result[T]{Value: zero, Source: source, Reason: reason}
}

// Fail builds a failed result, classifying err.
func Fail[T any](err error, source string) Result[T] {
	return Result[T]{Source: source, Err: Classify(err)}
}

// OK reports success.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Failed reports failure.
func (r Result[T]) Failed() bool {
	return r.Err != nil
}

// Kind returns the failure kind, or "" on success.
func (r Result[T]) Kind() Kind {
	if r.Err == nil {
		return ""
	}
	return r.Err.Kind
}

// Fetcher produces one Result per call and never panics past its boundary.
type Fetcher[T any] interface {
	Fetch(ctx context.Context, mode displaymode.Mode) Result[T]
}
