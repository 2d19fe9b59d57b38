package modelclient

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/multiview/internal/resilience"
	"github.com/sells-group/multiview/pkg/anthropic"
	"github.com/sells-group/multiview/pkg/gemini"
	"github.com/sells-group/multiview/pkg/openrouter"
)

// Kind classifies a failed call so callers can decide how to degrade.
type Kind string

const (
	// KindConfig is a caller mistake detected before any network call.
	KindConfig Kind = "config"
	// KindTransient is a network failure or timeout that outlived retries.
	KindTransient Kind = "transient"
	// KindUpstream is an HTTP error reply, with status and body.
	KindUpstream Kind = "upstream"
	// KindData is a reply that could not be read as a completion.
	KindData Kind = "data"
)

var (
	// ErrMissingCredential is returned when the call has no credential.
	ErrMissingCredential = eris.New("modelclient: credential is required")
	// ErrProviderNotConfigured is returned for a route whose provider has no key.
	ErrProviderNotConfigured = eris.New("modelclient: provider not configured")
	// ErrEmptyCompletion is returned when a provider replies without text.
	ErrEmptyCompletion = eris.New("modelclient: completion has no text")
)

// Error is the failure of one Call.
type Error struct {
	Kind       Kind
	Model      string
	StatusCode int
	Body       string
	Attempts   int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("modelclient: %s error from %s (status %d, %d attempt(s)): %s", e.Kind, e.Model, e.StatusCode, e.Attempts, e.Body)
	}
	return fmt.Sprintf("modelclient: %s error from %s (%d attempt(s)): %v", e.Kind, e.Model, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus returns the upstream status, or 0 when there was none.
func (e *Error) HTTPStatus() int { return e.StatusCode }

// KindOf returns the kind of a modelclient error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err is a modelclient error of kind k.
func IsKind(err error, k Kind) bool {
	got, ok := KindOf(err)
	return ok && got == k
}

func isDataErr(err error) bool {
	return errors.Is(err, openrouter.ErrMalformedResponse) ||
		errors.Is(err, gemini.ErrEmptyResponse) ||
		errors.Is(err, ErrEmptyCompletion)
}

// retryable limits retries to timeouts, network failures and 5xx replies.
func retryable(err error) bool {
	if isDataErr(err) || errors.Is(err, resilience.ErrBreakerOpen) {
		return false
	}
	return resilience.IsTransient(err)
}

// classify turns the final error of a call into an *Error.
func classify(model string, attempts int, err error) *Error {
	e := &Error{Model: model, Attempts: attempts, Err: err}

	switch {
	case errors.Is(err, ErrMissingCredential), errors.Is(err, ErrProviderNotConfigured):
		e.Kind = KindConfig
	case errors.Is(err, resilience.ErrBreakerOpen):
		e.Kind = KindTransient
	case isDataErr(err):
		e.Kind = KindData
	default:
		if code, ok := resilience.StatusOf(err); ok {
			e.Kind = KindUpstream
			e.StatusCode = code
			e.Body = bodyOf(err)
		} else {
			e.Kind = KindTransient
		}
	}
	return e
}

func bodyOf(err error) string {
	var or *openrouter.StatusError
	if errors.As(err, &or) {
		return or.Body
	}
	var an *anthropic.APIError
	if errors.As(err, &an) {
		return an.Body
	}
	var ge *gemini.APIError
	if errors.As(err, &ge) {
		return ge.Message
	}
	return err.Error()
}
