package extract

import (
	"errors"
	"fmt"
)

// Kind classifies why a file could not be turned into text.
type Kind string

const (
	// KindUnsupported is a file type with no extractor.
	KindUnsupported Kind = "unsupported"
	// KindUnavailable is a supported type whose engine cannot run here.
	KindUnavailable Kind = "unavailable"
	// KindCorrupt is input that could not be decoded or parsed.
	KindCorrupt Kind = "corrupt"
	// KindTooLarge is input over the configured size limits.
	KindTooLarge Kind = "too_large"
)

// Error is a classified extraction failure.
type Error struct {
	Kind     Kind
	Filename string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract: %s %q: %v", e.Kind, e.Filename, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of an extract error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

func newError(kind Kind, filename string, err error) *Error {
	return &Error{Kind: kind, Filename: filename, Err: err}
}
