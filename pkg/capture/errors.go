package capture

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a capture failure. The orchestrator's recovery
// decision depends only on the Kind.
type Kind uint8

const (
	// KindOther is anything unclassified. Never retried.
	KindOther Kind = iota
	// KindValidation means the URL could not be normalized.
	KindValidation
	// KindTimeout means the page did not load within the page-load timeout.
	KindTimeout
	// KindSession means the browser or the protocol connection broke.
	KindSession
	// KindProvisioning means no browser could be located or launched.
	KindProvisioning
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTimeout:
		return "timeout"
	case KindSession:
		return "session"
	case KindProvisioning:
		return "provisioning"
	default:
		return "other"
	}
}

// Sentinel errors. Check with errors.Is(err, capture.ErrInvalidURL).
var (
	ErrInvalidURL      = errors.New("invalid URL")
	ErrPageLoadTimeout = errors.New("page load timeout")
	ErrSessionLost     = errors.New("browser session lost")
	ErrNoBrowser       = errors.New("no usable browser")
	ErrNoSegments      = errors.New("no segments captured")
)

// Error is a classified capture failure.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "navigate"
	URL  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.URL != "" {
		msg += " " + e.URL
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind.
func NewError(kind Kind, op, url string, err error) *Error {
	return &Error{Kind: kind, Op: op, URL: url, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindOther.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindOther
}

// Class is the error category exposed at the service boundary.
type Class string

const (
	ClassValidation Class = "validation"
	ClassTimeout    Class = "timeout"
	ClassFailure    Class = "failure"
)

// ClassOf maps an error to its boundary class. Session and provisioning
// failures surface as generic failures.
func ClassOf(err error) Class {
	switch KindOf(err) {
	case KindValidation:
		return ClassValidation
	case KindTimeout:
		return ClassTimeout
	default:
		return ClassFailure
	}
}

type recovery uint8

const (
	recoverNone     recovery = iota // terminal
	recoverInPlace                  // retry with the same session
	recoverRecreate                 // discard the session and start a new one
)

func (r recovery) String() string {
	switch r {
	case recoverInPlace:
		return "retry"
	case recoverRecreate:
		return "recreate"
	default:
		return "fail"
	}
}

// recoveryFor is the whole retry policy.
func recoveryFor(kind Kind) recovery {
	switch kind {
	case KindTimeout:
		return recoverInPlace
	case KindSession:
		return recoverRecreate
	default:
		return recoverNone
	}
}

// contextErr reports a cancelled or expired caller context as a terminal
// error.
func contextErr(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return NewError(KindOther, op, "", fmt.Errorf("aborted: %w", err))
	}
	return nil
}
