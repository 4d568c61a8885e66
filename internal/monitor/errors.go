package monitor

import (
	"errors"
	"fmt"
)

// ErrorKind tags a pipeline failure with the step that produced it.
type ErrorKind string

// Error kinds. Only KindNotification is non-fatal.
const (
	KindNavigation     ErrorKind = "navigation"
	KindCapture        ErrorKind = "capture"
	KindClassification ErrorKind = "classification"
	KindNotification   ErrorKind = "notification"
	KindUnexpected     ErrorKind = "unexpected"
)

// Error is a tagged pipeline failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

// Error renders the underlying message; the kind is available separately.
func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind) + " error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error to errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Fatal reports whether the failure aborts the run.
func (e *Error) Fatal() bool {
	return e.Kind != KindNotification
}

// NewError wraps err with kind. A nil err yields nil.
func NewError(kind ErrorKind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Errorf builds a tagged error from a format string.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// NavigationError tags err as a navigation failure.
func NavigationError(err error) error { return wrapKind(KindNavigation, err) }

// CaptureError tags err as a capture failure.
func CaptureError(err error) error { return wrapKind(KindCapture, err) }

// ClassificationError tags err as a classification failure.
func ClassificationError(err error) error { return wrapKind(KindClassification, err) }

// NotificationError tags err as a notification failure.
func NotificationError(err error) error { return wrapKind(KindNotification, err) }

func wrapKind(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// AsError returns the tagged error in err's chain, or wraps err as
// KindUnexpected (fallback) when none is present.
func AsError(err error, fallback ErrorKind) *Error {
	if err == nil {
		return nil
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged
	}
	return &Error{Kind: fallback, Err: err}
}

// KindOf returns the kind of the tagged error in err's chain, or
// KindUnexpected.
func KindOf(err error) ErrorKind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return KindUnexpected
}

// IsFatal reports whether err should abort a run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return KindOf(err) != KindNotification
}
