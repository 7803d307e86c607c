// Package errors provides error types and failure classification for
// retrieval operations. Every failure surfaced by the getter module is
// classified with a Kind so callers and the retry loop can distinguish
// transient transport problems from permanent ones.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a retrieval failure. Kinds are string-based for
// debuggability and natural JSON serialization.
type Kind string

const (
	// Dispatch errors.

	// KindUnsupportedSource indicates no registered getter matched the locator.
	KindUnsupportedSource Kind = "UNSUPPORTED_SOURCE"

	// KindInvalidLocator indicates a getter matched the locator but its shape
	// is unusable (missing bucket, key, repository path or subpath).
	KindInvalidLocator Kind = "INVALID_LOCATOR"

	// Backend errors.

	// KindNotFound indicates the backend reports the object does not exist.
	KindNotFound Kind = "NOT_FOUND"

	// KindAuthentication indicates the backend rejected the request's
	// credentials or the request lacked required credentials.
	KindAuthentication Kind = "AUTHENTICATION_FAILURE"

	// KindTimeout indicates an attempt exceeded its time budget.
	KindTimeout Kind = "TIMEOUT"

	// KindTransientTransport indicates a transport failure that may succeed
	// on a later attempt (connection reset, throttling, 5xx responses).
	KindTransientTransport Kind = "TRANSIENT_TRANSPORT"

	// Destination errors.

	// KindDestinationExists indicates the destination already exists and
	// overwrite was not requested.
	KindDestinationExists Kind = "DESTINATION_EXISTS"

	// KindDestinationNotCreated indicates the destination's directory does
	// not exist or staging space could not be allocated in it.
	KindDestinationNotCreated Kind = "DESTINATION_NOT_CREATED"

	// KindCommit indicates the final staging-to-destination rename failed.
	KindCommit Kind = "COMMIT_ERROR"

	// Lifecycle errors.

	// KindCanceled indicates the caller canceled the request.
	KindCanceled Kind = "CANCELED"

	// KindUnknown indicates an unclassified error. Unknown failures are
	// never retried.
	KindUnknown Kind = "UNKNOWN"
)

// Retryable reports whether failures of this kind are eligible for
// reattempt within a retry budget. Only timeouts and transient transport
// failures qualify; every other kind is permanent.
func (k Kind) Retryable() bool {
	return k == KindTimeout || k == KindTransientTransport
}

// Error represents a retrieval failure with context about the operation
// that failed. It wraps the underlying backend error with the failure
// kind and the number of fetch attempts made.
type Error struct {
	// Op is the operation that failed (e.g., "get", "fetch", "commit")
	Op string

	// Source is the source locator the operation was acting on (if known)
	Source string

	// Kind is the failure classification
	Kind Kind

	// Attempts is the number of fetch attempts made when the failure
	// surfaced; zero when no fetch was attempted
	Attempts int

	// Err is the underlying error from the backend or filesystem
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("getter.%s %s: %s: %v", e.Op, e.Source, e.Kind, e.Err)
	}
	return fmt.Sprintf("getter.%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind, so
// errors.Is(err, ErrNotFound) works on any classified error.
func (e *Error) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && target == s
}

// Retryable reports whether this failure may be reattempted.
func (e *Error) Retryable() bool {
	return e.Kind.Retryable()
}

// WithSource adds source locator context to an existing error.
func (e *Error) WithSource(source string) *Error {
	e.Source = source
	return e
}

// WithAttempts records the number of fetch attempts on an existing error.
func (e *Error) WithAttempts(attempts int) *Error {
	e.Attempts = attempts
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// New creates a new Error with the given operation, kind and underlying error.
func New(op string, kind Kind, err error) *Error {
	return &Error{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// Newf creates a new Error with a formatted message as its underlying error.
func Newf(op string, kind Kind, format string, args ...any) *Error {
	return &Error{
		Op:   op,
		Kind: kind,
		Err:  fmt.Errorf(format, args...),
	}
}

// Sentinel errors, one per failure kind.
// These can be used with errors.Is() for error checking.
var (
	// ErrUnsupportedSource indicates no registered getter matched the source
	ErrUnsupportedSource = errors.New("getter: unsupported source")

	// ErrInvalidLocator indicates the locator is malformed for its getter
	ErrInvalidLocator = errors.New("getter: invalid locator")

	// ErrNotFound indicates the requested object does not exist
	ErrNotFound = errors.New("getter: not found")

	// ErrAuthentication indicates the backend rejected the credentials
	ErrAuthentication = errors.New("getter: authentication failure")

	// ErrTimeout indicates the attempt exceeded its time budget
	ErrTimeout = errors.New("getter: timeout")

	// ErrTransientTransport indicates a retryable transport failure
	ErrTransientTransport = errors.New("getter: transient transport failure")

	// ErrDestinationExists indicates the destination already exists
	ErrDestinationExists = errors.New("getter: destination exists")

	// ErrDestinationNotCreated indicates the destination could not be staged
	ErrDestinationNotCreated = errors.New("getter: destination not created")

	// ErrCommit indicates the staging-to-destination commit failed
	ErrCommit = errors.New("getter: commit failed")

	// ErrCanceled indicates the caller canceled the request
	ErrCanceled = errors.New("getter: canceled")
)

var kindSentinels = map[Kind]error{
	KindUnsupportedSource:     ErrUnsupportedSource,
	KindInvalidLocator:        ErrInvalidLocator,
	KindNotFound:              ErrNotFound,
	KindAuthentication:        ErrAuthentication,
	KindTimeout:               ErrTimeout,
	KindTransientTransport:    ErrTransientTransport,
	KindDestinationExists:     ErrDestinationExists,
	KindDestinationNotCreated: ErrDestinationNotCreated,
	KindCommit:                ErrCommit,
	KindCanceled:              ErrCanceled,
}

// KindOf returns the failure kind carried by err, or KindUnknown when err
// was never classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// AttemptsFrom returns the fetch attempt count carried by err, or zero.
func AttemptsFrom(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Attempts
	}
	return 0
}

// IsRetryable checks if an error may be reattempted within a retry budget.
// Unclassified errors are treated as permanent.
func IsRetryable(err error) bool {
	return KindOf(err).Retryable()
}

// IsNotFound checks if an error indicates that the object was not found.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAuthentication checks if an error indicates an authentication failure.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsAuthentication(err error) bool {
	return errors.Is(err, ErrAuthentication)
}

// IsUnsupportedSource checks if an error indicates that no getter matched.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsUnsupportedSource(err error) bool {
	return errors.Is(err, ErrUnsupportedSource)
}

// IsDestinationExists checks if an error indicates the destination already
// holds content and overwrite was not requested.
func IsDestinationExists(err error) bool {
	return errors.Is(err, ErrDestinationExists)
}
