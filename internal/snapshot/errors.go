// ABOUTME: Sentinel errors the parser wraps its failures with
// ABOUTME: Let callers classify failures with errors.Is without string matching

package snapshot

import "errors"

var (
	// ErrMalformedInput means the input was not valid JSON, or lacked the
	// snapshot.meta section entirely.
	ErrMalformedInput = errors.New("snapshot: malformed input")

	// ErrIO means the stream could not be opened for decoding: peeking at
	// the first bytes failed, or a gzip header was present but unreadable.
	// A read failure after JSON decoding has started is reported as
	// ErrMalformedInput, not ErrIO.
	ErrIO = errors.New("snapshot: io failure")
)

func wrapMalformed(cause error) error {
	return &wrappedError{sentinel: ErrMalformedInput, cause: cause}
}

func wrapIO(cause error) error {
	return &wrappedError{sentinel: ErrIO, cause: cause}
}

type wrappedError struct {
	sentinel error
	cause    error
	detail   string
}

func (e *wrappedError) Error() string {
	if e.detail != "" {
		return e.sentinel.Error() + ": " + e.detail + ": " + e.cause.Error()
	}
	return e.sentinel.Error() + ": " + e.cause.Error()
}

func (e *wrappedError) Unwrap() error { return e.sentinel }

func (e *wrappedError) Cause() error { return e.cause }
