package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidConfig    = errors.New("invalid configuration")

	// ErrTransient marks an external call failure worth retrying
	// (timeouts, rate limits, 5xx).
	ErrTransient = errors.New("transient external failure")
	// ErrFatal marks an external call failure that retrying cannot fix
	// (malformed response, rejected request).
	ErrFatal = errors.New("fatal external failure")
	// ErrExtraction marks a document whose text could not be extracted.
	ErrExtraction = errors.New("text extraction failed")
)

// IsTransient reports whether err should be retried. Anything not
// explicitly marked fatal is treated as transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrFatal)
}
