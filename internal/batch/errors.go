package batch

import "errors"

// Error kinds recognized by the coordinator. Everything else that a
// stage returns is treated as transient and left to the outer retry
// loops.
var (
	// ErrValidation is returned for operator-fixable misconfiguration:
	// a missing input directory, no eligible files, a file over the row
	// ceiling, or a duplicated merge key. Always fatal and propagated;
	// retrying without operator intervention cannot succeed.
	ErrValidation = errors.New("validation failed")

	// ErrNonRetryable is returned for file-level corruption such as
	// malformed CSV data. Fatal unless the skip-invalid leniency policy
	// is enabled, in which case the file is marked done without being
	// submitted.
	ErrNonRetryable = errors.New("non-retryable failure")
)

// IsValidationError reports whether err is a validation failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNonRetryableError reports whether err is a non-retryable file failure.
func IsNonRetryableError(err error) bool {
	return errors.Is(err, ErrNonRetryable)
}
