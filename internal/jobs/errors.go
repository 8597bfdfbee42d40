package jobs

import "errors"

var (
	// ErrValidation rejects an upload or submission before any job exists.
	ErrValidation = errors.New("validation failed")

	// ErrSubmissionFailed means the provider rejected or timed out on a
	// submission. No job row is written when this is returned.
	ErrSubmissionFailed = errors.New("submission failed")

	// ErrNotFound means the referenced upload, job, or result does not exist.
	ErrNotFound = errors.New("not found")
)
