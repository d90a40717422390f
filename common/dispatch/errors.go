package dispatch

import (
	"errors"
)

// Failure taxonomy for assignment and job execution. Every failure is
// reported as a terminal status event and returned to the caller wrapped
// around one of these sentinels; callers discriminate with errors.Is.
var (
	// ErrManifestUnreachable is returned when the manifest fetch fails or
	// yields no content.
	ErrManifestUnreachable = errors.New("dataset manifest unreachable")

	// ErrManifestEmpty is returned when the manifest parses to zero chunk
	// locators, or when the worker list is empty.
	ErrManifestEmpty = errors.New("dataset manifest is empty")

	// ErrEmptyArtifact is returned when a staged chunk or payload is zero
	// bytes; an empty download indicates silent upstream failure.
	ErrEmptyArtifact = errors.New("staged artifact is empty")

	// ErrMissingOutput is returned when payload execution produced no
	// output value.
	ErrMissingOutput = errors.New("payload produced no output")

	// ErrExecutionFailed is returned when the payload raised an error.
	ErrExecutionFailed = errors.New("payload execution failed")

	// ErrPublishFailed is returned when the result upload failed.
	ErrPublishFailed = errors.New("result publication failed")

	// ErrCancelled is returned when the job was cancelled mid-flight.
	// Cleanup still runs on this path.
	ErrCancelled = errors.New("job cancelled")

	// ErrAliasFailed is returned when a required legacy alias could not be
	// materialized.
	ErrAliasFailed = errors.New("legacy alias creation failed")
)
