package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a job cannot be found by ID.
	ErrJobNotFound = errors.New("job not found")

	// ErrUnsupportedTemplate is returned when an unknown template name is submitted.
	ErrUnsupportedTemplate = errors.New("unsupported template")

	// ErrUnsupportedFormat is returned when an unknown output format is submitted.
	ErrUnsupportedFormat = errors.New("unsupported output format")

	// ErrMalformedInput is returned when the submitted payload is not valid JSON.
	ErrMalformedInput = errors.New("malformed input data")

	// ErrConflict is returned by the store when a CAS transition finds the job
	// in a different state than expected (double-processing guard).
	ErrConflict = errors.New("job status conflict")

	// ErrNotReady is returned when a download is attempted before completion.
	ErrNotReady = errors.New("document not ready")

	// ErrOutputMissing is returned when a completed job's output bytes are gone.
	ErrOutputMissing = errors.New("output file not found")

	// ErrPublishFailed is returned when the message broker publish fails.
	ErrPublishFailed = errors.New("failed to publish job to message queue")
)

// RenderError wraps a failure during template rendering or format conversion.
type RenderError struct {
	Template TemplateName
	Stage    string // "template", "convert" or "encode"
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s (%s stage): %v", e.Template, e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks an error as retryable (transient I/O, unreachable backend).
// The task runner's retry policy consults IsTransient to classify failures.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err carries the transient marker anywhere in
// its chain.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
