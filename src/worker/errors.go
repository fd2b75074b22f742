package worker

import (
	"errors"
	"fmt"

	"wordbridge/src/extraction"
	"wordbridge/src/openai"
	"wordbridge/src/recommendation"
)

// PermanentError marks a job failure that will not succeed on retry with the
// same input. The upload is failed and the job acknowledged.
type PermanentError struct {
	Reason string
	Err    error
}

func (e *PermanentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *PermanentError) Unwrap() error { return e.Err }

func permanentf(err error, format string, args ...interface{}) *PermanentError {
	return &PermanentError{Reason: fmt.Sprintf(format, args...), Err: err}
}

// RetryableError marks a transient failure expected to possibly succeed on a
// later attempt.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error { return e.Err }

func retryable(err error) *RetryableError {
	return &RetryableError{Err: err}
}

type failureClass int

const (
	classUnknown failureClass = iota
	classPermanent
	classRetryable
)

// classify maps an error to its retry class. Anything not explicitly
// classified is unknown and gets exactly one retry before escalating, so a
// programming defect cannot cause unbounded redelivery.
func classify(err error) failureClass {
	var perm *PermanentError
	if errors.As(err, &perm) {
		return classPermanent
	}
	var retry *RetryableError
	if errors.As(err, &retry) {
		return classRetryable
	}

	var unsupported *extraction.UnsupportedTypeError
	if errors.As(err, &unsupported) {
		return classPermanent
	}
	var extractErr *extraction.ExtractError
	if errors.As(err, &extractErr) {
		return classPermanent
	}

	var cfgErr *openai.ConfigurationError
	if errors.As(err, &cfgErr) {
		return classPermanent
	}
	var parseErr *recommendation.ParseError
	if errors.As(err, &parseErr) {
		return classPermanent
	}
	var respErr *openai.ResponseError
	if errors.As(err, &respErr) {
		return classRetryable
	}

	return classUnknown
}
