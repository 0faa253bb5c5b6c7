package manager

import "errors"

// missingFieldError signals absent required request fields (400).
type missingFieldError struct{ msg string }

func (e missingFieldError) Error() string { return e.msg }

// ErrMissingField constructs a missingFieldError with a client facing message.
func ErrMissingField(msg string) error { return missingFieldError{msg: msg} }

// IsMissingField reports whether err indicates a missing required field.
func IsMissingField(err error) bool {
	var e missingFieldError
	return errors.As(err, &e)
}

// invalidInputError covers malformed JSON, disallowed file types and unsafe
// project ids (400).
type invalidInputError struct{ msg string }

func (e invalidInputError) Error() string { return e.msg }

// ErrInvalidInput constructs an invalidInputError.
func ErrInvalidInput(msg string) error { return invalidInputError{msg: msg} }

// IsInvalidInput reports whether err indicates unusable client input.
func IsInvalidInput(err error) bool {
	var e invalidInputError
	return errors.As(err, &e)
}

// notFoundError signals a missing stored file (404).
type notFoundError struct{ path string }

func (e notFoundError) Error() string { return "file not found: " + e.path }

// IsNotFound reports whether err indicates a missing stored file.
func IsNotFound(err error) bool {
	var e notFoundError
	return errors.As(err, &e)
}

// tooBusyError signals admission timeout for 429 mapping.
type tooBusyError struct{ modelID string }

func (e tooBusyError) Error() string { return "too busy: " + e.modelID }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

// modelNotFoundError is returned when a requested model file is not present.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// ErrModelNotFound returns an error for a missing model id.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// dependencyUnavailableError signals a missing external dependency (the
// converter or predictor binary) so the HTTP layer can return 503 instead of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}
