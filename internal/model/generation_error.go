package model

import (
	"errors"
	"fmt"
)

// GenerationErrorKind classifies a failed submission.
type GenerationErrorKind string

const (
	GenerationErrorConfiguration GenerationErrorKind = "configuration"
	GenerationErrorValidation    GenerationErrorKind = "validation"
	GenerationErrorRemote        GenerationErrorKind = "remote"
	GenerationErrorTransport     GenerationErrorKind = "transport"
	GenerationErrorStorage       GenerationErrorKind = "storage"
	GenerationErrorInProgress    GenerationErrorKind = "in_progress"
	GenerationErrorCancelled     GenerationErrorKind = "cancelled"
)

// GenerationError is the single terminal error of a submission.
type GenerationError struct {
	Kind       GenerationErrorKind
	Message    string
	StatusCode int    // remote only
	Body       string // remote only, best effort
	Err        error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	msg := string(e.Kind) + ": " + e.Message
	if e.Kind == GenerationErrorRemote {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the wrapped error.
func (e *GenerationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError reports a missing or unusable setting.
func NewConfigurationError(message string) *GenerationError {
	return &GenerationError{Kind: GenerationErrorConfiguration, Message: message}
}

// NewValidationError reports bad user input.
func NewValidationError(message string) *GenerationError {
	return &GenerationError{Kind: GenerationErrorValidation, Message: message}
}

// NewRemoteError reports a non-success status from the generation API.
func NewRemoteError(statusCode int, body string) *GenerationError {
	return &GenerationError{
		Kind:       GenerationErrorRemote,
		Message:    "generation API returned an error",
		StatusCode: statusCode,
		Body:       body,
	}
}

// NewTransportError reports a failure before a status was obtained.
func NewTransportError(err error) *GenerationError {
	return &GenerationError{Kind: GenerationErrorTransport, Message: "generation API unreachable", Err: err}
}

// NewStorageError reports a failure persisting the video.
func NewStorageError(err error) *GenerationError {
	return &GenerationError{Kind: GenerationErrorStorage, Message: "could not save video", Err: err}
}

// NewInProgressError reports an overlapping submission for mode.
func NewInProgressError(mode GenerationMode) *GenerationError {
	return &GenerationError{Kind: GenerationErrorInProgress, Message: fmt.Sprintf("a %s generation is already in progress", mode)}
}

// NewCancelledError reports a submission aborted by its caller.
func NewCancelledError(err error) *GenerationError {
	return &GenerationError{Kind: GenerationErrorCancelled, Message: "generation cancelled", Err: err}
}

// GenerationErrorKindOf returns the kind of err, or "" if err is not a GenerationError.
func GenerationErrorKindOf(err error) GenerationErrorKind {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Kind
	}
	return ""
}

// IsGenerationErrorKind reports whether err is a GenerationError of kind.
func IsGenerationErrorKind(err error, kind GenerationErrorKind) bool {
	return GenerationErrorKindOf(err) == kind
}
