package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	KindInputValidation  ErrorKind = "input_validation_error"
	KindExtraction       ErrorKind = "extraction_failure"
	KindTranscription    ErrorKind = "transcription_failure"
	KindSchemaExtraction ErrorKind = "schema_extraction_failure"
	KindSchemaParse      ErrorKind = "schema_parse_failure"
	KindPersistence      ErrorKind = "persistence_error"
)

// IntakeError carries a kind, a human-readable reason and an optional cause.
type IntakeError struct {
	Kind   ErrorKind
	Reason string
	Cause  error
}

func (e *IntakeError) Error() string {
	msg := string(e.Kind)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *IntakeError) Unwrap() error {
	return e.Cause
}

// Is matches any IntakeError of the same kind, so the sentinels below work
// with errors.Is.
func (e *IntakeError) Is(target error) bool {
	var t *IntakeError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrInputValidation      = &IntakeError{Kind: KindInputValidation}
	ErrExtractionFailure    = &IntakeError{Kind: KindExtraction}
	ErrTranscriptionFailure = &IntakeError{Kind: KindTranscription}
	ErrSchemaExtraction     = &IntakeError{Kind: KindSchemaExtraction}
	ErrSchemaParse          = &IntakeError{Kind: KindSchemaParse}
	ErrPersistence          = &IntakeError{Kind: KindPersistence}

	// ErrUnsupportedMedia is the cause of an input validation error raised
	// for an unrecognized extension or media type.
	ErrUnsupportedMedia = errors.New("unsupported media type")
)

// NewError 构造带原因的错误
func NewError(kind ErrorKind, cause error, format string, args ...any) *IntakeError {
	return &IntakeError{Kind: kind, Reason: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the kind of the first IntakeError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var ie *IntakeError
	if errors.As(err, &ie) {
		return ie.Kind, true
	}
	return "", false
}
