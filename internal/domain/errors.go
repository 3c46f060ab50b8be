package domain

import (
	"errors"
	"fmt"
)

// ErrorType classifies domain errors
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeConversion    ErrorType = "conversion"
	ErrorTypeTranscription ErrorType = "transcription"
	ErrorTypeAPI           ErrorType = "api"
	ErrorTypeConfig        ErrorType = "config"
	ErrorTypeIO            ErrorType = "io"
)

var (
	// ErrNoPages is returned when rasterization yields zero pages.
	ErrNoPages = errors.New("document produced no pages")

	// ErrEmptyTranscription marks a page whose stream finished without content.
	ErrEmptyTranscription = errors.New("empty transcription")

	// ErrRootNotFound is returned when the manifest root directory is missing.
	ErrRootNotFound = errors.New("root directory not found")
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func ConversionError(message string, err error) *DomainError {
	return NewError(ErrorTypeConversion, message, err)
}

func TranscriptionError(message string, err error) *DomainError {
	return NewError(ErrorTypeTranscription, message, err)
}

func APIError(message string, err error) *DomainError {
	return NewError(ErrorTypeAPI, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}

// IsType reports whether err (or anything it wraps) is a DomainError of the given type.
func IsType(err error, errType ErrorType) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type == errType
	}
	return false
}
