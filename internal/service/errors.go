package service

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/MimeLyc/term-linker/pkg/log"
)

type ErrorType int

const (
	ErrFileNotFound ErrorType = iota
	ErrFileRead
	ErrFileWrite
	ErrParse
	ErrValidation
	ErrConfig
	ErrLink
	ErrStore
	ErrUnknown
)

type LinkError struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *LinkError {
	return &LinkError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *LinkError {
	return &LinkError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *LinkError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		var ctxParts []string
		for _, k := range slices.Sorted(maps.Keys(e.Context)) {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *LinkError) Unwrap() error {
	return e.Cause
}

func (e *LinkError) WithContext(key string, value any) *LinkError {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrFileNotFound:
		return "FileNotFound"
	case ErrFileRead:
		return "FileRead"
	case ErrFileWrite:
		return "FileWrite"
	case ErrParse:
		return "Parse"
	case ErrValidation:
		return "Validation"
	case ErrConfig:
		return "Config"
	case ErrLink:
		return "Link"
	case ErrStore:
		return "Store"
	default:
		return "Unknown"
	}
}

type ErrorHandler interface {
	Handle(err error) bool
	GetAdvice(err *LinkError) string
}

type DefaultErrorHandler struct{}

func NewDefaultErrorHandler() ErrorHandler {
	return &DefaultErrorHandler{}
}

func (h *DefaultErrorHandler) Handle(err error) bool {
	var linkErr *LinkError
	if !errors.As(err, &linkErr) {
		log.Error("Unknown Error: %v", err)
		return false
	}

	advice := h.GetAdvice(linkErr)
	log.Error("Error Detail: %v\n advice: %s", err, advice)

	return true
}

// GetAdvice returns error handling advice
func (h *DefaultErrorHandler) GetAdvice(err *LinkError) string {
	switch err.Type {
	case ErrFileNotFound:
		return "Please check that the document still exists and the library has been rescanned"
	case ErrFileRead:
		return "Please check file permissions to ensure read access to the document and its directory"
	case ErrFileWrite:
		return "Please ensure the output directory exists and has write permissions"
	case ErrParse:
		return "Please verify the link rules file is a JSON list of {url, terms, options} objects"
	case ErrValidation:
		return "Please verify input parameters are correct"
	case ErrConfig:
		return "Please check that configuration files or environment variables are set correctly"
	case ErrLink:
		return "A link rule was rejected; terms must be non-empty strings and options plain values"
	case ErrStore:
		return "Please check that the database file is writable and not locked by another process"
	default:
		return "Please review detailed error information and check relevant configuration and files"
	}
}

func IsErrorType(err error, errorType ErrorType) bool {
	var linkErr *LinkError
	if errors.As(err, &linkErr) {
		return linkErr.Type == errorType
	}
	return false
}

func WrapError(err error, errorType ErrorType, message string) *LinkError {
	return NewErrorWithCause(errorType, message, err)
}

func SafeExecute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError(ErrUnknown, fmt.Sprintf("runtime error: %v", r))
		}
	}()

	return fn()
}
