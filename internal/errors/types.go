// Package errors defines the structured error taxonomy of template resolution
// and rendering.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeNotFound ErrorType = "not_found"
	ErrorTypeSecurity ErrorType = "security"
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeSkip     ErrorType = "skip"
	ErrorTypeRender   ErrorType = "render"
	ErrorTypeIO       ErrorType = "io"
	ErrorTypeInternal ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeTemplateNotFound     = "ERR_TEMPLATE_NOT_FOUND"
	ErrCodeInsecurePath         = "ERR_INSECURE_PATH"
	ErrCodeInvalidConfiguration = "ERR_INVALID_CONFIGURATION"
	ErrCodeSkipTemplate         = "ERR_SKIP_TEMPLATE"
	ErrCodeLoader               = "ERR_LOADER"
	ErrCodeSyntax               = "ERR_SYNTAX"
	ErrCodeRuntime              = "ERR_RUNTIME"
	ErrCodeScanFailed           = "ERR_SCAN_FAILED"
	ErrCodeCacheStore           = "ERR_CACHE_STORE"
	ErrCodeInternalError        = "ERR_INTERNAL"
)

// TwigError is a structured error type with context.
type TwigError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Template    string
	FilePath    string
	Recoverable bool
}

// Error implements the error interface.
func (e *TwigError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Template != "" {
		parts = append(parts, "template:"+e.Template)
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *TwigError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *TwigError) Is(target error) bool {
	var t *TwigError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *TwigError) WithContext(key string, value interface{}) *TwigError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithTemplate adds the template name.
func (e *TwigError) WithTemplate(name string) *TwigError {
	e.Template = name

	return e
}

// WithFile adds file location information.
func (e *TwigError) WithFile(filePath string) *TwigError {
	e.FilePath = filePath

	return e
}

// NewSkipError is returned by a before-parse listener to leave the template
// instance untouched. It is a signal, not a failure. Every call returns a
// fresh value, so listeners may decorate it.
func NewSkipError() *TwigError {
	return &TwigError{
		Type:        ErrorTypeSkip,
		Code:        ErrCodeSkipTemplate,
		Message:     "template processing skipped",
		Recoverable: true,
	}
}

// Error creation functions

// NewTemplateNotFoundError creates the error for a name missing from both index variants.
func NewTemplateNotFoundError(name string) *TwigError {
	return &TwigError{
		Type:        ErrorTypeNotFound,
		Code:        ErrCodeTemplateNotFound,
		Message:     fmt.Sprintf("Unable to find template %q.", name),
		Template:    name,
		Recoverable: true,
	}
}

// NewInsecurePathError creates a security error for a path with traversal sequences.
func NewInsecurePathError(path string) *TwigError {
	return &TwigError{
		Type:        ErrorTypeSecurity,
		Code:        ErrCodeInsecurePath,
		Message:     "Invalid path " + path,
		Recoverable: false,
	}
}

// NewInvalidConfigurationError creates a configuration error.
func NewInvalidConfigurationError(message string) *TwigError {
	return &TwigError{
		Type:        ErrorTypeConfig,
		Code:        ErrCodeInvalidConfiguration,
		Message:     message,
		Recoverable: false,
	}
}

// NewLoaderError creates a render error for a template the engine cannot load.
func NewLoaderError(path string, cause error) *TwigError {
	return newRenderError(ErrCodeLoader, path, "unable to load template", cause)
}

// NewSyntaxError creates a render error for a malformed template.
func NewSyntaxError(path string, cause error) *TwigError {
	return newRenderError(ErrCodeSyntax, path, "template syntax error", cause)
}

// NewRuntimeError creates a render error raised while evaluating a template.
func NewRuntimeError(path string, cause error) *TwigError {
	return newRenderError(ErrCodeRuntime, path, "error rendering template", cause)
}

func newRenderError(code, path, message string, cause error) *TwigError {
	return &TwigError{
		Type:        ErrorTypeRender,
		Code:        code,
		Message:     message,
		Cause:       cause,
		FilePath:    path,
		Recoverable: true,
	}
}

// NewScanError creates an I/O error for a failed template directory walk.
func NewScanError(root string, cause error) *TwigError {
	return &TwigError{
		Type:        ErrorTypeIO,
		Code:        ErrCodeScanFailed,
		Message:     "scanning template root failed",
		Cause:       cause,
		FilePath:    root,
		Recoverable: true,
	}
}

// NewCacheStoreError creates an I/O error raised by a cache store.
func NewCacheStoreError(message string, cause error) *TwigError {
	return &TwigError{
		Type:        ErrorTypeIO,
		Code:        ErrCodeCacheStore,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *TwigError {
	return &TwigError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// Error recovery and handling utilities

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var te *TwigError
	if errors.As(err, &te) {
		return te.Recoverable
	}

	return false
}

// IsNotFound checks if an error reports a missing template.
func IsNotFound(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

// IsInsecurePath checks if an error is security-related.
func IsInsecurePath(err error) bool {
	return hasType(err, ErrorTypeSecurity)
}

// IsInvalidConfiguration checks if an error is a configuration error.
func IsInvalidConfiguration(err error) bool {
	return hasType(err, ErrorTypeConfig)
}

// IsSkip checks if an error is the skip signal.
func IsSkip(err error) bool {
	return hasType(err, ErrorTypeSkip)
}

// IsRenderError checks if an error was raised by the render engine.
func IsRenderError(err error) bool {
	return hasType(err, ErrorTypeRender)
}

func hasType(err error, t ErrorType) bool {
	var te *TwigError
	if errors.As(err, &te) {
		return te.Type == t
	}

	return false
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle processes an error with appropriate logging.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var te *TwigError
	if !errors.As(err, &te) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	switch te.Type {
	case ErrorTypeSkip:
		return
	case ErrorTypeSecurity:
		h.logger.Error(ctx, te, "Security error occurred",
			"type", te.Type,
			"code", te.Code,
			"template", te.Template)
	case ErrorTypeNotFound, ErrorTypeRender, ErrorTypeIO:
		h.logger.Warn(ctx, te, "Template error occurred",
			"type", te.Type,
			"code", te.Code,
			"template", te.Template,
			"file", te.FilePath)
	default:
		h.logger.Error(ctx, te, "Error occurred",
			"type", te.Type,
			"code", te.Code,
			"template", te.Template)
	}
}
