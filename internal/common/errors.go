package common

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Document processing errors
var (
	// ErrUnsupportedFormat: no rendering path exists for the input.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrConversionFailed: a rendering path exists but it failed.
	ErrConversionFailed = errors.New("conversion failed")
	// ErrEmptyDocument is only returned when strict empty handling is enabled.
	ErrEmptyDocument = errors.New("document has no pages")
	// ErrExtractorFailure never escapes the pipeline; extractors wrap it for logging.
	ErrExtractorFailure = errors.New("extractor failure")
)

// Error codes carried by AppError.Code
const (
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeConversionFailed  = "CONVERSION_FAILED"
	CodeEmptyDocument     = "EMPTY_DOCUMENT"
	CodeExtractorFailure  = "EXTRACTOR_FAILURE"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeNotFound          = "NOT_FOUND"
	CodeDatabase          = "DATABASE_ERROR"
	CodeConfig            = "CONFIG_ERROR"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// UnsupportedFormatError reports that no rendering path exists for a document.
func UnsupportedFormatError(format string, args ...any) *AppError {
	return NewAppError(CodeUnsupportedFormat, fmt.Sprintf(format, args...), ErrUnsupportedFormat)
}

// ConversionFailedError keeps both the sentinel and the underlying cause reachable via errors.Is.
func ConversionFailedError(message string, cause error) *AppError {
	if cause == nil {
		return NewAppError(CodeConversionFailed, message, ErrConversionFailed)
	}
	return NewAppError(CodeConversionFailed, message, fmt.Errorf("%w: %w", ErrConversionFailed, cause))
}

func ExtractorFailureError(extractor string, cause error) *AppError {
	return NewAppError(CodeExtractorFailure, extractor, fmt.Errorf("%w: %w", ErrExtractorFailure, cause))
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

func InternalErrorf(format string, args ...interface{}) error {
	return InternalError(fmt.Sprintf(format, args...))
}

// ToGRPCStatus maps a processing error onto a gRPC status error.
func ToGRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrUnsupportedFormat), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrConversionFailed), errors.Is(err, ErrEmptyDocument):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
