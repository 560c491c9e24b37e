package errors

import (
	"fmt"
	"net/http"
)

// statusClientClosedRequest mirrors the nginx convention for requests that
// were cancelled before a response could be produced.
const statusClientClosedRequest = 499

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Precondition errors ---

// UploadNotFound creates a new AppError for a missing upload.
func UploadNotFound(uploadID string) *AppError {
	return &AppError{
		Code: ErrCodeUploadNotFound, Message: fmt.Sprintf("Upload %s not found", uploadID),
		HTTPStatus: http.StatusNotFound, Retryable: false,
		Details: map[string]any{"upload_id": uploadID},
	}
}

// AudioFileNotFound creates a new AppError for an upload directory with no audio file.
func AudioFileNotFound(uploadID string) *AppError {
	return &AppError{
		Code: ErrCodeAudioFileNotFound, Message: fmt.Sprintf("No audio file found for upload %s", uploadID),
		HTTPStatus: http.StatusNotFound, Retryable: false,
		Details: map[string]any{"upload_id": uploadID},
	}
}

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Retryable: false, Details: details,
	}
}

// --- Upload validation errors ---

// MissingFile creates a new AppError for a request without a file.
func MissingFile() *AppError {
	return &AppError{
		Code: ErrCodeMissingFile, Message: "No file provided",
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// FileTooLarge creates a new AppError for an oversized upload.
func FileTooLarge(size, maxSize int64) *AppError {
	return &AppError{
		Code: ErrCodeFileTooLarge, Message: fmt.Sprintf("File too large. Maximum size is %d bytes", maxSize),
		HTTPStatus: http.StatusRequestEntityTooLarge, Retryable: false,
		Details: map[string]any{"file_size": size, "max_size": maxSize},
	}
}

// UnsupportedFormat creates a new AppError for an unaccepted audio MIME type.
func UnsupportedFormat(mimeType string, allowed []string) *AppError {
	return &AppError{
		Code: ErrCodeUnsupportedFormat, Message: fmt.Sprintf("Unsupported file format: %s", mimeType),
		HTTPStatus: http.StatusUnsupportedMediaType, Retryable: false,
		Details: map[string]any{"format": mimeType, "allowed_formats": allowed},
	}
}

// InvalidInput creates a new AppError for invalid request input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}

// Validation creates a new AppError for failed input validation.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// --- Pipeline errors ---

// ConversionError creates a new AppError for a failed audio transcode.
func ConversionError(reason string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeConversionError, Message: "Audio conversion failed",
		HTTPStatus: http.StatusBadRequest, Retryable: true,
		Details: map[string]any{"reason": reason}, Cause: cause,
	}
}

// ModelNotLoaded creates a new AppError for transcription before model readiness.
func ModelNotLoaded(loading bool, lastError string) *AppError {
	details := map[string]any{"loading": loading}
	if lastError != "" {
		details["load_error"] = lastError
	}
	return &AppError{
		Code: ErrCodeModelNotLoaded, Message: "Speech model not loaded",
		HTTPStatus: http.StatusServiceUnavailable, Retryable: false, Details: details,
	}
}

// ModelLoadError creates a new AppError for a failed model load.
func ModelLoadError(cause error) *AppError {
	return &AppError{
		Code: ErrCodeModelLoadError, Message: "Failed to load speech model",
		HTTPStatus: http.StatusInternalServerError, Retryable: true, Cause: cause,
	}
}

// ResourceExhausted creates a new AppError for an out-of-resource condition.
func ResourceExhausted(resource string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeResourceExhausted, Message: fmt.Sprintf("Resource exhausted: %s", resource),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"resource": resource}, Cause: cause,
	}
}

// TranscriptionTimeout creates a new AppError for inference exceeding its budget.
func TranscriptionTimeout(timeoutSeconds int) *AppError {
	return &AppError{
		Code: ErrCodeTranscriptionTimeout, Message: fmt.Sprintf("Transcription timeout after %d seconds", timeoutSeconds),
		HTTPStatus: http.StatusRequestTimeout, Retryable: true,
		Details: map[string]any{"timeout_seconds": timeoutSeconds},
	}
}

// TranscriptionError creates a new AppError for a generic inference failure.
func TranscriptionError(cause error) *AppError {
	return &AppError{
		Code: ErrCodeTranscriptionError, Message: "Transcription processing failed",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}

// Cancelled creates a new AppError for a job cancelled on request.
// Cancellation is an intentional outcome, not a fault.
func Cancelled(uploadID string) *AppError {
	return &AppError{
		Code: ErrCodeCancelled, Message: fmt.Sprintf("Transcription %s was cancelled", uploadID),
		HTTPStatus: statusClientClosedRequest, Retryable: false,
		Details: map[string]any{"upload_id": uploadID},
	}
}

// --- Internal errors ---

// Internal creates a new AppError for an unexpected internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred. Please try again or contact support.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}
