package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_New_Success(t *testing.T) {
	err := New(ErrCodeNotFound, "not found", http.StatusNotFound)
	if err.Code != ErrCodeNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeNotFound, err.Code)
	}
	if err.Message != "not found" {
		t.Errorf("expected message 'not found', got %q", err.Message)
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, err.HTTPStatus)
	}
	if err.Retryable {
		t.Error("NOT_FOUND should not be retryable")
	}
}

func TestAppError_New_Retryable(t *testing.T) {
	err := New(ErrCodeTranscriptionTimeout, "timed out", http.StatusRequestTimeout)
	if !err.Retryable {
		t.Error("TRANSCRIPTION_TIMEOUT should be retryable")
	}
}

func TestAppError_UploadNotFound(t *testing.T) {
	err := UploadNotFound("abc123")
	if err.Code != ErrCodeUploadNotFound {
		t.Errorf("expected UPLOAD_NOT_FOUND, got %s", err.Code)
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("expected 404, got %d", err.HTTPStatus)
	}
	if err.Details["upload_id"] != "abc123" {
		t.Errorf("expected upload_id=abc123, got %v", err.Details["upload_id"])
	}
	if err.Retryable {
		t.Error("UploadNotFound should not be retryable")
	}
}

func TestAppError_AudioFileNotFound(t *testing.T) {
	err := AudioFileNotFound("abc123")
	if err.Code != ErrCodeAudioFileNotFound {
		t.Errorf("expected AUDIO_FILE_NOT_FOUND, got %s", err.Code)
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("expected 404, got %d", err.HTTPStatus)
	}
}

func TestAppError_ConversionError(t *testing.T) {
	cause := fmt.Errorf("ffmpeg exit 1")
	err := ConversionError("ffmpeg_failed", cause)
	if err.Code != ErrCodeConversionError {
		t.Errorf("expected CONVERSION_ERROR, got %s", err.Code)
	}
	if !err.Retryable {
		t.Error("ConversionError should be retryable")
	}
	if err.Details["reason"] != "ffmpeg_failed" {
		t.Errorf("expected reason detail, got %v", err.Details["reason"])
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to match the cause")
	}
}

func TestAppError_ModelNotLoaded(t *testing.T) {
	err := ModelNotLoaded(true, "no such model file")
	if err.Code != ErrCodeModelNotLoaded {
		t.Errorf("expected MODEL_NOT_LOADED, got %s", err.Code)
	}
	if err.HTTPStatus != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", err.HTTPStatus)
	}
	if err.Details["loading"] != true {
		t.Errorf("expected loading=true, got %v", err.Details["loading"])
	}
	if err.Details["load_error"] != "no such model file" {
		t.Errorf("expected load_error detail, got %v", err.Details["load_error"])
	}
}

func TestAppError_ModelNotLoaded_NoError(t *testing.T) {
	err := ModelNotLoaded(false, "")
	if _, ok := err.Details["load_error"]; ok {
		t.Error("expected no load_error detail when empty")
	}
}

func TestAppError_ResourceExhausted(t *testing.T) {
	err := ResourceExhausted("memory", fmt.Errorf("cannot allocate"))
	if err.Code != ErrCodeResourceExhausted {
		t.Errorf("expected RESOURCE_EXHAUSTED, got %s", err.Code)
	}
	if err.HTTPStatus != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", err.HTTPStatus)
	}
	if !err.Retryable {
		t.Error("ResourceExhausted should be retryable so callers can back off")
	}
}

func TestAppError_TranscriptionTimeout(t *testing.T) {
	err := TranscriptionTimeout(300)
	if err.Code != ErrCodeTranscriptionTimeout {
		t.Errorf("expected TRANSCRIPTION_TIMEOUT, got %s", err.Code)
	}
	if err.HTTPStatus != http.StatusRequestTimeout {
		t.Errorf("expected 408, got %d", err.HTTPStatus)
	}
	if err.Details["timeout_seconds"] != 300 {
		t.Errorf("expected timeout_seconds=300, got %v", err.Details["timeout_seconds"])
	}
	if !err.Retryable {
		t.Error("TranscriptionTimeout should be retryable")
	}
}

func TestAppError_Cancelled(t *testing.T) {
	err := Cancelled("abc123")
	if err.Code != ErrCodeCancelled {
		t.Errorf("expected CANCELLED, got %s", err.Code)
	}
	if err.Retryable {
		t.Error("Cancelled is an intentional outcome, not retryable")
	}
}

func TestAppError_FileTooLarge(t *testing.T) {
	err := FileTooLarge(100, 50)
	if err.Code != ErrCodeFileTooLarge {
		t.Errorf("expected FILE_TOO_LARGE, got %s", err.Code)
	}
	if err.HTTPStatus != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", err.HTTPStatus)
	}
	if err.Details["max_size"] != int64(50) {
		t.Errorf("expected max_size=50, got %v", err.Details["max_size"])
	}
}

func TestAppError_Error_WithCause(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Internal(cause)
	msg := err.Error()
	if msg == "" {
		t.Fatal("expected non-empty error string")
	}
	if stderrors.Unwrap(err) != cause {
		t.Error("Unwrap should return the cause")
	}
}

func TestAppError_WithDetail(t *testing.T) {
	err := New(ErrCodeInternal, "boom", http.StatusInternalServerError).
		WithDetail("job", "abc")
	if err.Details["job"] != "abc" {
		t.Errorf("expected job detail, got %v", err.Details["job"])
	}
}

func TestAppError_ToResponse(t *testing.T) {
	err := UploadNotFound("abc123")
	resp := err.ToResponse()
	if resp.Error.Code != ErrCodeUploadNotFound {
		t.Errorf("expected UPLOAD_NOT_FOUND in response, got %s", resp.Error.Code)
	}
	if resp.Error.Message != err.Message {
		t.Errorf("expected message %q, got %q", err.Message, resp.Error.Message)
	}
	if resp.Error.Details["upload_id"] != "abc123" {
		t.Errorf("expected upload_id in details, got %v", resp.Error.Details)
	}
}

func TestAsAppError(t *testing.T) {
	appErr := TranscriptionError(fmt.Errorf("inference blew up"))
	wrapped := fmt.Errorf("handler: %w", appErr)

	got, ok := AsAppError(wrapped)
	if !ok {
		t.Fatal("expected AsAppError to find the AppError")
	}
	if got.Code != ErrCodeTranscriptionError {
		t.Errorf("expected TRANSCRIPTION_ERROR, got %s", got.Code)
	}

	if _, ok := AsAppError(fmt.Errorf("plain")); ok {
		t.Error("expected plain error not to convert")
	}
}

func TestCodeOf(t *testing.T) {
	if CodeOf(Cancelled("x")) != ErrCodeCancelled {
		t.Error("expected CANCELLED")
	}
	if CodeOf(fmt.Errorf("plain")) != ErrCodeInternal {
		t.Error("expected INTERNAL_ERROR for plain errors")
	}
}

func TestIsRetryableCode(t *testing.T) {
	retryable := []ErrorCode{
		ErrCodeConversionError,
		ErrCodeModelLoadError,
		ErrCodeResourceExhausted,
		ErrCodeTranscriptionTimeout,
	}
	for _, code := range retryable {
		if !IsRetryableCode(code) {
			t.Errorf("expected %s to be retryable", code)
		}
	}

	notRetryable := []ErrorCode{
		ErrCodeUploadNotFound,
		ErrCodeAudioFileNotFound,
		ErrCodeCancelled,
		ErrCodeTranscriptionError,
		ErrCodeInternal,
	}
	for _, code := range notRetryable {
		if IsRetryableCode(code) {
			t.Errorf("expected %s not to be retryable", code)
		}
	}
}
