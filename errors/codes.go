package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Precondition errors (client-caused, not retryable without new input)
const (
	// ErrCodeUploadNotFound indicates no upload exists for the given id.
	ErrCodeUploadNotFound ErrorCode = "UPLOAD_NOT_FOUND"
	// ErrCodeAudioFileNotFound indicates the upload directory holds no audio file.
	ErrCodeAudioFileNotFound ErrorCode = "AUDIO_FILE_NOT_FOUND"
	// ErrCodeNotFound indicates a generic resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Upload validation errors
const (
	// ErrCodeMissingFile indicates no file was provided with the request.
	ErrCodeMissingFile ErrorCode = "MISSING_FILE"
	// ErrCodeFileTooLarge indicates the upload exceeds the configured size limit.
	ErrCodeFileTooLarge ErrorCode = "FILE_TOO_LARGE"
	// ErrCodeUnsupportedFormat indicates the audio MIME type is not accepted.
	ErrCodeUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	// ErrCodeInvalidInput indicates the request input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Pipeline errors
const (
	// ErrCodeConversionError indicates the audio transcoding tool failed or
	// reported success without producing output.
	ErrCodeConversionError ErrorCode = "CONVERSION_ERROR"
	// ErrCodeModelNotLoaded indicates transcription was requested before the
	// model reached the ready state.
	ErrCodeModelNotLoaded ErrorCode = "MODEL_NOT_LOADED"
	// ErrCodeModelLoadError indicates the model failed to load.
	ErrCodeModelLoadError ErrorCode = "MODEL_LOAD_ERROR"
	// ErrCodeResourceExhausted indicates the host ran out of a resource,
	// typically memory, during load or inference.
	ErrCodeResourceExhausted ErrorCode = "RESOURCE_EXHAUSTED"
	// ErrCodeTranscriptionTimeout indicates inference exceeded its time budget.
	ErrCodeTranscriptionTimeout ErrorCode = "TRANSCRIPTION_TIMEOUT"
	// ErrCodeTranscriptionError indicates a generic inference failure.
	ErrCodeTranscriptionError ErrorCode = "TRANSCRIPTION_ERROR"
	// ErrCodeCancelled indicates the job was cancelled on request.
	ErrCodeCancelled ErrorCode = "CANCELLED"
)

// Internal errors
const (
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeConversionError:      true,
	ErrCodeModelLoadError:       true,
	ErrCodeResourceExhausted:    true,
	ErrCodeTranscriptionTimeout: true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
