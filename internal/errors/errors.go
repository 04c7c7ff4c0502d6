package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	CategoryClient   ErrorCategory = "client"
	CategoryServer   ErrorCategory = "server"
	CategoryExternal ErrorCategory = "external"
)

// Common error codes
const (
	// Client errors (4xx)
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeNotFound       = "NOT_FOUND"
	CodeInvalidURL     = "INVALID_URL"
	CodeInvalidFormat  = "INVALID_FORMAT"

	// Job specific
	CodeJobNotFound  = "JOB_NOT_FOUND"
	CodeFileNotReady = "FILE_NOT_READY"
	CodeFileMissing  = "FILE_MISSING"

	// Server errors (5xx)
	CodeInternalError    = "INTERNAL_ERROR"
	CodeSetupFailed      = "SETUP_FAILED"
	CodeProcessingFailed = "PROCESSING_FAILED"

	// Pipeline / external tool errors
	CodeFetchUnsupportedURL   = "FETCH_UNSUPPORTED_URL"
	CodeFetchUnavailable      = "FETCH_UNAVAILABLE"
	CodeFetchExtractionFailed = "FETCH_EXTRACTION_FAILED"
	CodeFetchFailed           = "FETCH_FAILED"
	CodeFileResolutionFailed  = "FILE_RESOLUTION_FAILED"
	CodeTranscoderUnavailable = "TRANSCODER_UNAVAILABLE"
	CodeTranscodeFailed       = "TRANSCODE_FAILED"
)

// AppError represents a structured application error
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Category   ErrorCategory  `json:"-"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// WithCause sets the underlying cause of the error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// ErrorResponse is the JSON structure returned to clients
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody contains the error details
type ErrorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// New creates a new AppError
func New(code string, message string, category ErrorCategory, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Category:   category,
		HTTPStatus: httpStatus,
	}
}

// Client error constructors

func BadRequest(message string) *AppError {
	return New(CodeInvalidRequest, message, CategoryClient, http.StatusBadRequest)
}

func InvalidURL(message string) *AppError {
	return New(CodeInvalidURL, message, CategoryClient, http.StatusBadRequest)
}

func InvalidFormat(formatID string) *AppError {
	return New(CodeInvalidFormat, fmt.Sprintf("unknown format: %s", formatID), CategoryClient, http.StatusBadRequest)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource), CategoryClient, http.StatusNotFound)
}

func JobNotFound() *AppError {
	return New(CodeJobNotFound, "download not found or expired", CategoryClient, http.StatusNotFound)
}

func FileNotReady(status string) *AppError {
	return New(CodeFileNotReady, fmt.Sprintf("download not ready, current status: %s", status), CategoryClient, http.StatusConflict)
}

func FileMissing() *AppError {
	return New(CodeFileMissing, "completed file is missing from storage", CategoryServer, http.StatusNotFound)
}

// Server error constructors

func InternalError(message string) *AppError {
	return New(CodeInternalError, message, CategoryServer, http.StatusInternalServerError)
}

func SetupFailed(message string) *AppError {
	return New(CodeSetupFailed, message, CategoryServer, http.StatusInternalServerError)
}

func ProcessingFailed(message string) *AppError {
	return New(CodeProcessingFailed, message, CategoryServer, http.StatusInternalServerError)
}

// Pipeline / external tool error constructors

func FetchUnsupportedURL() *AppError {
	return New(CodeFetchUnsupportedURL, "unsupported URL", CategoryClient, http.StatusBadRequest)
}

func FetchUnavailable() *AppError {
	return New(CodeFetchUnavailable, "this media is private or unavailable", CategoryClient, http.StatusBadRequest)
}

func FetchExtractionFailed() *AppError {
	return New(CodeFetchExtractionFailed, "could not extract media information from the URL", CategoryClient, http.StatusBadRequest)
}

func FetchFailed(message string) *AppError {
	return New(CodeFetchFailed, message, CategoryExternal, http.StatusBadGateway)
}

func FileResolutionFailed(message string) *AppError {
	return New(CodeFileResolutionFailed, message, CategoryServer, http.StatusInternalServerError)
}

func TranscoderUnavailable() *AppError {
	return New(CodeTranscoderUnavailable, "transcoder unavailable", CategoryServer, http.StatusInternalServerError)
}

func TranscodeFailed(message string) *AppError {
	return New(CodeTranscodeFailed, message, CategoryServer, http.StatusInternalServerError)
}

// WriteError writes an error response to the HTTP response writer
func WriteError(w http.ResponseWriter, requestID string, err error) {
	var appErr *AppError

	switch e := err.(type) {
	case *AppError:
		appErr = e
	default:
		// Wrap unknown errors as internal errors
		appErr = InternalError("an unexpected error occurred").WithCause(err)
	}

	resp := ErrorResponse{
		Error: ErrorBody{
			Code:      appErr.Code,
			Message:   appErr.Message,
			RequestID: requestID,
			Details:   appErr.Details,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(appErr.HTTPStatus)
	json.NewEncoder(w).Encode(resp)
}

// WriteJSON writes a JSON response with the request ID header
func WriteJSON(w http.ResponseWriter, requestID string, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// IsClientError returns true if the error is a client error
func IsClientError(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return appErr.Category == CategoryClient
}

// IsServerError returns true if the error is a server error
func IsServerError(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return appErr.Category == CategoryServer
}

// IsExternalError returns true if the error is an external service error
func IsExternalError(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return appErr.Category == CategoryExternal
}
