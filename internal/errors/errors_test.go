package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	err := JobNotFound()
	if !strings.Contains(err.Error(), CodeJobNotFound) {
		t.Errorf("expected code in message, got %q", err.Error())
	}

	wrapped := FetchFailed("boom").WithCause(errors.New("underlying"))
	if !strings.Contains(wrapped.Error(), "underlying") {
		t.Errorf("expected cause in message, got %q", wrapped.Error())
	}
	if !errors.Is(wrapped, wrapped.Cause) {
		t.Error("Unwrap should expose the cause")
	}
}

func TestConstructors_StatusAndCategory(t *testing.T) {
	tests := []struct {
		err      *AppError
		status   int
		category ErrorCategory
	}{
		{BadRequest("x"), http.StatusBadRequest, CategoryClient},
		{InvalidURL("x"), http.StatusBadRequest, CategoryClient},
		{JobNotFound(), http.StatusNotFound, CategoryClient},
		{FileNotReady("downloading"), http.StatusConflict, CategoryClient},
		{FileMissing(), http.StatusNotFound, CategoryServer},
		{SetupFailed("x"), http.StatusInternalServerError, CategoryServer},
		{FetchUnavailable(), http.StatusBadRequest, CategoryClient},
		{FetchFailed("x"), http.StatusBadGateway, CategoryExternal},
		{TranscoderUnavailable(), http.StatusInternalServerError, CategoryServer},
	}
	for _, tt := range tests {
		if tt.err.HTTPStatus != tt.status {
			t.Errorf("%s: expected status %d, got %d", tt.err.Code, tt.status, tt.err.HTTPStatus)
		}
		if tt.err.Category != tt.category {
			t.Errorf("%s: expected category %s, got %s", tt.err.Code, tt.category, tt.err.Category)
		}
	}
}

func TestFileNotReady_IncludesStatus(t *testing.T) {
	err := FileNotReady("re-encoding")
	if !strings.Contains(err.Message, "re-encoding") {
		t.Errorf("expected current status in message, got %q", err.Message)
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, "req-1", FileNotReady("downloading"))

	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
	if got := w.Header().Get("X-Request-ID"); got != "req-1" {
		t.Errorf("expected request id header, got %q", got)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Error.Code != CodeFileNotReady {
		t.Errorf("expected %s, got %s", CodeFileNotReady, resp.Error.Code)
	}
	if resp.Error.RequestID != "req-1" {
		t.Errorf("expected request id in body, got %q", resp.Error.RequestID)
	}
}

func TestWriteError_WrapsUnknown(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, "", errors.New("raw failure"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for unknown errors, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "raw failure") {
		t.Error("internal error details should not leak to clients")
	}
}

func TestCategoryHelpers(t *testing.T) {
	if !IsClientError(JobNotFound()) {
		t.Error("JobNotFound should be a client error")
	}
	if !IsServerError(SetupFailed("x")) {
		t.Error("SetupFailed should be a server error")
	}
	if !IsExternalError(FetchFailed("x")) {
		t.Error("FetchFailed should be an external error")
	}
	if IsClientError(errors.New("plain")) {
		t.Error("plain errors have no category")
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(t.Context(), "abc-123")
	if got := GetRequestID(ctx); got != "abc-123" {
		t.Errorf("expected abc-123, got %q", got)
	}
	if got := GetRequestID(t.Context()); got != "" {
		t.Errorf("expected empty id on bare context, got %q", got)
	}
	if GenerateRequestID() == GenerateRequestID() {
		t.Error("generated ids should be unique")
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if seen == "" {
		t.Error("middleware should inject a request id")
	}
	if got := w.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("response header %q should match context id %q", got, seen)
	}
}

func TestRequestIDMiddleware_RespectsIncoming(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "client-supplied")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if seen != "client-supplied" {
		t.Errorf("expected incoming id preserved, got %q", seen)
	}
}
