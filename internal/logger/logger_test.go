package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	apperrors "github.com/mediagrab/backend/internal/errors"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelWarn, "test")

	ctx := context.Background()
	log.Debug(ctx, "debug message")
	log.Info(ctx, "info message")
	log.Warn(ctx, "warn message")

	output := buf.String()
	if strings.Contains(output, "debug message") {
		t.Error("Debug message should be filtered at warn level")
	}
	if strings.Contains(output, "info message") {
		t.Error("Info message should be filtered at warn level")
	}
	if !strings.Contains(output, "warn message") {
		t.Error("Warn message should be logged at warn level")
	}
}

func TestLogger_StructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, "pipeline")

	ctx := apperrors.WithRequestID(context.Background(), "req-123")
	log.Info(ctx, "job started", map[string]interface{}{
		"url": "https://example.com/watch?v=abc",
	})

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}

	if entry.Level != "info" {
		t.Errorf("Expected level info, got %s", entry.Level)
	}
	if entry.Component != "pipeline" {
		t.Errorf("Expected component pipeline, got %s", entry.Component)
	}
	if entry.RequestID != "req-123" {
		t.Errorf("Expected request ID req-123, got %s", entry.RequestID)
	}
	if entry.Fields["url"] != "https://example.com/watch?v=abc" {
		t.Errorf("Expected url field, got %v", entry.Fields["url"])
	}
}

func TestLogger_WithJob(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, "pipeline").WithJob("job-42")

	log.Info(context.Background(), "resolved output file")

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}

	if entry.JobID != "job-42" {
		t.Errorf("Expected job_id job-42, got %s", entry.JobID)
	}
}

func TestLogger_ErrorDetails(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, "")

	log.Error(context.Background(), "transcode failed", apperrors.TranscodeFailed("ffmpeg exited with code 1"))

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}

	if entry.Error == nil {
		t.Fatal("Expected error details")
	}
	if entry.Error.Code != apperrors.CodeTranscodeFailed {
		t.Errorf("Expected code %s, got %s", apperrors.CodeTranscodeFailed, entry.Error.Code)
	}
	if entry.Error.StackTrace == "" {
		t.Error("Expected stack trace on error entries")
	}
	if entry.Caller == "" {
		t.Error("Expected caller info on error entries")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"info":    LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
