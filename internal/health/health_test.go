package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testChecker(t *testing.T) *Checker {
	t.Helper()
	return NewChecker(&CheckerConfig{
		YtdlpPath:    "definitely-not-a-real-binary",
		FFmpegPath:   "also-not-a-real-binary",
		DownloadRoot: t.TempDir(),
		Version:      "test",
	})
}

func TestCheck_Liveness(t *testing.T) {
	c := testChecker(t)

	resp := c.Check(context.Background())
	if resp.Status != StatusHealthy {
		t.Errorf("liveness should always report healthy, got %s", resp.Status)
	}
	if resp.Version != "test" {
		t.Errorf("expected version in response, got %q", resp.Version)
	}
}

func TestCheckStorage(t *testing.T) {
	c := testChecker(t)

	got := c.CheckStorage(context.Background())
	if got.Status != StatusHealthy {
		t.Errorf("writable temp dir should be healthy, got %s: %s", got.Status, got.Message)
	}
}

func TestCheckStorage_Unwritable(t *testing.T) {
	c := NewChecker(&CheckerConfig{
		DownloadRoot: "/proc/no-such-place",
	})

	got := c.CheckStorage(context.Background())
	if got.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy for unwritable root, got %s", got.Status)
	}
}

func TestCheckFetcher_Missing(t *testing.T) {
	c := testChecker(t)

	got := c.CheckFetcher(context.Background())
	if got.Status != StatusUnhealthy {
		t.Errorf("missing download tool should be unhealthy, got %s", got.Status)
	}
}

func TestCheckTranscoder_MissingDegrades(t *testing.T) {
	c := testChecker(t)

	got := c.CheckTranscoder(context.Background())
	if got.Status != StatusDegraded {
		t.Errorf("missing encoder should degrade, not fail: got %s", got.Status)
	}
}

func TestDeepCheck_AggregatesStatus(t *testing.T) {
	c := testChecker(t)

	resp := c.DeepCheck(context.Background())
	// Fetcher is missing, so overall status must be unhealthy
	if resp.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy overall, got %s", resp.Status)
	}
	if _, ok := resp.Components["fetcher"]; !ok {
		t.Error("expected fetcher component in deep check")
	}
	if _, ok := resp.Components["cache"]; ok {
		t.Error("cache component should be absent when not configured")
	}
}

func TestHealthHandler(t *testing.T) {
	h := NewHandler(testChecker(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.HealthHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("liveness endpoint should return 200, got %d", w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", resp.Status)
	}
}

func TestHealthHandler_Deep(t *testing.T) {
	h := NewHandler(testChecker(t))

	req := httptest.NewRequest(http.MethodGet, "/health?deep=true", nil)
	w := httptest.NewRecorder()
	h.HealthHandler(w, req)

	// Deep check fails on the missing download tool
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 from deep check, got %d", w.Code)
	}
}
