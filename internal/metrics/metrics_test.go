package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(m *Metrics) string {
	handler := m.Handler()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handler(w, req)
	return w.Body.String()
}

func TestMetrics_RecordRequest(t *testing.T) {
	m := New()

	m.RecordRequest("GET", "/health", 200, 100*time.Millisecond)
	m.RecordRequest("GET", "/health", 200, 150*time.Millisecond)
	m.RecordRequest("GET", "/health", 500, 50*time.Millisecond)

	body := scrape(m)

	if !strings.Contains(body, "mg_http_requests_total") {
		t.Error("expected mg_http_requests_total metric")
	}
	if !strings.Contains(body, "mg_http_request_duration_seconds") {
		t.Error("expected mg_http_request_duration_seconds metric")
	}
	if !strings.Contains(body, `status_class="5xx"`) {
		t.Error("expected 5xx error class recorded")
	}
}

func TestMetrics_WSConnections(t *testing.T) {
	m := New()

	m.IncWSConnections()
	m.IncWSConnections()
	m.DecWSConnections()

	body := scrape(m)

	if !strings.Contains(body, "mg_websocket_connections_active 1") {
		t.Errorf("expected mg_websocket_connections_active 1, got:\n%s", body)
	}
}

func TestMetrics_ActiveJobs(t *testing.T) {
	m := New()

	m.SetActiveJobs(4)

	body := scrape(m)

	if !strings.Contains(body, "mg_jobs_active 4") {
		t.Errorf("expected mg_jobs_active 4, got:\n%s", body)
	}
}

func TestMetrics_EndpointNormalization(t *testing.T) {
	m := New()

	// Both requests should collapse onto the same endpoint label
	m.RecordRequest("GET", "/api/v1/downloads/123e4567-e89b-12d3-a456-426614174000", 200, 10*time.Millisecond)
	m.RecordRequest("GET", "/api/v1/downloads/550e8400-e29b-41d4-a716-446655440000", 200, 10*time.Millisecond)

	body := scrape(m)

	if !strings.Contains(body, "/api/v1/downloads/{id}") {
		t.Errorf("expected normalized endpoint /api/v1/downloads/{id}, got:\n%s", body)
	}
}

func TestMiddleware(t *testing.T) {
	m := New()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	wrappedHandler := Middleware(m)(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/info", nil)
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	if body := scrape(m); !strings.Contains(body, "/api/v1/info") {
		t.Errorf("expected endpoint /api/v1/info in metrics, got:\n%s", body)
	}
}

func TestMetrics_JobCounters(t *testing.T) {
	m := New()

	m.IncCounter(CounterJobsStarted)
	m.IncCounter(CounterJobsStarted)
	m.IncCounter(CounterJobsFailed)
	m.AddCounter(CounterFilesReaped, 3)

	body := scrape(m)

	if !strings.Contains(body, `mg_counter{name="jobs_started"} 2`) {
		t.Errorf("expected jobs_started counter = 2, got:\n%s", body)
	}
	if !strings.Contains(body, `mg_counter{name="files_reaped"} 3`) {
		t.Errorf("expected files_reaped counter = 3, got:\n%s", body)
	}
}

func TestMetrics_CustomGauge(t *testing.T) {
	m := New()

	m.SetGauge("disk_usage_bytes", 1024)

	body := scrape(m)

	if !strings.Contains(body, `mg_gauge{name="disk_usage_bytes"}`) {
		t.Errorf("expected disk_usage_bytes gauge, got:\n%s", body)
	}
}
