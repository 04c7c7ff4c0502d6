package health

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/mediagrab/backend/internal/cache"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// ComponentHealth represents the health of a single component
type ComponentHealth struct {
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// HealthResponse represents the full health check response
type HealthResponse struct {
	Status     Status                     `json:"status"`
	Timestamp  string                     `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// Checker performs health checks on the pieces the download pipeline
// depends on: the external tools, the download root, and the optional
// probe cache.
type Checker struct {
	ytdlpPath    string
	ffmpegPath   string
	downloadRoot string
	cache        *cache.Cache
	version      string
	checkTimeout time.Duration
}

// CheckerConfig holds configuration for the health checker
type CheckerConfig struct {
	YtdlpPath    string
	FFmpegPath   string
	DownloadRoot string
	Cache        *cache.Cache
	Version      string
	Timeout      time.Duration
}

// NewChecker creates a new health checker
func NewChecker(cfg *CheckerConfig) *Checker {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		ytdlpPath:    cfg.YtdlpPath,
		ffmpegPath:   cfg.FFmpegPath,
		downloadRoot: cfg.DownloadRoot,
		cache:        cfg.Cache,
		version:      cfg.Version,
		checkTimeout: timeout,
	}
}

// CheckFetcher verifies the download tool is on the path
func (c *Checker) CheckFetcher(ctx context.Context) ComponentHealth {
	start := time.Now()
	if _, err := exec.LookPath(c.ytdlpPath); err != nil {
		return ComponentHealth{
			Status:   StatusUnhealthy,
			Message:  "download tool not found",
			Duration: time.Since(start).String(),
		}
	}
	return ComponentHealth{
		Status:   StatusHealthy,
		Duration: time.Since(start).String(),
	}
}

// CheckTranscoder verifies ffmpeg is on the path. A missing encoder
// degrades rather than fails: audio downloads still work without it.
func (c *Checker) CheckTranscoder(ctx context.Context) ComponentHealth {
	start := time.Now()
	if _, err := exec.LookPath(c.ffmpegPath); err != nil {
		return ComponentHealth{
			Status:   StatusDegraded,
			Message:  "encoder not found",
			Duration: time.Since(start).String(),
		}
	}
	return ComponentHealth{
		Status:   StatusHealthy,
		Duration: time.Since(start).String(),
	}
}

// CheckStorage verifies the download root exists and is writable
func (c *Checker) CheckStorage(ctx context.Context) ComponentHealth {
	start := time.Now()

	if err := os.MkdirAll(c.downloadRoot, 0o755); err != nil {
		return ComponentHealth{
			Status:   StatusUnhealthy,
			Message:  "download root unavailable",
			Duration: time.Since(start).String(),
		}
	}

	probe := filepath.Join(c.downloadRoot, ".healthcheck")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return ComponentHealth{
			Status:   StatusUnhealthy,
			Message:  "download root not writable",
			Duration: time.Since(start).String(),
		}
	}
	os.Remove(probe)

	return ComponentHealth{
		Status:   StatusHealthy,
		Duration: time.Since(start).String(),
	}
}

// CheckCache checks connectivity to the probe cache. The cache is
// optional, so an unreachable cache degrades instead of failing.
func (c *Checker) CheckCache(ctx context.Context) ComponentHealth {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	if err := c.cache.Ping(ctx); err != nil {
		return ComponentHealth{
			Status:   StatusDegraded,
			Message:  "cache unreachable",
			Duration: time.Since(start).String(),
		}
	}
	return ComponentHealth{
		Status:   StatusHealthy,
		Duration: time.Since(start).String(),
	}
}

// Check performs a basic health check (liveness)
func (c *Checker) Check(ctx context.Context) *HealthResponse {
	return &HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   c.version,
	}
}

// DeepCheck performs a comprehensive health check (readiness)
func (c *Checker) DeepCheck(ctx context.Context) *HealthResponse {
	response := &HealthResponse{
		Status:     StatusHealthy,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Version:    c.version,
		Components: make(map[string]ComponentHealth),
	}

	checks := map[string]func(context.Context) ComponentHealth{
		"fetcher":    c.CheckFetcher,
		"transcoder": c.CheckTranscoder,
		"storage":    c.CheckStorage,
	}
	if c.cache != nil {
		checks["cache"] = c.CheckCache
	}

	// Run checks in parallel
	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, check := range checks {
		wg.Add(1)
		go func(n string, ch func(context.Context) ComponentHealth) {
			defer wg.Done()
			result := ch(ctx)
			mu.Lock()
			response.Components[n] = result
			mu.Unlock()
		}(name, check)
	}

	wg.Wait()

	// Determine overall status
	for _, comp := range response.Components {
		if comp.Status == StatusUnhealthy {
			response.Status = StatusUnhealthy
			break
		} else if comp.Status == StatusDegraded && response.Status == StatusHealthy {
			response.Status = StatusDegraded
		}
	}

	return response
}

// Handler provides HTTP handlers for health endpoints
type Handler struct {
	checker *Checker
}

// NewHandler creates a new health handler
func NewHandler(checker *Checker) *Handler {
	return &Handler{checker: checker}
}

// LivenessHandler handles liveness probe requests
func (h *Handler) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	response := h.checker.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if response.Status != StatusHealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(response)
}

// ReadinessHandler handles readiness probe requests
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	response := h.checker.DeepCheck(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if response.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(response)
}

// HealthHandler handles basic health check requests
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("deep") == "true" {
		h.ReadinessHandler(w, r)
		return
	}
	h.LivenessHandler(w, r)
}
