package api

import (
	"net/http"

	"github.com/mediagrab/backend/internal/health"
	"github.com/mediagrab/backend/internal/metrics"
)

type Router struct {
	mux              *http.ServeMux
	downloadHandlers *DownloadHandlers
	infoHandlers     *InfoHandlers
	wsHandlers       *WSHandlers
	healthHandler    *health.Handler
	metrics          *metrics.Metrics
}

func NewRouter(downloads *DownloadHandlers, info *InfoHandlers, ws *WSHandlers, healthHandler *health.Handler, m *metrics.Metrics) *Router {
	r := &Router{
		mux:              http.NewServeMux(),
		downloadHandlers: downloads,
		infoHandlers:     info,
		wsHandlers:       ws,
		healthHandler:    healthHandler,
		metrics:          m,
	}
	r.setupRoutes()
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) setupRoutes() {
	// Operational endpoints
	r.mux.HandleFunc("GET /health", r.healthHandler.HealthHandler)
	r.mux.HandleFunc("GET /metrics", r.metrics.Handler())

	// Metadata lookup
	r.mux.HandleFunc("POST /api/v1/info", r.infoHandlers.GetInfo)

	// Download jobs
	r.mux.HandleFunc("POST /api/v1/downloads", r.downloadHandlers.CreateDownload)
	r.mux.HandleFunc("GET /api/v1/downloads/{job_id}", r.downloadHandlers.GetJob)
	r.mux.HandleFunc("GET /api/v1/downloads/{job_id}/file", r.downloadHandlers.GetFile)
	r.mux.HandleFunc("GET /api/v1/downloads/{job_id}/ws", r.wsHandlers.ServeProgress)
}
