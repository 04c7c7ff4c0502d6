package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	apperrors "github.com/mediagrab/backend/internal/errors"
	"github.com/mediagrab/backend/internal/job"
	"github.com/mediagrab/backend/internal/logger"
	"github.com/mediagrab/backend/internal/pipeline"
)

type DownloadHandlers struct {
	store  *job.Store
	worker *pipeline.Worker
	log    *logger.Logger
}

func NewDownloadHandlers(store *job.Store, worker *pipeline.Worker, log *logger.Logger) *DownloadHandlers {
	return &DownloadHandlers{
		store:  store,
		worker: worker,
		log:    log.WithComponent("api"),
	}
}

// CreateDownloadRequest represents the request body for starting a download
type CreateDownloadRequest struct {
	URL    string `json:"url"`
	Format string `json:"format,omitempty"`
}

// CreateDownloadResponse represents the response for a started download job
type CreateDownloadResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// CreateDownload handles POST /api/v1/downloads
func (h *DownloadHandlers) CreateDownload(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	var req CreateDownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid request body"))
		return
	}

	targetURL, err := normalizeURL(req.URL)
	if err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}

	spec, err := job.ParseFormatSpec(req.Format)
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.InvalidFormat(req.Format))
		return
	}

	id := h.worker.Launch(targetURL, spec)

	h.log.Info(r.Context(), "download accepted", map[string]interface{}{
		"job_id": id,
		"format": spec.Name,
	})

	apperrors.WriteJSON(w, requestID, http.StatusAccepted, CreateDownloadResponse{
		JobID:  id,
		Status: job.StatusStarting,
	})
}

// GetJob handles GET /api/v1/downloads/{job_id}
func (h *DownloadHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	jobID := r.PathValue("job_id")
	j, err := h.store.Get(jobID)
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.JobNotFound())
		return
	}

	apperrors.WriteJSON(w, requestID, http.StatusOK, j.View())
}

// GetFile handles GET /api/v1/downloads/{job_id}/file
func (h *DownloadHandlers) GetFile(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	jobID := r.PathValue("job_id")
	j, err := h.store.Get(jobID)
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.JobNotFound())
		return
	}

	if j.Status != job.StatusComplete {
		apperrors.WriteError(w, requestID, apperrors.FileNotReady(j.Status))
		return
	}

	// The file can disappear between completion and the request, e.g.
	// when the retention sweep beats the client to it.
	if _, statErr := os.Stat(j.Filepath); statErr != nil {
		h.store.WithLock(jobID, func(rec *job.Job) {
			rec.Status = job.StatusError
			rec.Error = "file no longer available"
		})
		apperrors.WriteError(w, requestID, apperrors.FileMissing())
		return
	}

	filename := j.FinalFilename
	if filename == "" {
		filename = j.Filename
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeFile(w, r, j.Filepath)
}

// normalizeURL validates a client-supplied media URL, defaulting the
// scheme to https when absent.
func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperrors.InvalidURL("url is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", apperrors.InvalidURL("url is not valid")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", apperrors.InvalidURL("only http and https URLs are supported")
	}
	if u.Host == "" {
		return "", apperrors.InvalidURL("url has no host")
	}
	return u.String(), nil
}
