package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mediagrab/backend/internal/cache"
	apperrors "github.com/mediagrab/backend/internal/errors"
	"github.com/mediagrab/backend/internal/fetch"
	"github.com/mediagrab/backend/internal/logger"
	"github.com/mediagrab/backend/internal/metrics"
	"github.com/mediagrab/backend/internal/source"
)

type InfoHandlers struct {
	fetcher fetch.Service
	cache   *cache.Cache
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewInfoHandlers(fetcher fetch.Service, c *cache.Cache, m *metrics.Metrics, log *logger.Logger) *InfoHandlers {
	return &InfoHandlers{
		fetcher: fetcher,
		cache:   c,
		metrics: m,
		log:     log.WithComponent("api"),
	}
}

// InfoRequest represents the request body for a metadata lookup
type InfoRequest struct {
	URL string `json:"url"`
}

// StreamOption describes one downloadable rendition
type StreamOption struct {
	FormatID string `json:"format_id"`
	Label    string `json:"label"`
	Kind     string `json:"kind"` // "video" or "audio"
}

// InfoResponse represents the metadata returned for a URL
type InfoResponse struct {
	ID        string         `json:"id,omitempty"`
	Title     string         `json:"title"`
	Uploader  string         `json:"uploader,omitempty"`
	Thumbnail string         `json:"thumbnail,omitempty"`
	Duration  float64        `json:"duration,omitempty"`
	Streams   []StreamOption `json:"streams"`
}

// GetInfo handles POST /api/v1/info
func (h *InfoHandlers) GetInfo(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	var req InfoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid request body"))
		return
	}

	targetURL, err := normalizeURL(req.URL)
	if err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}

	result, hit := h.cache.GetInfo(r.Context(), targetURL)
	if hit {
		h.metrics.IncCounter(metrics.CounterInfoCacheHit)
	} else {
		h.metrics.IncCounter(metrics.CounterInfoCacheMiss)
		result, err = h.fetcher.Probe(r.Context(), targetURL)
		if err != nil {
			h.log.Error(r.Context(), "probe failed", err, map[string]interface{}{
				"url": targetURL,
			})
			apperrors.WriteError(w, requestID, probeError(err))
			return
		}
		h.cache.SetInfo(r.Context(), targetURL, result)
	}

	resp := InfoResponse{
		Streams: streamOptions(targetURL),
	}
	if result != nil {
		resp.ID = result.ID
		resp.Title = result.Title
		resp.Uploader = result.Uploader
		resp.Thumbnail = result.Thumbnail
		resp.Duration = result.Duration
	}

	apperrors.WriteJSON(w, requestID, http.StatusOK, resp)
}

func probeError(err error) error {
	var fetchErr *fetch.Error
	if errors.As(err, &fetchErr) {
		switch fetchErr.Category {
		case fetch.CategoryUnsupportedURL:
			return apperrors.FetchUnsupportedURL()
		case fetch.CategoryUnavailable:
			return apperrors.FetchUnavailable()
		case fetch.CategoryExtraction:
			return apperrors.FetchExtractionFailed()
		}
	}
	return apperrors.FetchFailed("could not fetch media information")
}

// streamOptions lists the format specs offered for a URL
func streamOptions(rawURL string) []StreamOption {
	formats := source.Formats(source.Detect(rawURL))
	options := make([]StreamOption, 0, len(formats))
	for _, f := range formats {
		options = append(options, StreamOption{
			FormatID: f.ID,
			Label:    f.Label,
			Kind:     f.Kind,
		})
	}
	return options
}
