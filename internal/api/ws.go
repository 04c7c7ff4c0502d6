package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	apperrors "github.com/mediagrab/backend/internal/errors"
	"github.com/mediagrab/backend/internal/job"
	"github.com/mediagrab/backend/internal/logger"
	"github.com/mediagrab/backend/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	progressPushInterval = 500 * time.Millisecond
	wsWriteTimeout       = 10 * time.Second
)

// WSHandlers streams job progress over a WebSocket as an alternative
// to polling the status endpoint.
type WSHandlers struct {
	store   *job.Store
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewWSHandlers(store *job.Store, m *metrics.Metrics, log *logger.Logger) *WSHandlers {
	return &WSHandlers{
		store:   store,
		metrics: m,
		log:     log.WithComponent("ws"),
	}
}

// ServeProgress handles GET /api/v1/downloads/{job_id}/ws. The job's
// sanitized view is pushed on a fixed interval; the final state is
// sent once and then the connection closes.
func (h *WSHandlers) ServeProgress(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	jobID := r.PathValue("job_id")
	if _, err := h.store.Get(jobID); err != nil {
		apperrors.WriteError(w, requestID, apperrors.JobNotFound())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	defer conn.Close()

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	// Drain reads so client close frames are noticed
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(progressPushInterval)
	defer ticker.Stop()

	var last job.View
	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
		}

		j, err := h.store.Get(jobID)
		if err != nil {
			// Reaped mid-stream
			return
		}

		view := j.View()
		if view != last {
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(view); err != nil {
				return
			}
			last = view
		}

		if j.IsTerminal() {
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
