package job

import (
	"time"

	"github.com/mediagrab/backend/internal/fetch"
)

// Job status constants representing the job lifecycle
const (
	StatusStarting        = "starting"
	StatusDownloading     = "downloading"
	StatusProcessingPart1 = "processing_part1"
	StatusProcessing      = "processing"
	StatusReencoding      = "re-encoding"
	StatusComplete        = "complete"
	StatusError           = "error"
)

// Pipeline phases. Phases 1 and 2 may be assigned tentatively from
// event ordering and corrected once the true stream count is known.
const (
	PhaseAborted   = 0
	PhaseStreamOne = 1
	PhaseStreamTwo = 2
	PhaseMerge     = 3
	PhaseTranscode = 4
	PhaseFinal     = 5
)

// Job is the full record for one download pipeline run. Filepath is
// server-internal; external observers receive a View instead.
type Job struct {
	ID            string
	Status        string
	Phase         int
	Provisional   bool // phase was set heuristically, not yet confirmed
	Progress      float64
	Filename      string
	FinalFilename string
	Filepath      string
	Error         string
	InfoText      string
	StartTime     time.Time

	// LastEventKind is the kind of the most recent raw fetch event,
	// used to detect downloading-to-finished edges.
	LastEventKind fetch.EventKind
}

// New creates a job record in its initial state
func New(id string) *Job {
	return &Job{
		ID:        id,
		Status:    StatusStarting,
		Phase:     PhaseStreamOne,
		InfoText:  "Initializing...",
		StartTime: time.Now(),
	}
}

// IsTerminal returns true if the job is in a terminal state
func (j *Job) IsTerminal() bool {
	return j.Status == StatusComplete || j.Status == StatusError
}

// View is the sanitized representation returned to polling clients
type View struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	Phase         int     `json:"phase"`
	Progress      float64 `json:"progress"`
	Filename      string  `json:"filename,omitempty"`
	FinalFilename string  `json:"final_filename,omitempty"`
	Error         string  `json:"error,omitempty"`
	InfoText      string  `json:"info_text,omitempty"`
}

// View returns a copy of the job safe to expose externally. The
// server-side file path is never included.
func (j *Job) View() View {
	return View{
		ID:            j.ID,
		Status:        j.Status,
		Phase:         j.Phase,
		Progress:      j.Progress,
		Filename:      j.Filename,
		FinalFilename: j.FinalFilename,
		Error:         j.Error,
		InfoText:      j.InfoText,
	}
}
