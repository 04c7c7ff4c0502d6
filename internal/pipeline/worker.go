package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	apperrors "github.com/mediagrab/backend/internal/errors"
	"github.com/mediagrab/backend/internal/fetch"
	"github.com/mediagrab/backend/internal/job"
	"github.com/mediagrab/backend/internal/logger"
	"github.com/mediagrab/backend/internal/metrics"
)

// Encoder converts a downloaded video into its final container,
// reporting progress into the job store as it goes
type Encoder interface {
	Run(ctx context.Context, inputPath string, duration float64, jobID string, store *job.Store) (string, error)
}

// Worker runs download jobs in the background. Each launched job gets
// its own directory under root, named by the job id, and progresses
// through fetch, file resolution, optional transcode, and completion.
type Worker struct {
	store      *job.Store
	fetcher    fetch.Service
	transcoder Encoder
	root       string
	headers    map[string]string
	log        *logger.Logger
	metrics    *metrics.Metrics
}

func NewWorker(store *job.Store, fetcher fetch.Service, transcoder Encoder, root string, headers map[string]string, log *logger.Logger, m *metrics.Metrics) *Worker {
	return &Worker{
		store:      store,
		fetcher:    fetcher,
		transcoder: transcoder,
		root:       root,
		headers:    headers,
		log:        log.WithComponent("pipeline"),
		metrics:    m,
	}
}

// Launch registers a new job and starts its pipeline in the
// background, returning the job id immediately.
func (w *Worker) Launch(url string, spec job.FormatSpec) string {
	id := uuid.NewString()
	w.store.Create(job.New(id))
	w.metrics.IncCounter(metrics.CounterJobsStarted)
	w.metrics.SetActiveJobs(int64(w.store.Len()))

	go w.run(id, url, spec)
	return id
}

func (w *Worker) run(id, url string, spec job.FormatSpec) {
	ctx := context.Background()
	log := w.log.WithJob(id)

	defer func() {
		if r := recover(); r != nil {
			log.Error(ctx, "job pipeline panicked", nil, map[string]interface{}{
				"panic": r,
			})
			w.fail(ctx, id, apperrors.ProcessingFailed("An unexpected error occurred"))
		}
	}()

	dir := filepath.Join(w.root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Error(ctx, "failed to create job directory", err)
		w.fail(ctx, id, apperrors.SetupFailed("Could not prepare download directory"))
		return
	}

	if spec.AudioOnly {
		// Audio extraction is a single stream followed by conversion,
		// so the two-stream phase heuristic does not apply.
		w.store.WithLock(id, func(j *job.Job) {
			j.Phase = job.PhaseMerge
			j.InfoText = "Downloading audio..."
		})
	}

	req := fetch.Request{
		Selector:       spec.Selector,
		OutputTemplate: filepath.Join(dir, "%(title)s.%(ext)s"),
		MergeFormat:    spec.MergeFormat,
		AudioOnly:      spec.AudioOnly,
		AudioFormat:    spec.AudioFormat,
		AudioQuality:   spec.AudioQuality,
		Headers:        w.headers,
	}

	sink := func(ev fetch.Event) {
		w.store.WithLock(id, func(j *job.Job) {
			j.ApplyFetchEvent(ev)
		})
	}

	log.Info(ctx, "fetch started", map[string]interface{}{
		"url":    url,
		"format": spec.Name,
	})

	result, err := w.fetcher.Fetch(ctx, url, req, sink)
	if err != nil {
		log.Error(ctx, "fetch failed", err)
		w.fail(ctx, id, err)
		return
	}

	streams := 0
	if result != nil {
		streams = result.RequestedStreams
	}
	w.store.WithLock(id, func(j *job.Job) {
		j.CorrectStreamCount(streams, spec.AudioOnly)
	})

	path, err := resolveArtifact(result, dir, spec.Ext)
	if err != nil {
		log.Error(ctx, "could not locate downloaded file", err)
		w.fail(ctx, id, err)
		return
	}

	title := ""
	duration := 0.0
	if result != nil {
		title = result.Title
		duration = result.Duration
	}
	if title == "" {
		base := filepath.Base(path)
		title = base[:len(base)-len(filepath.Ext(base))]
	}
	path, name := renameArtifact(path, title, spec.Ext)

	w.store.WithLock(id, func(j *job.Job) {
		j.Filename = name
		j.Filepath = path
	})

	if !spec.AudioOnly {
		aborted := false
		w.store.WithLock(id, func(j *job.Job) {
			if j.Status == job.StatusError {
				aborted = true
				return
			}
			j.Status = job.StatusReencoding
			j.Phase = job.PhaseTranscode
			// The transcode reports its own 0-100 pass.
			j.Progress = 0
			j.InfoText = "Optimizing for playback..."
		})
		if aborted {
			return
		}

		newPath, err := w.transcoder.Run(ctx, path, duration, id, w.store)
		if err != nil {
			log.Error(ctx, "transcode failed", err)
			w.fail(ctx, id, err)
			return
		}
		path = newPath
		name = filepath.Base(newPath)
	}

	completed := false
	w.store.WithLock(id, func(j *job.Job) {
		if j.Status == job.StatusError {
			return
		}
		j.Status = job.StatusComplete
		j.Phase = job.PhaseFinal
		j.Progress = 100
		j.Filename = name
		j.FinalFilename = name
		j.Filepath = path
		j.InfoText = "Complete"
		completed = true
	})

	if completed {
		w.metrics.IncCounter(metrics.CounterJobsCompleted)
		log.Info(ctx, "job complete", map[string]interface{}{
			"file": name,
		})
	}
}

// fail marks the job as failed with a user-presentable message derived
// from the error. Fetch errors carry a stable category that maps onto
// specific messages; anything else becomes a generic processing error.
func (w *Worker) fail(ctx context.Context, id string, err error) {
	appErr := toAppError(err)

	w.store.WithLock(id, func(j *job.Job) {
		if j.Status == job.StatusError {
			if j.Error == "" {
				j.Error = appErr.Message
			}
			return
		}
		j.Status = job.StatusError
		j.Phase = job.PhaseAborted
		j.Progress = 0
		j.Error = appErr.Message
		j.InfoText = ""
	})

	w.metrics.IncCounter(metrics.CounterJobsFailed)
}

func toAppError(err error) *apperrors.AppError {
	var fetchErr *fetch.Error
	if errors.As(err, &fetchErr) {
		switch fetchErr.Category {
		case fetch.CategoryUnsupportedURL:
			return apperrors.FetchUnsupportedURL()
		case fetch.CategoryUnavailable:
			return apperrors.FetchUnavailable()
		case fetch.CategoryExtraction:
			return apperrors.FetchExtractionFailed()
		default:
			return apperrors.FetchFailed(fetchErr.Message)
		}
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.ProcessingFailed("An unexpected error occurred while processing the download")
}
