package reaper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mediagrab/backend/internal/job"
	"github.com/mediagrab/backend/internal/logger"
	"github.com/mediagrab/backend/internal/metrics"
)

// Reaper periodically removes expired download directories and the
// job records that point at them. Only directories that look like job
// directories (UUID-shaped names) are ever touched; anything else in
// the download root is left alone.
type Reaper struct {
	store     *job.Store
	root      string
	interval  time.Duration
	retention time.Duration
	log       *logger.Logger
	metrics   *metrics.Metrics
}

func New(store *job.Store, root string, interval, retention time.Duration, log *logger.Logger, m *metrics.Metrics) *Reaper {
	return &Reaper{
		store:     store,
		root:      root,
		interval:  interval,
		retention: retention,
		log:       log.WithComponent("reaper"),
		metrics:   m,
	}
}

// Run sweeps on the configured interval until ctx is cancelled. A
// failed sweep extends the wait before the next attempt instead of
// killing the loop.
func (r *Reaper) Run(ctx context.Context) {
	wait := r.interval
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		if err := r.sweep(ctx); err != nil {
			r.log.Error(ctx, "sweep failed", err)
			wait = r.interval * 2
		} else {
			wait = r.interval
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("sweep panicked: %v", rec)
		}
	}()
	return r.SweepOnce(ctx, time.Now())
}

// SweepOnce runs a single cleanup pass against the given clock.
//
// A directory is reaped when it is UUID-shaped, older than the
// retention cutoff, and not backed by an active (non-terminal) job. A
// job record is reaped when its directory is gone and the job started
// before the cutoff.
func (r *Reaper) SweepOnce(ctx context.Context, now time.Time) error {
	cutoff := now.Add(-r.retention)

	active := make(map[string]bool)
	started := make(map[string]time.Time)
	for _, id := range r.store.SnapshotIDs() {
		j, err := r.store.Get(id)
		if err != nil {
			continue
		}
		if !j.IsTerminal() {
			active[id] = true
		}
		started[id] = j.StartTime
	}

	entries, err := os.ReadDir(r.root)
	if err != nil {
		return fmt.Errorf("read download root: %w", err)
	}

	onDisk := make(map[string]bool)
	var reaped int
	for _, e := range entries {
		if !e.IsDir() || !looksLikeJobDir(e.Name()) {
			continue
		}
		id := e.Name()
		onDisk[id] = true

		info, err := e.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) || active[id] {
			continue
		}

		path := filepath.Join(r.root, id)
		if err := os.RemoveAll(path); err != nil {
			r.log.Warn(ctx, "failed to remove expired directory", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			continue
		}
		r.store.Delete(id)
		reaped++
	}

	// Orphaned records: the directory is already gone but the job
	// lingers in memory past the retention window.
	var orphans int
	for id, start := range started {
		if onDisk[id] || active[id] {
			continue
		}
		if start.Before(cutoff) {
			r.store.Delete(id)
			orphans++
		}
	}

	if reaped > 0 || orphans > 0 {
		r.metrics.AddCounter(metrics.CounterFilesReaped, uint64(reaped))
		r.log.Info(ctx, "sweep complete", map[string]interface{}{
			"directories_removed": reaped,
			"orphans_removed":     orphans,
		})
	}
	r.metrics.IncCounter(metrics.CounterReaperSweeps)
	r.metrics.SetActiveJobs(int64(r.store.Len()))

	return nil
}

// looksLikeJobDir reports whether name has the shape of a job id.
// Job ids are UUIDs: 36 characters with dashes at fixed positions.
func looksLikeJobDir(name string) bool {
	return len(name) == 36 && strings.Count(name, "-") == 4
}
