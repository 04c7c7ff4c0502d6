package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/mediagrab/backend/internal/errors"
	"github.com/mediagrab/backend/internal/job"
	"github.com/mediagrab/backend/internal/logger"
)

// transcodeSuffix marks the compatibility output alongside the original
const transcodeSuffix = "_quicktime"

// ffmpeg writes progress to stderr as "time=HH:MM:SS.ff"
var timePattern = regexp.MustCompile(`time=(\d{2}):(\d{2}):(\d{2}\.\d+)`)

const transcodeProgressCap = 99.9

// Transcoder re-encodes a downloaded video into a broadly compatible
// H.264/AAC mp4, reporting progress derived from ffmpeg's stderr
// timestamps against the known media duration.
type Transcoder struct {
	ffmpegPath string
	log        *logger.Logger
}

func NewTranscoder(ffmpegPath string, log *logger.Logger) *Transcoder {
	return &Transcoder{
		ffmpegPath: ffmpegPath,
		log:        log.WithComponent("transcoder"),
	}
}

// Run re-encodes inputPath to a sibling file with the compatibility
// suffix, streaming progress into the job via update. duration is the
// media length in seconds; when zero or unknown, no progress is
// reported until completion. On success the original file is removed
// and the new path returned.
func (t *Transcoder) Run(ctx context.Context, inputPath string, duration float64, jobID string, store *job.Store) (string, error) {
	ext := filepath.Ext(inputPath)
	outputPath := strings.TrimSuffix(inputPath, ext) + transcodeSuffix + ".mp4"

	args := []string{
		"-y",
		"-i", inputPath,
		"-c:v", "libx264",
		"-profile:v", "high",
		"-level", "4.1",
		"-preset", "fast",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-movflags", "+faststart",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = 5 * time.Second

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", apperrors.TranscodeFailed("failed to attach to encoder output")
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", apperrors.TranscoderUnavailable()
		}
		return "", apperrors.TranscodeFailed(err.Error())
	}

	t.log.Info(ctx, "transcode started", map[string]interface{}{
		"input":    filepath.Base(inputPath),
		"duration": duration,
	})

	tail := t.monitor(stderr, duration, jobID, store)

	if err := cmd.Wait(); err != nil {
		os.Remove(outputPath)
		if ctx.Err() != nil {
			return "", apperrors.TranscodeFailed("encoding cancelled")
		}
		msg := strings.TrimSpace(tail)
		if msg == "" {
			msg = err.Error()
		}
		return "", apperrors.TranscodeFailed(msg)
	}

	// Keep only the compatibility output
	if err := os.Remove(inputPath); err != nil {
		t.log.Warn(ctx, "failed to remove pre-transcode file", map[string]interface{}{
			"path":  inputPath,
			"error": err.Error(),
		})
	}

	return outputPath, nil
}

// monitor scans ffmpeg's stderr, converting time= stamps into job
// progress while the job is still re-encoding. It returns the last
// lines of output for diagnostics.
func (t *Transcoder) monitor(stderr interface{ Read([]byte) (int, error) }, duration float64, jobID string, store *job.Store) string {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)
	scanner.Split(scanCRLines)

	var tail []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		tail = append(tail, line)
		if len(tail) > 8 {
			tail = tail[1:]
		}

		if duration <= 0 {
			continue
		}
		m := timePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		elapsed := parseClock(m[1], m[2], m[3])
		pct := elapsed / duration * 100
		if pct < 0 {
			pct = 0
		}
		if pct > transcodeProgressCap {
			pct = transcodeProgressCap
		}

		stop := false
		store.WithLock(jobID, func(j *job.Job) {
			if j.Status != job.StatusReencoding {
				stop = true
				return
			}
			if pct > j.Progress {
				j.Progress = pct
			}
		})
		if stop {
			break
		}
	}

	return strings.Join(tail, "\n")
}

// parseClock converts HH, MM, SS.frac components to seconds
func parseClock(hh, mm, ss string) float64 {
	h, _ := strconv.ParseFloat(hh, 64)
	m, _ := strconv.ParseFloat(mm, 64)
	s, _ := strconv.ParseFloat(ss, 64)
	return h*3600 + m*60 + s
}

// scanCRLines splits on \r as well as \n: ffmpeg rewrites its status
// line with carriage returns rather than emitting fresh lines.
func scanCRLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
