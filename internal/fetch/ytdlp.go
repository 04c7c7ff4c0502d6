package fetch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/mediagrab/backend/internal/logger"
)

// progressPrefix marks progress lines emitted via --progress-template so
// they can be told apart from the tool's other stdout output.
const progressPrefix = "mgprog|"

// progressTemplate makes yt-dlp emit one parseable line per hook call.
// Missing fields render as "NA".
const progressTemplate = "download:" + progressPrefix +
	"%(progress.status)s|" +
	"%(progress.downloaded_bytes)s|" +
	"%(progress.total_bytes)s|" +
	"%(progress.total_bytes_estimate)s|" +
	"%(progress.fragment_index)s|" +
	"%(progress.fragment_count)s|" +
	"%(progress._percent_str)s|" +
	"%(progress.filename)s"

// YTDLP drives the yt-dlp binary as the external fetch mechanism
type YTDLP struct {
	path string
	log  *logger.Logger
}

// NewYTDLP creates a fetch service backed by the yt-dlp binary at path
func NewYTDLP(path string) *YTDLP {
	return &YTDLP{
		path: path,
		log:  logger.Default().WithComponent("ytdlp"),
	}
}

// Fetch downloads the media at url into the directory implied by the
// request's output template, streaming progress events to sink.
func (y *YTDLP) Fetch(ctx context.Context, url string, req Request, sink Sink) (*Result, error) {
	args := []string{
		"--newline",
		"--no-warnings",
		"--no-cache-dir",
		"--progress-template", progressTemplate,
		"--write-info-json",
		"-o", req.OutputTemplate,
	}
	if req.Selector != "" {
		args = append(args, "-f", req.Selector)
	}
	if req.MergeFormat != "" {
		args = append(args, "--merge-output-format", req.MergeFormat)
	}
	if req.AudioOnly {
		args = append(args, "-x", "--audio-format", req.AudioFormat)
		if req.AudioQuality != "" {
			args = append(args, "--audio-quality", req.AudioQuality)
		}
	}
	args = append(args, headerArgs(req.Headers)...)
	args = append(args, url)

	cmd := exec.CommandContext(ctx, y.path, args...)
	stderr := &tailWriter{limit: 8192}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, NewError(CategoryGeneric, "failed to open tool output", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, NewError(CategoryGeneric, "failed to start fetch tool", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ev, ok := parseProgressLine(scanner.Text()); ok && sink != nil {
			sink(ev)
		}
	}

	if err := cmd.Wait(); err != nil {
		tail := stderr.String()
		y.log.Warn(ctx, "fetch tool failed", map[string]interface{}{
			"url":    url,
			"stderr": tail,
		})
		return nil, NewError(Classify(tail), firstLine(tail), err)
	}

	dir := filepath.Dir(req.OutputTemplate)
	res, err := y.readInfoJSON(dir)
	if err != nil {
		// The download itself succeeded; callers fall back to
		// directory scanning when metadata is missing.
		y.log.Warn(ctx, "fetch finished but info JSON missing", map[string]interface{}{
			"dir": dir,
		})
		return nil, nil
	}
	return res, nil
}

// Probe returns metadata for url without downloading. Playlists resolve
// to their first entry.
func (y *YTDLP) Probe(ctx context.Context, url string) (*Result, error) {
	args := []string{
		"--dump-single-json",
		"--flat-playlist",
		"--playlist-items", "1",
		"--skip-download",
		"--no-warnings",
		"--no-cache-dir",
	}
	args = append(args, url)

	cmd := exec.CommandContext(ctx, y.path, args...)
	stderr := &tailWriter{limit: 8192}
	cmd.Stderr = stderr

	out, err := cmd.Output()
	if err != nil {
		tail := stderr.String()
		return nil, NewError(Classify(tail), firstLine(tail), err)
	}

	var info infoJSON
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, NewError(CategoryExtraction, "tool returned unparsable metadata", err)
	}
	if len(info.Entries) > 0 {
		return resultFromInfo(&info.Entries[0]), nil
	}
	return resultFromInfo(&info), nil
}

// readInfoJSON parses and removes the newest *.info.json in dir
func (y *YTDLP) readInfoJSON(dir string) (*Result, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.info.json"))
	if err != nil || len(matches) == 0 {
		return nil, fmt.Errorf("no info JSON in %s", dir)
	}
	sort.Slice(matches, func(i, j int) bool {
		fi, err1 := os.Stat(matches[i])
		fj, err2 := os.Stat(matches[j])
		if err1 != nil || err2 != nil {
			return matches[i] > matches[j]
		}
		return fi.ModTime().After(fj.ModTime())
	})

	data, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, err
	}

	var info infoJSON
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}

	// The sidecar has served its purpose; leaving it around would
	// confuse the output resolver's last-resort directory scan.
	for _, m := range matches {
		os.Remove(m)
	}

	return resultFromInfo(&info), nil
}

// infoJSON mirrors the subset of yt-dlp's info dict the core consumes
type infoJSON struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Uploader  string  `json:"uploader"`
	Channel   string  `json:"channel"`
	Thumbnail string  `json:"thumbnail"`
	Duration  float64 `json:"duration"`
	Format    string  `json:"format"`
	Filepath  string  `json:"filepath"`
	Filename  string  `json:"_filename"`

	RequestedFormats []struct {
		FormatID string `json:"format_id"`
	} `json:"requested_formats"`

	RequestedDownloads []struct {
		Filepath string `json:"filepath"`
		Filename string `json:"_filename"`
	} `json:"requested_downloads"`

	Entries []infoJSON `json:"entries"`
}

func resultFromInfo(info *infoJSON) *Result {
	res := &Result{
		ID:        info.ID,
		Title:     info.Title,
		Uploader:  info.Uploader,
		Thumbnail: info.Thumbnail,
		Duration:  info.Duration,
	}
	if res.Uploader == "" {
		res.Uploader = info.Channel
	}

	res.RequestedStreams = len(info.RequestedFormats)
	if res.RequestedStreams == 0 && info.Format != "" && !strings.Contains(info.Format, "+") {
		res.RequestedStreams = 1
	}

	for _, d := range info.RequestedDownloads {
		p := d.Filepath
		if p == "" {
			p = d.Filename
		}
		if p != "" {
			res.OutputPaths = append(res.OutputPaths, p)
		}
	}

	res.CombinedPath = info.Filepath
	if res.CombinedPath == "" {
		res.CombinedPath = info.Filename
	}

	for _, e := range info.Entries {
		p := e.Filepath
		if p == "" {
			p = e.Filename
		}
		res.Entries = append(res.Entries, Entry{Path: p})
	}

	return res
}

// parseProgressLine decodes one --progress-template line into an Event
func parseProgressLine(line string) (Event, bool) {
	if !strings.HasPrefix(line, progressPrefix) {
		return Event{}, false
	}
	parts := strings.Split(strings.TrimPrefix(line, progressPrefix), "|")
	if len(parts) < 8 {
		return Event{}, false
	}

	kind := EventKind(parts[0])
	switch kind {
	case EventDownloading, EventFinished, EventError:
	default:
		return Event{}, false
	}

	ev := Event{Kind: kind}
	ev.DownloadedBytes = parseTemplateInt(parts[1])
	ev.TotalBytes = parseTemplateInt(parts[2])
	if ev.TotalBytes == 0 {
		ev.TotalBytes = parseTemplateInt(parts[3])
	}
	ev.FragmentIndex = int(parseTemplateInt(parts[4]))
	ev.FragmentCount = int(parseTemplateInt(parts[5]))
	ev.PercentText = templateString(parts[6])
	// The filename is the last field and may itself contain separators
	ev.Filename = templateString(strings.Join(parts[7:], "|"))

	return ev, true
}

func parseTemplateInt(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "NA" {
		return 0
	}
	// yt-dlp renders some byte counts as floats
	if v, err := strconv.ParseFloat(s, 64); err == nil && v > 0 {
		return int64(v)
	}
	return 0
}

func templateString(s string) string {
	s = strings.TrimSpace(s)
	if s == "NA" {
		return ""
	}
	return s
}

func headerArgs(headers map[string]string) []string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var args []string
	for _, k := range keys {
		args = append(args, "--add-header", k+":"+headers[k])
	}
	return args
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return "fetch tool failed"
	}
	return s
}

// tailWriter keeps only the trailing portion of what is written to it
type tailWriter struct {
	buf   bytes.Buffer
	limit int
}

func (t *tailWriter) Write(p []byte) (int, error) {
	t.buf.Write(p)
	if t.buf.Len() > t.limit {
		trimmed := t.buf.Bytes()[t.buf.Len()-t.limit:]
		var nb bytes.Buffer
		nb.Write(trimmed)
		t.buf = nb
	}
	return len(p), nil
}

func (t *tailWriter) String() string {
	return t.buf.String()
}
