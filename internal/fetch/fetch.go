package fetch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// EventKind identifies the type of a progress event
type EventKind string

const (
	EventDownloading EventKind = "downloading"
	EventFinished    EventKind = "finished"
	EventError       EventKind = "error"
)

// Event is a single progress report emitted during a fetch.
// Numeric fields are zero when the underlying tool did not report them.
type Event struct {
	Kind            EventKind
	DownloadedBytes int64
	TotalBytes      int64
	FragmentIndex   int
	FragmentCount   int
	PercentText     string
	Filename        string
	Message         string
}

// Percent derives a completion percentage from the event, trying byte
// counts first, then fragment counts, then the tool's own percent text.
func (e Event) Percent() (float64, bool) {
	if e.TotalBytes > 0 {
		return float64(e.DownloadedBytes) / float64(e.TotalBytes) * 100, true
	}
	if e.FragmentCount > 0 {
		return float64(e.FragmentIndex) / float64(e.FragmentCount) * 100, true
	}
	if e.PercentText != "" {
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(e.PercentText), "%"))
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

// Sink receives progress events during a fetch
type Sink func(Event)

// Entry is one item of a multi-entry fetch result (e.g. a playlist item)
type Entry struct {
	Path string
}

// Result describes a completed fetch or a metadata probe
type Result struct {
	ID        string
	Title     string
	Uploader  string
	Thumbnail string
	Duration  float64 // seconds, 0 when unknown

	// RequestedStreams is the number of independently requested streams
	// (e.g. separate video and audio). Zero when the tool reported nothing.
	RequestedStreams int

	// Candidate output locations, in resolution priority order
	OutputPaths  []string
	CombinedPath string
	Entries      []Entry
}

// Request describes what to fetch and how
type Request struct {
	Selector       string // format selector passed to the tool
	OutputTemplate string
	MergeFormat    string // container for merged streams, empty to skip
	AudioOnly      bool
	AudioFormat    string // e.g. "mp3"
	AudioQuality   string // e.g. "192K"
	Headers        map[string]string
}

// Service performs media retrieval and metadata lookups
type Service interface {
	// Fetch retrieves the media at url, streaming progress events to sink.
	// The returned error, if any, is an *Error with a stable category.
	Fetch(ctx context.Context, url string, req Request, sink Sink) (*Result, error)

	// Probe returns metadata for url without downloading anything
	Probe(ctx context.Context, url string) (*Result, error)
}

// Category classifies fetch failures into a stable contract the rest of
// the system can rely on, independent of the external tool's wording.
type Category string

const (
	CategoryUnsupportedURL Category = "unsupported_url"
	CategoryUnavailable    Category = "unavailable"
	CategoryExtraction     Category = "extraction"
	CategoryGeneric        Category = "generic"
)

// Error is a categorized fetch failure
type Error struct {
	Category Category
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.Category, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch %s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a categorized fetch error
func NewError(category Category, message string, cause error) *Error {
	return &Error{Category: category, Message: message, Cause: cause}
}

// Classify maps the external tool's diagnostic output to a stable
// category. Substring inspection is confined to this single boundary.
func Classify(output string) Category {
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "unsupported url"):
		return CategoryUnsupportedURL
	case strings.Contains(lower, "private video"),
		strings.Contains(lower, "video unavailable"),
		strings.Contains(lower, "content isn't available"),
		strings.Contains(lower, "members-only"):
		return CategoryUnavailable
	case strings.Contains(lower, "unable to extract"):
		return CategoryExtraction
	default:
		return CategoryGeneric
	}
}
