package job

import (
	"fmt"
	"strconv"
	"strings"
)

// Resolution bounds for mp4_<res> format specs. Values outside the
// range are clamped rather than rejected.
const (
	minResolution     = 144
	maxResolution     = 4320
	defaultResolution = 720
)

// FormatSpec is the parsed form of a client-supplied format string,
// carrying everything the fetch layer needs to request it.
type FormatSpec struct {
	Name         string
	Selector     string
	AudioOnly    bool
	AudioFormat  string
	AudioQuality string
	MergeFormat  string
	Ext          string
}

// ParseFormatSpec parses a format string into a FormatSpec.
//
// Accepted values:
//
//	default     - best available video+audio merged into mp4
//	mp3_high    - audio only, mp3 at 192K
//	mp3_medium  - audio only, mp3 at 128K
//	mp4_<res>   - video capped at <res> vertical pixels, merged mp4
//
// An mp4 resolution outside [144, 4320] is clamped to the nearest
// bound; an unparsable resolution falls back to 720.
func ParseFormatSpec(format string) (FormatSpec, error) {
	switch {
	case format == "" || format == "default":
		return FormatSpec{
			Name:        "default",
			Selector:    "bestvideo+bestaudio/best",
			MergeFormat: "mp4",
			Ext:         "mp4",
		}, nil
	case format == "mp3_high":
		return FormatSpec{
			Name:         format,
			Selector:     "bestaudio/best",
			AudioOnly:    true,
			AudioFormat:  "mp3",
			AudioQuality: "192K",
			Ext:          "mp3",
		}, nil
	case format == "mp3_medium":
		return FormatSpec{
			Name:         format,
			Selector:     "bestaudio/best",
			AudioOnly:    true,
			AudioFormat:  "mp3",
			AudioQuality: "128K",
			Ext:          "mp3",
		}, nil
	case strings.HasPrefix(format, "mp4_"):
		res := parseResolution(strings.TrimPrefix(format, "mp4_"))
		return FormatSpec{
			Name:        format,
			Selector:    fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]", res, res),
			MergeFormat: "mp4",
			Ext:         "mp4",
		}, nil
	default:
		return FormatSpec{}, fmt.Errorf("unknown format %q", format)
	}
}

func parseResolution(s string) int {
	res, err := strconv.Atoi(s)
	if err != nil {
		return defaultResolution
	}
	if res < minResolution {
		return minResolution
	}
	if res > maxResolution {
		return maxResolution
	}
	return res
}
