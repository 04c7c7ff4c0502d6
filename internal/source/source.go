package source

import (
	"net/url"
	"strings"
)

// Type identifies the platform a media URL belongs to
type Type string

const (
	TypeYouTube Type = "youtube"
	TypeGeneric Type = "generic"
)

// Format describes one downloadable rendition offered for a source
type Format struct {
	ID    string
	Label string
	Kind  string // "video" or "audio"
}

// Detect classifies a media URL by hosting platform. Unknown or
// unparsable URLs classify as generic; the fetch tool decides later
// whether it can actually handle them.
func Detect(rawURL string) Type {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return TypeGeneric
	}

	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")

	if host == "youtube.com" || host == "youtu.be" || host == "music.youtube.com" {
		return TypeYouTube
	}
	return TypeGeneric
}

var audioFormats = []Format{
	{ID: "mp3_high", Label: "MP3 192kbps", Kind: "audio"},
	{ID: "mp3_medium", Label: "MP3 128kbps", Kind: "audio"},
}

// Formats returns the download options offered for a source type.
// Platforms with predictable rendition ladders get resolution
// choices; everything else gets the generic best-quality option.
func Formats(t Type) []Format {
	switch t {
	case TypeYouTube:
		return append([]Format{
			{ID: "mp4_1080", Label: "MP4 1080p", Kind: "video"},
			{ID: "mp4_720", Label: "MP4 720p", Kind: "video"},
			{ID: "mp4_480", Label: "MP4 480p", Kind: "video"},
			{ID: "mp4_360", Label: "MP4 360p", Kind: "video"},
		}, audioFormats...)
	default:
		return append([]Format{
			{ID: "default", Label: "Best available", Kind: "video"},
		}, audioFormats...)
	}
}
