package source

import (
	"testing"

	"github.com/mediagrab/backend/internal/job"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		url  string
		want Type
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", TypeYouTube},
		{"https://youtube.com/watch?v=dQw4w9WgXcQ", TypeYouTube},
		{"https://youtu.be/dQw4w9WgXcQ", TypeYouTube},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ", TypeYouTube},
		{"https://music.youtube.com/watch?v=abc", TypeYouTube},
		{"https://vimeo.com/12345", TypeGeneric},
		{"https://soundcloud.com/artist/track", TypeGeneric},
		{"https://notyoutube.com/watch", TypeGeneric},
		{"://broken", TypeGeneric},
	}
	for _, tt := range tests {
		if got := Detect(tt.url); got != tt.want {
			t.Errorf("Detect(%q) = %s, want %s", tt.url, got, tt.want)
		}
	}
}

func TestFormats_YouTube(t *testing.T) {
	formats := Formats(TypeYouTube)

	var video, audio int
	for _, f := range formats {
		switch f.Kind {
		case "video":
			video++
		case "audio":
			audio++
		}
	}
	if video != 4 {
		t.Errorf("expected 4 video renditions, got %d", video)
	}
	if audio != 2 {
		t.Errorf("expected 2 audio renditions, got %d", audio)
	}
}

func TestFormats_Generic(t *testing.T) {
	formats := Formats(TypeGeneric)

	if formats[0].ID != "default" {
		t.Errorf("expected default video option first, got %s", formats[0].ID)
	}
	for _, f := range formats {
		if f.ID == "mp4_720" {
			t.Error("generic sources should not offer a fixed resolution ladder")
		}
	}
}

func TestFormats_AllParseable(t *testing.T) {
	// Every advertised format id must round-trip through the format
	// grammar used when a download is requested.
	for _, typ := range []Type{TypeYouTube, TypeGeneric} {
		for _, f := range Formats(typ) {
			if _, err := job.ParseFormatSpec(f.ID); err != nil {
				t.Errorf("%s: advertised format %q is not requestable: %v", typ, f.ID, err)
			}
		}
	}
}
