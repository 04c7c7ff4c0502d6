package job

import (
	"fmt"
	"testing"
)

func TestParseFormatSpec_Default(t *testing.T) {
	for _, in := range []string{"", "default"} {
		spec, err := ParseFormatSpec(in)
		if err != nil {
			t.Fatalf("ParseFormatSpec(%q) returned error: %v", in, err)
		}
		if spec.Selector != "bestvideo+bestaudio/best" {
			t.Errorf("unexpected selector %q", spec.Selector)
		}
		if spec.AudioOnly {
			t.Error("default should not be audio-only")
		}
		if spec.MergeFormat != "mp4" || spec.Ext != "mp4" {
			t.Errorf("expected mp4 merge/ext, got %q/%q", spec.MergeFormat, spec.Ext)
		}
	}
}

func TestParseFormatSpec_Audio(t *testing.T) {
	tests := []struct {
		format  string
		quality string
	}{
		{"mp3_high", "192K"},
		{"mp3_medium", "128K"},
	}
	for _, tt := range tests {
		spec, err := ParseFormatSpec(tt.format)
		if err != nil {
			t.Fatalf("ParseFormatSpec(%q) returned error: %v", tt.format, err)
		}
		if !spec.AudioOnly {
			t.Errorf("%s: expected audio-only", tt.format)
		}
		if spec.AudioQuality != tt.quality {
			t.Errorf("%s: expected quality %s, got %s", tt.format, tt.quality, spec.AudioQuality)
		}
		if spec.AudioFormat != "mp3" || spec.Ext != "mp3" {
			t.Errorf("%s: expected mp3 format/ext", tt.format)
		}
		if spec.MergeFormat != "" {
			t.Errorf("%s: audio formats should not request a merge container", tt.format)
		}
	}
}

func TestParseFormatSpec_Video(t *testing.T) {
	tests := []struct {
		format  string
		wantRes int
	}{
		{"mp4_1080", 1080},
		{"mp4_720", 720},
		{"mp4_100", 144},    // clamped up
		{"mp4_9999", 4320},  // clamped down
		{"mp4_potato", 720}, // unparsable falls back
	}
	for _, tt := range tests {
		spec, err := ParseFormatSpec(tt.format)
		if err != nil {
			t.Fatalf("ParseFormatSpec(%q) returned error: %v", tt.format, err)
		}
		want := fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]", tt.wantRes, tt.wantRes)
		if spec.Selector != want {
			t.Errorf("%s: expected selector %q, got %q", tt.format, want, spec.Selector)
		}
		if spec.AudioOnly || spec.Ext != "mp4" {
			t.Errorf("%s: expected video mp4 spec", tt.format)
		}
	}
}

func TestParseFormatSpec_Unknown(t *testing.T) {
	for _, in := range []string{"flac", "webm_720", "mp3"} {
		if _, err := ParseFormatSpec(in); err == nil {
			t.Errorf("ParseFormatSpec(%q) should fail", in)
		}
	}
}
