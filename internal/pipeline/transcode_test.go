package pipeline

import (
	"os"
	"strings"
	"testing"

	"github.com/mediagrab/backend/internal/job"
	"github.com/mediagrab/backend/internal/logger"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		hh, mm, ss string
		want       float64
	}{
		{"00", "00", "01.50", 1.5},
		{"00", "01", "30.00", 90},
		{"01", "00", "00.00", 3600},
	}
	for _, tt := range tests {
		if got := parseClock(tt.hh, tt.mm, tt.ss); got != tt.want {
			t.Errorf("parseClock(%s,%s,%s) = %v, want %v", tt.hh, tt.mm, tt.ss, got, tt.want)
		}
	}
}

func TestTimePattern(t *testing.T) {
	line := "frame=  240 fps= 48 q=28.0 size=    1024KiB time=00:01:15.04 bitrate=1398.1kbits/s speed=2.5x"
	m := timePattern.FindStringSubmatch(line)
	if m == nil {
		t.Fatal("expected time stamp to match")
	}
	if got := parseClock(m[1], m[2], m[3]); got != 75.04 {
		t.Errorf("expected 75.04 seconds, got %v", got)
	}

	if timePattern.MatchString("time=N/A bitrate=N/A") {
		t.Error("should not match N/A time stamps")
	}
}

func TestScanCRLines(t *testing.T) {
	input := "first\rsecond\nthird"
	var got []string
	advanceAll := func(data string) {
		rest := []byte(data)
		for len(rest) > 0 {
			adv, tok, _ := scanCRLines(rest, true)
			if adv == 0 {
				break
			}
			got = append(got, string(tok))
			rest = rest[adv:]
		}
	}
	advanceAll(input)
	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func newReencodingJob(store *job.Store, id string, progress float64) {
	j := job.New(id)
	j.Status = job.StatusReencoding
	j.Phase = job.PhaseTranscode
	j.Progress = progress
	store.Create(j)
}

func TestMonitor_UpdatesProgress(t *testing.T) {
	store := job.NewStore()
	newReencodingJob(store, "abc", 0)

	tr := NewTranscoder("ffmpeg", logger.New(os.Stderr, logger.LevelError, "test"))
	stderr := strings.NewReader(
		"frame=1 time=00:00:30.00 speed=2x\r" +
			"frame=2 time=00:01:00.00 speed=2x\r" +
			"frame=3 time=00:01:30.00 speed=2x\n",
	)

	tr.monitor(stderr, 100, "abc", store)

	j, _ := store.Get("abc")
	if j.Progress != 90 {
		t.Errorf("expected 90 after 90s of 100s, got %v", j.Progress)
	}
}

func TestMonitor_NeverRegresses(t *testing.T) {
	store := job.NewStore()
	newReencodingJob(store, "abc", 80)

	tr := NewTranscoder("ffmpeg", logger.New(os.Stderr, logger.LevelError, "test"))
	stderr := strings.NewReader("frame=1 time=00:00:10.00 speed=2x\n")

	tr.monitor(stderr, 100, "abc", store)

	j, _ := store.Get("abc")
	if j.Progress != 80 {
		t.Errorf("progress regressed to %v", j.Progress)
	}
}

func TestMonitor_ClampsNearCompletion(t *testing.T) {
	store := job.NewStore()
	newReencodingJob(store, "abc", 0)

	tr := NewTranscoder("ffmpeg", logger.New(os.Stderr, logger.LevelError, "test"))
	// Timestamp runs past the reported duration
	stderr := strings.NewReader("frame=1 time=00:05:00.00 speed=2x\n")

	tr.monitor(stderr, 100, "abc", store)

	j, _ := store.Get("abc")
	if j.Progress != transcodeProgressCap {
		t.Errorf("expected clamp at %v, got %v", transcodeProgressCap, j.Progress)
	}
}

func TestMonitor_StopsWhenStatusChanges(t *testing.T) {
	store := job.NewStore()
	j := job.New("abc")
	j.Status = job.StatusError
	j.Progress = 10
	store.Create(j)

	tr := NewTranscoder("ffmpeg", logger.New(os.Stderr, logger.LevelError, "test"))
	stderr := strings.NewReader("frame=1 time=00:00:50.00 speed=2x\n")

	tr.monitor(stderr, 100, "abc", store)

	got, _ := store.Get("abc")
	if got.Progress != 10 {
		t.Errorf("monitor wrote to a job that left re-encoding: %v", got.Progress)
	}
}

func TestMonitor_UnknownDuration(t *testing.T) {
	store := job.NewStore()
	newReencodingJob(store, "abc", 5)

	tr := NewTranscoder("ffmpeg", logger.New(os.Stderr, logger.LevelError, "test"))
	stderr := strings.NewReader("frame=1 time=00:00:50.00 speed=2x\n")

	tr.monitor(stderr, 0, "abc", store)

	j, _ := store.Get("abc")
	if j.Progress != 5 {
		t.Errorf("unknown duration should leave progress untouched, got %v", j.Progress)
	}
}

func TestMonitor_ReturnsTail(t *testing.T) {
	store := job.NewStore()
	newReencodingJob(store, "abc", 0)

	tr := NewTranscoder("ffmpeg", logger.New(os.Stderr, logger.LevelError, "test"))
	stderr := strings.NewReader("Error opening input\nConversion failed!\n")

	tail := tr.monitor(stderr, 0, "abc", store)
	if !strings.Contains(tail, "Conversion failed!") {
		t.Errorf("expected diagnostic tail, got %q", tail)
	}
}
