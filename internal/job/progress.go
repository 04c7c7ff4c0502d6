package job

import "github.com/mediagrab/backend/internal/fetch"

// Overall progress caps. Progress only reaches 100 on the final
// completion write, never from raw fetch events.
const (
	phaseOneCap  = 49.9
	phaseTwoCap  = 49.0
	downloadCap  = 99.8
	finishedMark = 99.0
)

// ApplyFetchEvent folds one raw fetch event into the job record.
// Progress is monotonic: every write takes the max of the current
// value and the newly derived one. Events arriving after the job has
// reached a terminal state are dropped.
//
// Phase transitions on "finished" edges are heuristic: the true
// stream count is unknown until the fetch completes, so the 1->2 and
// 2->3 transitions are marked provisional and reconciled later by
// CorrectStreamCount.
func (j *Job) ApplyFetchEvent(ev fetch.Event) {
	if j.IsTerminal() {
		return
	}

	switch ev.Kind {
	case fetch.EventError:
		j.Status = StatusError
		j.Phase = PhaseAborted
		j.Progress = 0
		if ev.Message != "" {
			j.Error = ev.Message
		} else {
			j.Error = "download failed"
		}

	case fetch.EventDownloading:
		if ev.Filename != "" {
			j.Filename = ev.Filename
		}
		if j.Status == StatusStarting || j.Status == StatusProcessingPart1 {
			j.Status = StatusDownloading
		}
		if j.Status == StatusDownloading {
			if pct, ok := ev.Percent(); ok {
				j.bump(scaleForPhase(j.Phase, pct))
			}
			switch j.Phase {
			case PhaseStreamOne:
				j.InfoText = "Downloading video stream..."
			case PhaseStreamTwo:
				j.InfoText = "Downloading audio stream..."
			}
		}

	case fetch.EventFinished:
		// The heuristic stream transitions only fire on a finished
		// edge that directly follows a downloading event. A finished
		// with no download before it (an already-cached file, a
		// repeated finished line) must not walk the phases forward.
		afterDownload := j.LastEventKind == fetch.EventDownloading

		switch {
		case j.Phase == PhaseStreamOne && afterDownload:
			// First stream done. Assume a second stream follows;
			// corrected afterwards if the download was single-stream.
			j.Phase = PhaseStreamTwo
			j.Provisional = true
			j.Status = StatusProcessingPart1
			j.InfoText = "Processing first stream..."
			j.bump(50.0)
		case j.Phase == PhaseStreamTwo && afterDownload:
			j.Phase = PhaseMerge
			j.Provisional = true
			j.Status = StatusProcessing
			j.InfoText = "Processing..."
			j.bump(finishedMark)
		case j.Phase >= PhaseMerge:
			j.Status = StatusProcessing
			j.InfoText = "Processing..."
			j.bump(finishedMark)
		}
	}

	j.LastEventKind = ev.Kind
}

// CorrectStreamCount reconciles the heuristic phase transitions once
// the fetch has reported how many streams it actually requested. The
// fetch is over at this point, so any job still in a stream phase is
// forced into the merge phase regardless of which finished edges were
// observed: a single-stream download lands on exactly 99.0 (its 50%
// split was wrong), a multi-stream download keeps whatever it already
// reached, floored at 99.0.
func (j *Job) CorrectStreamCount(streams int, audioOnly bool) {
	if j.IsTerminal() {
		return
	}
	if audioOnly {
		j.Provisional = false
		return
	}
	if j.Phase < PhaseMerge {
		j.Phase = PhaseMerge
		j.Status = StatusProcessing
		j.InfoText = "Processing..."
		if streams <= 1 {
			j.Progress = finishedMark
		} else {
			j.bump(finishedMark)
		}
	}
	j.Provisional = false
}

// bump raises progress to v if v is greater, respecting the overall
// pre-completion cap.
func (j *Job) bump(v float64) {
	if v > downloadCap {
		v = downloadCap
	}
	if v > j.Progress {
		j.Progress = v
	}
}

// scaleForPhase maps a raw 0-100 stream percentage onto the overall
// progress scale for the given phase.
func scaleForPhase(phase int, pct float64) float64 {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	switch phase {
	case PhaseStreamOne:
		v := pct * 0.5
		if v > phaseOneCap {
			v = phaseOneCap
		}
		return v
	case PhaseStreamTwo:
		v := pct * 0.49
		if v > phaseTwoCap {
			v = phaseTwoCap
		}
		return 50.0 + v
	default:
		if pct > downloadCap {
			return downloadCap
		}
		return pct
	}
}
