package render

import (
	"sync"
	"time"

	"github.com/renderdeck/renderdeck-agent/internal/ffmpeg"
)

// Phase is one stage of the export state machine.
type Phase string

const (
	PhaseCreated      Phase = "created"
	PhaseNormalizing  Phase = "normalizing"
	PhaseAnalyzing    Phase = "analyzing_strategy"
	PhaseSynthesizing Phase = "synthesizing"
	PhaseEncoding     Phase = "encoding"
	PhaseFinalizing   Phase = "finalizing"
	PhaseSucceeded    Phase = "succeeded"
	PhaseFailed       Phase = "failed"
)

// Fixed boundaries of the overall 0-100 progress scale. Each phase
// reports a fraction inside its own band.
const (
	progressNormalizeStart = 5
	progressNormalizeEnd   = 35
	progressSynthesizeEnd  = 40
	progressEncodeEnd      = 95
	progressComplete       = 100
)

// ProgressFunc receives overall progress updates. Values within one job
// are monotonic non-decreasing; 100 is reported exactly once, on
// success.
type ProgressFunc func(phase Phase, percent int)

// progressTracker clamps reported progress to be monotonic and fans it
// out to the job's callback. Callbacks may arrive from the normalize
// pool and the encode drain concurrently.
type progressTracker struct {
	mu      sync.Mutex
	last    int
	onEvent ProgressFunc
}

func newProgressTracker(onEvent ProgressFunc) *progressTracker {
	return &progressTracker{onEvent: onEvent}
}

// report emits an overall percentage, suppressing regressions.
func (t *progressTracker) report(phase Phase, percent int) {
	t.mu.Lock()
	if percent < t.last {
		percent = t.last
	}
	if percent > progressComplete {
		percent = progressComplete
	}
	t.last = percent
	fn := t.onEvent
	t.mu.Unlock()

	if fn != nil {
		fn(phase, percent)
	}
}

// band maps a fraction in [0,1] into [lo,hi] on the overall scale.
func band(lo, hi int, fraction float64) int {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return lo + int(fraction*float64(hi-lo))
}

// encodeEstimator derives encode-phase fractions from whichever signal
// the engine provides first: a native percent, then parsed elapsed
// output time against the known total, then a wall-clock heuristic
// capped short of completion so a stalled pipe never reports done.
type encodeEstimator struct {
	totalDuration float64
	startedAt     time.Time
	now           func() time.Time
}

func newEncodeEstimator(totalDuration float64) *encodeEstimator {
	est := &encodeEstimator{totalDuration: totalDuration, now: time.Now}
	est.startedAt = est.now()
	return est
}

const wallClockCap = 0.95

// fraction converts one progress tick into an encode-phase fraction.
func (e *encodeEstimator) fraction(tick ffmpeg.Tick) float64 {
	if tick.Percent >= 0 {
		return tick.Percent / 100
	}
	if tick.OutTime > 0 && e.totalDuration > 0 {
		return tick.OutTime / e.totalDuration
	}
	if e.totalDuration <= 0 {
		return 0
	}
	f := e.now().Sub(e.startedAt).Seconds() / e.totalDuration
	if f > wallClockCap {
		f = wallClockCap
	}
	return f
}
