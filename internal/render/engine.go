// Package render implements the export engine: it converts a declarative
// timeline into normalized intermediate segments and a composition
// invocation for the external engine, while owning the job's phase
// lifecycle, progress mapping, and scratch cleanup.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/renderdeck/renderdeck-agent/internal/ffmpeg"
	"github.com/renderdeck/renderdeck-agent/internal/timeline"
)

// Request describes one export job.
type Request struct {
	JobID      string // empty = generated
	Timeline   timeline.Timeline
	OutputPath string
	Width      int
	Height     int
	Quality    Quality
	Background string // #RRGGBB canvas fill
	OnProgress ProgressFunc
}

// Result summarizes a completed export.
type Result struct {
	JobID      string
	OutputPath string
	Strategy   Strategy
	Duration   float64 // rendered timeline seconds
	Elapsed    time.Duration
}

// Engine runs export jobs. One Engine serves many jobs; each job owns
// its scratch directory exclusively.
type Engine struct {
	runner      ffmpeg.Runner
	logger      *slog.Logger
	scratchRoot string
	frameRate   int
	workers     int
}

// EngineConfig holds the engine's construction parameters.
type EngineConfig struct {
	Runner      ffmpeg.Runner
	Logger      *slog.Logger
	ScratchRoot string
	FrameRate   int
	Workers     int
}

func NewEngine(cfg EngineConfig) *Engine {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	fps := cfg.FrameRate
	if fps < 1 {
		fps = 30
	}
	return &Engine{
		runner:      cfg.Runner,
		logger:      cfg.Logger,
		scratchRoot: cfg.ScratchRoot,
		frameRate:   fps,
		workers:     workers,
	}
}

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Export runs one job to completion. The scratch directory is deleted
// on every path out, and a failed encode never leaves a partial output
// file behind. Progress reaches exactly 100 only on success.
func (e *Engine) Export(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}
	logger := e.logger.With("job_id", req.JobID)
	tracker := newProgressTracker(req.OnProgress)

	if err := validateRequest(req); err != nil {
		tracker.report(PhaseFailed, 0)
		return nil, err
	}

	tracker.report(PhaseCreated, 0)

	scratch, err := NewScratch(e.scratchRoot, req.JobID, logger)
	if err != nil {
		tracker.report(PhaseFailed, 0)
		return nil, &SpawnError{Err: fmt.Errorf("creating scratch dir: %w", err)}
	}
	defer scratch.Destroy()

	totalDuration := req.Timeline.Duration()
	logger.Info("export started",
		"output", req.OutputPath,
		"resolution", fmt.Sprintf("%dx%d", req.Width, req.Height),
		"quality", req.Quality,
		"duration_s", totalDuration,
	)

	tracker.report(PhaseNormalizing, progressNormalizeStart)
	segments, err := e.normalizeAll(ctx, req.Timeline, scratch, func(done, total int) {
		frac := float64(done) / float64(total)
		tracker.report(PhaseNormalizing, band(progressNormalizeStart, progressNormalizeEnd, frac))
	})
	if err != nil {
		tracker.report(PhaseFailed, 0)
		return nil, err
	}

	tracker.report(PhaseAnalyzing, progressNormalizeEnd)
	strategy := SelectStrategy(req.Timeline, req.Timeline.VisibleClips())
	logger.Info("composition strategy selected", "strategy", strategy, "segments", len(segments))

	tracker.report(PhaseSynthesizing, progressNormalizeEnd)
	opts := planOptions{
		Width:      req.Width,
		Height:     req.Height,
		FrameRate:  e.frameRate,
		Quality:    req.Quality,
		Background: req.Background,
		Duration:   totalDuration,
		OutputPath: req.OutputPath,
	}

	var args []string
	switch strategy {
	case StrategyConcat:
		args, err = buildConcatPlan(segments, scratch, opts)
	default:
		args, err = buildOverlayPlan(segments, opts)
	}
	if err != nil {
		tracker.report(PhaseFailed, 0)
		return nil, &ValidationError{Reason: err}
	}

	tracker.report(PhaseEncoding, progressSynthesizeEnd)
	est := newEncodeEstimator(totalDuration)
	result := e.runner.RunWithProgress(ctx, func(tick ffmpeg.Tick) {
		tracker.report(PhaseEncoding, band(progressSynthesizeEnd, progressEncodeEnd, est.fraction(tick)))
	}, args...)

	if !result.IsSuccess() {
		e.removePartialOutput(req.OutputPath, logger)
		tracker.report(PhaseFailed, 0)
		if result.ExitCode == -1 {
			return nil, &SpawnError{Err: fmt.Errorf("engine invocation failed: %s", result.StderrTail)}
		}
		return nil, &EncodeError{
			Phase:    string(PhaseEncoding),
			ExitCode: result.ExitCode,
			Detail:   result.StderrTail,
		}
	}

	tracker.report(PhaseFinalizing, progressEncodeEnd)
	if _, err := os.Stat(req.OutputPath); err != nil {
		tracker.report(PhaseFailed, 0)
		return nil, &EncodeError{
			Phase:  string(PhaseFinalizing),
			Detail: fmt.Sprintf("output file missing after encode: %v", err),
		}
	}

	tracker.report(PhaseSucceeded, progressComplete)
	elapsed := time.Since(start)
	logger.Info("export finished",
		"strategy", strategy,
		"elapsed_ms", elapsed.Milliseconds(),
	)

	return &Result{
		JobID:      req.JobID,
		OutputPath: req.OutputPath,
		Strategy:   strategy,
		Duration:   totalDuration,
		Elapsed:    elapsed,
	}, nil
}

// removePartialOutput deletes whatever the failed encode wrote. A
// half-finished render must never masquerade as a finished one.
func (e *Engine) removePartialOutput(path string, logger *slog.Logger) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("could not remove partial output", "path", path, "error", err)
	}
}

func validateRequest(req Request) error {
	if req.OutputPath == "" {
		return &ValidationError{Reason: fmt.Errorf("output path is required")}
	}
	if !filepath.IsAbs(req.OutputPath) {
		return &ValidationError{Reason: fmt.Errorf("output path must be absolute")}
	}
	if req.Width <= 0 || req.Height <= 0 {
		return &ValidationError{Reason: fmt.Errorf("target resolution %dx%d is invalid", req.Width, req.Height)}
	}
	if !req.Quality.Valid() {
		return &ValidationError{Reason: fmt.Errorf("unknown quality tier %q", req.Quality)}
	}
	if !colorPattern.MatchString(req.Background) {
		return &ValidationError{Reason: fmt.Errorf("canvas background %q is not #RRGGBB", req.Background)}
	}
	if err := req.Timeline.Validate(); err != nil {
		return &ValidationError{Reason: err}
	}
	return nil
}
