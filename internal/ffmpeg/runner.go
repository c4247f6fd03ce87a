// Package ffmpeg provides subprocess-based execution of the external
// ffmpeg/ffprobe binaries with structured result parsing and progress
// streaming. The render engine treats ffmpeg as a correct black box: this
// package owns spawning, exit-code handling, and stderr capture, nothing
// about what the command graph means.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
)

// ErrBinaryNotFound marks a spawn failure: the configured engine binary
// could not be located or executed at all.
var ErrBinaryNotFound = errors.New("engine binary not found")

// RunResult is the structured outcome of executing an engine subprocess.
type RunResult struct {
	ExitCode   int           `json:"exit_code"`
	StderrTail string        `json:"stderr_tail,omitempty"` // last N bytes of stderr
	Duration   time.Duration `json:"duration"`
}

// IsSuccess returns true when the subprocess exited cleanly.
func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 }

// Runner executes engine commands. It is the single seam the render
// engine uses, so tests can substitute a fake without a real ffmpeg
// install.
type Runner interface {
	// Run executes ffmpeg with the given arguments and blocks until exit.
	Run(ctx context.Context, args ...string) RunResult

	// RunWithProgress executes ffmpeg with `-progress pipe:1` appended,
	// invoking onTick for every progress block the engine writes.
	RunWithProgress(ctx context.Context, onTick func(Tick), args ...string) RunResult

	// Probe inspects a media file's stream and container metadata.
	Probe(ctx context.Context, path string) (*ProbeResult, error)
}

// Config holds the runner's configuration.
type Config struct {
	FFmpegPath  string // path to ffmpeg binary; empty = PATH lookup
	FFprobePath string // path to ffprobe binary; empty = PATH lookup
	Logger      *slog.Logger
}

// CommandRunner is the production implementation of Runner.
type CommandRunner struct {
	ffmpeg  string // resolved ffmpeg path
	ffprobe string // resolved ffprobe path
	logger  *slog.Logger
}

// NewRunner creates a CommandRunner, resolving both binary paths up
// front so a missing install surfaces as one clear error instead of a
// mid-job spawn failure.
func NewRunner(cfg Config) (*CommandRunner, error) {
	ffmpegBin, err := resolveBinary(cfg.FFmpegPath, "ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBinaryNotFound, err)
	}
	ffprobeBin, err := resolveBinary(cfg.FFprobePath, "ffprobe")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBinaryNotFound, err)
	}

	cfg.Logger.Info("engine runner initialised", "ffmpeg", ffmpegBin, "ffprobe", ffprobeBin)

	return &CommandRunner{ffmpeg: ffmpegBin, ffprobe: ffprobeBin, logger: cfg.Logger}, nil
}

func (r *CommandRunner) Run(ctx context.Context, args ...string) RunResult {
	return r.exec(ctx, nil, args)
}

func (r *CommandRunner) RunWithProgress(ctx context.Context, onTick func(Tick), args ...string) RunResult {
	// Global options must come before the output path; ffmpeg ignores
	// trailing options after the last file argument.
	args = append([]string{"-progress", "pipe:1", "-nostats"}, args...)
	return r.exec(ctx, onTick, args)
}

// exec is the core subprocess execution helper.
func (r *CommandRunner) exec(ctx context.Context, onTick func(Tick), args []string) RunResult {
	start := time.Now()

	cmd := exec.CommandContext(ctx, r.ffmpeg, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}

	var stdout io.ReadCloser
	if onTick != nil {
		pipe, err := cmd.StdoutPipe()
		if err != nil {
			return RunResult{ExitCode: -1, StderrTail: err.Error(), Duration: time.Since(start)}
		}
		stdout = pipe
	} else {
		cmd.Stdout = io.Discard
	}

	r.logger.Debug("executing engine command", "args", args)

	if err := cmd.Start(); err != nil {
		return RunResult{ExitCode: -1, StderrTail: err.Error(), Duration: time.Since(start)}
	}

	if onTick != nil {
		// Progress blocks arrive on stdout; drain fully before Wait.
		ParseProgress(stdout, onTick)
	}

	err := cmd.Wait()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	stderrTail := stderrBuf.String()

	if exitCode != 0 {
		r.logger.Warn("engine command failed",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrTail, 512),
		)
	} else {
		r.logger.Debug("engine command succeeded", "duration_ms", elapsed.Milliseconds())
	}

	return RunResult{
		ExitCode:   exitCode,
		StderrTail: stderrTail,
		Duration:   elapsed,
	}
}

// resolveBinary finds a usable engine binary.
func resolveBinary(preferred, fallback string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured binary %q not found", preferred)
	}
	if p, err := exec.LookPath(fallback); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("no %s binary found on PATH", fallback)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
