package render

import (
	"fmt"
)

// The engine surfaces exactly one error per failed job. Three failure
// classes are fatal and short-circuit the orchestrator; probe failures
// and scratch cleanup failures are deliberately non-fatal and only
// logged.

// ValidationError reports a timeline that can never render. The job
// fails before any transcoding starts.
type ValidationError struct {
	Reason error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("timeline validation failed: %v", e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Reason }

// SpawnError reports that the external engine binary could not be
// started at all.
type SpawnError struct {
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("cannot start transcoding engine: %v", e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// EncodeError reports a non-zero exit from the external engine during
// normalization or the final encode. The first one aborts the job; no
// retries are attempted since engine failures are deterministic for the
// same inputs.
type EncodeError struct {
	Phase    string // "normalize" or "encode"
	ClipID   string // set for per-clip normalization failures
	ExitCode int
	Detail   string // stderr tail from the engine
}

func (e *EncodeError) Error() string {
	if e.ClipID != "" {
		return fmt.Sprintf("%s failed for clip %s (exit %d): %s", e.Phase, e.ClipID, e.ExitCode, e.Detail)
	}
	return fmt.Sprintf("%s failed (exit %d): %s", e.Phase, e.ExitCode, e.Detail)
}
