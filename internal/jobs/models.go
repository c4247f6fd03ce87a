// Package jobs persists export jobs and runs them in the background.
// A job is the durable record of one export request: queued by the API,
// picked up by the polling runner, settled exactly once.
package jobs

import (
	"time"

	"github.com/renderdeck/renderdeck-agent/internal/timeline"
)

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Job is the persisted state of one export.
type Job struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	Phase      string    `json:"phase"`
	Progress   int       `json:"progress"`
	Spec       Spec      `json:"spec"`
	OutputPath string    `json:"output_path"`
	Strategy   string    `json:"strategy,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Settled reports whether the job reached a terminal status.
func (j *Job) Settled() bool {
	return j.Status == StatusSucceeded || j.Status == StatusFailed
}

// Spec is the resolved export request stored with the job: the
// timeline snapshot plus output parameters. Assets are resolved at
// submission time so a later library change cannot alter a queued job.
type Spec struct {
	Timeline   timeline.Timeline `json:"timeline"`
	OutputPath string            `json:"output_path"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	Quality    string            `json:"quality"`
	Background string            `json:"background"`
}

// Update is one progress event published to subscribers.
type Update struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Phase    string `json:"phase"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
}
