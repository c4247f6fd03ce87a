package api

import (
	"time"

	"github.com/renderdeck/renderdeck-agent/internal/jobs"
	"github.com/renderdeck/renderdeck-agent/internal/library"
	"github.com/renderdeck/renderdeck-agent/internal/timeline"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State       string       `json:"state"` // idle, exporting, error
	LastError   string       `json:"last_error,omitempty"`
	AssetsCount int          `json:"assets_count"`
	JobsRunning int          `json:"jobs_running"`
	ActiveJob   *JobResponse `json:"active_job,omitempty"`
}

type RegisterAssetRequest struct {
	Path string `json:"path"`
}

type AssetResponse struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind"`
	Path      string  `json:"path"`
	Duration  float64 `json:"duration"`
	Width     int     `json:"width,omitempty"`
	Height    int     `json:"height,omitempty"`
	Size      int64   `json:"size"`
	CreatedAt string  `json:"created_at"`
}

type AssetsResponse struct {
	Assets []AssetResponse `json:"assets"`
}

// ExportRequest is the job submission contract. Assets may be supplied
// inline or resolved from the library by the IDs the clips reference;
// inline entries win when both are present.
type ExportRequest struct {
	Tracks      []timeline.Track `json:"tracks"`
	MediaAssets []timeline.Asset `json:"media_assets,omitempty"`
	OutputPath  string           `json:"output_path"`
	Resolution  ResolutionSpec   `json:"target_resolution"`
	Quality     string           `json:"quality"`
	Background  string           `json:"canvas_background_color"`
}

type ResolutionSpec struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type ExportResponse struct {
	JobID string `json:"job_id"`
}

type JobResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Phase      string `json:"phase"`
	Progress   int    `json:"progress"`
	OutputPath string `json:"output_path"`
	Strategy   string `json:"strategy,omitempty"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func AssetToResponse(a *library.Asset) AssetResponse {
	return AssetResponse{
		ID:        a.ID,
		Kind:      a.Kind,
		Path:      a.Path,
		Duration:  a.Duration,
		Width:     a.Width,
		Height:    a.Height,
		Size:      a.Size,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

func JobToResponse(j *jobs.Job) JobResponse {
	return JobResponse{
		ID:         j.ID,
		Status:     j.Status,
		Phase:      j.Phase,
		Progress:   j.Progress,
		OutputPath: j.OutputPath,
		Strategy:   j.Strategy,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  j.UpdatedAt.Format(time.RFC3339),
	}
}
