package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/renderdeck/renderdeck-agent/internal/jobs"
	"github.com/renderdeck/renderdeck-agent/internal/render"
	"github.com/renderdeck/renderdeck-agent/internal/timeline"
)

func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if len(req.Tracks) == 0 {
			WriteError(w, http.StatusBadRequest, "tracks must not be empty", "BAD_REQUEST")
			return
		}
		if req.Resolution.Width <= 0 || req.Resolution.Height <= 0 {
			WriteError(w, http.StatusBadRequest, "target_resolution is required", "BAD_REQUEST")
			return
		}
		if !render.Quality(req.Quality).Valid() {
			WriteError(w, http.StatusBadRequest,
				fmt.Sprintf("quality must be one of high, medium, low: got %q", req.Quality), "BAD_REQUEST")
			return
		}
		if err := validateOutputPath(req.OutputPath); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		background := req.Background
		if background == "" {
			background = "#000000"
		}

		assets, err := resolveAssets(r, cfg, req)
		if err != nil {
			WriteError(w, http.StatusUnprocessableEntity, err.Error(), "UNRESOLVABLE_ASSETS")
			return
		}

		now := time.Now().UTC()
		job := &jobs.Job{
			ID:     uuid.NewString(),
			Status: jobs.StatusQueued,
			Phase:  string(render.PhaseCreated),
			Spec: jobs.Spec{
				Timeline:   timeline.Timeline{Tracks: req.Tracks, Assets: assets},
				OutputPath: req.OutputPath,
				Width:      req.Resolution.Width,
				Height:     req.Resolution.Height,
				Quality:    req.Quality,
				Background: background,
			},
			OutputPath: req.OutputPath,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		// Fail obviously broken timelines at submission instead of
		// letting them queue and die in the runner.
		if err := job.Spec.Timeline.Validate(); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_TIMELINE")
			return
		}

		if err := cfg.Jobs.CreateJob(r.Context(), job); err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to enqueue job", "INTERNAL_ERROR")
			return
		}
		if cfg.Runner != nil {
			cfg.Runner.Kick()
		}

		WriteJSON(w, http.StatusAccepted, ExportResponse{JobID: job.ID})
	}
}

// resolveAssets builds the timeline's asset snapshot: inline assets
// first, then library lookups for any clip reference not covered.
func resolveAssets(r *http.Request, cfg ServerConfig, req ExportRequest) (map[string]timeline.Asset, error) {
	assets := make(map[string]timeline.Asset, len(req.MediaAssets))
	for _, a := range req.MediaAssets {
		assets[a.ID] = a
	}

	var missing []string
	seen := map[string]bool{}
	for _, track := range req.Tracks {
		for _, clip := range track.Clips {
			if _, ok := assets[clip.AssetID]; ok || seen[clip.AssetID] {
				continue
			}
			seen[clip.AssetID] = true
			missing = append(missing, clip.AssetID)
		}
	}
	if len(missing) == 0 {
		return assets, nil
	}

	resolved, err := cfg.Library.Resolve(r.Context(), missing)
	if err != nil {
		return nil, err
	}
	for id, a := range resolved {
		assets[id] = a
	}
	return assets, nil
}

// validateOutputPath rejects paths the encoder would fail on only after
// a full render: relative paths, traversal, or a missing parent
// directory.
func validateOutputPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("output_path is required")
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("output_path must be absolute")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("output_path cannot contain path traversal")
		}
	}

	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("output directory %s does not exist", dir)
		}
		return fmt.Errorf("invalid output directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}
