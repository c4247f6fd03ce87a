package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/renderdeck/renderdeck-agent/internal/jobs"
	"github.com/renderdeck/renderdeck-agent/internal/library"
	"github.com/renderdeck/renderdeck-agent/internal/timeline"
)

func validExportRequest(t *testing.T) ExportRequest {
	t.Helper()
	return ExportRequest{
		Tracks: []timeline.Track{{
			ID: "t1", Order: 0, Visible: true,
			Clips: []timeline.Clip{{
				ID: "c1", AssetID: "a1", StartTime: 0, Duration: 5, Speed: 1, Volume: 1,
			}},
		}},
		MediaAssets: []timeline.Asset{{
			ID: "a1", Kind: timeline.AssetVideo, Path: "/media/a.mp4", Duration: 10,
		}},
		OutputPath: filepath.Join(t.TempDir(), "final.mp4"),
		Resolution: ResolutionSpec{Width: 1920, Height: 1080},
		Quality:    "high",
		Background: "#112233",
	}
}

func TestExport_EnqueuesJob(t *testing.T) {
	env := newTestEnv(t, "")
	req := validExportRequest(t)

	rec := env.request(t, http.MethodPost, "/export", "", req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp ExportResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.JobID == "" {
		t.Fatal("no job id returned")
	}

	job := env.jobRepo.jobs[resp.JobID]
	if job == nil {
		t.Fatal("job not persisted")
	}
	if job.Status != jobs.StatusQueued {
		t.Errorf("status = %s, want queued", job.Status)
	}
	if job.Spec.Quality != "high" || job.Spec.Width != 1920 {
		t.Errorf("spec = %+v", job.Spec)
	}
	if _, ok := job.Spec.Timeline.Assets["a1"]; !ok {
		t.Error("inline asset not snapshotted")
	}
}

func TestExport_ResolvesLibraryAssets(t *testing.T) {
	env := newTestEnv(t, "")
	env.assets.assets["a1"] = &library.Asset{
		ID: "a1", Kind: "video", Path: "/media/a.mp4", Duration: 10,
	}

	req := validExportRequest(t)
	req.MediaAssets = nil

	rec := env.request(t, http.MethodPost, "/export", "", req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp ExportResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	job := env.jobRepo.jobs[resp.JobID]
	if job.Spec.Timeline.Assets["a1"].Path != "/media/a.mp4" {
		t.Errorf("library asset not resolved: %+v", job.Spec.Timeline.Assets)
	}
}

func TestExport_UnknownAssetRejected(t *testing.T) {
	env := newTestEnv(t, "")
	req := validExportRequest(t)
	req.MediaAssets = nil

	rec := env.request(t, http.MethodPost, "/export", "", req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 (body %s)", rec.Code, rec.Body)
	}
}

func TestExport_DefaultsBackground(t *testing.T) {
	env := newTestEnv(t, "")
	req := validExportRequest(t)
	req.Background = ""

	rec := env.request(t, http.MethodPost, "/export", "", req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp ExportResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if got := env.jobRepo.jobs[resp.JobID].Spec.Background; got != "#000000" {
		t.Errorf("background = %q, want #000000", got)
	}
}

func TestExport_BadRequests(t *testing.T) {
	env := newTestEnv(t, "")

	tests := []struct {
		name   string
		mutate func(*ExportRequest)
		want   int
	}{
		{"no tracks", func(r *ExportRequest) { r.Tracks = nil }, http.StatusBadRequest},
		{"zero resolution", func(r *ExportRequest) { r.Resolution.Width = 0 }, http.StatusBadRequest},
		{"bad quality", func(r *ExportRequest) { r.Quality = "ultra" }, http.StatusBadRequest},
		{"relative output", func(r *ExportRequest) { r.OutputPath = "out.mp4" }, http.StatusBadRequest},
		{"traversal output", func(r *ExportRequest) { r.OutputPath = "/tmp/../../etc/out.mp4" }, http.StatusBadRequest},
		{"missing output dir", func(r *ExportRequest) { r.OutputPath = "/does/not/exist/out.mp4" }, http.StatusBadRequest},
		{"invalid clip", func(r *ExportRequest) { r.Tracks[0].Clips[0].Duration = -1 }, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validExportRequest(t)
			tt.mutate(&req)
			rec := env.request(t, http.MethodPost, "/export", "", req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}
