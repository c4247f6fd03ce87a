package render

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/renderdeck/renderdeck-agent/internal/ffmpeg"
	"github.com/renderdeck/renderdeck-agent/internal/timeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeRunner simulates the external engine: runs succeed by creating
// the output file named by the last argument, and probes answer from a
// canned table.
type fakeRunner struct {
	mu   sync.Mutex
	runs [][]string

	failNormalize bool
	failEncode    bool
	writeBeforeFail bool
	probeErr      error
	probeAudio    bool
	ticks         []ffmpeg.Tick
}

func (f *fakeRunner) record(args []string) {
	f.mu.Lock()
	f.runs = append(f.runs, append([]string(nil), args...))
	f.mu.Unlock()
}

func (f *fakeRunner) Run(ctx context.Context, args ...string) ffmpeg.RunResult {
	f.record(args)
	if ctx.Err() != nil {
		return ffmpeg.RunResult{ExitCode: -1, StderrTail: ctx.Err().Error()}
	}
	if f.failNormalize {
		return ffmpeg.RunResult{ExitCode: 1, StderrTail: "normalize boom"}
	}
	out := args[len(args)-1]
	if err := os.WriteFile(out, []byte("segment"), 0o644); err != nil {
		return ffmpeg.RunResult{ExitCode: -1, StderrTail: err.Error()}
	}
	return ffmpeg.RunResult{ExitCode: 0}
}

func (f *fakeRunner) RunWithProgress(ctx context.Context, onTick func(ffmpeg.Tick), args ...string) ffmpeg.RunResult {
	f.record(args)
	out := args[len(args)-1]
	if f.failEncode {
		if f.writeBeforeFail {
			os.WriteFile(out, []byte("partial"), 0o644)
		}
		return ffmpeg.RunResult{ExitCode: 1, StderrTail: "encode boom"}
	}
	for _, tick := range f.ticks {
		onTick(tick)
	}
	if err := os.WriteFile(out, []byte("encoded"), 0o644); err != nil {
		return ffmpeg.RunResult{ExitCode: -1, StderrTail: err.Error()}
	}
	return ffmpeg.RunResult{ExitCode: 0}
}

func (f *fakeRunner) Probe(ctx context.Context, path string) (*ffmpeg.ProbeResult, error) {
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	streams := []ffmpeg.Stream{{CodecType: "video", Width: 1920, Height: 1080}}
	if f.probeAudio {
		streams = append(streams, ffmpeg.Stream{CodecType: "audio", Channels: 2})
	}
	return &ffmpeg.ProbeResult{Streams: streams}, nil
}

func (f *fakeRunner) lastRun(t *testing.T) []string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.runs) == 0 {
		t.Fatal("no engine invocations recorded")
	}
	return f.runs[len(f.runs)-1]
}

func videoAsset(id string, duration float64) timeline.Asset {
	return timeline.Asset{ID: id, Kind: timeline.AssetVideo, Path: "/media/" + id + ".mp4", Duration: duration, Width: 1920, Height: 1080}
}

func audioAsset(id string, duration float64) timeline.Asset {
	return timeline.Asset{ID: id, Kind: timeline.AssetAudio, Path: "/media/" + id + ".mp3", Duration: duration}
}

func imageAsset(id string) timeline.Asset {
	return timeline.Asset{ID: id, Kind: timeline.AssetImage, Path: "/media/" + id + ".png", Width: 801, Height: 601}
}

func clip(id, assetID string, start, duration float64) timeline.Clip {
	return timeline.Clip{
		ID:        id,
		AssetID:   assetID,
		StartTime: start,
		Duration:  duration,
		Speed:     1,
		Volume:    1,
	}
}

func buildTimeline(assets []timeline.Asset, tracks ...timeline.Track) timeline.Timeline {
	m := make(map[string]timeline.Asset, len(assets))
	for _, a := range assets {
		m[a.ID] = a
	}
	return timeline.Timeline{Tracks: tracks, Assets: m}
}
