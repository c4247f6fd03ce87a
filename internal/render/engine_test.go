package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/renderdeck/renderdeck-agent/internal/ffmpeg"
	"github.com/renderdeck/renderdeck-agent/internal/timeline"
)

func newTestEngine(t *testing.T, runner ffmpeg.Runner) (*Engine, string) {
	t.Helper()
	root := t.TempDir()
	eng := NewEngine(EngineConfig{
		Runner:      runner,
		Logger:      testLogger(),
		ScratchRoot: root,
		FrameRate:   30,
		Workers:     2,
	})
	return eng, root
}

func sequentialTimeline() timeline.Timeline {
	return buildTimeline(
		[]timeline.Asset{videoAsset("a", 10), videoAsset("b", 10)},
		timeline.Track{ID: "t1", Order: 0, Visible: true, Clips: []timeline.Clip{
			clip("c1", "a", 0, 5),
			clip("c2", "b", 5, 3),
		}},
	)
}

func overlappingTimeline() timeline.Timeline {
	top := clip("c2", "b", 2, 2)
	top.Position = &timeline.Position{X: 0.25, Y: 0.25, Width: 0.5, Height: 0.5}
	return buildTimeline(
		[]timeline.Asset{videoAsset("a", 10), videoAsset("b", 10)},
		timeline.Track{ID: "t1", Order: 0, Visible: true, Clips: []timeline.Clip{clip("c1", "a", 0, 5)}},
		timeline.Track{ID: "t2", Order: 1, Visible: true, Clips: []timeline.Clip{top}},
	)
}

func baseRequest(t *testing.T, tl timeline.Timeline) Request {
	t.Helper()
	return Request{
		Timeline:   tl,
		OutputPath: filepath.Join(t.TempDir(), "final.mp4"),
		Width:      1920,
		Height:     1080,
		Quality:    QualityMedium,
		Background: "#000000",
	}
}

func TestExport_ConcatSuccess(t *testing.T) {
	runner := &fakeRunner{
		probeAudio: true,
		ticks: []ffmpeg.Tick{
			{Percent: -1, OutTime: 2},
			{Percent: -1, OutTime: 6},
			{Percent: -1, OutTime: 8, End: true},
		},
	}
	eng, scratchRoot := newTestEngine(t, runner)

	var mu sync.Mutex
	var percents []int
	req := baseRequest(t, sequentialTimeline())
	req.OnProgress = func(_ Phase, percent int) {
		mu.Lock()
		percents = append(percents, percent)
		mu.Unlock()
	}

	res, err := eng.Export(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if res.Strategy != StrategyConcat {
		t.Errorf("strategy = %s, want concat", res.Strategy)
	}
	if res.Duration != 8 {
		t.Errorf("duration = %v, want 8", res.Duration)
	}
	if _, err := os.Stat(req.OutputPath); err != nil {
		t.Errorf("output file missing: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(percents) == 0 || percents[len(percents)-1] != 100 {
		t.Fatalf("progress must end at exactly 100, got %v", percents)
	}
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Fatalf("progress regressed at %d: %v", i, percents)
		}
	}

	// Scratch directory is gone after success.
	entries, err := os.ReadDir(scratchRoot)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch root not cleaned: %v", entries)
	}
}

func TestExport_PhaseSequence(t *testing.T) {
	runner := &fakeRunner{
		probeAudio: true,
		ticks:      []ffmpeg.Tick{{Percent: -1, OutTime: 8, End: true}},
	}
	eng, _ := newTestEngine(t, runner)

	var mu sync.Mutex
	var phases []Phase
	req := baseRequest(t, sequentialTimeline())
	req.OnProgress = func(phase Phase, _ int) {
		mu.Lock()
		if len(phases) == 0 || phases[len(phases)-1] != phase {
			phases = append(phases, phase)
		}
		mu.Unlock()
	}

	if _, err := eng.Export(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	want := []Phase{
		PhaseCreated, PhaseNormalizing, PhaseAnalyzing, PhaseSynthesizing,
		PhaseEncoding, PhaseFinalizing, PhaseSucceeded,
	}
	mu.Lock()
	defer mu.Unlock()
	if len(phases) != len(want) {
		t.Fatalf("phases = %v, want %v", phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Errorf("phases[%d] = %s, want %s", i, phases[i], want[i])
		}
	}
}

func TestExport_OverlaySuccess(t *testing.T) {
	runner := &fakeRunner{probeAudio: true, ticks: []ffmpeg.Tick{{Percent: 50}, {Percent: 100, End: true}}}
	eng, _ := newTestEngine(t, runner)

	res, err := eng.Export(context.Background(), baseRequest(t, overlappingTimeline()))
	if err != nil {
		t.Fatal(err)
	}
	if res.Strategy != StrategyOverlay {
		t.Errorf("strategy = %s, want overlay", res.Strategy)
	}

	final := strings.Join(runner.lastRun(t), " ")
	if !strings.Contains(final, "-filter_complex") {
		t.Errorf("final invocation missing filter graph: %s", final)
	}
	if !strings.Contains(final, "amix") {
		t.Errorf("audio-bearing segments must be mixed: %s", final)
	}
}

func TestExport_NormalizeFailureAborts(t *testing.T) {
	runner := &fakeRunner{failNormalize: true}
	eng, scratchRoot := newTestEngine(t, runner)

	var last int
	req := baseRequest(t, sequentialTimeline())
	req.OnProgress = func(_ Phase, percent int) { last = percent }

	_, err := eng.Export(context.Background(), req)
	var encErr *EncodeError
	if !errors.As(err, &encErr) {
		t.Fatalf("error = %v, want EncodeError", err)
	}
	if encErr.Phase != "normalize" || encErr.ClipID == "" {
		t.Errorf("unexpected error detail: %+v", encErr)
	}
	if last == 100 {
		t.Error("failed job must never report 100")
	}

	entries, _ := os.ReadDir(scratchRoot)
	if len(entries) != 0 {
		t.Errorf("scratch root not cleaned after failure: %v", entries)
	}
}

func TestExport_EncodeFailureRemovesPartialOutput(t *testing.T) {
	runner := &fakeRunner{probeAudio: true, failEncode: true, writeBeforeFail: true}
	eng, scratchRoot := newTestEngine(t, runner)

	req := baseRequest(t, sequentialTimeline())
	_, err := eng.Export(context.Background(), req)

	var encErr *EncodeError
	if !errors.As(err, &encErr) {
		t.Fatalf("error = %v, want EncodeError", err)
	}
	if _, statErr := os.Stat(req.OutputPath); !os.IsNotExist(statErr) {
		t.Error("partial output must be removed after a failed encode")
	}

	entries, _ := os.ReadDir(scratchRoot)
	if len(entries) != 0 {
		t.Errorf("scratch root not cleaned after failure: %v", entries)
	}
}

func TestExport_RequestValidation(t *testing.T) {
	eng, _ := newTestEngine(t, &fakeRunner{})

	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"empty output", func(r *Request) { r.OutputPath = "" }},
		{"relative output", func(r *Request) { r.OutputPath = "out/final.mp4" }},
		{"zero resolution", func(r *Request) { r.Width = 0 }},
		{"bad quality", func(r *Request) { r.Quality = "ultra" }},
		{"bad background", func(r *Request) { r.Background = "red" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseRequest(t, sequentialTimeline())
			tt.mutate(&req)
			_, err := eng.Export(context.Background(), req)
			var valErr *ValidationError
			if !errors.As(err, &valErr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
		})
	}
}

func TestExport_EmptyTimelineRejected(t *testing.T) {
	eng, _ := newTestEngine(t, &fakeRunner{})
	req := baseRequest(t, timeline.Timeline{Assets: map[string]timeline.Asset{}})
	_, err := eng.Export(context.Background(), req)
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
}

func TestExport_ProbeFailureDegradesToSilent(t *testing.T) {
	runner := &fakeRunner{probeErr: errors.New("probe exploded")}
	eng, _ := newTestEngine(t, runner)

	res, err := eng.Export(context.Background(), baseRequest(t, overlappingTimeline()))
	if err != nil {
		t.Fatalf("probe failure must not fail the job: %v", err)
	}
	if res.Strategy != StrategyOverlay {
		t.Errorf("strategy = %s, want overlay", res.Strategy)
	}

	final := strings.Join(runner.lastRun(t), " ")
	if strings.Contains(final, "amix") || strings.Contains(final, "adelay") {
		t.Errorf("silent-degraded segments must not enter the mix: %s", final)
	}
}
