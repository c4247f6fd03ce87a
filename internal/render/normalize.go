package render

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/renderdeck/renderdeck-agent/internal/timeline"
)

// Segment is one normalized intermediate media file: the trimmed,
// speed-adjusted, faded rendition of a single clip, with frame rate and
// pixel format already normalized for safe composition. Its lifetime is
// bounded to the job's scratch directory.
type Segment struct {
	Clip     timeline.PlacedClip
	Asset    timeline.Asset
	Path     string
	HasAudio bool
}

// OutputDuration returns the segment's playable length in seconds:
// the clip window divided by the playback speed.
func (s Segment) OutputDuration() float64 {
	return s.Clip.Duration / s.Clip.Speed
}

// IsVisual reports whether the segment carries picture (video or image).
func (s Segment) IsVisual() bool {
	return s.Asset.Kind == timeline.AssetVideo || s.Asset.Kind == timeline.AssetImage
}

// normalizeAll converts every visible clip into a segment, running up
// to e.workers normalizations concurrently. Clips are independent during
// normalization, so the pool shares no mutable state beyond the result
// slots. The first failure cancels the remaining work and aborts the job.
func (e *Engine) normalizeAll(ctx context.Context, tl timeline.Timeline, scratch *Scratch, onDone func(done, total int)) ([]Segment, error) {
	clips := tl.VisibleClips()
	segments := make([]Segment, len(clips))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		done     int
	)
	sem := make(chan struct{}, e.workers)

	for i, pc := range clips {
		wg.Add(1)
		go func(i int, pc timeline.PlacedClip) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				if firstErr == nil {
					firstErr = ctx.Err()
				}
				mu.Unlock()
				return
			}

			seg, err := e.normalizeClip(ctx, tl, pc, scratch, i)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				return
			}
			segments[i] = seg
			done++
			if onDone != nil {
				onDone(done, len(clips))
			}
		}(i, pc)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return segments, nil
}

// normalizeClip produces one segment file for a clip, then probes it
// for an audio stream. Probe failures degrade to "no audio" rather than
// failing the job: a clip assumed silent never blocks an export.
func (e *Engine) normalizeClip(ctx context.Context, tl timeline.Timeline, pc timeline.PlacedClip, scratch *Scratch, index int) (Segment, error) {
	asset, ok := tl.Asset(pc.Clip)
	if !ok {
		return Segment{}, &ValidationError{Reason: fmt.Errorf("clip %s references unknown asset %s", pc.ID, pc.AssetID)}
	}

	outPath := scratch.Path(fmt.Sprintf("segment_%03d.mp4", index))
	args := buildNormalizeArgs(pc.Clip, asset, outPath, e.frameRate)

	result := e.runner.Run(ctx, args...)
	if !result.IsSuccess() {
		return Segment{}, &EncodeError{
			Phase:    "normalize",
			ClipID:   pc.ID,
			ExitCode: result.ExitCode,
			Detail:   result.StderrTail,
		}
	}

	seg := Segment{Clip: pc, Asset: asset, Path: outPath}

	if asset.Kind == timeline.AssetImage {
		// Image segments are rendered with audio explicitly suppressed;
		// probing them would be wasted work.
		return seg, nil
	}

	probe, err := e.runner.Probe(ctx, outPath)
	if err != nil {
		e.logger.Warn("audio probe failed, treating segment as silent",
			"clip_id", pc.ID, "error", err)
		return seg, nil
	}
	seg.HasAudio = probe.HasAudio()
	return seg, nil
}

// buildNormalizeArgs constructs the engine invocation that renders one
// clip into its normalized segment.
func buildNormalizeArgs(clip timeline.Clip, asset timeline.Asset, outPath string, fps int) []string {
	args := []string{"-y"}

	segDur := clip.Duration / clip.Speed

	switch asset.Kind {
	case timeline.AssetImage:
		// Loop the still for the clip's duration; the image has no
		// native timebase, so speed does not apply.
		segDur = clip.Duration
		args = append(args,
			"-loop", "1",
			"-t", formatSeconds(clip.Duration),
			"-i", asset.Path,
		)
	default:
		args = append(args,
			"-ss", formatSeconds(clip.TrimStart),
			"-t", formatSeconds(clip.Duration),
			"-i", asset.Path,
		)
	}

	if asset.Kind != timeline.AssetAudio {
		if vf := videoFilterChain(clip, asset, segDur, fps); vf != "" {
			args = append(args, "-vf", vf)
		}
		args = append(args, "-r", fmt.Sprintf("%d", fps))
		args = append(args, "-c:v", "libx264", "-preset", "veryfast", "-crf", "18")
	}

	if asset.Kind == timeline.AssetImage {
		// 4:2:0 output plus no audio track for stills.
		args = append(args, "-an")
	} else {
		if af := audioFilterChain(clip, segDur); af != "" {
			args = append(args, "-af", af)
		}
		args = append(args, "-c:a", "aac", "-b:a", "192k")
	}

	return append(args, outPath)
}

// videoFilterChain assembles the per-clip video normalization filters:
// speed retiming, constant frame rate, 4:2:0 pixel format, even
// dimensions for stills, and frame-anchored fades.
func videoFilterChain(clip timeline.Clip, asset timeline.Asset, segDur float64, fps int) string {
	var filters []string

	if asset.Kind == timeline.AssetImage {
		// 4:2:0 chroma subsampling requires even dimensions; floor to even.
		filters = append(filters, "scale=trunc(iw/2)*2:trunc(ih/2)*2")
	}

	if clip.Speed != 1 && asset.Kind != timeline.AssetImage {
		filters = append(filters, fmt.Sprintf("setpts=PTS/%s", formatSeconds(clip.Speed)))
	}

	filters = append(filters, fmt.Sprintf("fps=%d", fps), "format=yuv420p")

	if clip.FadeIn > 0 {
		n := int(math.Round(clip.FadeIn * float64(fps)))
		filters = append(filters, fmt.Sprintf("fade=t=in:s=0:n=%d", n))
	}
	if clip.FadeOut > 0 {
		start := int(math.Round((segDur - clip.FadeOut) * float64(fps)))
		if start < 0 {
			start = 0
		}
		n := int(math.Round(clip.FadeOut * float64(fps)))
		filters = append(filters, fmt.Sprintf("fade=t=out:s=%d:n=%d", start, n))
	}

	return strings.Join(filters, ",")
}

// audioFilterChain assembles the per-clip audio normalization filters:
// bounded-ratio time stretching, gain, and fades.
func audioFilterChain(clip timeline.Clip, segDur float64) string {
	var filters []string

	if clip.Speed != 1 {
		for _, stage := range DecomposeTempo(clip.Speed) {
			filters = append(filters, fmt.Sprintf("atempo=%s", formatSeconds(stage)))
		}
	}

	if clip.Volume != 1 {
		filters = append(filters, fmt.Sprintf("volume=%s", formatSeconds(clip.Volume)))
	}

	if clip.FadeIn > 0 {
		filters = append(filters, fmt.Sprintf("afade=t=in:st=0:d=%s", formatSeconds(clip.FadeIn)))
	}
	if clip.FadeOut > 0 {
		st := segDur - clip.FadeOut
		if st < 0 {
			st = 0
		}
		filters = append(filters, fmt.Sprintf("afade=t=out:st=%s:d=%s",
			formatSeconds(st), formatSeconds(clip.FadeOut)))
	}

	return strings.Join(filters, ",")
}

// atempo only accepts ratios in [0.5, 2.0], so any requested speed
// outside the bound is decomposed into a chain of in-bound stages whose
// product equals the requested speed: 3.0 becomes 2.0 then 1.5.
const (
	tempoMin = 0.5
	tempoMax = 2.0
)

// DecomposeTempo splits a speed multiplier into atempo stage factors.
func DecomposeTempo(speed float64) []float64 {
	var stages []float64
	remaining := speed
	for remaining > tempoMax {
		stages = append(stages, tempoMax)
		remaining /= tempoMax
	}
	for remaining < tempoMin {
		stages = append(stages, tempoMin)
		remaining /= tempoMin
	}
	return append(stages, remaining)
}

// formatSeconds renders a float without trailing zeros.
func formatSeconds(v float64) string {
	s := fmt.Sprintf("%.6f", v)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return s
}
