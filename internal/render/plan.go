package render

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/renderdeck/renderdeck-agent/internal/filtergraph"
	"github.com/renderdeck/renderdeck-agent/internal/timeline"
)

// Quality selects the constant-rate-factor tier for the final encode.
// Lower CRF means higher fidelity and larger files.
type Quality string

const (
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"
)

// CRF maps the tier to its x264 constant rate factor.
func (q Quality) CRF() int {
	switch q {
	case QualityHigh:
		return 18
	case QualityLow:
		return 28
	default:
		return 23
	}
}

// Valid reports whether q is a known tier.
func (q Quality) Valid() bool {
	switch q {
	case QualityHigh, QualityMedium, QualityLow:
		return true
	}
	return false
}

// planOptions carries the output parameters shared by both composition
// strategies.
type planOptions struct {
	Width      int
	Height     int
	FrameRate  int
	Quality    Quality
	Background string // #RRGGBB
	Duration   float64
	OutputPath string
}

// buildOverlayPlan synthesizes the full composition invocation: every
// segment becomes an engine input, visual segments are stacked onto a
// solid-color canvas in z-order with time-gated overlays, and
// audio-bearing segments are delayed to their timeline offset and mixed.
func buildOverlayPlan(segments []Segment, opts planOptions) ([]string, error) {
	args := []string{"-y"}
	for _, seg := range segments {
		args = append(args, "-i", seg.Path)
	}

	g := filtergraph.New()

	canvas := g.Add(filtergraph.ColorSource{
		Color:    opts.Background,
		Width:    opts.Width,
		Height:   opts.Height,
		Duration: opts.Duration,
	}, nil, g.Label("base"))

	// Later overlays cover earlier ones, so sorting track order
	// descending puts the lowest-order track on top of the stack.
	visual := make([]int, 0, len(segments))
	for i, seg := range segments {
		if seg.IsVisual() {
			visual = append(visual, i)
		}
	}
	sort.SliceStable(visual, func(a, b int) bool {
		sa, sb := segments[visual[a]], segments[visual[b]]
		if sa.Clip.TrackOrder != sb.Clip.TrackOrder {
			return sa.Clip.TrackOrder > sb.Clip.TrackOrder
		}
		za, zb := 0, 0
		if sa.Clip.Position != nil {
			za = sa.Clip.Position.ZIndex
		}
		if sb.Clip.Position != nil {
			zb = sb.Clip.Position.ZIndex
		}
		if za != zb {
			return za < zb
		}
		return sa.Clip.StartTime < sb.Clip.StartTime
	})

	for _, idx := range visual {
		seg := segments[idx]
		layer := layerGeometry(seg.Clip.Clip, opts.Width, opts.Height)

		stream := g.Add(filtergraph.Scale{Width: layer.boxW, Height: layer.boxH},
			[]string{fmt.Sprintf("%d:v", idx)}, g.Label("scaled"))

		if layer.rotated {
			stream = g.Add(filtergraph.Rotate{
				Degrees: seg.Clip.Position.Rotation,
				PaddedW: layer.padded,
				PaddedH: layer.padded,
			}, []string{stream}, g.Label("rotated"))
		}

		canvas = g.Add(filtergraph.Overlay{
			X:           layer.anchorX,
			Y:           layer.anchorY,
			EnableStart: seg.Clip.StartTime,
			EnableEnd:   seg.Clip.EndTime(),
		}, []string{canvas, stream}, g.Label("ov"))
	}

	// Segments the prober marked silent never enter the mix input
	// list; referencing a missing stream would abort the encode.
	var mixInputs []string
	for _, idx := range visual {
		seg := segments[idx]
		if !seg.HasAudio {
			continue
		}
		mixInputs = append(mixInputs, g.Add(filtergraph.Delay{
			Milliseconds: int(math.Floor(seg.Clip.StartTime * 1000)),
		}, []string{fmt.Sprintf("%d:a", idx)}, g.Label("delayed")))
	}
	for idx, seg := range segments {
		if seg.IsVisual() || !seg.HasAudio {
			continue
		}
		mixInputs = append(mixInputs, g.Add(filtergraph.Delay{
			Milliseconds: int(math.Floor(seg.Clip.StartTime * 1000)),
		}, []string{fmt.Sprintf("%d:a", idx)}, g.Label("delayed")))
	}

	audioOut := ""
	if len(mixInputs) > 0 {
		audioOut = g.Add(filtergraph.Mix{Inputs: len(mixInputs)}, mixInputs, g.Label("amix"))
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("filter graph: %w", err)
	}

	args = append(args, "-filter_complex", g.Serialize())
	args = append(args, "-map", "["+canvas+"]")
	if audioOut != "" {
		args = append(args, "-map", "["+audioOut+"]")
	}
	args = append(args, encodeArgs(opts)...)
	return append(args, opts.OutputPath), nil
}

// layer holds the resolved pixel geometry for one visual segment.
type layer struct {
	boxW, boxH       int
	anchorX, anchorY int
	rotated          bool
	padded           int
}

// layerGeometry converts a clip's normalized transform into absolute
// canvas pixels. A rotated box gets an output canvas padded to the box
// diagonal so corners survive the rotation, with the anchor shifted so
// the rotated image's center coincides with the unrotated box's center.
func layerGeometry(clip timeline.Clip, canvasW, canvasH int) layer {
	if clip.Position == nil {
		return layer{boxW: canvasW, boxH: canvasH}
	}
	p := clip.Position
	l := layer{
		boxW:    int(math.Round(p.Width * float64(canvasW))),
		boxH:    int(math.Round(p.Height * float64(canvasH))),
		anchorX: int(math.Round(p.X * float64(canvasW))),
		anchorY: int(math.Round(p.Y * float64(canvasH))),
	}
	if p.Rotation != 0 {
		l.rotated = true
		l.padded = int(math.Ceil(math.Sqrt(float64(l.boxW*l.boxW + l.boxH*l.boxH))))
		l.anchorX = l.anchorX + l.boxW/2 - l.padded/2
		l.anchorY = l.anchorY + l.boxH/2 - l.padded/2
	}
	return l
}

// buildConcatPlan writes the segment list file and returns the single
// gapless re-encode invocation. Valid only when the strategy analyzer
// proved no segment overlaps, none is positioned, and no audio-only
// clip needs mixing.
func buildConcatPlan(segments []Segment, scratch *Scratch, opts planOptions) ([]string, error) {
	ordered := make([]Segment, len(segments))
	copy(ordered, segments)
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].Clip.StartTime < ordered[b].Clip.StartTime
	})

	var b strings.Builder
	for _, seg := range ordered {
		b.WriteString("file '" + escapeConcatPath(seg.Path) + "'\n")
	}

	listPath := scratch.Path("concat.txt")
	if err := os.WriteFile(listPath, []byte(b.String()), 0o644); err != nil {
		return nil, fmt.Errorf("writing concat list: %w", err)
	}

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		// Optional selectors tolerate segments without an audio stream.
		"-map", "0:v?",
		"-map", "0:a?",
	}
	args = append(args, encodeArgs(opts)...)
	return append(args, opts.OutputPath), nil
}

// encodeArgs returns the shared output codec and container flags.
func encodeArgs(opts planOptions) []string {
	return []string{
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", fmt.Sprintf("%d", opts.Quality.CRF()),
		"-pix_fmt", "yuv420p",
		"-r", fmt.Sprintf("%d", opts.FrameRate),
		"-c:a", "aac",
		"-b:a", "192k",
		"-t", formatSeconds(opts.Duration),
		"-movflags", "+faststart",
	}
}

// escapeConcatPath escapes a path for the concat demuxer's list syntax,
// where a single quote ends the quoted string.
func escapeConcatPath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}
