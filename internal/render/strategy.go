package render

import "github.com/renderdeck/renderdeck-agent/internal/timeline"

// Strategy selects how normalized segments are composed into the final
// output.
type Strategy string

const (
	// StrategyConcat joins segments back to back through the concat
	// demuxer. Cheap, but only valid when nothing overlaps in time,
	// nobody is repositioned, and no audio-only clip needs mixing.
	StrategyConcat Strategy = "concat"

	// StrategyOverlay composes segments through a full filter graph
	// with per-segment placement and audio mixing.
	StrategyOverlay Strategy = "overlay"
)

// SelectStrategy picks the composition strategy for a set of placed
// clips. Overlay is the safe general path; concat is chosen only when
// every disqualifier is absent.
func SelectStrategy(tl timeline.Timeline, clips []timeline.PlacedClip) Strategy {
	for i, a := range clips {
		if asset, ok := tl.Asset(a.Clip); ok && asset.Kind == timeline.AssetAudio {
			return StrategyOverlay
		}
		if a.Position != nil {
			return StrategyOverlay
		}
		for _, b := range clips[i+1:] {
			if a.Clip.Overlaps(b.Clip) {
				return StrategyOverlay
			}
		}
	}
	return StrategyConcat
}
