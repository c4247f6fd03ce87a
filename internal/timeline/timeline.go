// Package timeline defines the declarative edit timeline model: tracks,
// time-positioned clips, and per-clip transforms. It is the authoritative
// input to the render engine and carries no rendering logic of its own.
package timeline

// AssetKind classifies a media asset referenced by a clip.
type AssetKind string

const (
	AssetVideo AssetKind = "video"
	AssetAudio AssetKind = "audio"
	AssetImage AssetKind = "image"
)

// Asset is the immutable description of one library media file as the
// timeline sees it. Clips reference assets by ID and never copy them.
type Asset struct {
	ID       string    `json:"id"`
	Kind     AssetKind `json:"kind"`
	Path     string    `json:"path"`
	Duration float64   `json:"duration"` // seconds; 0 for images
	Width    int       `json:"width"`
	Height   int       `json:"height"`
	Size     int64     `json:"size"`
}

// Position is a clip's 2-D transform on the output canvas. All spatial
// fields are normalized fractions of the canvas; (X, Y) anchors the
// top-left corner of the unrotated box.
type Position struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"` // degrees
	ZIndex   int     `json:"z_index"`
}

// Clip is a time-bounded placement of one asset on one track.
type Clip struct {
	ID        string    `json:"id"`
	AssetID   string    `json:"asset_id"`
	TrackID   string    `json:"track_id"`
	StartTime float64   `json:"start_time"` // timeline seconds
	Duration  float64   `json:"duration"`   // timeline seconds
	TrimStart float64   `json:"trim_start"` // source-relative seconds
	TrimEnd   float64   `json:"trim_end"`
	Speed     float64   `json:"speed"`
	Volume    float64   `json:"volume"`
	FadeIn    float64   `json:"fade_in"`
	FadeOut   float64   `json:"fade_out"`
	Position  *Position `json:"position,omitempty"`
}

// EndTime returns the clip's exclusive end on the timeline.
func (c Clip) EndTime() float64 {
	return c.StartTime + c.Duration
}

// Overlaps reports whether two clips occupy intersecting half-open
// timeline intervals [start, start+duration). Track membership is
// deliberately ignored: clips on different tracks that coincide in time
// still overlap.
func (c Clip) Overlaps(other Clip) bool {
	return c.StartTime < other.EndTime() && other.StartTime < c.EndTime()
}

// Track is an ordered lane of clips. Lower Order renders visually on
// top in the editor, and the render engine preserves that stacking.
type Track struct {
	ID      string `json:"id"`
	Order   int    `json:"order"`
	Clips   []Clip `json:"clips"`
	Visible bool   `json:"visible"`
}

// Timeline is the resolved snapshot handed to an export job: the track
// set plus every asset the clips reference, keyed by ID.
type Timeline struct {
	Tracks []Track          `json:"tracks"`
	Assets map[string]Asset `json:"assets"`
}

// VisibleClips returns all clips on visible tracks, annotated with their
// track's stacking order.
func (t Timeline) VisibleClips() []PlacedClip {
	var placed []PlacedClip
	for _, track := range t.Tracks {
		if !track.Visible {
			continue
		}
		for _, clip := range track.Clips {
			placed = append(placed, PlacedClip{Clip: clip, TrackOrder: track.Order})
		}
	}
	return placed
}

// Duration returns the maximum clip end time across all visible tracks.
func (t Timeline) Duration() float64 {
	var max float64
	for _, pc := range t.VisibleClips() {
		if end := pc.EndTime(); end > max {
			max = end
		}
	}
	return max
}

// PlacedClip pairs a clip with the stacking order of its track.
type PlacedClip struct {
	Clip
	TrackOrder int
}

// Asset resolves the clip's asset from the timeline snapshot.
func (t Timeline) Asset(clip Clip) (Asset, bool) {
	a, ok := t.Assets[clip.AssetID]
	return a, ok
}
