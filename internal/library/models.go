// Package library manages the agent's registered media assets: the
// files a timeline is allowed to reference, with the probed metadata
// validation and normalization depend on.
package library

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/renderdeck/renderdeck-agent/internal/timeline"
)

// Asset is a registered media file.
type Asset struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"` // video, audio, image
	Path      string    `json:"path"`
	Duration  float64   `json:"duration"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// TimelineAsset converts the stored row into the snapshot form the
// export engine consumes.
func (a *Asset) TimelineAsset() timeline.Asset {
	return timeline.Asset{
		ID:       a.ID,
		Kind:     timeline.AssetKind(a.Kind),
		Path:     a.Path,
		Duration: a.Duration,
		Width:    a.Width,
		Height:   a.Height,
		Size:     a.Size,
	}
}

var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
	".avi":  true,
}

var audioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".aac":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".bmp":  true,
}

// KindForPath classifies a media file by extension. Unknown extensions
// return the empty string.
func KindForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case videoExtensions[ext]:
		return string(timeline.AssetVideo)
	case audioExtensions[ext]:
		return string(timeline.AssetAudio)
	case imageExtensions[ext]:
		return string(timeline.AssetImage)
	}
	return ""
}
