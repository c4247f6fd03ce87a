package timeline

import (
	"fmt"
)

// Validate checks the structural invariants the render engine relies on.
// It returns the first violation found, or nil. An empty timeline (no
// clips on any visible track) is a violation: a job with nothing to
// render must never reach the transcoding phase.
func (t Timeline) Validate() error {
	clips := t.VisibleClips()
	if len(clips) == 0 {
		return fmt.Errorf("timeline has no renderable clips")
	}

	for _, pc := range clips {
		c := pc.Clip
		if c.StartTime < 0 {
			return fmt.Errorf("clip %s: start time %.3f is negative", c.ID, c.StartTime)
		}
		if c.Duration <= 0 {
			return fmt.Errorf("clip %s: duration %.3f must be positive", c.ID, c.Duration)
		}
		if c.Speed <= 0 {
			return fmt.Errorf("clip %s: speed %.3f must be positive", c.ID, c.Speed)
		}
		if c.Volume < 0 {
			return fmt.Errorf("clip %s: volume %.3f must not be negative", c.ID, c.Volume)
		}

		asset, ok := t.Assets[c.AssetID]
		if !ok {
			return fmt.Errorf("clip %s: unknown asset %s", c.ID, c.AssetID)
		}

		// Images loop for the clip duration, so the trim window only
		// constrains real media.
		if asset.Kind != AssetImage && asset.Duration > 0 {
			if c.TrimStart < 0 {
				return fmt.Errorf("clip %s: trim start %.3f is negative", c.ID, c.TrimStart)
			}
			if c.TrimStart+c.Duration > asset.Duration+durationEpsilon {
				return fmt.Errorf("clip %s: trim window [%.3f, %.3f) exceeds asset duration %.3f",
					c.ID, c.TrimStart, c.TrimStart+c.Duration, asset.Duration)
			}
		}

		if p := c.Position; p != nil {
			if err := validatePosition(c.ID, p); err != nil {
				return err
			}
		}
	}
	return nil
}

const durationEpsilon = 1e-6

func validatePosition(clipID string, p *Position) error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"x", p.X}, {"y", p.Y}, {"width", p.Width}, {"height", p.Height},
	} {
		if f.value < 0 || f.value > 1 {
			return fmt.Errorf("clip %s: position %s %.3f outside [0,1]", clipID, f.name, f.value)
		}
	}
	if p.Width == 0 || p.Height == 0 {
		return fmt.Errorf("clip %s: position box must have non-zero size", clipID)
	}
	return nil
}
