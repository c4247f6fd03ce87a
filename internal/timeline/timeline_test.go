package timeline

import (
	"testing"
)

func testTimeline(clips ...Clip) Timeline {
	assets := map[string]Asset{
		"vid": {ID: "vid", Kind: AssetVideo, Path: "/media/a.mp4", Duration: 60, Width: 1920, Height: 1080},
		"img": {ID: "img", Kind: AssetImage, Path: "/media/b.png", Width: 800, Height: 600},
		"aud": {ID: "aud", Kind: AssetAudio, Path: "/media/c.mp3", Duration: 120},
	}
	return Timeline{
		Tracks: []Track{{ID: "t1", Order: 0, Clips: clips, Visible: true}},
		Assets: assets,
	}
}

func TestClipOverlaps(t *testing.T) {
	tests := []struct {
		name           string
		s1, d1, s2, d2 float64
		want           bool
	}{
		{name: "disjoint", s1: 0, d1: 5, s2: 5, d2: 3, want: false},
		{name: "touching is not overlap", s1: 0, d1: 5, s2: 5, d2: 1, want: false},
		{name: "partial", s1: 0, d1: 5, s2: 2, d2: 4, want: true},
		{name: "contained", s1: 0, d1: 10, s2: 2, d2: 3, want: true},
		{name: "identical", s1: 1, d1: 2, s2: 1, d2: 2, want: true},
		{name: "reversed order", s1: 6, d1: 2, s2: 0, d2: 5, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := Clip{StartTime: tc.s1, Duration: tc.d1}
			b := Clip{StartTime: tc.s2, Duration: tc.d2}
			if got := a.Overlaps(b); got != tc.want {
				t.Errorf("Overlaps([%v,%v) vs [%v,%v)) = %v, want %v",
					tc.s1, tc.s1+tc.d1, tc.s2, tc.s2+tc.d2, got, tc.want)
			}
			if got := b.Overlaps(a); got != tc.want {
				t.Errorf("Overlaps not symmetric for %s", tc.name)
			}
		})
	}
}

func TestTimelineDuration(t *testing.T) {
	tl := testTimeline(
		Clip{ID: "c1", AssetID: "vid", StartTime: 0, Duration: 5, Speed: 1, Volume: 1},
		Clip{ID: "c2", AssetID: "vid", StartTime: 5, Duration: 3, Speed: 1, Volume: 1},
	)
	if got := tl.Duration(); got != 8 {
		t.Errorf("Duration = %v, want 8", got)
	}
}

func TestTimelineDuration_SkipsHiddenTracks(t *testing.T) {
	tl := testTimeline(Clip{ID: "c1", AssetID: "vid", StartTime: 0, Duration: 5, Speed: 1, Volume: 1})
	tl.Tracks = append(tl.Tracks, Track{
		ID: "t2", Order: 1, Visible: false,
		Clips: []Clip{{ID: "c9", AssetID: "vid", StartTime: 0, Duration: 99, Speed: 1, Volume: 1}},
	})
	if got := tl.Duration(); got != 5 {
		t.Errorf("Duration = %v, want 5 (hidden track ignored)", got)
	}
}

func TestValidate_OK(t *testing.T) {
	tl := testTimeline(Clip{ID: "c1", AssetID: "vid", StartTime: 0, Duration: 5, Speed: 1, Volume: 1})
	if err := tl.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	valid := Clip{ID: "c1", AssetID: "vid", StartTime: 0, Duration: 5, Speed: 1, Volume: 1}

	tests := []struct {
		name   string
		mutate func(*Clip)
	}{
		{"negative start", func(c *Clip) { c.StartTime = -1 }},
		{"zero duration", func(c *Clip) { c.Duration = 0 }},
		{"zero speed", func(c *Clip) { c.Speed = 0 }},
		{"negative volume", func(c *Clip) { c.Volume = -0.5 }},
		{"unknown asset", func(c *Clip) { c.AssetID = "ghost" }},
		{"trim past end", func(c *Clip) { c.TrimStart = 58 }},
		{"position out of range", func(c *Clip) {
			c.Position = &Position{X: 1.5, Y: 0, Width: 0.5, Height: 0.5}
		}},
		{"zero size box", func(c *Clip) {
			c.Position = &Position{X: 0, Y: 0, Width: 0, Height: 0.5}
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := valid
			tc.mutate(&c)
			tl := testTimeline(c)
			if err := tl.Validate(); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestValidate_ImageIgnoresTrimWindow(t *testing.T) {
	// Images have zero duration and loop; trim checks must not apply.
	tl := testTimeline(Clip{ID: "c1", AssetID: "img", StartTime: 0, Duration: 30, Speed: 1, Volume: 1})
	if err := tl.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_EmptyTimeline(t *testing.T) {
	tl := Timeline{Assets: map[string]Asset{}}
	if err := tl.Validate(); err == nil {
		t.Fatal("expected error for empty timeline")
	}
}
