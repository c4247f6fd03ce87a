package ffmpeg

import (
	"testing"
)

const probeJSON = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "channels": 2}
  ],
  "format": {
    "filename": "/media/clip.mp4",
    "format_name": "mov,mp4,m4a,3gp,3g2,mj2",
    "duration": "12.480000",
    "size": "1048576",
    "bit_rate": "672000"
  }
}`

const videoOnlyJSON = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1280, "height": 720}
  ],
  "format": {"filename": "/media/silent.mp4", "duration": "3.000000"}
}`

func TestParseProbeOutput(t *testing.T) {
	pr, err := ParseProbeOutput([]byte(probeJSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !pr.HasVideo() {
		t.Error("HasVideo = false, want true")
	}
	if !pr.HasAudio() {
		t.Error("HasAudio = false, want true")
	}

	d, err := pr.Duration()
	if err != nil {
		t.Fatalf("Duration error: %v", err)
	}
	if d != 12.48 {
		t.Errorf("Duration = %v, want 12.48", d)
	}

	w, h := pr.Dimensions()
	if w != 1920 || h != 1080 {
		t.Errorf("Dimensions = %dx%d, want 1920x1080", w, h)
	}
}

func TestParseProbeOutput_NoAudio(t *testing.T) {
	pr, err := ParseProbeOutput([]byte(videoOnlyJSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pr.HasAudio() {
		t.Error("HasAudio = true for video-only file")
	}
}

func TestParseProbeOutput_Invalid(t *testing.T) {
	if _, err := ParseProbeOutput([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestDuration_Missing(t *testing.T) {
	pr := &ProbeResult{}
	if _, err := pr.Duration(); err == nil {
		t.Fatal("expected error for missing duration")
	}
}
