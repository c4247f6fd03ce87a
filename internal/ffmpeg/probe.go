package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Stream represents one media stream (audio, video, subtitle, ...).
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Channels  int    `json:"channels,omitempty"`
	Duration  string `json:"duration,omitempty"`
}

// Format represents the container format information.
type Format struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// ProbeResult holds the metadata extracted from a media file.
type ProbeResult struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Duration returns the container duration in seconds.
func (pr *ProbeResult) Duration() (float64, error) {
	if pr.Format.Duration == "" {
		return 0, fmt.Errorf("duration not available in format metadata")
	}
	d, err := strconv.ParseFloat(pr.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", pr.Format.Duration, err)
	}
	return d, nil
}

// HasAudio returns true iff at least one audio stream is present.
func (pr *ProbeResult) HasAudio() bool {
	for _, s := range pr.Streams {
		if s.CodecType == "audio" {
			return true
		}
	}
	return false
}

// HasVideo returns true iff at least one video stream is present.
func (pr *ProbeResult) HasVideo() bool {
	for _, s := range pr.Streams {
		if s.CodecType == "video" {
			return true
		}
	}
	return false
}

// Dimensions returns the pixel size of the first video stream, or zeros
// when the file carries no video.
func (pr *ProbeResult) Dimensions() (width, height int) {
	for _, s := range pr.Streams {
		if s.CodecType == "video" {
			return s.Width, s.Height
		}
	}
	return 0, 0
}

// Probe analyzes a media file and extracts its metadata using ffprobe.
func (r *CommandRunner) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("probe path cannot be empty")
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	}

	cmd := exec.CommandContext(ctx, r.ffprobe, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &limitedWriter{w: &bytes.Buffer{}, limit: maxStderrBytes}

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}

	return ParseProbeOutput(out.Bytes())
}

// ParseProbeOutput decodes raw ffprobe JSON. Split out from Probe so the
// parsing contract is testable without a subprocess.
func ParseProbeOutput(data []byte) (*ProbeResult, error) {
	var result ProbeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe JSON output: %w", err)
	}
	return &result, nil
}
