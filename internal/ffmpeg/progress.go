package ffmpeg

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// Tick is one progress block emitted by the engine while encoding.
// Fields the engine did not report stay at their zero/unknown value:
// Percent is -1 unless the engine produced a native percentage.
type Tick struct {
	Percent float64 // native percent, or -1 if not reported
	OutTime float64 // seconds of output produced so far
	Frame   int64
	Speed   float64 // realtime multiplier
	End     bool    // progress=end seen
}

// ParseProgress reads `-progress pipe:1` key=value output and invokes
// onTick once per progress block (blocks are terminated by a
// `progress=` line). The reader is drained to EOF.
func ParseProgress(r io.Reader, onTick func(Tick)) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	tick := Tick{Percent: -1}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch key {
		case "frame":
			if v, err := strconv.ParseInt(value, 10, 64); err == nil {
				tick.Frame = v
			}
		case "out_time":
			if secs := timeToSeconds(value); secs > 0 {
				tick.OutTime = secs
			}
		case "out_time_us":
			// Microsecond counter; preferred over out_time when present.
			if v, err := strconv.ParseInt(value, 10, 64); err == nil && v > 0 {
				tick.OutTime = float64(v) / 1e6
			}
		case "speed":
			if v, err := strconv.ParseFloat(strings.TrimSuffix(value, "x"), 64); err == nil {
				tick.Speed = v
			}
		case "percent":
			// Not emitted by stock ffmpeg, but wrapper engines report it.
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				tick.Percent = v
			}
		case "progress":
			tick.End = value == "end"
			if onTick != nil {
				onTick(tick)
			}
			tick = Tick{Percent: -1, OutTime: tick.OutTime, Frame: tick.Frame, Speed: tick.Speed}
		}
	}
}

// timeToSeconds converts the engine's HH:MM:SS.micro time format to seconds.
func timeToSeconds(timeStr string) float64 {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 3 {
		return 0
	}

	hours, err1 := strconv.ParseFloat(parts[0], 64)
	minutes, err2 := strconv.ParseFloat(parts[1], 64)
	seconds, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0
	}

	return hours*3600 + minutes*60 + seconds
}
