package probe

import (
	"errors"
	"strconv"
	"strings"
)

// ErrNoStreamLine is returned when the inspection output holds no audio
// stream description with a bitrate.
var ErrNoStreamLine = errors.New("no audio stream line in inspection output")

// Report is what could be read from one inspection run.
type Report struct {
	Line string

	// Bitrate in bytes per second, 0 when the line carried none.
	Bitrate int

	// Codec as named by the inspection tool, empty when absent.
	Codec string
}

// Parse reads the first "Stream ... Audio ... kb/s" line of the tool's
// diagnostic output, e.g.
//
//	Stream #0:0: Audio: mp3, 44100 Hz, stereo, fltp, 128 kb/s
func Parse(output string) (Report, error) {
	var line string
	for _, l := range strings.Split(output, "\n") {
		if strings.Contains(l, "Stream") && strings.Contains(l, "Audio") && strings.Contains(l, "kb/s") {
			line = strings.TrimRight(l, "\r")
			break
		}
	}
	if line == "" {
		return Report{}, ErrNoStreamLine
	}

	r := Report{Line: line}
	fields := strings.Split(line, " ")

	if i := indexOf(fields, "kb/s") - 1; i >= 0 {
		if kbps, err := strconv.ParseFloat(fields[i], 64); err == nil && kbps > 0 {
			r.Bitrate = int(kbps * 1000 / 8)
		}
	}

	// "Audio: aac (HE-AAC) ([15][0][0][0] / 0x000F)," yields "aac"
	if j := indexOf(fields, "Audio:") + 1; j > 0 && j < len(fields) {
		r.Codec, _, _ = strings.Cut(fields[j], ",")
	}

	return r, nil
}

func indexOf(fields []string, s string) int {
	for i, f := range fields {
		if f == s {
			return i
		}
	}
	return -1
}
