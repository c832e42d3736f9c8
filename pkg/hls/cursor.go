package hls

import (
	"strconv"
	"strings"
	"time"
)

// Cursor tracks which media playlist entry to fetch next.
type Cursor struct {
	started bool
	last    int64
}

// Select picks the entry to fetch from a media playlist with the given
// media sequence number. The first call starts two entries behind the live
// edge. When the previous position fell outside [seq-5, seq] it jumps to the
// newest entry. initial is true for the first selection only.
func (c *Cursor) Select(seq int64, lines []string) (uri string, initial, ok bool) {
	switch {
	case !c.started:
		c.started = true
		initial = true
		c.last = seq - 2
	case c.last < seq-5 || c.last > seq:
		c.last = seq - 1
	}

	ignore := seq - 1 - c.last
	if ignore < 0 {
		return "", initial, false
	}

	for i := len(lines) - 1; i >= 0; i-- {
		if !isSegmentLine(lines[i]) {
			continue
		}
		if ignore > 0 {
			ignore--
			continue
		}
		uri = lines[i]
		break
	}

	if uri == "" {
		return "", initial, false
	}

	c.last++
	return uri, initial, true
}

// Last returns the position of the cursor.
func (c *Cursor) Last() int64 { return c.last }

func isSegmentLine(line string) bool {
	return strings.HasPrefix(line, "http://") ||
		strings.HasPrefix(line, "https://") ||
		strings.HasSuffix(line, ".ts")
}

// mediaPlaylist is the part of a media playlist the poller needs.
type mediaPlaylist struct {
	targetDuration time.Duration
	sequence       int64
	lines          []string
}

func parseMediaPlaylist(body string) mediaPlaylist {
	p := mediaPlaylist{}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		p.lines = append(p.lines, line)

		if v, ok := strings.CutPrefix(line, "#EXT-X-TARGETDURATION:"); ok {
			if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
				p.targetDuration = time.Duration(n * float64(time.Second))
			}
		}
		if v, ok := strings.CutPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"); ok {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				p.sequence = n
			}
		}
	}
	return p
}
