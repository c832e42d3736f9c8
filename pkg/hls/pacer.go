package hls

import "time"

// pacer spreads a decoded segment over several emission intervals.
type pacer struct {
	interval  time.Duration
	remaining []byte
	size      int
}

// load queues a freshly decoded segment and returns what must be emitted
// right away: whatever was still queued from the previous segment, then the
// first piece of this one.
func (p *pacer) load(data []byte, target time.Duration, initial bool) [][]byte {
	var now [][]byte
	if len(p.remaining) > 0 {
		now = append(now, p.remaining)
		p.remaining = nil
	}

	if len(data) == 0 {
		return now
	}

	p.size = len(data)
	if !initial && p.interval < target {
		steps := int((target + p.interval - 1) / p.interval)
		p.size = (len(data) + steps - 1) / steps
	}
	p.remaining = data

	return append(now, p.next())
}

// next returns the next piece, or nil once the segment is drained.
func (p *pacer) next() []byte {
	if len(p.remaining) == 0 {
		return nil
	}
	n := p.size
	if n > len(p.remaining) {
		n = len(p.remaining)
	}
	piece := p.remaining[:n]
	p.remaining = p.remaining[n:]
	return piece
}

func (p *pacer) pending() bool { return len(p.remaining) > 0 }
