// Package segment turns an irregular stream of audio chunks into
// fixed-duration segments and estimates how much playable audio the
// receiver holds ahead of real time.
package segment

import "time"

// DefaultFreezeAfter is how long the buffer estimate keeps being recomputed
// after the first byte. Past it the estimate is held so small timing jitter
// does not accumulate into drift.
const DefaultFreezeAfter = 20 * time.Second

// Segment is one emitted slice of audio.
type Segment struct {
	// NewSegment is set when Data starts a new fixed-duration segment.
	NewSegment bool

	// BufferDepth is the estimated playable audio buffered ahead of real
	// time, in seconds.
	BufferDepth float64

	Data []byte
}

// Cursor is the byte accounting of one segmenter.
type Cursor struct {
	ReceivedBytesTotal            int
	ReceivedBytesInCurrentSegment int
	FirstDataAt                   time.Time
	LastDataAt                    time.Time
}

// Segmenter slices chunks into segments of Duration seconds of audio. It is
// not safe for concurrent use; a session owns one per worker generation.
type Segmenter struct {
	duration    float64
	freezeAfter time.Duration
	now         func() time.Time

	cursor Cursor
	buffer float64
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Segmenter) { s.now = now }
}

// WithFreezeAfter overrides DefaultFreezeAfter.
func WithFreezeAfter(d time.Duration) Option {
	return func(s *Segmenter) { s.freezeAfter = d }
}

// New returns a Segmenter producing segments of the given duration.
func New(duration time.Duration, opts ...Option) *Segmenter {
	s := &Segmenter{
		duration:    duration.Seconds(),
		freezeAfter: DefaultFreezeAfter,
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Cursor returns a copy of the current byte accounting.
func (s *Segmenter) Cursor() Cursor { return s.cursor }

// BufferDepth returns the last computed buffer estimate in seconds.
func (s *Segmenter) BufferDepth() float64 { return s.buffer }

// LimitBytes is the size of one segment at the given bitrate, 0 when the
// bitrate is unknown.
func (s *Segmenter) LimitBytes(bitrate int) int {
	if bitrate <= 0 {
		return 0
	}
	return int(s.duration * float64(bitrate))
}

// Push accounts for chunk and returns the slices to emit. bitrate is in
// bytes per second; first tags the chunk as the start of a segment.
//
// The sum of the returned slice lengths always equals len(chunk).
func (s *Segmenter) Push(chunk []byte, first bool, bitrate int) []Segment {
	now := s.now()
	if s.cursor.FirstDataAt.IsZero() {
		s.cursor.FirstDataAt = now
	}
	s.cursor.LastDataAt = now

	limit := s.LimitBytes(bitrate)

	if limit == 0 || s.cursor.ReceivedBytesInCurrentSegment+len(chunk) < limit {
		s.cursor.ReceivedBytesInCurrentSegment += len(chunk)
		s.cursor.ReceivedBytesTotal += len(chunk)
		return []Segment{s.segment(first, chunk, bitrate)}
	}

	out := make([]Segment, 0, 2+len(chunk)/limit)

	// complete the current segment
	fill := (limit - s.cursor.ReceivedBytesInCurrentSegment) % limit
	if fill > 0 {
		s.cursor.ReceivedBytesTotal += fill
		out = append(out, s.segment(first, chunk[:fill], bitrate))
		chunk = chunk[fill:]
	}
	s.cursor.ReceivedBytesInCurrentSegment = 0

	full := len(chunk) / limit
	for i := 0; i < full; i++ {
		s.cursor.ReceivedBytesTotal += limit
		out = append(out, s.segment(true, chunk[i*limit:(i+1)*limit], bitrate))
	}

	// The tail opens the next segment, even when empty, so the boundary is
	// always signalled.
	tail := chunk[full*limit:]
	s.cursor.ReceivedBytesInCurrentSegment = len(tail)
	s.cursor.ReceivedBytesTotal += len(tail)
	out = append(out, s.segment(true, tail, bitrate))

	return out
}

func (s *Segmenter) segment(newSegment bool, data []byte, bitrate int) Segment {
	return Segment{
		NewSegment:  newSegment,
		BufferDepth: s.estimate(bitrate),
		Data:        data,
	}
}

func (s *Segmenter) estimate(bitrate int) float64 {
	if bitrate <= 0 {
		return s.buffer
	}
	elapsed := s.cursor.LastDataAt.Sub(s.cursor.FirstDataAt)
	if elapsed < s.freezeAfter {
		s.buffer = float64(s.cursor.ReceivedBytesTotal)/float64(bitrate) - elapsed.Seconds()
	}
	return s.buffer
}
