package probe

// DefaultThreshold is the amount of audio buffered before the prefix is
// inspected.
const DefaultThreshold = 16000

// State accumulates the stream prefix until it is large enough to inspect.
// The prefix is handed out exactly once per State.
type State struct {
	threshold int
	buf       []byte
	locked    bool
	done      bool
}

// NewState returns a State that becomes ready after threshold bytes.
func NewState(threshold int) *State {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &State{threshold: threshold}
}

// Add buffers chunk. It returns true the first time the buffered prefix
// reaches the threshold; the caller then owns probing and must call Finish.
func (s *State) Add(chunk []byte) bool {
	if s.done {
		return false
	}
	s.buf = append(s.buf, chunk...)
	if len(s.buf) < s.threshold || s.locked {
		return false
	}
	s.locked = true
	return true
}

// Prefix returns the buffered bytes without releasing them.
func (s *State) Prefix() []byte { return s.buf }

// Finish marks probing complete and returns the buffered prefix.
func (s *State) Finish() []byte {
	b := s.buf
	s.buf = nil
	s.done = true
	return b
}

// Done reports whether probing finished.
func (s *State) Done() bool { return s.done }

// Locked reports whether probing started.
func (s *State) Locked() bool { return s.locked }
