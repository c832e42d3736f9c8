package streamdl

// State is the lifecycle position of a station session.
type State int32

const (
	StateNew State = iota
	StateResolvingMetadata
	StateLaunchingWorker
	StateStreaming
	StateStalled
	StateRestarting
	StateFailed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateResolvingMetadata:
		return "resolving_metadata"
	case StateLaunchingWorker:
		return "launching_worker"
	case StateStreaming:
		return "streaming"
	case StateStalled:
		return "stalled"
	case StateRestarting:
		return "restarting"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}
