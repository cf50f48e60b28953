package session

// State is the lifecycle position of a transport.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateStreaming
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}
