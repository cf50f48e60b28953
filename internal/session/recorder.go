package session

// Recorder receives session events for metrics. Implementations must be safe
// for concurrent use.
type Recorder interface {
	// FrameReceived counts a frame by result: "ok" or a drop reason.
	FrameReceived(result string)
	// MessageDecoded counts a decoded message by kind.
	MessageDecoded(kind string)
	// Reconnected counts a lost connection.
	Reconnected()
	// StateChanged reports a transport state transition.
	StateChanged(s State)
	// Units reports the registry size for "ac" or "group".
	Units(kind string, n int)
	// AbilityRequest counts ability exchanges by result: "sent", "matched",
	// "mismatch" or "retry".
	AbilityRequest(result string)
}

type nopRecorder struct{}

func (nopRecorder) FrameReceived(string)  {}
func (nopRecorder) MessageDecoded(string) {}
func (nopRecorder) Reconnected()          {}
func (nopRecorder) StateChanged(State)    {}
func (nopRecorder) Units(string, int)     {}
func (nopRecorder) AbilityRequest(string) {}
