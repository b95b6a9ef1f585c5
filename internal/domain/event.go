package domain

// EventKind identifies a lifecycle notification for the presentation layer.
type EventKind int

const (
	EventStateChanged EventKind = iota
	EventWaiting
	EventMatched
	EventConnected
	EventPartnerLeft
	EventError
	EventConnectivityLost
	EventPlaybackBlocked
	EventPlaybackResumed
)

func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "state_changed"
	case EventWaiting:
		return "waiting"
	case EventMatched:
		return "matched"
	case EventConnected:
		return "connected"
	case EventPartnerLeft:
		return "partner_left"
	case EventError:
		return "error"
	case EventConnectivityLost:
		return "connectivity_lost"
	case EventPlaybackBlocked:
		return "playback_blocked"
	case EventPlaybackResumed:
		return "playback_resumed"
	default:
		return "unknown"
	}
}

// Event is emitted by the call controller. Only the fields relevant to Kind
// are set.
type Event struct {
	Kind    EventKind
	State   CallState
	Partner string // partner nickname
	Text    string // server status text for EventWaiting
	Err     error
}
