package domain

// CallState is the controller's lifecycle state.
type CallState int

const (
	StateIdle CallState = iota
	StateSearching
	StateMatched
	StateNegotiating
	StateConnected
	StateEnded
)

func (s CallState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSearching:
		return "searching"
	case StateMatched:
		return "matched"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Paired reports whether a partner is assigned in this state.
func (s CallState) Paired() bool {
	return s == StateMatched || s == StateNegotiating || s == StateConnected
}

// Role is the negotiation role assigned at match time.
type Role int

const (
	RoleReceiver Role = iota
	RoleInitiator
)

func (r Role) String() string {
	if r == RoleInitiator {
		return "initiator"
	}
	return "receiver"
}

// SignalingState projects the peer connection's offer/answer state.
type SignalingState string

const (
	SignalingStable          SignalingState = "stable"
	SignalingHaveLocalOffer  SignalingState = "have-local-offer"
	SignalingHaveRemoteOffer SignalingState = "have-remote-offer"
	SignalingClosed          SignalingState = "closed"
)

// Connectivity is the peer connection's reachability as reported by ICE.
type Connectivity int

const (
	ConnectivityChecking Connectivity = iota
	ConnectivityConnected
	ConnectivityDisconnected
	ConnectivityFailed
	ConnectivityClosed
)

func (c Connectivity) String() string {
	switch c {
	case ConnectivityChecking:
		return "checking"
	case ConnectivityConnected:
		return "connected"
	case ConnectivityDisconnected:
		return "disconnected"
	case ConnectivityFailed:
		return "failed"
	case ConnectivityClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Lost reports whether media cannot currently flow.
func (c Connectivity) Lost() bool {
	return c == ConnectivityDisconnected || c == ConnectivityFailed
}

// MarshalText encodes the state by name.
func (s CallState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
