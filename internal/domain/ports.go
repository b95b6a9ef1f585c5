package domain

import (
	"context"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	pion "github.com/pion/webrtc/v4"
)

// Signaler manages the WebSocket signaling connection.
type Signaler interface {
	Connect(ctx context.Context, api string) error
	Send(msg Message)
	IsOpen() bool
	Close() error
}

// PeerCallbacks receives the asynchronous events of one peer session. Every
// callback carries the id of the session that raised it.
type PeerCallbacks struct {
	OnLocalCandidate func(sessionID string, candidate ICECandidatePayload)
	OnRemoteTrack    func(sessionID string, track RemoteTrack)
	OnConnectivity   func(sessionID string, state Connectivity)
}

// PeerFactory allocates a peer session for the given role.
type PeerFactory func(role Role, cb PeerCallbacks) (Peer, error)

// Peer manages one WebRTC peer connection for one call.
type Peer interface {
	ID() string
	Role() Role
	SignalingState() SignalingState
	AttachLocalMedia(stream LocalStream) error
	CreateOffer() (SDPPayload, error)
	ReceiveOffer(offer SDPPayload) error
	CreateAnswer() (SDPPayload, error)
	ReceiveAnswer(answer SDPPayload) error
	AddRemoteCandidate(candidate ICECandidatePayload) error
	Close() error
}

// LocalStream is an acquired capture stream. Stop releases the device and is
// safe to call more than once.
type LocalStream interface {
	Tracks() []pion.TrackLocal
	Stop()
}

// Capturer acquires the local capture stream.
type Capturer interface {
	Acquire(ctx context.Context) (LocalStream, error)
}

// RemoteTrack is an inbound media track.
type RemoteTrack interface {
	ID() string
	StreamID() string
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// Player renders a remote track.
type Player interface {
	Play(track RemoteTrack) error
	Stop()
}
