package domain

import "errors"

// User-visible failure classes. Callers classify with errors.Is.
var (
	// ErrTransport means the signaling link is unreachable or was closed by
	// the remote side.
	ErrTransport = errors.New("signaling transport error")
	// ErrPermissionDenied means access to the capture device was refused.
	ErrPermissionDenied = errors.New("media permission denied")
	// ErrDeviceUnavailable means no capture device could be opened.
	ErrDeviceUnavailable = errors.New("media device unavailable")
	// ErrConnectivityLost means the peer connection reported failed or
	// disconnected. It is a warning; the transport may recover.
	ErrConnectivityLost = errors.New("peer connectivity lost")
	// ErrPlaybackBlocked means remote audio arrived but could not be played.
	ErrPlaybackBlocked = errors.New("playback blocked")
)

// ErrStaleNegotiation marks a negotiation message that no longer applies to
// the live session: a duplicate answer, an offer after a description was
// set, a candidate for a torn-down session. It is logged, never surfaced.
var ErrStaleNegotiation = errors.New("stale negotiation")

var (
	ErrMalformedFrame    = errors.New("malformed signaling frame")
	ErrLinkNotOpen       = errors.New("signaling link not open")
	ErrLinkAlreadyOpen   = errors.New("signaling link already open")
	ErrInvalidTransition = errors.New("invalid call state transition")
	ErrSessionBusy       = errors.New("previous peer session not torn down")
	ErrWrongRole         = errors.New("operation not allowed for negotiation role")
	ErrMediaAttached     = errors.New("local media already attached")
	ErrPeerClosed        = errors.New("peer session closed")
	ErrEmptyNickname     = errors.New("nickname is required")
	ErrEnded             = errors.New("call session ended")
)
