package webrtc

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/interceptor"
	pion "github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"randomvoice/native/internal/domain"
)

// Factory creates peer sessions configured with a fixed ICE server list.
type Factory struct {
	servers []pion.ICEServer
}

// NewFactory converts the configured ICE servers once for all sessions.
func NewFactory(iceServers []domain.ICEServer) *Factory {
	var servers []pion.ICEServer
	for _, s := range iceServers {
		servers = append(servers, pion.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return &Factory{servers: servers}
}

// New creates a peer session. It has the domain.PeerFactory signature.
func (f *Factory) New(role domain.Role, cb domain.PeerCallbacks) (domain.Peer, error) {
	p, err := NewPeerSession(f.servers, role, cb)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// newAPI builds a pion API with Opus and the default interceptors. A
// MediaEngine must not be shared between PeerConnections, so every session
// gets its own.
func newAPI() (*pion.API, error) {
	m := &pion.MediaEngine{}

	opusCodec := pion.RTPCodecParameters{
		RTPCodecCapability: pion.RTPCodecCapability{
			MimeType:    pion.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		PayloadType: 111,
	}
	if err := m.RegisterCodec(opusCodec, pion.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("register opus: %w", err)
	}

	i := &interceptor.Registry{}
	if err := pion.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	return pion.NewAPI(
		pion.WithMediaEngine(m),
		pion.WithInterceptorRegistry(i),
	), nil
}

// PeerSession wraps one pion PeerConnection for one call. Its methods are
// called from the call controller's goroutine only; pion callbacks are
// forwarded to the controller tagged with the session id.
type PeerSession struct {
	id   string
	role domain.Role
	pc   *pion.PeerConnection
	cb   domain.PeerCallbacks
	log  zerolog.Logger

	local     domain.LocalStream
	gate      candidateGate
	gotRemote atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewPeerSession allocates a PeerConnection and wires its candidate, track
// and connectivity events to cb.
func NewPeerSession(servers []pion.ICEServer, role domain.Role, cb domain.PeerCallbacks) (*PeerSession, error) {
	api, err := newAPI()
	if err != nil {
		return nil, err
	}

	pc, err := api.NewPeerConnection(pion.Configuration{
		ICEServers:   servers,
		BundlePolicy: pion.BundlePolicyMaxBundle,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	id := uuid.NewString()
	p := &PeerSession{
		id:   id,
		role: role,
		pc:   pc,
		cb:   cb,
		log: log.With().
			Str("component", "webrtc").
			Str("session", id).
			Str("role", role.String()).
			Logger(),
	}
	p.gate.apply = p.applyCandidate

	pc.OnICECandidate(p.handleLocalCandidate)
	pc.OnTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
		p.handleTrack(track)
	})
	pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		p.log.Info().Str("state", state.String()).Msg("ICE connection state")
		if p.cb.OnConnectivity != nil {
			p.cb.OnConnectivity(p.id, connectivity(state))
		}
	})
	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		p.log.Debug().Str("state", state.String()).Msg("peer connection state")
	})

	p.log.Info().Msg("peer session created")
	return p, nil
}

func (p *PeerSession) ID() string        { return p.id }
func (p *PeerSession) Role() domain.Role { return p.role }

// PendingCandidates is the number of remote candidates waiting for the
// remote description.
func (p *PeerSession) PendingCandidates() int {
	return p.gate.buf.Len()
}

// SignalingState projects the connection's offer/answer state.
func (p *PeerSession) SignalingState() domain.SignalingState {
	if p.closed.Load() {
		return domain.SignalingClosed
	}
	switch p.pc.SignalingState() {
	case pion.SignalingStateStable:
		return domain.SignalingStable
	case pion.SignalingStateHaveLocalOffer:
		return domain.SignalingHaveLocalOffer
	case pion.SignalingStateHaveRemoteOffer:
		return domain.SignalingHaveRemoteOffer
	case pion.SignalingStateClosed:
		return domain.SignalingClosed
	default:
		return domain.SignalingState(p.pc.SignalingState().String())
	}
}

// RemoteDescription returns the applied remote description, or nil.
func (p *PeerSession) RemoteDescription() *domain.SDPPayload {
	desc := p.pc.RemoteDescription()
	if desc == nil {
		return nil
	}
	return &domain.SDPPayload{Type: desc.Type.String(), SDP: desc.SDP}
}

// AttachLocalMedia adds every track of stream to the connection. The session
// takes ownership of stream and stops it on Close, even when adding a track
// fails.
func (p *PeerSession) AttachLocalMedia(stream domain.LocalStream) error {
	if p.closed.Load() {
		return domain.ErrPeerClosed
	}
	if p.local != nil {
		return domain.ErrMediaAttached
	}
	p.local = stream

	for _, track := range stream.Tracks() {
		sender, err := p.pc.AddTrack(track)
		if err != nil {
			return fmt.Errorf("add track %s: %w", track.ID(), err)
		}
		// Read incoming RTCP so interceptors keep working.
		go func() {
			buf := make([]byte, 1500)
			for {
				if _, _, err := sender.Read(buf); err != nil {
					return
				}
			}
		}()
	}

	p.log.Info().Int("tracks", len(stream.Tracks())).Msg("local media attached")
	return nil
}

// CreateOffer creates an SDP offer and sets it as the local description.
// Only the initiator offers.
func (p *PeerSession) CreateOffer() (domain.SDPPayload, error) {
	if p.closed.Load() {
		return domain.SDPPayload{}, domain.ErrPeerClosed
	}
	if p.role != domain.RoleInitiator {
		return domain.SDPPayload{}, fmt.Errorf("create offer: %w", domain.ErrWrongRole)
	}

	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return domain.SDPPayload{}, fmt.Errorf("create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return domain.SDPPayload{}, fmt.Errorf("set local description: %w", err)
	}

	p.log.Info().Msg("local SDP offer set")
	return domain.SDPPayload{Type: offer.Type.String(), SDP: offer.SDP}, nil
}

// ReceiveOffer applies offer as the remote description. It is only valid on
// the receiver before any description was set.
func (p *PeerSession) ReceiveOffer(offer domain.SDPPayload) error {
	if p.closed.Load() {
		return domain.ErrStaleNegotiation
	}
	if p.role != domain.RoleReceiver {
		return fmt.Errorf("receive offer: %w", domain.ErrWrongRole)
	}
	if p.pc.LocalDescription() != nil || p.pc.RemoteDescription() != nil {
		p.log.Warn().Msg("offer after negotiation started, ignoring")
		return domain.ErrStaleNegotiation
	}

	if err := p.pc.SetRemoteDescription(pion.SessionDescription{
		Type: pion.SDPTypeOffer,
		SDP:  offer.SDP,
	}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	p.log.Info().Msg("remote SDP offer set")
	p.flushCandidates()
	return nil
}

// CreateAnswer creates an SDP answer for the applied offer and sets it as
// the local description.
func (p *PeerSession) CreateAnswer() (domain.SDPPayload, error) {
	if p.closed.Load() {
		return domain.SDPPayload{}, domain.ErrPeerClosed
	}
	if p.role != domain.RoleReceiver {
		return domain.SDPPayload{}, fmt.Errorf("create answer: %w", domain.ErrWrongRole)
	}
	if p.pc.SignalingState() != pion.SignalingStateHaveRemoteOffer {
		return domain.SDPPayload{}, fmt.Errorf("create answer: %w", domain.ErrStaleNegotiation)
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return domain.SDPPayload{}, fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return domain.SDPPayload{}, fmt.Errorf("set local description: %w", err)
	}

	p.log.Info().Msg("local SDP answer set")
	return domain.SDPPayload{Type: answer.Type.String(), SDP: answer.SDP}, nil
}

// ReceiveAnswer applies answer as the remote description. A duplicate or
// late answer, one arriving while negotiation is already stable, is ignored
// and reported as domain.ErrStaleNegotiation.
func (p *PeerSession) ReceiveAnswer(answer domain.SDPPayload) error {
	if p.closed.Load() {
		return domain.ErrStaleNegotiation
	}
	switch state := p.pc.SignalingState(); state {
	case pion.SignalingStateHaveLocalOffer:
	case pion.SignalingStateStable:
		p.log.Warn().Msg("connection is already stable, ignoring duplicate answer")
		return domain.ErrStaleNegotiation
	default:
		p.log.Warn().Str("state", state.String()).Msg("answer without local offer, ignoring")
		return domain.ErrStaleNegotiation
	}

	if err := p.pc.SetRemoteDescription(pion.SessionDescription{
		Type: pion.SDPTypeAnswer,
		SDP:  answer.SDP,
	}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	p.log.Info().Msg("remote SDP answer set")
	p.flushCandidates()
	return nil
}

// AddRemoteCandidate applies candidate once the remote description is set
// and buffers it before that.
func (p *PeerSession) AddRemoteCandidate(candidate domain.ICECandidatePayload) error {
	if p.closed.Load() {
		return domain.ErrStaleNegotiation
	}
	return p.gate.Add(candidate)
}

// Close stops local tracks, closes the connection and discards buffered
// candidates. It is safe to call repeatedly.
func (p *PeerSession) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		if n := p.gate.Close(); n > 0 {
			p.log.Debug().Int("candidates", n).Msg("discarded buffered candidates")
		}
		if p.local != nil {
			p.local.Stop()
		}
		if err := p.pc.Close(); err != nil {
			p.closeErr = fmt.Errorf("close peer connection: %w", err)
		}
		p.log.Info().Msg("peer session closed")
	})
	return p.closeErr
}

func (p *PeerSession) flushCandidates() {
	n := p.gate.buf.Len()
	if err := p.gate.Open(); err != nil {
		p.log.Warn().Err(err).Msg("apply buffered candidates")
	}
	if n > 0 {
		p.log.Debug().Int("candidates", n).Msg("flushed buffered candidates")
	}
}

func (p *PeerSession) applyCandidate(c domain.ICECandidatePayload) error {
	init := pion.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
	if err := p.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	return nil
}

func (p *PeerSession) handleLocalCandidate(c *pion.ICECandidate) {
	if c == nil {
		p.log.Debug().Msg("ICE gathering complete")
		return
	}

	init := c.ToJSON()
	if isLoopback(init.Candidate) {
		p.log.Debug().Msg("filtering loopback ICE candidate")
		return
	}
	if p.cb.OnLocalCandidate != nil {
		p.cb.OnLocalCandidate(p.id, domain.ICECandidatePayload{
			Candidate:        init.Candidate,
			SDPMid:           init.SDPMid,
			SDPMLineIndex:    init.SDPMLineIndex,
			UsernameFragment: init.UsernameFragment,
		})
	}
}

// handleTrack keeps the first inbound track as the session's remote stream.
func (p *PeerSession) handleTrack(track *pion.TrackRemote) {
	codec := track.Codec()
	if !p.gotRemote.CompareAndSwap(false, true) {
		p.log.Debug().Str("track", track.ID()).Msg("ignoring additional remote track")
		return
	}
	p.log.Info().
		Str("kind", track.Kind().String()).
		Str("codec", codec.MimeType).
		Uint8("pt", uint8(codec.PayloadType)).
		Msg("got remote track")
	if p.cb.OnRemoteTrack != nil {
		p.cb.OnRemoteTrack(p.id, track)
	}
}

func connectivity(state pion.ICEConnectionState) domain.Connectivity {
	switch state {
	case pion.ICEConnectionStateConnected, pion.ICEConnectionStateCompleted:
		return domain.ConnectivityConnected
	case pion.ICEConnectionStateDisconnected:
		return domain.ConnectivityDisconnected
	case pion.ICEConnectionStateFailed:
		return domain.ConnectivityFailed
	case pion.ICEConnectionStateClosed:
		return domain.ConnectivityClosed
	default:
		return domain.ConnectivityChecking
	}
}

func isLoopback(candidate string) bool {
	return strings.Contains(candidate, "127.0.0.1") || strings.Contains(candidate, "::1 ")
}
