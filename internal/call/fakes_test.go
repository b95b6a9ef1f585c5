package call

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	pion "github.com/pion/webrtc/v4"

	"randomvoice/native/internal/domain"
)

// fakeLink records connects, sends and closes.
type fakeLink struct {
	mu         sync.Mutex
	open       bool
	connectErr error
	api        string
	sent       []domain.Message
	closes     int
}

func (l *fakeLink) Connect(_ context.Context, api string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.connectErr != nil {
		return l.connectErr
	}
	l.api = api
	l.open = true
	return nil
}

func (l *fakeLink) Send(msg domain.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.open {
		l.sent = append(l.sent, msg)
	}
}

func (l *fakeLink) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open
}

func (l *fakeLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.open = false
	l.closes++
	return nil
}

func (l *fakeLink) messages() []domain.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Message(nil), l.sent...)
}

func (l *fakeLink) sentOfType(t domain.MessageType) []domain.Message {
	var out []domain.Message
	for _, m := range l.messages() {
		if m.Type() == t {
			out = append(out, m)
		}
	}
	return out
}

// fakeStream counts Stop calls.
type fakeStream struct {
	mu    sync.Mutex
	stops int
}

func (s *fakeStream) Tracks() []pion.TrackLocal { return nil }

func (s *fakeStream) Stop() {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
}

func (s *fakeStream) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

type fakeCapturer struct {
	mu      sync.Mutex
	err     error
	streams []*fakeStream
}

func (c *fakeCapturer) Acquire(context.Context) (domain.LocalStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	s := &fakeStream{}
	c.streams = append(c.streams, s)
	return s, nil
}

func (c *fakeCapturer) all() []*fakeStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeStream(nil), c.streams...)
}

// fakePeer follows the offer/answer rules of a real session without any
// networking. Close stops the attached stream once.
type fakePeer struct {
	id      string
	role    domain.Role
	journal *journal

	mu         sync.Mutex
	stream     domain.LocalStream
	offered    bool
	remoteSet  bool
	answers    int
	candidates []domain.ICECandidatePayload
	closed     bool
}

func (p *fakePeer) ID() string        { return p.id }
func (p *fakePeer) Role() domain.Role { return p.role }

func (p *fakePeer) SignalingState() domain.SignalingState {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.closed:
		return domain.SignalingClosed
	case p.offered && !p.remoteSet:
		return domain.SignalingHaveLocalOffer
	default:
		return domain.SignalingStable
	}
}

func (p *fakePeer) AttachLocalMedia(s domain.LocalStream) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return domain.ErrPeerClosed
	}
	p.stream = s
	return nil
}

func (p *fakePeer) CreateOffer() (domain.SDPPayload, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.role != domain.RoleInitiator {
		return domain.SDPPayload{}, domain.ErrWrongRole
	}
	p.offered = true
	return domain.SDPPayload{Type: "offer", SDP: "offer-" + p.id}, nil
}

func (p *fakePeer) ReceiveOffer(domain.SDPPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remoteSet {
		return domain.ErrStaleNegotiation
	}
	p.remoteSet = true
	return nil
}

func (p *fakePeer) CreateAnswer() (domain.SDPPayload, error) {
	return domain.SDPPayload{Type: "answer", SDP: "answer-" + p.id}, nil
}

func (p *fakePeer) ReceiveAnswer(domain.SDPPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.offered || p.remoteSet {
		return domain.ErrStaleNegotiation
	}
	p.remoteSet = true
	p.answers++
	return nil
}

func (p *fakePeer) AddRemoteCandidate(c domain.ICECandidatePayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return domain.ErrStaleNegotiation
	}
	p.candidates = append(p.candidates, c)
	return nil
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	stream := p.stream
	p.mu.Unlock()

	if stream != nil {
		stream.Stop()
	}
	p.journal.add("close " + p.id)
	return nil
}

func (p *fakePeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePeer) remoteCandidates() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.candidates)
}

// fakeFactory hands out fakePeers and keeps their callbacks.
type fakeFactory struct {
	journal *journal
	err     error

	mu        sync.Mutex
	peers     []*fakePeer
	callbacks []domain.PeerCallbacks
}

func (f *fakeFactory) New(role domain.Role, cb domain.PeerCallbacks) (domain.Peer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p := &fakePeer{id: fmt.Sprintf("peer-%d", len(f.peers)+1), role: role, journal: f.journal}
	f.peers = append(f.peers, p)
	f.callbacks = append(f.callbacks, cb)
	f.journal.add("new " + p.id)
	return p, nil
}

func (f *fakeFactory) peer(i int) (*fakePeer, domain.PeerCallbacks) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peers[i], f.callbacks[i]
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.peers)
}

type fakeTrack struct{}

func (fakeTrack) ID() string       { return "audio" }
func (fakeTrack) StreamID() string { return "partner" }
func (fakeTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	return nil, nil, io.EOF
}

type fakePlayer struct {
	mu      sync.Mutex
	blocked bool
	plays   int
	stops   int
}

func (p *fakePlayer) Play(domain.RemoteTrack) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays++
	if p.blocked {
		return errors.New("output not writable")
	}
	return nil
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	p.stops++
	p.mu.Unlock()
}

func (p *fakePlayer) unblock() {
	p.mu.Lock()
	p.blocked = false
	p.mu.Unlock()
}

// journal is an ordered log of peer lifecycle steps.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	j.entries = append(j.entries, s)
	j.mu.Unlock()
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

// events records emitted events.
type events struct {
	mu  sync.Mutex
	all []domain.Event
}

func (e *events) record(ev domain.Event) {
	e.mu.Lock()
	e.all = append(e.all, ev)
	e.mu.Unlock()
}

func (e *events) of(kind domain.EventKind) []domain.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []domain.Event
	for _, ev := range e.all {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}
