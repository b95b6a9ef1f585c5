// Package call implements the call lifecycle: matchmaking, role assignment,
// offer/answer exchange, partner replacement and teardown.
package call

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"randomvoice/native/internal/domain"
	"randomvoice/native/internal/media"
	"randomvoice/native/internal/metric"
)

// Options configures a Controller.
type Options struct {
	// API is the matchmaking base URL; the link dials <API>/match.
	API      string
	Capturer domain.Capturer
	NewPeer  domain.PeerFactory
	Player   domain.Player
	// OnEvent receives lifecycle events on the controller goroutine.
	OnEvent func(domain.Event)
	Metrics *metric.Metrics
	// ConnectivityTimeout is how long a peer may stay disconnected or
	// failed before the pairing is abandoned. Zero disables it.
	ConnectivityTimeout time.Duration
}

// Controller is the call state machine. Every command, signaling message
// and peer event runs to completion on the goroutine executing Run before
// the next one starts, so the session needs no locks.
type Controller struct {
	opts     Options
	link     domain.Signaler
	box      *mailbox
	ctx      context.Context
	session  Session
	playback *media.Recovery
	log      zerolog.Logger

	lostTimer *time.Timer
	lostGen   int
}

// New creates a Controller. Call SetSignaler before Run to complete the
// circular dependency (the link delivers into the controller).
func New(opts Options) *Controller {
	return &Controller{
		opts:     opts,
		box:      newMailbox(),
		ctx:      context.Background(),
		playback: media.NewRecovery(opts.Player),
		log:      log.With().Str("component", "call").Logger(),
	}
}

// SetSignaler injects the signaling link after construction.
func (c *Controller) SetSignaler(s domain.Signaler) {
	c.link = s
}

// Run processes events until ctx is cancelled or Close is called, then tears
// everything down.
func (c *Controller) Run(ctx context.Context) {
	c.ctx = ctx
	c.box.run(ctx)
	if c.session.state != domain.StateEnded {
		c.shutdown()
	}
}

// StartSearch connects to the matchmaking server and enters the queue.
func (c *Controller) StartSearch(ctx context.Context, nickname string) error {
	return c.do(ctx, func() error { return c.startSearch(ctx, nickname) })
}

// Next abandons the current partner and asks the server for a new one.
func (c *Controller) Next(ctx context.Context) error {
	return c.do(ctx, c.next)
}

// End tears down the call and the link and returns to Idle.
func (c *Controller) End(ctx context.Context) error {
	return c.do(ctx, c.end)
}

// Resume retries blocked playback of the partner's audio.
func (c *Controller) Resume(ctx context.Context) error {
	return c.do(ctx, c.resume)
}

// Close ends the session for good. The controller rejects every later
// command with domain.ErrEnded.
func (c *Controller) Close(ctx context.Context) error {
	return c.do(ctx, func() error {
		c.shutdown()
		c.box.stop()
		return nil
	})
}

// Snapshot returns a copy of the session state.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := c.do(ctx, func() error {
		snap = c.session.snapshot()
		snap.PlaybackBlocked = c.playback.Blocked()
		return nil
	})
	return snap, err
}

// HandleMessage queues one inbound signaling message.
func (c *Controller) HandleMessage(msg domain.Message) {
	c.box.post(func() { c.handleMessage(msg) })
}

// HandleLinkDown queues the loss of the signaling link.
func (c *Controller) HandleLinkDown(err error) {
	c.box.post(func() { c.linkDown(err) })
}

// do runs fn on the controller goroutine and waits for its result.
func (c *Controller) do(ctx context.Context, fn func() error) error {
	res := make(chan error, 1)
	if !c.box.post(func() { res <- fn() }) {
		return domain.ErrEnded
	}
	select {
	case err := <-res:
		return err
	case <-c.box.done:
		select {
		case err := <-res:
			return err
		default:
			return domain.ErrEnded
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Commands

func (c *Controller) startSearch(ctx context.Context, nickname string) error {
	nickname = strings.TrimSpace(nickname)
	switch {
	case c.session.state == domain.StateEnded:
		return domain.ErrEnded
	case c.session.state != domain.StateIdle:
		return fmt.Errorf("start search from %s: %w", c.session.state, domain.ErrInvalidTransition)
	case nickname == "":
		return domain.ErrEmptyNickname
	case c.link == nil:
		return fmt.Errorf("%w: no signaling link", domain.ErrTransport)
	}

	if err := c.link.Connect(ctx, c.opts.API); err != nil {
		c.log.Error().Err(err).Msg("cannot connect to server")
		c.emit(domain.Event{Kind: domain.EventError, Err: err})
		return err
	}

	c.session.nickname = nickname
	c.setState(domain.StateSearching)
	c.link.Send(domain.FindPartner{Nickname: nickname})
	return nil
}

func (c *Controller) next() error {
	switch c.session.state {
	case domain.StateEnded:
		return domain.ErrEnded
	case domain.StateMatched, domain.StateNegotiating, domain.StateConnected:
	default:
		return fmt.Errorf("next from %s: %w", c.session.state, domain.ErrInvalidTransition)
	}

	c.log.Info().Msg("skipping to next partner")
	c.requeue()
	return nil
}

func (c *Controller) end() error {
	switch c.session.state {
	case domain.StateEnded:
		return domain.ErrEnded
	case domain.StateIdle:
		return nil
	}

	c.log.Info().Msg("ending call")
	c.teardownPeer()
	c.closeLink()
	c.session.nickname = ""
	c.setState(domain.StateIdle)
	return nil
}

func (c *Controller) resume() error {
	if c.session.state == domain.StateEnded {
		return domain.ErrEnded
	}
	if !c.playback.Blocked() {
		return nil
	}
	if err := c.playback.Resume(); err != nil {
		c.log.Warn().Err(err).Msg("manual playback failed")
		c.emit(domain.Event{Kind: domain.EventPlaybackBlocked, Err: err})
		return err
	}
	c.log.Info().Msg("playback resumed manually")
	c.emit(domain.Event{Kind: domain.EventPlaybackResumed})
	return nil
}

// shutdown releases everything and enters the terminal state.
func (c *Controller) shutdown() {
	c.teardownPeer()
	c.closeLink()
	c.setState(domain.StateEnded)
}

// Signaling messages

func (c *Controller) handleMessage(msg domain.Message) {
	if c.session.state == domain.StateIdle || c.session.state == domain.StateEnded {
		c.log.Debug().Str("type", string(msg.Type())).Msg("no active session, dropping message")
		return
	}

	switch m := msg.(type) {
	case domain.Waiting:
		c.onWaiting(m)
	case domain.Matched:
		c.onMatched(m)
	case domain.Offer:
		c.onOffer(m)
	case domain.Answer:
		c.onAnswer(m)
	case domain.ICE:
		c.onICE(m)
	case domain.PartnerDisconnected:
		c.onPartnerDisconnected()
	case domain.FindPartner, domain.Next:
		c.log.Warn().Str("type", string(m.Type())).Msg("unexpected client message from server")
	default:
		c.log.Warn().Str("type", string(msg.Type())).Msg("unhandled message")
	}
}

func (c *Controller) onWaiting(m domain.Waiting) {
	if c.session.state != domain.StateSearching {
		c.log.Debug().Str("state", c.session.state.String()).Msg("waiting outside search, ignoring")
		return
	}
	c.emit(domain.Event{Kind: domain.EventWaiting, Text: m.Message})
}

func (c *Controller) onMatched(m domain.Matched) {
	if c.session.peer != nil || c.session.partner != nil {
		c.log.Warn().Msg("matched while paired, tearing down previous session")
		c.teardownPeer()
	}

	c.session.partner = &Partner{
		ID:        m.PartnerID,
		Nickname:  m.PartnerNickname,
		Initiator: m.Initiator,
	}
	c.setState(domain.StateMatched)
	c.log.Info().
		Str("partner", m.PartnerID).
		Bool("initiator", m.Initiator).
		Msg("matched")
	c.emit(domain.Event{Kind: domain.EventMatched, Partner: m.PartnerNickname})

	if !m.Initiator {
		c.log.Info().Msg("receiver, waiting for offer")
		return
	}

	peer, ok := c.preparePeer(domain.RoleInitiator)
	if !ok {
		return
	}
	offer, err := peer.CreateOffer()
	if err != nil {
		c.failNegotiation(err)
		return
	}
	c.setState(domain.StateNegotiating)
	c.sendNegotiation(domain.Offer{Offer: offer, PartnerID: c.session.partner.ID})
}

func (c *Controller) onOffer(m domain.Offer) {
	if !c.session.state.Paired() {
		c.stale("offer without partner")
		return
	}
	if c.session.partner.Initiator {
		c.stale("offer received by initiator")
		return
	}

	peer := c.session.peer
	if peer == nil {
		var ok bool
		if peer, ok = c.preparePeer(domain.RoleReceiver); !ok {
			return
		}
	}

	if err := peer.ReceiveOffer(m.Offer); err != nil {
		c.negotiationError(err)
		return
	}
	c.setState(domain.StateNegotiating)

	answer, err := peer.CreateAnswer()
	if err != nil {
		c.negotiationError(err)
		return
	}
	c.sendNegotiation(domain.Answer{Answer: answer, PartnerID: c.session.partner.ID})
}

func (c *Controller) onAnswer(m domain.Answer) {
	if c.session.peer == nil {
		c.stale("answer without peer session")
		return
	}
	if err := c.session.peer.ReceiveAnswer(m.Answer); err != nil {
		c.negotiationError(err)
	}
}

func (c *Controller) onICE(m domain.ICE) {
	if c.session.peer == nil {
		c.stale("candidate without peer session")
		return
	}
	err := c.session.peer.AddRemoteCandidate(m.Candidate)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrStaleNegotiation):
		c.stale("candidate for closed session")
	default:
		c.log.Warn().Err(err).Msg("add remote candidate")
	}
}

// onPartnerDisconnected re-enters Searching. The server has already
// re-queued this client, so nothing is sent.
func (c *Controller) onPartnerDisconnected() {
	if !c.session.state.Paired() {
		c.log.Debug().Msg("partner_disconnected while unpaired, ignoring")
		return
	}
	c.log.Info().Msg("partner disconnected, searching")
	c.teardownPeer()
	c.setState(domain.StateSearching)
	c.emit(domain.Event{Kind: domain.EventPartnerLeft})
}

func (c *Controller) linkDown(err error) {
	if c.session.state == domain.StateIdle || c.session.state == domain.StateEnded {
		return
	}
	c.log.Error().Err(err).Msg("signaling link lost")
	c.teardownPeer()
	c.closeLink()
	c.setState(domain.StateIdle)
	c.emit(domain.Event{Kind: domain.EventError, Err: err})
}

// Peer session events

func (c *Controller) peerCallbacks() domain.PeerCallbacks {
	return domain.PeerCallbacks{
		OnLocalCandidate: func(id string, cand domain.ICECandidatePayload) {
			c.box.post(func() { c.onLocalCandidate(id, cand) })
		},
		OnRemoteTrack: func(id string, track domain.RemoteTrack) {
			c.box.post(func() { c.onRemoteTrack(id, track) })
		},
		OnConnectivity: func(id string, state domain.Connectivity) {
			c.box.post(func() { c.onConnectivity(id, state) })
		},
	}
}

func (c *Controller) onLocalCandidate(id string, cand domain.ICECandidatePayload) {
	if !c.session.owns(id) {
		c.stale("local candidate from closed session")
		return
	}
	c.sendNegotiation(domain.ICE{Candidate: cand, PartnerID: c.session.partner.ID})
}

func (c *Controller) onRemoteTrack(id string, track domain.RemoteTrack) {
	if !c.session.owns(id) {
		c.stale("remote track from closed session")
		return
	}
	if err := c.playback.Start(track); err != nil {
		c.log.Warn().Err(err).Msg("auto-play failed")
		c.opts.Metrics.PlaybackBlocked()
		c.emit(domain.Event{Kind: domain.EventPlaybackBlocked, Err: err})
	}
}

func (c *Controller) onConnectivity(id string, state domain.Connectivity) {
	if !c.session.owns(id) {
		return
	}

	switch {
	case state == domain.ConnectivityConnected:
		c.stopLostTimer()
		if c.session.state == domain.StateNegotiating {
			c.setState(domain.StateConnected)
			c.emit(domain.Event{Kind: domain.EventConnected, Partner: c.session.partner.Nickname})
		}
	case state.Lost():
		c.log.Warn().Str("state", state.String()).Msg("connection unstable")
		c.opts.Metrics.ConnectivityLost()
		c.emit(domain.Event{Kind: domain.EventConnectivityLost, Err: domain.ErrConnectivityLost})
		c.startLostTimer(id)
	}
}

func (c *Controller) startLostTimer(id string) {
	if c.opts.ConnectivityTimeout <= 0 || c.lostTimer != nil {
		return
	}
	c.lostGen++
	gen := c.lostGen
	c.lostTimer = time.AfterFunc(c.opts.ConnectivityTimeout, func() {
		c.box.post(func() { c.connectivityTimeout(id, gen) })
	})
}

func (c *Controller) stopLostTimer() {
	if c.lostTimer != nil {
		c.lostTimer.Stop()
		c.lostTimer = nil
	}
}

// connectivityTimeout abandons a pairing whose connection never recovered.
// The server does not know, so the client re-queues itself.
func (c *Controller) connectivityTimeout(id string, gen int) {
	if gen != c.lostGen || c.lostTimer == nil || !c.session.owns(id) {
		return
	}
	c.lostTimer = nil
	c.log.Warn().Dur("timeout", c.opts.ConnectivityTimeout).Msg("connectivity not recovered, searching")
	c.requeue()
	c.emit(domain.Event{Kind: domain.EventPartnerLeft, Err: domain.ErrConnectivityLost})
}

// Helpers

// preparePeer acquires local media and creates a peer session that owns it.
// On failure the error has been handled and ok is false.
func (c *Controller) preparePeer(role domain.Role) (peer domain.Peer, ok bool) {
	stream, err := c.opts.Capturer.Acquire(c.ctx)
	if err != nil {
		c.abortMedia(err)
		return nil, false
	}

	peer, err = c.createPeer(role)
	if err != nil {
		stream.Stop()
		c.failNegotiation(err)
		return nil, false
	}

	if err := peer.AttachLocalMedia(stream); err != nil {
		c.failNegotiation(err)
		return nil, false
	}
	return peer, true
}

func (c *Controller) createPeer(role domain.Role) (domain.Peer, error) {
	peer, err := c.opts.NewPeer(role, c.peerCallbacks())
	if err != nil {
		return nil, fmt.Errorf("create peer session: %w", err)
	}
	if err := c.session.bindPeer(peer); err != nil {
		_ = peer.Close()
		return nil, err
	}
	c.opts.Metrics.PeerOpened()
	c.log.Info().Str("session", peer.ID()).Str("role", role.String()).Msg("peer session created")
	return peer, nil
}

// teardownPeer closes the live peer session, which stops its local tracks,
// and clears the partner.
func (c *Controller) teardownPeer() {
	c.stopLostTimer()
	c.playback.Reset()
	if peer := c.session.peer; peer != nil {
		c.session.peer = nil
		if err := peer.Close(); err != nil {
			c.log.Warn().Err(err).Msg("close peer session")
		}
		c.opts.Metrics.PeerClosed()
	}
	c.session.partner = nil
}

// requeue tears down the pairing and asks the server for a new partner.
func (c *Controller) requeue() {
	c.teardownPeer()
	if c.link != nil {
		c.link.Send(domain.Next{Nickname: c.session.nickname})
	}
	c.setState(domain.StateSearching)
}

func (c *Controller) closeLink() {
	if c.link == nil {
		return
	}
	if err := c.link.Close(); err != nil {
		c.log.Warn().Err(err).Msg("close signaling link")
	}
}

// abortMedia handles a capture failure: the call is aborted back to Idle and
// never retried automatically.
func (c *Controller) abortMedia(err error) {
	c.log.Error().Err(err).Msg("microphone unavailable")
	c.teardownPeer()
	c.closeLink()
	c.session.nickname = ""
	c.setState(domain.StateIdle)
	c.emit(domain.Event{Kind: domain.EventError, Err: err})
}

// failNegotiation abandons a pairing that cannot be negotiated.
func (c *Controller) failNegotiation(err error) {
	c.log.Error().Err(err).Msg("negotiation failed")
	c.emit(domain.Event{Kind: domain.EventError, Err: err})
	c.requeue()
}

func (c *Controller) negotiationError(err error) {
	if errors.Is(err, domain.ErrStaleNegotiation) {
		c.stale(err.Error())
		return
	}
	c.failNegotiation(err)
}

func (c *Controller) stale(reason string) {
	c.log.Debug().Str("reason", reason).Msg("ignoring stale negotiation")
	c.opts.Metrics.StaleNegotiation()
}

// sendNegotiation sends a time-sensitive message only over an open link.
func (c *Controller) sendNegotiation(msg domain.Message) {
	if c.link == nil || !c.link.IsOpen() {
		c.log.Warn().Str("type", string(msg.Type())).Msg("link not open, dropping negotiation message")
		return
	}
	c.link.Send(msg)
}

func (c *Controller) setState(s domain.CallState) {
	if c.session.state == s {
		return
	}
	c.log.Info().
		Str("from", c.session.state.String()).
		Str("to", s.String()).
		Msg("state")
	c.session.state = s
	c.opts.Metrics.ObserveState(s)
	c.emit(domain.Event{Kind: domain.EventStateChanged, State: s})
}

func (c *Controller) emit(ev domain.Event) {
	ev.State = c.session.state
	if c.opts.OnEvent != nil {
		c.opts.OnEvent(ev)
	}
}
