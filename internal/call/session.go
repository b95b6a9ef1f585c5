package call

import "randomvoice/native/internal/domain"

// Partner is the peer assigned by a matched message.
type Partner struct {
	ID        string
	Nickname  string
	Initiator bool
}

// Session is the controller's state for one client. Partner is set exactly
// while the state is Matched, Negotiating or Connected, and at most one
// peer session is live at a time.
type Session struct {
	nickname string
	state    domain.CallState
	partner  *Partner
	peer     domain.Peer
}

// bindPeer records p as the live peer session. A previous session must have
// been torn down first.
func (s *Session) bindPeer(p domain.Peer) error {
	if s.peer != nil {
		return domain.ErrSessionBusy
	}
	s.peer = p
	return nil
}

// owns reports whether sessionID names the live peer session.
func (s *Session) owns(sessionID string) bool {
	return s.peer != nil && s.peer.ID() == sessionID
}

// Snapshot is a copy of the session for the presentation layer.
type Snapshot struct {
	Nickname        string           `json:"nickname,omitempty"`
	State           domain.CallState `json:"state"`
	PartnerID       string           `json:"partnerId,omitempty"`
	PartnerNickname string           `json:"partnerNickname,omitempty"`
	IsInitiator     bool             `json:"isInitiator"`
	PeerID          string           `json:"peerId,omitempty"`
	PlaybackBlocked bool             `json:"playbackBlocked"`
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		Nickname: s.nickname,
		State:    s.state,
	}
	if s.partner != nil {
		snap.PartnerID = s.partner.ID
		snap.PartnerNickname = s.partner.Nickname
		snap.IsInitiator = s.partner.Initiator
	}
	if s.peer != nil {
		snap.PeerID = s.peer.ID()
	}
	return snap
}
