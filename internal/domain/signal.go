package domain

// MessageType is the "type" discriminator of a signaling frame.
type MessageType string

const (
	TypeFindPartner         MessageType = "find_partner"
	TypeWaiting             MessageType = "waiting"
	TypeMatched             MessageType = "matched"
	TypeOffer               MessageType = "offer"
	TypeAnswer              MessageType = "answer"
	TypeICE                 MessageType = "ice"
	TypeNext                MessageType = "next"
	TypePartnerDisconnected MessageType = "partner_disconnected"
)

// Message is one signaling message. The concrete types below are the only
// implementations; handlers switch on them exhaustively.
type Message interface {
	Type() MessageType
}

// SDPPayload is the JSON structure for SDP offer/answer payloads. It has the
// same shape as a browser RTCSessionDescription.
type SDPPayload struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidatePayload is the JSON structure for ICE candidate payloads, shaped
// like a browser RTCIceCandidateInit.
type ICECandidatePayload struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// FindPartner enters the matchmaking queue.
type FindPartner struct {
	Nickname string `json:"nickname"`
}

// Waiting is a queue status update from the server.
type Waiting struct {
	Message string `json:"message"`
}

// Matched announces a pairing. Exactly one side receives Initiator=true.
type Matched struct {
	PartnerID       string `json:"partnerId"`
	PartnerNickname string `json:"partnerNickname"`
	Initiator       bool   `json:"initiator"`
}

// Offer relays an SDP offer.
type Offer struct {
	Offer     SDPPayload `json:"offer"`
	PartnerID string     `json:"partnerId"`
}

// Answer relays an SDP answer.
type Answer struct {
	Answer    SDPPayload `json:"answer"`
	PartnerID string     `json:"partnerId"`
}

// ICE relays one ICE candidate.
type ICE struct {
	Candidate ICECandidatePayload `json:"candidate"`
	PartnerID string              `json:"partnerId"`
}

// Next ends the current pairing and re-queues.
type Next struct {
	Nickname string `json:"nickname"`
}

// PartnerDisconnected tells the client its partner left. The server has
// already re-queued it.
type PartnerDisconnected struct{}

func (FindPartner) Type() MessageType         { return TypeFindPartner }
func (Waiting) Type() MessageType             { return TypeWaiting }
func (Matched) Type() MessageType             { return TypeMatched }
func (Offer) Type() MessageType               { return TypeOffer }
func (Answer) Type() MessageType              { return TypeAnswer }
func (ICE) Type() MessageType                 { return TypeICE }
func (Next) Type() MessageType                { return TypeNext }
func (PartnerDisconnected) Type() MessageType { return TypePartnerDisconnected }
