// Package signal implements the matchmaking signaling link: a single
// WebSocket to <api>/match carrying JSON messages with a "type" field.
package signal

import (
	"encoding/json"
	"fmt"
	"net/url"

	"randomvoice/native/internal/domain"
)

// Encode marshals msg as a JSON object with its "type" discriminator first.
func Encode(msg domain.Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("encode: nil message")
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type(), err)
	}
	typ, err := json.Marshal(msg.Type())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type(), err)
	}

	out := make([]byte, 0, len(body)+len(typ)+10)
	out = append(out, `{"type":`...)
	out = append(out, typ...)
	if len(body) > 2 {
		out = append(out, ',')
		out = append(out, body[1:]...)
	} else {
		out = append(out, '}')
	}
	return out, nil
}

// Decode parses one frame. Any frame that is not a complete, known message
// yields an error wrapping domain.ErrMalformedFrame.
func Decode(data []byte) (domain.Message, error) {
	var env struct {
		Type domain.MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedFrame, err)
	}

	switch env.Type {
	case domain.TypeFindPartner:
		return decode[domain.FindPartner](data, nil)
	case domain.TypeWaiting:
		return decode[domain.Waiting](data, nil)
	case domain.TypeMatched:
		return decode(data, func(m domain.Matched) bool { return m.PartnerID != "" })
	case domain.TypeOffer:
		return decode(data, func(m domain.Offer) bool { return m.Offer.SDP != "" })
	case domain.TypeAnswer:
		return decode(data, func(m domain.Answer) bool { return m.Answer.SDP != "" })
	case domain.TypeICE:
		return decode[domain.ICE](data, nil)
	case domain.TypeNext:
		return decode[domain.Next](data, nil)
	case domain.TypePartnerDisconnected:
		return domain.PartnerDisconnected{}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", domain.ErrMalformedFrame)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", domain.ErrMalformedFrame, env.Type)
	}
}

// decode unmarshals data as T and checks the required payload with valid.
func decode[T domain.Message](data []byte, valid func(T) bool) (domain.Message, error) {
	var m T
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedFrame, m.Type(), err)
	}
	if valid != nil && !valid(m) {
		return nil, fmt.Errorf("%w: %s: missing required payload", domain.ErrMalformedFrame, m.Type())
	}
	return m, nil
}

// MatchEndpoint derives the matchmaking WebSocket URL from the API base.
// http and https bases are mapped to ws and wss.
func MatchEndpoint(api string) (string, error) {
	u, err := url.Parse(api)
	if err != nil {
		return "", fmt.Errorf("parse api url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("parse api url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("parse api url: missing host")
	}
	return u.JoinPath("match").String(), nil
}
