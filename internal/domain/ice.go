package domain

import (
	"encoding/json"
	"fmt"
)

// ICEServer holds STUN/TURN server configuration.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// UnmarshalJSON accepts "urls" either as a single string or as a list, as
// browser RTCIceServer configs do.
func (s *ICEServer) UnmarshalJSON(data []byte) error {
	var raw struct {
		URLs       json.RawMessage `json:"urls"`
		Username   string          `json:"username"`
		Credential string          `json:"credential"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var urls []string
	switch {
	case len(raw.URLs) == 0:
		return fmt.Errorf("ice server: missing urls")
	case raw.URLs[0] == '"':
		var u string
		if err := json.Unmarshal(raw.URLs, &u); err != nil {
			return fmt.Errorf("ice server urls: %w", err)
		}
		urls = []string{u}
	default:
		if err := json.Unmarshal(raw.URLs, &urls); err != nil {
			return fmt.Errorf("ice server urls: %w", err)
		}
	}
	if len(urls) == 0 {
		return fmt.Errorf("ice server: empty urls")
	}

	s.URLs = urls
	s.Username = raw.Username
	s.Credential = raw.Credential
	return nil
}

// DefaultICEServers are the public reflexive servers used when none are
// configured.
func DefaultICEServers() []ICEServer {
	return []ICEServer{
		{URLs: []string{"stun:stun.relay.metered.ca:80"}},
		{URLs: []string{"stun:stun.l.google.com:19302"}},
	}
}
