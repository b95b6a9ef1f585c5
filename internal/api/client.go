// Package api fetches relay credentials from a TURN credential endpoint,
// such as the one metered.ca serves for its relay.metered.ca servers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"randomvoice/native/internal/domain"
)

const defaultTimeout = 10 * time.Second

// Client fetches ICE server lists over HTTP.
type Client struct {
	http *http.Client
	log  zerolog.Logger
}

// NewClient creates an API client. A nil httpClient uses a client with a
// ten second timeout.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		http: httpClient,
		log:  log.With().Str("component", "api").Logger(),
	}
}

// FetchICEServers GETs url and decodes a JSON array of
// {"urls","username","credential"} objects, or an object wrapping it as
// "iceServers".
func (c *Client) FetchICEServers(ctx context.Context, url string) ([]domain.ICEServer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	servers, err := decodeServers(body)
	if err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(servers) == 0 {
		return nil, fmt.Errorf("response lists no ice servers")
	}

	c.log.Info().Int("servers", len(servers)).Msg("fetched ice servers")
	return servers, nil
}

func decodeServers(body []byte) ([]domain.ICEServer, error) {
	var list []domain.ICEServer
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		ICEServers []domain.ICEServer `json:"iceServers"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.ICEServers, nil
}
