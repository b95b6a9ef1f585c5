package signal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"randomvoice/native/internal/domain"
)

const defaultPingInterval = 25 * time.Second

// Option configures a Link.
type Option func(*Link)

// WithPingInterval sets the keepalive ping interval. Zero disables pings.
func WithPingInterval(d time.Duration) Option {
	return func(l *Link) { l.pingInterval = d }
}

// WithOnDown registers a callback fired once per connection when the remote
// side or the network closes it. A local Close never fires it.
func WithOnDown(fn func(error)) Option {
	return func(l *Link) { l.onDown = fn }
}

// WithDialer replaces the default WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(l *Link) { l.dialer = d }
}

// WithObserver registers a callback for every sent and delivered message.
func WithObserver(fn func(outbound bool, t domain.MessageType)) Option {
	return func(l *Link) { l.observe = fn }
}

// Link manages the WebSocket connection to the matchmaking server.
// A Link may be connected again after Close; each Connect starts a new
// connection and frames from an older one are never delivered.
type Link struct {
	handler      func(domain.Message)
	onDown       func(error)
	observe      func(outbound bool, t domain.MessageType)
	dialer       *websocket.Dialer
	pingInterval time.Duration
	log          zerolog.Logger

	mu  sync.Mutex
	cur *conn
}

// conn is one dialed connection.
type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	closed  chan struct{}
	once    sync.Once
}

// close reports whether this call was the one that closed c.
func (c *conn) close() bool {
	closedNow := false
	c.once.Do(func() {
		close(c.closed)
		closedNow = true
	})
	return closedNow
}

func (c *conn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// NewLink creates a signaling link that delivers decoded messages to handler,
// one per inbound frame, in arrival order.
func NewLink(handler func(domain.Message), opts ...Option) *Link {
	l := &Link{
		handler:      handler,
		dialer:       websocket.DefaultDialer,
		pingInterval: defaultPingInterval,
		log:          log.With().Str("component", "signal").Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Connect dials <api>/match and starts the read loop.
func (l *Link) Connect(ctx context.Context, api string) error {
	endpoint, err := MatchEndpoint(api)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	if l.IsOpen() {
		return domain.ErrLinkAlreadyOpen
	}

	l.log.Info().Str("endpoint", endpoint).Msg("connecting")

	ws, _, err := l.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: websocket dial: %v", domain.ErrTransport, err)
	}

	c := &conn{ws: ws, closed: make(chan struct{})}
	l.mu.Lock()
	l.cur = c
	l.mu.Unlock()

	go l.readLoop(c)
	if l.pingInterval > 0 {
		go l.pingLoop(c)
	}
	return nil
}

// IsOpen reports whether a connection is established and not closed.
func (l *Link) IsOpen() bool {
	c := l.current()
	return c != nil && !c.isClosed()
}

// Close shuts down the current connection. It is safe to call repeatedly.
func (l *Link) Close() error {
	c := l.current()
	if c == nil || !c.close() {
		return nil
	}

	c.writeMu.Lock()
	_ = c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()

	l.log.Info().Msg("closed")
	return c.ws.Close()
}

// Send writes msg to the server. When the link is not open the message is
// logged and dropped.
func (l *Link) Send(msg domain.Message) {
	c := l.current()
	if c == nil || c.isClosed() {
		l.log.Warn().Err(domain.ErrLinkNotOpen).Str("type", string(msg.Type())).Msg("dropping message")
		return
	}

	data, err := Encode(msg)
	if err != nil {
		l.log.Error().Err(err).Msg("encode")
		return
	}

	c.writeMu.Lock()
	err = c.ws.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		l.log.Error().Err(err).Str("type", string(msg.Type())).Msg("write")
		return
	}

	l.log.Debug().RawJSON("frame", data).Msg(">>>")
	if l.observe != nil {
		l.observe(true, msg.Type())
	}
}

func (l *Link) current() *conn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cur
}

func (l *Link) readLoop(c *conn) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !c.close() {
				return
			}
			c.ws.Close()
			l.log.Warn().Err(err).Msg("connection lost")
			if l.onDown != nil {
				l.onDown(fmt.Errorf("%w: %v", domain.ErrTransport, err))
			}
			return
		}

		if c.isClosed() {
			return
		}

		l.log.Debug().Bytes("frame", data).Msg("<<<")

		msg, err := Decode(data)
		if err != nil {
			l.log.Warn().Err(err).Msg("dropping frame")
			continue
		}

		if l.observe != nil {
			l.observe(false, msg.Type())
		}
		l.handler(msg)
	}
}

func (l *Link) pingLoop(c *conn) {
	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(
				websocket.PingMessage,
				[]byte{},
				time.Now().Add(5*time.Second),
			)
			c.writeMu.Unlock()
			if err != nil {
				if !c.isClosed() {
					l.log.Warn().Err(err).Msg("ping error")
				}
				return
			}
		}
	}
}
