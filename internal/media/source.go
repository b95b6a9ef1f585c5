// Package media provides the call's local capture stream and the playback
// of the partner's audio.
package media

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"syscall"

	"github.com/pion/rtp"
	pion "github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"randomvoice/native/internal/domain"
)

// UDPSource captures audio as RTP/Opus packets arriving on a local UDP
// address, e.g. from
//
//	ffmpeg -f pulse -i default -c:a libopus -f rtp rtp://127.0.0.1:5004
//
// Every Acquire opens the socket anew; the returned stream owns it.
type UDPSource struct {
	Addr string
	// OnRelease is called once for every stream that is stopped.
	OnRelease func()
}

// Acquire binds the capture address and starts forwarding packets into an
// Opus track.
func (s *UDPSource) Acquire(ctx context.Context) (domain.LocalStream, error) {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", s.Addr)
	if err != nil {
		return nil, classifyListenError(err)
	}

	track, err := pion.NewTrackLocalStaticRTP(
		pion.RTPCodecCapability{MimeType: pion.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio",
		"randomvoice",
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: create track: %v", domain.ErrDeviceUnavailable, err)
	}

	st := &udpStream{
		conn:      conn,
		track:     track,
		onRelease: s.OnRelease,
		done:      make(chan struct{}),
		log:       log.With().Str("component", "media").Str("capture", conn.LocalAddr().String()).Logger(),
	}
	go st.forward()

	st.log.Info().Msg("capture opened")
	return st, nil
}

func classifyListenError(err error) error {
	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
		return fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, err)
}

type udpStream struct {
	conn      net.PacketConn
	track     *pion.TrackLocalStaticRTP
	onRelease func()
	done      chan struct{}
	once      sync.Once
	log       zerolog.Logger
}

func (s *udpStream) Tracks() []pion.TrackLocal {
	return []pion.TrackLocal{s.track}
}

// Stop closes the capture socket. Only the first call releases it.
func (s *udpStream) Stop() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
		s.log.Info().Msg("capture released")
		if s.onRelease != nil {
			s.onRelease()
		}
	})
}

func (s *udpStream) forward() {
	buf := make([]byte, 1500)
	for {
		n, _, err := s.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-s.done:
			default:
				s.log.Warn().Err(err).Msg("capture read")
			}
			return
		}

		var pkt rtp.Packet
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			s.log.Debug().Err(err).Msg("dropping non-RTP datagram")
			continue
		}
		if err := s.track.WriteRTP(&pkt); err != nil {
			s.log.Debug().Err(err).Msg("track write")
		}
	}
}
