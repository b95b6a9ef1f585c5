package media

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"randomvoice/native/internal/domain"
)

// OggPlayer writes the partner's Opus audio to an Ogg file, which any
// player can follow while it grows.
type OggPlayer struct {
	Path string

	mu     sync.Mutex
	writer *oggwriter.OggWriter
	log    zerolog.Logger
}

// NewOggPlayer creates a player writing to path.
func NewOggPlayer(path string) *OggPlayer {
	return &OggPlayer{
		Path: path,
		log:  log.With().Str("component", "media").Str("playback", path).Logger(),
	}
}

// Play opens the output and copies track into it until the track ends.
// Failing to open the output is reported as domain.ErrPlaybackBlocked.
func (p *OggPlayer) Play(track domain.RemoteTrack) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writer != nil {
		return fmt.Errorf("%w: already playing", domain.ErrPlaybackBlocked)
	}

	w, err := oggwriter.New(p.Path, 48000, 2)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPlaybackBlocked, err)
	}
	p.writer = w

	go p.copy(track, w)

	p.log.Info().Str("track", track.ID()).Msg("playback started")
	return nil
}

// Stop ends playback and closes the output.
func (p *OggPlayer) Stop() {
	p.mu.Lock()
	w := p.writer
	p.writer = nil
	p.mu.Unlock()

	if w == nil {
		return
	}
	if err := w.Close(); err != nil {
		p.log.Warn().Err(err).Msg("close playback output")
	}
	p.log.Info().Msg("playback stopped")
}

func (p *OggPlayer) copy(track domain.RemoteTrack, w *oggwriter.OggWriter) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.log.Debug().Err(err).Msg("remote track read")
			}
			return
		}

		p.mu.Lock()
		current := p.writer == w
		if current {
			err = w.WriteRTP(pkt)
		}
		p.mu.Unlock()

		if !current {
			return
		}
		if err != nil {
			p.log.Warn().Err(err).Msg("playback write")
			return
		}
	}
}
