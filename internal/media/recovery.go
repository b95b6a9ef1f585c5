package media

import (
	"errors"
	"fmt"

	"randomvoice/native/internal/domain"
)

// Recovery starts playback of the first remote track and, when playback is
// blocked, keeps the track so a user action can retry it. It never touches
// negotiation state.
type Recovery struct {
	player  domain.Player
	track   domain.RemoteTrack
	blocked bool
}

// NewRecovery wraps player.
func NewRecovery(player domain.Player) *Recovery {
	return &Recovery{player: player}
}

// Start attempts playback of track. On failure the track is kept and the
// error, wrapping domain.ErrPlaybackBlocked, is returned.
func (r *Recovery) Start(track domain.RemoteTrack) error {
	r.track = track
	return r.attempt()
}

// Resume retries a blocked playback. Resuming when nothing is blocked is a
// no-op.
func (r *Recovery) Resume() error {
	if !r.blocked || r.track == nil {
		return nil
	}
	return r.attempt()
}

// Blocked reports whether a remote track is waiting for Resume.
func (r *Recovery) Blocked() bool { return r.blocked }

// Reset stops playback and forgets the track.
func (r *Recovery) Reset() {
	if r.track != nil && !r.blocked {
		r.player.Stop()
	}
	r.track = nil
	r.blocked = false
}

func (r *Recovery) attempt() error {
	if err := r.player.Play(r.track); err != nil {
		r.blocked = true
		if errors.Is(err, domain.ErrPlaybackBlocked) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrPlaybackBlocked, err)
	}
	r.blocked = false
	return nil
}
