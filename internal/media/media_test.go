package media

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"randomvoice/native/internal/domain"
)

// fakeTrack yields a fixed list of packets, then io.EOF.
type fakeTrack struct {
	packets []*rtp.Packet
	next    int
}

func (f *fakeTrack) ID() string       { return "audio" }
func (f *fakeTrack) StreamID() string { return "partner" }
func (f *fakeTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	if f.next >= len(f.packets) {
		return nil, nil, io.EOF
	}
	p := f.packets[f.next]
	f.next++
	return p, nil, nil
}

// fakePlayer fails Play while blocked is set.
type fakePlayer struct {
	blocked bool
	plays   int
	stops   int
}

func (f *fakePlayer) Play(domain.RemoteTrack) error {
	f.plays++
	if f.blocked {
		return errors.New("output not writable")
	}
	return nil
}

func (f *fakePlayer) Stop() { f.stops++ }

func TestUDPSource_AcquireAndStop(t *testing.T) {
	var releases atomic.Int32
	src := &UDPSource{Addr: "127.0.0.1:0", OnRelease: func() { releases.Add(1) }}

	stream, err := src.Acquire(context.Background())
	require.NoError(t, err)
	require.Len(t, stream.Tracks(), 1)
	assert.Equal(t, "audio", stream.Tracks()[0].Kind().String())

	stream.Stop()
	stream.Stop()
	assert.Equal(t, int32(1), releases.Load())
}

func TestUDPSource_AddressInUse(t *testing.T) {
	first := &UDPSource{Addr: "127.0.0.1:0"}
	stream, err := first.Acquire(context.Background())
	require.NoError(t, err)
	defer stream.Stop()

	second := &UDPSource{Addr: stream.(*udpStream).conn.LocalAddr().String()}
	_, err = second.Acquire(context.Background())
	assert.ErrorIs(t, err, domain.ErrDeviceUnavailable)
}

func TestClassifyListenError(t *testing.T) {
	assert.ErrorIs(t, classifyListenError(os.ErrPermission), domain.ErrPermissionDenied)
	assert.ErrorIs(t, classifyListenError(errors.New("no such device")), domain.ErrDeviceUnavailable)
}

func TestOggPlayer_BlockedOutput(t *testing.T) {
	p := NewOggPlayer(filepath.Join(t.TempDir(), "missing", "partner.ogg"))
	err := p.Play(&fakeTrack{})
	assert.ErrorIs(t, err, domain.ErrPlaybackBlocked)
	p.Stop()
}

func TestOggPlayer_PlayAndStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partner.ogg")
	p := NewOggPlayer(path)

	require.NoError(t, p.Play(&fakeTrack{}))
	assert.ErrorIs(t, p.Play(&fakeTrack{}), domain.ErrPlaybackBlocked)
	p.Stop()
	p.Stop()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	require.NoError(t, p.Play(&fakeTrack{}))
	p.Stop()
}

func TestRecovery_BlockedThenResumed(t *testing.T) {
	player := &fakePlayer{blocked: true}
	r := NewRecovery(player)

	err := r.Start(&fakeTrack{})
	assert.ErrorIs(t, err, domain.ErrPlaybackBlocked)
	assert.True(t, r.Blocked())

	assert.ErrorIs(t, r.Resume(), domain.ErrPlaybackBlocked)
	assert.True(t, r.Blocked())

	player.blocked = false
	require.NoError(t, r.Resume())
	assert.False(t, r.Blocked())
	assert.Equal(t, 3, player.plays)

	r.Reset()
	assert.Equal(t, 1, player.stops)
}

func TestRecovery_ResumeWithoutBlockIsNoop(t *testing.T) {
	player := &fakePlayer{}
	r := NewRecovery(player)

	require.NoError(t, r.Resume())
	assert.Equal(t, 0, player.plays)

	require.NoError(t, r.Start(&fakeTrack{}))
	require.NoError(t, r.Resume())
	assert.Equal(t, 1, player.plays)
}

func TestRecovery_ResetBlockedDoesNotStop(t *testing.T) {
	player := &fakePlayer{blocked: true}
	r := NewRecovery(player)
	_ = r.Start(&fakeTrack{})

	r.Reset()
	assert.False(t, r.Blocked())
	assert.Equal(t, 0, player.stops)
	require.NoError(t, r.Resume())
	assert.Equal(t, 1, player.plays)
}
