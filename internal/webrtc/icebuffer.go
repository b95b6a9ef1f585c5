package webrtc

import (
	"errors"

	"randomvoice/native/internal/domain"
)

// CandidateBuffer holds ICE candidates that cannot be applied yet, in
// arrival order. It is owned by one peer session and is not safe for
// concurrent use.
type CandidateBuffer struct {
	pending []domain.ICECandidatePayload
}

// Enqueue appends c.
func (b *CandidateBuffer) Enqueue(c domain.ICECandidatePayload) {
	b.pending = append(b.pending, c)
}

// Drain calls apply once per buffered candidate in FIFO order, then clears
// the buffer. Every candidate is attempted; failures are joined.
func (b *CandidateBuffer) Drain(apply func(domain.ICECandidatePayload) error) error {
	pending := b.pending
	b.pending = nil

	var errs []error
	for _, c := range pending {
		if err := apply(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every buffered candidate and returns how many there were.
// Only session teardown discards.
func (b *CandidateBuffer) Discard() int {
	n := len(b.pending)
	b.pending = nil
	return n
}

func (b *CandidateBuffer) Len() int      { return len(b.pending) }
func (b *CandidateBuffer) IsEmpty() bool { return len(b.pending) == 0 }

// candidateGate applies remote candidates only once the remote description
// is set, buffering the ones that arrive earlier.
type candidateGate struct {
	open   bool
	closed bool
	buf    CandidateBuffer
	apply  func(domain.ICECandidatePayload) error
}

// Add applies c immediately when the gate is open and buffers it otherwise.
func (g *candidateGate) Add(c domain.ICECandidatePayload) error {
	if g.closed {
		return domain.ErrStaleNegotiation
	}
	if !g.open {
		g.buf.Enqueue(c)
		return nil
	}
	return g.apply(c)
}

// Open drains the buffer and lets later candidates through. Opening an open
// gate is a no-op.
func (g *candidateGate) Open() error {
	if g.open || g.closed {
		return nil
	}
	g.open = true
	return g.buf.Drain(g.apply)
}

// Close discards buffered candidates; later candidates are rejected.
func (g *candidateGate) Close() int {
	g.open = false
	g.closed = true
	return g.buf.Discard()
}
