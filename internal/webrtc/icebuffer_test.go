package webrtc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"randomvoice/native/internal/domain"
)

func candidates(n int) []domain.ICECandidatePayload {
	out := make([]domain.ICECandidatePayload, n)
	for i := range out {
		out[i] = domain.ICECandidatePayload{Candidate: fmt.Sprintf("candidate:%d", i)}
	}
	return out
}

func TestCandidateBuffer_DrainFIFO(t *testing.T) {
	var b CandidateBuffer
	assert.True(t, b.IsEmpty())

	in := candidates(3)
	for _, c := range in {
		b.Enqueue(c)
	}
	assert.Equal(t, 3, b.Len())

	var applied []domain.ICECandidatePayload
	require.NoError(t, b.Drain(func(c domain.ICECandidatePayload) error {
		applied = append(applied, c)
		return nil
	}))
	assert.Equal(t, in, applied)
	assert.True(t, b.IsEmpty())
}

func TestCandidateBuffer_DrainAttemptsAll(t *testing.T) {
	var b CandidateBuffer
	for _, c := range candidates(3) {
		b.Enqueue(c)
	}

	boom := errors.New("boom")
	calls := 0
	err := b.Drain(func(c domain.ICECandidatePayload) error {
		calls++
		if c.Candidate == "candidate:1" {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
	assert.True(t, b.IsEmpty())
}

func TestCandidateBuffer_DrainEmpty(t *testing.T) {
	var b CandidateBuffer
	called := false
	assert.NoError(t, b.Drain(func(domain.ICECandidatePayload) error {
		called = true
		return nil
	}))
	assert.False(t, called)
}

func TestCandidateBuffer_Discard(t *testing.T) {
	var b CandidateBuffer
	for _, c := range candidates(2) {
		b.Enqueue(c)
	}
	assert.Equal(t, 2, b.Discard())
	assert.True(t, b.IsEmpty())
	assert.Equal(t, 0, b.Discard())
}

// Every split of a candidate sequence into before-open and after-open
// arrivals must apply each candidate exactly once in arrival order.
func TestCandidateGate_EverySplitPreservesOrder(t *testing.T) {
	in := candidates(5)
	for split := 0; split <= len(in); split++ {
		t.Run(fmt.Sprintf("split=%d", split), func(t *testing.T) {
			var applied []domain.ICECandidatePayload
			g := candidateGate{apply: func(c domain.ICECandidatePayload) error {
				applied = append(applied, c)
				return nil
			}}

			for _, c := range in[:split] {
				require.NoError(t, g.Add(c))
			}
			assert.Len(t, applied, 0)
			require.NoError(t, g.Open())
			for _, c := range in[split:] {
				require.NoError(t, g.Add(c))
			}

			assert.Equal(t, in, applied)
			assert.Equal(t, 0, g.buf.Len())
		})
	}
}

func TestCandidateGate_OpenTwice(t *testing.T) {
	calls := 0
	g := candidateGate{apply: func(domain.ICECandidatePayload) error {
		calls++
		return nil
	}}
	require.NoError(t, g.Add(candidates(1)[0]))
	require.NoError(t, g.Open())
	require.NoError(t, g.Open())
	assert.Equal(t, 1, calls)
}

func TestCandidateGate_CloseDiscardsAndRejects(t *testing.T) {
	calls := 0
	g := candidateGate{apply: func(domain.ICECandidatePayload) error {
		calls++
		return nil
	}}
	for _, c := range candidates(2) {
		require.NoError(t, g.Add(c))
	}

	assert.Equal(t, 2, g.Close())
	assert.ErrorIs(t, g.Add(candidates(1)[0]), domain.ErrStaleNegotiation)
	assert.NoError(t, g.Open())
	assert.Equal(t, 0, calls)
}
