package mysql

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// S6: closing the writer side with nothing sent yields a clean EOF.
func TestNextCleanEOF(t *testing.T) {
	lb := pipePair()
	defer lb.close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		require.NoError(t, lb.writer.Flush())
		lb.closeWriteSide()
	}()

	_, _, err := lb.reader.Next()
	assert.ErrorIs(t, err, io.EOF)
	wg.Wait()
}

// S7: a truncated frame followed by stream close yields unexpected EOF
// with the dangling byte count.
func TestNextUnexpectedEOF(t *testing.T) {
	r, w := io.Pipe()
	reader := NewPacketReader(r)

	go func() {
		_, _ = w.Write([]byte{0x05, 0, 0, 0, 0x10, 0x20})
		_ = w.Close()
	}()

	_, _, err := reader.Next()
	var eofErr *UnexpectedEOFError
	require.ErrorAs(t, err, &eofErr)
	assert.Equal(t, 6, eofErr.Dangling)
}

// Invariants 1 and 2: every enqueued payload round-trips byte-exactly and
// in order, sequence numbers matching the writer's terminator packets.
func TestRoundTripOrderedSequence(t *testing.T) {
	lb := pipePair()
	defer lb.close()

	payloads := [][]byte{
		[]byte("select 1"),
		bytes.Repeat([]byte{0x7}, 1000),
		{},
		bytes.Repeat([]byte{0x9}, 70000),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, p := range payloads {
			lb.writer.EnqueuePacket(append([]byte(nil), p...))
		}
		require.NoError(t, lb.writer.Flush())
		lb.closeWriteSide()
	}()

	var gotSeqs []uint8
	for i := range payloads {
		seq, payload, err := lb.reader.Next()
		require.NoError(t, err)
		assert.Equal(t, payloads[i], payload)
		gotSeqs = append(gotSeqs, seq)
	}
	for i := 1; i < len(gotSeqs); i++ {
		assert.Equal(t, gotSeqs[i-1]+1, gotSeqs[i])
	}
	wg.Wait()
}

// S5: mixed enqueue + unbuffered write round trip, twice over, covering
// every boundary condition named in spec.md.
func TestRoundTripMixedEnqueueAndWritePacket(t *testing.T) {
	lb := pipePair()
	defer lb.close()

	payloads := [][]byte{
		bytes.Repeat([]byte{0x30}, 245),
		bytes.Repeat([]byte{0x31}, 2*U24Max),
		bytes.Repeat([]byte{0x32}, U24Max+100),
		bytes.Repeat([]byte{0x33}, 100),
		bytes.Repeat([]byte{0x34}, U24Max-1),
		bytes.Repeat([]byte{0x35}, U24Max),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, p := range payloads {
			lb.writer.EnqueuePacket(append([]byte(nil), p...))
		}
		require.NoError(t, lb.writer.WriteQueuedPackets())

		for _, p := range payloads {
			require.NoError(t, lb.writer.WritePacket(p))
		}
		require.NoError(t, lb.writer.Flush())
		lb.closeWriteSide()
	}()

	for round := 0; round < 2; round++ {
		for _, want := range payloads {
			_, got, err := lb.reader.Next()
			require.NoError(t, err)
			assert.True(t, bytes.Equal(want, got))
		}
	}

	_, _, err := lb.reader.Next()
	assert.ErrorIs(t, err, io.EOF)
	wg.Wait()
}

func TestNextAliasedPayloadLifetime(t *testing.T) {
	lb := pipePair()
	defer lb.close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		lb.writer.EnqueuePacket([]byte("first"))
		lb.writer.EnqueuePacket([]byte("second"))
		require.NoError(t, lb.writer.Flush())
		lb.closeWriteSide()
	}()

	_, first, err := lb.reader.Next()
	require.NoError(t, err)
	firstCopy := append([]byte(nil), first...)

	_, second, err := lb.reader.Next()
	require.NoError(t, err)

	// first may have been invalidated by the second Next call; compare
	// against the copy taken before that call, not the live alias.
	assert.Equal(t, []byte("first"), firstCopy)
	assert.Equal(t, []byte("second"), second)
	wg.Wait()
}
