package mysql

import (
	"io"

	"github.com/pkg/errors"
)

// defaultReadChunk is the minimum length the reader's scratch buffer grows
// to before each underlying read, matching the growth floor used throughout
// the rest of the pack's buffered-reader code.
const defaultReadChunk = 4096

// PacketReader assembles logical MySQL messages out of the on-wire packets
// read from r, handling fragmentation at the U24Max boundary and asserting
// the protocol's sequence discipline.
//
// A PacketReader is not safe for concurrent use: it is a single-threaded
// state machine meant to be driven by one goroutine, the same way a
// PacketWriter owns the other half of the connection (see package doc).
type PacketReader struct {
	r io.Reader

	buf       []byte
	start     int
	remaining int
}

// NewPacketReader wraps r, an arbitrary byte source, in a PacketReader.
func NewPacketReader(r io.Reader) *PacketReader {
	return &PacketReader{r: r}
}

// Next returns the next logical message from the stream: its terminating
// packet's sequence number and its reassembled payload.
//
// Next returns io.EOF when the stream ends cleanly between messages. It
// returns a *UnexpectedEOFError if the stream closes mid-message, and a
// *FramingError if adjacent fragments carry non-consecutive sequence
// numbers; both are fatal; the connection must be closed. Any other
// non-nil error is a wrapped error from the underlying reader.
//
// The returned payload may alias the reader's internal scratch buffer
// (this is always true when the message was a single packet). That
// aliasing is only valid until the next call to Next: callers that need
// to retain the payload past that point must copy it first.
func (pr *PacketReader) Next() (seq uint8, payload []byte, err error) {
	pr.start = len(pr.buf) - pr.remaining
	if pr.start < 0 || pr.start > len(pr.buf) {
		return 0, nil, &indexError{data: "buf", index: pr.start, length: len(pr.buf)}
	}

	for {
		if pr.remaining > 0 {
			s, p, rest, perr := parseMessage(pr.buf[pr.start:])
			if perr == nil {
				pr.remaining = len(rest)
				return s, p, nil
			}
			if perr != errNeedMoreData {
				return 0, nil, perr
			}
			// needs-more-data: fall through and read more.
		}

		// Compact: discard [0, start) so new data lands at buf[len(buf):].
		pr.buf = append(pr.buf[:0], pr.buf[pr.start:]...)
		pr.start = 0

		end := len(pr.buf)
		newLen := end * 2
		if newLen < defaultReadChunk {
			newLen = defaultReadChunk
		}
		if cap(pr.buf) < newLen {
			grown := make([]byte, newLen)
			copy(grown, pr.buf)
			pr.buf = grown
		} else {
			pr.buf = pr.buf[:newLen]
		}

		if end > len(pr.buf) || newLen > len(pr.buf) {
			return 0, nil, &indexError{data: "buf", index: newLen, length: len(pr.buf)}
		}

		n, rerr := pr.r.Read(pr.buf[end:newLen])
		pr.buf = pr.buf[:end+n]
		pr.remaining = len(pr.buf)

		if rerr != nil && rerr != io.EOF {
			return 0, nil, errors.WithStack(rerr)
		}

		if n == 0 {
			if len(pr.buf) == 0 {
				return 0, nil, io.EOF
			}
			return 0, nil, &UnexpectedEOFError{Dangling: len(pr.buf)}
		}
	}
}
