package mysql

import "github.com/pkg/errors"

// U24Max is the largest value representable by a little-endian 3-byte
// unsigned integer, and therefore the largest payload a single on-wire
// packet can carry. A packet whose payload is exactly this long is a
// continuation: the logical message carries on into the next packet.
const U24Max = 16_777_215

// packetHeaderLen is the size of the 4-byte header that precedes every
// on-wire packet: a little-endian u24 length followed by a one-byte,
// wraparound sequence number.
const packetHeaderLen = 4

// errNotContinuation signals that parseFullPacket's 3-byte tag did not
// match 0xFF,0xFF,0xFF: the packet in front of the cursor is a terminator,
// not a continuation. It is distinct from errNeedMoreData (ambiguous,
// not enough bytes buffered yet to tell) and, like it, never escapes this
// package.
var errNotContinuation = errors.New("mysql: not a continuation packet")

// parseOnePacket reads a single on-wire packet (any length, including
// U24Max) from the front of b. It returns the packet's sequence number,
// a payload slice that aliases b, and the remaining unconsumed bytes of b.
//
// It returns errNeedMoreData, never a fatal error, when b does not yet
// hold a complete header and payload.
func parseOnePacket(b []byte) (seq uint8, payload, rest []byte, err error) {
	if len(b) < packetHeaderLen {
		return 0, nil, nil, errNeedMoreData
	}
	length := readLen3(b[:3])
	if len(b) < packetHeaderLen+length {
		return 0, nil, nil, errNeedMoreData
	}
	seq = b[3]
	payload = b[packetHeaderLen : packetHeaderLen+length]
	rest = b[packetHeaderLen+length:]
	return seq, payload, rest, nil
}

// parseFullPacket behaves like parseOnePacket but only matches a
// continuation packet, i.e. one whose 3-byte length field is exactly
// 0xFF, 0xFF, 0xFF (U24Max). It returns errNeedMoreData when b is too
// short to even read the tag, errNotContinuation when the tag is present
// but doesn't match, and otherwise delegates to parseOnePacket (which may
// itself report errNeedMoreData if the U24Max-byte payload isn't fully
// buffered yet).
func parseFullPacket(b []byte) (seq uint8, payload, rest []byte, err error) {
	if len(b) < 3 {
		return 0, nil, nil, errNeedMoreData
	}
	if b[0] != 0xff || b[1] != 0xff || b[2] != 0xff {
		return 0, nil, nil, errNotContinuation
	}
	return parseOnePacket(b)
}

// parseMessage consumes zero or more continuation packets followed by
// exactly one terminator packet, reassembling the logical payload they
// carry. The sequence of each continuation must be one more than the
// previous fragment's, and the terminator's sequence must be one more
// than the last continuation's (or, absent continuations, it is taken
// as-is). The returned sequence is always the terminator's.
//
// When the message is a single packet, payload aliases b and no copy is
// made. When continuations are present, payload is a freshly allocated,
// exactly-sized buffer holding their concatenation — the only place the
// read path copies payload bytes out of the reader's scratch buffer.
//
// parseMessage returns errNeedMoreData when b does not yet hold a full
// message; it never partially consumes b in that case, so callers may
// retry it from scratch once more bytes have arrived. A sequence gap
// between adjacent fragments is returned as a *FramingError, which is
// fatal.
func parseMessage(b []byte) (seq uint8, payload, rest []byte, err error) {
	cur := b
	nFull := 0
	fullLen := 0
	prevSeq := uint8(0)

	// First pass: walk the continuation packets without copying, so the
	// owned buffer (if any) can be allocated exactly once, sized exactly.
	for {
		s, p, r, perr := parseFullPacket(cur)
		if perr == errNotContinuation {
			break
		}
		if perr != nil {
			return 0, nil, nil, perr
		}
		if nFull > 0 && s != prevSeq+1 {
			return 0, nil, nil, &FramingError{Expected: prevSeq + 1, Actual: s}
		}
		nFull++
		fullLen += len(p)
		prevSeq = s
		cur = r
	}

	termSeq, termPayload, termRest, terr := parseOnePacket(cur)
	if terr != nil {
		return 0, nil, nil, terr
	}
	if nFull > 0 && termSeq != prevSeq+1 {
		return 0, nil, nil, &FramingError{Expected: prevSeq + 1, Actual: termSeq}
	}

	if nFull == 0 {
		// Single packet: borrow directly from b, no allocation.
		return termSeq, termPayload, termRest, nil
	}

	owned := make([]byte, 0, fullLen+len(termPayload))
	cur = b
	for i := 0; i < nFull; i++ {
		_, p, r, _ := parseOnePacket(cur)
		owned = append(owned, p...)
		cur = r
	}
	owned = append(owned, termPayload...)
	return termSeq, owned, termRest, nil
}
