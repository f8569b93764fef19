package mysql

import (
	"io"
	"net"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Sink is the byte-stream capability a PacketWriter writes to: a plain
// io.Writer plus an explicit Flush, the same shape as the teacher's
// WriteFlusher over a *bufio.Writer wrapping a net.Conn.
type Sink interface {
	io.Writer
	Flush() error
}

// queuedKind distinguishes the two ways a packet can be queued for write.
type queuedKind uint8

const (
	// queuedWithHeader entries own a 4-byte header and payload buffer the
	// writer built itself; their payload buffers are pool-eligible once
	// written.
	queuedWithHeader queuedKind = iota
	// queuedRaw entries are already-framed, caller-owned bytes (header
	// included) transmitted verbatim. They are never pooled: the writer
	// doesn't know whether any other holder still depends on them.
	queuedRaw
)

// queuedPacket is one entry in a PacketWriter's pending write queue.
type queuedPacket struct {
	kind    queuedKind
	header  [4]byte
	payload []byte
}

// PacketWriter fragments arbitrary-length payloads into on-wire MySQL
// packets, tags each with the protocol's wraparound sequence byte,
// batches them for a single vectored write, and recycles payload buffers
// through a bounded pool.
//
// A PacketWriter is not safe for concurrent use: like PacketReader, it is
// a single-threaded state machine meant to be driven by one goroutine.
type PacketWriter struct {
	w   Sink
	seq uint8

	queue        []queuedPacket
	preallocated []queuedPacket

	maxPoolRows        int
	maxPoolRowCapacity int

	log *zap.SugaredLogger
}

// NewPacketWriter wraps w, applying any Options given.
func NewPacketWriter(w Sink, opts ...Option) *PacketWriter {
	pw := &PacketWriter{
		w:                  w,
		maxPoolRows:        defaultMaxPoolRows,
		maxPoolRowCapacity: defaultMaxPoolRowCapacity,
	}
	for _, opt := range opts {
		opt(pw)
	}
	return pw
}

// SetSeq overwrites the sequence counter. The higher-level protocol
// handler calls this at message boundaries, e.g. when starting the
// response to a new command.
func (pw *PacketWriter) SetSeq(seq uint8) {
	pw.seq = seq
}

// QueueLen reports how many packets are currently queued, for
// backpressure heuristics and tests.
func (pw *PacketWriter) QueueLen() int {
	return len(pw.queue)
}

// EnqueuePacket frames payload into one or more on-wire packets and adds
// them to the pending write queue. payload's capacity is first shrunk
// toward the writer's pool row capacity (see WithMaxPoolRowCapacity),
// never below its length, so it can be pooled once written; ownership of
// payload passes to the writer.
func (pw *PacketWriter) EnqueuePacket(payload []byte) {
	payload = shrinkCapacity(payload, pw.maxPoolRowCapacity)

	for len(payload) >= U24Max {
		prefix := payload[:U24Max]
		rest := payload[U24Max:]

		var hdr [4]byte
		writeLen3(hdr[:3], U24Max)
		hdr[3] = pw.seq
		pw.seq++

		pw.queue = append(pw.queue, queuedPacket{kind: queuedWithHeader, header: hdr, payload: prefix})
		payload = rest
	}

	var hdr [4]byte
	writeLen3(hdr[:3], len(payload))
	hdr[3] = pw.seq
	pw.seq++
	pw.queue = append(pw.queue, queuedPacket{kind: queuedWithHeader, header: hdr, payload: payload})
}

// EnqueueRaw appends an already-framed, caller-owned byte slice to the
// write queue, to be transmitted verbatim.
//
// EnqueueRaw does NOT advance the sequence counter: it is a trust
// contract. The caller is responsible for having framed raw with correct
// sequence bytes of its own; this is the hand-off path for pre-encoded,
// possibly shared response templates (e.g. a cached OK packet), and the
// writer never inspects or mutates raw.
func (pw *PacketWriter) EnqueueRaw(raw []byte) {
	pw.queue = append(pw.queue, queuedPacket{kind: queuedRaw, payload: raw})
}

// GetBuffer pops a cleared, pool-eligible buffer off the pool for reuse
// by the caller's own payload-encoding layer, or returns a fresh empty
// buffer if the pool holds nothing usable. Raw entries encountered in the
// pool are discarded rather than returned.
func (pw *PacketWriter) GetBuffer() []byte {
	for len(pw.preallocated) > 0 {
		last := len(pw.preallocated) - 1
		p := pw.preallocated[last]
		pw.preallocated = pw.preallocated[:last]
		if p.kind == queuedRaw {
			continue
		}
		return p.payload[:0]
	}
	return nil
}

// WriteQueuedPackets submits every queued packet as a single vectored
// write, then returns their buffers to the pool. It does not flush the
// underlying sink.
func (pw *PacketWriter) WriteQueuedPackets() error {
	bufs := queuedPacketBuffers(pw.queue)
	if len(bufs) == 0 {
		return nil
	}
	if err := writeAllVectored(pw.w, bufs); err != nil {
		// The queue's buffers are dropped, not pooled: per spec, a write
		// failure leaves the writer in an undefined state and the
		// connection must be torn down by the caller.
		pw.queue = nil
		return err
	}
	pw.returnQueuedToPool()
	return nil
}

// WritePacket sends payload unbuffered, after first draining any already
// queued packets ahead of it so wire order matches enqueue order. If
// payload is U24Max bytes or longer it is fragmented via the large-packet
// path; otherwise it is sent as a single packet.
func (pw *PacketWriter) WritePacket(payload []byte) error {
	if len(payload) >= U24Max {
		return pw.writeLargePacket(payload)
	}

	bufs := queuedPacketBuffers(pw.queue)

	var hdr [4]byte
	writeLen3(hdr[:3], len(payload))
	hdr[3] = pw.seq
	bufs = append(bufs, hdr[:], payload)

	if err := writeAllVectored(pw.w, bufs); err != nil {
		return err
	}
	pw.seq++
	pw.returnQueuedToPool()
	return nil
}

// writeLargePacket handles payloads of U24Max bytes or more: it
// precomputes the full run of headers up front (floor(len/U24Max) full
// headers, plus one final header for the remainder — which is zero-length,
// and still emitted, when len is an exact multiple of U24Max) so each header can be
// referenced from the vectored write slice list without extra copying.
func (pw *PacketWriter) writeLargePacket(payload []byte) error {
	bufs := queuedPacketBuffers(pw.queue)

	remaining := len(payload)
	var headers [][4]byte
	for remaining >= U24Max {
		var hdr [4]byte
		writeLen3(hdr[:3], U24Max)
		hdr[3] = pw.seq
		pw.seq++
		headers = append(headers, hdr)
		remaining -= U24Max
	}
	var last [4]byte
	writeLen3(last[:3], remaining)
	last[3] = pw.seq
	pw.seq++
	headers = append(headers, last)

	rest := payload
	for _, hdr := range headers {
		h := hdr
		bufs = append(bufs, h[:])
		if len(rest) >= U24Max {
			bufs = append(bufs, rest[:U24Max])
			rest = rest[U24Max:]
		} else {
			bufs = append(bufs, rest)
		}
	}

	if err := writeAllVectored(pw.w, bufs); err != nil {
		return err
	}
	pw.returnQueuedToPool()
	return nil
}

// Flush submits any queued packets, then flushes the underlying sink.
// Callers must call Flush before dropping a PacketWriter, or trailing
// bytes queued but not yet submitted may be lost.
func (pw *PacketWriter) Flush() error {
	if err := pw.WriteQueuedPackets(); err != nil {
		return err
	}
	return errors.WithStack(pw.w.Flush())
}

// returnQueuedToPool clears pw.queue, recycling its buffers into
// pw.preallocated. It swaps the shorter container into the longer one to
// minimize copying (only the shorter one's entries are appended), then
// truncates to at most maxPoolRows total entries, preferring the
// just-written entries.
func (pw *PacketWriter) returnQueuedToPool() {
	swapped := len(pw.queue) > len(pw.preallocated)
	if swapped {
		pw.queue, pw.preallocated = pw.preallocated, pw.queue
	}
	// Entries already pooled only keep the rows the just-written ones
	// leave free.
	limit := pw.maxPoolRows
	if !swapped {
		limit -= len(pw.queue)
		if limit < 0 {
			limit = 0
		}
	}
	if len(pw.preallocated) > limit {
		pw.preallocated = pw.preallocated[:limit]
	}
	room := pw.maxPoolRows - len(pw.preallocated)
	if room < 0 {
		room = 0
	}
	if len(pw.queue) > room {
		pw.queue = pw.queue[:room]
	}
	pw.preallocated = append(pw.preallocated, pw.queue...)
	pw.queue = pw.queue[:0]

	// Only WithHeader buffers within maxPoolRowCapacity are retained; Raw
	// entries and oversized buffers are dropped. Every retained buffer is
	// cleared (length zero, capacity retained) so GetBuffer's callers
	// receive ready-to-use buffers without paying for the clear themselves.
	kept := pw.preallocated[:0]
	for _, p := range pw.preallocated {
		if p.kind != queuedWithHeader || cap(p.payload) > pw.maxPoolRowCapacity {
			continue
		}
		p.payload = p.payload[:0]
		kept = append(kept, p)
	}
	pw.preallocated = kept

	if pw.log != nil && len(pw.preallocated) == pw.maxPoolRows {
		pw.log.Debugw("mysql packet pool at capacity", "maxPoolRows", pw.maxPoolRows)
	}
}

// queuedPacketBuffers returns the net.Buffers slice list for queue: two
// entries (header, payload) for a WithHeader packet, one for a Raw packet.
func queuedPacketBuffers(queue []queuedPacket) net.Buffers {
	if len(queue) == 0 {
		return nil
	}
	bufs := make(net.Buffers, 0, len(queue)*2)
	for _, p := range queue {
		if p.kind == queuedRaw {
			bufs = append(bufs, p.payload)
			continue
		}
		hdr := p.header
		bufs = append(bufs, hdr[:], p.payload)
	}
	return bufs
}

// writeAllVectored submits bufs as a single vectored write, looping to
// completion: net.Buffers.WriteTo performs a real writev(2) when w is a
// *net.TCPConn/*net.UnixConn and falls back to looping individual Write
// calls otherwise, consuming bufs as it goes — this is the core's
// portable fallback for sinks that don't support scatter/gather, and it
// already handles a write_vectored call completing fewer bytes than
// requested, so no further looping is needed here.
func writeAllVectored(w io.Writer, bufs net.Buffers) error {
	_, err := bufs.WriteTo(w)
	return errors.WithStack(err)
}

// shrinkCapacity returns a slice with the same contents as b but capacity
// at most max(len(b), max), so it becomes eligible for the buffer pool
// without ever truncating b's own bytes. Capacity is never lowered below
// len(b): a payload longer than max simply isn't shrunk at all, the same
// floor Vec::shrink_to applies in the original. When b already satisfies
// the bound it is returned unchanged.
func shrinkCapacity(b []byte, max int) []byte {
	target := max
	if len(b) > target {
		target = len(b)
	}
	if cap(b) <= target {
		return b
	}
	shrunk := make([]byte, len(b), target)
	copy(shrunk, b)
	return shrunk
}
