package mysql

import (
	"bufio"
	"io"
)

// bufioSink adapts a bufio.Writer to the Sink interface, the same shape
// the teacher's Conn uses over a net.Conn.
type bufioSink struct {
	*bufio.Writer
}

func newBufioSink(w io.Writer) bufioSink {
	return bufioSink{bufio.NewWriterSize(w, 16*1024)}
}

// loopback is a connected PacketWriter/PacketReader pair wired over an
// in-memory io.Pipe, the way a PacketWriter/PacketReader pair would sit
// on either half of a split TCP connection.
type loopback struct {
	writer *PacketWriter
	reader *PacketReader
	pw     *io.PipeWriter
	pr     *io.PipeReader
}

func pipePair() *loopback {
	r, w := io.Pipe()
	return &loopback{
		writer: NewPacketWriter(newBufioSink(w)),
		reader: NewPacketReader(r),
		pw:     w,
		pr:     r,
	}
}

// closeWriteSide closes the writer's pipe end, which the reader observes
// as clean end-of-stream once it has drained everything sent so far.
func (lb *loopback) closeWriteSide() { _ = lb.pw.Close() }

func (lb *loopback) close() {
	_ = lb.pw.Close()
	_ = lb.pr.Close()
}
