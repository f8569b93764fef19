package mysql

import (
	"fmt"

	"github.com/pkg/errors"
)

// errNeedMoreData signals that the scratch buffer in front of a parser does
// not yet hold a complete packet. It is a retry signal internal to this
// package: PacketReader.Next never returns it to its caller.
var errNeedMoreData = errors.New("mysql: need more data")

// FramingError reports that two packet fragments belonging to the same
// logical message did not carry consecutive sequence numbers. The
// connection's sequence invariant has been lost; the caller must close it.
type FramingError struct {
	Expected uint8
	Actual   uint8
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("mysql: framing error: expected sequence %d, got %d", e.Expected, e.Actual)
}

// UnexpectedEOFError reports that the underlying stream closed with a
// partial packet buffered. Dangling is the number of bytes that had been
// read but could not form a complete message.
type UnexpectedEOFError struct {
	Dangling int
}

func (e *UnexpectedEOFError) Error() string {
	return fmt.Sprintf("mysql: unexpected EOF with %d dangling byte(s)", e.Dangling)
}

// indexError is a defensive error for internal slicing that should be
// unreachable in a correct implementation. It exists purely to aid
// debugging if an invariant is ever violated; a correct caller will never
// observe it.
type indexError struct {
	data   string
	index  int
	length int
}

func (e *indexError) Error() string {
	return fmt.Sprintf("mysql: index %d out of range for %s of length %d", e.index, e.data, e.length)
}
