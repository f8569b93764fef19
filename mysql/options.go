package mysql

import "go.uber.org/zap"

// Default pool bounds. Both are implementation choices left open by the
// wire protocol itself; they only affect allocation behavior, never the
// bytes placed on the wire.
const (
	defaultMaxPoolRows        = 4096
	defaultMaxPoolRowCapacity = 64 * 1024
)

// Option configures a PacketWriter at construction time. There is no
// environment-variable or config-file equivalent: callers wire these up
// as plain Go values, same as any other library in this stack.
type Option func(*PacketWriter)

// WithMaxPoolRows bounds how many cleared buffers the writer's pool will
// retain between flushes.
func WithMaxPoolRows(n int) Option {
	return func(w *PacketWriter) { w.maxPoolRows = n }
}

// WithMaxPoolRowCapacity bounds the capacity a buffer may retain and
// still be considered pool-eligible. Enqueued payloads are shrunk toward
// this capacity (never below their own length); buffers still larger than
// it are simply not retained.
func WithMaxPoolRowCapacity(n int) Option {
	return func(w *PacketWriter) { w.maxPoolRowCapacity = n }
}

// WithLogger attaches a logger the writer uses for low-volume diagnostic
// events only (e.g. the pool filling up to its row limit). It is never consulted on the
// per-packet hot path.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(w *PacketWriter) { w.log = log }
}
