// Package mysql implements the MySQL wire-packet framing layer: the
// encoder and decoder that sit between a raw byte stream and a
// higher-level protocol handler.
//
// PacketWriter fragments payloads of arbitrary length into on-wire
// packets bound by the protocol's 3-byte length prefix, tags each with
// the wraparound sequence byte, batches them for a single vectored
// write, and recycles payload buffers through a bounded pool.
// PacketReader does the inverse: it pulls bytes off a stream, parses
// zero or more continuation packets followed by one terminating packet,
// and reassembles the logical payload they carry.
//
// Neither type performs authentication, command dispatch, result-set
// value encoding, TLS, or connection lifecycle management — those
// belong to the protocol handler built on top of this package. Neither
// type is safe for concurrent use; a connection's reader half and writer
// half are meant to be driven by one goroutine each.
package mysql
