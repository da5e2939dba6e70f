package transport

import (
	"net"
)

// Sink is a connectionless datagram destination.
// This abstraction allows frame writers to be exercised against in-memory
// sinks in tests and against UDP sockets in production.
type Sink interface {
	// Send transmits one datagram. Implementations must not retain the
	// slice after Send returns; callers reuse it for the next datagram.
	Send(datagram []byte) error

	// Close shuts down the sink.
	Close() error

	// LocalAddr returns the local address the sink sends from.
	LocalAddr() net.Addr
}

// PacketHandler is a function that processes incoming datagrams.
// The data slice is only valid for the duration of the call.
type PacketHandler func(data []byte, addr net.Addr) error
