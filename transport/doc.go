// Package transport carries datagrams and streams for the frame writers.
//
// # Architecture
//
// Datagram writers never touch sockets directly. They send through the Sink
// interface so they can be exercised against in-memory sinks in tests:
//
//	type Sink interface {
//	    Send(datagram []byte) error
//	    Close() error
//	    LocalAddr() net.Addr
//	}
//
// A sink must not retain the datagram slice after Send returns; writers reuse
// one buffer for every datagram of a frame.
//
// # Implementations
//
// UDP sink:
//
//	sink, err := NewUDPSink("", "192.0.2.10:5004")
//	// Unconnected socket; Listen reads datagrams sent back to it (RTCP)
//
// TCP:
//
//	conn, err := DialTCP("192.0.2.10:7000", 5*time.Second)
//	// Nagle disabled; used by the raw stream writer
//
// # Thread Safety
//
// UDPSink.Close is safe to call from any goroutine and more than once. Send
// and Listen may run concurrently on the same sink.
//
// # Error Handling
//
// Errors are wrapped with context using fmt.Errorf and logged with
// structured fields via logrus.WithFields. Send errors are returned to the
// writer, which decides whether the frame continues.
package transport
