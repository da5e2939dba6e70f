// Package limits provides centralized datagram size constants and validation
// functions for RFC 4175 raw video streaming.
//
// # Datagram Layout
//
// Every datagram emitted by the raw video writers has the same shape:
//
//	RTP header (12) | extended sequence (2) | N x line header (6) | payload
//
// The payload budget of a datagram therefore depends on the number of line
// headers reserved for it:
//
//	budget := limits.MaxPayload(mtu, limits.LinesPerPacket(mtu, width))
//
// # MTU Range
//
//   - MinMTU (24 bytes): enough for one line header and one 4-byte pixel.
//   - DefaultMTU (1500 bytes): standard Ethernet.
//   - JumboMTU (9000 bytes): jumbo frames on a local network.
//   - MaxMTU (65507 bytes): the largest UDP payload over IPv4.
//
// # Error Types
//
//   - ErrMTUTooSmall: the MTU cannot carry a single pixel group
//   - ErrMTUTooLarge: the MTU exceeds the largest UDP datagram
package limits
