// Package rtp sends captured screen frames as RTP streams.
//
// It uses the pion/rtp library for the fixed RTP header and sequence
// numbering, pion/rtcp for sender reports and pion/sdp for the session
// description that receivers load.
//
// # Frame Writers
//
// Three datagram writers implement interfaces.FrameWriter:
//
//   - RawVideoPacketizer: RFC 4175 uncompressed video, packing several
//     scanlines per datagram and splitting lines that do not fit
//   - LineTransmitter: RFC 4175 with exactly one line segment per datagram
//   - JPEGWriter: RFC 2435 JPEG, re-encoding every frame
//
// A packetizer is created from a configuration and a transport sink:
//
//	sink, err := transport.NewUDPSink("", "192.0.2.10:5004")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	p, err := rtp.NewRawVideoPacketizer(rtp.DefaultRawVideoConfig(1920), sink)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = p.WriteFrame(1920, 1080, rowPitch, pixels)
//
// # Datagram Layout
//
// Every RFC 4175 datagram is a 12-byte RTP header, a 2-byte extended
// sequence number and one 6-byte line header per segment, followed by the
// segments' pixel bytes in header order:
//
//	length (16) | F (1) line (15) | C (1) offset (15)
//
// The continuation bit is set on every header except the last one of a
// datagram, and also on a segment that stops before the end of its line.
// The marker bit is set on the final datagram of a frame.
//
// # Receiving and Reports
//
// RawVideoDepacketizer rebuilds frames from RFC 4175 datagrams and counts
// sequence gaps; it backs the tests and the receiver example. A
// SenderReporter sends RTCP sender reports for any writer that exposes its
// SSRC and counters, and records the receiver reports that come back.
//
// # Error Handling
//
// Configuration problems are reported by the constructors. WriteFrame
// rejects bad geometry with video.ErrInvalidFrame before sending anything.
// A failed send does not abort the frame; the remaining datagrams are sent
// and the returned error wraps ErrSendFailed.
//
// # Thread Safety
//
// WriteFrame calls on one writer must be serialised. Stats may be called
// from any goroutine.
package rtp
