// Package rtpscreen streams captured screen frames to a remote receiver.
//
// The core is the RFC 4175 raw video packetizer in av/rtp. This package ties
// it to a frame source, RTCP sender reports and the HTTP control server, and
// tracks the stream lifecycle:
//
//	idle -> starting -> streaming -> stopping -> stopped
//	                          \________________-> failed
//
// # Getting Started
//
//	cfg := rtpscreen.Config{
//	    Writer: interfaces.FrameWriterConfig{
//	        Kind:        interfaces.KindRaw,
//	        Destination: "192.0.2.10:5004",
//	        MTU:         1500,
//	        PayloadType: 127,
//	        Width:       1280,
//	        Height:      720,
//	        FPS:         30,
//	    },
//	    RTCPInterval: 5 * time.Second,
//	    HTTPAddr:     ":8080",
//	}
//
//	s, err := rtpscreen.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := s.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Receivers fetch the session description from GET /stream.sdp.
//
// # Frame Writers
//
// Writers are created by the factory package from a FrameWriterConfig:
//
//   - raw: RFC 4175, several lines per datagram (av/rtp.RawVideoPacketizer)
//   - line: one line fragment per datagram (av/rtp.LineTransmitter)
//   - jpeg: RFC 2435 (av/rtp.JPEGWriter)
//   - tcp: length-prefixed raw frames, optionally Noise encrypted
//     (av/stream.TCPFrameWriter)
//
// Each writer consumes one frame per WriteFrame call, synchronously, from a
// single goroutine.
package rtpscreen
