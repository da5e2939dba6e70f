package interfaces

import "time"

// FrameWriter consumes captured frames and forwards them to a destination.
// The buffer is borrowed for the duration of the call and must not be
// retained. Calls must be serialised by the caller.
type FrameWriter interface {
	// WriteFrame sends one frame of 4-byte pixels. rowPitch is the distance
	// in bytes between the starts of consecutive rows and may include padding.
	WriteFrame(width, height, rowPitch int, buffer []byte) error

	// Close releases the writer's destination.
	Close() error
}

// StatsProvider is implemented by writers that keep transmission counters.
type StatsProvider interface {
	Stats() WriterStats
}

// WriterStats is a point-in-time snapshot of a writer's counters.
type WriterStats struct {
	Frames        uint64 `json:"frames"`
	Packets       uint64 `json:"packets"`
	Octets        uint64 `json:"octets"`
	SendErrors    uint64 `json:"send_errors"`
	LastSequence  uint16 `json:"last_sequence"`
	LastTimestamp uint32 `json:"last_timestamp"`
}

// WriterKind selects a FrameWriter implementation.
type WriterKind string

const (
	// KindRaw is the RFC4175 multi-line raw video packetizer.
	KindRaw WriterKind = "raw"
	// KindLine sends one scanline fragment per datagram.
	KindLine WriterKind = "line"
	// KindJPEG sends RFC2435 JPEG over RTP.
	KindJPEG WriterKind = "jpeg"
	// KindTCP streams length-prefixed frames over TCP.
	KindTCP WriterKind = "tcp"
)

// Valid reports whether k names a known writer.
func (k WriterKind) Valid() bool {
	switch k {
	case KindRaw, KindLine, KindJPEG, KindTCP:
		return true
	}
	return false
}

// FrameWriterConfig holds configuration for frame writer implementations
type FrameWriterConfig struct {
	// Kind selects the writer implementation
	Kind WriterKind

	// Destination is the host:port frames are sent to
	Destination string

	// LocalAddr is the local bind address for datagram writers
	LocalAddr string

	// MTU bounds the size of every datagram
	MTU int

	// SSRC identifies the RTP stream
	SSRC uint32

	// PayloadType is the dynamic RTP payload type (96..127)
	PayloadType uint8

	// InitialSequence is the first RTP sequence number
	InitialSequence uint16

	// Width and Height describe the expected frame geometry
	Width  int
	Height int

	// FPS is the nominal frame rate, used for media clock stepping
	FPS int

	// JPEGQuality is the encoder quality (1..100) for the JPEG writer
	JPEGQuality int

	// Secure enables the Noise handshake on the TCP writer
	Secure bool

	// PrivateKey is the local Curve25519 static key for secure streams
	PrivateKey []byte

	// PeerPublicKey is the receiver's Curve25519 static public key
	PeerPublicKey []byte

	// DialTimeout bounds connection setup for stream writers
	DialTimeout time.Duration
}
