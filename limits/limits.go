// Package limits provides centralized datagram size limits for RTP streaming.
// This ensures consistent MTU validation across the frame writers.
package limits

import (
	"errors"
	"fmt"
)

const (
	// RTPHeaderSize is the fixed RTP header length without CSRCs (RFC 3550).
	RTPHeaderSize = 12

	// ExtendedSequenceSize is the RFC 4175 extended sequence number field.
	ExtendedSequenceSize = 2

	// LineHeaderSize is one RFC 4175 line header (length, line number, offset).
	LineHeaderSize = 6

	// BytesPerPixel is the pixel group size of every supported pixel format.
	BytesPerPixel = 4

	// MinMTU is the smallest MTU that can carry one line header and one pixel.
	MinMTU = RTPHeaderSize + ExtendedSequenceSize + LineHeaderSize + BytesPerPixel

	// DefaultMTU matches a standard Ethernet frame.
	DefaultMTU = 1500

	// JumboMTU matches jumbo Ethernet frames.
	JumboMTU = 9000

	// MaxMTU is the largest UDP payload over IPv4.
	MaxMTU = 65507
)

var (
	// ErrMTUTooSmall indicates the MTU cannot carry a single pixel group
	ErrMTUTooSmall = errors.New("mtu too small")

	// ErrMTUTooLarge indicates the MTU exceeds the largest UDP datagram
	ErrMTUTooLarge = errors.New("mtu too large")
)

// ValidateMTU checks an MTU against [MinMTU, MaxMTU].
// Returns an error with context including the actual and allowed sizes.
func ValidateMTU(mtu int) error {
	if mtu < MinMTU {
		return fmt.Errorf("%w: mtu %d below minimum %d", ErrMTUTooSmall, mtu, MinMTU)
	}
	if mtu > MaxMTU {
		return fmt.Errorf("%w: mtu %d exceeds limit %d", ErrMTUTooLarge, mtu, MaxMTU)
	}
	return nil
}

// ValidateMTUFor checks an MTU against a custom fixed overhead. The MTU must
// leave room for at least one pixel group after the overhead.
func ValidateMTUFor(mtu, overhead int) error {
	if mtu-overhead < BytesPerPixel {
		return fmt.Errorf("%w: mtu %d leaves %d bytes after %d bytes of headers",
			ErrMTUTooSmall, mtu, mtu-overhead, overhead)
	}
	if mtu > MaxMTU {
		return fmt.Errorf("%w: mtu %d exceeds limit %d", ErrMTUTooLarge, mtu, MaxMTU)
	}
	return nil
}

// LinesPerPacket returns how many full scanlines of the given width fit in one
// datagram once the RTP header and extended sequence number are accounted for.
// The result is never below 1.
func LinesPerPacket(mtu, width int) int {
	if width <= 0 {
		return 1
	}
	n := (mtu - RTPHeaderSize - ExtendedSequenceSize) / width / BytesPerPixel
	if n < 1 {
		return 1
	}
	return n
}

// MaxPayload returns the payload byte budget of a datagram that reserves
// room for the given number of line headers.
func MaxPayload(mtu, lineHeaders int) int {
	return mtu - RTPHeaderSize - ExtendedSequenceSize - LineHeaderSize*lineHeaders
}
