package rtp

import (
	"encoding/binary"
	"fmt"

	"github.com/opd-ai/rtpscreen/limits"
	"github.com/pion/rtp"
)

const (
	// DefaultPayloadType is the dynamic payload type used when none is configured.
	DefaultPayloadType uint8 = 127

	// MinDynamicPayloadType is the first payload type of the dynamic range.
	MinDynamicPayloadType uint8 = 96

	// MaxDynamicPayloadType is the last payload type of the dynamic range.
	MaxDynamicPayloadType uint8 = 127

	// VideoClockRate is the media clock of the payload formats announced in SDP.
	VideoClockRate = 90000

	// maxLineField is the largest value of the 15-bit line and offset fields.
	maxLineField = 0x7fff

	lineFieldFlag = 0x8000
)

// LineSegment describes one run of pixels from a single scanline.
type LineSegment struct {
	// Length is the segment size in bytes
	Length uint16
	// Line is the zero-based scanline number
	Line uint16
	// Offset is the first pixel of the segment within its scanline
	Offset uint16
	// Continuation indicates another line header follows, or the scanline
	// continues in a later segment
	Continuation bool
}

// ValidatePayloadType checks pt against the dynamic payload type range.
func ValidatePayloadType(pt uint8) error {
	if pt < MinDynamicPayloadType || pt > MaxDynamicPayloadType {
		return fmt.Errorf("%w: payload type %d outside %d..%d",
			ErrInvalidConfig, pt, MinDynamicPayloadType, MaxDynamicPayloadType)
	}
	return nil
}

// writeHeader marshals the fixed 12-byte RTP header into buf.
func writeHeader(buf []byte, payloadType uint8, marker bool, seq uint16, timestamp, ssrc uint32) int {
	h := rtp.Header{
		Version:        2,
		Marker:         marker,
		PayloadType:    payloadType,
		SequenceNumber: seq,
		Timestamp:      timestamp,
		SSRC:           ssrc,
	}
	n, err := h.MarshalTo(buf)
	if err != nil {
		// Scratch buffers are sized from the MTU, which is at least MinMTU
		panic(fmt.Sprintf("rtp header marshal: %v", err))
	}
	return n
}

// writeExtendedSequence writes the RFC 4175 extended sequence number.
func writeExtendedSequence(buf []byte, ext uint16) int {
	binary.BigEndian.PutUint16(buf, ext)
	return limits.ExtendedSequenceSize
}

// writeLineHeader writes one RFC 4175 line header. The field-identification
// bit is always clear since frames are progressive.
func writeLineHeader(buf []byte, seg LineSegment) int {
	binary.BigEndian.PutUint16(buf[0:2], seg.Length)
	binary.BigEndian.PutUint16(buf[2:4], seg.Line&maxLineField)
	offset := seg.Offset & maxLineField
	if seg.Continuation {
		offset |= lineFieldFlag
	}
	binary.BigEndian.PutUint16(buf[4:6], offset)
	return limits.LineHeaderSize
}

// parseLineHeader is the inverse of writeLineHeader.
func parseLineHeader(buf []byte) LineSegment {
	offset := binary.BigEndian.Uint16(buf[4:6])
	return LineSegment{
		Length:       binary.BigEndian.Uint16(buf[0:2]),
		Line:         binary.BigEndian.Uint16(buf[2:4]) & maxLineField,
		Offset:       offset & maxLineField,
		Continuation: offset&lineFieldFlag != 0,
	}
}
