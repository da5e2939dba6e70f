package rtp

import (
	"fmt"

	"github.com/opd-ai/rtpscreen/limits"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

// ParseRawVideoPayload splits an RFC 4175 payload into its line headers and
// the concatenated pixel data they describe.
//
// Header parsing ends at the first header with the continuation bit clear,
// or once the headers read so far account for the whole payload. The second
// rule covers a trailing fragment whose continuation bit marks an unfinished
// scanline.
func ParseRawVideoPayload(payload []byte) ([]LineSegment, []byte, error) {
	if len(payload) < limits.ExtendedSequenceSize+limits.LineHeaderSize {
		return nil, nil, fmt.Errorf("%w: payload of %d bytes", ErrMalformedPayload, len(payload))
	}

	pos := limits.ExtendedSequenceSize
	total := 0
	var segments []LineSegment
	for {
		if pos+limits.LineHeaderSize > len(payload) {
			return nil, nil, fmt.Errorf("%w: truncated line header at %d", ErrMalformedPayload, pos)
		}
		seg := parseLineHeader(payload[pos:])
		pos += limits.LineHeaderSize
		total += int(seg.Length)
		segments = append(segments, seg)

		if !seg.Continuation || pos+total == len(payload) {
			break
		}
	}

	if pos+total != len(payload) {
		return nil, nil, fmt.Errorf("%w: headers describe %d bytes, payload carries %d",
			ErrMalformedPayload, total, len(payload)-pos)
	}
	return segments, payload[pos:], nil
}

// RawVideoDepacketizer reassembles frames from RFC 4175 datagrams.
// Frames are returned packed, without row padding.
type RawVideoDepacketizer struct {
	width  int
	height int

	frame     []byte
	timestamp uint32
	started   bool
	lastSeq   uint16
	haveSeq   bool
	lost      uint64
}

// NewRawVideoDepacketizer creates a depacketizer for frames of a fixed size.
func NewRawVideoDepacketizer(width, height int) (*RawVideoDepacketizer, error) {
	if width <= 0 || height <= 0 || width > maxLineField || height > maxLineField {
		return nil, fmt.Errorf("%w: frame size %dx%d", ErrInvalidConfig, width, height)
	}
	return &RawVideoDepacketizer{
		width:  width,
		height: height,
		frame:  make([]byte, width*height*limits.BytesPerPixel),
	}, nil
}

// Lost returns the number of datagrams missing from the sequence so far.
func (d *RawVideoDepacketizer) Lost() uint64 {
	return d.lost
}

// Push consumes one datagram. When the datagram completes a frame the frame
// is returned with done set; the returned slice belongs to the caller.
func (d *RawVideoDepacketizer) Push(datagram []byte) (frame []byte, done bool, err error) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(datagram); err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	d.trackSequence(pkt.SequenceNumber)

	if !d.started || pkt.Timestamp != d.timestamp {
		d.started = true
		d.timestamp = pkt.Timestamp
		clear(d.frame)
	}

	segments, data, err := ParseRawVideoPayload(pkt.Payload)
	if err != nil {
		return nil, false, err
	}

	lineBytes := d.width * limits.BytesPerPixel
	for _, seg := range segments {
		start := int(seg.Line)*lineBytes + int(seg.Offset)*limits.BytesPerPixel
		end := start + int(seg.Length)
		if int(seg.Line) >= d.height || int(seg.Offset)*limits.BytesPerPixel+int(seg.Length) > lineBytes {
			return nil, false, fmt.Errorf("%w: segment line %d offset %d length %d outside %dx%d",
				ErrMalformedPayload, seg.Line, seg.Offset, seg.Length, d.width, d.height)
		}
		copy(d.frame[start:end], data[:seg.Length])
		data = data[seg.Length:]
	}

	if !pkt.Marker {
		return nil, false, nil
	}

	out := make([]byte, len(d.frame))
	copy(out, d.frame)
	d.started = false
	return out, true, nil
}

func (d *RawVideoDepacketizer) trackSequence(seq uint16) {
	if d.haveSeq {
		if gap := seq - d.lastSeq - 1; gap != 0 && gap < 0x8000 {
			d.lost += uint64(gap)
			logrus.WithFields(logrus.Fields{
				"function": "RawVideoDepacketizer.Push",
				"expected": d.lastSeq + 1,
				"received": seq,
			}).Debug("Sequence gap detected")
		}
	}
	d.lastSeq = seq
	d.haveSeq = true
}
