package rtp

import (
	"fmt"

	"github.com/opd-ai/rtpscreen/av/video"
	"github.com/opd-ai/rtpscreen/interfaces"
	"github.com/opd-ai/rtpscreen/limits"
	"github.com/opd-ai/rtpscreen/transport"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

// RawVideoConfig configures a RawVideoPacketizer.
type RawVideoConfig struct {
	// MTU bounds every datagram, headers included
	MTU int
	// Width is the expected frame width in pixels
	Width int
	// SSRC identifies the stream
	SSRC uint32
	// PayloadType is the dynamic RTP payload type
	PayloadType uint8
	// InitialSequence is the sequence number of the first datagram
	InitialSequence uint16
	// TimeProvider supplies the per-frame capture time; nil uses the wall clock
	TimeProvider video.TimeProvider
}

// DefaultRawVideoConfig returns the settings used when nothing is overridden.
func DefaultRawVideoConfig(width int) RawVideoConfig {
	return RawVideoConfig{
		MTU:         limits.DefaultMTU,
		Width:       width,
		PayloadType: DefaultPayloadType,
	}
}

// RawVideoPacketizer splits uncompressed 4-byte-per-pixel frames into
// RFC 4175 datagrams and hands each one to a transport sink.
//
// A datagram carries up to linesPerPacket line segments. A scanline that does
// not fit the remaining payload budget is split and resumes in the next
// datagram, so any frame width works with any MTU of at least limits.MinMTU.
//
// The packetizer owns a single scratch datagram that is rewritten for every
// send; sinks must not retain it. WriteFrame calls must be serialised.
type RawVideoPacketizer struct {
	sink         transport.Sink
	mtu          int
	width        int
	payloadType  uint8
	ssrc         uint32
	sequencer    rtp.Sequencer
	timeProvider video.TimeProvider

	linesPerPacket int
	maxPayload     int

	datagram []byte
	segments []LineSegment

	stats Statistics
}

var _ interfaces.FrameWriter = (*RawVideoPacketizer)(nil)

// NewRawVideoPacketizer creates a packetizer that sends to sink.
//
// Parameters:
//   - cfg: MTU, frame width and stream identity
//   - sink: Destination for every datagram
//
// Returns:
//   - *RawVideoPacketizer: New packetizer instance
//   - error: ErrInvalidConfig or an MTU limit error
func NewRawVideoPacketizer(cfg RawVideoConfig, sink transport.Sink) (*RawVideoPacketizer, error) {
	logrus.WithFields(logrus.Fields{
		"function":     "NewRawVideoPacketizer",
		"mtu":          cfg.MTU,
		"width":        cfg.Width,
		"ssrc":         cfg.SSRC,
		"payload_type": cfg.PayloadType,
	}).Info("Creating raw video packetizer")

	if err := validateRawVideoConfig(cfg, sink); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewRawVideoPacketizer",
			"error":    err.Error(),
		}).Error("Invalid packetizer configuration")
		return nil, err
	}

	tp := cfg.TimeProvider
	if tp == nil {
		tp = video.DefaultTimeProvider{}
	}

	p := &RawVideoPacketizer{
		sink:         sink,
		mtu:          cfg.MTU,
		payloadType:  cfg.PayloadType,
		ssrc:         cfg.SSRC,
		sequencer:    rtp.NewFixedSequencer(cfg.InitialSequence),
		timeProvider: tp,
		datagram:     make([]byte, cfg.MTU),
	}
	p.configureWidth(cfg.Width)

	logrus.WithFields(logrus.Fields{
		"function":         "NewRawVideoPacketizer",
		"lines_per_packet": p.linesPerPacket,
		"max_payload":      p.maxPayload,
	}).Info("Raw video packetizer created successfully")

	return p, nil
}

func validateRawVideoConfig(cfg RawVideoConfig, sink transport.Sink) error {
	if sink == nil {
		return fmt.Errorf("%w: sink cannot be nil", ErrInvalidConfig)
	}
	if cfg.Width <= 0 {
		return fmt.Errorf("%w: width must be positive, got %d", ErrInvalidConfig, cfg.Width)
	}
	if cfg.Width > maxLineField {
		return fmt.Errorf("%w: width %d exceeds %d", ErrFrameTooLarge, cfg.Width, maxLineField)
	}
	if err := limits.ValidateMTU(cfg.MTU); err != nil {
		return err
	}
	return ValidatePayloadType(cfg.PayloadType)
}

// configureWidth derives the line-count hint and payload budget for a width.
func (p *RawVideoPacketizer) configureWidth(width int) {
	hint := limits.LinesPerPacket(p.mtu, width)
	// The hint ignores line header overhead. Very narrow frames would leave
	// no room for a single pixel, so only then cap it to lines plus headers.
	if limits.MaxPayload(p.mtu, hint) < limits.BytesPerPixel {
		room := p.mtu - limits.RTPHeaderSize - limits.ExtendedSequenceSize
		hint = max(room/(width*limits.BytesPerPixel+limits.LineHeaderSize), 1)
	}
	p.width = width
	p.linesPerPacket = hint
	p.maxPayload = limits.MaxPayload(p.mtu, hint)
	p.segments = make([]LineSegment, hint)
}

// LinesPerPacket returns the current number of line header slots per datagram.
func (p *RawVideoPacketizer) LinesPerPacket() int {
	return p.linesPerPacket
}

// MaxPayload returns the current payload byte budget per datagram.
func (p *RawVideoPacketizer) MaxPayload() int {
	return p.maxPayload
}

// SSRC returns the stream's synchronisation source.
func (p *RawVideoPacketizer) SSRC() uint32 {
	return p.ssrc
}

// Stats returns a snapshot of the transmission counters.
func (p *RawVideoPacketizer) Stats() interfaces.WriterStats {
	return p.stats.Snapshot()
}

// Close closes the underlying sink.
func (p *RawVideoPacketizer) Close() error {
	return p.sink.Close()
}

// WriteFrame packetizes one frame and sends every datagram before returning.
//
// Geometry errors are returned before anything is sent. Send failures do not
// stop the frame: the remaining datagrams are still sent and the returned
// error wraps ErrSendFailed.
func (p *RawVideoPacketizer) WriteFrame(width, height, rowPitch int, buffer []byte) error {
	if err := video.ValidateGeometry(width, height, rowPitch, len(buffer)); err != nil {
		return err
	}
	if width > maxLineField || height > maxLineField {
		return fmt.Errorf("%w: %w: %dx%d", video.ErrInvalidFrame, ErrFrameTooLarge, width, height)
	}

	if width != p.width {
		logrus.WithFields(logrus.Fields{
			"function":  "RawVideoPacketizer.WriteFrame",
			"old_width": p.width,
			"new_width": width,
		}).Info("Frame width changed, recomputing packet layout")
		p.configureWidth(width)
	}

	timestamp := video.WallClockMillis(p.timeProvider)
	lineBytes := width * limits.BytesPerPixel
	remaining := lineBytes * height
	tracker := sendTracker{function: "RawVideoPacketizer.WriteFrame", stats: &p.stats}

	logrus.WithFields(logrus.Fields{
		"function":  "RawVideoPacketizer.WriteFrame",
		"width":     width,
		"height":    height,
		"row_pitch": rowPitch,
		"timestamp": timestamp,
	}).Debug("Packetizing frame")

	line, offset := 0, 0
	for remaining > 0 {
		used, payloadLen := p.fillSegments(&line, &offset, width, height)
		remaining -= payloadLen
		marker := remaining == 0

		n, seq := p.assemble(used, payloadLen, marker, timestamp, rowPitch, buffer)
		tracker.record(p.sink.Send(p.datagram[:n]), seq, n-limits.RTPHeaderSize)
	}

	return tracker.finish(timestamp)
}

// fillSegments describes the next datagram's segments starting at the cursor
// (line, offset) and advances the cursor past them. It returns the number of
// slots used and the payload size.
func (p *RawVideoPacketizer) fillSegments(line, offset *int, width, height int) (int, int) {
	lineBytes := width * limits.BytesPerPixel
	budget := p.maxPayload
	used, payloadLen := 0, 0

	for used < p.linesPerPacket && *line < height {
		avail := budget - budget%limits.BytesPerPixel
		if avail < limits.BytesPerPixel {
			break
		}

		length := lineBytes - *offset*limits.BytesPerPixel
		if length > avail {
			length = avail
		}
		finished := *offset*limits.BytesPerPixel+length == lineBytes

		p.segments[used] = LineSegment{
			Length:       uint16(length),
			Line:         uint16(*line),
			Offset:       uint16(*offset),
			Continuation: !finished,
		}
		budget -= length
		payloadLen += length
		used++

		if finished {
			*line++
			*offset = 0
		} else {
			*offset += length / limits.BytesPerPixel
		}
	}

	// Every header but the last announces another one
	for i := 0; i < used-1; i++ {
		p.segments[i].Continuation = true
	}

	return used, payloadLen
}

// assemble writes headers and payload for the described segments into the
// scratch datagram and returns its length and sequence number.
func (p *RawVideoPacketizer) assemble(used, payloadLen int, marker bool, timestamp uint32, rowPitch int, buffer []byte) (int, uint16) {
	headerLen := limits.RTPHeaderSize + limits.ExtendedSequenceSize + used*limits.LineHeaderSize
	if headerLen+payloadLen > p.mtu {
		panic(fmt.Sprintf("rtp: datagram of %d bytes exceeds mtu %d", headerLen+payloadLen, p.mtu))
	}

	seq := p.sequencer.NextSequenceNumber()
	pos := writeHeader(p.datagram, p.payloadType, marker, seq, timestamp, p.ssrc)
	pos += writeExtendedSequence(p.datagram[pos:], 0)
	for i := 0; i < used; i++ {
		pos += writeLineHeader(p.datagram[pos:], p.segments[i])
	}

	for i := 0; i < used; i++ {
		seg := p.segments[i]
		src := int(seg.Line)*rowPitch + int(seg.Offset)*limits.BytesPerPixel
		pos += copy(p.datagram[pos:], buffer[src:src+int(seg.Length)])
	}

	return pos, seq
}
