package rtp

import (
	"fmt"

	"github.com/opd-ai/rtpscreen/av/video"
	"github.com/opd-ai/rtpscreen/interfaces"
	"github.com/opd-ai/rtpscreen/limits"
	"github.com/opd-ai/rtpscreen/transport"
	"github.com/sirupsen/logrus"
)

// lineOverhead is the header size of a single-segment datagram.
const lineOverhead = limits.RTPHeaderSize + limits.ExtendedSequenceSize + limits.LineHeaderSize

// LineConfig configures a LineTransmitter.
type LineConfig struct {
	MTU         int
	SSRC        uint32
	PayloadType uint8
	// InitialSequence seeds the 32-bit extended sequence counter
	InitialSequence uint32
	// FPS sets the 90 kHz timestamp step between frames
	FPS int
}

// LineTransmitter sends every scanline separately, splitting lines that do
// not fit one datagram. Each datagram carries a single line header, and the
// RFC 4175 extended sequence field holds the high half of a 32-bit counter.
type LineTransmitter struct {
	sink        transport.Sink
	payloadType uint8
	ssrc        uint32
	seq         uint32
	timestamp   uint32
	step        uint32
	maxPayload  int
	datagram    []byte
	stats       Statistics
}

var _ interfaces.FrameWriter = (*LineTransmitter)(nil)

// NewLineTransmitter creates a line transmitter that sends to sink.
func NewLineTransmitter(cfg LineConfig, sink transport.Sink) (*LineTransmitter, error) {
	if sink == nil {
		return nil, fmt.Errorf("%w: sink cannot be nil", ErrInvalidConfig)
	}
	if cfg.FPS <= 0 {
		return nil, fmt.Errorf("%w: fps must be positive, got %d", ErrInvalidConfig, cfg.FPS)
	}
	if err := limits.ValidateMTUFor(cfg.MTU, lineOverhead); err != nil {
		return nil, err
	}
	if err := ValidatePayloadType(cfg.PayloadType); err != nil {
		return nil, err
	}

	maxPayload := cfg.MTU - lineOverhead
	maxPayload -= maxPayload % limits.BytesPerPixel

	logrus.WithFields(logrus.Fields{
		"function":    "NewLineTransmitter",
		"mtu":         cfg.MTU,
		"max_payload": maxPayload,
		"fps":         cfg.FPS,
	}).Info("Line transmitter created")

	return &LineTransmitter{
		sink:        sink,
		payloadType: cfg.PayloadType,
		ssrc:        cfg.SSRC,
		seq:         cfg.InitialSequence,
		step:        uint32(VideoClockRate / cfg.FPS),
		maxPayload:  maxPayload,
		datagram:    make([]byte, cfg.MTU),
	}, nil
}

// Stats returns a snapshot of the transmission counters.
func (lt *LineTransmitter) Stats() interfaces.WriterStats {
	return lt.stats.Snapshot()
}

// SSRC returns the stream's synchronisation source.
func (lt *LineTransmitter) SSRC() uint32 {
	return lt.ssrc
}

// Close closes the underlying sink.
func (lt *LineTransmitter) Close() error {
	return lt.sink.Close()
}

// WriteFrame sends the frame line by line. The marker is set on the last
// fragment of the last line and the timestamp advances after each frame.
func (lt *LineTransmitter) WriteFrame(width, height, rowPitch int, buffer []byte) error {
	if err := video.ValidateGeometry(width, height, rowPitch, len(buffer)); err != nil {
		return err
	}
	if width > maxLineField || height > maxLineField {
		return fmt.Errorf("%w: %w: %dx%d", video.ErrInvalidFrame, ErrFrameTooLarge, width, height)
	}

	timestamp := lt.timestamp
	tracker := sendTracker{function: "LineTransmitter.WriteFrame", stats: &lt.stats}
	lineBytes := width * limits.BytesPerPixel

	for row := 0; row < height; row++ {
		line := buffer[row*rowPitch : row*rowPitch+lineBytes]
		offset := 0
		for len(line) > 0 {
			n := min(len(line), lt.maxPayload)
			marker := row == height-1 && n == len(line)

			seq := uint16(lt.seq)
			pos := writeHeader(lt.datagram, lt.payloadType, marker, seq, timestamp, lt.ssrc)
			pos += writeExtendedSequence(lt.datagram[pos:], uint16(lt.seq>>16))
			pos += writeLineHeader(lt.datagram[pos:], LineSegment{
				Length: uint16(n),
				Line:   uint16(row),
				Offset: uint16(offset),
			})
			pos += copy(lt.datagram[pos:], line[:n])

			tracker.record(lt.sink.Send(lt.datagram[:pos]), seq, pos-limits.RTPHeaderSize)
			lt.seq++

			line = line[n:]
			offset += n / limits.BytesPerPixel
		}
	}

	lt.timestamp += lt.step
	return tracker.finish(timestamp)
}
