package rtp

import (
	"encoding/binary"
	"fmt"

	"github.com/opd-ai/rtpscreen/av/video"
	"github.com/opd-ai/rtpscreen/interfaces"
	"github.com/opd-ai/rtpscreen/limits"
	"github.com/opd-ai/rtpscreen/transport"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

const (
	// JPEGPayloadType is the static RTP payload type assigned to JPEG.
	JPEGPayloadType uint8 = 26

	// DefaultJPEGQuality is the encoder quality used when none is configured.
	DefaultJPEGQuality = 75

	// MaxJPEGDimension is the largest width or height RFC 2435 can describe.
	MaxJPEGDimension = 2040

	jpegMainHeaderSize  = 8
	jpegQuantHeaderSize = 4
	// jpegInBandQ signals quantisation tables carried in the first packet
	jpegInBandQ = 255
)

// JPEGConfig configures a JPEGWriter.
type JPEGConfig struct {
	MTU             int
	SSRC            uint32
	PayloadType     uint8
	InitialSequence uint16
	Quality         int
	// TimeProvider drives the 90 kHz timestamp; nil uses the wall clock
	TimeProvider video.TimeProvider
}

// JPEGWriter compresses frames to baseline JPEG and sends them as
// RFC 2435 packets. Frames larger than 2040 pixels in either direction are
// scaled down first.
type JPEGWriter struct {
	sink         transport.Sink
	payloadType  uint8
	ssrc         uint32
	quality      int
	mtu          int
	sequencer    rtp.Sequencer
	timeProvider video.TimeProvider
	scaler       *video.Scaler
	datagram     []byte
	stats        Statistics
}

var _ interfaces.FrameWriter = (*JPEGWriter)(nil)

// NewJPEGWriter creates a JPEG writer that sends to sink.
func NewJPEGWriter(cfg JPEGConfig, sink transport.Sink) (*JPEGWriter, error) {
	if sink == nil {
		return nil, fmt.Errorf("%w: sink cannot be nil", ErrInvalidConfig)
	}
	// The first packet carries both quantisation tables plus one scan byte
	if err := limits.ValidateMTUFor(cfg.MTU, limits.RTPHeaderSize+jpegMainHeaderSize+jpegQuantHeaderSize+2*64); err != nil {
		return nil, err
	}
	if cfg.PayloadType != JPEGPayloadType {
		if err := ValidatePayloadType(cfg.PayloadType); err != nil {
			return nil, err
		}
	}
	quality := cfg.Quality
	if quality == 0 {
		quality = DefaultJPEGQuality
	}
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("%w: jpeg quality %d outside 1..100", ErrInvalidConfig, cfg.Quality)
	}
	tp := cfg.TimeProvider
	if tp == nil {
		tp = video.DefaultTimeProvider{}
	}

	logrus.WithFields(logrus.Fields{
		"function":     "NewJPEGWriter",
		"mtu":          cfg.MTU,
		"quality":      quality,
		"payload_type": cfg.PayloadType,
	}).Info("JPEG writer created")

	return &JPEGWriter{
		sink:         sink,
		payloadType:  cfg.PayloadType,
		ssrc:         cfg.SSRC,
		quality:      quality,
		mtu:          cfg.MTU,
		sequencer:    rtp.NewFixedSequencer(cfg.InitialSequence),
		timeProvider: tp,
		scaler:       video.NewScaler(),
		datagram:     make([]byte, cfg.MTU),
	}, nil
}

// Stats returns a snapshot of the transmission counters.
func (w *JPEGWriter) Stats() interfaces.WriterStats {
	return w.stats.Snapshot()
}

// SSRC returns the stream's synchronisation source.
func (w *JPEGWriter) SSRC() uint32 {
	return w.ssrc
}

// Close closes the underlying sink.
func (w *JPEGWriter) Close() error {
	return w.sink.Close()
}

// WriteFrame encodes and sends one frame.
func (w *JPEGWriter) WriteFrame(width, height, rowPitch int, buffer []byte) error {
	frame := video.NewFrame(width, height, rowPitch, buffer)
	if err := frame.Validate(); err != nil {
		return err
	}

	tw, th := video.FitWithin(width, height, MaxJPEGDimension, MaxJPEGDimension, 8)
	if w.scaler.IsScalingRequired(width, height, tw, th) {
		scaled, err := w.scaler.Scale(frame, tw, th)
		if err != nil {
			return fmt.Errorf("scale frame: %w", err)
		}
		frame = scaled
	}

	encoded, err := video.EncodeJPEG(frame, w.quality)
	if err != nil {
		return err
	}
	img, err := video.ParseJPEG(encoded)
	if err != nil {
		return err
	}

	timestamp := uint32(w.timeProvider.Now().UnixMilli() * (VideoClockRate / 1000))
	tracker := sendTracker{function: "JPEGWriter.WriteFrame", stats: &w.stats}

	logrus.WithFields(logrus.Fields{
		"function":   "JPEGWriter.WriteFrame",
		"width":      img.Width,
		"height":     img.Height,
		"scan_bytes": len(img.Scan),
	}).Debug("Sending JPEG frame")

	var tables []byte
	for _, t := range img.QuantTables {
		tables = append(tables, t...)
	}

	scan := img.Scan
	offset := 0
	for {
		first := offset == 0
		budget := w.mtu - limits.RTPHeaderSize - jpegMainHeaderSize
		if first {
			budget -= jpegQuantHeaderSize + len(tables)
		}
		n := min(len(scan), budget)
		marker := n == len(scan)

		seq := w.sequencer.NextSequenceNumber()
		pos := writeHeader(w.datagram, w.payloadType, marker, seq, timestamp, w.ssrc)
		pos += writeJPEGMainHeader(w.datagram[pos:], offset, img)
		if first {
			pos += writeJPEGQuantHeader(w.datagram[pos:], tables)
		}
		pos += copy(w.datagram[pos:], scan[:n])

		tracker.record(w.sink.Send(w.datagram[:pos]), seq, pos-limits.RTPHeaderSize)

		scan = scan[n:]
		offset += n
		if len(scan) == 0 {
			break
		}
	}

	return tracker.finish(timestamp)
}

// writeJPEGMainHeader writes the RFC 2435 main JPEG header.
func writeJPEGMainHeader(buf []byte, fragmentOffset int, img *video.JPEGImage) int {
	binary.BigEndian.PutUint32(buf[0:4], uint32(fragmentOffset)&0x00FFFFFF)
	buf[4] = img.Type
	buf[5] = jpegInBandQ
	buf[6] = byte(img.Width / 8)
	buf[7] = byte(img.Height / 8)
	return jpegMainHeaderSize
}

// writeJPEGQuantHeader writes the quantisation table header and tables.
func writeJPEGQuantHeader(buf []byte, tables []byte) int {
	buf[0] = 0 // MBZ
	buf[1] = 0 // 8-bit precision for every table
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(tables)))
	copy(buf[4:], tables)
	return jpegQuantHeaderSize + len(tables)
}
