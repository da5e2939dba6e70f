package stream

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync/atomic"

	"github.com/opd-ai/rtpscreen/av/video"
	"github.com/opd-ai/rtpscreen/interfaces"
	"github.com/opd-ai/rtpscreen/limits"
	"github.com/sirupsen/logrus"
)

// frameHeaderSize is the little-endian byte count preceding every frame.
const frameHeaderSize = 4

// TCPFrameWriter streams frames over a reliable connection. Each frame is a
// 4-byte little-endian byte count followed by the rows without padding.
type TCPFrameWriter struct {
	conn    io.WriteCloser
	remote  net.Addr
	secure  bool
	scratch []byte

	frames     atomic.Uint64
	octets     atomic.Uint64
	sendErrors atomic.Uint64
}

var _ interfaces.FrameWriter = (*TCPFrameWriter)(nil)

// NewTCPFrameWriter streams frames in the clear over conn.
func NewTCPFrameWriter(conn net.Conn) *TCPFrameWriter {
	logrus.WithFields(logrus.Fields{
		"function":    "NewTCPFrameWriter",
		"remote_addr": conn.RemoteAddr().String(),
	}).Info("Raw frame stream created")

	return &TCPFrameWriter{conn: conn, remote: conn.RemoteAddr()}
}

// NewSecureTCPFrameWriter performs the Noise handshake on conn and streams
// frames through the resulting encrypted channel.
func NewSecureTCPFrameWriter(conn net.Conn, privateKey, peerPublicKey []byte) (*TCPFrameWriter, error) {
	sc, err := ClientHandshake(conn, privateKey, peerPublicKey)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "NewSecureTCPFrameWriter",
			"remote_addr": conn.RemoteAddr().String(),
			"error":       err.Error(),
		}).Error("Secure stream handshake failed")
		return nil, err
	}
	return &TCPFrameWriter{conn: sc, remote: conn.RemoteAddr(), secure: true}, nil
}

// Secure reports whether frames are encrypted.
func (w *TCPFrameWriter) Secure() bool {
	return w.secure
}

// Stats returns a snapshot of the transmission counters. Packets counts
// frames since the stream has no datagrams.
func (w *TCPFrameWriter) Stats() interfaces.WriterStats {
	frames := w.frames.Load()
	return interfaces.WriterStats{
		Frames:     frames,
		Packets:    frames,
		Octets:     w.octets.Load(),
		SendErrors: w.sendErrors.Load(),
	}
}

// WriteFrame writes one frame. Unlike the datagram writers, a write error
// leaves the stream unusable and is returned as is.
func (w *TCPFrameWriter) WriteFrame(width, height, rowPitch int, buffer []byte) error {
	if err := video.ValidateGeometry(width, height, rowPitch, len(buffer)); err != nil {
		return err
	}

	lineBytes := width * limits.BytesPerPixel
	size := lineBytes * height
	if uint64(size) > 0xFFFFFFFF {
		return fmt.Errorf("%w: frame of %d bytes exceeds the size prefix", video.ErrInvalidFrame, size)
	}

	total := frameHeaderSize + size
	if cap(w.scratch) < total {
		w.scratch = make([]byte, total)
	}
	out := w.scratch[:total]
	binary.LittleEndian.PutUint32(out, uint32(size))
	pos := frameHeaderSize
	for y := 0; y < height; y++ {
		pos += copy(out[pos:], buffer[y*rowPitch:y*rowPitch+lineBytes])
	}

	if _, err := w.conn.Write(out); err != nil {
		w.sendErrors.Add(1)
		logrus.WithFields(logrus.Fields{
			"function":    "TCPFrameWriter.WriteFrame",
			"remote_addr": w.remote.String(),
			"error":       err.Error(),
		}).Warn("Failed to write frame")
		return fmt.Errorf("write frame: %w", err)
	}

	w.frames.Add(1)
	w.octets.Add(uint64(size))
	return nil
}

// Close closes the connection.
func (w *TCPFrameWriter) Close() error {
	return w.conn.Close()
}

// ReadFrame reads one frame written by TCPFrameWriter from r. Frames larger
// than maxSize bytes are rejected.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	var prefix [frameHeaderSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(prefix[:])
	if uint64(size) > uint64(maxSize) {
		return nil, fmt.Errorf("%w: announced frame of %d bytes exceeds %d", video.ErrInvalidFrame, size, maxSize)
	}
	frame := make([]byte, size)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, err
	}
	return frame, nil
}
