package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// UDPSink sends datagrams to a single fixed destination.
// It satisfies the Sink interface.
type UDPSink struct {
	conn   net.PacketConn
	remote net.Addr
	mu     sync.Mutex
	closed bool
}

// NewUDPSink binds a UDP socket on localAddr and targets remoteAddr.
// An empty localAddr binds an ephemeral port on all interfaces.
func NewUDPSink(localAddr, remoteAddr string) (*UDPSink, error) {
	remote, err := net.ResolveUDPAddr("udp", remoteAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve destination %q: %w", remoteAddr, err)
	}

	if localAddr == "" {
		localAddr = ":0"
	}
	conn, err := net.ListenPacket("udp", localAddr)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "NewUDPSink",
			"local_addr": localAddr,
			"error":      err.Error(),
		}).Error("Failed to bind UDP socket")
		return nil, fmt.Errorf("bind %q: %w", localAddr, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "NewUDPSink",
		"local_addr":  conn.LocalAddr().String(),
		"remote_addr": remote.String(),
	}).Info("UDP sink created")

	return NewUDPSinkWithConn(conn, remote), nil
}

// NewUDPSinkWithConn wraps an existing packet connection.
func NewUDPSinkWithConn(conn net.PacketConn, remote net.Addr) *UDPSink {
	return &UDPSink{
		conn:   conn,
		remote: remote,
	}
}

// Send sends a datagram to the configured destination.
func (s *UDPSink) Send(datagram []byte) error {
	_, err := s.conn.WriteTo(datagram, s.remote)
	return err
}

// RemoteAddr returns the destination address.
func (s *UDPSink) RemoteAddr() net.Addr {
	return s.remote
}

// LocalAddr returns the local address the sink is bound to.
func (s *UDPSink) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Close shuts down the sink. Calling Close more than once is harmless.
func (s *UDPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

// Listen reads datagrams arriving on the sink's socket and passes them to
// handler until ctx is cancelled or the socket is closed. RTP senders use
// this to pick up RTCP receiver reports on the reporting socket.
func (s *UDPSink) Listen(ctx context.Context, handler PacketHandler) error {
	buffer := make([]byte, 2048)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		data, addr, err := s.readPacketData(buffer)
		if err != nil {
			if s.handleReadError(err) {
				continue
			}
			return err
		}

		if err := handler(data, addr); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":    "UDPSink.Listen",
				"remote_addr": addr.String(),
				"error":       err.Error(),
			}).Debug("Handler rejected datagram")
		}
	}
}

// readPacketData reads data from the connection with timeout handling.
func (s *UDPSink) readPacketData(buffer []byte) ([]byte, net.Addr, error) {
	// Set read deadline so cancellation is observed promptly
	_ = s.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

	n, addr, err := s.conn.ReadFrom(buffer)
	if err != nil {
		return nil, nil, err
	}

	return buffer[:n], addr, nil
}

// handleReadError reports whether the read loop should keep going.
func (s *UDPSink) handleReadError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		// This is just a timeout, continue
		return true
	}
	if errors.Is(err, net.ErrClosed) {
		return false
	}
	logrus.WithFields(logrus.Fields{
		"function": "UDPSink.Listen",
		"error":    err.Error(),
	}).Warn("Read error on UDP sink")
	return true
}
