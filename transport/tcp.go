package transport

import (
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// DialTCP establishes a TCP connection for stream-oriented frame writers.
func DialTCP(address string, timeout time.Duration) (net.Conn, error) {
	logrus.WithFields(logrus.Fields{
		"function": "DialTCP",
		"address":  address,
	}).Debug("Dialing TCP connection")

	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "DialTCP",
			"address":  address,
			"error":    err.Error(),
		}).Error("Failed to dial TCP connection")
		return nil, fmt.Errorf("tcp dial failed: %w", err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		// Frames are large; Nagle only adds latency
		_ = tcpConn.SetNoDelay(true)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "DialTCP",
		"address":     address,
		"local_addr":  conn.LocalAddr().String(),
		"remote_addr": conn.RemoteAddr().String(),
	}).Info("TCP connection established")

	return conn, nil
}
