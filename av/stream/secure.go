package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/flynn/noise"
	ikhandshake "github.com/opd-ai/rtpscreen/noise"
	"github.com/sirupsen/logrus"
)

const (
	// MaxMessageSize is the largest Noise transport message.
	MaxMessageSize = 65535

	// MaxPlaintextSize is the most plaintext one message can carry.
	MaxPlaintextSize = MaxMessageSize - 16

	lengthPrefixSize = 2
)

// ErrHandshakeFailed indicates the Noise handshake could not be completed
var ErrHandshakeFailed = errors.New("secure stream handshake failed")

// SecureConn carries a byte stream as length-prefixed Noise transport
// messages. It is created by ClientHandshake or ServerHandshake.
type SecureConn struct {
	conn    net.Conn
	send    *noise.CipherState
	recv    *noise.CipherState
	pending []byte
	sendBuf []byte
	recvBuf []byte
}

// ClientHandshake runs the initiator side of the IK handshake over conn.
// peerPublicKey is the receiver's static key, known in advance.
func ClientHandshake(conn net.Conn, privateKey, peerPublicKey []byte) (*SecureConn, error) {
	hs, err := ikhandshake.NewIKHandshake(privateKey, peerPublicKey, ikhandshake.Initiator)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}

	msg, err := hs.Initiate(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}
	if err := writeMessage(conn, msg); err != nil {
		return nil, fmt.Errorf("%w: send initiation: %w", ErrHandshakeFailed, err)
	}

	reply, err := readMessage(conn, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrHandshakeFailed, err)
	}
	if _, err := hs.Finish(reply); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}

	send, recv, err := hs.GetCipherStates()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "ClientHandshake",
		"remote_addr": conn.RemoteAddr().String(),
	}).Info("Secure stream established")

	return &SecureConn{conn: conn, send: send, recv: recv}, nil
}

// ServerHandshake runs the responder side of the IK handshake over conn.
// It returns the connection and the initiator's static public key, which the
// caller should check against its list of allowed senders.
func ServerHandshake(conn net.Conn, privateKey []byte) (*SecureConn, []byte, error) {
	hs, err := ikhandshake.NewIKHandshake(privateKey, nil, ikhandshake.Responder)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}

	msg, err := readMessage(conn, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read initiation: %w", ErrHandshakeFailed, err)
	}
	reply, _, err := hs.Respond(msg, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}
	if err := writeMessage(conn, reply); err != nil {
		return nil, nil, fmt.Errorf("%w: send response: %w", ErrHandshakeFailed, err)
	}

	send, recv, err := hs.GetCipherStates()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}
	remote, err := hs.GetRemoteStaticKey()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}

	return &SecureConn{conn: conn, send: send, recv: recv}, remote, nil
}

// Write encrypts p in chunks of at most MaxPlaintextSize bytes.
func (c *SecureConn) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := min(len(p), MaxPlaintextSize)
		ct, err := c.send.Encrypt(c.sendBuf[:0], nil, p[:n])
		if err != nil {
			return written, fmt.Errorf("encrypt: %w", err)
		}
		c.sendBuf = ct
		if err := writeMessage(c.conn, ct); err != nil {
			return written, err
		}
		written += n
		p = p[n:]
	}
	return written, nil
}

// Read decrypts the next bytes of the stream into p.
func (c *SecureConn) Read(p []byte) (int, error) {
	for len(c.pending) == 0 {
		ct, err := readMessage(c.conn, c.recvBuf)
		if err != nil {
			return 0, err
		}
		c.recvBuf = ct
		pt, err := c.recv.Decrypt(nil, nil, ct)
		if err != nil {
			return 0, fmt.Errorf("decrypt: %w", err)
		}
		c.pending = pt
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Close closes the underlying connection.
func (c *SecureConn) Close() error {
	return c.conn.Close()
}

// writeMessage sends one length-prefixed message.
func writeMessage(w io.Writer, msg []byte) error {
	if len(msg) > MaxMessageSize {
		return fmt.Errorf("message of %d bytes exceeds %d", len(msg), MaxMessageSize)
	}
	var prefix [lengthPrefixSize]byte
	binary.BigEndian.PutUint16(prefix[:], uint16(len(msg)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err := w.Write(msg)
	return err
}

// readMessage reads one length-prefixed message, reusing buf when it is
// large enough.
func readMessage(r io.Reader, buf []byte) ([]byte, error) {
	var prefix [lengthPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	n := int(binary.BigEndian.Uint16(prefix[:]))
	if cap(buf) < n {
		buf = make([]byte, n)
	}
	buf = buf[:n]
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
