package stream

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/opd-ai/rtpscreen/av/video"
	"github.com/opd-ai/rtpscreen/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paddedFrame(width, height, rowPitch int) ([]byte, []byte) {
	buf := make([]byte, rowPitch*(height-1)+width*4)
	packed := make([]byte, 0, width*height*4)
	for y := 0; y < height; y++ {
		for x := 0; x < rowPitch && y*rowPitch+x < len(buf); x++ {
			if x < width*4 {
				buf[y*rowPitch+x] = byte(y*31 + x)
				packed = append(packed, buf[y*rowPitch+x])
			} else {
				buf[y*rowPitch+x] = 0xEE
			}
		}
	}
	return buf, packed
}

func TestTCPFrameWriterPlain(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	w := NewTCPFrameWriter(client)
	defer w.Close()
	assert.False(t, w.Secure())

	buf, packed := paddedFrame(3, 2, 16)
	errc := make(chan error, 1)
	go func() { errc <- w.WriteFrame(3, 2, 16, buf) }()

	var prefix [4]byte
	_, err := io.ReadFull(server, prefix[:])
	require.NoError(t, err)
	assert.Equal(t, uint32(3*4*2), binary.LittleEndian.Uint32(prefix[:]))

	body := make([]byte, 24)
	_, err = io.ReadFull(server, body)
	require.NoError(t, err)
	assert.Equal(t, packed, body)
	require.NoError(t, <-errc)

	stats := w.Stats()
	assert.Equal(t, uint64(1), stats.Frames)
	assert.Equal(t, uint64(24), stats.Octets)
}

func TestTCPFrameWriterReadFrame(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	w := NewTCPFrameWriter(client)
	defer w.Close()

	buf, packed := paddedFrame(5, 4, 20)
	go func() { _ = w.WriteFrame(5, 4, 20, buf) }()

	got, err := ReadFrame(server, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, packed, got)
}

func TestReadFrameRejectsOversized(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	w := NewTCPFrameWriter(client)
	defer w.Close()

	buf, _ := paddedFrame(8, 8, 32)
	go func() { _ = w.WriteFrame(8, 8, 32, buf) }()

	_, err := ReadFrame(server, 100)
	assert.ErrorIs(t, err, video.ErrInvalidFrame)
}

func TestTCPFrameWriterInvalidFrame(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	w := NewTCPFrameWriter(client)
	defer w.Close()

	assert.ErrorIs(t, w.WriteFrame(4, 4, 8, make([]byte, 64)), video.ErrInvalidFrame)
}

func TestTCPFrameWriterWriteError(t *testing.T) {
	client, server := net.Pipe()
	w := NewTCPFrameWriter(client)
	server.Close()

	buf, _ := paddedFrame(2, 2, 8)
	assert.Error(t, w.WriteFrame(2, 2, 8, buf))
	assert.Equal(t, uint64(1), w.Stats().SendErrors)
}

func TestSecureTCPFrameWriter(t *testing.T) {
	sender, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	receiver, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	client, server := net.Pipe()
	defer server.Close()

	type result struct {
		conn   *SecureConn
		remote []byte
		err    error
	}
	accepted := make(chan result, 1)
	go func() {
		sc, remote, err := ServerHandshake(server, receiver.Private[:])
		accepted <- result{sc, remote, err}
	}()

	w, err := NewSecureTCPFrameWriter(client, sender.Private[:], receiver.Public[:])
	require.NoError(t, err)
	defer w.Close()
	assert.True(t, w.Secure())

	res := <-accepted
	require.NoError(t, res.err)
	assert.Equal(t, sender.Public[:], res.remote)

	// Larger than one Noise message, so the frame spans several
	const width, height = 200, 100
	buf, packed := paddedFrame(width, height, width*4+12)
	errc := make(chan error, 1)
	go func() { errc <- w.WriteFrame(width, height, width*4+12, buf) }()

	got, err := ReadFrame(res.conn, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, packed, got)
	require.NoError(t, <-errc)
}

func TestSecureTCPFrameWriterWrongKey(t *testing.T) {
	sender, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	receiver, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	impostor, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	client, server := net.Pipe()
	go func() {
		_, _, err := ServerHandshake(server, impostor.Private[:])
		if err != nil {
			server.Close()
		}
	}()

	_, err = NewSecureTCPFrameWriter(client, sender.Private[:], receiver.Public[:])
	assert.True(t, errors.Is(err, ErrHandshakeFailed))
}

func TestSecureConnChunking(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	sender, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	receiver, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	serverc := make(chan *SecureConn, 1)
	go func() {
		sc, _, err := ServerHandshake(b, receiver.Private[:])
		if err == nil {
			serverc <- sc
		}
		close(serverc)
	}()
	cc, err := ClientHandshake(a, sender.Private[:], receiver.Public[:])
	require.NoError(t, err)
	sc := <-serverc
	require.NotNil(t, sc)

	payload := make([]byte, MaxPlaintextSize+10)
	for i := range payload {
		payload[i] = byte(i)
	}

	go func() { _, _ = cc.Write(payload) }()

	got := make([]byte, len(payload))
	_, err = io.ReadFull(sc, got)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}
