package rtp

import (
	"errors"
	"net"
	"sync"
	"time"
)

// mockSink records every datagram it is given for verification.
type mockSink struct {
	mu      sync.Mutex
	sent    [][]byte
	failOn  map[int]error
	closed  bool
	attempt int
}

func newMockSink() *mockSink {
	return &mockSink{failOn: make(map[int]error)}
}

func (m *mockSink) Send(datagram []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.attempt
	m.attempt++
	if err, ok := m.failOn[idx]; ok {
		return err
	}
	m.sent = append(m.sent, append([]byte(nil), datagram...))
	return nil
}

func (m *mockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockSink) LocalAddr() net.Addr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5004}
}

func (m *mockSink) datagrams() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.sent...)
}

var errUnreachable = errors.New("destination unreachable")

// stepClock advances by a fixed step on every Now call.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// patternFrame builds a frame whose visible pixels all differ and whose row
// padding is filled with 0xEE.
func patternFrame(width, height, rowPitch int) []byte {
	buf := make([]byte, rowPitch*(height-1)+width*4)
	for i := range buf {
		buf[i] = 0xEE
	}
	v := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width*4; x++ {
			buf[y*rowPitch+x] = byte(v*7 + v/251)
			v++
		}
	}
	return buf
}

// packRows strips row padding from a strided buffer.
func packRows(buf []byte, width, height, rowPitch int) []byte {
	out := make([]byte, 0, width*height*4)
	for y := 0; y < height; y++ {
		out = append(out, buf[y*rowPitch:y*rowPitch+width*4]...)
	}
	return out
}
