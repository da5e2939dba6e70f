package rtpscreen

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opd-ai/rtpscreen/av/rtp"
	"github.com/opd-ai/rtpscreen/control"
	"github.com/opd-ai/rtpscreen/factory"
	"github.com/opd-ai/rtpscreen/interfaces"
	"github.com/pion/rtcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listenUDP(t *testing.T) net.PacketConn {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func testConfig(dest string) Config {
	w := *factory.NewFrameWriterFactory().GetCurrentConfig()
	w.Kind = interfaces.KindRaw
	w.Destination = dest
	w.LocalAddr = "127.0.0.1:0"
	w.Width, w.Height = 32, 8
	w.FPS = 100
	return Config{Writer: w, MaxFrames: 3}
}

func countDatagrams(conn net.PacketConn, wait time.Duration) int {
	buf := make([]byte, 2048)
	n := 0
	for {
		_ = conn.SetReadDeadline(time.Now().Add(wait))
		if _, _, err := conn.ReadFrom(buf); err != nil {
			return n
		}
		n++
	}
}

func TestNewValidation(t *testing.T) {
	cfg := testConfig("127.0.0.1:5004")
	cfg.Writer.Width = 0
	_, err := New(cfg)
	assert.ErrorIs(t, err, rtp.ErrInvalidConfig)

	cfg = testConfig("127.0.0.1:5004")
	cfg.Writer.Height = 0
	_, err = New(cfg)
	assert.ErrorIs(t, err, rtp.ErrInvalidConfig)

	cfg = testConfig("127.0.0.1:5004")
	cfg.RTCPInterval = -time.Second
	_, err = New(cfg)
	assert.ErrorIs(t, err, rtp.ErrInvalidConfig)

	s, err := New(testConfig("127.0.0.1:5004"))
	require.NoError(t, err)
	assert.Equal(t, StateIdle, s.State())
	assert.NotEqual(t, [16]byte{}, [16]byte(s.ID()))
}

func TestStreamerRunMaxFrames(t *testing.T) {
	receiver := listenUDP(t)
	s, err := New(testConfig(receiver.LocalAddr().String()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Run(ctx))
	assert.Equal(t, StateStopped, s.State())

	// 32 pixels per line fit 8 lines per datagram at MTU 1500: one datagram per frame.
	assert.Equal(t, 3, countDatagrams(receiver, 200*time.Millisecond))

	status := s.Status()
	assert.Equal(t, s.ID().String(), status.StreamID)
	assert.Equal(t, StateStopped, status.State)
	assert.Equal(t, uint64(3), status.Writer.Frames)
	assert.Equal(t, uint64(3), status.Writer.Packets)
	assert.Equal(t, uint64(3), status.Source.Frames)
	assert.NotEmpty(t, status.Uptime)

	err = s.Run(ctx)
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestStreamerSendsSenderReports(t *testing.T) {
	receiver := listenUDP(t)
	rtcpReceiver := listenUDP(t)

	cfg := testConfig(receiver.LocalAddr().String())
	cfg.Writer.SSRC = 0xCAFE
	cfg.Writer.FPS = 30
	cfg.MaxFrames = 30
	cfg.RTCPInterval = 20 * time.Millisecond
	cfg.RTCPAddr = rtcpReceiver.LocalAddr().String()

	s, err := New(cfg)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	buf := make([]byte, 1500)
	require.NoError(t, rtcpReceiver.SetReadDeadline(time.Now().Add(3*time.Second)))
	n, from, err := rtcpReceiver.ReadFrom(buf)
	require.NoError(t, err)

	pkts, err := rtcp.Unmarshal(buf[:n])
	require.NoError(t, err)
	sr, ok := pkts[0].(*rtcp.SenderReport)
	require.True(t, ok, "expected a sender report, got %T", pkts[0])
	assert.Equal(t, uint32(0xCAFE), sr.SSRC)

	// Answer with a receiver report so the status carries reception data.
	rr := &rtcp.ReceiverReport{
		SSRC:    0x1111,
		Reports: []rtcp.ReceptionReport{{SSRC: 0xCAFE, TotalLost: 2}},
	}
	raw, err := rr.Marshal()
	require.NoError(t, err)
	_, err = rtcpReceiver.WriteTo(raw, from)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return s.Status().Reception != nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, uint32(2), s.Status().Reception.TotalLost)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("streamer did not stop")
	}
}

func TestStreamerCancel(t *testing.T) {
	receiver := listenUDP(t)
	cfg := testConfig(receiver.LocalAddr().String())
	cfg.MaxFrames = 0

	s, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return s.State() == StateStreaming
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("streamer did not stop")
	}
	assert.Equal(t, StateStopped, s.State())
}

func TestStreamerSetupFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	cfg := testConfig(addr)
	cfg.Writer.Kind = interfaces.KindTCP
	cfg.Writer.DialTimeout = 500 * time.Millisecond

	s, err := New(cfg)
	require.NoError(t, err)
	assert.Error(t, s.Run(context.Background()))
	assert.Equal(t, StateFailed, s.State())
}

func TestStreamerSessionDescription(t *testing.T) {
	s, err := New(testConfig("127.0.0.1:5004"))
	require.NoError(t, err)

	desc, err := s.SessionDescription()
	require.NoError(t, err)
	text := string(desc)
	assert.Contains(t, text, "raw/90000")
	assert.Contains(t, text, "width=32")
	assert.Contains(t, text, "height=8")

	cfg := testConfig("127.0.0.1:5004")
	cfg.Writer.Kind = interfaces.KindTCP
	s, err = New(cfg)
	require.NoError(t, err)
	_, err = s.SessionDescription()
	assert.ErrorIs(t, err, rtp.ErrInvalidConfig)
}

func TestStreamerServesControlEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s, err := New(testConfig("127.0.0.1:5004"))
	require.NoError(t, err)

	handler := control.NewServer("", s).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status control.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, s.ID().String(), status.StreamID)
	assert.Equal(t, StateIdle, status.State)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream.sdp", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "v=0"))
}
