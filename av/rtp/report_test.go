package rtp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/opd-ai/rtpscreen/interfaces"
	"github.com/pion/rtcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReportSource struct {
	stats interfaces.WriterStats
	ssrc  uint32
}

func (f *fakeReportSource) Stats() interfaces.WriterStats { return f.stats }
func (f *fakeReportSource) SSRC() uint32                  { return f.ssrc }

func TestToNTPTime(t *testing.T) {
	assert.Equal(t, uint64(2208988800)<<32|0x80000000, toNTPTime(time.Unix(0, 500_000_000)))
	assert.Equal(t, uint64(2208988800+60)<<32, toNTPTime(time.Unix(60, 0)))
}

func TestNewSenderReporterValidation(t *testing.T) {
	src := &fakeReportSource{}
	_, err := NewSenderReporter(nil, newMockSink(), time.Second, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewSenderReporter(src, nil, time.Second, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewSenderReporter(src, newMockSink(), 0, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSenderReporterSendReport(t *testing.T) {
	src := &fakeReportSource{
		ssrc: 0xCAFE,
		stats: interfaces.WriterStats{
			Packets:       240,
			Octets:        307200,
			LastTimestamp: 123456,
		},
	}
	sink := newMockSink()
	clock := &stepClock{now: time.Unix(100, 0)}
	r, err := NewSenderReporter(src, sink, time.Second, clock)
	require.NoError(t, err)

	require.NoError(t, r.SendReport())
	d := sink.datagrams()
	require.Len(t, d, 1)

	pkts, err := rtcp.Unmarshal(d[0])
	require.NoError(t, err)
	require.Len(t, pkts, 1)
	sr, ok := pkts[0].(*rtcp.SenderReport)
	require.True(t, ok)
	assert.Equal(t, uint32(0xCAFE), sr.SSRC)
	assert.Equal(t, uint32(240), sr.PacketCount)
	assert.Equal(t, uint32(307200), sr.OctetCount)
	assert.Equal(t, uint32(123456), sr.RTPTime)
	assert.Equal(t, toNTPTime(time.Unix(100, 0)), sr.NTPTime)
}

func TestSenderReporterSendFailure(t *testing.T) {
	sink := newMockSink()
	sink.failOn[0] = errUnreachable
	r, err := NewSenderReporter(&fakeReportSource{}, sink, time.Second, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, r.SendReport(), errUnreachable)
}

func TestSenderReporterRun(t *testing.T) {
	sink := newMockSink()
	r, err := NewSenderReporter(&fakeReportSource{ssrc: 1}, sink, 10*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return len(sink.datagrams()) >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestSenderReporterHandleRTCP(t *testing.T) {
	clock := &stepClock{now: time.Unix(200, 0)}
	r, err := NewSenderReporter(&fakeReportSource{ssrc: 42}, newMockSink(), time.Second, clock)
	require.NoError(t, err)
	assert.Nil(t, r.Reception())

	addr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 5005}
	rr := &rtcp.ReceiverReport{
		SSRC: 9,
		Reports: []rtcp.ReceptionReport{
			{SSRC: 7, FractionLost: 200},
			{SSRC: 42, FractionLost: 12, TotalLost: 30, Jitter: 90},
		},
	}
	data, err := rr.Marshal()
	require.NoError(t, err)
	require.NoError(t, r.HandleRTCP(data, addr))

	got := r.Reception()
	require.NotNil(t, got)
	assert.Equal(t, ReceptionSummary{
		Reporter:     9,
		FractionLost: 12,
		TotalLost:    30,
		Jitter:       90,
		ReceivedAt:   time.Unix(200, 0),
	}, *got)

	assert.Error(t, r.HandleRTCP([]byte{0x01, 0x02}, addr))
}

func TestRTCPAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"127.0.0.1:5004", "127.0.0.1:5005", false},
		{"[::1]:6000", "[::1]:6001", false},
		{"receiver.local:5004", "receiver.local:5005", false},
		{"127.0.0.1", "", true},
		{"127.0.0.1:65535", "", true},
		{"127.0.0.1:rtp", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := RTCPAddress(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
