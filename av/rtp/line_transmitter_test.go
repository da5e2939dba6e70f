package rtp

import (
	"encoding/binary"
	"testing"

	"github.com/opd-ai/rtpscreen/av/video"
	"github.com/opd-ai/rtpscreen/limits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLineTransmitterValidation(t *testing.T) {
	valid := LineConfig{MTU: 1500, PayloadType: DefaultPayloadType, FPS: 25}

	_, err := NewLineTransmitter(valid, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg := valid
	cfg.FPS = 0
	_, err = NewLineTransmitter(cfg, newMockSink())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = valid
	cfg.MTU = lineOverhead + 3
	_, err = NewLineTransmitter(cfg, newMockSink())
	assert.ErrorIs(t, err, limits.ErrMTUTooSmall)

	cfg = valid
	cfg.PayloadType = 0
	_, err = NewLineTransmitter(cfg, newMockSink())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewLineTransmitter(valid, newMockSink())
	assert.NoError(t, err)
}

func TestLineTransmitterFragmentsLines(t *testing.T) {
	sink := newMockSink()
	// 43 - 20 = 23 bytes, rounded down to 20 (five pixels)
	lt, err := NewLineTransmitter(LineConfig{MTU: 43, PayloadType: 96, FPS: 25, SSRC: 7}, sink)
	require.NoError(t, err)

	const width, height, pitch = 8, 3, 40
	frame := patternFrame(width, height, pitch)
	require.NoError(t, lt.WriteFrame(width, height, pitch, frame))

	pkts := parsePackets(t, sink.datagrams())
	// Each 32-byte line needs a 20-byte and a 12-byte fragment
	require.Len(t, pkts, 6)

	var payload []byte
	for i, pkt := range pkts {
		assert.Equal(t, uint8(96), pkt.PayloadType)
		assert.Equal(t, uint32(7), pkt.SSRC)
		assert.Equal(t, uint16(i), pkt.SequenceNumber)
		assert.Equal(t, uint32(0), pkt.Timestamp)
		assert.Equal(t, i == len(pkts)-1, pkt.Marker)

		seg := parseLineHeader(pkt.Payload[2:])
		assert.Equal(t, uint16(i/2), seg.Line)
		assert.False(t, seg.Continuation)
		if i%2 == 0 {
			assert.Equal(t, LineSegment{Length: 20, Line: uint16(i / 2), Offset: 0}, seg)
		} else {
			assert.Equal(t, LineSegment{Length: 12, Line: uint16(i / 2), Offset: 5}, seg)
		}
		payload = append(payload, pkt.Payload[8:]...)
	}
	assert.Equal(t, packRows(frame, width, height, pitch), payload)
	// Pixel bytes plus the extended sequence and line header of each fragment
	assert.Equal(t, uint64(width*height*4+6*(2+6)), lt.Stats().Octets)
}

func TestLineTransmitterExtendedSequenceAndTimestamp(t *testing.T) {
	sink := newMockSink()
	lt, err := NewLineTransmitter(LineConfig{
		MTU:             1500,
		PayloadType:     DefaultPayloadType,
		FPS:             60,
		InitialSequence: 0x0001FFFF,
	}, sink)
	require.NoError(t, err)

	require.NoError(t, lt.WriteFrame(2, 2, 8, patternFrame(2, 2, 8)))
	require.NoError(t, lt.WriteFrame(2, 2, 8, patternFrame(2, 2, 8)))

	d := sink.datagrams()
	require.Len(t, d, 4)

	pkts := parsePackets(t, d)
	assert.Equal(t, uint16(0xFFFF), pkts[0].SequenceNumber)
	assert.Equal(t, uint16(0x0001), binary.BigEndian.Uint16(pkts[0].Payload[0:2]))
	assert.Equal(t, uint16(0x0000), pkts[1].SequenceNumber)
	assert.Equal(t, uint16(0x0002), binary.BigEndian.Uint16(pkts[1].Payload[0:2]))

	assert.Equal(t, uint32(0), pkts[0].Timestamp)
	assert.Equal(t, uint32(0), pkts[1].Timestamp)
	assert.Equal(t, uint32(1500), pkts[2].Timestamp)
	assert.Equal(t, uint32(1500), pkts[3].Timestamp)

	assert.True(t, pkts[1].Marker)
	assert.True(t, pkts[3].Marker)
	assert.Equal(t, uint64(2), lt.Stats().Frames)
}

func TestLineTransmitterSendFailure(t *testing.T) {
	sink := newMockSink()
	sink.failOn[0] = errUnreachable
	lt, err := NewLineTransmitter(LineConfig{MTU: 1500, PayloadType: 100, FPS: 30}, sink)
	require.NoError(t, err)

	err = lt.WriteFrame(2, 2, 8, patternFrame(2, 2, 8))
	assert.ErrorIs(t, err, ErrSendFailed)
	assert.Len(t, sink.datagrams(), 1)
	assert.Equal(t, uint64(1), lt.Stats().SendErrors)
}

func TestLineTransmitterInvalidFrame(t *testing.T) {
	sink := newMockSink()
	lt, err := NewLineTransmitter(LineConfig{MTU: 1500, PayloadType: 100, FPS: 30}, sink)
	require.NoError(t, err)

	assert.ErrorIs(t, lt.WriteFrame(2, 2, 4, make([]byte, 16)), video.ErrInvalidFrame)
	assert.Empty(t, sink.datagrams())
}
