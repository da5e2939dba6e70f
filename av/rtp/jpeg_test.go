package rtp

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/opd-ai/rtpscreen/av/video"
	"github.com/opd-ai/rtpscreen/limits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJPEGWriterValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     JPEGConfig
		wantErr error
	}{
		{"static payload type", JPEGConfig{MTU: 1500, PayloadType: JPEGPayloadType}, nil},
		{"dynamic payload type", JPEGConfig{MTU: 1500, PayloadType: 100, Quality: 90}, nil},
		{"invalid payload type", JPEGConfig{MTU: 1500, PayloadType: 31}, ErrInvalidConfig},
		{"quality too high", JPEGConfig{MTU: 1500, PayloadType: JPEGPayloadType, Quality: 101}, ErrInvalidConfig},
		{"mtu cannot hold tables", JPEGConfig{MTU: 100, PayloadType: JPEGPayloadType}, limits.ErrMTUTooSmall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewJPEGWriter(tt.cfg, newMockSink())
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := NewJPEGWriter(JPEGConfig{MTU: 1500, PayloadType: JPEGPayloadType}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestJPEGWriterPackets(t *testing.T) {
	const width, height = 64, 48
	sink := newMockSink()
	w, err := NewJPEGWriter(JPEGConfig{
		MTU:          300,
		PayloadType:  JPEGPayloadType,
		Quality:      80,
		TimeProvider: &stepClock{now: time.UnixMilli(1000)},
	}, sink)
	require.NoError(t, err)

	frame := patternFrame(width, height, width*4)
	require.NoError(t, w.WriteFrame(width, height, width*4, frame))

	encoded, err := video.EncodeJPEG(video.NewFrame(width, height, width*4, frame), 80)
	require.NoError(t, err)
	img, err := video.ParseJPEG(encoded)
	require.NoError(t, err)

	datagrams := sink.datagrams()
	require.Greater(t, len(datagrams), 1)
	pkts := parsePackets(t, datagrams)

	var scan []byte
	var octets uint64
	for i, pkt := range pkts {
		assert.LessOrEqual(t, len(datagrams[i]), 300)
		assert.Equal(t, JPEGPayloadType, pkt.PayloadType)
		assert.Equal(t, uint32(90000), pkt.Timestamp)
		assert.Equal(t, i == len(pkts)-1, pkt.Marker)

		p := pkt.Payload
		fragOffset := binary.BigEndian.Uint32(p[0:4]) & 0x00FFFFFF
		assert.Equal(t, uint32(len(scan)), fragOffset)
		assert.Equal(t, uint8(1), p[4], "4:2:0 type")
		assert.Equal(t, uint8(255), p[5], "in-band tables")
		assert.Equal(t, uint8(width/8), p[6])
		assert.Equal(t, uint8(height/8), p[7])

		data := p[8:]
		if i == 0 {
			assert.Equal(t, uint8(0), data[0])
			assert.Equal(t, uint8(0), data[1])
			require.Equal(t, uint16(128), binary.BigEndian.Uint16(data[2:4]))
			assert.Equal(t, img.QuantTables[0], data[4:68])
			assert.Equal(t, img.QuantTables[1], data[68:132])
			data = data[132:]
		}
		scan = append(scan, data...)
		octets += uint64(len(pkt.Payload))
	}
	assert.Equal(t, img.Scan, scan)
	assert.Equal(t, uint64(1), w.Stats().Frames)
	assert.Equal(t, octets, w.Stats().Octets)
}

func TestJPEGWriterScalesOversizedFrames(t *testing.T) {
	const width, height = 2100, 16
	sink := newMockSink()
	w, err := NewJPEGWriter(JPEGConfig{MTU: 1500, PayloadType: JPEGPayloadType}, sink)
	require.NoError(t, err)

	require.NoError(t, w.WriteFrame(width, height, width*4, make([]byte, width*height*4)))

	pkts := parsePackets(t, sink.datagrams())
	require.NotEmpty(t, pkts)
	assert.Equal(t, uint8(255), pkts[0].Payload[6])
	assert.Equal(t, uint8(1), pkts[0].Payload[7])
}

func TestJPEGWriterInvalidFrame(t *testing.T) {
	sink := newMockSink()
	w, err := NewJPEGWriter(JPEGConfig{MTU: 1500, PayloadType: JPEGPayloadType}, sink)
	require.NoError(t, err)

	assert.ErrorIs(t, w.WriteFrame(8, 8, 32, make([]byte, 10)), video.ErrInvalidFrame)
	assert.Empty(t, sink.datagrams())
}
