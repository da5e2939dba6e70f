package rtp

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/opd-ai/rtpscreen/av/video"
	"github.com/opd-ai/rtpscreen/interfaces"
	"github.com/pion/sdp/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStreamID = uuid.MustParse("6f1c2d3e-4a5b-4c6d-8e9f-0a1b2c3d4e5f")

func TestBuildSessionDescriptionRaw(t *testing.T) {
	text, err := BuildSessionDescription(SessionInfo{
		StreamID:    testStreamID,
		Kind:        interfaces.KindRaw,
		PayloadType: 127,
		Format:      video.PixelFormatBGRA,
		Width:       320,
		Height:      240,
		FPS:         30,
		Destination: "192.0.2.10:5004",
	})
	require.NoError(t, err)

	s := string(text)
	assert.Contains(t, s, "m=video 5004 RTP/AVP 127\r\n")
	assert.Contains(t, s, "c=IN IP4 192.0.2.10\r\n")
	assert.Contains(t, s, "a=rtpmap:127 raw/90000\r\n")
	assert.Contains(t, s, "a=fmtp:127 sampling=BGRA; width=320; height=240; depth=8; colorimetry=SMPTE240M\r\n")
	assert.Contains(t, s, "a=framerate:30\r\n")
	assert.Contains(t, s, "a=sendonly\r\n")
	assert.Contains(t, s, testStreamID.String())

	var parsed sdp.SessionDescription
	require.NoError(t, parsed.Unmarshal(text))
	require.Len(t, parsed.MediaDescriptions, 1)
	assert.Equal(t, 5004, parsed.MediaDescriptions[0].MediaName.Port.Value)
}

func TestBuildSessionDescriptionJPEG(t *testing.T) {
	text, err := BuildSessionDescription(SessionInfo{
		StreamID:    testStreamID,
		Kind:        interfaces.KindJPEG,
		PayloadType: JPEGPayloadType,
		Destination: "[2001:db8::1]:6000",
	})
	require.NoError(t, err)

	s := string(text)
	assert.Contains(t, s, "m=video 6000 RTP/AVP 26\r\n")
	assert.Contains(t, s, "c=IN IP6 2001:db8::1\r\n")
	assert.Contains(t, s, "a=rtpmap:26 JPEG/90000\r\n")
	assert.False(t, strings.Contains(s, "a=fmtp"))
}

func TestBuildSessionDescriptionErrors(t *testing.T) {
	_, err := BuildSessionDescription(SessionInfo{Kind: interfaces.KindTCP, Destination: "127.0.0.1:9000"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = BuildSessionDescription(SessionInfo{Kind: interfaces.KindRaw, Destination: "no-port"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = BuildSessionDescription(SessionInfo{Kind: interfaces.KindRaw, Destination: "host:http"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
