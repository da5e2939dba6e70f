package rtp

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"

	"github.com/google/uuid"
	"github.com/opd-ai/rtpscreen/av/video"
	"github.com/opd-ai/rtpscreen/interfaces"
	"github.com/pion/sdp/v3"
)

// SessionInfo describes an outgoing stream for its session description.
type SessionInfo struct {
	StreamID    uuid.UUID
	Kind        interfaces.WriterKind
	PayloadType uint8
	Format      video.PixelFormat
	Width       int
	Height      int
	FPS         int
	// Destination is the host:port the RTP stream is sent to
	Destination string
}

// BuildSessionDescription returns the SDP text a receiver needs to decode
// the stream described by info.
func BuildSessionDescription(info SessionInfo) ([]byte, error) {
	host, portStr, err := net.SplitHostPort(info.Destination)
	if err != nil {
		return nil, fmt.Errorf("%w: destination %q: %w", ErrInvalidConfig, info.Destination, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("%w: destination port %q: %w", ErrInvalidConfig, portStr, err)
	}

	addrType := "IP4"
	if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
		addrType = "IP6"
	}

	media := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:  "video",
			Port:   sdp.RangedPort{Value: port},
			Protos: []string{"RTP", "AVP"},
		},
	}

	switch info.Kind {
	case interfaces.KindRaw, interfaces.KindLine:
		fmtp := fmt.Sprintf("sampling=%s; width=%d; height=%d; depth=8; colorimetry=SMPTE240M",
			info.Format, info.Width, info.Height)
		media = media.WithCodec(info.PayloadType, "raw", VideoClockRate, 0, fmtp)
	case interfaces.KindJPEG:
		media = media.WithCodec(info.PayloadType, "JPEG", VideoClockRate, 0, "")
	default:
		return nil, fmt.Errorf("%w: no session description for %q streams", ErrInvalidConfig, info.Kind)
	}
	if info.FPS > 0 {
		media = media.WithValueAttribute("framerate", strconv.Itoa(info.FPS))
	}
	media = media.WithPropertyAttribute("sendonly")

	desc := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      binary.BigEndian.Uint64(info.StreamID[:8]) >> 1,
			SessionVersion: 1,
			NetworkType:    "IN",
			AddressType:    addrType,
			UnicastAddress: host,
		},
		SessionName: sdp.SessionName("rtpscreen " + info.StreamID.String()),
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: addrType,
			Address:     &sdp.Address{Address: host},
		},
		TimeDescriptions: []sdp.TimeDescription{
			{Timing: sdp.Timing{StartTime: 0, StopTime: 0}},
		},
		MediaDescriptions: []*sdp.MediaDescription{media},
	}

	return desc.Marshal()
}
