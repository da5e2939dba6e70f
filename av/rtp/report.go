package rtp

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/opd-ai/rtpscreen/av/video"
	"github.com/opd-ai/rtpscreen/interfaces"
	"github.com/opd-ai/rtpscreen/transport"
	"github.com/pion/rtcp"
	"github.com/sirupsen/logrus"
)

// DefaultReportInterval is the period between RTCP sender reports.
const DefaultReportInterval = 5 * time.Second

// ntpEpochOffset is the number of seconds between 1900 and 1970.
const ntpEpochOffset = 2208988800

// ReportSource is a frame writer whose counters feed sender reports.
type ReportSource interface {
	interfaces.StatsProvider
	SSRC() uint32
}

// ReceptionSummary is the most recent receiver feedback for our stream.
type ReceptionSummary struct {
	Reporter     uint32    `json:"reporter"`
	FractionLost uint8     `json:"fraction_lost"`
	TotalLost    uint32    `json:"total_lost"`
	Jitter       uint32    `json:"jitter"`
	ReceivedAt   time.Time `json:"received_at"`
}

// SenderReporter periodically sends RTCP sender reports describing a
// writer's stream and records receiver reports sent back to it.
type SenderReporter struct {
	source   ReportSource
	sink     transport.Sink
	clock    video.TimeProvider
	interval time.Duration

	mu        sync.RWMutex
	reception *ReceptionSummary
}

// NewSenderReporter creates a reporter for source that sends on sink.
// A nil clock uses the wall clock.
func NewSenderReporter(source ReportSource, sink transport.Sink, interval time.Duration, clock video.TimeProvider) (*SenderReporter, error) {
	if source == nil || sink == nil {
		return nil, fmt.Errorf("%w: reporter needs a source and a sink", ErrInvalidConfig)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: report interval must be positive, got %v", ErrInvalidConfig, interval)
	}
	if clock == nil {
		clock = video.DefaultTimeProvider{}
	}
	return &SenderReporter{
		source:   source,
		sink:     sink,
		clock:    clock,
		interval: interval,
	}, nil
}

// BuildReport assembles a sender report from the current counters.
func (r *SenderReporter) BuildReport() *rtcp.SenderReport {
	stats := r.source.Stats()
	return &rtcp.SenderReport{
		SSRC:        r.source.SSRC(),
		NTPTime:     toNTPTime(r.clock.Now()),
		RTPTime:     stats.LastTimestamp,
		PacketCount: uint32(stats.Packets),
		OctetCount:  uint32(stats.Octets),
	}
}

// SendReport sends one sender report immediately.
func (r *SenderReporter) SendReport() error {
	sr := r.BuildReport()
	data, err := sr.Marshal()
	if err != nil {
		return fmt.Errorf("marshal sender report: %w", err)
	}
	if err := r.sink.Send(data); err != nil {
		return fmt.Errorf("send sender report: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function":     "SenderReporter.SendReport",
		"ssrc":         sr.SSRC,
		"packet_count": sr.PacketCount,
		"octet_count":  sr.OctetCount,
	}).Debug("Sent RTCP sender report")
	return nil
}

// Run sends a report every interval until ctx is cancelled.
func (r *SenderReporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.SendReport(); err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "SenderReporter.Run",
					"error":    err.Error(),
				}).Warn("Failed to send RTCP sender report")
			}
		}
	}
}

// HandleRTCP processes an incoming RTCP compound packet. Receiver reports
// about our SSRC replace the stored reception summary.
func (r *SenderReporter) HandleRTCP(data []byte, addr net.Addr) error {
	packets, err := rtcp.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("unmarshal rtcp from %s: %w", addr, err)
	}

	ssrc := r.source.SSRC()
	for _, pkt := range packets {
		rr, ok := pkt.(*rtcp.ReceiverReport)
		if !ok {
			continue
		}
		for _, report := range rr.Reports {
			if report.SSRC != ssrc {
				continue
			}
			summary := &ReceptionSummary{
				Reporter:     rr.SSRC,
				FractionLost: report.FractionLost,
				TotalLost:    report.TotalLost,
				Jitter:       report.Jitter,
				ReceivedAt:   r.clock.Now(),
			}
			r.mu.Lock()
			r.reception = summary
			r.mu.Unlock()

			logrus.WithFields(logrus.Fields{
				"function":      "SenderReporter.HandleRTCP",
				"reporter":      rr.SSRC,
				"fraction_lost": report.FractionLost,
				"jitter":        report.Jitter,
			}).Debug("Receiver report received")
		}
	}
	return nil
}

// Reception returns the latest receiver feedback, or nil if none arrived.
func (r *SenderReporter) Reception() *ReceptionSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.reception == nil {
		return nil
	}
	summary := *r.reception
	return &summary
}

// RTCPAddress returns the conventional RTCP address for an RTP destination:
// the same host, one port up.
func RTCPAddress(rtpAddr string) (string, error) {
	host, portStr, err := net.SplitHostPort(rtpAddr)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port >= 65535 {
		return "", fmt.Errorf("%w: rtp port %q has no rtcp successor", ErrInvalidConfig, portStr)
	}
	return net.JoinHostPort(host, strconv.Itoa(port+1)), nil
}

// toNTPTime converts t to the 64-bit NTP timestamp format.
func toNTPTime(t time.Time) uint64 {
	secs := uint64(t.Unix()) + ntpEpochOffset
	frac := uint64(t.Nanosecond()) << 32 / uint64(time.Second)
	return secs<<32 | frac
}
