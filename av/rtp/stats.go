package rtp

import (
	"fmt"
	"sync/atomic"

	"github.com/opd-ai/rtpscreen/interfaces"
	"github.com/sirupsen/logrus"
)

// Statistics tracks transmission counters for a frame writer. Counters are
// updated by the writing goroutine and may be read from any goroutine.
type Statistics struct {
	frames        atomic.Uint64
	packets       atomic.Uint64
	octets        atomic.Uint64
	sendErrors    atomic.Uint64
	lastSequence  atomic.Uint32
	lastTimestamp atomic.Uint32
}

// Snapshot returns a consistent-enough copy of the counters for reporting.
func (s *Statistics) Snapshot() interfaces.WriterStats {
	return interfaces.WriterStats{
		Frames:        s.frames.Load(),
		Packets:       s.packets.Load(),
		Octets:        s.octets.Load(),
		SendErrors:    s.sendErrors.Load(),
		LastSequence:  uint16(s.lastSequence.Load()),
		LastTimestamp: s.lastTimestamp.Load(),
	}
}

// sendTracker aggregates per-datagram send failures within one frame.
type sendTracker struct {
	function string
	stats    *Statistics
	first    error
	failures int
}

// record accounts for the outcome of one datagram send. payload is the
// RTP payload size in octets, payload headers included.
func (t *sendTracker) record(err error, seq uint16, payload int) {
	t.stats.lastSequence.Store(uint32(seq))
	if err != nil {
		t.failures++
		if t.first == nil {
			t.first = err
		}
		t.stats.sendErrors.Add(1)
		logrus.WithFields(logrus.Fields{
			"function": t.function,
			"sequence": seq,
			"error":    err.Error(),
		}).Warn("Failed to send datagram")
		return
	}
	t.stats.packets.Add(1)
	t.stats.octets.Add(uint64(payload))
}

// finish completes the frame and returns the aggregated send error, if any.
func (t *sendTracker) finish(timestamp uint32) error {
	t.stats.frames.Add(1)
	t.stats.lastTimestamp.Store(timestamp)
	if t.failures == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d datagram(s) lost, first: %w", ErrSendFailed, t.failures, t.first)
}
