package video

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/beevik/ntp"
	"github.com/sirupsen/logrus"
)

// DefaultNTPTimeout bounds a single NTP query.
const DefaultNTPTimeout = 3 * time.Second

// OffsetTimeProvider shifts another clock by a correction that can be
// updated while frames are being written.
type OffsetTimeProvider struct {
	base   TimeProvider
	offset atomic.Int64
}

// NewOffsetTimeProvider wraps base. A nil base uses the system clock.
func NewOffsetTimeProvider(base TimeProvider) *OffsetTimeProvider {
	if base == nil {
		base = DefaultTimeProvider{}
	}
	return &OffsetTimeProvider{base: base}
}

// Now returns the base time plus the current offset.
func (o *OffsetTimeProvider) Now() time.Time {
	return o.base.Now().Add(o.Offset())
}

// Offset returns the current correction.
func (o *OffsetTimeProvider) Offset() time.Duration {
	return time.Duration(o.offset.Load())
}

// SetOffset replaces the correction.
func (o *OffsetTimeProvider) SetOffset(d time.Duration) {
	o.offset.Store(int64(d))
}

// SyncNTP queries server and stores the measured clock offset. The previous
// offset is kept when the query fails.
func (o *OffsetTimeProvider) SyncNTP(server string, timeout time.Duration) (time.Duration, error) {
	if server == "" {
		return 0, errors.New("ntp server cannot be empty")
	}
	if timeout <= 0 {
		timeout = DefaultNTPTimeout
	}

	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: timeout})
	if err == nil {
		err = resp.Validate()
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "SyncNTP",
			"server":   server,
			"error":    err.Error(),
			"offset":   o.Offset(),
		}).Warn("NTP query failed, keeping previous offset")
		return o.Offset(), fmt.Errorf("ntp query %s: %w", server, err)
	}

	o.SetOffset(resp.ClockOffset)
	logrus.WithFields(logrus.Fields{
		"function": "SyncNTP",
		"server":   server,
		"offset":   resp.ClockOffset,
		"rtt":      resp.RTT,
		"stratum":  resp.Stratum,
	}).Info("Synchronized clock offset")
	return resp.ClockOffset, nil
}
