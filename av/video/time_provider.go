package video

import "time"

// TimeProvider abstracts time operations for deterministic testing.
// Implementations must be safe for concurrent use.
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider uses the standard library time functions.
type DefaultTimeProvider struct{}

// Now returns the current time.
func (DefaultTimeProvider) Now() time.Time { return time.Now() }

// WallClockMillis returns the capture timestamp used by the raw video
// packetizer: milliseconds since the Unix epoch truncated to 32 bits.
func WallClockMillis(tp TimeProvider) uint32 {
	return uint32(tp.Now().UnixMilli())
}
