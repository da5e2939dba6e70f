// Package video holds the pixel-level helpers shared by the frame writers.
//
// # Frames
//
// Captured frames are packed 32-bit pixels (BGRA or RGBA) with an optional
// row pitch larger than the visible line. A Frame borrows its buffer; it
// never copies capture memory:
//
//	frame := video.NewFrame(width, height, rowPitch, buf)
//	if err := frame.Validate(); err != nil {
//	    return err
//	}
//
// ValidateGeometry accepts buffers whose last row omits its padding.
//
// # Scaling and JPEG
//
// Scaler resizes frames with nearest-neighbor sampling. FitWithin computes
// the largest aligned size that fits a bound while keeping the aspect ratio,
// which the RFC 2435 writer uses to stay under 2040x2040. EncodeJPEG and
// ParseJPEG produce and inspect baseline JPEG data.
//
// # Effects
//
// An EffectChain runs brightness, contrast and grayscale adjustments in
// place. Effects are only applied to buffers owned by a capture source.
//
// # Time
//
// All timestamps come from a TimeProvider so tests can run against a fixed
// clock. OffsetTimeProvider corrects the system clock by an offset measured
// against an NTP server:
//
//	clock := video.NewOffsetTimeProvider(nil)
//	if _, err := clock.SyncNTP("pool.ntp.org", video.DefaultNTPTimeout); err != nil {
//	    log.Printf("using system clock: %v", err)
//	}
package video
