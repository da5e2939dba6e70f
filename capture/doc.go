// Package capture produces frames for the frame writers.
//
// Real screen capture is platform specific and lives outside this module;
// anything that calls FrameWriter.WriteFrame from one goroutine can feed the
// writers. PatternSource is a synthetic source used for testing receivers
// and for benchmarking the packetizers without a display.
package capture
