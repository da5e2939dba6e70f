package rtp

import "errors"

// Frame writer errors
var (
	// ErrInvalidConfig indicates a writer was constructed with unusable settings
	ErrInvalidConfig = errors.New("invalid writer configuration")

	// ErrSendFailed indicates one or more datagrams of a frame could not be sent
	ErrSendFailed = errors.New("datagram send failed")

	// ErrFrameTooLarge indicates frame dimensions exceed the line header fields
	ErrFrameTooLarge = errors.New("frame dimensions exceed payload format limits")
)

// ErrMalformedPayload indicates a received datagram could not be parsed
var ErrMalformedPayload = errors.New("malformed raw video payload")
