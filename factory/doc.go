// Package factory builds frame writers from configuration.
//
// The factory starts from built-in defaults and applies environment
// overrides, so deployments can tune a stream without new flags:
//
//	RTPSCREEN_KIND          raw, line, jpeg or tcp
//	RTPSCREEN_MTU           datagram size limit, 24..65507
//	RTPSCREEN_SSRC          stream identifier, decimal or 0x-prefixed hex
//	RTPSCREEN_PAYLOAD_TYPE  dynamic payload type, 96..127
//
// Invalid values are logged and ignored.
//
//	f := factory.NewFrameWriterFactory()
//	cfg := f.GetCurrentConfig()
//	cfg.Width, cfg.Height = 1920, 1080
//	writer, err := f.CreateFrameWriterWithConfig(cfg)
package factory
