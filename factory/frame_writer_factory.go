package factory

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/opd-ai/rtpscreen/av/rtp"
	"github.com/opd-ai/rtpscreen/av/stream"
	"github.com/opd-ai/rtpscreen/av/video"
	"github.com/opd-ai/rtpscreen/interfaces"
	"github.com/opd-ai/rtpscreen/limits"
	"github.com/opd-ai/rtpscreen/transport"
	"github.com/sirupsen/logrus"
)

// Validation constants for configuration bounds checking.
const (
	// MinFPS is the lowest supported nominal frame rate.
	MinFPS = 1
	// MaxFPS is the highest supported nominal frame rate.
	MaxFPS = 240
	// DefaultDestination is where streams go when nothing is configured.
	DefaultDestination = "127.0.0.1:5004"
	// DefaultDialTimeout bounds TCP connection setup.
	DefaultDialTimeout = 5 * time.Second
)

// FrameWriterFactory creates frame writer implementations based on configuration.
// It is safe for concurrent use; all methods are protected by an internal mutex.
type FrameWriterFactory struct {
	mu            sync.RWMutex
	defaultConfig *interfaces.FrameWriterConfig
	timeProvider  video.TimeProvider
}

// NewFrameWriterFactory creates a new factory with default configuration
// and RTPSCREEN_* environment overrides applied.
func NewFrameWriterFactory() *FrameWriterFactory {
	defaultConfig := createDefaultConfig()
	applyEnvironmentOverrides(defaultConfig)
	logConfigurationInfo(defaultConfig)

	return &FrameWriterFactory{
		defaultConfig: defaultConfig,
		timeProvider:  video.DefaultTimeProvider{},
	}
}

// createDefaultConfig initializes the default frame writer configuration.
//
// Default Value Rationale:
//   - Kind: raw - RFC 4175 is the primary stream format
//   - MTU: 1500 - Standard Ethernet; jumbo frames must be opted into
//   - PayloadType: 127 - Last dynamic payload type, matching existing receivers
//   - SSRC: 0 - Receivers key on the destination port, not the source id
//   - FPS: 30 - Typical desktop capture rate
func createDefaultConfig() *interfaces.FrameWriterConfig {
	return &interfaces.FrameWriterConfig{
		Kind:        interfaces.KindRaw,
		Destination: DefaultDestination,
		MTU:         limits.DefaultMTU,
		PayloadType: rtp.DefaultPayloadType,
		FPS:         30,
		JPEGQuality: rtp.DefaultJPEGQuality,
		DialTimeout: DefaultDialTimeout,
	}
}

// applyEnvironmentOverrides updates configuration based on environment variables.
func applyEnvironmentOverrides(config *interfaces.FrameWriterConfig) {
	parseKindSetting(config)
	parseMTUSetting(config)
	parseSSRCSetting(config)
	parsePayloadTypeSetting(config)
}

// parseKindSetting updates Kind from RTPSCREEN_KIND.
func parseKindSetting(config *interfaces.FrameWriterConfig) {
	if kindStr := os.Getenv("RTPSCREEN_KIND"); kindStr != "" {
		kind := interfaces.WriterKind(kindStr)
		if !kind.Valid() {
			logrus.WithFields(logrus.Fields{
				"function":    "parseKindSetting",
				"env_var":     "RTPSCREEN_KIND",
				"value":       kindStr,
				"using_value": config.Kind,
			}).Warn("Unknown RTPSCREEN_KIND value, using default")
			return
		}
		config.Kind = kind
	}
}

// parseMTUSetting updates MTU from RTPSCREEN_MTU. Values outside
// [limits.MinMTU, limits.MaxMTU] are ignored with a warning.
func parseMTUSetting(config *interfaces.FrameWriterConfig) {
	if mtuStr := os.Getenv("RTPSCREEN_MTU"); mtuStr != "" {
		mtu, err := strconv.Atoi(mtuStr)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":    "parseMTUSetting",
				"env_var":     "RTPSCREEN_MTU",
				"value":       mtuStr,
				"error":       err.Error(),
				"using_value": config.MTU,
			}).Warn("Failed to parse RTPSCREEN_MTU environment variable, using default")
			return
		}
		if err := limits.ValidateMTU(mtu); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":    "parseMTUSetting",
				"env_var":     "RTPSCREEN_MTU",
				"value":       mtu,
				"min":         limits.MinMTU,
				"max":         limits.MaxMTU,
				"using_value": config.MTU,
			}).Warn("RTPSCREEN_MTU value out of bounds, using default")
			return
		}
		config.MTU = mtu
	}
}

// parseSSRCSetting updates SSRC from RTPSCREEN_SSRC. Hex values with a 0x
// prefix are accepted.
func parseSSRCSetting(config *interfaces.FrameWriterConfig) {
	if ssrcStr := os.Getenv("RTPSCREEN_SSRC"); ssrcStr != "" {
		ssrc, err := strconv.ParseUint(ssrcStr, 0, 32)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":    "parseSSRCSetting",
				"env_var":     "RTPSCREEN_SSRC",
				"value":       ssrcStr,
				"error":       err.Error(),
				"using_value": config.SSRC,
			}).Warn("Failed to parse RTPSCREEN_SSRC environment variable, using default")
			return
		}
		config.SSRC = uint32(ssrc)
	}
}

// parsePayloadTypeSetting updates PayloadType from RTPSCREEN_PAYLOAD_TYPE.
func parsePayloadTypeSetting(config *interfaces.FrameWriterConfig) {
	if ptStr := os.Getenv("RTPSCREEN_PAYLOAD_TYPE"); ptStr != "" {
		pt, err := strconv.ParseUint(ptStr, 10, 8)
		if err == nil {
			err = rtp.ValidatePayloadType(uint8(pt))
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":    "parsePayloadTypeSetting",
				"env_var":     "RTPSCREEN_PAYLOAD_TYPE",
				"value":       ptStr,
				"error":       err.Error(),
				"min":         rtp.MinDynamicPayloadType,
				"max":         rtp.MaxDynamicPayloadType,
				"using_value": config.PayloadType,
			}).Warn("Invalid RTPSCREEN_PAYLOAD_TYPE value, using default")
			return
		}
		config.PayloadType = uint8(pt)
	}
}

// logConfigurationInfo logs the final configuration settings for debugging purposes.
func logConfigurationInfo(config *interfaces.FrameWriterConfig) {
	logrus.WithFields(logrus.Fields{
		"function":     "NewFrameWriterFactory",
		"kind":         config.Kind,
		"destination":  config.Destination,
		"mtu":          config.MTU,
		"ssrc":         config.SSRC,
		"payload_type": config.PayloadType,
	}).Info("Created frame writer factory with configuration")
}

// SetTimeProvider replaces the clock handed to RTP writers.
func (f *FrameWriterFactory) SetTimeProvider(tp video.TimeProvider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeProvider = tp
}

// GetCurrentConfig returns a copy of the current default configuration
func (f *FrameWriterFactory) GetCurrentConfig() *interfaces.FrameWriterConfig {
	f.mu.RLock()
	defer f.mu.RUnlock()

	cfg := *f.defaultConfig
	return &cfg
}

// UpdateConfig updates the factory's default configuration
func (f *FrameWriterFactory) UpdateConfig(config *interfaces.FrameWriterConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "UpdateConfig",
		"old_kind": f.defaultConfig.Kind,
		"new_kind": config.Kind,
		"old_mtu":  f.defaultConfig.MTU,
		"new_mtu":  config.MTU,
	}).Info("Updating factory configuration")

	cfg := *config
	f.defaultConfig = &cfg
	return nil
}

// CreateFrameWriter creates a frame writer from the default configuration.
func (f *FrameWriterFactory) CreateFrameWriter() (interfaces.FrameWriter, error) {
	return f.CreateFrameWriterWithConfig(f.GetCurrentConfig())
}

// CreateFrameWriterWithConfig creates a frame writer and opens its
// destination: a UDP socket for RTP kinds, a TCP connection for streams.
func (f *FrameWriterFactory) CreateFrameWriterWithConfig(config *interfaces.FrameWriterConfig) (interfaces.FrameWriter, error) {
	if config == nil {
		config = f.GetCurrentConfig()
	}
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":    "CreateFrameWriterWithConfig",
		"kind":        config.Kind,
		"destination": config.Destination,
	}).Info("Creating frame writer implementation")

	if config.Kind == interfaces.KindTCP {
		return f.createStreamWriter(config)
	}

	sink, err := transport.NewUDPSink(config.LocalAddr, config.Destination)
	if err != nil {
		return nil, err
	}
	writer, err := f.CreateFrameWriterWithSink(config, sink)
	if err != nil {
		sink.Close()
		return nil, err
	}
	return writer, nil
}

// CreateFrameWriterWithSink creates a datagram frame writer that sends to an
// existing sink. Stream kinds are rejected.
func (f *FrameWriterFactory) CreateFrameWriterWithSink(config *interfaces.FrameWriterConfig, sink transport.Sink) (interfaces.FrameWriter, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	f.mu.RLock()
	tp := f.timeProvider
	f.mu.RUnlock()

	var (
		writer interfaces.FrameWriter
		err    error
	)
	switch config.Kind {
	case interfaces.KindRaw:
		writer, err = asWriter(rtp.NewRawVideoPacketizer(rtp.RawVideoConfig{
			MTU:             config.MTU,
			Width:           config.Width,
			SSRC:            config.SSRC,
			PayloadType:     config.PayloadType,
			InitialSequence: config.InitialSequence,
			TimeProvider:    tp,
		}, sink))
	case interfaces.KindLine:
		writer, err = asWriter(rtp.NewLineTransmitter(rtp.LineConfig{
			MTU:             config.MTU,
			SSRC:            config.SSRC,
			PayloadType:     config.PayloadType,
			InitialSequence: uint32(config.InitialSequence),
			FPS:             config.FPS,
		}, sink))
	case interfaces.KindJPEG:
		writer, err = asWriter(rtp.NewJPEGWriter(rtp.JPEGConfig{
			MTU:             config.MTU,
			SSRC:            config.SSRC,
			PayloadType:     config.PayloadType,
			InitialSequence: config.InitialSequence,
			Quality:         config.JPEGQuality,
			TimeProvider:    tp,
		}, sink))
	default:
		err = fmt.Errorf("%w: %q writers do not send datagrams", rtp.ErrInvalidConfig, config.Kind)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "CreateFrameWriterWithSink",
			"kind":     config.Kind,
			"error":    err.Error(),
		}).Error("Failed to create frame writer")
		return nil, err
	}
	return writer, nil
}

// asWriter converts a constructor result without leaking a typed nil.
func asWriter(w interfaces.FrameWriter, err error) (interfaces.FrameWriter, error) {
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (f *FrameWriterFactory) createStreamWriter(config *interfaces.FrameWriterConfig) (interfaces.FrameWriter, error) {
	timeout := config.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	conn, err := transport.DialTCP(config.Destination, timeout)
	if err != nil {
		return nil, err
	}

	if !config.Secure {
		return stream.NewTCPFrameWriter(conn), nil
	}

	writer, err := stream.NewSecureTCPFrameWriter(conn, config.PrivateKey, config.PeerPublicKey)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return writer, nil
}

// ValidateConfig checks a configuration before any socket is opened.
func ValidateConfig(config *interfaces.FrameWriterConfig) error {
	if config == nil {
		return fmt.Errorf("%w: config cannot be nil", rtp.ErrInvalidConfig)
	}
	if !config.Kind.Valid() {
		return fmt.Errorf("%w: unknown writer kind %q", rtp.ErrInvalidConfig, config.Kind)
	}
	if config.Destination == "" {
		return fmt.Errorf("%w: destination is required", rtp.ErrInvalidConfig)
	}
	if config.FPS < MinFPS || config.FPS > MaxFPS {
		return fmt.Errorf("%w: fps %d outside %d..%d", rtp.ErrInvalidConfig, config.FPS, MinFPS, MaxFPS)
	}

	switch config.Kind {
	case interfaces.KindRaw:
		if config.Width <= 0 {
			return fmt.Errorf("%w: raw streams need the frame width", rtp.ErrInvalidConfig)
		}
	case interfaces.KindTCP:
		if config.Secure && (len(config.PrivateKey) == 0 || len(config.PeerPublicKey) == 0) {
			return fmt.Errorf("%w: secure streams need a private key and the peer public key", rtp.ErrInvalidConfig)
		}
		return nil
	}
	return limits.ValidateMTU(config.MTU)
}
