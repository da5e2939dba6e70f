// Package main provides the command-line interface for streaming a synthetic
// screen capture over RTP or TCP.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/opd-ai/rtpscreen"
	"github.com/opd-ai/rtpscreen/av/rtp"
	"github.com/opd-ai/rtpscreen/av/video"
	"github.com/opd-ai/rtpscreen/crypto"
	"github.com/opd-ai/rtpscreen/factory"
	"github.com/opd-ai/rtpscreen/interfaces"
	"github.com/opd-ai/rtpscreen/limits"
	"github.com/sirupsen/logrus"
)

// CLI configuration
type CLIConfig struct {
	kind        string
	destination string
	localAddr   string
	mtu         int
	ssrc        string
	payloadType uint
	width       int
	height      int
	fps         int
	format      string
	quality     int
	maxFrames   uint64

	rtcpInterval time.Duration
	rtcpAddr     string
	httpAddr     string
	ntpServer    string
	ntpTimeout   time.Duration

	secure  bool
	keyHex  string
	peerHex string

	brightness int
	contrast   float64
	grayscale  bool

	logLevel  string
	logFormat string
	logFile   string
	help      bool
}

// parseCLIFlags parses command-line flags and returns the configuration.
func parseCLIFlags(fs *flag.FlagSet, args []string) (*CLIConfig, error) {
	config := &CLIConfig{}

	// Stream configuration
	fs.StringVar(&config.kind, "kind", string(interfaces.KindRaw), "Writer kind (raw, line, jpeg, tcp)")
	fs.StringVar(&config.destination, "dest", factory.DefaultDestination, "Receiver address (host:port)")
	fs.StringVar(&config.localAddr, "local", "", "Local UDP address (default: any)")
	fs.IntVar(&config.mtu, "mtu", limits.DefaultMTU, "Maximum datagram size in bytes")
	fs.StringVar(&config.ssrc, "ssrc", "0", "RTP SSRC (decimal or 0x hex)")
	fs.UintVar(&config.payloadType, "pt", uint(rtp.DefaultPayloadType), "RTP payload type (96-127)")

	// Frame configuration
	fs.IntVar(&config.width, "width", 1280, "Frame width in pixels")
	fs.IntVar(&config.height, "height", 720, "Frame height in pixels")
	fs.IntVar(&config.fps, "fps", 30, "Frames per second")
	fs.StringVar(&config.format, "format", "BGRA", "Pixel format (BGRA, RGBA)")
	fs.IntVar(&config.quality, "quality", rtp.DefaultJPEGQuality, "JPEG quality (1-100)")
	fs.Uint64Var(&config.maxFrames, "frames", 0, "Stop after this many frames (0: run until interrupted)")

	// Reporting configuration
	fs.DurationVar(&config.rtcpInterval, "rtcp-interval", rtp.DefaultReportInterval, "RTCP sender report interval (0 disables)")
	fs.StringVar(&config.rtcpAddr, "rtcp-addr", "", "RTCP destination (default: RTP port + 1)")
	fs.StringVar(&config.httpAddr, "http", "", "Control server listen address (empty disables)")
	fs.StringVar(&config.ntpServer, "ntp-server", "", "NTP server used to correct the capture clock")
	fs.DurationVar(&config.ntpTimeout, "ntp-timeout", video.DefaultNTPTimeout, "NTP query timeout")

	// Secure stream configuration
	fs.BoolVar(&config.secure, "secure", false, "Encrypt the TCP stream with Noise IK")
	fs.StringVar(&config.keyHex, "key", "", "Hex private key (default: generate one)")
	fs.StringVar(&config.peerHex, "peer-key", "", "Hex public key of the receiver")

	// Effects
	fs.IntVar(&config.brightness, "brightness", 0, "Brightness adjustment (-255 to 255)")
	fs.Float64Var(&config.contrast, "contrast", 1, "Contrast factor (0 to 4)")
	fs.BoolVar(&config.grayscale, "grayscale", false, "Convert frames to grayscale")

	// Logging configuration
	fs.StringVar(&config.logLevel, "log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	fs.StringVar(&config.logFormat, "log-format", "text", "Log format (text, json)")
	fs.StringVar(&config.logFile, "log-file", "", "Log file path (default: stderr)")

	// Help
	fs.BoolVar(&config.help, "help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return config, nil
}

// printUsage prints the usage information.
func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "rtpscreen - stream screen frames as RFC 4175 raw video")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintf(w, "  %s [options]\n", os.Args[0])
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintf(w, "  # Raw video to a receiver, SDP on :8080\n")
	fmt.Fprintf(w, "  %s -dest 192.0.2.10:5004 -width 1920 -height 1080 -http :8080\n", os.Args[0])
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  # Encrypted TCP stream\n")
	fmt.Fprintf(w, "  %s -kind tcp -dest 192.0.2.10:7000 -secure -peer-key <hex>\n", os.Args[0])
}

// validateCLIConfig validates the CLI configuration.
func validateCLIConfig(config *CLIConfig) error {
	if !interfaces.WriterKind(config.kind).Valid() {
		return fmt.Errorf("invalid kind %q: must be raw, line, jpeg or tcp", config.kind)
	}
	if config.destination == "" {
		return fmt.Errorf("destination cannot be empty")
	}
	if config.width <= 0 || config.height <= 0 {
		return fmt.Errorf("frame size must be positive, got %dx%d", config.width, config.height)
	}
	if config.fps < factory.MinFPS || config.fps > factory.MaxFPS {
		return fmt.Errorf("fps must be between %d and %d", factory.MinFPS, factory.MaxFPS)
	}
	if config.payloadType > 127 {
		return fmt.Errorf("payload type %d does not fit in 7 bits", config.payloadType)
	}
	if _, err := parseSSRC(config.ssrc); err != nil {
		return err
	}
	if _, err := video.ParsePixelFormat(config.format); err != nil {
		return err
	}
	if config.rtcpInterval < 0 {
		return fmt.Errorf("rtcp interval cannot be negative")
	}
	if config.secure {
		if config.kind != string(interfaces.KindTCP) {
			return fmt.Errorf("-secure requires -kind tcp")
		}
		if config.peerHex == "" {
			return fmt.Errorf("-secure requires -peer-key")
		}
	}
	if config.logFormat != "text" && config.logFormat != "json" {
		return fmt.Errorf("invalid log format %q: must be text or json", config.logFormat)
	}
	if _, err := logrus.ParseLevel(config.logLevel); err != nil {
		return err
	}
	return nil
}

func parseSSRC(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid ssrc %q: %w", s, err)
	}
	return uint32(v), nil
}

// setupLogging configures the global logger. The returned closer releases
// the log file, if any.
func setupLogging(config *CLIConfig) (io.Closer, error) {
	level, err := logrus.ParseLevel(config.logLevel)
	if err != nil {
		return nil, err
	}
	logrus.SetLevel(level)

	if config.logFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if config.logFile == "" {
		return io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(config.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logrus.SetOutput(f)
	return f, nil
}

// buildEffects returns nil when no effect is requested.
func buildEffects(config *CLIConfig) *video.EffectChain {
	chain := video.NewEffectChain()
	if config.brightness != 0 {
		chain.Add(video.NewBrightnessEffect(config.brightness))
	}
	if config.contrast != 1 {
		chain.Add(video.NewContrastEffect(config.contrast))
	}
	if config.grayscale {
		chain.Add(video.NewGrayscaleEffect())
	}
	if chain.Len() == 0 {
		return nil
	}
	return chain
}

// createStreamerConfig converts CLI configuration to a streamer configuration.
func createStreamerConfig(cli *CLIConfig) (rtpscreen.Config, error) {
	ssrc, err := parseSSRC(cli.ssrc)
	if err != nil {
		return rtpscreen.Config{}, err
	}
	format, err := video.ParsePixelFormat(cli.format)
	if err != nil {
		return rtpscreen.Config{}, err
	}

	writer := interfaces.FrameWriterConfig{
		Kind:        interfaces.WriterKind(strings.ToLower(cli.kind)),
		Destination: cli.destination,
		LocalAddr:   cli.localAddr,
		MTU:         cli.mtu,
		SSRC:        ssrc,
		PayloadType: uint8(cli.payloadType),
		Width:       cli.width,
		Height:      cli.height,
		FPS:         cli.fps,
		JPEGQuality: cli.quality,
		DialTimeout: factory.DefaultDialTimeout,
	}

	if cli.secure {
		if err := applyKeys(cli, &writer); err != nil {
			return rtpscreen.Config{}, err
		}
	}

	return rtpscreen.Config{
		Writer:       writer,
		Format:       format,
		RTCPInterval: cli.rtcpInterval,
		RTCPAddr:     cli.rtcpAddr,
		HTTPAddr:     cli.httpAddr,
		NTPServer:    cli.ntpServer,
		NTPTimeout:   cli.ntpTimeout,
		Effects:      buildEffects(cli),
		MaxFrames:    cli.maxFrames,
	}, nil
}

// applyKeys loads or generates the static key pair for a secure stream.
func applyKeys(cli *CLIConfig, writer *interfaces.FrameWriterConfig) error {
	peer, err := crypto.ParseKey(cli.peerHex)
	if err != nil {
		return fmt.Errorf("peer key: %w", err)
	}

	var kp *crypto.KeyPair
	if cli.keyHex == "" {
		kp, err = crypto.GenerateKeyPair()
	} else {
		var secret [crypto.KeySize]byte
		if secret, err = crypto.ParseKey(cli.keyHex); err == nil {
			kp, err = crypto.FromSecretKey(secret)
		}
	}
	if err != nil {
		return fmt.Errorf("private key: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "applyKeys",
		"public_key": hex.EncodeToString(kp.Public[:]),
		"generated":  cli.keyHex == "",
	}).Info("Using static key pair")

	writer.Secure = true
	writer.PrivateKey = append([]byte(nil), kp.Private[:]...)
	writer.PeerPublicKey = append([]byte(nil), peer[:]...)
	return nil
}

// setupSignalHandling sets up graceful shutdown on interrupt signals.
func setupSignalHandling(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logrus.WithField("signal", sig.String()).Info("Received signal, shutting down")
		cancel()
	}()
}

func run(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("rtpscreen", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cliConfig, err := parseCLIFlags(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Use -help for usage information.\n")
		return 2
	}

	if cliConfig.help {
		printUsage(stdout, fs)
		return 0
	}

	if err := validateCLIConfig(cliConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Use -help for usage information.\n")
		return 1
	}

	logCloser, err := setupLogging(cliConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging setup failed: %v\n", err)
		return 1
	}
	defer logCloser.Close()

	cfg, err := createStreamerConfig(cliConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	streamer, err := rtpscreen.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create streamer: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	if err := streamer.Run(ctx); err != nil {
		logrus.WithField("error", err.Error()).Error("Stream failed")
		return 1
	}

	status := streamer.Status()
	fmt.Fprintf(stdout, "Summary: %d frames, %d packets, %d octets, %d send errors, %d dropped ticks\n",
		status.Writer.Frames, status.Writer.Packets, status.Writer.Octets,
		status.Writer.SendErrors, status.Source.Dropped)
	return 0
}

// main is the entry point for the streamer.
func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}
