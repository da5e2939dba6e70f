package rtpscreen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/opd-ai/rtpscreen/av/rtp"
	"github.com/opd-ai/rtpscreen/av/video"
	"github.com/opd-ai/rtpscreen/capture"
	"github.com/opd-ai/rtpscreen/control"
	"github.com/opd-ai/rtpscreen/factory"
	"github.com/opd-ai/rtpscreen/interfaces"
	"github.com/opd-ai/rtpscreen/transport"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Lifecycle states reported by Streamer.State.
const (
	StateIdle      = "idle"
	StateStarting  = "starting"
	StateStreaming = "streaming"
	StateStopping  = "stopping"
	StateStopped   = "stopped"
	StateFailed    = "failed"
)

// Lifecycle events.
const (
	eventStart  = "start"
	eventReady  = "ready"
	eventStop   = "stop"
	eventFinish = "finish"
	eventFail   = "fail"
)

// ErrAlreadyStarted is returned when Run is called on a streamer that is not idle.
var ErrAlreadyStarted = errors.New("streamer already started")

// Config configures a Streamer.
type Config struct {
	Writer interfaces.FrameWriterConfig
	Format video.PixelFormat

	// RTCPInterval is the sender report period; 0 disables RTCP.
	RTCPInterval time.Duration
	// RTCPAddr overrides the report destination (default: RTP port + 1).
	RTCPAddr string

	// HTTPAddr is the control server listen address; empty disables it.
	HTTPAddr string

	// NTPServer corrects the capture clock before streaming; empty uses the
	// system clock unchanged.
	NTPServer  string
	NTPTimeout time.Duration

	Effects   *video.EffectChain
	MaxFrames uint64
}

// Streamer runs a synthetic capture source into a frame writer, together
// with the RTCP reporter and the control server.
type Streamer struct {
	cfg     Config
	id      uuid.UUID
	factory *factory.FrameWriterFactory
	clock   *video.OffsetTimeProvider
	machine *fsm.FSM

	mu       sync.RWMutex
	started  time.Time
	writer   interfaces.FrameWriter
	source   *capture.PatternSource
	reporter *rtp.SenderReporter
	rtcpSink *transport.UDPSink
}

var _ control.Provider = (*Streamer)(nil)

// New validates cfg and creates an idle streamer.
func New(cfg Config) (*Streamer, error) {
	if err := factory.ValidateConfig(&cfg.Writer); err != nil {
		return nil, err
	}
	if cfg.Writer.Height <= 0 {
		return nil, fmt.Errorf("%w: frame height must be positive", rtp.ErrInvalidConfig)
	}
	if cfg.RTCPInterval < 0 {
		return nil, fmt.Errorf("%w: negative rtcp interval", rtp.ErrInvalidConfig)
	}

	s := &Streamer{
		cfg:     cfg,
		id:      uuid.New(),
		factory: factory.NewFrameWriterFactory(),
		clock:   video.NewOffsetTimeProvider(nil),
	}
	s.factory.SetTimeProvider(s.clock)
	s.machine = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventStart, Src: []string{StateIdle}, Dst: StateStarting},
			{Name: eventReady, Src: []string{StateStarting}, Dst: StateStreaming},
			{Name: eventStop, Src: []string{StateStarting, StateStreaming}, Dst: StateStopping},
			{Name: eventFinish, Src: []string{StateStopping}, Dst: StateStopped},
			{Name: eventFail, Src: []string{StateStarting, StateStreaming, StateStopping}, Dst: StateFailed},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logrus.WithFields(logrus.Fields{
					"function":  "Streamer",
					"stream_id": s.id.String(),
					"from":      e.Src,
					"to":        e.Dst,
				}).Info("Streamer state change")
			},
		},
	)
	return s, nil
}

// ID returns the stream identifier used in the session description.
func (s *Streamer) ID() uuid.UUID {
	return s.id
}

// State returns the current lifecycle state.
func (s *Streamer) State() string {
	return s.machine.Current()
}

// Clock returns the clock that timestamps frames.
func (s *Streamer) Clock() *video.OffsetTimeProvider {
	return s.clock
}

// SessionDescription returns the SDP for datagram streams.
func (s *Streamer) SessionDescription() ([]byte, error) {
	w := s.cfg.Writer
	return rtp.BuildSessionDescription(rtp.SessionInfo{
		StreamID:    s.id,
		Kind:        w.Kind,
		PayloadType: w.PayloadType,
		Format:      s.cfg.Format,
		Width:       w.Width,
		Height:      w.Height,
		FPS:         w.FPS,
		Destination: w.Destination,
	})
}

// Status returns a snapshot of every counter the streamer owns.
func (s *Streamer) Status() control.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := control.Status{
		StreamID:    s.id.String(),
		State:       s.State(),
		Kind:        s.cfg.Writer.Kind,
		Destination: s.cfg.Writer.Destination,
	}
	if !s.started.IsZero() {
		status.Uptime = time.Since(s.started).Truncate(time.Millisecond).String()
	}
	if sp, ok := s.writer.(interfaces.StatsProvider); ok {
		status.Writer = sp.Stats()
	}
	if s.source != nil {
		status.Source = s.source.Stats()
	}
	if s.reporter != nil {
		status.Reception = s.reporter.Reception()
	}
	return status
}

// Run streams until ctx is cancelled, MaxFrames is reached or a component
// fails. A streamer runs once.
func (s *Streamer) Run(ctx context.Context) error {
	if err := s.machine.Event(ctx, eventStart); err != nil {
		return fmt.Errorf("%w: state %s", ErrAlreadyStarted, s.State())
	}

	if err := s.setup(); err != nil {
		s.teardown()
		_ = s.machine.Event(context.Background(), eventFail)
		return err
	}
	_ = s.machine.Event(ctx, eventReady)

	err := s.run(ctx)

	_ = s.machine.Event(context.Background(), eventStop)
	s.teardown()
	if err != nil {
		_ = s.machine.Event(context.Background(), eventFail)
		return err
	}
	_ = s.machine.Event(context.Background(), eventFinish)
	return nil
}

// setup opens the writer, the source and the RTCP socket.
func (s *Streamer) setup() error {
	if s.cfg.NTPServer != "" {
		// A failed sync keeps the system clock; streaming still works.
		_, _ = s.clock.SyncNTP(s.cfg.NTPServer, s.cfg.NTPTimeout)
	}

	writer, err := s.factory.CreateFrameWriterWithConfig(&s.cfg.Writer)
	if err != nil {
		return err
	}

	source, err := capture.NewPatternSource(capture.PatternConfig{
		Width:     s.cfg.Writer.Width,
		Height:    s.cfg.Writer.Height,
		FPS:       s.cfg.Writer.FPS,
		Format:    s.cfg.Format,
		Effects:   s.cfg.Effects,
		MaxFrames: s.cfg.MaxFrames,
	})
	if err != nil {
		writer.Close()
		return err
	}

	s.mu.Lock()
	s.writer = writer
	s.source = source
	s.started = time.Now()
	s.mu.Unlock()

	return s.setupReporter(writer)
}

func (s *Streamer) setupReporter(writer interfaces.FrameWriter) error {
	src, ok := writer.(rtp.ReportSource)
	if !ok || s.cfg.RTCPInterval == 0 {
		return nil
	}

	addr := s.cfg.RTCPAddr
	if addr == "" {
		var err error
		if addr, err = rtp.RTCPAddress(s.cfg.Writer.Destination); err != nil {
			return err
		}
	}

	sink, err := transport.NewUDPSink("", addr)
	if err != nil {
		return err
	}
	reporter, err := rtp.NewSenderReporter(src, sink, s.cfg.RTCPInterval, s.clock)
	if err != nil {
		sink.Close()
		return err
	}

	s.mu.Lock()
	s.rtcpSink = sink
	s.reporter = reporter
	s.mu.Unlock()
	return nil
}

func (s *Streamer) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// The source finishing ends the whole stream.
		defer cancel()
		return s.source.Run(gctx, s.writer)
	})

	if s.reporter != nil {
		g.Go(func() error {
			return s.reporter.Run(gctx)
		})
		g.Go(func() error {
			err := s.rtcpSink.Listen(gctx, s.reporter.HandleRTCP)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if s.cfg.HTTPAddr != "" {
		server := control.NewServer(s.cfg.HTTPAddr, s)
		g.Go(func() error {
			return server.Run(gctx)
		})
	}

	return g.Wait()
}

func (s *Streamer) teardown() {
	s.mu.RLock()
	writer, rtcpSink := s.writer, s.rtcpSink
	s.mu.RUnlock()

	if writer != nil {
		if err := writer.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Streamer.teardown",
				"error":    err.Error(),
			}).Warn("Failed to close frame writer")
		}
	}
	if rtcpSink != nil {
		rtcpSink.Close()
	}
}
