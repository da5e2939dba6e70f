package capture

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/opd-ai/rtpscreen/av/video"
	"github.com/opd-ai/rtpscreen/interfaces"
	"github.com/opd-ai/rtpscreen/limits"
	"github.com/sirupsen/logrus"
)

// ErrInvalidSource indicates a source configuration that cannot produce frames.
var ErrInvalidSource = errors.New("invalid capture source")

// Source delivers frames to a writer until the context is cancelled.
type Source interface {
	Run(ctx context.Context, writer interfaces.FrameWriter) error
}

// SourceStats counts what a source produced.
type SourceStats struct {
	Frames      uint64 `json:"frames"`
	Dropped     uint64 `json:"dropped"`
	WriteErrors uint64 `json:"write_errors"`
}

// PatternConfig describes the synthetic frames.
type PatternConfig struct {
	Width    int
	Height   int
	RowPitch int // 0 means packed rows
	FPS      int
	Format   video.PixelFormat
	Effects  *video.EffectChain

	// MaxFrames stops Run after that many frames; 0 runs until cancelled.
	MaxFrames uint64
}

// PatternSource renders a gradient with a vertical bar that moves a few
// pixels every frame, so receivers can spot dropped or torn frames.
type PatternSource struct {
	cfg   PatternConfig
	frame *video.Frame
	count uint64

	busy        atomic.Bool
	frames      atomic.Uint64
	dropped     atomic.Uint64
	writeErrors atomic.Uint64
}

var _ Source = (*PatternSource)(nil)

// NewPatternSource validates the configuration and allocates the frame buffer.
func NewPatternSource(cfg PatternConfig) (*PatternSource, error) {
	if cfg.FPS <= 0 {
		return nil, fmt.Errorf("%w: fps %d must be positive", ErrInvalidSource, cfg.FPS)
	}
	if cfg.RowPitch == 0 {
		cfg.RowPitch = cfg.Width * limits.BytesPerPixel
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d must be positive", ErrInvalidSource, cfg.Width, cfg.Height)
	}

	buf := make([]byte, cfg.RowPitch*cfg.Height)
	frame := video.NewFrame(cfg.Width, cfg.Height, cfg.RowPitch, buf)
	frame.Format = cfg.Format
	if err := frame.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}

	return &PatternSource{cfg: cfg, frame: frame}, nil
}

// Frame returns the buffer the next Render call draws into.
func (s *PatternSource) Frame() *video.Frame {
	return s.frame
}

// Stats returns the source counters.
func (s *PatternSource) Stats() SourceStats {
	return SourceStats{
		Frames:      s.frames.Load(),
		Dropped:     s.dropped.Load(),
		WriteErrors: s.writeErrors.Load(),
	}
}

// Render draws frame n of the pattern and applies the effect chain.
func (s *PatternSource) Render(n uint64) error {
	f := s.frame
	barWidth := max(f.Width/8, 1)
	barStart := int(n*4) % f.Width

	for y := 0; y < f.Height; y++ {
		row := f.Row(y)
		g := byte(y * 255 / max(f.Height-1, 1))
		for x := 0; x < f.Width; x++ {
			px := row[x*limits.BytesPerPixel : (x+1)*limits.BytesPerPixel]
			if (x-barStart+f.Width)%f.Width < barWidth {
				setPixel(px, f.Format, 0xFF, 0xFF, 0xFF)
				continue
			}
			setPixel(px, f.Format, byte(x*255/max(f.Width-1, 1)), g, byte(n))
		}
	}
	return s.cfg.Effects.Apply(f)
}

func setPixel(px []byte, format video.PixelFormat, r, g, b byte) {
	if format == video.PixelFormatRGBA {
		px[0], px[1], px[2] = r, g, b
	} else {
		px[0], px[1], px[2] = b, g, r
	}
	px[3] = 0xFF
}

// Run renders frames at the configured rate and hands them to writer from a
// single goroutine. Ticks that arrive while the writer is still busy are
// dropped, never queued. Write errors are logged and counted; streaming
// continues with the next frame. Run returns nil when ctx is cancelled or
// MaxFrames is reached.
func (s *PatternSource) Run(ctx context.Context, writer interfaces.FrameWriter) error {
	if writer == nil {
		return fmt.Errorf("%w: writer cannot be nil", ErrInvalidSource)
	}

	logrus.WithFields(logrus.Fields{
		"function": "PatternSource.Run",
		"width":    s.cfg.Width,
		"height":   s.cfg.Height,
		"fps":      s.cfg.FPS,
	}).Info("Starting pattern source")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	work := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-work:
				last := s.writeOne(writer)
				s.busy.Store(false)
				if last {
					cancel()
					return
				}
			}
		}
	}()

	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.FPS))
	defer ticker.Stop()

	s.dispatch(work)
	for {
		select {
		case <-ctx.Done():
			<-done
			logrus.WithFields(logrus.Fields{
				"function": "PatternSource.Run",
				"frames":   s.frames.Load(),
				"dropped":  s.dropped.Load(),
			}).Info("Pattern source stopped")
			return nil
		case <-ticker.C:
			s.dispatch(work)
		}
	}
}

// dispatch hands a tick to the writer goroutine if it is idle.
func (s *PatternSource) dispatch(work chan<- struct{}) {
	if !s.busy.CompareAndSwap(false, true) {
		s.dropped.Add(1)
		return
	}
	work <- struct{}{}
}

// writeOne renders and writes the next frame. It reports whether MaxFrames
// has been reached.
func (s *PatternSource) writeOne(writer interfaces.FrameWriter) bool {
	n := s.count
	s.count++

	err := s.Render(n)
	if err == nil {
		f := s.frame
		err = writer.WriteFrame(f.Width, f.Height, f.RowPitch, f.Data)
	}
	if err != nil {
		s.writeErrors.Add(1)
		logrus.WithFields(logrus.Fields{
			"function": "PatternSource.writeOne",
			"frame":    n,
			"error":    err.Error(),
		}).Warn("Frame write failed")
	}

	total := s.frames.Add(1)
	return s.cfg.MaxFrames > 0 && total >= s.cfg.MaxFrames
}
