package video

import (
	"fmt"

	"github.com/opd-ai/rtpscreen/limits"
)

// Effect modifies a frame in place before it is handed to a writer.
// Effects only run on buffers owned by the capture source.
type Effect interface {
	Apply(frame *Frame) error
	Name() string
}

// EffectChain applies effects in the order they were added.
type EffectChain struct {
	effects []Effect
}

// NewEffectChain creates an empty chain.
func NewEffectChain(effects ...Effect) *EffectChain {
	return &EffectChain{effects: effects}
}

// Add appends an effect to the chain.
func (ec *EffectChain) Add(effect Effect) {
	ec.effects = append(ec.effects, effect)
}

// Len returns the number of effects in the chain.
func (ec *EffectChain) Len() int {
	if ec == nil {
		return 0
	}
	return len(ec.effects)
}

// Apply runs every effect on the frame. A nil chain is a no-op.
func (ec *EffectChain) Apply(frame *Frame) error {
	if ec == nil {
		return nil
	}
	if err := frame.Validate(); err != nil {
		return err
	}
	for i, effect := range ec.effects {
		if err := effect.Apply(frame); err != nil {
			return fmt.Errorf("effect %d (%s) failed: %w", i, effect.Name(), err)
		}
	}
	return nil
}

// eachPixel calls fn with the color channels of every pixel. Alpha is left
// untouched. Channel order does not matter to the effects in this file.
func eachPixel(frame *Frame, fn func(px []byte)) {
	for y := 0; y < frame.Height; y++ {
		row := frame.Row(y)
		for i := 0; i < len(row); i += limits.BytesPerPixel {
			fn(row[i : i+3])
		}
	}
}

func clamp8(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// BrightnessEffect adds a constant to every color channel.
type BrightnessEffect struct {
	adjustment int
}

// NewBrightnessEffect creates a brightness adjustment clamped to -255..255.
func NewBrightnessEffect(adjustment int) *BrightnessEffect {
	if adjustment < -255 {
		adjustment = -255
	}
	if adjustment > 255 {
		adjustment = 255
	}
	return &BrightnessEffect{adjustment: adjustment}
}

// Apply adjusts every color channel.
func (be *BrightnessEffect) Apply(frame *Frame) error {
	if be.adjustment == 0 {
		return nil
	}
	eachPixel(frame, func(px []byte) {
		for c := range px {
			px[c] = clamp8(int(px[c]) + be.adjustment)
		}
	})
	return nil
}

// Name returns the effect name.
func (be *BrightnessEffect) Name() string {
	return fmt.Sprintf("Brightness(%+d)", be.adjustment)
}

// ContrastEffect scales channels around mid gray.
type ContrastEffect struct {
	factor float64
}

// NewContrastEffect creates a contrast effect. factor is clamped to 0..4;
// 1.0 leaves the frame unchanged.
func NewContrastEffect(factor float64) *ContrastEffect {
	if factor < 0 {
		factor = 0
	}
	if factor > 4 {
		factor = 4
	}
	return &ContrastEffect{factor: factor}
}

// Apply scales every color channel.
func (ce *ContrastEffect) Apply(frame *Frame) error {
	eachPixel(frame, func(px []byte) {
		for c := range px {
			px[c] = clamp8(int((float64(px[c])-128)*ce.factor + 128))
		}
	})
	return nil
}

// Name returns the effect name.
func (ce *ContrastEffect) Name() string {
	return fmt.Sprintf("Contrast(%.2f)", ce.factor)
}

// GrayscaleEffect replaces colors with their luma.
type GrayscaleEffect struct{}

// NewGrayscaleEffect creates a grayscale conversion effect.
func NewGrayscaleEffect() *GrayscaleEffect {
	return &GrayscaleEffect{}
}

// Apply converts every pixel to its BT.601 luma.
func (ge *GrayscaleEffect) Apply(frame *Frame) error {
	rIdx, bIdx := 2, 0
	if frame.Format == PixelFormatRGBA {
		rIdx, bIdx = 0, 2
	}
	eachPixel(frame, func(px []byte) {
		y := (299*int(px[rIdx]) + 587*int(px[1]) + 114*int(px[bIdx])) / 1000
		px[0], px[1], px[2] = byte(y), byte(y), byte(y)
	})
	return nil
}

// Name returns the effect name.
func (ge *GrayscaleEffect) Name() string {
	return "Grayscale"
}
