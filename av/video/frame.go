package video

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/opd-ai/rtpscreen/limits"
)

// ErrInvalidFrame indicates frame geometry or buffer size is not usable.
var ErrInvalidFrame = errors.New("invalid frame")

// PixelFormat identifies the byte order of a packed 32-bit pixel.
type PixelFormat uint8

const (
	// PixelFormatBGRA is the desktop duplication capture order.
	PixelFormatBGRA PixelFormat = iota
	// PixelFormatRGBA is the window capture order.
	PixelFormatRGBA
)

// String returns the RFC 4175 sampling name of the format.
func (p PixelFormat) String() string {
	switch p {
	case PixelFormatRGBA:
		return "RGBA"
	default:
		return "BGRA"
	}
}

// ParsePixelFormat parses "BGRA" or "RGBA" (case insensitive).
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch strings.ToUpper(s) {
	case "BGRA":
		return PixelFormatBGRA, nil
	case "RGBA":
		return PixelFormatRGBA, nil
	default:
		return PixelFormatBGRA, fmt.Errorf("unsupported pixel format %q", s)
	}
}

// Frame is a borrowed view of one captured pixel buffer.
//
// Data is owned by the capture backend and is only valid for the duration of
// the WriteFrame call that received it.
type Frame struct {
	Width    int
	Height   int
	RowPitch int // bytes between the starts of consecutive scanlines
	Format   PixelFormat
	Data     []byte
}

// NewFrame wraps a buffer without copying it.
func NewFrame(width, height, rowPitch int, data []byte) *Frame {
	return &Frame{
		Width:    width,
		Height:   height,
		RowPitch: rowPitch,
		Data:     data,
	}
}

// ValidateGeometry checks frame dimensions against the buffer length.
// The last row may omit its alignment padding.
func ValidateGeometry(width, height, rowPitch, bufLen int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d must be positive", ErrInvalidFrame, width, height)
	}
	if width > bufLen/limits.BytesPerPixel {
		return fmt.Errorf("%w: buffer holds %d bytes, less than one %d-pixel line", ErrInvalidFrame, bufLen, width)
	}
	lineBytes := width * limits.BytesPerPixel
	if rowPitch < lineBytes {
		return fmt.Errorf("%w: row pitch %d smaller than line size %d", ErrInvalidFrame, rowPitch, lineBytes)
	}
	// Compare by division so huge pitches cannot overflow the product
	if height > 1 && rowPitch > (bufLen-lineBytes)/(height-1) {
		return fmt.Errorf("%w: buffer holds %d bytes, too short for %d rows of pitch %d",
			ErrInvalidFrame, bufLen, height, rowPitch)
	}
	return nil
}

// Validate checks the frame geometry against its buffer.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: frame cannot be nil", ErrInvalidFrame)
	}
	return ValidateGeometry(f.Width, f.Height, f.RowPitch, len(f.Data))
}

// LineSize returns the number of pixel bytes in one scanline.
func (f *Frame) LineSize() int {
	return f.Width * limits.BytesPerPixel
}

// Size returns the number of pixel bytes in the frame, excluding padding.
func (f *Frame) Size() int {
	return f.LineSize() * f.Height
}

// Row returns scanline y without its padding.
func (f *Frame) Row(y int) []byte {
	start := y * f.RowPitch
	return f.Data[start : start+f.LineSize()]
}

// ToRGBA copies the frame into a tightly packed image, swapping channels
// when the frame is BGRA.
func (f *Frame) ToRGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		src := f.Row(y)
		dst := img.Pix[y*img.Stride : y*img.Stride+f.LineSize()]
		if f.Format == PixelFormatRGBA {
			copy(dst, src)
			continue
		}
		for i := 0; i < len(src); i += limits.BytesPerPixel {
			dst[i+0] = src[i+2]
			dst[i+1] = src[i+1]
			dst[i+2] = src[i+0]
			dst[i+3] = src[i+3]
		}
	}
	return img
}
