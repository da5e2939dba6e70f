// Package video provides frame scaling for capture buffers.
//
// This file resizes packed 4-byte-per-pixel frames so that encoders with
// hard dimension limits (RFC 2435 caps JPEG frames at 2040 pixels) can still
// carry large desktops.
package video

import (
	"fmt"

	"github.com/opd-ai/rtpscreen/limits"
)

// Scaler provides frame scaling functionality.
//
// Implements bilinear interpolation over each byte lane of a packed pixel,
// so it is agnostic to BGRA versus RGBA order.
type Scaler struct {
	// No fields needed for stateless scaling operations
}

// NewScaler creates a new frame scaler.
func NewScaler() *Scaler {
	return &Scaler{}
}

// Scale resizes a frame to the specified dimensions.
//
// Parameters:
//   - frame: Source frame to scale (row pitch padding is ignored)
//   - targetWidth: Target width in pixels
//   - targetHeight: Target height in pixels
//
// Returns:
//   - *Frame: Tightly packed frame (RowPitch == targetWidth*4) in the source format
//   - error: Any error that occurred during scaling
func (s *Scaler) Scale(frame *Frame, targetWidth, targetHeight int) (*Frame, error) {
	if err := frame.Validate(); err != nil {
		return nil, fmt.Errorf("source frame: %w", err)
	}

	if targetWidth <= 0 || targetHeight <= 0 {
		return nil, fmt.Errorf("invalid target dimensions: %dx%d", targetWidth, targetHeight)
	}

	dstPitch := targetWidth * limits.BytesPerPixel
	result := &Frame{
		Width:    targetWidth,
		Height:   targetHeight,
		RowPitch: dstPitch,
		Format:   frame.Format,
		Data:     make([]byte, dstPitch*targetHeight),
	}

	// If dimensions are the same, return a packed copy
	if frame.Width == targetWidth && frame.Height == targetHeight {
		for y := 0; y < frame.Height; y++ {
			copy(result.Data[y*dstPitch:], frame.Row(y))
		}
		return result, nil
	}

	s.scalePixels(frame, result)
	return result, nil
}

// scalePixels performs bilinear interpolation on every byte lane.
func (s *Scaler) scalePixels(src, dst *Frame) {
	const bpp = limits.BytesPerPixel

	xRatio := float64(src.Width) / float64(dst.Width)
	yRatio := float64(src.Height) / float64(dst.Height)

	for y := 0; y < dst.Height; y++ {
		srcY := float64(y) * yRatio
		y1 := int(srcY)
		y2 := y1 + 1
		if y2 >= src.Height {
			y2 = src.Height - 1
		}
		fy := srcY - float64(y1)

		row1 := src.Row(y1)
		row2 := src.Row(y2)
		out := dst.Data[y*dst.RowPitch:]

		for x := 0; x < dst.Width; x++ {
			srcX := float64(x) * xRatio
			x1 := int(srcX)
			x2 := x1 + 1
			if x2 >= src.Width {
				x2 = src.Width - 1
			}
			fx := srcX - float64(x1)

			for c := 0; c < bpp; c++ {
				p11 := float64(row1[x1*bpp+c])
				p12 := float64(row1[x2*bpp+c])
				p21 := float64(row2[x1*bpp+c])
				p22 := float64(row2[x2*bpp+c])

				top := p11*(1-fx) + p12*fx
				bottom := p21*(1-fx) + p22*fx
				out[x*bpp+c] = byte(top*(1-fy) + bottom*fy + 0.5)
			}
		}
	}
}

// FitWithin returns the largest dimensions no bigger than maxWidth x maxHeight
// that keep the aspect ratio of width x height, rounded down to multiples of
// align. Dimensions already within bounds are only aligned.
func FitWithin(width, height, maxWidth, maxHeight, align int) (int, int) {
	if align <= 0 {
		align = 1
	}
	w, h := width, height
	if w > maxWidth {
		h = h * maxWidth / w
		w = maxWidth
	}
	if h > maxHeight {
		w = w * maxHeight / h
		h = maxHeight
	}
	w -= w % align
	h -= h % align
	if w < align {
		w = align
	}
	if h < align {
		h = align
	}
	return w, h
}

// IsScalingRequired checks if scaling is needed for given dimensions.
func (s *Scaler) IsScalingRequired(srcWidth, srcHeight, dstWidth, dstHeight int) bool {
	return srcWidth != dstWidth || srcHeight != dstHeight
}
