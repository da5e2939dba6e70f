package video

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image/jpeg"
)

// ErrUnsupportedJPEG indicates a JPEG stream that RFC 2435 cannot carry
// without a restart-marker or custom-table extension.
var ErrUnsupportedJPEG = errors.New("unsupported jpeg")

// JPEG markers used while splitting a baseline stream.
const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOF0 = 0xC0
	markerDHT  = 0xC4
	markerDQT  = 0xDB
	markerDRI  = 0xDD
	markerSOS  = 0xDA
)

// JPEGImage is a baseline JPEG split into the pieces RFC 2435 transmits.
type JPEGImage struct {
	Width  int
	Height int
	// Type is the RFC 2435 type field: 0 for 4:2:2, 1 for 4:2:0.
	Type uint8
	// QuantTables holds 64-byte 8-bit tables in zig-zag order, DQT order.
	QuantTables [][]byte
	// Scan is the entropy coded data without the trailing EOI marker.
	Scan []byte
}

// EncodeJPEG encodes a frame as a baseline 4:2:0 JPEG.
func EncodeJPEG(frame *Frame, quality int) ([]byte, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.ToRGBA(), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseJPEG splits a baseline JPEG into its quantisation tables and scan.
func ParseJPEG(data []byte) (*JPEGImage, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != markerSOI {
		return nil, fmt.Errorf("%w: missing SOI marker", ErrUnsupportedJPEG)
	}

	img := &JPEGImage{}
	seenFrame := false
	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			return nil, fmt.Errorf("%w: expected marker at offset %d", ErrUnsupportedJPEG, i)
		}
		marker := data[i+1]
		if marker == 0xFF {
			i++ // fill byte
			continue
		}
		length := int(binary.BigEndian.Uint16(data[i+2:]))
		if length < 2 || i+2+length > len(data) {
			return nil, fmt.Errorf("%w: truncated segment 0x%02X", ErrUnsupportedJPEG, marker)
		}
		seg := data[i+4 : i+2+length]

		switch {
		case marker == markerDQT:
			tables, err := parseDQT(seg)
			if err != nil {
				return nil, err
			}
			img.QuantTables = append(img.QuantTables, tables...)
		case marker == markerSOF0:
			if err := parseSOF0(seg, img); err != nil {
				return nil, err
			}
			seenFrame = true
		case marker == markerDRI:
			if len(seg) >= 2 && binary.BigEndian.Uint16(seg) != 0 {
				return nil, fmt.Errorf("%w: restart intervals", ErrUnsupportedJPEG)
			}
		case marker == markerSOS:
			if !seenFrame {
				return nil, fmt.Errorf("%w: scan before frame header", ErrUnsupportedJPEG)
			}
			scan := data[i+2+length:]
			if n := len(scan); n >= 2 && scan[n-2] == 0xFF && scan[n-1] == markerEOI {
				scan = scan[:n-2]
			}
			img.Scan = scan
			return img, nil
		case marker >= 0xC1 && marker <= 0xCF && marker != markerDHT && marker != 0xC8 && marker != 0xCC:
			return nil, fmt.Errorf("%w: non-baseline frame 0x%02X", ErrUnsupportedJPEG, marker)
		}
		i += 2 + length
	}
	return nil, fmt.Errorf("%w: no scan found", ErrUnsupportedJPEG)
}

func parseDQT(seg []byte) ([][]byte, error) {
	var tables [][]byte
	for len(seg) > 0 {
		if seg[0]>>4 != 0 {
			return nil, fmt.Errorf("%w: 16-bit quantisation table", ErrUnsupportedJPEG)
		}
		if len(seg) < 65 {
			return nil, fmt.Errorf("%w: truncated quantisation table", ErrUnsupportedJPEG)
		}
		tables = append(tables, append([]byte(nil), seg[1:65]...))
		seg = seg[65:]
	}
	return tables, nil
}

func parseSOF0(seg []byte, img *JPEGImage) error {
	if len(seg) < 6 {
		return fmt.Errorf("%w: truncated frame header", ErrUnsupportedJPEG)
	}
	img.Height = int(binary.BigEndian.Uint16(seg[1:]))
	img.Width = int(binary.BigEndian.Uint16(seg[3:]))
	components := int(seg[5])
	if components != 3 || len(seg) < 6+3*components {
		return fmt.Errorf("%w: %d components", ErrUnsupportedJPEG, components)
	}
	switch seg[7] {
	case 0x21:
		img.Type = 0
	case 0x22:
		img.Type = 1
	default:
		return fmt.Errorf("%w: luma sampling 0x%02X", ErrUnsupportedJPEG, seg[7])
	}
	if seg[10] != 0x11 || seg[13] != 0x11 {
		return fmt.Errorf("%w: chroma subsampling", ErrUnsupportedJPEG)
	}
	return nil
}
