package video

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeAndParseJPEG(t *testing.T) {
	frame := solidFrame(64, 48, 64*4+8, [4]byte{0, 128, 255, 255})

	encoded, err := EncodeJPEG(frame, 75)
	require.NoError(t, err)

	img, err := ParseJPEG(encoded)
	require.NoError(t, err)

	assert.Equal(t, 64, img.Width)
	assert.Equal(t, 48, img.Height)
	assert.Equal(t, uint8(1), img.Type)
	require.Len(t, img.QuantTables, 2)
	assert.Len(t, img.QuantTables[0], 64)
	assert.Len(t, img.QuantTables[1], 64)
	assert.NotEmpty(t, img.Scan)
	assert.NotEqual(t, []byte{0xFF, 0xD9}, img.Scan[len(img.Scan)-2:])
}

func TestParseJPEG_Rejects(t *testing.T) {
	_, err := ParseJPEG([]byte{0x00, 0x01, 0x02, 0x03})
	assert.ErrorIs(t, err, ErrUnsupportedJPEG)

	// SOI followed by a progressive frame header
	progressive := []byte{0xFF, 0xD8, 0xFF, 0xC2, 0x00, 0x02, 0xFF, 0xD9}
	_, err = ParseJPEG(progressive)
	assert.ErrorIs(t, err, ErrUnsupportedJPEG)

	// SOI with a non-zero restart interval
	restart := []byte{0xFF, 0xD8, 0xFF, 0xDD, 0x00, 0x04, 0x00, 0x10, 0xFF, 0xD9}
	_, err = ParseJPEG(restart)
	assert.ErrorIs(t, err, ErrUnsupportedJPEG)
}

func TestEncodeJPEG_InvalidFrame(t *testing.T) {
	_, err := EncodeJPEG(NewFrame(0, 0, 0, nil), 75)
	assert.ErrorIs(t, err, ErrInvalidFrame)
}
