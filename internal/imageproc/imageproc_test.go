package imageproc

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormalizeScalesDown(t *testing.T) {
	p := NewProcessor(100, 0)

	out, err := p.Normalize(pngOf(t, 400, 200))
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestNormalizeKeepsSmallImages(t *testing.T) {
	p := NewProcessor(100, 90)

	out, err := p.Normalize(pngOf(t, 40, 60))
	require.NoError(t, err)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Width)
	assert.Equal(t, 60, cfg.Height)
}

func TestNormalizeEmptyAndInvalid(t *testing.T) {
	p := NewProcessor(0, 0)

	out, err := p.Normalize(nil)
	assert.NoError(t, err)
	assert.Nil(t, out)

	_, err = p.Normalize([]byte("definitely not an image"))
	assert.Error(t, err)

	_, err = p.Normalize(make([]byte, MaxInputBytes+1))
	assert.ErrorIs(t, err, ErrTooLarge)
}

// withDimensions rewrites the IHDR chunk of an encoded PNG to claim the given size
func withDimensions(t *testing.T, data []byte, w, h uint32) []byte {
	t.Helper()
	out := append([]byte(nil), data...)
	require.Equal(t, "IHDR", string(out[12:16]))
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestNormalizeRejectsHugeDimensions(t *testing.T) {
	p := NewProcessor(0, 0)
	bomb := withDimensions(t, pngOf(t, 1, 1), 60000, 60000)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(bomb))
	require.NoError(t, err)
	require.Equal(t, 60000, cfg.Width)

	_, err = p.Normalize(bomb)
	assert.ErrorIs(t, err, ErrTooManyPixels)
}
