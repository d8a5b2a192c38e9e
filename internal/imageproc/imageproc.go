// Package imageproc normalises item pictures into bounded JPEG thumbnails.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

const (
	// MaxInputBytes rejects uploads larger than this before decoding
	MaxInputBytes = 10 << 20
	// MaxPixels bounds the decoded bitmap, checked against the header
	MaxPixels = 24 << 20
)

var (
	ErrTooLarge      = errors.New("image exceeds maximum upload size")
	ErrTooManyPixels = errors.New("image dimensions exceed the pixel limit")
)

// Processor resizes images so neither side exceeds maxSide pixels
type Processor struct {
	maxSide int
	quality int
}

// NewProcessor creates a processor. Out-of-range values fall back to 800px and quality 85.
func NewProcessor(maxSide, quality int) *Processor {
	if maxSide <= 0 {
		maxSide = 800
	}
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	return &Processor{maxSide: maxSide, quality: quality}
}

// Normalize decodes a JPEG or PNG image, scales it down to fit the bounding
// square and re-encodes it as JPEG. Images already within bounds are only
// re-encoded. An empty input yields nil.
func (p *Processor) Normalize(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) > MaxInputBytes {
		return nil, ErrTooLarge
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, ErrTooManyPixels
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, p.fit(img), &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *Processor) fit(img image.Image) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= p.maxSide && height <= p.maxSide {
		return img
	}

	newWidth, newHeight := p.maxSide, p.maxSide
	if width > height {
		newHeight = max(1, height*p.maxSide/width)
	} else {
		newWidth = max(1, width*p.maxSide/height)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
