package frame

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"sync"
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 80

// ErrNoFrame reports that the surface has nothing to sample yet. Callers skip
// the tick rather than failing the scan.
var ErrNoFrame = errors.New("no frame available")

// Surface exposes the most recent encoded frame of a live capture session.
type Surface interface {
	LatestFrame() ([]byte, bool)
}

// Sampler captures stills from a Surface. It is safe for concurrent use; the
// off-screen buffer is reused across captures of the same size.
type Sampler struct {
	quality int

	mu     sync.Mutex
	canvas *image.RGBA
	out    bytes.Buffer
}

// NewSampler returns a sampler encoding at the given JPEG quality (1-100).
func NewSampler(quality int) *Sampler {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &Sampler{quality: quality}
}

// Capture rasterizes the surface's current frame and encodes it as JPEG.
func (s *Sampler) Capture(surface Surface) (Image, error) {
	if surface == nil {
		return Image{}, ErrNoFrame
	}
	data, ok := surface.LatestFrame()
	if !ok || len(data) == 0 {
		return Image{}, ErrNoFrame
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: decode frame: %v", ErrNoFrame, err)
	}
	bounds := src.Bounds()
	if bounds.Empty() {
		return Image{}, ErrNoFrame
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	width, height := bounds.Dx(), bounds.Dy()
	if s.canvas == nil || s.canvas.Rect.Dx() != width || s.canvas.Rect.Dy() != height {
		s.canvas = image.NewRGBA(image.Rect(0, 0, width, height))
	}
	draw.Draw(s.canvas, s.canvas.Rect, src, bounds.Min, draw.Src)

	s.out.Reset()
	if err := jpeg.Encode(&s.out, s.canvas, &jpeg.Options{Quality: s.quality}); err != nil {
		return Image{}, fmt.Errorf("encode frame: %w", err)
	}
	return Image{
		Data:   bytes.Clone(s.out.Bytes()),
		Width:  width,
		Height: height,
		MIME:   MIMEJPEG,
	}, nil
}

// Quality reports the configured JPEG quality.
func (s *Sampler) Quality() int {
	return s.quality
}
