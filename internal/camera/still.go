package camera

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"
)

// StillSource serves a fixed image as if it were a camera. It stands in for
// hardware on machines without a capture device.
type StillSource struct {
	Image image.Image
}

// LoadStillSource decodes a PNG or JPEG file into a StillSource.
func LoadStillSource(path string) (*StillSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open still image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode still image %s: %w", path, err)
	}
	return &StillSource{Image: img}, nil
}

func (s *StillSource) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Image == nil {
		return nil, ErrNoDevice
	}
	return &stillStream{img: s.Image, live: true}, nil
}

type stillStream struct {
	img  image.Image
	mu   sync.Mutex
	live bool
}

func (s *stillStream) Size() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

func (s *stillStream) DrawInto(dst *image.RGBA) bool {
	if !s.Live() || dst.Rect.Empty() {
		return false
	}
	draw.Draw(dst, dst.Rect, s.img, s.img.Bounds().Min, draw.Src)
	return true
}

func (s *stillStream) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

func (s *stillStream) Stop() {
	s.mu.Lock()
	s.live = false
	s.mu.Unlock()
}
