package frame

import "image"

// Buffer holds the most recently sampled frame. It is overwritten in place
// on every sample and keeps no history.
type Buffer struct {
	img *image.RGBA
}

// NewBuffer returns an empty, zero-sized buffer.
func NewBuffer() *Buffer {
	return &Buffer{img: image.NewRGBA(image.Rect(0, 0, 0, 0))}
}

// Resize sets the buffer to w×h, reusing the pixel slice when it is large
// enough. Negative sizes are treated as zero.
func (b *Buffer) Resize(w, h int) {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	if b.img.Rect.Dx() == w && b.img.Rect.Dy() == h {
		return
	}

	n := w * h * 4
	pix := b.img.Pix
	if cap(pix) >= n {
		pix = pix[:n]
		clear(pix)
	} else {
		pix = make([]uint8, n)
	}

	b.img = &image.RGBA{
		Pix:    pix,
		Stride: w * 4,
		Rect:   image.Rect(0, 0, w, h),
	}
}

// Image exposes the backing raster. Callers other than the sampler must
// treat it as read-only.
func (b *Buffer) Image() *image.RGBA {
	return b.img
}

// Empty reports whether the buffer has no pixels, as before the stream
// reports its native size.
func (b *Buffer) Empty() bool {
	return b.img.Rect.Empty()
}

func (b *Buffer) Width() int {
	return b.img.Rect.Dx()
}

func (b *Buffer) Height() int {
	return b.img.Rect.Dy()
}
