// Package rgba provides an in-memory presentation surface. The texture is an
// *image.RGBA which can be snapshotted, encoded as PNG or fitted into a viewport.
package rgba

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"sync"

	"github.com/asticode/go-astiplayer/pkg/playback"
)

var ErrNoTexture = errors.New("rgba: no texture")

var _ playback.Surface = (*Surface)(nil)

type Surface struct {
	i       *image.RGBA
	m       sync.Mutex // Locks i and updates
	updates uint64
}

func New() *Surface {
	return &Surface{}
}

func (s *Surface) CreateTexture(width, height int) error {
	// Invalid dimensions
	if width <= 0 || height <= 0 {
		return fmt.Errorf("rgba: invalid texture dimensions %dx%d", width, height)
	}

	// Lock
	s.m.Lock()
	defer s.m.Unlock()

	// Create image
	s.i = image.NewRGBA(image.Rect(0, 0, width, height))
	return nil
}

func (s *Surface) DestroyTexture() {
	s.m.Lock()
	defer s.m.Unlock()
	s.i = nil
}

// UpdateTexture copies rows of stride bytes into the texture. Only the first width*4
// bytes of each row are used.
func (s *Surface) UpdateTexture(b []byte, stride int) error {
	// Lock
	s.m.Lock()
	defer s.m.Unlock()

	// No texture
	if s.i == nil {
		return ErrNoTexture
	}

	// Check size
	w, h := s.i.Rect.Dx(), s.i.Rect.Dy()
	if stride < w*4 {
		return fmt.Errorf("rgba: stride %d is smaller than row size %d", stride, w*4)
	}
	if required := stride*(h-1) + w*4; len(b) < required {
		return fmt.Errorf("rgba: buffer size %d is smaller than required size %d", len(b), required)
	}

	// Copy rows
	for y := 0; y < h; y++ {
		copy(s.i.Pix[y*s.i.Stride:y*s.i.Stride+w*4], b[y*stride:y*stride+w*4])
	}
	s.updates++
	return nil
}

// Size returns the texture dimensions
func (s *Surface) Size() (width, height int, ok bool) {
	s.m.Lock()
	defer s.m.Unlock()
	if s.i == nil {
		return
	}
	return s.i.Rect.Dx(), s.i.Rect.Dy(), true
}

// Updates returns the number of times the texture has been updated
func (s *Surface) Updates() uint64 {
	s.m.Lock()
	defer s.m.Unlock()
	return s.updates
}

// Snapshot returns a copy of the texture
func (s *Surface) Snapshot() (*image.RGBA, bool) {
	// Lock
	s.m.Lock()
	defer s.m.Unlock()

	// No texture
	if s.i == nil {
		return nil, false
	}

	// Copy
	i := image.NewRGBA(s.i.Rect)
	copy(i.Pix, s.i.Pix)
	return i, true
}

func (s *Surface) WritePNG(w io.Writer) error {
	// Snapshot
	i, ok := s.Snapshot()
	if !ok {
		return ErrNoTexture
	}

	// Encode
	if err := png.Encode(w, i); err != nil {
		return fmt.Errorf("rgba: encoding png failed: %w", err)
	}
	return nil
}

// Fit returns where a width x height texture must be drawn in a viewportWidth x
// viewportHeight viewport to keep its aspect ratio. The texture is centered and touches
// either the top and bottom or the left and right edges. The rectangle is empty when
// dimensions are invalid.
func Fit(width, height, viewportWidth, viewportHeight int) image.Rectangle {
	// Invalid dimensions
	if width <= 0 || height <= 0 || viewportWidth <= 0 || viewportHeight <= 0 {
		return image.Rectangle{}
	}

	// Get ratios
	ratio := float64(width) / float64(height)
	viewportRatio := float64(viewportWidth) / float64(viewportHeight)

	// Viewport is wider than texture
	if viewportRatio > ratio {
		w := int(float64(viewportHeight) * ratio)
		x := (viewportWidth - w) / 2
		return image.Rect(x, 0, x+w, viewportHeight)
	}

	// Viewport is taller than texture
	h := int(float64(viewportWidth) / ratio)
	y := (viewportHeight - h) / 2
	return image.Rect(0, y, viewportWidth, y+h)
}
