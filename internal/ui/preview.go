package ui

import (
	"image"
	"strings"

	"github.com/asticode/go-astiplayer/pkg/surfaces/rgba"
)

// From darkest to brightest
const previewRamp = " .:-=+*#%@"

// renderPreview draws i as ASCII art fitted in a cols x rows area. Terminal cells are
// about twice as tall as they're wide which is why each cell covers two pixel rows of
// the fitted area.
func renderPreview(i *image.RGBA, cols, rows int) []string {
	// Fit
	b := i.Bounds()
	r := rgba.Fit(b.Dx(), b.Dy(), cols, rows*2)
	if r.Empty() {
		return nil
	}

	// Loop through cells
	lines := make([]string, 0, (r.Max.Y+1)/2)
	for y := 0; y < r.Max.Y; y += 2 {
		var sb strings.Builder
		for x := 0; x < r.Max.X; x++ {
			// Outside texture
			if x < r.Min.X || y < r.Min.Y {
				sb.WriteByte(' ')
				continue
			}

			// Sample the matching texture pixel
			px := b.Min.X + (x-r.Min.X)*b.Dx()/r.Dx()
			py := b.Min.Y + (y-r.Min.Y)*b.Dy()/r.Dy()
			o := i.PixOffset(px, py)
			sb.WriteByte(previewRamp[luminance(i.Pix[o], i.Pix[o+1], i.Pix[o+2])*(len(previewRamp)-1)/255])
		}
		lines = append(lines, strings.TrimRight(sb.String(), " "))
	}
	return lines
}

// Rec. 601 weights
func luminance(r, g, b uint8) int {
	return (299*int(r) + 587*int(g) + 114*int(b)) / 1000
}
