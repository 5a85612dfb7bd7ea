package pixel

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// Canvas dimensions of the feature image.
const (
	Width  = 1024
	Height = 1024
)

var (
	ErrSequenceTooLong = errors.New("pixel: more points than canvas cells")
	ErrSearchExhausted = errors.New("pixel: no empty cell left for point")
	ErrOutOfBounds     = errors.New("pixel: point outside canvas")
)

// Rasterizer paints color points onto a W x H canvas.
type Rasterizer struct {
	W, H int
}

// Rasterize paints points onto the default 1024x1024 canvas.
func Rasterize(points []ColorPoint) (*image.NRGBA, error) {
	return Rasterizer{W: Width, H: Height}.Rasterize(points)
}

type statKey struct {
	x, y    int
	r, g, b uint8
}

// Rasterize paints points in order onto an opaque black canvas.
//
// Black points are skipped. A point landing on an empty cell paints it
// opaque. A point matching the cell's color bumps that cell's hit counter.
// A point of a different color moves to the nearest empty cell by ring
// search. After all points are placed, cells with repeated hits get an
// alpha derived from the hit count.
func (rz Rasterizer) Rasterize(points []ColorPoint) (*image.NRGBA, error) {
	if len(points) > rz.W*rz.H {
		return nil, fmt.Errorf("%w: %d > %d", ErrSequenceTooLong, len(points), rz.W*rz.H)
	}

	img := image.NewNRGBA(image.Rect(0, 0, rz.W, rz.H))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xFF
	}

	stats := make(map[statKey]int)
	for _, p := range points {
		if p.Black() {
			continue
		}
		x, y := int(p.X), int(p.Y)
		if x >= rz.W || y >= rz.H {
			return nil, fmt.Errorf("%w: %s", ErrOutOfBounds, p)
		}

		cur := img.NRGBAAt(x, y)
		switch {
		case empty(cur):
		case cur.R == p.R && cur.G == p.G && cur.B == p.B:
			stats[statKey{x, y, p.R, p.G, p.B}]++
			continue
		default:
			nx, ny, ok := rz.findFree(img, x, y)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrSearchExhausted, p)
			}
			x, y = nx, ny
		}
		img.SetNRGBA(x, y, color.NRGBA{R: p.R, G: p.G, B: p.B, A: 0xFF})
	}

	for k, n := range stats {
		img.SetNRGBA(k.x, k.y, color.NRGBA{R: k.r, G: k.g, B: k.b, A: hitAlpha(n)})
	}
	return img, nil
}

// hitAlpha maps a repeated-hit count to an alpha value: below 10 is 0,
// then one step per 10 hits, capped at 254.
func hitAlpha(n int) uint8 {
	switch {
	case n < 10:
		return 0
	case n >= 2540:
		return 254
	default:
		return uint8(n / 10)
	}
}

func empty(c color.NRGBA) bool { return c.R == 0 && c.G == 0 && c.B == 0 }

// findFree searches rings of increasing Chebyshev radius around (x, y) for an
// empty cell. Each ring visits the top and bottom rows left to right, then
// the left and right columns top to bottom. The radius grows until the ring
// covers every canvas edge.
func (rz Rasterizer) findFree(img *image.NRGBA, x, y int) (int, int, bool) {
	maxR := max(x, y, rz.W-1-x, rz.H-1-y)
	for d := 1; d <= maxR; d++ {
		for i := x - d; i <= x+d; i++ {
			if i < 0 || i >= rz.W {
				continue
			}
			if y-d >= 0 && empty(img.NRGBAAt(i, y-d)) {
				return i, y - d, true
			}
			if y+d < rz.H && empty(img.NRGBAAt(i, y+d)) {
				return i, y + d, true
			}
		}
		for j := y - d + 1; j < y+d; j++ {
			if j < 0 || j >= rz.H {
				continue
			}
			if x-d >= 0 && empty(img.NRGBAAt(x-d, j)) {
				return x - d, j, true
			}
			if x+d < rz.W && empty(img.NRGBAAt(x+d, j)) {
				return x + d, j, true
			}
		}
	}
	return 0, 0, false
}
