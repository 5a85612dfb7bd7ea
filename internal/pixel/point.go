package pixel

import "fmt"

// ColorPoint is a pixel position on the 1024x1024 canvas and its color.
type ColorPoint struct {
	X, Y    uint16
	R, G, B uint8
}

func (p ColorPoint) String() string {
	return fmt.Sprintf("%d:%d:%d:%d:%d", p.X, p.Y, p.R, p.G, p.B)
}

// Black reports whether p carries the empty sentinel color.
func (p ColorPoint) Black() bool { return p.R == 0 && p.G == 0 && p.B == 0 }

// PointOf derives a color point from the top 44 bits of the simhash of s:
// 10 bits x, 10 bits y, then 8 bits each of r, g and b.
func PointOf(s string) ColorPoint {
	v := Simhash(s)
	return ColorPoint{
		X: uint16(v >> 38 & 0x3FF),
		Y: uint16(v >> 28 & 0x3FF),
		R: uint8(v >> 20),
		G: uint8(v >> 12),
		B: uint8(v >> 4),
	}
}

// Points maps each non-empty stream to its color point, preserving order.
func Points(streams []string) []ColorPoint {
	out := make([]ColorPoint, 0, len(streams))
	for _, s := range streams {
		if s == "" {
			continue
		}
		out = append(out, PointOf(s))
	}
	return out
}
