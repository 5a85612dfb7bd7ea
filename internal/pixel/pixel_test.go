package pixel

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestSimhashKnown(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"invoke-staticreturn-void", 168143678641076},
		{"const-stringinvoke-virtualmove-result-objectreturn-object", 211995567477213},
		{"", 10552415371902},
		{"ab", 242079706966944},
	}
	for _, c := range cases {
		if got := Simhash(c.in); got != c.want {
			t.Errorf("Simhash(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestSimhashIgnoresPunctuationAndCase(t *testing.T) {
	if Simhash("Invoke-Static") != Simhash("invokestatic") {
		t.Error("case or punctuation changed the hash")
	}
	if Simhash("abc") >= 1<<HashBits {
		t.Error("hash wider than 48 bits")
	}
}

func TestPointOf(t *testing.T) {
	got := PointOf("invoke-staticreturn-void")
	want := ColorPoint{X: 611, Y: 720, R: 3, G: 201, B: 59}
	if got != want {
		t.Errorf("PointOf = %v, want %v", got, want)
	}
	if got := Points([]string{"", "ab", ""}); len(got) != 1 || got[0] != (ColorPoint{880, 697, 47, 14, 186}) {
		t.Errorf("Points = %v", got)
	}
}

func TestRasterizePaintsAndSkipsBlack(t *testing.T) {
	img, err := Rasterizer{W: 4, H: 4}.Rasterize([]ColorPoint{
		{X: 1, Y: 2, R: 10, G: 20, B: 30},
		{X: 3, Y: 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := img.NRGBAAt(1, 2); got != (color.NRGBA{10, 20, 30, 255}) {
		t.Errorf("(1,2) = %v", got)
	}
	if got := img.NRGBAAt(3, 3); got != (color.NRGBA{0, 0, 0, 255}) {
		t.Errorf("black point painted (3,3) = %v", got)
	}
}

func TestRasterizeConflictRingOrder(t *testing.T) {
	red := ColorPoint{X: 2, Y: 2, R: 255}
	green := ColorPoint{X: 2, Y: 2, G: 255}
	blue := ColorPoint{X: 2, Y: 2, B: 255}
	img, err := Rasterizer{W: 5, H: 5}.Rasterize([]ColorPoint{red, green, blue})
	if err != nil {
		t.Fatal(err)
	}
	// Radius 1 ring starts at the top-left corner, then bottom-left.
	if got := img.NRGBAAt(1, 1); got != (color.NRGBA{0, 255, 0, 255}) {
		t.Errorf("green at (1,1) = %v", got)
	}
	if got := img.NRGBAAt(1, 3); got != (color.NRGBA{0, 0, 255, 255}) {
		t.Errorf("blue at (1,3) = %v", got)
	}
}

func TestRasterizeConflictFromCorner(t *testing.T) {
	pts := []ColorPoint{{X: 0, Y: 0, R: 1}}
	for i := 2; i <= 4; i++ {
		pts = append(pts, ColorPoint{X: 0, Y: 0, R: uint8(i)})
	}
	img, err := Rasterizer{W: 2, H: 2}.Rasterize(pts)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range []image.Point{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		if empty(img.NRGBAAt(c.X, c.Y)) {
			t.Errorf("cell %v left empty", c)
		}
	}
}

func TestRasterizeAlpha(t *testing.T) {
	p := ColorPoint{X: 0, Y: 0, R: 9, G: 9, B: 9}
	q := ColorPoint{X: 1, Y: 0, R: 7, G: 7, B: 7}
	var pts []ColorPoint
	for i := 0; i < 26; i++ {
		pts = append(pts, p) // 25 repeats
	}
	for i := 0; i < 5; i++ {
		pts = append(pts, q) // 4 repeats
	}
	img, err := Rasterizer{W: 8, H: 8}.Rasterize(pts)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.NRGBAAt(0, 0).A; got != 2 {
		t.Errorf("alpha after 25 repeats = %d, want 2", got)
	}
	if got := img.NRGBAAt(1, 0).A; got != 0 {
		t.Errorf("alpha after 4 repeats = %d, want 0", got)
	}
}

func TestHitAlpha(t *testing.T) {
	cases := map[int]uint8{1: 0, 9: 0, 10: 1, 19: 1, 20: 2, 2539: 253, 2540: 254, 9999: 254}
	for n, want := range cases {
		if got := hitAlpha(n); got != want {
			t.Errorf("hitAlpha(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestRasterizeTooLong(t *testing.T) {
	_, err := Rasterizer{W: 2, H: 2}.Rasterize(make([]ColorPoint, 5))
	if !errors.Is(err, ErrSequenceTooLong) {
		t.Fatalf("err = %v, want ErrSequenceTooLong", err)
	}
}

func TestRasterizeOutOfBounds(t *testing.T) {
	_, err := Rasterizer{W: 2, H: 2}.Rasterize([]ColorPoint{{X: 5, Y: 0, R: 1}})
	if !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("err = %v, want ErrOutOfBounds", err)
	}
}

func TestFindFreeExhausted(t *testing.T) {
	rz := Rasterizer{W: 3, H: 3}
	img := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	for i := range img.Pix {
		img.Pix[i] = 1
	}
	if _, _, ok := rz.findFree(img, 1, 1); ok {
		t.Error("findFree succeeded on a full canvas")
	}
}

func TestRasterizeDeterministic(t *testing.T) {
	streams := []string{"a", "b", "invoke-static", "return-void", "a", "const-string"}
	pts := Points(streams)
	a, err := Rasterize(pts)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Rasterize(pts)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Error("rasterization not deterministic")
	}
	if a.Bounds().Dx() != Width || a.Bounds().Dy() != Height {
		t.Errorf("bounds = %v", a.Bounds())
	}
}
