package geometry

import (
	"image"
	"image/color"
	"testing"
)

func TestFromPoints_Normalizes(t *testing.T) {
	r := FromPoints(120, 80, 20, 30)
	want := Rect{X: 20, Y: 30, Width: 100, Height: 50}
	if r != want {
		t.Fatalf("FromPoints: got %+v, want %+v", r, want)
	}
}

func TestFinalizable(t *testing.T) {
	tests := []struct {
		w, h float64
		want bool
	}{
		{9, 9, false},
		{10, 10, true},
		{10, 9, false},
		{200, 10, true},
	}
	for _, tt := range tests {
		if got := (Rect{Width: tt.w, Height: tt.h}).Finalizable(); got != tt.want {
			t.Errorf("%gx%g: got %v, want %v", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestToCropBounds_Containment(t *testing.T) {
	viewport := Size{W: 1280, H: 800}
	rects := []Rect{
		{X: 0, Y: 0, Width: 1280, Height: 800},
		{X: 10.3, Y: 20.7, Width: 333.3, Height: 111.1},
		{X: 1270, Y: 790, Width: 50, Height: 50},
		{X: -15, Y: -4, Width: 30, Height: 30},
		{X: 1500, Y: 900, Width: 10, Height: 10},
		{X: 639.5, Y: 399.5, Width: 0.2, Height: 0.2},
	}

	for _, dpr := range []float64{1, 1.5, 2, 3} {
		bw := int(viewport.W * dpr)
		bh := int(viewport.H * dpr)
		for _, r := range rects {
			b := ToCropBounds(r.ToDevice(dpr), dpr, bw, bh, viewport)
			if b.X < 0 || b.Y < 0 {
				t.Errorf("dpr %g %s: negative origin %+v", dpr, r, b)
			}
			if b.W < 1 || b.H < 1 {
				t.Errorf("dpr %g %s: empty bounds %+v", dpr, r, b)
			}
			if b.X+b.W > bw || b.Y+b.H > bh {
				t.Errorf("dpr %g %s: bounds %+v exceed %dx%d", dpr, r, b, bw, bh)
			}
		}
	}
}

func TestToCropBounds_FloorCeilSnapping(t *testing.T) {
	// Edges at 10.5 and 20.5 device px must widen outward, not round.
	dr := DeviceRect{X: 10.5, Y: 10.5, Width: 10, Height: 10, DPR: 1}
	b := ToCropBounds(dr, 1, 100, 100, Size{W: 100, H: 100})
	want := CropBounds{X: 10, Y: 10, W: 11, H: 11}
	if b != want {
		t.Fatalf("bounds: got %+v, want %+v", b, want)
	}
}

func TestToCropBounds_UsesActualBitmapScale(t *testing.T) {
	// Selection sampled at DPR 1, bitmap captured at 2x under an override.
	sel := Rect{X: 100, Y: 50, Width: 200, Height: 100}.ToDevice(1)
	b := ToCropBounds(sel, 1, 1600, 1200, Size{W: 800, H: 600})
	want := CropBounds{X: 200, Y: 100, W: 400, H: 200}
	if b != want {
		t.Fatalf("bounds: got %+v, want %+v", b, want)
	}
}

func TestToCropBounds_ZeroViewport(t *testing.T) {
	b := ToCropBounds(DeviceRect{X: 4, Y: 4, Width: 8, Height: 8, DPR: 1}, 1, 20, 20, Size{})
	want := CropBounds{X: 4, Y: 4, W: 8, H: 8}
	if b != want {
		t.Fatalf("bounds: got %+v, want %+v", b, want)
	}
}

func TestCrop_CopiesPixelsOneToOne(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.SetRGBA(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), A: 255})
		}
	}

	out := Crop(src, CropBounds{X: 1, Y: 2, W: 2, H: 2})
	if out.Bounds() != image.Rect(0, 0, 2, 2) {
		t.Fatalf("bounds: got %v, want 2x2 at origin", out.Bounds())
	}
	if got := out.RGBAAt(1, 1); got.R != 20 || got.G != 30 {
		t.Errorf("pixel (1,1): got %+v, want R=20 G=30", got)
	}
}

func TestCrop_OffsetSource(t *testing.T) {
	base := image.NewRGBA(image.Rect(0, 0, 10, 10))
	base.SetRGBA(6, 7, color.RGBA{B: 200, A: 255})
	sub := base.SubImage(image.Rect(4, 4, 10, 10))

	out := Crop(sub, CropBounds{X: 2, Y: 3, W: 1, H: 1})
	if got := out.RGBAAt(0, 0); got.B != 200 {
		t.Errorf("pixel: got %+v, want B=200", got)
	}
}
