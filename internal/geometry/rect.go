// CLAUDE:SUMMARY Maps selection rectangles across CSS, device and bitmap pixel spaces with floor/ceil edge snapping.
// Package geometry maps selection rectangles between CSS pixels, device
// pixels and captured-bitmap pixels.
//
// Crop bounds are computed by flooring the near edges and ceiling the far
// edges in bitmap space, then clamping into the bitmap. Position and size are
// never rounded independently.
package geometry

import (
	"fmt"
	"image"
	"image/draw"
	"math"
)

// MinSelection is the smallest width and height (CSS px) a selection must
// reach to be finalized.
const MinSelection = 10.0

// Rect is a selection rectangle in CSS pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FromPoints builds a normalized rectangle spanning two corners. Negative
// extents are flipped so the origin is always the top-left corner.
func FromPoints(x0, y0, x1, y1 float64) Rect {
	return Rect{
		X:      math.Min(x0, x1),
		Y:      math.Min(y0, y1),
		Width:  math.Abs(x1 - x0),
		Height: math.Abs(y1 - y0),
	}
}

// Finalizable reports whether the rectangle is large enough to capture.
func (r Rect) Finalizable() bool {
	return r.Width >= MinSelection && r.Height >= MinSelection
}

// ToDevice expresses r in device pixels at the given DPR.
func (r Rect) ToDevice(dpr float64) DeviceRect {
	dpr = normDPR(dpr)
	return DeviceRect{
		X:      r.X * dpr,
		Y:      r.Y * dpr,
		Width:  r.Width * dpr,
		Height: r.Height * dpr,
		DPR:    dpr,
	}
}

func (r Rect) String() string {
	return fmt.Sprintf("%gx%g@(%g,%g)", r.Width, r.Height, r.X, r.Y)
}

// DeviceRect is a selection rectangle in device pixels, together with the
// DPR it was sampled at.
type DeviceRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	DPR    float64 `json:"dpr"`
}

// CSS converts the device rectangle back to CSS pixels using dpr.
func (d DeviceRect) CSS(dpr float64) Rect {
	dpr = normDPR(dpr)
	return Rect{
		X:      d.X / dpr,
		Y:      d.Y / dpr,
		Width:  d.Width / dpr,
		Height: d.Height / dpr,
	}
}

// Size is a viewport size in CSS pixels.
type Size struct {
	W float64
	H float64
}

// CropBounds is an integer source rectangle inside a captured bitmap.
type CropBounds struct {
	X int `json:"sx"`
	Y int `json:"sy"`
	W int `json:"sw"`
	H int `json:"sh"`
}

// Rectangle returns the bounds as an image.Rectangle.
func (c CropBounds) Rectangle() image.Rectangle {
	return image.Rect(c.X, c.Y, c.X+c.W, c.Y+c.H)
}

// ToCropBounds maps a device rectangle sampled at dprAtSelection into the
// pixel grid of a bitmap of bitmapW×bitmapH that covers viewport.
//
// The bitmap-to-CSS scale is derived from the bitmap actually returned, not
// from a predicted DPR, so a backend that captures at a different density
// still crops the intended region. The result always lies inside the bitmap
// and is at least 1×1.
func ToCropBounds(dr DeviceRect, dprAtSelection float64, bitmapW, bitmapH int, viewport Size) CropBounds {
	css := dr.CSS(dprAtSelection)

	scaleX, scaleY := 1.0, 1.0
	if viewport.W > 0 {
		scaleX = float64(bitmapW) / viewport.W
	}
	if viewport.H > 0 {
		scaleY = float64(bitmapH) / viewport.H
	}

	left := int(math.Floor(css.X * scaleX))
	top := int(math.Floor(css.Y * scaleY))
	right := int(math.Ceil((css.X + css.Width) * scaleX))
	bottom := int(math.Ceil((css.Y + css.Height) * scaleY))

	sx := clamp(left, 0, bitmapW-1)
	sy := clamp(top, 0, bitmapH-1)
	sw := max(1, min(right-left, bitmapW-sx))
	sh := max(1, min(bottom-top, bitmapH-sy))

	return CropBounds{X: sx, Y: sy, W: sw, H: sh}
}

// Crop returns the pixels of img inside b, copied 1:1 into a new RGBA image
// whose origin is (0,0). No resampling takes place.
func Crop(img image.Image, b CropBounds) *image.RGBA {
	src := b.Rectangle().Add(img.Bounds().Min)
	dst := image.NewRGBA(image.Rect(0, 0, b.W, b.H))
	draw.Draw(dst, dst.Rect, img, src.Min, draw.Src)
	return dst
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	return max(lo, min(v, hi))
}

func normDPR(dpr float64) float64 {
	if dpr <= 0 || math.IsNaN(dpr) || math.IsInf(dpr, 0) {
		return 1
	}
	return dpr
}
