// CLAUDE:SUMMARY Framed-card compositor: gradient backdrop, two shadow layers, white rounded card, 1:1 capture, optional watermark, PNG.
// Package compose renders a captured bitmap into a framed card: a diagonal
// gradient backdrop, a white rounded card lifted by layered shadows, the
// capture drawn 1:1 inside the card, and an optional watermark.
//
// Shapes and text are rasterized with gogpu/gg. Layers are composited onto
// a single RGBA canvas with image/draw so the capture pixels are copied
// without any resampling.
package compose

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"sync"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/gobold"
)

// Input is what the compositor needs from a capture.
type Input struct {
	Image          image.Image
	EffectiveScale float64
}

var (
	boldOnce   sync.Once
	boldSource *text.FontSource
	boldErr    error
)

func boldFont() (*text.FontSource, error) {
	boldOnce.Do(func() {
		boldSource, boldErr = text.NewFontSource(gobold.TTF)
	})
	return boldSource, boldErr
}

// Compose renders in with cfg and returns PNG bytes. It is deterministic:
// the same input and config always produce the same bytes.
func Compose(in Input, cfg Config) ([]byte, error) {
	img, err := Render(in, cfg)
	if err != nil {
		return nil, err
	}
	return Encode(img)
}

// Encode writes img as a PNG at the best compression level.
func Encode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrEncoding)
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	return buf.Bytes(), nil
}

// Render returns the framed image without encoding it.
func Render(in Input, cfg Config) (*image.RGBA, error) {
	if in.Image == nil {
		return nil, fmt.Errorf("%w: nil capture", ErrEncoding)
	}
	cfg.defaults()
	src := in.Image.Bounds()
	l := cfg.Layout(src.Dx(), src.Dy(), in.EffectiveScale)

	canvas, err := backdrop(l, cfg.Gradient)
	if err != nil {
		return nil, err
	}

	card := image.Rect(l.CardX, l.CardY, l.CardX+l.CardW, l.CardY+l.CardH)
	for _, sh := range cfg.Shadows {
		if err := drawShadow(canvas, card, float64(l.CornerRadius), sh, l.Scale); err != nil {
			return nil, err
		}
		if err := fillRounded(canvas, card, float64(l.CornerRadius), color.White); err != nil {
			return nil, err
		}
	}
	if len(cfg.Shadows) == 0 {
		if err := fillRounded(canvas, card, float64(l.CornerRadius), color.White); err != nil {
			return nil, err
		}
	}

	// Capture pixels 1:1, no smoothing.
	dst := image.Rect(l.ContentX, l.ContentY, l.ContentX+src.Dx(), l.ContentY+src.Dy())
	draw.Draw(canvas, dst, in.Image, src.Min, draw.Over)

	if wm := strings.TrimSpace(cfg.Watermark); wm != "" {
		if err := drawWatermark(canvas, l, wm, cfg.WatermarkColor); err != nil {
			return nil, err
		}
	}
	return canvas, nil
}

// backdrop fills the whole canvas with the diagonal gradient.
func backdrop(l Layout, stops []GradientStop) (*image.RGBA, error) {
	dc := gg.NewContext(l.CanvasW, l.CanvasH)
	defer dc.Close()

	brush := gg.NewLinearGradientBrush(0, 0, float64(l.CanvasW), float64(l.CanvasH))
	for _, s := range stops {
		brush.AddColorStop(s.Offset, gg.Hex(s.Color))
	}
	dc.SetFillBrush(brush)
	dc.DrawRectangle(0, 0, float64(l.CanvasW), float64(l.CanvasH))
	if err := dc.Fill(); err != nil {
		return nil, fmt.Errorf("compose: backdrop: %w", err)
	}
	if err := dc.FlushGPU(); err != nil {
		return nil, fmt.Errorf("compose: backdrop: %w", err)
	}
	return toRGBA(dc.Image()), nil
}

// drawShadow composites one blurred, offset shadow of the card.
func drawShadow(canvas *image.RGBA, card image.Rectangle, radius float64, sh Shadow, s float64) error {
	blur := roundInt(sh.Blur * s)
	dy := roundInt(sh.OffsetY * s)
	if sh.Opacity <= 0 {
		return nil
	}
	margin := 2*blur + 1
	shape := card.Add(image.Pt(0, dy))
	region := shape.Inset(-margin).Intersect(canvas.Bounds())
	if region.Empty() {
		return nil
	}

	mask, err := rasterMask(region, func(dc *gg.Context) error {
		dc.DrawRoundedRectangle(
			float64(shape.Min.X-region.Min.X), float64(shape.Min.Y-region.Min.Y),
			float64(shape.Dx()), float64(shape.Dy()), radius)
		return dc.Fill()
	})
	if err != nil {
		return fmt.Errorf("compose: shadow: %w", err)
	}
	// A CSS blur radius is twice the Gaussian sigma.
	boxBlur(mask, max(1, blur/2), 3)
	scaleAlpha(mask, sh.Opacity)
	draw.DrawMask(canvas, region, image.Black, image.Point{}, mask, mask.Rect.Min, draw.Over)
	return nil
}

// fillRounded paints an anti-aliased rounded rectangle in c.
func fillRounded(canvas *image.RGBA, r image.Rectangle, radius float64, c color.Color) error {
	region := r.Inset(-1).Intersect(canvas.Bounds())
	mask, err := rasterMask(region, func(dc *gg.Context) error {
		dc.DrawRoundedRectangle(
			float64(r.Min.X-region.Min.X), float64(r.Min.Y-region.Min.Y),
			float64(r.Dx()), float64(r.Dy()), radius)
		return dc.Fill()
	})
	if err != nil {
		return fmt.Errorf("compose: card: %w", err)
	}
	draw.DrawMask(canvas, region, image.NewUniform(c), image.Point{}, mask, mask.Rect.Min, draw.Over)
	return nil
}

// drawWatermark draws wm right-aligned under the card, with a soft shadow
// offset downward.
func drawWatermark(canvas *image.RGBA, l Layout, wm, hex string) error {
	src, err := boldFont()
	if err != nil {
		return fmt.Errorf("compose: watermark font: %w", err)
	}
	face := src.Face(float64(l.FontSize))

	// A strip around the baseline tall enough for ascenders and descenders.
	region := image.Rect(0, l.WatermarkY-2*l.FontSize, canvas.Rect.Dx(), l.WatermarkY+l.FontSize).
		Intersect(canvas.Bounds())
	if region.Empty() {
		return nil
	}

	glyphs := func(dx, dy int) (*image.Alpha, error) {
		return rasterMask(region, func(dc *gg.Context) error {
			dc.SetFont(face)
			dc.DrawStringAnchored(wm,
				float64(l.WatermarkX-region.Min.X+dx), float64(l.WatermarkY-region.Min.Y+dy), 1, 0)
			return nil
		})
	}

	blur := max(1, roundInt(l.Scale))
	shadow, err := glyphs(0, blur)
	if err != nil {
		return fmt.Errorf("compose: watermark: %w", err)
	}
	boxBlur(shadow, max(1, blur/2), 3)
	scaleAlpha(shadow, 0.2)
	draw.DrawMask(canvas, region, image.Black, image.Point{}, shadow, shadow.Rect.Min, draw.Over)

	fg, err := glyphs(0, 0)
	if err != nil {
		return fmt.Errorf("compose: watermark: %w", err)
	}
	c := gg.Hex(hex)
	ink := color.NRGBA{R: uint8(c.R*255 + 0.5), G: uint8(c.G*255 + 0.5), B: uint8(c.B*255 + 0.5), A: 255}
	draw.DrawMask(canvas, region, image.NewUniform(ink), image.Point{}, fg, fg.Rect.Min, draw.Over)
	return nil
}

// rasterMask renders paint into a transparent gg context the size of region
// and returns its coverage as an alpha mask positioned at region.
func rasterMask(region image.Rectangle, paint func(dc *gg.Context) error) (*image.Alpha, error) {
	dc := gg.NewContext(region.Dx(), region.Dy())
	defer dc.Close()
	dc.SetRGBA(0, 0, 0, 1)
	if err := paint(dc); err != nil {
		return nil, err
	}
	if err := dc.FlushGPU(); err != nil {
		return nil, err
	}
	rgba := toRGBA(dc.Image())
	mask := image.NewAlpha(region)
	for i, j := 3, 0; i < len(rgba.Pix); i, j = i+4, j+1 {
		mask.Pix[j] = rgba.Pix[i]
	}
	return mask, nil
}

func toRGBA(img image.Image) *image.RGBA {
	if r, ok := img.(*image.RGBA); ok && r.Rect.Min == (image.Point{}) && r.Stride == 4*r.Rect.Dx() {
		return r
	}
	b := img.Bounds()
	r := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(r, r.Rect, img, b.Min, draw.Src)
	return r
}

func scaleAlpha(m *image.Alpha, k float64) {
	for i, a := range m.Pix {
		m.Pix[i] = uint8(float64(a)*k + 0.5)
	}
}
