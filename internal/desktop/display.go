// CLAUDE:SUMMARY Physical display as a degraded capture surface: kbinani/screenshot capture, average-color theme signal, no overrides.
// Package desktop exposes a physical display as a capture surface. A display
// cannot be restyled or re-rendered at a higher density, so overrides are
// unsupported and captures always run at scale 1.
package desktop

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/kbinani/screenshot"

	"github.com/hazyhaar/framecap/internal/surface"
)

// Display is one active display.
type Display struct {
	Index  int
	Logger *slog.Logger

	bounds func(i int) image.Rectangle
	grab   func(r image.Rectangle) (*image.RGBA, error)
}

var _ surface.Surface = (*Display)(nil)

// Open returns display i.
func Open(i int, logger *slog.Logger) (*Display, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("desktop: no active displays found")
	}
	if i < 0 || i >= n {
		return nil, fmt.Errorf("desktop: display %d out of range [0,%d)", i, n)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Display{
		Index:  i,
		Logger: logger,
		bounds: screenshot.GetDisplayBounds,
		grab:   screenshot.CaptureRect,
	}, nil
}

// ID implements surface.Surface.
func (d *Display) ID() string { return fmt.Sprintf("display-%d", d.Index) }

// DevicePixelRatio implements surface.Metrics. Display bounds are already
// in physical pixels.
func (d *Display) DevicePixelRatio(context.Context) (float64, error) { return 1, nil }

// Viewport implements surface.Metrics.
func (d *Display) Viewport(context.Context) (surface.Viewport, error) {
	b := d.bounds(d.Index)
	if b.Empty() {
		return surface.Viewport{}, fmt.Errorf("desktop: display %d has empty bounds", d.Index)
	}
	return surface.Viewport{W: float64(b.Dx()), H: float64(b.Dy())}, nil
}

// ThemeSignals implements surface.Inspector. Only the background is known:
// the average color of the display.
func (d *Display) ThemeSignals(context.Context) (surface.ThemeSignals, error) {
	img, err := d.grab(d.bounds(d.Index))
	if err != nil {
		return surface.ThemeSignals{}, fmt.Errorf("desktop: sample display: %w", err)
	}
	r, g, b := averageColor(img)
	return surface.ThemeSignals{Background: fmt.Sprintf("rgb(%d, %d, %d)", r, g, b)}, nil
}

// TextMetrics implements surface.Inspector. A display has no document.
func (d *Display) TextMetrics(context.Context) (surface.TextMetrics, error) {
	return surface.TextMetrics{}, surface.ErrUnsupported
}

// ApplyOverride implements surface.Injector.
func (d *Display) ApplyOverride(context.Context, surface.OverrideSpec) (*surface.Override, error) {
	return nil, surface.ErrUnsupported
}

// RevertOverride implements surface.Injector.
func (d *Display) RevertOverride(context.Context, *surface.Override) error { return nil }

// Capture implements surface.Capturer.
func (d *Display) Capture(ctx context.Context, _ surface.CaptureOptions) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := d.bounds(d.Index)
	img, err := d.grab(b)
	if err != nil {
		return nil, fmt.Errorf("desktop: capture display %d: %w", d.Index, err)
	}
	d.Logger.Debug("desktop: captured", "display", d.Index, "width", img.Rect.Dx(), "height", img.Rect.Dy())
	return img, nil
}

// averageColor samples roughly 10 000 pixels of img.
func averageColor(img *image.RGBA) (r, g, b uint8) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	pixels := w * h
	if pixels == 0 {
		return 0, 0, 0
	}
	step := max(1, pixels/10000)

	var rs, gs, bs, n uint64
	for i := 0; i < pixels; i += step {
		off := (i/w)*img.Stride + (i%w)*4
		rs += uint64(img.Pix[off])
		gs += uint64(img.Pix[off+1])
		bs += uint64(img.Pix[off+2])
		n++
	}
	return uint8(rs / n), uint8(gs / n), uint8(bs / n)
}
