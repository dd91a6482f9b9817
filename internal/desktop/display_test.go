package desktop

import (
	"context"
	"errors"
	"image"
	"image/color"
	"log/slog"
	"testing"

	"github.com/hazyhaar/framecap/internal/capture"
	"github.com/hazyhaar/framecap/internal/surface"
)

func fakeDisplay(fill color.RGBA) *Display {
	bounds := image.Rect(0, 0, 320, 200)
	return &Display{
		Index:  0,
		Logger: slog.Default(),
		bounds: func(int) image.Rectangle { return bounds },
		grab: func(r image.Rectangle) (*image.RGBA, error) {
			img := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
			for i := 0; i < len(img.Pix); i += 4 {
				img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = fill.R, fill.G, fill.B, 255
			}
			return img, nil
		},
	}
}

func TestThemeSignals_AverageBackground(t *testing.T) {
	d := fakeDisplay(color.RGBA{R: 20, G: 30, B: 40})
	sig, err := d.ThemeSignals(context.Background())
	if err != nil {
		t.Fatalf("ThemeSignals: %v", err)
	}
	if sig.Background != "rgb(20, 30, 40)" {
		t.Fatalf("background: got %q", sig.Background)
	}
}

func TestOverrideUnsupported(t *testing.T) {
	d := fakeDisplay(color.RGBA{})
	if _, err := d.ApplyOverride(context.Background(), surface.OverrideSpec{ForceLight: true}); !errors.Is(err, surface.ErrUnsupported) {
		t.Fatalf("ApplyOverride: got %v, want ErrUnsupported", err)
	}
	if _, err := d.TextMetrics(context.Background()); !errors.Is(err, surface.ErrUnsupported) {
		t.Fatalf("TextMetrics: got %v, want ErrUnsupported", err)
	}
}

func TestCoordinator_DegradesOnDisplay(t *testing.T) {
	d := fakeDisplay(color.RGBA{R: 10, G: 10, B: 10})
	c := capture.New(capture.Config{SettleDelay: -1})

	res, err := c.Capture(context.Background(), nil, d)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if res.EffectiveScale != 1 {
		t.Errorf("effective scale: got %v, want 1", res.EffectiveScale)
	}
	if !res.Scheme.Dark {
		t.Error("dark display not detected")
	}
	if res.Width != 320 || res.Height != 200 {
		t.Errorf("size: got %dx%d, want 320x200", res.Width, res.Height)
	}
}
