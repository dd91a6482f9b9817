// CLAUDE:SUMMARY Rod tab as a capture surface: metrics, theme/text signals, light override, whole-viewport PNG capture, overlay.
package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/framecap/internal/geometry"
	"github.com/hazyhaar/framecap/internal/scheme"
	"github.com/hazyhaar/framecap/internal/selector"
	"github.com/hazyhaar/framecap/internal/steps"
	"github.com/hazyhaar/framecap/internal/surface"
)

// Tab wraps a Rod page navigated to the page being captured.
type Tab struct {
	Page    *rod.Page
	PageURL string
	PageID  string
	Stealth StealthLevel

	router *rod.HijackRouter
	logger *slog.Logger
}

var (
	_ surface.Surface  = (*Tab)(nil)
	_ selector.Overlay = (*Tab)(nil)
)

// OpenTab creates a new tab, navigates to pageURL with stealth applied and
// waits for the load event.
func OpenTab(ctx context.Context, mgr *Manager, pageURL, pageID string, level StealthLevel) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	var page *rod.Page
	var err error

	if level >= LevelHeadless {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	t := &Tab{
		Page:    page,
		PageURL: pageURL,
		PageID:  pageID,
		Stealth: level,
		logger:  mgr.cfg.Logger.With("tab", pageID),
	}
	if len(mgr.cfg.ResourceBlocking) > 0 {
		t.router = blockResources(page, mgr.cfg.ResourceBlocking)
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		t.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}

	if err := page.Context(navCtx).WaitLoad(); err != nil {
		t.logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	return t, nil
}

// ID implements surface.Surface.
func (t *Tab) ID() string {
	if t.PageID != "" {
		return t.PageID
	}
	return string(t.Page.TargetID)
}

// Close stops request interception and closes the tab.
func (t *Tab) Close() error {
	if t.router != nil {
		t.router.Stop()
		t.router = nil
	}
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}

// evalJSON runs js with args and decodes its JSON string result into v.
func (t *Tab) evalJSON(ctx context.Context, v any, js string, args ...any) error {
	res, err := t.Page.Context(ctx).Eval(js, args...)
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	return json.Unmarshal([]byte(res.Value.Str()), v)
}

type pageMetrics struct {
	DPR float64 `json:"dpr"`
	W   float64 `json:"w"`
	H   float64 `json:"h"`
}

func (t *Tab) metrics(ctx context.Context) (pageMetrics, error) {
	var m pageMetrics
	if err := t.evalJSON(ctx, &m, metricsJS); err != nil {
		return m, fmt.Errorf("browser: metrics: %w", err)
	}
	return m, nil
}

// DevicePixelRatio implements surface.Metrics.
func (t *Tab) DevicePixelRatio(ctx context.Context) (float64, error) {
	m, err := t.metrics(ctx)
	if err != nil {
		return 0, err
	}
	return m.DPR, nil
}

// Viewport implements surface.Metrics.
func (t *Tab) Viewport(ctx context.Context) (surface.Viewport, error) {
	m, err := t.metrics(ctx)
	if err != nil {
		return surface.Viewport{}, err
	}
	return surface.Viewport{W: m.W, H: m.H}, nil
}

// ThemeSignals implements surface.Inspector.
func (t *Tab) ThemeSignals(ctx context.Context) (surface.ThemeSignals, error) {
	var sig surface.ThemeSignals
	if err := t.evalJSON(ctx, &sig, themeSignalsJS, scheme.DarkClasses); err != nil {
		return sig, fmt.Errorf("browser: theme signals: %w", err)
	}
	return sig, nil
}

// TextMetrics implements surface.Inspector.
func (t *Tab) TextMetrics(ctx context.Context) (surface.TextMetrics, error) {
	var m surface.TextMetrics
	if err := t.evalJSON(ctx, &m, textMetricsJS); err != nil {
		return m, fmt.Errorf("browser: text metrics: %w", err)
	}
	return m, nil
}

// ApplyOverride implements surface.Injector. Each part of the override is
// an optional step; the returned handle records what was applied. An error
// is returned only when every requested step failed.
func (t *Tab) ApplyOverride(ctx context.Context, spec surface.OverrideSpec) (*surface.Override, error) {
	h := &surface.Override{Spec: spec}
	p := t.Page.Context(ctx)

	var list []steps.Step
	if spec.ForceLight {
		list = append(list,
			steps.Step{Name: "emulate-light-media", Run: func(context.Context) error {
				return proto.EmulationSetEmulatedMedia{
					Features: []*proto.EmulationMediaFeature{{Name: "prefers-color-scheme", Value: "light"}},
				}.Call(p)
			}},
			steps.Step{Name: "white-background", Run: func(context.Context) error {
				return proto.EmulationSetDefaultBackgroundColorOverride{
					Color: &proto.DOMRGBA{R: 255, G: 255, B: 255},
				}.Call(p)
			}},
			steps.Step{Name: "light-stylesheet", Run: func(ctx context.Context) error {
				var prior surface.PriorState
				if err := t.evalJSON(ctx, &prior, applyLightJS, scheme.DarkClasses, styleID, lightOverrideCSS); err != nil {
					return err
				}
				h.Prior = &prior
				return nil
			}},
		)
	}
	if spec.DeviceScale > 0 {
		list = append(list, steps.Step{Name: "device-scale", Run: func(context.Context) error {
			return proto.EmulationSetDeviceMetricsOverride{
				Width:             max(1, int(spec.Viewport.W)),
				Height:            max(1, int(spec.Viewport.H)),
				DeviceScaleFactor: spec.DeviceScale,
				Mobile:            false,
			}.Call(p)
		}})
	}
	if len(list) == 0 {
		return h, nil
	}

	out := steps.RunOptional(ctx, t.logger, list...)
	h.MediaEmulated = out.Succeeded("emulate-light-media")
	h.BackgroundApplied = out.Succeeded("white-background")
	h.StylesheetApplied = out.Succeeded("light-stylesheet")
	h.PaletteApplied = h.MediaEmulated || h.StylesheetApplied
	if out.Succeeded("device-scale") {
		h.DeviceScale = spec.DeviceScale
	}

	failed := out.Failed()
	if len(failed) == len(list) {
		errs := make([]error, 0, len(failed))
		for _, f := range failed {
			errs = append(errs, fmt.Errorf("%s: %w", f.Name, f.Err))
		}
		return h, fmt.Errorf("browser: apply override: %w", errors.Join(errs...))
	}
	return h, nil
}

// RevertOverride implements surface.Injector. Only what the handle records
// as applied is undone. All steps run; their failures are joined.
func (t *Tab) RevertOverride(ctx context.Context, h *surface.Override) error {
	if h == nil {
		return nil
	}
	p := t.Page.Context(ctx)

	var list []steps.Step
	if h.Prior != nil {
		prior := h.Prior
		list = append(list, steps.Step{Name: "restore-page-state", Run: func(ctx context.Context) error {
			return t.evalJSON(ctx, nil, revertLightJS, styleID, prior)
		}})
	}
	if h.DeviceScale > 0 {
		list = append(list, steps.Step{Name: "clear-device-metrics", Run: func(context.Context) error {
			return proto.EmulationClearDeviceMetricsOverride{}.Call(p)
		}})
	}
	if h.BackgroundApplied {
		list = append(list, steps.Step{Name: "clear-background", Run: func(context.Context) error {
			return proto.EmulationSetDefaultBackgroundColorOverride{}.Call(p)
		}})
	}
	if h.MediaEmulated {
		list = append(list, steps.Step{Name: "clear-media", Run: func(context.Context) error {
			return proto.EmulationSetEmulatedMedia{}.Call(p)
		}})
	}

	var errs []error
	for _, o := range steps.RunOptional(ctx, t.logger, list...).Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", o.Name, o.Err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("browser: revert override: %w", errors.Join(errs...))
	}
	return nil
}

// Capture implements surface.Capturer. The whole viewport is captured from
// the compositor surface; cropping happens in the caller.
func (t *Tab) Capture(ctx context.Context, opts surface.CaptureOptions) (image.Image, error) {
	p := t.Page.Context(ctx)

	if opts.BackgroundOverride {
		err := proto.EmulationSetDefaultBackgroundColorOverride{
			Color: &proto.DOMRGBA{R: 255, G: 255, B: 255},
		}.Call(p)
		if err != nil {
			t.logger.Debug("browser: background override failed", "error", err)
		} else {
			defer func() {
				_ = proto.EmulationSetDefaultBackgroundColorOverride{}.Call(t.Page)
			}()
		}
	}

	data, err := p.Screenshot(false, &proto.PageCaptureScreenshot{
		Format:      proto.PageCaptureScreenshotFormatPng,
		FromSurface: true,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("browser: decode screenshot: %w", err)
	}
	t.logger.Debug("browser: captured",
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
		"scale", opts.DeviceScaleOverride,
	)
	return img, nil
}

// DrawSelection implements selector.Overlay.
func (t *Tab) DrawSelection(ctx context.Context, r geometry.Rect, pal selector.Palette) error {
	return t.evalJSON(ctx, nil, drawOverlayJS, overlayID, r, pal)
}

// ClearSelection implements selector.Overlay.
func (t *Tab) ClearSelection(ctx context.Context) error {
	return t.evalJSON(ctx, nil, clearOverlayJS, overlayID)
}
