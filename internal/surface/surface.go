// CLAUDE:SUMMARY Collaborator contracts for a rendered surface: metrics, inspection, capture primitive, override injection.
// Package surface defines the contracts the capture pipeline consumes from a
// rendered surface. A surface is anything that can report its device metrics,
// expose theme and text signals, take a whole-viewport capture and accept a
// temporary rendering override (a Chromium tab, a physical display).
//
// Implementations live in internal/browser (go-rod) and internal/desktop
// (kbinani/screenshot). The core packages only depend on this one.
package surface

import (
	"context"
	"errors"
	"image"
)

// ErrUnsupported is returned by backends that cannot perform an operation
// (e.g. a physical display cannot inject a stylesheet).
var ErrUnsupported = errors.New("surface: operation not supported")

// Viewport is the surface's layout viewport in CSS pixels.
type Viewport struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Area returns W*H.
func (v Viewport) Area() float64 { return v.W * v.H }

// ThemeSignals are the raw observations the color-scheme detector judges.
// Colors are reported verbatim as computed-style strings ("rgb(17, 24, 39)",
// "rgba(0, 0, 0, 0)", "#1e1e1e", "transparent"); parsing is the detector's job.
type ThemeSignals struct {
	DarkClass    bool   `json:"dark_class"`    // dark / dark-mode class on <html> or <body>
	DarkProperty bool   `json:"dark_property"` // --dark-mode / --is-dark custom property set
	PrefersDark  bool   `json:"prefers_dark"`  // prefers-color-scheme: dark matches
	Background   string `json:"background"`
	Foreground   string `json:"foreground"`
}

// TextMetrics summarises the text-bearing content of the surface.
type TextMetrics struct {
	TextElements int      `json:"text_elements"`
	SmallText    int      `json:"small_text"` // font-size < 14px
	TextLength   int      `json:"text_length"`
	Viewport     Viewport `json:"viewport"`
}

// CaptureOptions tunes a single call to the capture primitive. Capture is
// always whole-viewport; cropping is done locally.
type CaptureOptions struct {
	// DeviceScaleOverride is the device pixel density the override requested,
	// 0 when none is active. Informational for backends that need it.
	DeviceScaleOverride float64
	// BackgroundOverride asks for an opaque white default background.
	BackgroundOverride bool
}

// OverrideSpec describes the neutral rendering mode requested before capture.
type OverrideSpec struct {
	// ForceLight strips dark markers, injects the light stylesheet and emulates
	// prefers-color-scheme: light.
	ForceLight bool
	// DeviceScale is the device pixel density to emulate (dpr × effective
	// scale). Zero or less leaves device metrics untouched.
	DeviceScale float64
	// Viewport is the CSS viewport to keep while changing device metrics.
	Viewport Viewport
}

// PriorState is the rendering state saved before an override so that revert
// can restore it exactly.
type PriorState struct {
	HTMLClass string            `json:"html_class"`
	BodyClass string            `json:"body_class"`
	HasBody   bool              `json:"has_body"`
	Attrs     map[string]string `json:"attrs"`
}

// Override is the request-scoped handle returned by ApplyOverride and handed
// back to RevertOverride. It records exactly what was applied.
type Override struct {
	Spec  OverrideSpec
	Prior *PriorState // nil when the stylesheet/class step did not run

	PaletteApplied    bool    // light palette active (stylesheet or emulated media)
	StylesheetApplied bool    // light stylesheet injected
	MediaEmulated     bool    // prefers-color-scheme emulation active
	BackgroundApplied bool    // default background override active
	DeviceScale       float64 // emulated device scale, 0 when not applied

	reverted bool
}

// MarkReverted flags the handle as reverted and reports whether it already was.
func (o *Override) MarkReverted() (already bool) {
	already = o.reverted
	o.reverted = true
	return already
}

// Reverted reports whether RevertOverride already ran on this handle.
func (o *Override) Reverted() bool { return o.reverted }

// Metrics reads device metadata.
type Metrics interface {
	DevicePixelRatio(ctx context.Context) (float64, error)
	Viewport(ctx context.Context) (Viewport, error)
}

// Inspector exposes read-only content signals.
type Inspector interface {
	ThemeSignals(ctx context.Context) (ThemeSignals, error)
	TextMetrics(ctx context.Context) (TextMetrics, error)
}

// Capturer is the capture primitive.
type Capturer interface {
	Capture(ctx context.Context, opts CaptureOptions) (image.Image, error)
}

// Injector applies and reverts rendering overrides.
type Injector interface {
	ApplyOverride(ctx context.Context, spec OverrideSpec) (*Override, error)
	RevertOverride(ctx context.Context, o *Override) error
}

// Surface is a complete capture target.
type Surface interface {
	// ID identifies the surface for per-surface serialization.
	ID() string
	Metrics
	Inspector
	Capturer
	Injector
}
