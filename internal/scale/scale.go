// Package scale estimates the super-sampling factor for a capture and clamps
// it against a pixel budget so the captured bitmap stays bounded.
package scale

import (
	"context"
	"log/slog"
	"math"

	"github.com/hazyhaar/framecap/internal/surface"
)

const (
	// Min and Max bound every estimate.
	Min = 1.0
	Max = 2.0
	// Fallback is returned whenever estimation fails.
	Fallback = 2.0

	// DefaultMaxLongEdge caps the long edge of the captured bitmap.
	DefaultMaxLongEdge = 8192
	// DefaultMaxPixels caps the captured bitmap area (32 MiP).
	DefaultMaxPixels = 33_554_432
)

// Band maps text densities at or above Threshold (elements per 10 000 CSS
// px²), or small-text ratios at or above SmallTextRatio, to Scale.
type Band struct {
	Name           string
	Threshold      float64
	SmallTextRatio float64
	Scale          float64
}

// DefaultPolicy is the band table used when none is configured. Every band
// currently resolves to 2.0; the table exists so a band can be retuned
// without touching the estimator.
var DefaultPolicy = []Band{
	{Name: "dense", Threshold: 0.8, Scale: 2.0},
	{Name: "moderate", Threshold: 0.4, Scale: 2.0},
	{Name: "small-text", SmallTextRatio: 0.5, Scale: 2.0},
	{Name: "sparse", Scale: 2.0},
}

// Config tunes an Estimator.
type Config struct {
	// Policy is scanned in order; the first matching band wins. A band with
	// zero Threshold and zero SmallTextRatio always matches.
	Policy []Band
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if len(c.Policy) == 0 {
		c.Policy = DefaultPolicy
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Estimator turns text metrics into a scale factor.
type Estimator struct {
	cfg Config
}

// New creates an Estimator.
func New(cfg Config) *Estimator {
	cfg.defaults()
	return &Estimator{cfg: cfg}
}

// Estimate returns a factor in [Min, Max]. Any read failure yields Fallback.
func (e *Estimator) Estimate(ctx context.Context, insp surface.Inspector) float64 {
	m, err := insp.TextMetrics(ctx)
	if err != nil {
		e.cfg.Logger.Debug("scale: text metrics unavailable", "error", err)
		return Fallback
	}
	d := Density(m)
	band, s := e.lookup(d, m)
	e.cfg.Logger.Debug("scale: estimated",
		"density", d,
		"text_elements", m.TextElements,
		"small_text", m.SmallText,
		"band", band,
		"scale", s,
	)
	return s
}

func (e *Estimator) lookup(density float64, m surface.TextMetrics) (string, float64) {
	small := 0.0
	if m.TextElements > 0 {
		small = float64(m.SmallText) / float64(m.TextElements)
	}
	for _, b := range e.cfg.Policy {
		always := b.Threshold == 0 && b.SmallTextRatio == 0
		if always ||
			(b.Threshold > 0 && density >= b.Threshold) ||
			(b.SmallTextRatio > 0 && small >= b.SmallTextRatio) {
			return b.Name, bound(b.Scale)
		}
	}
	return "", Fallback
}

// Estimate runs the default estimator.
func Estimate(ctx context.Context, insp surface.Inspector) float64 {
	return New(Config{}).Estimate(ctx, insp)
}

// Density is text elements per 10 000 CSS px² of viewport, with the area
// term floored at 1.
func Density(m surface.TextMetrics) float64 {
	return float64(m.TextElements) / math.Max(m.Viewport.Area()/10000, 1)
}

func bound(s float64) float64 {
	if math.IsNaN(s) {
		return Fallback
	}
	return math.Min(Max, math.Max(Min, s))
}

// Budget bounds the size of the captured bitmap.
type Budget struct {
	MaxLongEdge int
	MaxPixels   int
}

// DefaultBudget is the 8192 px / 32 MiP budget.
var DefaultBudget = Budget{MaxLongEdge: DefaultMaxLongEdge, MaxPixels: DefaultMaxPixels}

func (b Budget) normalized() Budget {
	if b.MaxLongEdge <= 0 {
		b.MaxLongEdge = DefaultMaxLongEdge
	}
	if b.MaxPixels <= 0 {
		b.MaxPixels = DefaultMaxPixels
	}
	return b
}

// BaseSize returns the device-pixel size of viewport at dpr, each side at
// least 1.
func BaseSize(vp surface.Viewport, dpr float64) (w, h int) {
	w = max(1, int(math.Floor(vp.W*dpr)))
	h = max(1, int(math.Floor(vp.H*dpr)))
	return w, h
}

// AdaptiveMax is the largest factor the budget allows for a base bitmap of
// baseW×baseH. Never below 1.
func (b Budget) AdaptiveMax(baseW, baseH int) float64 {
	b = b.normalized()
	baseW, baseH = max(1, baseW), max(1, baseH)
	edge := float64(b.MaxLongEdge)
	byEdge := math.Min(edge/float64(baseW), edge/float64(baseH))
	byPixels := math.Sqrt(float64(b.MaxPixels) / (float64(baseW) * float64(baseH)))
	return math.Max(1, math.Min(byEdge, byPixels))
}

// Effective clamps requested into [1, AdaptiveMax] for the given viewport.
func (b Budget) Effective(requested float64, vp surface.Viewport, dpr float64) float64 {
	if math.IsNaN(requested) {
		requested = 1
	}
	w, h := BaseSize(vp, dpr)
	return math.Min(math.Max(1, requested), b.AdaptiveMax(w, h))
}

// AdaptiveMax applies DefaultBudget to viewport at dpr.
func AdaptiveMax(vp surface.Viewport, dpr float64) float64 {
	w, h := BaseSize(vp, dpr)
	return DefaultBudget.AdaptiveMax(w, h)
}

// Effective applies DefaultBudget.
func Effective(requested float64, vp surface.Viewport, dpr float64) float64 {
	return DefaultBudget.Effective(requested, vp, dpr)
}
