// CLAUDE:SUMMARY Capture protocol: measure, neutralize (best-effort), capture whole viewport, revert exactly once, crop locally.
// Package capture orchestrates one capture of a surface: it measures the
// surface, applies a temporary neutral rendering mode, captures the whole
// viewport, always reverts the surface, and crops the result locally.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/framecap/internal/geometry"
	"github.com/hazyhaar/framecap/internal/scale"
	"github.com/hazyhaar/framecap/internal/scheme"
	"github.com/hazyhaar/framecap/internal/steps"
	"github.com/hazyhaar/framecap/internal/surface"
)

// Phase is a step of the capture protocol.
type Phase int

const (
	Measuring Phase = iota
	Neutralizing
	Capturing
	Reverting
	Done
	Failed
)

func (p Phase) String() string {
	switch p {
	case Measuring:
		return "measuring"
	case Neutralizing:
		return "neutralizing"
	case Capturing:
		return "capturing"
	case Reverting:
		return "reverting"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Config tunes a Coordinator.
type Config struct {
	// SettleDelay is waited after a successful override so layout can
	// restabilize. Default: 120ms. Negative disables the wait.
	SettleDelay time.Duration
	// RevertTimeout bounds the revert, which runs even if the request
	// context is already done. Default: 5s.
	RevertTimeout time.Duration
	// Budget bounds the captured bitmap. Zero fields use scale.DefaultBudget.
	Budget scale.Budget
	// Estimator picks the requested super-sampling factor. Default: scale.New(Config{}).
	Estimator *scale.Estimator
	// OnPhase, when set, is called on every phase transition.
	OnPhase func(surfaceID string, p Phase)
	Logger  *slog.Logger
}

func (c *Config) defaults() {
	if c.SettleDelay == 0 {
		c.SettleDelay = 120 * time.Millisecond
	}
	if c.RevertTimeout <= 0 {
		c.RevertTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Estimator == nil {
		c.Estimator = scale.New(scale.Config{Logger: c.Logger})
	}
}

// Result is the output of one capture. It is owned by the caller.
type Result struct {
	Image          image.Image
	Width          int
	Height         int
	DPR            float64
	Viewport       surface.Viewport
	EffectiveScale float64
	Scheme         scheme.Verdict
	// Bounds is the crop applied to the raw bitmap, nil for a full capture.
	Bounds *geometry.CropBounds
}

// Coordinator runs captures. Captures on the same surface are serialized;
// captures on different surfaces run concurrently.
type Coordinator struct {
	cfg Config

	mu    sync.Mutex
	locks map[string]*surfaceLock
}

type surfaceLock struct {
	ch   chan struct{}
	refs int
}

// New creates a Coordinator.
func New(cfg Config) *Coordinator {
	cfg.defaults()
	return &Coordinator{cfg: cfg, locks: make(map[string]*surfaceLock)}
}

// Capture runs the protocol on surf. When sel is non-nil the bitmap is
// cropped to it. The surface is reverted exactly once whatever happens after
// the override was requested.
func (c *Coordinator) Capture(ctx context.Context, sel *geometry.DeviceRect, surf surface.Surface) (*Result, error) {
	id := surf.ID()
	unlock, err := c.lock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("capture: wait for surface %s: %w", id, err)
	}
	defer unlock()

	log := c.cfg.Logger.With("surface", id)
	start := time.Now()

	// Measuring.
	c.phase(id, Measuring)
	dpr, err := surf.DevicePixelRatio(ctx)
	if err != nil || dpr <= 0 {
		log.Debug("capture: dpr unavailable, assuming 1", "error", err)
		dpr = 1
	}
	vp, err := surf.Viewport(ctx)
	if err != nil {
		log.Debug("capture: viewport unavailable", "error", err)
		vp = surface.Viewport{}
	}
	verdict := scheme.DetectSurface(ctx, surf, log)
	requested := c.cfg.Estimator.Estimate(ctx, surf)
	target := 1.0
	if vp.W > 0 && vp.H > 0 {
		target = c.cfg.Budget.Effective(requested, vp, dpr)
	}

	// Neutralizing.
	var handle *surface.Override
	if verdict.Dark || requested > 1 {
		c.phase(id, Neutralizing)
		spec := surface.OverrideSpec{ForceLight: verdict.Dark, Viewport: vp}
		if target > 1 {
			spec.DeviceScale = dpr * target
		}
		h, err := surf.ApplyOverride(ctx, spec)
		handle = h
		if err != nil {
			// A partial handle still records what was applied; it drives
			// both the revert and the effective scale below.
			log.Warn("capture: neutralization failed, continuing degraded",
				"error", errors.Join(ErrNeutralizationFailed, err),
				"partial", handle != nil)
		} else if c.cfg.SettleDelay > 0 {
			if err := sleep(ctx, c.cfg.SettleDelay); err != nil {
				log.Debug("capture: settle interrupted", "error", err)
			}
		}
	}

	revert := c.reverter(ctx, id, surf, handle, log)
	defer revert()

	scaleApplied := 0.0
	if handle != nil {
		scaleApplied = handle.DeviceScale
	}
	effective := 1.0
	if scaleApplied > 0 {
		effective = scaleApplied / dpr
	}

	// Capturing is the one mandatory step: its failure ends the request.
	c.phase(id, Capturing)
	opts := surface.CaptureOptions{DeviceScaleOverride: scaleApplied}
	if handle != nil {
		opts.BackgroundOverride = handle.Spec.ForceLight && !handle.BackgroundApplied
	}
	var img image.Image
	capErr := steps.RunMandatory(ctx, steps.Step{Name: "capture", Run: func(ctx context.Context) error {
		var err error
		img, err = surf.Capture(ctx, opts)
		if err == nil && img == nil {
			err = errors.New("empty bitmap")
		}
		return err
	}})

	revert()

	if capErr != nil {
		c.phase(id, Failed)
		log.Error("capture: failed", "error", capErr, "elapsed", time.Since(start))
		return nil, fmt.Errorf("%w: %w", ErrCaptureUnavailable, capErr)
	}

	res := &Result{
		Image:          img,
		DPR:            dpr,
		Viewport:       vp,
		EffectiveScale: effective,
		Scheme:         verdict,
	}

	b := img.Bounds()
	if vp.W <= 0 || vp.H <= 0 {
		// Viewport unknown: infer it from the bitmap.
		res.Viewport = surface.Viewport{
			W: float64(b.Dx()) / (dpr * effective),
			H: float64(b.Dy()) / (dpr * effective),
		}
	}

	if sel != nil {
		selDPR := sel.DPR
		if selDPR <= 0 {
			selDPR = dpr
		}
		bounds := geometry.ToCropBounds(*sel, selDPR, b.Dx(), b.Dy(),
			geometry.Size{W: res.Viewport.W, H: res.Viewport.H})
		res.Image = geometry.Crop(img, bounds)
		res.Bounds = &bounds
	}

	rb := res.Image.Bounds()
	res.Width, res.Height = rb.Dx(), rb.Dy()

	c.phase(id, Done)
	log.Info("capture: done",
		"width", res.Width,
		"height", res.Height,
		"dpr", dpr,
		"scale", effective,
		"dark", verdict.Dark,
		"elapsed", time.Since(start),
	)
	return res, nil
}

// reverter returns a function that reverts handle on first call and is a
// no-op afterwards. Revert runs on a context detached from cancellation.
func (c *Coordinator) reverter(ctx context.Context, id string, surf surface.Surface, handle *surface.Override, log *slog.Logger) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			if handle == nil || handle.MarkReverted() {
				return
			}
			c.phase(id, Reverting)
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.RevertTimeout)
			defer cancel()
			if err := surf.RevertOverride(rctx, handle); err != nil {
				log.Warn("capture: revert failed", "error", errors.Join(ErrRevertFailed, err))
			}
		})
	}
}

// lock acquires the per-surface lock, honouring ctx while waiting.
func (c *Coordinator) lock(ctx context.Context, id string) (func(), error) {
	c.mu.Lock()
	l, ok := c.locks[id]
	if !ok {
		l = &surfaceLock{ch: make(chan struct{}, 1)}
		c.locks[id] = l
	}
	l.refs++
	c.mu.Unlock()

	release := func() {
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, id)
		}
		c.mu.Unlock()
	}

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			release()
		}, nil
	case <-ctx.Done():
		release()
		return nil, ctx.Err()
	}
}

func (c *Coordinator) phase(id string, p Phase) {
	if c.cfg.OnPhase != nil {
		c.cfg.OnPhase(id, p)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
