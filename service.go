// CLAUDE:SUMMARY Service: capture → crop → compose (→ deliver) for one surface, plus scheme/scale queries and watermark prefs; executes Commands.
// Package framecap turns a region of a rendered page (or a physical display)
// into a framed, shareable PNG: dark schemes are neutralized before capture,
// the capture is super-sampled within a pixel budget, and the result is
// composited onto a gradient card with shadow and optional watermark.
package framecap

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/hazyhaar/framecap/idgen"
	"github.com/hazyhaar/framecap/internal/capture"
	"github.com/hazyhaar/framecap/internal/compose"
	"github.com/hazyhaar/framecap/internal/dispatch"
	"github.com/hazyhaar/framecap/internal/geometry"
	"github.com/hazyhaar/framecap/internal/scale"
	"github.com/hazyhaar/framecap/internal/scheme"
	"github.com/hazyhaar/framecap/internal/selector"
	"github.com/hazyhaar/framecap/internal/steps"
	"github.com/hazyhaar/framecap/internal/surface"
)

// MutationWatcher is implemented by surfaces that report class/style
// attribute mutations (browser tabs).
type MutationWatcher interface {
	WatchMutations(ctx context.Context, interval time.Duration) (<-chan selector.Mutation, error)
}

// TargetGuard vets page URLs before a surface is opened for them
// (see internal/urlguard).
type TargetGuard interface {
	Check(ctx context.Context, rawURL string) error
}

// Preferences is the persisted preference store (see internal/prefs).
type Preferences interface {
	WatermarkText(ctx context.Context) (string, error)
	SetWatermarkText(ctx context.Context, text string) (string, error)
	HasBeenUsed(ctx context.Context) (bool, error)
	MarkUsed(ctx context.Context) error
}

// Config wires a Service. Only Capture and Compose have meaningful zero
// values; the rest is optional.
type Config struct {
	Capture capture.Config
	Compose compose.Config

	// Surfaces resolves command targets. Needed by Execute only.
	Surfaces SurfaceOpener
	// Guard, when set, vets URL targets.
	Guard TargetGuard
	// Prefs supplies the stored watermark, which takes precedence over
	// Compose.Watermark when non-empty.
	Prefs Preferences
	// Dispatcher delivers framed PNGs for commands with Deliver set.
	Dispatcher *dispatch.Dispatcher
	// SelectionPreview keeps the selection overlay on screen before the
	// capture. Zero finalizes immediately.
	SelectionPreview time.Duration
	// Filename is the suggested filename for delivered PNGs.
	Filename string
	// IDs generates capture IDs. Default: "shot_" + UUIDv7.
	IDs    idgen.Generator
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Capture.Logger == nil {
		c.Capture.Logger = c.Logger
	}
	if c.Capture.Estimator == nil {
		c.Capture.Estimator = scale.New(scale.Config{Logger: c.Logger})
	}
	if c.Filename == "" {
		c.Filename = dispatch.DefaultFilename
	}
	if c.IDs == nil {
		c.IDs = idgen.Prefixed("shot_", idgen.Default)
	}
}

var requestIDs = idgen.Prefixed("req_", idgen.NanoID(12))

// Service is the framecap facade.
type Service struct {
	cfg         Config
	coordinator *capture.Coordinator
	logger      *slog.Logger
}

var _ CommandHandler = (*Service)(nil)

// New creates a Service.
func New(cfg Config) *Service {
	cfg.defaults()
	return &Service{
		cfg:         cfg,
		coordinator: capture.New(cfg.Capture),
		logger:      cfg.Logger,
	}
}

// Execute runs one command.
func (s *Service) Execute(ctx context.Context, cmd Command) (any, error) {
	return cmd.accept(ctx, s)
}

// Endpoint adapts Execute to a transport endpoint taking a Command.
func (s *Service) Endpoint(ctx context.Context, req any) (any, error) {
	cmd, ok := req.(Command)
	if !ok {
		return nil, fmt.Errorf("framecap: unexpected request %T", req)
	}
	return s.Execute(ctx, cmd)
}

// ProduceFramedScreenshot captures surf, crops it to sel (CSS pixels; nil
// for the whole viewport) and returns the framed PNG.
func (s *Service) ProduceFramedScreenshot(ctx context.Context, sel *geometry.Rect, surf surface.Surface) ([]byte, error) {
	png, _, err := s.produce(ctx, sel, nil, surf)
	return png, err
}

// FrameSelection is ProduceFramedScreenshot for a selection already
// finalized in device pixels, as emitted by the region selector.
func (s *Service) FrameSelection(ctx context.Context, sel geometry.DeviceRect, surf surface.Surface) ([]byte, error) {
	png, _, err := s.produceDevice(ctx, &sel, nil, surf)
	return png, err
}

// DetectColorScheme reports whether surf renders a dark color scheme.
func (s *Service) DetectColorScheme(ctx context.Context, surf surface.Surface) bool {
	return scheme.DetectSurface(ctx, surf, s.logger).Dark
}

// EstimateAdaptiveScale returns the super-sampling factor in [1, 2] for surf.
func (s *Service) EstimateAdaptiveScale(ctx context.Context, surf surface.Surface) float64 {
	return s.cfg.Capture.Estimator.Estimate(ctx, surf)
}

func (s *Service) produce(ctx context.Context, sel *geometry.Rect, watermark *string, surf surface.Surface) ([]byte, *capture.Result, error) {
	if sel == nil {
		return s.produceDevice(ctx, nil, watermark, surf)
	}
	dr, err := s.selectRegion(ctx, *sel, surf)
	if err != nil {
		return nil, nil, err
	}
	return s.produceDevice(ctx, &dr, watermark, surf)
}

// selectRegion drives a selector session over sel: the overlay is drawn on
// surfaces that support it, held for SelectionPreview while the palette
// follows theme mutations, then cleared before the selection is finalized.
func (s *Service) selectRegion(ctx context.Context, sel geometry.Rect, surf surface.Surface) (geometry.DeviceRect, error) {
	r := geometry.FromPoints(sel.X, sel.Y, sel.X+sel.Width, sel.Y+sel.Height)
	if !r.Finalizable() {
		return geometry.DeviceRect{}, fmt.Errorf("%w: %s", ErrInvalidSelection, r)
	}

	cfg := selector.Config{Logger: s.logger}
	if ov, ok := surf.(selector.Overlay); ok {
		cfg.Overlay = ov
	}
	sl := selector.New(surf, cfg)
	x1, y1 := r.X+r.Width, r.Y+r.Height
	if err := sl.PointerDown(ctx, r.X, r.Y); err != nil {
		return geometry.DeviceRect{}, err
	}
	if _, err := sl.PointerMove(ctx, x1, y1); err != nil {
		return geometry.DeviceRect{}, err
	}
	if s.cfg.SelectionPreview > 0 {
		s.preview(ctx, sl, surf)
	}

	dr, err := sl.PointerUp(ctx, x1, y1)
	if errors.Is(err, selector.ErrCancelled) {
		return geometry.DeviceRect{}, fmt.Errorf("%w: %s", ErrInvalidSelection, r)
	}
	return dr, err
}

func (s *Service) preview(ctx context.Context, sl *selector.Selector, surf surface.Surface) {
	pctx, cancel := context.WithTimeout(ctx, s.cfg.SelectionPreview)
	defer cancel()

	w, ok := surf.(MutationWatcher)
	if !ok {
		<-pctx.Done()
		return
	}
	ch, err := w.WatchMutations(pctx, 50*time.Millisecond)
	if err != nil {
		s.logger.Debug("framecap: mutation watch unavailable", "error", err)
		<-pctx.Done()
		return
	}
	sl.Observe(pctx, ch)
}

func (s *Service) produceDevice(ctx context.Context, sel *geometry.DeviceRect, watermark *string, surf surface.Surface) ([]byte, *capture.Result, error) {
	res, err := s.coordinator.Capture(ctx, sel, surf)
	if err != nil {
		return nil, nil, err
	}

	cfg := s.cfg.Compose
	cfg.Watermark = s.watermark(ctx, watermark)

	var (
		framed *image.RGBA
		png    []byte
	)
	err = steps.RunMandatory(ctx,
		steps.Step{Name: "compose", Run: func(context.Context) error {
			var err error
			framed, err = compose.Render(compose.Input{Image: res.Image, EffectiveScale: res.EffectiveScale}, cfg)
			return err
		}},
		steps.Step{Name: "encode", Run: func(context.Context) error {
			var err error
			png, err = compose.Encode(framed)
			return err
		}},
	)
	if err != nil {
		return nil, nil, fmt.Errorf("framecap: %w", err)
	}
	return png, res, nil
}

// watermark resolves the text for one capture: explicit override, then the
// stored preference, then the configured default.
func (s *Service) watermark(ctx context.Context, override *string) string {
	if override != nil {
		return *override
	}
	if s.cfg.Prefs != nil {
		text, err := s.cfg.Prefs.WatermarkText(ctx)
		if err != nil {
			s.logger.Warn("framecap: read watermark preference", "error", err)
		} else if text != "" {
			return text
		}
	}
	return s.cfg.Compose.Watermark
}

func (s *Service) open(ctx context.Context, t Target) (surface.Surface, func(), error) {
	if !t.valid() {
		return nil, nil, ErrNoTarget
	}
	if s.cfg.Surfaces == nil {
		return nil, nil, ErrNoSurfaces
	}
	if t.URL != "" && s.cfg.Guard != nil {
		if err := s.cfg.Guard.Check(ctx, t.URL); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrForbiddenTarget, err)
		}
	}
	surf, release, err := s.cfg.Surfaces.Open(ctx, t)
	if err != nil {
		return nil, nil, fmt.Errorf("framecap: open %s: %w", t, err)
	}
	if release == nil {
		release = func() {}
	}
	return surf, release, nil
}

// HandleCapture implements CommandHandler.
func (s *Service) HandleCapture(ctx context.Context, c CaptureCommand) (*CaptureReply, error) {
	if c.Rect != nil {
		r := geometry.FromPoints(c.Rect.X, c.Rect.Y, c.Rect.X+c.Rect.Width, c.Rect.Y+c.Rect.Height)
		if !r.Finalizable() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidSelection, r)
		}
	}
	surf, release, err := s.open(ctx, c.Target)
	if err != nil {
		return nil, err
	}
	defer release()

	png, res, err := s.produce(ctx, c.Rect, c.Watermark, surf)
	if err != nil {
		return nil, err
	}

	reply := &CaptureReply{
		ID:             s.cfg.IDs(),
		PNG:            png,
		EffectiveScale: res.EffectiveScale,
		Dark:           res.Scheme.Dark,
		Heuristic:      string(res.Scheme.Heuristic),
	}
	l := s.cfg.Compose.Layout(res.Width, res.Height, res.EffectiveScale)
	reply.Width, reply.Height = l.CanvasW, l.CanvasH

	if c.Deliver && s.cfg.Dispatcher != nil {
		name := c.Filename
		if name == "" {
			name = s.cfg.Filename
		}
		del, err := s.cfg.Dispatcher.Deliver(ctx, png, name)
		reply.SavedPath, reply.Copied = del.SavedPath, del.Copied
		if err != nil {
			// The framed PNG stays in the reply; callers decide how to
			// surface the failure.
			reply.DeliveryError = err.Error()
			return reply, err
		}
	}
	return reply, nil
}

// HandleDetectScheme implements CommandHandler.
func (s *Service) HandleDetectScheme(ctx context.Context, c DetectSchemeCommand) (*SchemeReply, error) {
	surf, release, err := s.open(ctx, c.Target)
	if err != nil {
		return nil, err
	}
	defer release()

	v := scheme.DetectSurface(ctx, surf, s.logger)
	return &SchemeReply{Dark: v.Dark, Heuristic: string(v.Heuristic)}, nil
}

// HandleEstimateScale implements CommandHandler.
func (s *Service) HandleEstimateScale(ctx context.Context, c EstimateScaleCommand) (*ScaleReply, error) {
	surf, release, err := s.open(ctx, c.Target)
	if err != nil {
		return nil, err
	}
	defer release()

	reply := &ScaleReply{Requested: s.EstimateAdaptiveScale(ctx, surf), DPR: 1}
	if dpr, err := surf.DevicePixelRatio(ctx); err == nil && dpr > 0 {
		reply.DPR = dpr
	}
	reply.Effective, reply.AdaptiveMax = 1, 1
	if vp, err := surf.Viewport(ctx); err == nil && vp.W > 0 && vp.H > 0 {
		w, h := scale.BaseSize(vp, reply.DPR)
		reply.AdaptiveMax = s.cfg.Capture.Budget.AdaptiveMax(w, h)
		reply.Effective = s.cfg.Capture.Budget.Effective(reply.Requested, vp, reply.DPR)
	}
	return reply, nil
}

// HandleGetWatermark implements CommandHandler.
func (s *Service) HandleGetWatermark(ctx context.Context, _ GetWatermarkCommand) (*WatermarkReply, error) {
	if s.cfg.Prefs == nil {
		return nil, ErrNoPrefs
	}
	text, err := s.cfg.Prefs.WatermarkText(ctx)
	if err != nil {
		return nil, err
	}
	used, err := s.cfg.Prefs.HasBeenUsed(ctx)
	if err != nil {
		return nil, err
	}
	return &WatermarkReply{Text: text, FirstUse: !used}, nil
}

// HandleSetWatermark implements CommandHandler. Saving a watermark counts
// as the first use (see prefs.Store.SetWatermarkText).
func (s *Service) HandleSetWatermark(ctx context.Context, c SetWatermarkCommand) (*WatermarkReply, error) {
	if s.cfg.Prefs == nil {
		return nil, ErrNoPrefs
	}
	text, err := s.cfg.Prefs.SetWatermarkText(ctx, c.Text)
	if err != nil {
		return nil, err
	}
	return &WatermarkReply{Text: text}, nil
}
