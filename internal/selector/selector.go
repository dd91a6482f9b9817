// CLAUDE:SUMMARY Region selection state machine (Idle/Selecting/Finalized/Cancelled) with scheme-aware overlay palette.
// Package selector implements the interactive region selection: pointer
// events drive a small state machine that yields a device-pixel rectangle,
// while an overlay palette tracks the surface's color scheme.
package selector

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/framecap/internal/geometry"
	"github.com/hazyhaar/framecap/internal/scheme"
	"github.com/hazyhaar/framecap/internal/surface"
)

// State is the selection lifecycle state.
type State int

const (
	Idle State = iota
	Selecting
	Finalized
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selecting:
		return "selecting"
	case Finalized:
		return "finalized"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

var (
	// ErrCancelled is returned by PointerUp when the drag was too small, and
	// by any operation after Cancel.
	ErrCancelled = errors.New("selector: selection cancelled")
	// ErrState is returned when an event does not apply to the current state.
	ErrState = errors.New("selector: invalid state for event")
)

// Source is what the selector reads from the surface.
type Source interface {
	surface.Metrics
	surface.Inspector
}

// Overlay draws the selection rectangle on the surface. Implementations are
// optional; failures are logged and never abort a selection.
type Overlay interface {
	DrawSelection(ctx context.Context, r geometry.Rect, p Palette) error
	ClearSelection(ctx context.Context) error
}

// Config tunes a Selector.
type Config struct {
	// Overlay, when set, mirrors the selection on the surface.
	Overlay Overlay
	// Debounce is the window used to coalesce class/style mutations before
	// re-polling the detector. Default: 150ms.
	Debounce time.Duration
	// OnPalette is called whenever the overlay palette changes.
	OnPalette func(Palette)
	Logger    *slog.Logger
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Selector is a single-use selection session.
type Selector struct {
	cfg Config
	src Source

	mu      sync.Mutex
	state   State
	x0, y0  float64
	rect    geometry.Rect
	verdict scheme.Verdict
	palette Palette
}

// New creates a Selector in the Idle state.
func New(src Source, cfg Config) *Selector {
	cfg.defaults()
	return &Selector{cfg: cfg, src: src, palette: LightPalette}
}

// State returns the current state.
func (s *Selector) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Rect returns the current normalized CSS rectangle.
func (s *Selector) Rect() geometry.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rect
}

// Palette returns the active overlay palette.
func (s *Selector) Palette() Palette {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.palette
}

// PointerDown starts a selection at (x, y) and picks the overlay palette
// from the current color-scheme verdict.
func (s *Selector) PointerDown(ctx context.Context, x, y float64) error {
	s.mu.Lock()
	if s.state != Idle {
		st := s.state
		s.mu.Unlock()
		if st == Cancelled {
			return ErrCancelled
		}
		return ErrState
	}
	s.state = Selecting
	s.x0, s.y0 = x, y
	s.rect = geometry.Rect{X: x, Y: y}
	s.mu.Unlock()

	s.repoll(ctx)
	s.draw(ctx)
	return nil
}

// PointerMove updates the rectangle from the start point to (x, y).
func (s *Selector) PointerMove(ctx context.Context, x, y float64) (geometry.Rect, error) {
	s.mu.Lock()
	if s.state != Selecting {
		s.mu.Unlock()
		return geometry.Rect{}, ErrState
	}
	s.rect = geometry.FromPoints(s.x0, s.y0, x, y)
	r := s.rect
	s.mu.Unlock()

	s.draw(ctx)
	return r, nil
}

// PointerUp ends the drag at (x, y). A rectangle of at least
// geometry.MinSelection on both axes is finalized and returned in device
// pixels at the current DPR; anything smaller cancels with ErrCancelled.
func (s *Selector) PointerUp(ctx context.Context, x, y float64) (geometry.DeviceRect, error) {
	s.mu.Lock()
	if s.state != Selecting {
		s.mu.Unlock()
		return geometry.DeviceRect{}, ErrState
	}
	s.rect = geometry.FromPoints(s.x0, s.y0, x, y)
	r := s.rect
	if !r.Finalizable() {
		s.state = Cancelled
		s.mu.Unlock()
		s.clear(ctx)
		s.cfg.Logger.Debug("selector: selection too small", "rect", r.String())
		return geometry.DeviceRect{}, ErrCancelled
	}
	s.state = Finalized
	s.mu.Unlock()

	s.clear(ctx)

	dpr, err := s.src.DevicePixelRatio(ctx)
	if err != nil || dpr <= 0 {
		s.cfg.Logger.Debug("selector: dpr unavailable, assuming 1", "error", err)
		dpr = 1
	}
	dr := r.ToDevice(dpr)
	s.cfg.Logger.Debug("selector: finalized", "rect", r.String(), "dpr", dpr)
	return dr, nil
}

// Cancel moves the selector to Cancelled from any state.
func (s *Selector) Cancel(ctx context.Context) {
	s.mu.Lock()
	was := s.state
	s.state = Cancelled
	s.mu.Unlock()
	if was == Selecting {
		s.clear(ctx)
	}
}

// Select runs a full programmatic drag from r's origin to its far corner.
func (s *Selector) Select(ctx context.Context, r geometry.Rect) (geometry.DeviceRect, error) {
	if err := s.PointerDown(ctx, r.X, r.Y); err != nil {
		return geometry.DeviceRect{}, err
	}
	if _, err := s.PointerMove(ctx, r.X+r.Width, r.Y+r.Height); err != nil {
		return geometry.DeviceRect{}, err
	}
	return s.PointerUp(ctx, r.X+r.Width, r.Y+r.Height)
}

// Observe consumes attribute mutations until ctx is done or ch closes.
// Bursts of class/style changes are debounced, then the detector is
// re-polled and the palette swapped if the verdict changed. Mutations are
// ignored outside the Selecting state.
func (s *Selector) Observe(ctx context.Context, ch <-chan Mutation) {
	deb := newDebouncer(debounceConfig{Window: s.cfg.Debounce}, func(n int) {
		if s.State() != Selecting {
			return
		}
		s.cfg.Logger.Debug("selector: re-polling scheme", "mutations", n)
		if s.repoll(ctx) {
			s.draw(ctx)
		}
	})
	defer deb.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				deb.flush()
				return
			}
			deb.add(m)
		case <-deb.timerC():
			deb.flush()
		}
	}
}

// repoll re-runs the detector and reports whether the palette changed.
func (s *Selector) repoll(ctx context.Context) bool {
	v := scheme.DetectSurface(ctx, s.src, s.cfg.Logger)
	p := PaletteFor(v.Dark)

	s.mu.Lock()
	changed := p.Name != s.palette.Name
	s.verdict = v
	s.palette = p
	s.mu.Unlock()

	if changed {
		s.cfg.Logger.Debug("selector: palette changed", "palette", p.Name, "heuristic", string(v.Heuristic))
		if s.cfg.OnPalette != nil {
			s.cfg.OnPalette(p)
		}
	}
	return changed
}

func (s *Selector) draw(ctx context.Context) {
	if s.cfg.Overlay == nil {
		return
	}
	s.mu.Lock()
	r, p := s.rect, s.palette
	s.mu.Unlock()
	if err := s.cfg.Overlay.DrawSelection(ctx, r, p); err != nil {
		s.cfg.Logger.Debug("selector: overlay draw failed", "error", err)
	}
}

func (s *Selector) clear(ctx context.Context) {
	if s.cfg.Overlay == nil {
		return
	}
	if err := s.cfg.Overlay.ClearSelection(ctx); err != nil {
		s.cfg.Logger.Debug("selector: overlay clear failed", "error", err)
	}
}
