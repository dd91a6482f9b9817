package framecap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/framecap/idgen"
	"github.com/hazyhaar/framecap/internal/browser"
	"github.com/hazyhaar/framecap/internal/desktop"
	"github.com/hazyhaar/framecap/internal/surface"
)

// SurfaceOpener resolves a Target to a live surface. release is called once
// the command no longer needs it.
type SurfaceOpener interface {
	Open(ctx context.Context, t Target) (surf surface.Surface, release func(), err error)
}

// SurfaceOpenerFunc adapts a function to SurfaceOpener.
type SurfaceOpenerFunc func(ctx context.Context, t Target) (surface.Surface, func(), error)

func (f SurfaceOpenerFunc) Open(ctx context.Context, t Target) (surface.Surface, func(), error) {
	return f(ctx, t)
}

// Surfaces opens browser tabs for URL targets and physical displays for
// display targets.
type Surfaces struct {
	// Browser serves URL targets. Nil disables them.
	Browser *browser.Manager
	Stealth browser.StealthLevel
	// IDs names tabs. Default: "tab_" + UUIDv7.
	IDs    idgen.Generator
	Logger *slog.Logger
}

func (s *Surfaces) Open(ctx context.Context, t Target) (surface.Surface, func(), error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	switch {
	case t.URL != "":
		if s.Browser == nil {
			return nil, nil, fmt.Errorf("%w: url targets need a browser", ErrNoSurfaces)
		}
		ids := s.IDs
		if ids == nil {
			ids = idgen.Prefixed("tab_", idgen.Default)
		}
		// Held until the tab is closed so Chrome is not recycled under it.
		done := s.Browser.Acquire()
		tab, err := browser.OpenTab(ctx, s.Browser, t.URL, ids(), s.Stealth)
		if err != nil {
			done()
			return nil, nil, err
		}
		return tab, func() {
			defer done()
			if err := tab.Close(); err != nil {
				logger.Warn("framecap: close tab", "tab", tab.ID(), "error", err)
			}
		}, nil
	case t.Display != nil:
		d, err := desktop.Open(*t.Display, logger)
		if err != nil {
			return nil, nil, err
		}
		return d, func() {}, nil
	default:
		return nil, nil, ErrNoTarget
	}
}
