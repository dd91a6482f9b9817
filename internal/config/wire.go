package config

import (
	"log/slog"

	"github.com/hazyhaar/framecap/internal/browser"
	"github.com/hazyhaar/framecap/internal/capture"
	"github.com/hazyhaar/framecap/internal/scale"
)

// StealthLevel maps browser.stealth to the browser package level.
func (b BrowserConfig) StealthLevel() browser.StealthLevel {
	switch b.Stealth {
	case "plain":
		return browser.LevelPlain
	case "headful":
		return browser.LevelHeadful
	default:
		return browser.LevelHeadless
	}
}

// ManagerConfig returns the browser manager configuration.
func (b BrowserConfig) ManagerConfig(logger *slog.Logger) browser.Config {
	return browser.Config{
		RemoteURL:        b.Remote,
		WindowWidth:      b.WindowWidth,
		WindowHeight:     b.WindowHeight,
		MemoryLimit:      b.MemoryLimit,
		RecycleInterval:  b.RecycleInterval,
		ResourceBlocking: b.ResourceBlocking,
		Stealth:          b.StealthLevel(),
		XvfbDisplay:      b.XvfbDisplay,
		Logger:           logger,
	}
}

// Budget returns the capture pixel budget.
func (c CaptureConfig) Budget() scale.Budget {
	return scale.Budget{MaxLongEdge: c.MaxLongEdge, MaxPixels: c.MaxPixels}
}

// CoordinatorConfig returns the capture coordinator configuration.
func (c CaptureConfig) CoordinatorConfig(logger *slog.Logger) capture.Config {
	return capture.Config{
		SettleDelay:   c.SettleDelay,
		RevertTimeout: c.RevertTimeout,
		Budget:        c.Budget(),
		Logger:        logger,
	}
}
