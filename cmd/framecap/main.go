// CLAUDE:SUMMARY CLI entry point for framecap: one-shot capture, scheme/scale queries, HTTP API and MCP stdio modes.
// Command framecap turns a region of a web page or a physical display into a
// framed PNG.
//
// Usage:
//
//	framecap -url https://example.com -rect 40,80,600,300   # capture a region
//	framecap -display 0                                     # capture a display
//	framecap -url https://example.com -scheme               # dark scheme?
//	framecap -url https://example.com -scale                # super-sampling factor
//	framecap -watermark "@me"                               # store a watermark
//	framecap -serve :8086                                   # HTTP API
//	framecap -mcp                                           # MCP over stdio
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hazyhaar/framecap"
	"github.com/hazyhaar/framecap/internal/browser"
	"github.com/hazyhaar/framecap/internal/config"
	"github.com/hazyhaar/framecap/internal/dispatch"
	"github.com/hazyhaar/framecap/internal/prefs"
	"github.com/hazyhaar/framecap/internal/urlguard"
)

var version = "dev"

type options struct {
	configPath string
	url        string
	rect       string
	display    int
	scheme     bool
	scale      bool
	watermark  string
	serve      string
	mcp        bool
	outDir     string
	stdout     string
	preview    time.Duration
	logLevel   string
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "path to framecap.yaml config file")
	flag.StringVar(&o.url, "url", "", "page to capture")
	flag.StringVar(&o.rect, "rect", "", "selection in CSS pixels: x,y,w,h (default: whole viewport)")
	flag.IntVar(&o.display, "display", -1, "capture physical display N instead of a page")
	flag.BoolVar(&o.scheme, "scheme", false, "report whether the target renders a dark scheme and exit")
	flag.BoolVar(&o.scale, "scale", false, "report the adaptive capture scale and exit")
	flag.StringVar(&o.watermark, "watermark", "", "store the watermark preference")
	flag.StringVar(&o.serve, "serve", "", "serve the HTTP API on addr")
	flag.BoolVar(&o.mcp, "mcp", false, "serve MCP tools over stdio")
	flag.StringVar(&o.outDir, "out", "", "directory for saved screenshots")
	flag.StringVar(&o.stdout, "stdout", "", "also write screenshots to stdout: json or raw")
	flag.DurationVar(&o.preview, "preview", 0, "keep the selection overlay on screen before capturing")
	flag.StringVar(&o.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch o.logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	// stdout is reserved for screenshots and the MCP transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, o); err != nil {
		logger.Error("framecap: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, o options) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	if envFile := cfg.LoadEnv(); envFile != "" {
		logger.Debug("framecap: env file loaded", "path", envFile)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	cmd, err := buildCommand(o, cfg.Output.Filename)
	if err != nil {
		return err
	}
	if cmd == nil && o.serve == "" && !o.mcp && o.watermark == "" {
		fmt.Fprintln(os.Stderr, "usage: framecap -url <url> [-rect x,y,w,h] | -display N | -watermark <text> | -serve <addr> | -mcp")
		return errors.New("framecap: nothing to do")
	}

	store, err := prefs.Open(cfg.Prefs.Path, logger)
	if err != nil {
		logger.Warn("framecap: preferences unavailable", "path", cfg.Prefs.Path, "error", err)
		store = nil
	} else {
		defer store.Close()
		welcome(ctx, logger, store)
	}

	if o.watermark != "" {
		if store == nil {
			return framecap.ErrNoPrefs
		}
		text, err := store.SetWatermarkText(ctx, o.watermark)
		if err != nil {
			return err
		}
		logger.Info("framecap: watermark stored", "text", text)
	}

	var mgr *browser.Manager
	if o.url != "" || o.serve != "" || o.mcp {
		mgr = browser.NewManager(cfg.Browser.ManagerConfig(logger))
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("framecap: start browser: %w", err)
		}
		defer mgr.Close()
	}

	disp := newDispatcher(cfg.Output, os.Stdout, logger)
	defer disp.Close()

	scfg := framecap.Config{
		Capture:          cfg.Capture.CoordinatorConfig(logger),
		Compose:          cfg.Compose,
		Surfaces:         &framecap.Surfaces{Browser: mgr, Stealth: cfg.Browser.StealthLevel(), Logger: logger},
		Dispatcher:       disp,
		SelectionPreview: o.preview,
		Filename:         cfg.Output.Filename,
		Logger:           logger,
	}
	if store != nil {
		scfg.Prefs = store
	}
	if o.serve != "" || o.mcp {
		scfg.Guard = &urlguard.Guard{AllowPrivate: cfg.Server.AllowPrivateURLs}
	}
	svc := framecap.New(scfg)

	switch {
	case o.mcp:
		logger.Info("framecap: MCP stdio starting", "version", version)
		return svc.ServeMCP(ctx, version)
	case o.serve != "":
		return serve(ctx, logger, svc, o.serve, cfg.Server)
	case cmd != nil:
		resp, err := svc.Execute(ctx, cmd)
		if err != nil {
			return err
		}
		return report(os.Stdout, logger, resp)
	}
	return nil
}

func loadConfig(o options) (*config.Config, error) {
	cfg, err := config.LoadFile(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.outDir != "" {
		cfg.Output.Dir = o.outDir
	}
	if o.stdout != "" {
		cfg.Output.Stdout = o.stdout
	}
	return cfg, nil
}

// welcome greets the first run once.
func welcome(ctx context.Context, logger *slog.Logger, store *prefs.Store) {
	used, err := store.HasBeenUsed(ctx)
	if err != nil || used {
		return
	}
	logger.Info("framecap: welcome", "hint", "select a region with -rect x,y,w,h; set a watermark with -watermark")
	if err := store.MarkUsed(ctx); err != nil {
		logger.Warn("framecap: mark first use", "error", err)
	}
}

// newDispatcher wires the clipboard, the file saver and the configured sinks.
func newDispatcher(out config.OutputConfig, stdout io.Writer, logger *slog.Logger) *dispatch.Dispatcher {
	dc := dispatch.Config{
		Saver:  &dispatch.FileSaver{Dir: out.Dir},
		Logger: logger,
	}
	if !out.NoClipboard {
		dc.Copier = &dispatch.Clipboard{}
	}
	switch out.Stdout {
	case "json":
		dc.Sinks = append(dc.Sinks, dispatch.NewStdout(stdout))
	case "raw":
		dc.Sinks = append(dc.Sinks, dispatch.NewRawStdout(stdout))
	}
	for _, u := range out.Webhooks {
		dc.Sinks = append(dc.Sinks, dispatch.NewWebhook(u, dispatch.WithWebhookLogger(logger)))
	}
	return dispatch.New(dc)
}

// report prints query results as JSON. Capture replies are logged; their PNG
// already went through the dispatcher.
func report(w io.Writer, logger *slog.Logger, resp any) error {
	if r, ok := resp.(*framecap.CaptureReply); ok && r != nil {
		logger.Info("framecap: captured",
			"id", r.ID, "width", r.Width, "height", r.Height,
			"scale", r.EffectiveScale, "dark", r.Dark,
			"saved", r.SavedPath, "copied", r.Copied)
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func serve(ctx context.Context, logger *slog.Logger, svc *framecap.Service, addr string, sc config.ServerConfig) error {
	h := svc.Handler(framecap.HTTPOptions{
		MaxBodyBytes: sc.MaxBodyBytes,
		Timeout:      sc.Timeout,
		CaptureLimit: 30,
		Done:         ctx.Done(),
	})
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("framecap: server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("framecap: serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("framecap: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("framecap: shutdown: %w", err)
	}
	logger.Info("framecap: server stopped")
	return nil
}
