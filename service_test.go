package framecap

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/framecap/dbopen"
	"github.com/hazyhaar/framecap/internal/browser"
	"github.com/hazyhaar/framecap/internal/capture"
	"github.com/hazyhaar/framecap/internal/dispatch"
	"github.com/hazyhaar/framecap/internal/geometry"
	"github.com/hazyhaar/framecap/internal/prefs"
	"github.com/hazyhaar/framecap/internal/selector"
	"github.com/hazyhaar/framecap/internal/surface"
)

// page is a fake rendered page: dark when htmlClass is "dark", rendered at
// dpr (or the override's device scale) with a solid fill.
type page struct {
	dpr    float64
	vp     surface.Viewport
	capErr error

	mu        sync.Mutex
	htmlClass string
	scaleNow  float64
	reverts   int
}

func newPage(dark bool) *page {
	p := &page{dpr: 1, vp: surface.Viewport{W: 400, H: 300}}
	if dark {
		p.htmlClass = "dark"
	}
	return p
}

func (p *page) ID() string                                         { return "page-1" }
func (p *page) DevicePixelRatio(context.Context) (float64, error)  { return p.dpr, nil }
func (p *page) Viewport(context.Context) (surface.Viewport, error) { return p.vp, nil }
func (p *page) ThemeSignals(context.Context) (surface.ThemeSignals, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return surface.ThemeSignals{DarkClass: p.htmlClass == "dark"}, nil
}
func (p *page) TextMetrics(context.Context) (surface.TextMetrics, error) {
	return surface.TextMetrics{TextElements: 40, Viewport: p.vp}, nil
}

func (p *page) ApplyOverride(_ context.Context, spec surface.OverrideSpec) (*surface.Override, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := &surface.Override{Spec: spec, Prior: &surface.PriorState{HTMLClass: p.htmlClass}}
	if spec.ForceLight {
		p.htmlClass = ""
		h.PaletteApplied = true
		h.BackgroundApplied = true
	}
	if spec.DeviceScale > 0 {
		p.scaleNow = spec.DeviceScale
		h.DeviceScale = spec.DeviceScale
	}
	return h, nil
}

func (p *page) RevertOverride(_ context.Context, h *surface.Override) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reverts++
	p.htmlClass = h.Prior.HTMLClass
	p.scaleNow = 0
	return nil
}

func (p *page) Capture(context.Context, surface.CaptureOptions) (image.Image, error) {
	if p.capErr != nil {
		return nil, p.capErr
	}
	p.mu.Lock()
	s := p.dpr
	if p.scaleNow > 0 {
		s = p.scaleNow
	}
	p.mu.Unlock()
	w, h := int(p.vp.W*s), int(p.vp.H*s)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 30, 60, 90, 255
	}
	return img, nil
}

func testService(t *testing.T, p *page, extra ...func(*Config)) *Service {
	t.Helper()
	cfg := Config{
		Capture: capture.Config{SettleDelay: -1},
		Surfaces: SurfaceOpenerFunc(func(context.Context, Target) (surface.Surface, func(), error) {
			return p, func() {}, nil
		}),
	}
	for _, f := range extra {
		f(&cfg)
	}
	return New(cfg)
}

func withPrefs(t *testing.T) func(*Config) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(prefs.Schema))
	return func(c *Config) { c.Prefs = prefs.New(db, nil) }
}

// withBrokenClipboard delivers to a clipboard that always fails and nothing
// else, so every delivery fails after framing.
func withBrokenClipboard(c *Config) {
	c.Dispatcher = dispatch.New(dispatch.Config{
		Copier: dispatch.CopierFunc(func(context.Context, []byte) error { return errors.New("no display") }),
	})
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

func TestProduceFramedScreenshot_Selection(t *testing.T) {
	p := newPage(true)
	svc := testService(t, p)

	out, err := svc.ProduceFramedScreenshot(context.Background(), &geometry.Rect{X: 10, Y: 10, Width: 100, Height: 50}, p)
	if err != nil {
		t.Fatalf("ProduceFramedScreenshot: %v", err)
	}
	// 100x50 CSS at scale 2 → 200x100 capture; inner 80, outer 90.
	w, h := decodeSize(t, out)
	if w != 540 || h != 440 {
		t.Errorf("canvas: got %dx%d, want 540x440", w, h)
	}
	if p.htmlClass != "dark" {
		t.Errorf("page not restored: html class %q", p.htmlClass)
	}
	if p.reverts != 1 {
		t.Errorf("reverts: got %d, want 1", p.reverts)
	}
}

func TestProduceFramedScreenshot_WholeViewport(t *testing.T) {
	p := newPage(false)
	svc := testService(t, p)

	out, err := svc.ProduceFramedScreenshot(context.Background(), nil, p)
	if err != nil {
		t.Fatalf("ProduceFramedScreenshot: %v", err)
	}
	w, h := decodeSize(t, out)
	if w != 800+340 || h != 600+340 {
		t.Errorf("canvas: got %dx%d, want 1140x940", w, h)
	}
}

func TestProduceFramedScreenshot_TooSmall(t *testing.T) {
	p := newPage(false)
	svc := testService(t, p)
	_, err := svc.ProduceFramedScreenshot(context.Background(), &geometry.Rect{X: 0, Y: 0, Width: 9, Height: 9}, p)
	if !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("got %v, want ErrInvalidSelection", err)
	}
}

func TestProduceFramedScreenshot_CaptureFailure(t *testing.T) {
	p := newPage(true)
	p.capErr = errors.New("tab crashed")
	svc := testService(t, p)
	_, err := svc.ProduceFramedScreenshot(context.Background(), nil, p)
	if !errors.Is(err, capture.ErrCaptureUnavailable) {
		t.Fatalf("got %v, want ErrCaptureUnavailable", err)
	}
	if !errors.Is(err, p.capErr) {
		t.Errorf("originating error lost: %v", err)
	}
	if p.reverts != 1 {
		t.Errorf("reverts: got %d, want 1", p.reverts)
	}
	if p.htmlClass != "dark" {
		t.Errorf("page not restored after failure: html class %q", p.htmlClass)
	}
}

func TestFrameSelection_DeviceRect(t *testing.T) {
	p := newPage(false)
	p.dpr = 2
	svc := testService(t, p)

	sel := geometry.Rect{X: 0, Y: 0, Width: 50, Height: 20}.ToDevice(2)
	out, err := svc.FrameSelection(context.Background(), sel, p)
	if err != nil {
		t.Fatalf("FrameSelection: %v", err)
	}
	// dpr 2, 400x300 viewport: budget allows 2, effective 2 → 4x bitmap.
	// 50x20 CSS → 200x80 device pixels.
	w, h := decodeSize(t, out)
	if w != 200+340 || h != 80+340 {
		t.Errorf("canvas: got %dx%d, want 540x420", w, h)
	}
}

func TestDetectAndEstimate(t *testing.T) {
	svc := testService(t, newPage(true))
	if !svc.DetectColorScheme(context.Background(), newPage(true)) {
		t.Error("dark page not detected")
	}
	if svc.DetectColorScheme(context.Background(), newPage(false)) {
		t.Error("light page detected as dark")
	}
	if got := svc.EstimateAdaptiveScale(context.Background(), newPage(false)); got != 2 {
		t.Errorf("scale: got %v, want 2", got)
	}
}

func TestExecute_EstimateScale(t *testing.T) {
	p := newPage(false)
	p.vp = surface.Viewport{W: 4000, H: 3000}
	svc := testService(t, p)

	resp, err := svc.Execute(context.Background(), EstimateScaleCommand{Target: Target{URL: "https://example.com"}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	r := resp.(*ScaleReply)
	if r.Requested != 2 {
		t.Errorf("requested: got %v, want 2", r.Requested)
	}
	if r.Effective < 1.67 || r.Effective > 1.68 {
		t.Errorf("effective: got %v, want ≈1.673", r.Effective)
	}
}

func TestExecute_NoTarget(t *testing.T) {
	svc := testService(t, newPage(false))
	_, err := svc.Execute(context.Background(), DetectSchemeCommand{})
	if !errors.Is(err, ErrNoTarget) {
		t.Fatalf("got %v, want ErrNoTarget", err)
	}
}

func TestExecute_Watermark(t *testing.T) {
	svc := testService(t, newPage(false), withPrefs(t))
	ctx := context.Background()

	resp, err := svc.Execute(ctx, GetWatermarkCommand{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if r := resp.(*WatermarkReply); r.Text != "" || !r.FirstUse {
		t.Errorf("fresh store: got %+v", r)
	}

	if _, err := svc.Execute(ctx, SetWatermarkCommand{Text: " <i>@me</i> "}); err != nil {
		t.Fatalf("set: %v", err)
	}
	resp, _ = svc.Execute(ctx, GetWatermarkCommand{})
	if r := resp.(*WatermarkReply); r.Text != "@me" || r.FirstUse {
		t.Errorf("after set: got %+v", r)
	}
}

func TestExecute_WatermarkWithoutPrefs(t *testing.T) {
	svc := testService(t, newPage(false))
	if _, err := svc.Execute(context.Background(), GetWatermarkCommand{}); !errors.Is(err, ErrNoPrefs) {
		t.Fatalf("got %v, want ErrNoPrefs", err)
	}
}

func TestWatermarkPrecedence(t *testing.T) {
	svc := testService(t, newPage(false), withPrefs(t), func(c *Config) { c.Compose.Watermark = "config" })
	ctx := context.Background()

	if got := svc.watermark(ctx, nil); got != "config" {
		t.Errorf("no pref: got %q, want config", got)
	}
	svc.cfg.Prefs.SetWatermarkText(ctx, "stored")
	if got := svc.watermark(ctx, nil); got != "stored" {
		t.Errorf("pref: got %q, want stored", got)
	}
	empty := ""
	if got := svc.watermark(ctx, &empty); got != "" {
		t.Errorf("explicit empty: got %q, want empty", got)
	}
}

func TestExecute_CaptureDelivers(t *testing.T) {
	var copied int
	d := dispatch.New(dispatch.Config{
		Copier: dispatch.CopierFunc(func(context.Context, []byte) error { copied++; return nil }),
		Saver:  &dispatch.FileSaver{Dir: t.TempDir()},
	})
	svc := testService(t, newPage(false), func(c *Config) { c.Dispatcher = d })

	resp, err := svc.Execute(context.Background(), CaptureCommand{
		Target:  Target{URL: "https://example.com"},
		Rect:    &geometry.Rect{X: 0, Y: 0, Width: 20, Height: 20},
		Deliver: true,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	r := resp.(*CaptureReply)
	if r.SavedPath == "" || !r.Copied || copied != 1 {
		t.Errorf("delivery: got %+v, copied %d", r, copied)
	}
	if r.Width != 40+340 || r.Height != 40+340 {
		t.Errorf("size: got %dx%d, want 380x380", r.Width, r.Height)
	}
	if w, h := decodeSize(t, r.PNG); w != r.Width || h != r.Height {
		t.Errorf("png size %dx%d does not match reply %dx%d", w, h, r.Width, r.Height)
	}
}

// overlayPage records overlay draws and reports one class mutation after the
// page switches to a dark theme.
type overlayPage struct {
	*page
	mu       sync.Mutex
	palettes []string
	cleared  int
}

func (o *overlayPage) DrawSelection(_ context.Context, _ geometry.Rect, p selector.Palette) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.palettes = append(o.palettes, p.Name)
	return nil
}

func (o *overlayPage) ClearSelection(context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cleared++
	return nil
}

func (o *overlayPage) WatchMutations(ctx context.Context, _ time.Duration) (<-chan selector.Mutation, error) {
	ch := make(chan selector.Mutation, 1)
	o.page.mu.Lock()
	o.page.htmlClass = "dark"
	o.page.mu.Unlock()
	ch <- selector.Mutation{Target: "html", Name: "class"}
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func TestProduceFramedScreenshot_OverlayFollowsTheme(t *testing.T) {
	o := &overlayPage{page: newPage(false)}
	svc := testService(t, o.page, func(c *Config) { c.SelectionPreview = 400 * time.Millisecond })

	if _, err := svc.ProduceFramedScreenshot(context.Background(), &geometry.Rect{X: 0, Y: 0, Width: 40, Height: 40}, o); err != nil {
		t.Fatalf("ProduceFramedScreenshot: %v", err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.palettes) < 2 {
		t.Fatalf("palettes drawn: got %v, want light then dark", o.palettes)
	}
	if first, last := o.palettes[0], o.palettes[len(o.palettes)-1]; first != selector.LightPalette.Name || last != selector.DarkPalette.Name {
		t.Errorf("palettes: got %v", o.palettes)
	}
	if o.cleared == 0 {
		t.Error("overlay not cleared before capture")
	}
}

func TestSurfaces_FailedOpenReleasesBrowser(t *testing.T) {
	mgr := browser.NewManager(browser.Config{})
	s := &Surfaces{Browser: mgr}

	if _, _, err := s.Open(context.Background(), Target{URL: "https://example.com"}); err == nil {
		t.Fatal("expected error without a running browser")
	}
	if got := mgr.InUse(); got != 0 {
		t.Errorf("in use after failed open: got %d, want 0", got)
	}
}

func TestExecute_DeliveryFailureKeepsPNG(t *testing.T) {
	svc := testService(t, newPage(false), withBrokenClipboard)

	resp, err := svc.Execute(context.Background(), CaptureCommand{
		Target:  Target{URL: "https://example.com"},
		Deliver: true,
	})
	if !errors.Is(err, dispatch.ErrNothingDelivered) {
		t.Fatalf("err: got %v, want ErrNothingDelivered", err)
	}
	r, _ := resp.(*CaptureReply)
	if r == nil || len(r.PNG) == 0 {
		t.Fatal("framed PNG dropped on delivery failure")
	}
	if r.DeliveryError == "" {
		t.Error("DeliveryError empty")
	}
}
