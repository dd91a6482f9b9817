package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/framecap/internal/geometry"
	"github.com/hazyhaar/framecap/internal/scale"
	"github.com/hazyhaar/framecap/internal/surface"
)

// fakeSurface simulates a page whose html class attribute is mutated by the
// override and restored by the revert.
type fakeSurface struct {
	id       string
	dpr      float64
	vp       surface.Viewport
	dark     bool
	applyErr error
	// partialErr is returned together with a fully populated handle.
	partialErr error
	capErr     error
	revErr     error
	capDelay   time.Duration

	mu        sync.Mutex
	htmlClass string
	scaleNow  float64
	applies   int
	reverts   int
	inFlight  int32
	maxFlight int32
	lastOpts  surface.CaptureOptions
	lastSpec  surface.OverrideSpec
	// revertScale is the device scale the last revert was asked to clear.
	revertScale float64
}

func (f *fakeSurface) ID() string                                         { return f.id }
func (f *fakeSurface) DevicePixelRatio(context.Context) (float64, error)  { return f.dpr, nil }
func (f *fakeSurface) Viewport(context.Context) (surface.Viewport, error) { return f.vp, nil }
func (f *fakeSurface) ThemeSignals(context.Context) (surface.ThemeSignals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return surface.ThemeSignals{DarkClass: f.htmlClass == "dark"}, nil
}
func (f *fakeSurface) TextMetrics(context.Context) (surface.TextMetrics, error) {
	return surface.TextMetrics{TextElements: 10, Viewport: f.vp}, nil
}

func (f *fakeSurface) ApplyOverride(_ context.Context, spec surface.OverrideSpec) (*surface.Override, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applies++
	f.lastSpec = spec
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	h := &surface.Override{
		Spec:  spec,
		Prior: &surface.PriorState{HTMLClass: f.htmlClass},
	}
	if spec.ForceLight {
		f.htmlClass = ""
		h.PaletteApplied = true
		h.BackgroundApplied = true
	}
	if spec.DeviceScale > 0 {
		f.scaleNow = spec.DeviceScale
		h.DeviceScale = spec.DeviceScale
	}
	return h, f.partialErr
}

func (f *fakeSurface) RevertOverride(_ context.Context, h *surface.Override) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reverts++
	f.revertScale = h.DeviceScale
	if h.Prior != nil {
		f.htmlClass = h.Prior.HTMLClass
	}
	f.scaleNow = 0
	return f.revErr
}

func (f *fakeSurface) Capture(ctx context.Context, opts surface.CaptureOptions) (image.Image, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		m := atomic.LoadInt32(&f.maxFlight)
		if n <= m || atomic.CompareAndSwapInt32(&f.maxFlight, m, n) {
			break
		}
	}
	if f.capDelay > 0 {
		time.Sleep(f.capDelay)
	}

	f.mu.Lock()
	f.lastOpts = opts
	s := f.dpr
	if f.scaleNow > 0 {
		s = f.scaleNow
	}
	f.mu.Unlock()

	if f.capErr != nil {
		return nil, f.capErr
	}
	w, h := int(f.vp.W*s), int(f.vp.H*s)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.SetRGBA(w-1, h-1, color.RGBA{R: 255, A: 255})
	return img, nil
}

func newFake(dark bool) *fakeSurface {
	f := &fakeSurface{id: "tab-1", dpr: 1, vp: surface.Viewport{W: 400, H: 300}}
	if dark {
		f.htmlClass = "dark"
	}
	return f
}

func testConfig(phases *[]Phase) Config {
	var mu sync.Mutex
	cfg := Config{SettleDelay: -1}
	if phases != nil {
		cfg.OnPhase = func(_ string, p Phase) {
			mu.Lock()
			*phases = append(*phases, p)
			mu.Unlock()
		}
	}
	return cfg
}

func TestCapture_DarkSurfaceNeutralizedAndScaled(t *testing.T) {
	var phases []Phase
	f := newFake(true)
	c := New(testConfig(&phases))

	res, err := c.Capture(context.Background(), nil, f)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if res.EffectiveScale != 2 {
		t.Errorf("effective scale: got %v, want 2", res.EffectiveScale)
	}
	if res.Width != 800 || res.Height != 600 {
		t.Errorf("bitmap: got %dx%d, want 800x600", res.Width, res.Height)
	}
	if !res.Scheme.Dark {
		t.Error("verdict: want dark")
	}
	if !f.lastSpec.ForceLight || f.lastSpec.DeviceScale != 2 {
		t.Errorf("override spec: got %+v", f.lastSpec)
	}
	if f.htmlClass != "dark" || f.reverts != 1 {
		t.Errorf("after capture: class=%q reverts=%d, want dark/1", f.htmlClass, f.reverts)
	}

	want := []Phase{Measuring, Neutralizing, Capturing, Reverting, Done}
	if len(phases) != len(want) {
		t.Fatalf("phases: got %v, want %v", phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Fatalf("phases: got %v, want %v", phases, want)
		}
	}
}

func TestCapture_RevertsAfterCaptureFailure(t *testing.T) {
	var phases []Phase
	f := newFake(true)
	f.capErr = errors.New("target closed")
	c := New(testConfig(&phases))

	_, err := c.Capture(context.Background(), nil, f)
	if !errors.Is(err, ErrCaptureUnavailable) {
		t.Fatalf("err: got %v, want ErrCaptureUnavailable", err)
	}
	if !errors.Is(err, f.capErr) {
		t.Errorf("err: originating error lost: %v", err)
	}
	if f.reverts != 1 {
		t.Errorf("reverts: got %d, want 1", f.reverts)
	}
	if f.htmlClass != "dark" {
		t.Errorf("html class: got %q, want original %q", f.htmlClass, "dark")
	}
	if last := phases[len(phases)-1]; last != Failed {
		t.Errorf("final phase: got %v, want failed", last)
	}
}

func TestCapture_RevertFailureDoesNotMaskResult(t *testing.T) {
	f := newFake(true)
	f.revErr = errors.New("detached")
	c := New(testConfig(nil))

	res, err := c.Capture(context.Background(), nil, f)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if res == nil || res.Image == nil {
		t.Fatal("result missing")
	}
	if f.reverts != 1 {
		t.Errorf("reverts: got %d, want 1", f.reverts)
	}
}

func TestCapture_NeutralizationFailureDegrades(t *testing.T) {
	f := newFake(true)
	f.applyErr = errors.New("csp blocked")
	c := New(testConfig(nil))

	res, err := c.Capture(context.Background(), nil, f)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if res.EffectiveScale != 1 {
		t.Errorf("effective scale: got %v, want 1", res.EffectiveScale)
	}
	if res.Width != 400 {
		t.Errorf("width: got %d, want 400", res.Width)
	}
	if f.reverts != 0 {
		t.Errorf("reverts: got %d, want 0 without a handle", f.reverts)
	}
}

func TestCapture_PartialOverrideRevertsWhatWasApplied(t *testing.T) {
	f := newFake(true)
	f.partialErr = errors.New("stylesheet blocked")
	c := New(testConfig(nil))

	res, err := c.Capture(context.Background(), nil, f)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if f.reverts != 1 {
		t.Fatalf("reverts: got %d, want 1", f.reverts)
	}
	if f.revertScale != 2 {
		t.Errorf("device scale seen by revert: got %v, want 2", f.revertScale)
	}
	if f.scaleNow != 0 {
		t.Errorf("device metrics after capture: got %v, want cleared", f.scaleNow)
	}
	if res.EffectiveScale != 2 {
		t.Errorf("effective scale: got %v, want 2", res.EffectiveScale)
	}
	if res.Width != 800 || res.Height != 600 {
		t.Errorf("bitmap: got %dx%d, want 800x600", res.Width, res.Height)
	}
	if f.lastOpts.DeviceScaleOverride != 2 {
		t.Errorf("capture options: got %+v", f.lastOpts)
	}
}

func TestCapture_PanickingCaptureStillReverts(t *testing.T) {
	f := &panicSurface{fakeSurface: newFake(true)}
	c := New(testConfig(nil))

	_, err := c.Capture(context.Background(), nil, f)
	if !errors.Is(err, ErrCaptureUnavailable) {
		t.Fatalf("err: got %v, want ErrCaptureUnavailable", err)
	}
	if f.reverts != 1 || f.htmlClass != "dark" {
		t.Errorf("after panic: reverts=%d class=%q, want 1/dark", f.reverts, f.htmlClass)
	}
}

type panicSurface struct {
	*fakeSurface
}

func (p *panicSurface) Capture(context.Context, surface.CaptureOptions) (image.Image, error) {
	panic("renderer crashed")
}

func TestCapture_NoNeutralizationWhenLightAndUnscaled(t *testing.T) {
	f := newFake(false)
	est := scale.New(scale.Config{Policy: []scale.Band{{Name: "flat", Scale: 1}}})
	cfg := testConfig(nil)
	cfg.Estimator = est
	c := New(cfg)

	res, err := c.Capture(context.Background(), nil, f)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if f.applies != 0 || f.reverts != 0 {
		t.Errorf("applies=%d reverts=%d, want 0/0", f.applies, f.reverts)
	}
	if res.EffectiveScale != 1 {
		t.Errorf("effective scale: got %v, want 1", res.EffectiveScale)
	}
}

func TestCapture_CropsSelection(t *testing.T) {
	f := newFake(false)
	c := New(testConfig(nil))

	sel := geometry.Rect{X: 390, Y: 290, Width: 10, Height: 10}.ToDevice(1)
	res, err := c.Capture(context.Background(), &sel, f)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	// Captured at 2x: the 10×10 CSS selection is 20×20 bitmap pixels.
	if res.Width != 20 || res.Height != 20 {
		t.Fatalf("crop: got %dx%d, want 20x20", res.Width, res.Height)
	}
	if res.Bounds == nil || res.Bounds.X != 780 || res.Bounds.Y != 580 {
		t.Errorf("bounds: got %+v", res.Bounds)
	}
	r, _, _, _ := res.Image.At(19, 19).RGBA()
	if r == 0 {
		t.Error("bottom-right marker pixel missing from crop")
	}
}

func TestCapture_SerializesPerSurface(t *testing.T) {
	f := newFake(false)
	f.capDelay = 20 * time.Millisecond
	c := New(testConfig(nil))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Capture(context.Background(), nil, f); err != nil {
				t.Errorf("Capture: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&f.maxFlight); got != 1 {
		t.Errorf("concurrent captures on one surface: got %d, want 1", got)
	}
	if f.applies != f.reverts {
		t.Errorf("applies=%d reverts=%d, want equal", f.applies, f.reverts)
	}
	if len(c.locks) != 0 {
		t.Errorf("lock table: got %d entries, want 0", len(c.locks))
	}
}

func TestCapture_LockWaitHonoursContext(t *testing.T) {
	f := newFake(false)
	c := New(testConfig(nil))

	unlock, err := c.lock(context.Background(), f.ID())
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := c.Capture(ctx, nil, f); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err: got %v, want deadline exceeded", err)
	}
}

func TestPhaseString(t *testing.T) {
	if Reverting.String() != "reverting" || Phase(42).String() != "unknown" {
		t.Error("unexpected phase names")
	}
}
