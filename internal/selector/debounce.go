package selector

import "time"

// Mutation is an attribute change observed on the surface root.
type Mutation struct {
	Target string `json:"target"` // "html" or "body"
	Name   string `json:"name"`   // attribute name
}

// relevant reports whether m can change the color-scheme verdict.
func (m Mutation) relevant() bool {
	return m.Name == "class" || m.Name == "style"
}

type debounceConfig struct {
	// Window is the debounce time. Default: 150ms.
	Window time.Duration
	// MaxBuffer flushes immediately when this many records accumulate. Default: 64.
	MaxBuffer int
}

func (dc *debounceConfig) defaults() {
	if dc.Window <= 0 {
		dc.Window = 150 * time.Millisecond
	}
	if dc.MaxBuffer <= 0 {
		dc.MaxBuffer = 64
	}
}

// debouncer coalesces bursts of relevant mutations into a single flush.
type debouncer struct {
	cfg     debounceConfig
	pending int
	timer   *time.Timer
	timerCh <-chan time.Time
	flushFn func(n int)
}

func newDebouncer(cfg debounceConfig, flushFn func(n int)) *debouncer {
	cfg.defaults()
	return &debouncer{cfg: cfg, flushFn: flushFn}
}

// add records m. Irrelevant mutations are dropped. Returns true if an
// immediate flush was triggered (buffer full).
func (d *debouncer) add(m Mutation) bool {
	if !m.relevant() {
		return false
	}
	d.pending++

	if d.pending >= d.cfg.MaxBuffer {
		d.flush()
		return true
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.NewTimer(d.cfg.Window)
	d.timerCh = d.timer.C
	return false
}

func (d *debouncer) timerC() <-chan time.Time {
	return d.timerCh
}

func (d *debouncer) flush() {
	if d.pending == 0 {
		return
	}
	n := d.pending
	d.pending = 0
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
		d.timerCh = nil
	}
	d.flushFn(n)
}

func (d *debouncer) stop() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
		d.timerCh = nil
	}
	d.pending = 0
}
