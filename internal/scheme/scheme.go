// CLAUDE:SUMMARY Dark color-scheme verdict from class markers, custom properties, system preference and color luminance.
// Package scheme decides whether a rendered surface is using a dark color
// scheme. The verdict is a pure function of the observed theme signals; a
// surface that cannot be read is reported as not dark.
package scheme

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/hazyhaar/framecap/internal/surface"
)

// Heuristic names the rule that produced a dark verdict.
type Heuristic string

const (
	HeuristicNone       Heuristic = ""
	HeuristicClass      Heuristic = "class"
	HeuristicProperty   Heuristic = "property"
	HeuristicSystem     Heuristic = "system"
	HeuristicBackground Heuristic = "background"
	HeuristicForeground Heuristic = "foreground"
)

// DarkLuminance is the luminance below which a color counts as dark.
const DarkLuminance = 128.0

// DarkClasses are the class names treated as explicit dark-mode markers on
// <html> or <body>. Backends use the same list to strip them when forcing
// the light palette.
var DarkClasses = []string{"dark", "dark-mode", "theme-dark", "night", "darkTheme", "is-dark", "mode-dark"}

// Verdict is the detector output.
type Verdict struct {
	Dark      bool      `json:"dark"`
	Heuristic Heuristic `json:"heuristic,omitempty"`
}

// Detect judges sig. Rules are checked in a fixed order and the first one
// that fires is reported.
func Detect(sig surface.ThemeSignals) Verdict {
	switch {
	case sig.DarkClass:
		return Verdict{Dark: true, Heuristic: HeuristicClass}
	case sig.DarkProperty:
		return Verdict{Dark: true, Heuristic: HeuristicProperty}
	case sig.PrefersDark:
		return Verdict{Dark: true, Heuristic: HeuristicSystem}
	}
	if l, ok := ColorLuminance(sig.Background); ok && l < DarkLuminance {
		return Verdict{Dark: true, Heuristic: HeuristicBackground}
	}
	if l, ok := ColorLuminance(sig.Foreground); ok && l < DarkLuminance {
		return Verdict{Dark: true, Heuristic: HeuristicForeground}
	}
	return Verdict{}
}

// DetectSurface reads the theme signals of insp and judges them. Read
// failures yield a not-dark verdict.
func DetectSurface(ctx context.Context, insp surface.Inspector, logger *slog.Logger) Verdict {
	if logger == nil {
		logger = slog.Default()
	}
	sig, err := insp.ThemeSignals(ctx)
	if err != nil {
		logger.Debug("scheme: signals unreadable", "error", err)
		return Verdict{}
	}
	v := Detect(sig)
	logger.Debug("scheme: verdict", "dark", v.Dark, "heuristic", string(v.Heuristic))
	return v
}

// Luminance returns 0.299R + 0.587G + 0.114B on 0-255 channels.
func Luminance(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// ColorLuminance parses a CSS color and returns its luminance. ok is false
// for unparseable or fully transparent colors.
func ColorLuminance(s string) (float64, bool) {
	r, g, b, ok := ParseColor(s)
	if !ok {
		return 0, false
	}
	return Luminance(r, g, b), true
}

// ParseColor understands the computed-style forms browsers report
// ("rgb(r, g, b)", "rgba(r, g, b, a)") and hex notation. Fully transparent
// and unrecognised colors return ok=false.
func ParseColor(s string) (r, g, b uint8, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "" || s == "transparent" || s == "none":
		return 0, 0, 0, false
	case strings.HasPrefix(s, "#"):
		return parseHex(s)
	case strings.HasPrefix(s, "rgb"):
		return parseFunctional(s)
	}
	return 0, 0, 0, false
}

func parseHex(s string) (r, g, b uint8, ok bool) {
	switch len(s) {
	case 4: // #rgb
		s = "#" + strings.Repeat(s[1:2], 2) + strings.Repeat(s[2:3], 2) + strings.Repeat(s[3:4], 2)
	case 5: // #rgba
		if s[4] == '0' {
			return 0, 0, 0, false
		}
		s = "#" + strings.Repeat(s[1:2], 2) + strings.Repeat(s[2:3], 2) + strings.Repeat(s[3:4], 2)
	case 9: // #rrggbbaa
		if s[7:] == "00" {
			return 0, 0, 0, false
		}
		s = s[:7]
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return 0, 0, 0, false
	}
	r, g, b = c.RGB255()
	return r, g, b, true
}

func parseFunctional(s string) (r, g, b uint8, ok bool) {
	open := strings.IndexByte(s, '(')
	end := strings.LastIndexByte(s, ')')
	if open < 0 || end <= open {
		return 0, 0, 0, false
	}
	body := s[open+1 : end]
	// Both "r, g, b, a" and the space form "r g b / a" are reported.
	body = strings.ReplaceAll(body, "/", " ")
	body = strings.ReplaceAll(body, ",", " ")
	parts := strings.Fields(body)
	if len(parts) < 3 {
		return 0, 0, 0, false
	}

	var ch [3]uint8
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(strings.TrimSuffix(parts[i], "%"), 64)
		if err != nil {
			return 0, 0, 0, false
		}
		if strings.HasSuffix(parts[i], "%") {
			v = v * 255 / 100
		}
		ch[i] = uint8(min(255, max(0, v+0.5)))
	}

	if len(parts) >= 4 {
		a, err := strconv.ParseFloat(strings.TrimSuffix(parts[3], "%"), 64)
		if err != nil {
			return 0, 0, 0, false
		}
		if a <= 0 {
			return 0, 0, 0, false
		}
	}
	return ch[0], ch[1], ch[2], true
}
