package compose

import (
	"errors"
	"math"
)

// ErrEncoding is returned when the framed image cannot be encoded.
var ErrEncoding = errors.New("compose: encoding failed")

// GradientStop is one color stop of the backdrop gradient.
type GradientStop struct {
	Offset float64 `yaml:"offset" json:"offset"`
	Color  string  `yaml:"color" json:"color"` // #rrggbb
}

// Shadow is one card shadow layer, in CSS pixels before scaling.
type Shadow struct {
	Blur    float64 `yaml:"blur" json:"blur"`
	OffsetY float64 `yaml:"offset_y" json:"offset_y"`
	Opacity float64 `yaml:"opacity" json:"opacity"`
}

// Config is the per-invocation composition configuration. Lengths are CSS
// baselines and are scaled by the capture's effective scale.
type Config struct {
	InnerPadding  float64        `yaml:"inner_padding" json:"inner_padding"`
	OuterPadding  float64        `yaml:"outer_padding" json:"outer_padding"`
	CornerRadius  float64        `yaml:"corner_radius" json:"corner_radius"`
	WatermarkFont float64        `yaml:"watermark_font" json:"watermark_font"`
	Gradient      []GradientStop `yaml:"gradient" json:"gradient"`
	Shadows       []Shadow       `yaml:"shadows" json:"shadows"`
	// Watermark is drawn under the card when non-empty.
	Watermark      string `yaml:"watermark" json:"watermark"`
	WatermarkColor string `yaml:"watermark_color" json:"watermark_color"`
}

// DefaultGradient runs from light blue at the top-left to pink at the
// bottom-right.
var DefaultGradient = []GradientStop{
	{Offset: 0, Color: "#c4e0ff"},
	{Offset: 1, Color: "#fbc2eb"},
}

// DefaultShadows is a wide soft shadow followed by a tight contact shadow.
var DefaultShadows = []Shadow{
	{Blur: 30, OffsetY: 10, Opacity: 0.25},
	{Blur: 12, OffsetY: 4, Opacity: 0.15},
}

// DefaultConfig returns the standard frame.
func DefaultConfig() Config {
	var c Config
	c.defaults()
	return c
}

func (c *Config) defaults() {
	if c.InnerPadding <= 0 {
		c.InnerPadding = 40
	}
	if c.OuterPadding <= 0 {
		c.OuterPadding = 45
	}
	if c.CornerRadius <= 0 {
		c.CornerRadius = 8
	}
	if c.WatermarkFont <= 0 {
		c.WatermarkFont = 18
	}
	if len(c.Gradient) == 0 {
		c.Gradient = DefaultGradient
	}
	if c.Shadows == nil {
		c.Shadows = DefaultShadows
	}
	if c.WatermarkColor == "" {
		c.WatermarkColor = "#111827"
	}
}

// Layout is the pixel geometry of a framed image.
type Layout struct {
	Scale        float64
	InnerPadding int
	OuterPadding int
	CornerRadius int
	FontSize     int

	CanvasW, CanvasH int
	// Card is the white document card.
	CardX, CardY, CardW, CardH int
	// ContentX, ContentY is where the capture is drawn.
	ContentX, ContentY int
	// WatermarkX, WatermarkY is the right-aligned watermark baseline anchor.
	WatermarkX, WatermarkY int
}

// LayoutFor computes the layout of a w×h capture at effective scale s using
// the default baselines.
func LayoutFor(w, h int, s float64) Layout {
	return DefaultConfig().Layout(w, h, s)
}

// Layout computes the layout of a w×h capture at effective scale s.
func (c Config) Layout(w, h int, s float64) Layout {
	c.defaults()
	if math.IsNaN(s) || s < 1 {
		s = 1
	}
	l := Layout{
		Scale:        s,
		InnerPadding: roundInt(c.InnerPadding * s),
		OuterPadding: roundInt(c.OuterPadding * s),
		CornerRadius: roundInt(c.CornerRadius * s),
		FontSize:     roundInt(c.WatermarkFont * s),
	}
	l.CardX, l.CardY = l.OuterPadding, l.OuterPadding
	l.CardW = w + 2*l.InnerPadding
	l.CardH = h + 2*l.InnerPadding
	l.CanvasW = l.CardW + 2*l.OuterPadding
	l.CanvasH = l.CardH + 2*l.OuterPadding
	l.ContentX = l.CardX + l.InnerPadding
	l.ContentY = l.CardY + l.InnerPadding
	l.WatermarkX = l.CardX + l.CardW
	l.WatermarkY = l.CardY + l.CardH + roundInt(20*s)
	return l
}

func roundInt(v float64) int { return int(math.Round(v)) }
