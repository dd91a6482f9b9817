package selector

import "image/color"

// Palette is the contrast scheme of the selection overlay.
type Palette struct {
	Name        string     `json:"name"`
	Border      color.RGBA `json:"-"`
	BorderCSS   string     `json:"border"`
	Fill        color.RGBA `json:"-"`
	FillCSS     string     `json:"fill"`
	Glow        string     `json:"glow,omitempty"`
	BorderWidth float64    `json:"border_width"`
	Dashed      bool       `json:"dashed"`
}

// DarkPalette is used over dark surfaces: a cyan dashed border with a glow.
var DarkPalette = Palette{
	Name:        "dark",
	Border:      color.RGBA{R: 0x00, G: 0xff, B: 0xff, A: 0xff},
	BorderCSS:   "#00ffff",
	Fill:        color.RGBA{R: 0x00, G: 0xff, B: 0xff, A: 0x26},
	FillCSS:     "rgba(0, 255, 255, 0.15)",
	Glow:        "0 0 0 1px rgba(0, 0, 0, 0.5), 0 0 12px rgba(0, 255, 255, 0.6)",
	BorderWidth: 2,
	Dashed:      true,
}

// LightPalette is used over light surfaces: an orange dashed border.
var LightPalette = Palette{
	Name:        "light",
	Border:      color.RGBA{R: 0xff, G: 0x6b, B: 0x35, A: 0xff},
	BorderCSS:   "#ff6b35",
	Fill:        color.RGBA{R: 0xff, G: 0x6b, B: 0x35, A: 0x26},
	FillCSS:     "rgba(255, 107, 53, 0.15)",
	Glow:        "0 0 0 1px rgba(255, 255, 255, 0.6)",
	BorderWidth: 2,
	Dashed:      true,
}

// PaletteFor returns the overlay palette for a dark or light surface.
func PaletteFor(dark bool) Palette {
	if dark {
		return DarkPalette
	}
	return LightPalette
}
