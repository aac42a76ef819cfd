package booking

import (
	"strings"
	"unicode/utf16"

	"golang.org/x/text/cases"
)

// DefaultPalette is the set of calendar colors owners are spread across.
var DefaultPalette = Palette{
	"#4f46e5",
	"#0891b2",
	"#16a34a",
	"#ca8a04",
	"#dc2626",
	"#db2777",
	"#7c3aed",
	"#ea580c",
	"#0d9488",
	"#65a30d",
}

// Palette is an ordered list of display colors.
type Palette []string

// HashKey returns the 32-bit signed rolling hash (h*31 + c) of key computed
// over its UTF-16 code units with two's complement wrap-around.
func HashKey(key string) int32 {
	var h int32
	for _, unit := range utf16.Encode([]rune(key)) {
		h = h*31 + int32(unit)
	}
	return h
}

// Index maps key onto a palette slot. The same key always yields the same
// index for a given palette length.
func (p Palette) Index(key string) int {
	if len(p) == 0 {
		return 0
	}
	h := int64(HashKey(key))
	if h < 0 {
		h = -h
	}
	return int(h % int64(len(p)))
}

// Color returns the palette entry for key.
func (p Palette) Color(key string) string {
	if len(p) == 0 {
		return ""
	}
	return p[p.Index(key)]
}

// Colorizer assigns owner colors, honouring fixed per-name overrides before
// falling back to the palette hash.
type Colorizer struct {
	palette   Palette
	overrides map[string]string
}

// NewColorizer builds a Colorizer. Override keys are full display names and
// match case-insensitively. A nil or empty palette uses DefaultPalette.
func NewColorizer(palette Palette, overrides map[string]string) *Colorizer {
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	c := &Colorizer{
		palette:   palette,
		overrides: make(map[string]string, len(overrides)),
	}
	for name, color := range overrides {
		key := foldName(name)
		if key == "" || strings.TrimSpace(color) == "" {
			continue
		}
		c.overrides[key] = strings.TrimSpace(color)
	}
	return c
}

// ColorFor returns the color for an owner. name is the display name used for
// override lookup; key is the stable identifier hashed into the palette (user
// id, or the custom name itself for unregistered owners).
func (c *Colorizer) ColorFor(name, key string) string {
	if c == nil {
		return DefaultPalette.Color(key)
	}
	if color, ok := c.overrides[foldName(name)]; ok {
		return color
	}
	if key == "" {
		key = name
	}
	return c.palette.Color(key)
}

// foldName builds a fresh Caser per call; Casers are stateful and not safe
// for concurrent use.
func foldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}
