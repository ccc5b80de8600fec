package render

import (
	"github.com/knuxify/vrc-embed/internal/options"
)

// Variant is one named embed layout with its supported output filetypes and
// option schema.
type Variant struct {
	Name      string
	Filetypes []string
	Schema    *options.Schema

	// Width and Height are the nominal SVG dimensions.
	Width  int
	Height int
}

// SupportsFiletype reports whether the variant can produce the filetype.
func (v *Variant) SupportsFiletype(ft string) bool {
	for _, f := range v.Filetypes {
		if f == ft {
			return true
		}
	}
	return false
}

// hideable fields shared by the large and small layouts.
var hideFields = options.Enum("avatar", "pronouns", "status", "status_description", "last_seen")

// palettes are the per-theme color defaults; an explicitly passed color
// option always wins over the palette.
var palettes = map[string]map[string]string{
	"dark": {
		"background_color": "#181b1f",
		"foreground_color": "#f8f9fa",
		"accent_color":     "#0fa37f",
	},
	"light": {
		"background_color": "#ffffff",
		"foreground_color": "#24292f",
		"accent_color":     "#0fa37f",
	},
}

// ApplyTheme resolves unset color options from the theme's palette. Options
// outside the variant's schema are never introduced, and the input is not
// mutated.
func ApplyTheme(cfg options.Config) options.Config {
	theme, _ := cfg["theme"].(string)
	pal, ok := palettes[theme]
	if !ok {
		return cfg
	}
	out := make(options.Config, len(cfg))
	for k, v := range cfg {
		out[k] = v
	}
	for k, v := range pal {
		if cur, declared := out[k]; declared && cur == nil {
			out[k] = v
		}
	}
	return out
}

var variants = []*Variant{
	{
		Name:      "large",
		Filetypes: []string{"svg", "png"},
		Width:     355,
		Height:    340,
		Schema: options.MustSchema([]options.Definition{
			options.Definition{Name: "theme", Spec: options.Enum("dark", "light")}.WithDefault("dark"),
			{Name: "background_color", Spec: options.Color()},
			{Name: "foreground_color", Spec: options.Color()},
			{Name: "accent_color", Spec: options.Color()},
			options.Definition{Name: "border_radius", Spec: options.IntRange(0, 32)}.WithDefault("8"),
			options.Definition{Name: "hide", Spec: options.List(hideFields)}.WithDefault(""),
			{Name: "avatar_url", Spec: options.URL()},
		}),
	},
	{
		Name:      "small",
		Filetypes: []string{"svg", "png"},
		Width:     280,
		Height:    88,
		Schema: options.MustSchema([]options.Definition{
			options.Definition{Name: "theme", Spec: options.Enum("dark", "light")}.WithDefault("dark"),
			{Name: "background_color", Spec: options.Color()},
			{Name: "foreground_color", Spec: options.Color()},
			{Name: "accent_color", Spec: options.Color()},
			options.Definition{Name: "border_radius", Spec: options.IntRange(0, 32)}.WithDefault("8"),
			options.Definition{Name: "width", Spec: options.IntRange(1, 2000)}.WithDefault("280"),
			options.Definition{Name: "hide", Spec: options.List(hideFields)}.WithDefault(""),
			{Name: "avatar_url", Spec: options.URL()},
		}),
	},
	{
		// tiny has no options at all, so its cache filenames carry no
		// fingerprint segment.
		Name:      "tiny",
		Filetypes: []string{"svg"},
		Width:     120,
		Height:    24,
		Schema:    options.MustSchema(nil),
	},
}

// Variants returns every registered variant in declaration order.
func Variants() []*Variant {
	return variants
}

// Lookup finds a variant by name.
func Lookup(name string) (*Variant, bool) {
	for _, v := range variants {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

// ContentType maps an output filetype to its media type.
func ContentType(filetype string) string {
	switch filetype {
	case "svg":
		return "image/svg+xml"
	case "png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
