package render

import (
	"net/url"
	"testing"
)

func TestLookup(t *testing.T) {
	for _, name := range []string{"large", "small", "tiny"} {
		v, ok := Lookup(name)
		if !ok {
			t.Fatalf("Lookup(%q) not found", name)
		}
		if v.Name != name {
			t.Errorf("Lookup(%q).Name = %q", name, v.Name)
		}
	}
	if _, ok := Lookup("huge"); ok {
		t.Error("Lookup(huge) unexpectedly found")
	}
}

func TestSupportsFiletype(t *testing.T) {
	tests := []struct {
		variant  string
		filetype string
		want     bool
	}{
		{"large", "svg", true},
		{"large", "png", true},
		{"small", "png", true},
		{"tiny", "svg", true},
		{"tiny", "png", false},
		{"large", "gif", false},
	}
	for _, tt := range tests {
		v, ok := Lookup(tt.variant)
		if !ok {
			t.Fatalf("Lookup(%q) not found", tt.variant)
		}
		if got := v.SupportsFiletype(tt.filetype); got != tt.want {
			t.Errorf("%s.SupportsFiletype(%q) = %v, want %v", tt.variant, tt.filetype, got, tt.want)
		}
	}
}

func TestVariantDefaults(t *testing.T) {
	v, _ := Lookup("large")
	cfg, err := v.Schema.Parse(url.Values{})
	if err != nil {
		t.Fatalf("Parse(empty) error: %v", err)
	}
	if got := cfg["theme"]; got != "dark" {
		t.Errorf("theme default = %v, want dark", got)
	}
	if got := cfg["background_color"]; got != nil {
		t.Errorf("background_color default = %v, want nil until the theme resolves it", got)
	}
	if got := cfg["border_radius"]; got != 8 {
		t.Errorf("border_radius default = %v, want 8", got)
	}
	if got := cfg["avatar_url"]; got != nil {
		t.Errorf("avatar_url default = %v, want nil", got)
	}
}

func TestApplyTheme(t *testing.T) {
	v, _ := Lookup("large")

	tests := []struct {
		name   string
		params url.Values
		want   map[string]any
	}{
		{
			"dark palette fills unset colors",
			url.Values{},
			map[string]any{"background_color": "#181b1f", "foreground_color": "#f8f9fa"},
		},
		{
			"light palette fills unset colors",
			url.Values{"theme": {"light"}},
			map[string]any{"background_color": "#ffffff", "foreground_color": "#24292f"},
		},
		{
			"explicit color wins over palette",
			url.Values{"theme": {"light"}, "background_color": {"123456"}},
			map[string]any{"background_color": "#123456", "foreground_color": "#24292f"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := v.Schema.Parse(tt.params)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			got := ApplyTheme(cfg)
			for k, want := range tt.want {
				if got[k] != want {
					t.Errorf("%s = %v, want %v", k, got[k], want)
				}
			}
		})
	}
}

func TestApplyTheme_SchemaWithoutColors(t *testing.T) {
	// tiny declares no color options; the palette must not introduce any.
	cfg := ApplyTheme(map[string]any{})
	if len(cfg) != 0 {
		t.Errorf("ApplyTheme added options to an empty configuration: %v", cfg)
	}
}

func TestTinyHasNoOptions(t *testing.T) {
	v, _ := Lookup("tiny")
	if v.Schema.Len() != 0 {
		t.Fatalf("tiny schema has %d options, want 0", v.Schema.Len())
	}
	if _, err := v.Schema.Parse(url.Values{"theme": {"dark"}}); err == nil {
		t.Error("Parse with unknown option should fail for the empty schema")
	}
}

func TestContentType(t *testing.T) {
	if got := ContentType("svg"); got != "image/svg+xml" {
		t.Errorf("ContentType(svg) = %q", got)
	}
	if got := ContentType("png"); got != "image/png" {
		t.Errorf("ContentType(png) = %q", got)
	}
}
