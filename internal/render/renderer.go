package render

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/xeonx/timeago"

	"github.com/knuxify/vrc-embed/internal/fontcache"
	"github.com/knuxify/vrc-embed/internal/observe"
	"github.com/knuxify/vrc-embed/internal/options"
	"github.com/knuxify/vrc-embed/internal/profile"
	"github.com/knuxify/vrc-embed/internal/rendercache"
)

//go:embed templates/*.svg
var templateFS embed.FS

// Renderer produces finished badge images: it fills the variant's SVG
// template, inlines remote images, optionally rasterizes to PNG, and keeps
// the results in the render cache keyed by user, variant and option
// fingerprint.
type Renderer struct {
	store   *rendercache.Store
	inliner *Inliner
	fonts   *fontcache.Cache
	raster  Rasterizer
	tmpl    *template.Template
	log     observe.Logger
	metrics *observe.Metrics
}

// RendererConfig collects the renderer's collaborators.
type RendererConfig struct {
	Store      *rendercache.Store
	Inliner    *Inliner
	Fonts      *fontcache.Cache
	Rasterizer Rasterizer
	Logger     observe.Logger
	Metrics    *observe.Metrics
}

// NewRenderer parses the embedded templates and wires the pipeline.
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("render: nil store")
	}
	if cfg.Fonts == nil {
		cfg.Fonts = fontcache.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}

	r := &Renderer{
		store:   cfg.Store,
		inliner: cfg.Inliner,
		fonts:   cfg.Fonts,
		raster:  cfg.Rasterizer,
		log:     cfg.Logger.WithComponent("render"),
		metrics: cfg.Metrics,
	}

	funcs := template.FuncMap{
		"textWidth":   r.textWidth,
		"timeago":     formatTimeago,
		"hidden":      hidden,
		"statusColor": statusColor,
		"add":         func(a, b float64) float64 { return a + b },
		"sub":         func(a, b float64) float64 { return a - b },
		"mul":         func(a, b float64) float64 { return a * b },
	}
	tmpl, err := template.New("badges").Funcs(funcs).ParseFS(templateFS, "templates/*.svg")
	if err != nil {
		return nil, fmt.Errorf("render: parse templates: %w", err)
	}
	r.tmpl = tmpl
	return r, nil
}

// templateData is the payload handed to the SVG templates.
type templateData struct {
	User *profile.User
	Opts options.Config
	Now  time.Time
}

// Render returns the finished badge bytes for the user, building and caching
// them on a miss. cfg must come from the variant's schema.
func (r *Renderer) Render(ctx context.Context, user *profile.User, v *Variant, ft string, cfg options.Config) ([]byte, error) {
	start := time.Now()
	data, hit, err := r.render(ctx, user, v, ft, cfg)
	if r.metrics != nil {
		r.metrics.RecordRender(ctx, v.Name, ft, hit, time.Since(start), err)
	}
	return data, err
}

func (r *Renderer) render(ctx context.Context, user *profile.User, v *Variant, ft string, cfg options.Config) ([]byte, bool, error) {
	if !v.SupportsFiletype(ft) {
		return nil, false, fmt.Errorf("render: variant %q does not support filetype %q", v.Name, ft)
	}

	fp, err := rendercache.Fingerprint(cfg)
	if err != nil {
		return nil, false, fmt.Errorf("render: fingerprint: %w", err)
	}
	name := rendercache.Filename(user.ID, v.Name, fp, ft)

	if r.store.Exists(name) {
		data, err := r.store.Read(name)
		if err == nil {
			return data, true, nil
		}
		r.log.Warn(ctx, "cached render unreadable, rebuilding", observe.F("file", name), observe.Err(err))
	}

	var buf bytes.Buffer
	td := templateData{User: user, Opts: ApplyTheme(cfg), Now: time.Now()}
	if err := r.tmpl.ExecuteTemplate(&buf, v.Name+".svg", td); err != nil {
		return nil, false, fmt.Errorf("render: template %s: %w", v.Name, err)
	}
	out := buf.Bytes()

	if ft == "png" {
		// A dropped client connection must not abort work that later
		// requests for the same badge will reuse.
		bgCtx := context.WithoutCancel(ctx)
		if r.inliner != nil {
			out, err = r.inliner.Inline(bgCtx, out)
			if err != nil {
				return nil, false, fmt.Errorf("render: inline: %w", err)
			}
		}
		if r.raster == nil {
			return nil, false, fmt.Errorf("render: no rasterizer configured")
		}
		out, err = r.raster.Rasterize(bgCtx, out)
		if err != nil {
			return nil, false, err
		}
	}

	if err := r.store.Save(name, out); err != nil {
		return nil, false, fmt.Errorf("render: publish %s: %w", name, err)
	}
	return out, false, nil
}

// textWidth measures rendered text so templates can size backgrounds. Errors
// collapse to zero width; a missing glyph must not fail the whole badge.
func (r *Renderer) textWidth(text, fontName string, size float64) float64 {
	w, err := r.fonts.TextWidth(text, fontName, size)
	if err != nil {
		return 0
	}
	return w
}

func formatTimeago(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return timeago.English.Format(t)
}

// statusColor maps an upstream presence status to its conventional color.
func statusColor(status string) string {
	switch status {
	case "active":
		return "#51e57e"
	case "join me":
		return "#42caff"
	case "ask me":
		return "#e88134"
	case "busy":
		return "#5b0b0b"
	default:
		return "#767676"
	}
}

// hidden reports whether the given field was listed in the hide option.
func hidden(cfg options.Config, field string) bool {
	raw, ok := cfg["hide"]
	if !ok || raw == nil {
		return false
	}
	list, ok := raw.([]any)
	if !ok {
		return false
	}
	for _, v := range list {
		if s, ok := v.(string); ok && s == field {
			return true
		}
	}
	return false
}
