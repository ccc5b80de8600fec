package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics is the instrument set for the badge pipeline.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: recording must not panic.
type Metrics struct {
	rendersTotal  metric.Int64Counter
	renderErrors  metric.Int64Counter
	renderSeconds metric.Float64Histogram
	cacheHits     metric.Int64Counter
	cacheMisses   metric.Int64Counter
	imageFetches  metric.Int64Counter
	fetchErrors   metric.Int64Counter
	pruneRemoved  metric.Int64Counter
}

// NewMetrics registers the service instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.rendersTotal, err = meter.Int64Counter(
		"badge.renders.total",
		metric.WithDescription("Total badge render requests"),
		metric.WithUnit("{render}"),
	); err != nil {
		return nil, err
	}
	if m.renderErrors, err = meter.Int64Counter(
		"badge.renders.errors",
		metric.WithDescription("Failed badge renders"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}
	if m.renderSeconds, err = meter.Float64Histogram(
		"badge.render.duration_ms",
		metric.WithDescription("Badge render duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.cacheHits, err = meter.Int64Counter(
		"badge.render_cache.hits",
		metric.WithDescription("Render cache hits"),
		metric.WithUnit("{hit}"),
	); err != nil {
		return nil, err
	}
	if m.cacheMisses, err = meter.Int64Counter(
		"badge.render_cache.misses",
		metric.WithDescription("Render cache misses"),
		metric.WithUnit("{miss}"),
	); err != nil {
		return nil, err
	}
	if m.imageFetches, err = meter.Int64Counter(
		"badge.image_fetches.total",
		metric.WithDescription("Remote image fetches during inlining"),
		metric.WithUnit("{fetch}"),
	); err != nil {
		return nil, err
	}
	if m.fetchErrors, err = meter.Int64Counter(
		"badge.image_fetches.errors",
		metric.WithDescription("Failed remote image fetches"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}
	if m.pruneRemoved, err = meter.Int64Counter(
		"badge.image_cache.pruned",
		metric.WithDescription("Image cache entries removed by prune passes"),
		metric.WithUnit("{entry}"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordRender records one render request with its outcome.
func (m *Metrics) RecordRender(ctx context.Context, variant, filetype string, cacheHit bool, duration time.Duration, err error) {
	opt := metric.WithAttributes(
		attribute.String("variant", variant),
		attribute.String("filetype", filetype),
	)
	m.rendersTotal.Add(ctx, 1, opt)
	if err != nil {
		m.renderErrors.Add(ctx, 1, opt)
	}
	if cacheHit {
		m.cacheHits.Add(ctx, 1, opt)
	} else {
		m.cacheMisses.Add(ctx, 1, opt)
	}
	m.renderSeconds.Record(ctx, float64(duration.Milliseconds()), opt)
}

// RecordImageFetch records one remote image fetch attempt.
func (m *Metrics) RecordImageFetch(ctx context.Context, err error) {
	m.imageFetches.Add(ctx, 1)
	if err != nil {
		m.fetchErrors.Add(ctx, 1)
	}
}

// RecordPrune records the result of an image cache prune pass.
func (m *Metrics) RecordPrune(ctx context.Context, removed int) {
	m.pruneRemoved.Add(ctx, int64(removed))
}
