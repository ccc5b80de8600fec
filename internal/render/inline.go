package render

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/h2non/filetype"
	"github.com/sourcegraph/conc/pool"

	"github.com/knuxify/vrc-embed/internal/imagecache"
	"github.com/knuxify/vrc-embed/internal/observe"
)

// Inliner rewrites remote image references in SVG markup as inline data
// URIs. Most SVG rasterizers will not fetch external images themselves.
type Inliner struct {
	Images  *imagecache.Cache
	Log     observe.Logger
	Metrics *observe.Metrics
}

// Inline fetches every remote image referenced by the markup, concurrently,
// and replaces each reference with a base64 data URI. A fetch failure skips
// that one image and leaves its reference untouched. Markup without remote
// references is returned unchanged.
func (in *Inliner) Inline(ctx context.Context, src []byte) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(src); err != nil {
		return nil, fmt.Errorf("render: parse svg: %w", err)
	}

	type target struct {
		el   *etree.Element
		attr string
		url  string
	}
	var targets []target
	for _, el := range doc.FindElements("//image") {
		for _, attr := range []string{"href", "xlink:href"} {
			a := el.SelectAttr(attr)
			if a == nil {
				continue
			}
			if u, ok := remoteURL(a.Value); ok {
				targets = append(targets, target{el: el, attr: attr, url: u})
			}
		}
	}
	if len(targets) == 0 {
		return src, nil
	}

	// Fetch with fan-out matching the number of distinct references; the
	// attribute rewrites happen after the wait so the tree is only mutated
	// from one goroutine.
	payloads := make([][]byte, len(targets))
	p := pool.New().WithMaxGoroutines(len(targets))
	for i, tgt := range targets {
		p.Go(func() {
			data, err := in.Images.Get(ctx, tgt.url)
			if in.Metrics != nil {
				in.Metrics.RecordImageFetch(ctx, err)
			}
			if err != nil {
				if in.Log != nil {
					in.Log.Warn(ctx, "image inline skipped", observe.F("url", tgt.url), observe.Err(err))
				}
				return
			}
			payloads[i] = data
		})
	}
	p.Wait()

	for i, tgt := range targets {
		if payloads[i] == nil {
			continue
		}
		tgt.el.CreateAttr(tgt.attr, dataURI(payloads[i]))
	}

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("render: serialize svg: %w", err)
	}
	return out, nil
}

// remoteURL normalizes a candidate reference: absolute http(s) URLs pass
// through, protocol-relative ones are fetched over https.
func remoteURL(href string) (string, bool) {
	switch {
	case strings.HasPrefix(href, "https://"), strings.HasPrefix(href, "http://"):
		return href, true
	case strings.HasPrefix(href, "//"):
		return "https:" + href, true
	default:
		return "", false
	}
}

// dataURI encodes a payload, annotating the media type when it can be
// sniffed as an image.
func dataURI(data []byte) string {
	b64 := base64.StdEncoding.EncodeToString(data)
	if t, err := filetype.Match(data); err == nil && strings.HasPrefix(t.MIME.Value, "image/") {
		return "data:" + t.MIME.Value + ";base64," + b64
	}
	return "data:base64," + b64
}
