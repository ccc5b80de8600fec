// Package fontcache measures text widths for SVG layout, caching parsed
// fonts and sized faces behind an explicit, concurrency-safe object.
package fontcache

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
)

// DefaultFont is the name of the built-in fallback face, always available.
const DefaultFont = "Go"

// ErrUnknownFont is returned when measuring with an unregistered font name.
var ErrUnknownFont = errors.New("fontcache: unknown font")

type faceKey struct {
	name string
	size float64
}

// Cache is a read-through font metrics cache.
//
// Contract:
// - Concurrency: safe for concurrent use. Face measurement mutates internal
//   rasterizer buffers, so all measuring happens under the lock.
type Cache struct {
	mu    sync.Mutex
	fonts map[string]*sfnt.Font
	faces map[faceKey]font.Face
}

// New returns a cache with the built-in Go Regular face registered, so the
// service can lay out text without any bundled font files.
func New() *Cache {
	c := &Cache{
		fonts: make(map[string]*sfnt.Font),
		faces: make(map[faceKey]font.Face),
	}
	// goregular is a valid TTF; parsing cannot fail.
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
	c.fonts[DefaultFont] = f
	return c
}

// Register parses TTF/OTF bytes and makes them available under name,
// replacing any previous registration.
func (c *Cache) Register(name string, ttf []byte) error {
	f, err := opentype.Parse(ttf)
	if err != nil {
		return fmt.Errorf("fontcache: parse %s: %w", name, err)
	}
	c.mu.Lock()
	c.fonts[name] = f
	for key := range c.faces {
		if key.name == name {
			delete(c.faces, key)
		}
	}
	c.mu.Unlock()
	return nil
}

// RegisterFile loads a font file from disk and registers it under name.
func (c *Cache) RegisterFile(name, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("fontcache: read %s: %w", path, err)
	}
	return c.Register(name, data)
}

// TextWidth returns the estimated width in pixels of text rendered with the
// named font at the given size. Faces are created lazily and cached per
// (name, size).
func (c *Cache) TextWidth(text, fontName string, size float64) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := faceKey{name: fontName, size: size}
	face, ok := c.faces[key]
	if !ok {
		f, ok := c.fonts[fontName]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownFont, fontName)
		}
		var err error
		face, err = opentype.NewFace(f, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingNone,
		})
		if err != nil {
			return 0, fmt.Errorf("fontcache: face %s@%g: %w", fontName, size, err)
		}
		c.faces[key] = face
	}

	return float64(font.MeasureString(face, text)) / 64, nil
}
