// Package render turns a user profile plus a validated option set into a
// badge artifact: it renders an embedded SVG template per variant, inlines
// remote images as base64 data URIs, rasterizes to PNG through an external
// engine, and publishes results through the render cache.
package render
