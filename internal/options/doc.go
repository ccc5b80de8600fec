// Package options validates and converts raw string request parameters into
// typed, bounds-checked configuration values.
//
// A Spec describes one option's value domain (string, int, bool, url, color,
// enum, or a list of any of these). A Schema is an ordered, immutable set of
// named option definitions with optional defaults; it is built once at
// startup and shared read-only across requests.
package options
