// Package imagecache deduplicates and caches byte payloads fetched from
// remote image URLs, for inlining into rendered SVGs.
//
// Concurrent requests for one URL coalesce into a single download; payloads
// persist under a process-lifetime directory and are evicted by a periodic
// prune pass once idle beyond a threshold.
package imagecache
