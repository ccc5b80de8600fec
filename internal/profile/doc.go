// Package profile fetches remote user profiles from the upstream API and
// caches them in a local key-value store with a short TTL.
//
// Session cookies persist across restarts; a stale session re-authenticates
// transparently, including TOTP two-factor when a secret is configured.
package profile
