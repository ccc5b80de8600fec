// Package rendercache maps (subject id, embed variant, validated option set)
// to previously rendered artifacts on disk.
//
// Artifact identity is the filename alone; existence on the filesystem is the
// cache predicate, and atomic rename is the only synchronization primitive.
// Entries carry no TTL; they are invalidated indirectly by upstream data
// cache expiry.
package rendercache
