// Package cache implements a durable, TTL-governed content-addressed
// cache used for embedding vectors and full query results.
//
// Keys are SHA-256 digests of the source content (see Key), giving
// cross-run stability and collision resistance. Values live in an
// authoritative in-memory map guarded by a mutex; every mutation
// persists the whole key space to a single JSON file via an atomic
// rename, so parallel embedding batches never lose updates to
// interleaved whole-file rewrites.
//
// Expiry is lazy: Get treats entries older than the TTL as absent
// without deleting them. ExpireStale and Clear are the only operations
// that remove entries. A missing or corrupt backing file is treated as
// an empty cache and never blocks processing.
package cache
