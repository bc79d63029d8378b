// Package hash provides the string hashing used to spread cache keys across shards.
package hash

import "github.com/cespare/xxhash/v2"

// ID computes the xxHash64 of a cache key.
func ID(key string) uint64 {
	return xxhash.Sum64String(key)
}

// Shard maps key onto one of n shards. n must be a power of two.
func Shard(key string, n int) int {
	return int(ID(key) & uint64(n-1)) //nolint: gosec
}
