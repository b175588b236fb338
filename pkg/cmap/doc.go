// Package cmap provides a concurrent-safe sharded map with string keys.
//
// It uses sharding to reduce lock contention, providing better
// performance than a single RWMutex-guarded map for high-concurrency
// workloads. Shard selection hashes the key with murmur3.
package cmap
