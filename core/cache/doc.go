// File: core/cache/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package cache implements the sharded disk-block buffer cache.
//
// A fixed arena of buffer descriptors shadows on-disk blocks, keyed by
// (device, block number). Descriptors are partitioned across hash
// buckets, each bucket guarded by its own mutex, so the common hit path
// costs one bucket lock. A single eviction mutex serializes the rarer
// cross-bucket scans that pick the globally least-recently-used
// unreferenced descriptor for re-keying.
//
// Interface:
//   - To get a buffer for a particular disk block, call Read.
//   - After changing buffer data, call Write to persist it.
//   - When done with the buffer, call Release.
//   - Do not use the buffer after calling Release.
//   - Only one caller at a time holds a buffer, so do not keep
//     buffers longer than necessary.
package cache
