// File: facade/options.go
// Package facade defines functional options for the Core facade.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package facade

// Option customizes Core initialization.
type Option func(*Core)

// WithBufferCount sets the buffer pool size.
func WithBufferCount(n int) Option {
	return func(c *Core) {
		c.config.BufferCount = n
	}
}

// WithBucketCount sets the lookup sharding factor.
func WithBucketCount(n int) Option {
	return func(c *Core) {
		c.config.BucketCount = n
	}
}

// WithPhysPages sets the physical memory size in page frames.
func WithPhysPages(n int) Option {
	return func(c *Core) {
		c.config.PhysPages = n
	}
}

// WithKernelPages sets how many leading frames stay reserved.
func WithKernelPages(n int) Option {
	return func(c *Core) {
		c.config.KernelPages = n
	}
}

// WithMetrics toggles the metrics registry.
func WithMetrics(enable bool) Option {
	return func(c *Core) {
		c.config.EnableMetrics = enable
	}
}

// WithDebug toggles debug probe registration.
func WithDebug(enable bool) Option {
	return func(c *Core) {
		c.config.EnableDebug = enable
	}
}
