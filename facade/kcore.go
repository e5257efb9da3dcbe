// File: facade/kcore.go
// Unified facade layer for the kcore storage core.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// This file defines the Core struct, which aggregates the buffer cache
// and the physical page allocator behind a single facade. It
// initializes both from immutable configuration, exposes them to
// callers, and optionally wires their statistics into a metrics
// registry and debug probes. Pool geometry is fixed for the Core's
// lifetime; there is no teardown beyond Close, which returns the
// physical arena to the OS.

package facade

import (
	"fmt"

	"github.com/momentics/kcore/api"
	"github.com/momentics/kcore/control"
	"github.com/momentics/kcore/core/cache"
	"github.com/momentics/kcore/core/mem"
)

// Config holds parameters immutable per run.
type Config struct {
	BufferCount   int  // cached blocks in the buffer pool
	BucketCount   int  // lookup sharding factor, prime recommended
	PhysPages     int  // page frames of physical memory
	KernelPages   int  // leading frames reserved for the kernel image
	EnableMetrics bool // mirror stats into a MetricsRegistry
	EnableDebug   bool // register debug probes
}

// DefaultConfig returns default configuration values. The bucket count
// is prime so block numbers spread evenly across shards.
func DefaultConfig() *Config {
	return &Config{
		BufferCount:   30,   // worst-case concurrent block demand
		BucketCount:   13,   // prime sharding factor
		PhysPages:     4096, // 16 MiB of physical memory
		KernelPages:   256,  // 1 MiB reserved below the kernel end
		EnableMetrics: true,
		EnableDebug:   true,
	}
}

// Core is the process-wide storage context: one buffer cache, one page
// allocator, constructed once at startup and passed by reference to
// every subsystem above them.
type Core struct {
	cache   *cache.Cache
	mem     *mem.Allocator
	metrics *control.MetricsRegistry
	probes  *control.DebugProbes
	config  *Config
}

// New constructs a Core over the given block device.
func New(dev api.BlockDevice, opts ...Option) (*Core, error) {
	c := &Core{config: DefaultConfig()}
	for _, opt := range opts {
		opt(c)
	}
	cfg := c.config
	if dev == nil {
		return nil, fmt.Errorf("facade: nil block device")
	}
	if cfg.BufferCount <= 0 || cfg.BucketCount <= 0 {
		return nil, fmt.Errorf("facade: bad cache geometry: %d buffers, %d buckets",
			cfg.BufferCount, cfg.BucketCount)
	}

	alloc, err := mem.New(cfg.PhysPages, cfg.KernelPages)
	if err != nil {
		return nil, err
	}
	c.mem = alloc
	c.cache = cache.New(dev, cfg.BufferCount, cfg.BucketCount)

	if cfg.EnableMetrics {
		c.metrics = control.NewMetricsRegistry()
	}
	if cfg.EnableDebug {
		c.probes = control.NewDebugProbes()
		c.probes.RegisterProbe("cache", func() any { return c.cache.Stats() })
		c.probes.RegisterProbe("mem", func() any { return c.mem.Stats() })
	}
	return c, nil
}

// Cache returns the buffer cache.
func (c *Core) Cache() *cache.Cache { return c.cache }

// Mem returns the page allocator.
func (c *Core) Mem() *mem.Allocator { return c.mem }

// Debug returns the probe registry, or nil when debug is disabled.
func (c *Core) Debug() api.Debug {
	if c.probes == nil {
		return nil
	}
	return c.probes
}

// Metrics returns the registry, or nil when metrics are disabled.
func (c *Core) Metrics() *control.MetricsRegistry { return c.metrics }

// SyncMetrics copies the current cache and allocator counters into the
// metrics registry. No-op when metrics are disabled.
func (c *Core) SyncMetrics() {
	if c.metrics == nil {
		return
	}
	cs := c.cache.Stats()
	ms := c.mem.Stats()
	c.metrics.Set("cache.hits", cs.Hits)
	c.metrics.Set("cache.misses", cs.Misses)
	c.metrics.Set("cache.evictions", cs.Evictions)
	c.metrics.Set("cache.relinks", cs.Relinks)
	c.metrics.Set("mem.free_pages", uint64(ms.FreePages))
	c.metrics.Set("mem.allocs", ms.Allocs)
	c.metrics.Set("mem.frees", ms.Frees)
}

// Close releases the physical arena. The Core must not be used
// afterwards.
func (c *Core) Close() error {
	return c.mem.Close()
}
