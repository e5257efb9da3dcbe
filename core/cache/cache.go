// File: core/cache/cache.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package cache

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/kcore/api"
)

// Cache is the sharded buffer cache. All descriptors live in a fixed
// arena; buckets link into it with integer handles rather than
// pointers, so ownership stays with the cache and handles held by
// callers are non-owning.
type Cache struct {
	dev  api.BlockDevice
	bufs []Buf

	buckets []bucket
	// Intrusive circular list links over a unified index space:
	// 0..len(bufs)-1 are descriptors, len(bufs)+i is bucket i's
	// sentinel. Links of a node are guarded by the lock of the bucket
	// whose list the node is on.
	next []int32
	prev []int32

	// evictMu serializes cross-bucket eviction scans. Never acquired
	// while holding a bucket lock; bucket locks are acquired under it.
	evictMu sync.Mutex

	// ticks is the recency clock, bumped on every release-to-zero and
	// on every re-key.
	ticks atomic.Uint64

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	relinks   atomic.Uint64
}

type bucket struct {
	mu sync.Mutex
}

// New builds a cache of nbuf descriptors sharded over nbuckets lists,
// backed by dev. Both counts must be positive; nbuckets should be
// prime so block numbers spread evenly. All descriptors start invalid,
// keyed to block 0, and therefore sit in bucket 0 until first re-keyed.
func New(dev api.BlockDevice, nbuf, nbuckets int) *Cache {
	c := &Cache{
		dev:     dev,
		bufs:    make([]Buf, nbuf),
		buckets: make([]bucket, nbuckets),
		next:    make([]int32, nbuf+nbuckets),
		prev:    make([]int32, nbuf+nbuckets),
	}
	for i := range c.buckets {
		h := c.head(i)
		c.next[h] = h
		c.prev[h] = h
	}
	for i := range c.bufs {
		b := &c.bufs[i]
		b.idx = int32(i)
		b.data = make([]byte, api.PageSize)
		c.insertFront(c.head(c.bucketFor(b.blockno)), b.idx)
	}
	return c
}

func (c *Cache) bucketFor(blockno uint64) int {
	return int(blockno % uint64(len(c.buckets)))
}

// head returns the link index of bucket i's sentinel.
func (c *Cache) head(i int) int32 {
	return int32(len(c.bufs) + i)
}

// insertFront links node n right after sentinel h. Caller holds the
// lock of h's bucket.
func (c *Cache) insertFront(h, n int32) {
	c.next[n] = c.next[h]
	c.prev[n] = h
	c.prev[c.next[h]] = n
	c.next[h] = n
}

// unlink removes node n from its current list. Caller holds the lock
// of the bucket whose list n is on.
func (c *Cache) unlink(n int32) {
	c.next[c.prev[n]] = c.next[n]
	c.prev[c.next[n]] = c.prev[n]
}

// scan walks bucket i for a descriptor keyed (dev, blockno). Caller
// holds bucket i's lock.
func (c *Cache) scan(i int, dev uint32, blockno uint64) *Buf {
	h := c.head(i)
	for n := c.next[h]; n != h; n = c.next[n] {
		b := &c.bufs[n]
		if b.dev == dev && b.blockno == blockno {
			return b
		}
	}
	return nil
}

// bget returns a descriptor keyed to (dev, blockno) with its sleep
// lock held and ref count incremented. On a miss it re-keys the
// globally oldest unreferenced descriptor; if every descriptor is
// referenced the cache is exhausted and bget faults.
func (c *Cache) bget(dev uint32, blockno uint64) *Buf {
	hi := c.bucketFor(blockno)
	bkt := &c.buckets[hi]

	// Fast path: one bucket lock.
	bkt.mu.Lock()
	if b := c.scan(hi, dev, blockno); b != nil {
		b.refcnt++
		c.hits.Add(1)
		bkt.mu.Unlock()
		b.lk.acquire()
		return b
	}
	bkt.mu.Unlock()

	// Miss. Serialize against other evictors, then re-scan: another
	// caller may have installed the block while no lock was held.
	c.evictMu.Lock()
	bkt.mu.Lock()
	if b := c.scan(hi, dev, blockno); b != nil {
		b.refcnt++
		c.hits.Add(1)
		bkt.mu.Unlock()
		c.evictMu.Unlock()
		b.lk.acquire()
		return b
	}
	bkt.mu.Unlock()
	c.misses.Add(1)

	// Victim scan over every bucket. The bucket holding the best
	// candidate so far stays locked so the candidate cannot be
	// re-referenced behind our back; losing buckets unlock immediately.
	// At most two bucket locks are held at once, and only under
	// evictMu, so concurrent lookups cannot deadlock against us.
	victim := int32(-1)
	victimBkt := -1
	var oldest uint64
	for i := range c.buckets {
		c.buckets[i].mu.Lock()
		improved := false
		h := c.head(i)
		for n := c.next[h]; n != h; n = c.next[n] {
			b := &c.bufs[n]
			if b.refcnt == 0 && (victim == -1 || b.stamp < oldest) {
				if victimBkt != -1 && victimBkt != i {
					c.buckets[victimBkt].mu.Unlock()
				}
				victim = n
				victimBkt = i
				oldest = b.stamp
				improved = true
			}
		}
		if !improved && i != victimBkt {
			c.buckets[i].mu.Unlock()
		}
	}
	if victim == -1 {
		c.evictMu.Unlock()
		api.RaiseFault("cache", "bget", "no buffers: all %d referenced", len(c.bufs))
	}

	// Re-key under the victim's bucket lock, still holding evictMu.
	b := &c.bufs[victim]
	b.dev = dev
	b.blockno = blockno
	b.valid = false
	b.refcnt = 1
	b.stamp = c.ticks.Add(1)
	c.evictions.Add(1)
	if victimBkt != hi {
		c.unlink(victim)
	}
	c.buckets[victimBkt].mu.Unlock()

	if victimBkt != hi {
		// Move the descriptor to its new home bucket so later scans
		// of that bucket see it.
		bkt.mu.Lock()
		c.insertFront(c.head(hi), victim)
		bkt.mu.Unlock()
		c.relinks.Add(1)
	}
	c.evictMu.Unlock()
	b.lk.acquire()
	return b
}

// Read returns a locked buffer with the contents of the indicated
// block, loading it from the device first if the cached payload is not
// valid. The caller owns the payload until Release.
func (c *Cache) Read(dev uint32, blockno uint64) *Buf {
	b := c.bget(dev, blockno)
	if !b.valid {
		c.dev.RW(b.dev, b.blockno, b.data, false)
		b.valid = true
	}
	return b
}

// Write synchronously persists b's payload to the device. Faults if
// the caller does not hold b's sleep lock.
func (c *Cache) Write(b *Buf) {
	if !b.lk.isHeld() {
		api.RaiseFault("cache", "write", "buffer (%d,%d) not locked", b.dev, b.blockno)
	}
	c.dev.RW(b.dev, b.blockno, b.data, true)
}

// Release drops the caller's hold on b: the sleep lock is released,
// the ref count decremented, and, when it reaches zero, a fresh
// recency stamp recorded so eviction order tracks release order.
// The caller must not touch b afterwards.
func (c *Cache) Release(b *Buf) {
	if !b.lk.isHeld() {
		api.RaiseFault("cache", "release", "buffer (%d,%d) not locked", b.dev, b.blockno)
	}
	b.lk.release()

	bkt := &c.buckets[c.bucketFor(b.blockno)]
	bkt.mu.Lock()
	b.refcnt--
	if b.refcnt == 0 {
		b.stamp = c.ticks.Add(1)
	}
	bkt.mu.Unlock()
}

// Pin raises b's ref count without touching its sleep lock, keeping it
// resident across logically separate critical sections.
func (c *Cache) Pin(b *Buf) {
	bkt := &c.buckets[c.bucketFor(b.blockno)]
	bkt.mu.Lock()
	b.refcnt++
	bkt.mu.Unlock()
}

// Unpin undoes a Pin.
func (c *Cache) Unpin(b *Buf) {
	bkt := &c.buckets[c.bucketFor(b.blockno)]
	bkt.mu.Lock()
	b.refcnt--
	bkt.mu.Unlock()
}

// InvalidateDev marks every unreferenced buffer of dev invalid, so the
// next Read reloads it from the device. Referenced buffers are left
// alone.
func (c *Cache) InvalidateDev(dev uint32) {
	for i := range c.buckets {
		c.buckets[i].mu.Lock()
		h := c.head(i)
		for n := c.next[h]; n != h; n = c.next[n] {
			b := &c.bufs[n]
			if b.dev == dev && b.refcnt == 0 {
				b.valid = false
			}
		}
		c.buckets[i].mu.Unlock()
	}
}

// Stats returns cumulative cache counters.
func (c *Cache) Stats() api.CacheStats {
	return api.CacheStats{
		Buffers:   len(c.bufs),
		Buckets:   len(c.buckets),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Relinks:   c.relinks.Load(),
	}
}
