package facade

import (
	"bytes"
	"testing"

	"github.com/momentics/kcore/internal/blockdev"
)

func TestEndToEnd(t *testing.T) {
	dev := blockdev.New(1, 64)
	core, err := New(dev,
		WithBufferCount(8),
		WithBucketCount(7),
		WithPhysPages(32),
		WithKernelPages(8),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer core.Close()

	bc := core.Cache()
	b := bc.Read(0, 11)
	copy(b.Data(), "facade")
	bc.Write(b)
	bc.Release(b)

	b = bc.Read(0, 11)
	if !bytes.Equal(b.Data()[:6], []byte("facade")) {
		t.Errorf("payload %q", b.Data()[:6])
	}
	bc.Release(b)

	pm := core.Mem()
	id, ok := pm.Alloc()
	if !ok {
		t.Fatal("allocator empty after init")
	}
	pm.Free(id)

	core.SyncMetrics()
	snap := core.Metrics().GetSnapshot()
	if snap["cache.hits"].(uint64) != 1 {
		t.Errorf("cache.hits = %v", snap["cache.hits"])
	}
	if snap["mem.allocs"].(uint64) != 1 {
		t.Errorf("mem.allocs = %v", snap["mem.allocs"])
	}

	state := core.Debug().DumpState()
	if _, ok := state["cache"]; !ok {
		t.Error("missing cache probe")
	}
	if _, ok := state["mem"]; !ok {
		t.Error("missing mem probe")
	}
}

func TestConfigValidation(t *testing.T) {
	dev := blockdev.New(1, 8)

	if _, err := New(nil); err == nil {
		t.Error("nil device accepted")
	}
	if _, err := New(dev, WithBufferCount(0)); err == nil {
		t.Error("zero buffers accepted")
	}
	if _, err := New(dev, WithPhysPages(4), WithKernelPages(4)); err == nil {
		t.Error("fully reserved memory accepted")
	}
}

func TestDisabledObservability(t *testing.T) {
	dev := blockdev.New(1, 8)
	core, err := New(dev, WithMetrics(false), WithDebug(false),
		WithPhysPages(16), WithKernelPages(4))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer core.Close()

	if core.Metrics() != nil {
		t.Error("metrics registry present while disabled")
	}
	if core.Debug() != nil {
		t.Error("debug probes present while disabled")
	}
	core.SyncMetrics() // must not panic
}
