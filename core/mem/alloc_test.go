package mem

import (
	"sync"
	"testing"

	"github.com/momentics/kcore/api"
)

func expectFault(t *testing.T, op string, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Fatalf("%s: expected fault, got none", op)
		}
		if _, ok := r.(*api.Fault); !ok {
			t.Fatalf("%s: expected *api.Fault, got %v", op, r)
		}
	}()
	fn()
}

func newTestAllocator(t *testing.T, pages, kernelPages int) *Allocator {
	t.Helper()
	a, err := New(pages, kernelPages)
	if err != nil {
		t.Fatalf("New(%d, %d): %v", pages, kernelPages, err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestAllocRefcountAndJunkFill(t *testing.T) {
	a := newTestAllocator(t, 16, 8)

	id, ok := a.Alloc()
	if !ok {
		t.Fatal("allocation failed with a seeded free list")
	}
	if n := a.AddRef(id, 0); n != 1 {
		t.Errorf("fresh page refcount = %d, want 1", n)
	}
	for i, v := range a.Bytes(id) {
		if v != allocJunk {
			t.Fatalf("byte %d = %#x, want alloc junk %#x", i, v, allocJunk)
		}
	}
	a.Free(id)
}

// Seeding frees frames in ascending order, so allocation pops them in
// descending (LIFO) order.
func TestSeedingLIFOOrder(t *testing.T) {
	a := newTestAllocator(t, 10, 8)

	first, ok := a.Alloc()
	if !ok || first != 9 {
		t.Errorf("first alloc = %d (ok=%v), want frame 9", first, ok)
	}
	second, ok := a.Alloc()
	if !ok || second != 8 {
		t.Errorf("second alloc = %d (ok=%v), want frame 8", second, ok)
	}
	if _, ok := a.Alloc(); ok {
		t.Error("allocation succeeded with an empty free list")
	}
}

func TestExhaustionIsNotFatal(t *testing.T) {
	a := newTestAllocator(t, 9, 8)

	id, ok := a.Alloc()
	if !ok {
		t.Fatal("single seeded frame should allocate")
	}
	if _, ok := a.Alloc(); ok {
		t.Error("empty free list must report absence, got a page")
	}
	a.Free(id)
	if _, ok := a.Alloc(); !ok {
		t.Error("freed frame should be allocatable again")
	}
}

func TestDoubleFreeFaults(t *testing.T) {
	a := newTestAllocator(t, 16, 8)

	id, _ := a.Alloc()
	a.Free(id)
	expectFault(t, "double free", func() { a.Free(id) })
}

func TestFreeValidation(t *testing.T) {
	a := newTestAllocator(t, 16, 8)

	expectFault(t, "kernel frame", func() { a.Free(3) })
	expectFault(t, "past top", func() { a.Free(16) })
	expectFault(t, "unaligned", func() { a.FreeAddr(8*api.PageSize + 1) })
}

// A shared page survives its first free and is reclaimed on the last.
func TestSharedPageFreeing(t *testing.T) {
	a := newTestAllocator(t, 10, 8)

	p, _ := a.Alloc()
	q, _ := a.Alloc()

	if n := a.AddRef(p, 1); n != 2 {
		t.Fatalf("refcount after share = %d, want 2", n)
	}
	a.Free(p)
	if n := a.AddRef(p, 0); n != 1 {
		t.Errorf("refcount after first free = %d, want 1", n)
	}
	if _, ok := a.Alloc(); ok {
		t.Error("shared page reached the free list while still referenced")
	}
	a.Free(p)
	if id, ok := a.Alloc(); !ok || id != p {
		t.Errorf("final free should recycle frame %d, got %d (ok=%v)", p, id, ok)
	}
	a.Free(q)
}

func TestFreeScrubsPage(t *testing.T) {
	a := newTestAllocator(t, 9, 8)

	id, _ := a.Alloc()
	a.Free(id)

	// The first 8 bytes carry the free-list link; the rest must hold
	// the free junk pattern, distinct from the alloc fill.
	for i, v := range a.Bytes(id)[8:] {
		if v != freeJunk {
			t.Fatalf("byte %d = %#x, want free junk %#x", i+8, v, freeJunk)
		}
	}
}

func TestAddrRoundTrip(t *testing.T) {
	a := newTestAllocator(t, 16, 8)

	id, _ := a.Alloc()
	off := a.Addr(id)
	if off != uintptr(id)*api.PageSize {
		t.Fatalf("Addr(%d) = %#x", id, off)
	}
	a.FreeAddr(off)
	expectFault(t, "double free via addr", func() { a.FreeAddr(off) })
}

func TestStatsAccounting(t *testing.T) {
	a := newTestAllocator(t, 12, 8)

	st := a.Stats()
	if st.TotalPages != 12 || st.FreePages != 4 {
		t.Fatalf("fresh stats %+v", st)
	}
	id, _ := a.Alloc()
	if st := a.Stats(); st.FreePages != 3 || st.Allocs != 1 {
		t.Errorf("after alloc %+v", st)
	}
	a.Free(id)
	// Seeding performs one free per seeded frame.
	if st := a.Stats(); st.FreePages != 4 || st.Frees != 5 {
		t.Errorf("after free %+v", st)
	}
}

func TestBadGeometry(t *testing.T) {
	if _, err := New(0, 0); err == nil {
		t.Error("zero geometry accepted")
	}
	if _, err := New(8, 8); err == nil {
		t.Error("fully reserved arena accepted")
	}
	if _, err := New(8, -1); err == nil {
		t.Error("negative reservation accepted")
	}
}

func TestConcurrentAllocFree(t *testing.T) {
	a := newTestAllocator(t, 64+8, 8)

	const workers = 8
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			held := make([]PageID, 0, 8)
			for i := 0; i < 200; i++ {
				if id, ok := a.Alloc(); ok {
					held = append(held, id)
				}
				if len(held) == cap(held) || (i%3 == 0 && len(held) > 0) {
					a.Free(held[len(held)-1])
					held = held[:len(held)-1]
				}
			}
			for _, id := range held {
				a.Free(id)
			}
		}()
	}
	wg.Wait()

	if st := a.Stats(); st.FreePages != 64 {
		t.Errorf("pages leaked: %d free of 64", st.FreePages)
	}
}
