package webgpu

import (
	"sync"
	"testing"

	"github.com/gogpu/gpuhal"
)

type testRecord struct {
	id    int
	label string
}

func TestObjectPool_NewGet(t *testing.T) {
	p := NewObjectPool[testRecord](4)

	r, h := p.New()
	if h.IsNil() {
		t.Fatal("New() returned the nil handle")
	}
	r.id = 7

	got, ok := p.Get(h)
	if !ok || got != r {
		t.Fatalf("Get(%s) = %p, %v; want %p, true", h, got, ok, r)
	}
	if got.id != 7 {
		t.Errorf("record id = %d, want 7", got.id)
	}
	if p.Live() != 1 {
		t.Errorf("Live() = %d, want 1", p.Live())
	}
	if _, ok := p.Get(0); ok {
		t.Error("Get(nil handle) = ok, want false")
	}
	if _, ok := p.Get(gpuhal.MakeHandle(100, 0)); ok {
		t.Error("Get(never issued) = ok, want false")
	}
}

func TestObjectPool_StaleHandle(t *testing.T) {
	p := NewObjectPool[testRecord](4)

	r, old := p.New()
	r.label = "first"
	p.Delete(r)

	if _, ok := p.Get(old); ok {
		t.Fatal("Get(deleted handle) = ok, want false")
	}

	// The freed slot is reused with a new generation.
	r2, h2 := p.New()
	if h2.Slot() != old.Slot() {
		t.Fatalf("slot not reused: got %d, want %d", h2.Slot(), old.Slot())
	}
	if h2.Generation() == old.Generation() {
		t.Error("generation not bumped on reuse")
	}
	if r2.label != "" {
		t.Errorf("reused record not zeroed: label = %q", r2.label)
	}
	if _, ok := p.Get(old); ok {
		t.Error("old handle resolves to the slot's new occupant")
	}

	expectFatalContains(t, func() { p.MustGet("Test", old) }, "stale")
}

func TestObjectPool_StableAddresses(t *testing.T) {
	p := NewObjectPool[testRecord](2)

	first, h := p.New()
	first.id = 1
	for i := 0; i < 50; i++ {
		p.New()
	}
	if got, _ := p.Get(h); got != first {
		t.Errorf("record moved after growth: %p != %p", got, first)
	}
	if p.Capacity() != 52 {
		t.Errorf("Capacity() = %d, want 52", p.Capacity())
	}
}

func TestObjectPool_DeleteFatal(t *testing.T) {
	p := NewObjectPool[testRecord](4)
	r, _ := p.New()
	p.Delete(r)

	t.Run("double delete", func(t *testing.T) {
		expectFatalContains(t, func() { p.Delete(r) }, "deleted twice")
	})
	t.Run("foreign pointer", func(t *testing.T) {
		expectFatalContains(t, func() { p.Delete(&testRecord{}) }, "not owned")
	})
}

func TestObjectPool_DeleteHandle(t *testing.T) {
	p := NewObjectPool[testRecord](4)
	_, h := p.New()

	if !p.DeleteHandle(h) {
		t.Fatal("DeleteHandle(live) = false, want true")
	}
	if p.DeleteHandle(h) {
		t.Error("DeleteHandle(stale) = true, want false")
	}
	if p.DeleteHandle(0) {
		t.Error("DeleteHandle(nil) = true, want false")
	}
}

func TestObjectPool_HandleLookup(t *testing.T) {
	p := NewObjectPool[testRecord](4)
	r, h := p.New()

	if got, ok := p.Handle(r); !ok || got != h {
		t.Errorf("Handle() = %s, %v; want %s, true", got, ok, h)
	}
	p.Delete(r)
	if _, ok := p.Handle(r); ok {
		t.Error("Handle(deleted) = ok, want false")
	}
}

func TestObjectPool_RangeAndClear(t *testing.T) {
	p := NewObjectPool[testRecord](3)
	var handles []gpuhal.Handle
	for i := 0; i < 5; i++ {
		r, h := p.New()
		r.id = i
		handles = append(handles, h)
	}
	p.DeleteHandle(handles[1])

	sum := 0
	p.Range(func(h gpuhal.Handle, r *testRecord) bool {
		sum += r.id
		// Deleting from inside Range must not deadlock.
		p.Delete(r)
		return true
	})
	if sum != 0+2+3+4 {
		t.Errorf("Range visited ids summing to %d, want 9", sum)
	}
	if p.Live() != 0 {
		t.Errorf("Live() after deleting in Range = %d, want 0", p.Live())
	}

	for i := 0; i < 3; i++ {
		p.New()
	}
	p.Clear()
	if p.Live() != 0 {
		t.Errorf("Live() after Clear = %d, want 0", p.Live())
	}
}

func TestObjectPool_Concurrent(t *testing.T) {
	p := NewObjectPool[testRecord](8)
	const workers, perWorker = 8, 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				r, h := p.New()
				r.id = w
				if got, ok := p.Get(h); !ok || got.id != w {
					t.Errorf("Get() = %v, %v; want id %d", got, ok, w)
					return
				}
				p.Delete(r)
			}
		}(w)
	}
	wg.Wait()

	if p.Live() != 0 {
		t.Errorf("Live() = %d, want 0", p.Live())
	}
}
