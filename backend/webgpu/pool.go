// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package webgpu

import (
	"sync"

	"github.com/gogpu/gpuhal"
)

// DefaultPoolBlockSize is the number of records per pool block.
const DefaultPoolBlockSize = 64

// ObjectPool allocates records of type T from fixed-size blocks.
//
// Blocks are never reallocated, so a record's address is stable from New
// until Delete. Every slot carries a generation that Delete increments:
// handles issued before the delete fail Get afterwards instead of aliasing
// the slot's next occupant.
//
// Thread Safety:
// ObjectPool is safe for concurrent use. One mutex guards all state.
//
// Usage:
//
//	pool := NewObjectPool[Buffer](0)
//	buf, h := pool.New()
//	// fill buf...
//	if b, ok := pool.Get(h); ok {
//	    // use b
//	}
//	pool.Delete(buf)
type ObjectPool[T any] struct {
	mu        sync.Mutex
	blockSize int
	blocks    [][]poolSlot[T]
	used      int // slots handed out at least once
	free      []uint32
	index     map[*T]uint32
	live      int
}

type poolSlot[T any] struct {
	value      T
	generation uint32
	inUse      bool
}

// NewObjectPool creates an empty pool. A blockSize of zero or less selects
// DefaultPoolBlockSize.
func NewObjectPool[T any](blockSize int) *ObjectPool[T] {
	if blockSize <= 0 {
		blockSize = DefaultPoolBlockSize
	}
	return &ObjectPool[T]{
		blockSize: blockSize,
		index:     make(map[*T]uint32),
	}
}

func (p *ObjectPool[T]) slotLocked(i uint32) *poolSlot[T] {
	return &p.blocks[int(i)/p.blockSize][int(i)%p.blockSize]
}

// New returns a zeroed record and its handle.
func (p *ObjectPool[T]) New() (*T, gpuhal.Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var i uint32
	if n := len(p.free); n > 0 {
		i = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		if p.used == len(p.blocks)*p.blockSize {
			p.blocks = append(p.blocks, make([]poolSlot[T], p.blockSize))
		}
		i = uint32(p.used) //nolint:gosec // pools stay far below 2^32 slots
		p.used++
	}
	s := p.slotLocked(i)
	s.inUse = true
	p.index[&s.value] = i
	p.live++
	return &s.value, gpuhal.MakeHandle(i, s.generation)
}

// Get resolves a handle. It returns false for the zero handle, for handles
// this pool never issued, and for handles whose record was deleted.
func (p *ObjectPool[T]) Get(h gpuhal.Handle) (*T, bool) {
	if h.IsNil() {
		return nil, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	i := h.Slot()
	if int(i) >= p.used {
		return nil, false
	}
	s := p.slotLocked(i)
	if !s.inUse || s.generation != h.Generation() {
		return nil, false
	}
	return &s.value, true
}

// MustGet resolves a handle and aborts on a stale or foreign handle.
func (p *ObjectPool[T]) MustGet(op string, h gpuhal.Handle) *T {
	v, ok := p.Get(h)
	if !ok {
		gpuhal.Fatalf(op, "invalid or stale handle %s", h)
	}
	return v
}

// Handle returns the current handle of a live record.
func (p *ObjectPool[T]) Handle(v *T) (gpuhal.Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i, ok := p.index[v]
	if !ok {
		return 0, false
	}
	s := p.slotLocked(i)
	if !s.inUse {
		return 0, false
	}
	return gpuhal.MakeHandle(i, s.generation), true
}

// Delete zeroes the record and returns its slot to the pool.
//
// Deleting a pointer the pool did not hand out, or deleting a record twice,
// is a contract violation.
func (p *ObjectPool[T]) Delete(v *T) {
	p.mu.Lock()
	i, ok := p.index[v]
	if !ok {
		p.mu.Unlock()
		gpuhal.Fatalf("ObjectPool.Delete", "pointer %p is not owned by this pool", v)
		return
	}
	s := p.slotLocked(i)
	if !s.inUse {
		p.mu.Unlock()
		gpuhal.Fatalf("ObjectPool.Delete", "record in slot %d deleted twice", i)
		return
	}
	p.releaseLocked(i, s)
	p.mu.Unlock()
}

// DeleteHandle deletes the record h refers to. It reports false, without
// aborting, when h is nil or stale.
func (p *ObjectPool[T]) DeleteHandle(h gpuhal.Handle) bool {
	if h.IsNil() {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	i := h.Slot()
	if int(i) >= p.used {
		return false
	}
	s := p.slotLocked(i)
	if !s.inUse || s.generation != h.Generation() {
		return false
	}
	p.releaseLocked(i, s)
	return true
}

func (p *ObjectPool[T]) releaseLocked(i uint32, s *poolSlot[T]) {
	var zero T
	s.value = zero
	s.inUse = false
	s.generation++
	p.free = append(p.free, i)
	p.live--
}

// Live returns the number of records currently allocated.
func (p *ObjectPool[T]) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

// Capacity returns the number of slots across all blocks.
func (p *ObjectPool[T]) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.blocks) * p.blockSize
}

// Range calls fn for every live record until fn returns false.
// fn runs without the pool lock held, on a snapshot taken at the call, so
// it may delete records.
func (p *ObjectPool[T]) Range(fn func(h gpuhal.Handle, v *T) bool) {
	type entry struct {
		h gpuhal.Handle
		v *T
	}
	p.mu.Lock()
	snapshot := make([]entry, 0, p.live)
	for i := 0; i < p.used; i++ {
		s := p.slotLocked(uint32(i)) //nolint:gosec // bounded by used
		if s.inUse {
			snapshot = append(snapshot, entry{gpuhal.MakeHandle(uint32(i), s.generation), &s.value}) //nolint:gosec // bounded by used
		}
	}
	p.mu.Unlock()

	for _, e := range snapshot {
		if !fn(e.h, e.v) {
			return
		}
	}
}

// Clear deletes every live record. Blocks are kept for reuse.
func (p *ObjectPool[T]) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < p.used; i++ {
		if s := p.slotLocked(uint32(i)); s.inUse { //nolint:gosec // bounded by used
			p.releaseLocked(uint32(i), s) //nolint:gosec // bounded by used
		}
	}
}
