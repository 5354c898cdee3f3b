// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package webgpu

import (
	"fmt"

	"github.com/gogpu/gpuhal"
)

// DefaultMaxFramesInFlight is the frame ring size used when no option sets it.
const DefaultMaxFramesInFlight = 2

type frameSlot struct {
	ctx   *CommandContext
	fence *Fence
}

// FrameRing bounds the number of frames the CPU records ahead of the GPU.
//
// Each of the K slots owns a command context and the fence of the last
// frame submitted from it. Beginning frame n reuses slot n mod K and first
// waits for that slot's fence, so at most K frames are in flight.
//
// FrameRing is NOT safe for concurrent use.
type FrameRing struct {
	slots   []frameSlot
	current int
}

// NewFrameRing creates a ring of k slots with one command context each.
func NewFrameRing(d *Device, k int) *FrameRing {
	if k < 1 {
		gpuhal.Fatalf("NewFrameRing", "ring size %d, want at least 1", k)
	}
	r := &FrameRing{slots: make([]frameSlot, k), current: -1}
	for i := range r.slots {
		r.slots[i].ctx = newCommandContext(d, fmt.Sprintf("frame%d", i))
	}
	return r
}

// Len returns the number of slots.
func (r *FrameRing) Len() int { return len(r.slots) }

// Begin selects the slot of frame, waits for and drops the slot's previous
// fence, and returns the slot's command context.
func (r *FrameRing) Begin(frame uint64) *CommandContext {
	r.current = int(frame % uint64(len(r.slots)))
	s := &r.slots[r.current]
	if s.fence != nil {
		s.fence.Wait()
		s.fence.Deref()
		s.fence = nil
	}
	return s.ctx
}

// End stores the fence of the frame begun last.
func (r *FrameRing) End(f *Fence) {
	if r.current < 0 {
		gpuhal.Fatalf("FrameRing.End", "no frame begun")
	}
	s := &r.slots[r.current]
	if s.fence != nil {
		gpuhal.Fatalf("FrameRing.End", "slot %d already holds fence %d", r.current, s.fence.seq)
	}
	s.fence = f
}

// InFlight returns the number of slots holding a fence.
func (r *FrameRing) InFlight() int {
	n := 0
	for _, s := range r.slots {
		if s.fence != nil {
			n++
		}
	}
	return n
}

// Drain waits for and drops every held fence.
func (r *FrameRing) Drain() {
	for i := range r.slots {
		s := &r.slots[i]
		if s.fence != nil {
			s.fence.Wait()
			s.fence.Deref()
			s.fence = nil
		}
	}
}

// release drains the ring and resets every context.
func (r *FrameRing) release() {
	r.Drain()
	for _, s := range r.slots {
		s.ctx.Reset()
	}
}
