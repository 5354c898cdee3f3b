// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package halnative

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpuhal/native"
)

// handle owns one HAL object. Release hands the object to the device's
// release queue, which destroys it after the last submission completes.
type handle[T any] struct {
	dev      *Device
	label    string
	raw      T
	destroy  func(hal.Device, T)
	released atomic.Bool
}

func (h *handle[T]) init(d *Device, label string, raw T, destroy func(hal.Device, T)) {
	h.dev = d
	h.label = label
	h.raw = raw
	h.destroy = destroy
}

// Release implements native.Resource.
func (h *handle[T]) Release() {
	if h.released.Swap(true) {
		return
	}
	h.dev.deferRelease(func() { h.destroy(h.dev.raw, h.raw) })
}

// Label returns the debug label given at creation.
func (h *handle[T]) Label() string { return h.label }

// Native object wrappers.
type (
	Texture         struct{ handle[hal.Texture] }
	TextureView     struct{ handle[hal.TextureView] }
	Sampler         struct{ handle[hal.Sampler] }
	BindGroupLayout struct{ handle[hal.BindGroupLayout] }
	BindGroup       struct{ handle[hal.BindGroup] }
	PipelineLayout  struct{ handle[hal.PipelineLayout] }
	ShaderModule    struct{ handle[hal.ShaderModule] }
	RenderPipeline  struct{ handle[hal.RenderPipeline] }
	ComputePipeline struct{ handle[hal.ComputePipeline] }
)

// Objects passed back into a Device must come from the same package;
// the conversions below panic on foreign implementations.

func rawBuffer(b native.Buffer) hal.Buffer {
	if b == nil {
		return nil
	}
	return b.(*Buffer).raw
}

func rawTexture(t native.Texture) hal.Texture {
	if t == nil {
		return nil
	}
	return t.(*Texture).raw
}

func rawView(v native.TextureView) hal.TextureView {
	if v == nil {
		return nil
	}
	return v.(*TextureView).raw
}

type mapState int

const (
	mapIdle mapState = iota
	mapPending
	mapMapped
)

// Buffer implements native.Buffer. Mapping resolves through
// hal.Device.MapBuffer once the submission index recorded by MapAsync
// has completed.
type Buffer struct {
	handle[hal.Buffer]
	size uint64

	mu      sync.Mutex
	state   mapState
	ptr     unsafe.Pointer
	mapOff  uint64
	mapSize uint64
}

// Size implements native.Buffer.
func (b *Buffer) Size() uint64 { return b.size }

// MapAsync implements native.Buffer.
func (b *Buffer) MapAsync(_ gputypes.MapMode, offset, size uint64, cb func(native.MapStatus)) {
	b.mu.Lock()
	if b.state != mapIdle {
		b.mu.Unlock()
		cb(native.MapStatusMappingAlreadyPending)
		return
	}
	if offset+size > b.size {
		b.mu.Unlock()
		cb(native.MapStatusValidationError)
		return
	}
	b.state = mapPending
	b.mu.Unlock()

	d := b.dev
	d.mu.Lock()
	d.maps = append(d.maps, &pendingMap{buf: b, off: offset, size: size, index: d.submitted, cb: cb})
	d.mu.Unlock()
}

func (b *Buffer) completeMap(m *pendingMap, lost bool) {
	b.mu.Lock()
	var status native.MapStatus
	switch {
	case b.state != mapPending:
		status = native.MapStatusUnmappedBeforeCallback
	case lost:
		b.state = mapIdle
		status = native.MapStatusDeviceLost
	case b.released.Load():
		b.state = mapIdle
		status = native.MapStatusDestroyedBeforeCallback
	default:
		mapping, err := b.dev.raw.MapBuffer(b.raw, m.off, m.size)
		if err != nil {
			b.state = mapIdle
			status = native.MapStatusValidationError
			b.dev.log.Error("halnative: map buffer", "label", b.label, "err", err)
			break
		}
		b.state = mapMapped
		b.ptr = mapping.Ptr
		b.mapOff = m.off
		b.mapSize = m.size
	}
	b.mu.Unlock()
	m.cb(status)
}

// MappedRange implements native.Buffer.
func (b *Buffer) MappedRange(offset, size uint64) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != mapMapped || offset < b.mapOff || offset+size > b.mapOff+b.mapSize {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Add(b.ptr, offset-b.mapOff)), size)
}

// Unmap implements native.Buffer. A pending map completes with
// MapStatusUnmappedBeforeCallback.
func (b *Buffer) Unmap() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == mapMapped {
		b.dev.check("UnmapBuffer", b.dev.raw.UnmapBuffer(b.raw))
		b.ptr = nil
	}
	b.state = mapIdle
}

// Release implements native.Resource. A mapped buffer is unmapped first.
func (b *Buffer) Release() {
	if b.released.Swap(true) {
		return
	}
	b.dev.deferRelease(func() {
		b.mu.Lock()
		if b.state == mapMapped {
			_ = b.dev.raw.UnmapBuffer(b.raw)
			b.state = mapIdle
		}
		b.mu.Unlock()
		b.dev.raw.DestroyBuffer(b.raw)
	})
}

var (
	_ native.Buffer          = (*Buffer)(nil)
	_ native.Texture         = (*Texture)(nil)
	_ native.TextureView     = (*TextureView)(nil)
	_ native.Sampler         = (*Sampler)(nil)
	_ native.BindGroupLayout = (*BindGroupLayout)(nil)
	_ native.BindGroup       = (*BindGroup)(nil)
	_ native.PipelineLayout  = (*PipelineLayout)(nil)
	_ native.ShaderModule    = (*ShaderModule)(nil)
	_ native.RenderPipeline  = (*RenderPipeline)(nil)
	_ native.ComputePipeline = (*ComputePipeline)(nil)
)
