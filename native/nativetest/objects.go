package nativetest

import (
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpuhal/native"
)

// object is the common part of every fake native object.
type object struct {
	dev      *Device
	kind     string
	label    string
	id       int
	released bool
}

// Release implements native.Resource.
func (o *object) Release() {
	if o.dev == nil {
		return
	}
	o.dev.mu.Lock()
	defer o.dev.mu.Unlock()
	if o.released {
		return
	}
	o.released = true
	o.dev.released[o.kind]++
}

// Label returns the debug label the object was created with.
func (o *object) Label() string { return o.label }

// ID returns a device-unique creation sequence number.
func (o *object) ID() int { return o.id }

// IsReleased reports whether Release was called.
func (o *object) IsReleased() bool {
	o.dev.mu.Lock()
	defer o.dev.mu.Unlock()
	return o.released
}

// Buffer is a fake native.Buffer backed by host memory.
type Buffer struct {
	object
	Desc native.BufferDescriptor

	mu      sync.Mutex
	data    []byte
	mapped  bool
	pending bool
}

// Size implements native.Buffer.
func (b *Buffer) Size() uint64 { return b.Desc.Size }

// Bytes returns a copy of the buffer contents.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.data...)
}

// MapAsync implements native.Buffer.
func (b *Buffer) MapAsync(mode gputypes.MapMode, offset, size uint64, cb func(native.MapStatus)) {
	b.mu.Lock()
	if b.mapped || b.pending {
		b.mu.Unlock()
		cb(native.MapStatusMappingAlreadyPending)
		return
	}
	if offset+size > uint64(len(b.data)) {
		b.mu.Unlock()
		cb(native.MapStatusValidationError)
		return
	}
	b.pending = true
	b.mu.Unlock()

	d := b.dev
	d.mu.Lock()
	d.maps = append(d.maps, &pendingMap{buf: b, mode: mode, off: offset, size: size, cb: cb, ready: !d.hold})
	d.calls = append(d.calls, "MapAsync("+b.label+")")
	d.mu.Unlock()
}

func (b *Buffer) completeMap(m *pendingMap, lost bool) {
	released := b.IsReleased()
	b.mu.Lock()
	b.pending = false
	status := native.MapStatusSuccess
	switch {
	case lost:
		status = native.MapStatusDeviceLost
	case released:
		status = native.MapStatusDestroyedBeforeCallback
	default:
		b.mapped = true
	}
	b.mu.Unlock()
	m.cb(status)
}

// MappedRange implements native.Buffer.
func (b *Buffer) MappedRange(offset, size uint64) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.mapped || offset+size > uint64(len(b.data)) {
		return nil
	}
	return b.data[offset : offset+size]
}

// Unmap implements native.Buffer.
func (b *Buffer) Unmap() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mapped = false
}

// IsMapped reports whether the buffer is currently mapped.
func (b *Buffer) IsMapped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mapped
}

func (b *Buffer) write(offset uint64, src []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	copy(b.data[offset:], src)
}

func (b *Buffer) read(offset, size uint64) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.data[offset:offset+size]...)
}

// Texture is a fake native.Texture.
type Texture struct {
	object
	Desc native.TextureDescriptor
}

// TextureView is a fake native.TextureView.
type TextureView struct {
	object
	Texture *Texture
	Desc    native.TextureViewDescriptor
}

// Sampler is a fake native.Sampler.
type Sampler struct {
	object
	Desc native.SamplerDescriptor
}

// BindGroupLayout is a fake native.BindGroupLayout.
type BindGroupLayout struct {
	object
	Entries []gputypes.BindGroupLayoutEntry
}

// BindGroup is a fake native.BindGroup.
type BindGroup struct {
	object
	Layout  native.BindGroupLayout
	Entries []native.BindGroupEntry
}

// PipelineLayout is a fake native.PipelineLayout.
type PipelineLayout struct {
	object
	BindGroupLayouts []native.BindGroupLayout
}

// ShaderModule is a fake native.ShaderModule holding its SPIR-V.
type ShaderModule struct {
	object
	Words []uint32
}

// RenderPipeline is a fake native.RenderPipeline.
type RenderPipeline struct {
	object
	Desc native.RenderPipelineDescriptor
}

// ComputePipeline is a fake native.ComputePipeline.
type ComputePipeline struct {
	object
	Desc native.ComputePipelineDescriptor
}

// CommandBuffer is a fake native.CommandBuffer holding deferred copies.
type CommandBuffer struct {
	object
	ops []func()
}

// labelOf returns the debug label of a fake object, or "?".
func labelOf(r any) string {
	if l, ok := r.(interface{ Label() string }); ok {
		return l.Label()
	}
	return "?"
}
