package webgpu

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpuhal"
	"github.com/gogpu/gpuhal/native"
)

// Buffer is the record behind a gpuhal.BufferHandle.
//
// The record is reference counted: the owner holds one reference and every
// pending readback holds another, so a buffer destroyed while its readback
// is in flight stays alive until the map callback has run.
//
// Thread Safety:
// The CPU shadow is guarded by mu. Map callbacks write it from the goroutine
// pumping native events while the engine may read it.
type Buffer struct {
	dev    *Device
	native native.Buffer
	label  string
	size   uint64
	usage  gpuhal.BufferUsage

	refs      atomic.Int32
	destroyed atomic.Bool

	mu          sync.Mutex
	shadow      []byte
	shadowValid bool
}

// Native returns the native buffer.
func (b *Buffer) Native() native.Buffer { return b.native }

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Label returns the debug label.
func (b *Buffer) Label() string { return b.label }

// IsReadback reports whether the buffer keeps a CPU shadow.
func (b *Buffer) IsReadback() bool { return b.usage&gpuhal.BufferUsageReadback != 0 }

func (b *Buffer) ref() { b.refs.Add(1) }

// deref drops one reference. The last reference releases the native buffer
// and returns the record to the pool.
func (b *Buffer) deref() {
	switch n := b.refs.Add(-1); {
	case n == 0:
		b.native.Release()
		b.dev.buffers.Delete(b)
	case n < 0:
		gpuhal.Fatalf("Buffer.deref", "buffer %q released more often than referenced", b.label)
	}
}

// Readback copies the CPU shadow. ok is false until a readback has completed.
func (b *Buffer) Readback() (data []byte, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.shadowValid {
		return nil, false
	}
	return append([]byte(nil), b.shadow...), true
}

// mapRead issues the fire-and-forget readback map. The callback copies the
// mapped range into the shadow, unmaps, and drops the reference taken by
// AddReadbackBuffer whatever the status.
func (b *Buffer) mapRead() {
	b.native.MapAsync(gputypes.MapModeRead, 0, b.size, func(status native.MapStatus) {
		defer b.deref()
		if status != native.MapStatusSuccess {
			b.dev.log.Warn("webgpu: readback map failed", "buffer", b.label, "status", status)
			return
		}
		data := b.native.MappedRange(0, b.size)
		b.mu.Lock()
		copy(b.shadow, data)
		b.shadowValid = true
		b.mu.Unlock()
		b.native.Unmap()
	})
}

// nativeBufferUsage translates engine usage flags.
//
// Mappable buffers may only be copy destinations on WebGPU, so a readback
// buffer drops every other usage with a warning.
func nativeBufferUsage(u gpuhal.BufferUsage, label string, log *slog.Logger) gputypes.BufferUsage {
	if u&gpuhal.BufferUsageReadback != 0 {
		if extra := u &^ (gpuhal.BufferUsageReadback | gpuhal.BufferUsageTransferDst); extra != 0 {
			log.Warn("webgpu: readback buffer usage restricted to copy destination",
				"buffer", label, "dropped", fmt.Sprintf("%#x", uint32(extra)))
		}
		return gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst
	}

	// Queue writes land through CopyDst, so every non-readback buffer gets it.
	out := gputypes.BufferUsageCopyDst
	for _, m := range []struct {
		from gpuhal.BufferUsage
		to   gputypes.BufferUsage
	}{
		{gpuhal.BufferUsageVertex, gputypes.BufferUsageVertex},
		{gpuhal.BufferUsageIndex, gputypes.BufferUsageIndex},
		{gpuhal.BufferUsageUniform, gputypes.BufferUsageUniform},
		{gpuhal.BufferUsageStorage, gputypes.BufferUsageStorage},
		{gpuhal.BufferUsageIndirect, gputypes.BufferUsageIndirect},
		{gpuhal.BufferUsageTransferSrc, gputypes.BufferUsageCopySrc},
	} {
		if u&m.from != 0 {
			out |= m.to
		}
	}
	return out
}

// =============================================================================
// Device operations
// =============================================================================

// CreateBuffer implements gpuhal.Device.
func (d *Device) CreateBuffer(desc *gpuhal.BufferDescriptor) (gpuhal.BufferHandle, error) {
	if err := d.checkAlive(); err != nil {
		return 0, err
	}
	if desc == nil || desc.Size == 0 {
		return 0, fmt.Errorf("%w: buffer size must be positive", ErrInvalidDescriptor)
	}
	label := d.label(desc.Label, "buffer")
	nb, err := d.nd.CreateBuffer(&native.BufferDescriptor{
		Label: label,
		Size:  desc.Size,
		Usage: nativeBufferUsage(desc.Usage, label, d.log),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: buffer %q: %w", ErrCreateFailed, label, err)
	}

	b, h := d.buffers.New()
	b.dev = d
	b.native = nb
	b.label = label
	b.size = desc.Size
	b.usage = desc.Usage
	b.refs.Store(1)
	if b.IsReadback() {
		b.shadow = make([]byte, desc.Size)
	}
	d.log.Debug("webgpu: buffer created", "label", label, "size", desc.Size, "handle", h)
	return gpuhal.BufferHandle(h), nil
}

// DestroyBuffer implements gpuhal.Device. The native buffer is released once
// no readback references it.
func (d *Device) DestroyBuffer(h gpuhal.BufferHandle) {
	if h.IsNil() {
		return
	}
	b := d.buffer("DestroyBuffer", h)
	b.destroyed.Store(true)
	b.deref()
}

// ReadbackData implements gpuhal.Device.
func (d *Device) ReadbackData(h gpuhal.BufferHandle) ([]byte, bool) {
	b := d.buffer("ReadbackData", h)
	if !b.IsReadback() {
		gpuhal.Fatalf("ReadbackData", "buffer %q was not created with BufferUsageReadback", b.label)
	}
	return b.Readback()
}

// buffer resolves a live buffer handle or aborts.
func (d *Device) buffer(op string, h gpuhal.BufferHandle) *Buffer {
	b := d.buffers.MustGet(op, gpuhal.Handle(h))
	if b.destroyed.Load() {
		gpuhal.Fatalf(op, "buffer %q used after DestroyBuffer", b.label)
	}
	return b
}
