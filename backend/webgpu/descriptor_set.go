package webgpu

import (
	"fmt"

	"github.com/gogpu/gpuhal"
	"github.com/gogpu/gpuhal/native"
)

// DescriptorSet is the record behind a gpuhal.DescriptorSetHandle.
//
// Entry slots are preallocated from the layout's active bindings. Writes
// only update the slots; the native bind group is rebuilt lazily the next
// time the set is bound after a change.
type DescriptorSet struct {
	nd      native.Device
	label   string
	layout  *CachedLayout
	entries []native.BindGroupEntry
	written []bool
	group   native.BindGroup
	dirty   bool
	builds  int
}

// Layout returns the cached layout the set was created from.
func (s *DescriptorSet) Layout() *CachedLayout { return s.layout }

// slot returns the entry index of binding, aborting when the layout does
// not declare it or declares it with another resource kind.
func (s *DescriptorSet) slot(op string, binding uint32, want string, ok func(gpuhal.BindingType) bool) int {
	i, found := s.layout.Index(binding)
	if !found {
		gpuhal.Fatalf(op, "descriptor set %q has no binding %d (layout declares %v)",
			s.label, binding, s.layout.ActiveBindings)
	}
	if t := s.layout.Bindings[i].Type; !ok(t) {
		gpuhal.Fatalf(op, "descriptor set %q binding %d is %s, not a %s", s.label, binding, t, want)
	}
	return i
}

// SetBuffer binds a buffer range. A zero size binds to the end of the buffer.
func (s *DescriptorSet) SetBuffer(binding uint32, buf *Buffer, offset, size uint64) {
	i := s.slot("DescriptorSet.SetBuffer", binding, "buffer", gpuhal.BindingType.IsBuffer)
	if offset > buf.size {
		gpuhal.Fatalf("DescriptorSet.SetBuffer", "offset %d past end of buffer %q (%d bytes)", offset, buf.label, buf.size)
	}
	if size == 0 {
		size = buf.size - offset
	}
	s.entries[i] = native.BindGroupEntry{Binding: binding, Buffer: buf.native, Offset: offset, Size: size}
	s.mark(i)
}

// SetTexture binds a texture view to a texture or storage image slot.
func (s *DescriptorSet) SetTexture(binding uint32, view native.TextureView) {
	i := s.slot("DescriptorSet.SetTexture", binding, "texture", func(t gpuhal.BindingType) bool {
		return t == gpuhal.BindingTypeTexture || t == gpuhal.BindingTypeStorageImage
	})
	s.entries[i] = native.BindGroupEntry{Binding: binding, TextureView: view}
	s.mark(i)
}

// SetSampler binds a sampler.
func (s *DescriptorSet) SetSampler(binding uint32, smp *Sampler) {
	i := s.slot("DescriptorSet.SetSampler", binding, "sampler", func(t gpuhal.BindingType) bool {
		return t == gpuhal.BindingTypeSampler
	})
	s.entries[i] = native.BindGroupEntry{Binding: binding, Sampler: smp.native}
	s.mark(i)
}

func (s *DescriptorSet) mark(i int) {
	s.written[i] = true
	s.dirty = true
}

// BindGroup returns the native bind group, rebuilding it when entries
// changed since the last build. Every declared binding must have been
// written.
func (s *DescriptorSet) BindGroup() (native.BindGroup, error) {
	if !s.dirty && s.group != nil {
		return s.group, nil
	}
	for i, ok := range s.written {
		if !ok {
			gpuhal.Fatalf("DescriptorSet.BindGroup", "descriptor set %q binding %d was never written",
				s.label, s.layout.ActiveBindings[i])
		}
	}
	g, err := s.nd.CreateBindGroup(&native.BindGroupDescriptor{
		Label:   s.label,
		Layout:  s.layout.Native,
		Entries: s.entries,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: bind group %q: %w", ErrCreateFailed, s.label, err)
	}
	if s.group != nil {
		s.group.Release()
	}
	s.group = g
	s.dirty = false
	s.builds++
	return g, nil
}

// Builds returns how many native bind groups the set has created.
func (s *DescriptorSet) Builds() int { return s.builds }

func (s *DescriptorSet) release() {
	if s.group != nil {
		s.group.Release()
		s.group = nil
	}
}

// =============================================================================
// Device operations
// =============================================================================

// CreateDescriptorSet implements gpuhal.Device.
func (d *Device) CreateDescriptorSet(desc *gpuhal.DescriptorSetDescriptor) (gpuhal.DescriptorSetHandle, error) {
	if err := d.checkAlive(); err != nil {
		return 0, err
	}
	if desc == nil || len(desc.Layout.Bindings) == 0 {
		return 0, fmt.Errorf("%w: descriptor set without bindings", ErrInvalidDescriptor)
	}
	layout, err := d.layouts.Get(desc.Layout.Bindings, desc.Layout.Mode)
	if err != nil {
		return 0, err
	}
	s, h := d.sets.New()
	s.nd = d.nd
	s.label = d.label(desc.Label, "set")
	s.layout = layout
	s.entries = make([]native.BindGroupEntry, len(layout.ActiveBindings))
	s.written = make([]bool, len(layout.ActiveBindings))
	for i, b := range layout.ActiveBindings {
		s.entries[i].Binding = b
	}
	return gpuhal.DescriptorSetHandle(h), nil
}

// WriteDescriptorSet implements gpuhal.Device.
func (d *Device) WriteDescriptorSet(h gpuhal.DescriptorSetHandle, writes ...gpuhal.DescriptorWrite) {
	s := d.descriptorSet("WriteDescriptorSet", h)
	for _, w := range writes {
		b, ok := s.layout.Binding(w.Binding)
		if !ok {
			gpuhal.Fatalf("WriteDescriptorSet", "descriptor set %q has no binding %d (layout declares %v)",
				s.label, w.Binding, s.layout.ActiveBindings)
		}
		switch {
		case b.Type.IsBuffer():
			s.SetBuffer(w.Binding, d.buffer("WriteDescriptorSet", w.Buffer), w.Offset, w.Size)
		case b.Type == gpuhal.BindingTypeSampler:
			s.SetSampler(w.Binding, d.samplers.MustGet("WriteDescriptorSet", gpuhal.Handle(w.Sampler)))
		default:
			view, err := d.texture("WriteDescriptorSet", w.Texture).View(w.View)
			if err != nil {
				gpuhal.Fatalf("WriteDescriptorSet", "binding %d: %v", w.Binding, err)
			}
			s.SetTexture(w.Binding, view)
		}
	}
}

// DestroyDescriptorSet implements gpuhal.Device.
func (d *Device) DestroyDescriptorSet(h gpuhal.DescriptorSetHandle) {
	if h.IsNil() {
		return
	}
	s := d.descriptorSet("DestroyDescriptorSet", h)
	s.release()
	d.sets.Delete(s)
}

func (d *Device) descriptorSet(op string, h gpuhal.DescriptorSetHandle) *DescriptorSet {
	return d.sets.MustGet(op, gpuhal.Handle(h))
}
