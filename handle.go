package gpuhal

import "fmt"

// Handle is an opaque, generation-checked reference to a pooled record.
//
// The low 32 bits hold the pool slot plus one and the high 32 bits hold the
// slot's generation at allocation time. The zero Handle is never valid.
// A handle whose slot has since been freed and reused carries an older
// generation and fails lookup instead of aliasing the new occupant.
type Handle uint64

// MakeHandle packs a slot index and generation into a Handle.
func MakeHandle(slot, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(slot+1))
}

// IsNil reports whether h is the zero handle.
func (h Handle) IsNil() bool { return h == 0 }

// Slot returns the pool slot index. Undefined for the zero handle.
func (h Handle) Slot() uint32 { return uint32(h) - 1 } //nolint:gosec // low half by construction

// Generation returns the generation the handle was issued with.
func (h Handle) Generation() uint32 { return uint32(h >> 32) }

// String returns "slot@generation", or "nil".
func (h Handle) String() string {
	if h.IsNil() {
		return "nil"
	}
	return fmt.Sprintf("%d@%d", h.Slot(), h.Generation())
}

// Typed handles exposed to engines. Conversions to and from Handle are free.
type (
	// BufferHandle references a Buffer record.
	BufferHandle Handle
	// TextureHandle references a Texture record.
	TextureHandle Handle
	// SamplerHandle references a Sampler record.
	SamplerHandle Handle
	// FramebufferHandle references a Framebuffer record.
	FramebufferHandle Handle
	// DescriptorSetHandle references a DescriptorSet record.
	DescriptorSetHandle Handle
	// PipelineHandle references a graphics or compute Pipeline record.
	PipelineHandle Handle
	// ShaderHandle references a ShaderModule record.
	ShaderHandle Handle
)

func (h BufferHandle) IsNil() bool        { return h == 0 }
func (h TextureHandle) IsNil() bool       { return h == 0 }
func (h SamplerHandle) IsNil() bool       { return h == 0 }
func (h FramebufferHandle) IsNil() bool   { return h == 0 }
func (h DescriptorSetHandle) IsNil() bool { return h == 0 }
func (h PipelineHandle) IsNil() bool      { return h == 0 }
func (h ShaderHandle) IsNil() bool        { return h == 0 }
