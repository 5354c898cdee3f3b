package gpuhal

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"hash"
	"hash/fnv"
	"slices"
	"strings"
)

// BindingType is the kind of resource a binding slot holds.
type BindingType uint8

const (
	// BindingTypeUniformBuffer is a uniform buffer bound at a fixed offset.
	BindingTypeUniformBuffer BindingType = iota
	// BindingTypeUniformBufferDynamicOffset is a uniform buffer whose offset
	// is supplied at bind time.
	BindingTypeUniformBufferDynamicOffset
	// BindingTypeStorageBuffer is a storage buffer bound at a fixed offset.
	BindingTypeStorageBuffer
	// BindingTypeStorageBufferDynamicOffset is a storage buffer whose offset
	// is supplied at bind time.
	BindingTypeStorageBufferDynamicOffset
	// BindingTypeTexture is a sampled texture.
	BindingTypeTexture
	// BindingTypeStorageImage is a texture written from shaders.
	BindingTypeStorageImage
	// BindingTypeSampler is a filtering sampler.
	BindingTypeSampler
)

// String returns the string representation of BindingType.
func (t BindingType) String() string {
	switch t {
	case BindingTypeUniformBuffer:
		return "UniformBuffer"
	case BindingTypeUniformBufferDynamicOffset:
		return "UniformBufferDynamicOffset"
	case BindingTypeStorageBuffer:
		return "StorageBuffer"
	case BindingTypeStorageBufferDynamicOffset:
		return "StorageBufferDynamicOffset"
	case BindingTypeTexture:
		return "Texture"
	case BindingTypeStorageImage:
		return "StorageImage"
	case BindingTypeSampler:
		return "Sampler"
	default:
		return fmt.Sprintf("Unknown(%d)", int(t))
	}
}

// IsBuffer reports whether the binding holds a buffer.
func (t BindingType) IsBuffer() bool {
	return t <= BindingTypeStorageBufferDynamicOffset
}

// IsDynamic reports whether the binding takes a dynamic offset at bind time.
func (t BindingType) IsDynamic() bool {
	return t == BindingTypeUniformBufferDynamicOffset || t == BindingTypeStorageBufferDynamicOffset
}

// IsStorage reports whether the binding is writable from shaders.
func (t BindingType) IsStorage() bool {
	return t == BindingTypeStorageBuffer || t == BindingTypeStorageBufferDynamicOffset ||
		t == BindingTypeStorageImage
}

// ShaderStage is a bitset of shader stages a binding is visible to.
type ShaderStage uint8

const (
	// StageVertex is the vertex stage.
	StageVertex ShaderStage = 1 << iota
	// StageFragment is the fragment stage.
	StageFragment
	// StageCompute is the compute stage.
	StageCompute

	// StageAllGraphics is vertex and fragment.
	StageAllGraphics = StageVertex | StageFragment
)

// Has reports whether all stages in s are set.
func (v ShaderStage) Has(s ShaderStage) bool {
	return v&s == s
}

// String returns the set stages joined with "|".
func (v ShaderStage) String() string {
	if v == 0 {
		return "None"
	}
	var parts []string
	if v&StageVertex != 0 {
		parts = append(parts, "Vertex")
	}
	if v&StageFragment != 0 {
		parts = append(parts, "Fragment")
	}
	if v&StageCompute != 0 {
		parts = append(parts, "Compute")
	}
	if rest := v &^ (StageVertex | StageFragment | StageCompute); rest != 0 {
		parts = append(parts, fmt.Sprintf("Unknown(%d)", int(rest)))
	}
	return strings.Join(parts, "|")
}

// Access is the read/write mode of a storage binding.
type Access uint8

const (
	// AccessReadOnly allows shader reads only.
	AccessReadOnly Access = iota
	// AccessReadWrite allows shader reads and writes.
	AccessReadWrite
)

// String returns the string representation of Access.
func (a Access) String() string {
	switch a {
	case AccessReadOnly:
		return "ReadOnly"
	case AccessReadWrite:
		return "ReadWrite"
	default:
		return fmt.Sprintf("Unknown(%d)", int(a))
	}
}

// BindingDescriptor describes one resource slot in a descriptor set.
//
// BindingDescriptor is an immutable value type and can be compared with ==.
// Access is only meaningful for storage types; uniform buffers, textures and
// samplers should leave it at AccessReadOnly.
type BindingDescriptor struct {
	// Binding is the slot index within the set.
	Binding uint32

	// Type is the kind of resource in the slot.
	Type BindingType

	// Stages is the set of shader stages that can see the slot.
	Stages ShaderStage

	// Access is the read/write mode for storage types.
	Access Access
}

// Hash returns a 64-bit FNV-1a hash over every field.
func (b BindingDescriptor) Hash() uint64 {
	h := fnv.New64a()
	b.writeHash(h)
	return h.Sum64()
}

func (b BindingDescriptor) writeHash(h hash.Hash64) {
	var buf [7]byte
	binary.LittleEndian.PutUint32(buf[:4], b.Binding)
	buf[4] = byte(b.Type)
	buf[5] = byte(b.Stages)
	buf[6] = byte(b.Access)
	_, _ = h.Write(buf[:])
}

// String returns a compact description such as "2:StorageBuffer(Compute,ReadWrite)".
func (b BindingDescriptor) String() string {
	if b.Type.IsStorage() {
		return fmt.Sprintf("%d:%s(%s,%s)", b.Binding, b.Type, b.Stages, b.Access)
	}
	return fmt.Sprintf("%d:%s(%s)", b.Binding, b.Type, b.Stages)
}

// BindingCmp orders binding descriptors by binding index.
// It is the canonical order used before hashing a group of bindings.
func BindingCmp(a, b BindingDescriptor) int {
	return cmp.Compare(a.Binding, b.Binding)
}

// BindingsSorted reports whether bindings are in canonical order.
func BindingsSorted(bindings []BindingDescriptor) bool {
	return slices.IsSortedFunc(bindings, BindingCmp)
}

// SortBindings sorts bindings in place into canonical order.
func SortBindings(bindings []BindingDescriptor) {
	slices.SortStableFunc(bindings, BindingCmp)
}

// HashBindings folds the hashes of a canonical binding sequence.
// The length is mixed in first so prefixes of a sequence hash differently.
func HashBindings(bindings []BindingDescriptor) uint64 {
	h := fnv.New64a()
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(len(bindings))) //nolint:gosec // binding counts are small
	_, _ = h.Write(buf[:])
	for _, b := range bindings {
		b.writeHash(h)
	}
	return h.Sum64()
}

// BindMode selects how a descriptor set layout is bound.
type BindMode uint8

const (
	// BindModeStatic layouts are bound with fixed offsets.
	BindModeStatic BindMode = iota
	// BindModeDynamic layouts accept per-bind dynamic offsets.
	BindModeDynamic
)

// String returns the string representation of BindMode.
func (m BindMode) String() string {
	switch m {
	case BindModeStatic:
		return "Static"
	case BindModeDynamic:
		return "Dynamic"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}
