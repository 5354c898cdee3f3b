package webgpu

import (
	"fmt"
	"maps"
	"sync/atomic"

	"github.com/gogpu/gpuhal"
	"github.com/gogpu/gpuhal/internal/spirv"
	"github.com/gogpu/gpuhal/native"
)

// BackendIDConstant is the specialization constant ID reserved for the
// backend identifier. Shaders may branch on it to select backend-specific
// code paths.
const BackendIDConstant uint32 = 0xFFFF

// Backend identifiers injected at BackendIDConstant.
const (
	BackendVulkan uint32 = 1
	BackendD3D12  uint32 = 2
	BackendMetal  uint32 = 3
	BackendWebGPU uint32 = 4
)

// Ownership tells the caller of GetSpecializedShaderModule who releases the
// returned module.
type Ownership uint8

const (
	// Borrowed modules belong to the ShaderModule. Do not release them.
	Borrowed Ownership = iota
	// Owned modules belong to the caller, who must release them.
	Owned
)

// String returns the string representation of Ownership.
func (o Ownership) String() string {
	switch o {
	case Borrowed:
		return "Borrowed"
	case Owned:
		return "Owned"
	default:
		return fmt.Sprintf("Unknown(%d)", int(o))
	}
}

// Optimizer rewrites SPIR-V with specialization constants applied.
type Optimizer interface {
	// Specialize returns new words with the constants set, frozen and
	// folded. It must not modify words.
	Specialize(words []uint32, constants map[uint32]gpuhal.SpecValue) ([]uint32, error)
}

// SpirvOptimizer is the default Optimizer, backed by internal/spirv.
type SpirvOptimizer struct{}

// Specialize implements Optimizer.
func (SpirvOptimizer) Specialize(words []uint32, constants map[uint32]gpuhal.SpecValue) ([]uint32, error) {
	return spirv.Specialize(words, constants)
}

// ShaderModule is the record behind a gpuhal.ShaderHandle.
//
// A module without specialization constants is compiled once at creation
// (eager). A module with specialization constants keeps its words and is
// compiled per GetSpecializedShaderModule call (late bind).
type ShaderModule struct {
	nd          native.Device
	opt         Optimizer
	label       string
	words       []uint32
	precompiled native.ShaderModule
	reflection  *spirv.Reflection

	specializations atomic.Int64
}

// IsEager reports whether the module was compiled at creation.
func (m *ShaderModule) IsEager() bool { return m.precompiled != nil }

// Reflection returns the module's reflected entry points and bindings.
func (m *ShaderModule) Reflection() *spirv.Reflection { return m.reflection }

// Specializations returns how many late-bind compilations ran.
func (m *ShaderModule) Specializations() int64 { return m.specializations.Load() }

// GetSpecializedShaderModule returns a native module with constants applied.
//
// Eager modules return the precompiled module as Borrowed and never call
// the optimizer; constants are ignored. Late-bind modules are rewritten
// with constants plus the backend identifier at BackendIDConstant, then
// compiled into a fresh module returned as Owned.
func (m *ShaderModule) GetSpecializedShaderModule(constants map[uint32]gpuhal.SpecValue) (native.ShaderModule, Ownership, error) {
	if m.precompiled != nil {
		return m.precompiled, Borrowed, nil
	}

	values := make(map[uint32]gpuhal.SpecValue, len(constants)+1)
	maps.Copy(values, constants)
	values[BackendIDConstant] = gpuhal.SpecUint(BackendWebGPU)

	words, err := m.opt.Specialize(m.words, values)
	if err != nil {
		return nil, Borrowed, fmt.Errorf("webgpu: specialize %q: %w", m.label, err)
	}
	n := m.specializations.Add(1)
	sm, err := m.nd.CreateShaderModule(&native.ShaderModuleDescriptor{
		Label: fmt.Sprintf("%s#%d", m.label, n),
		SPIRV: words,
	})
	if err != nil {
		return nil, Borrowed, fmt.Errorf("%w: shader %q: %w", ErrCreateFailed, m.label, err)
	}
	slogger().Debug("webgpu: shader specialized", "shader", m.label, "constants", len(constants), "words", len(words))
	return sm, Owned, nil
}

func (m *ShaderModule) release() {
	if m.precompiled != nil {
		m.precompiled.Release()
		m.precompiled = nil
	}
}

// =============================================================================
// Device operations
// =============================================================================

// CreateShaderModule implements gpuhal.Device.
//
// The SPIR-V is parsed and reflected up front. Returns ErrInvalidDescriptor
// for malformed bytecode.
func (d *Device) CreateShaderModule(desc *gpuhal.ShaderDescriptor) (gpuhal.ShaderHandle, error) {
	if err := d.checkAlive(); err != nil {
		return 0, err
	}
	if desc == nil {
		return 0, fmt.Errorf("%w: nil shader descriptor", ErrInvalidDescriptor)
	}
	label := d.label(desc.Label, "shader")
	mod, err := spirv.Parse(desc.SPIRV)
	if err != nil {
		return 0, fmt.Errorf("%w: shader %q: %w", ErrInvalidDescriptor, label, err)
	}
	refl, err := mod.Reflect()
	if err != nil {
		return 0, fmt.Errorf("%w: shader %q: %w", ErrInvalidDescriptor, label, err)
	}

	var pre native.ShaderModule
	var words []uint32
	if mod.HasSpecConstants() {
		words = append([]uint32(nil), desc.SPIRV...)
	} else {
		pre, err = d.nd.CreateShaderModule(&native.ShaderModuleDescriptor{Label: label, SPIRV: desc.SPIRV})
		if err != nil {
			return 0, fmt.Errorf("%w: shader %q: %w", ErrCreateFailed, label, err)
		}
	}

	m, h := d.shaders.New()
	m.nd = d.nd
	m.opt = d.optimizer
	m.label = label
	m.words = words
	m.precompiled = pre
	m.reflection = refl
	d.log.Debug("webgpu: shader module created", "label", label, "eager", pre != nil,
		"entries", len(refl.EntryPoints), "sets", len(refl.Sets))
	return gpuhal.ShaderHandle(h), nil
}

// DestroyShaderModule implements gpuhal.Device. Pipelines created from the
// module keep working.
func (d *Device) DestroyShaderModule(h gpuhal.ShaderHandle) {
	if h.IsNil() {
		return
	}
	m := d.shader("DestroyShaderModule", h)
	m.release()
	d.shaders.Delete(m)
}

// ShaderModule resolves a shader handle to its record.
func (d *Device) ShaderModule(h gpuhal.ShaderHandle) *ShaderModule {
	return d.shader("ShaderModule", h)
}

func (d *Device) shader(op string, h gpuhal.ShaderHandle) *ShaderModule {
	return d.shaders.MustGet(op, gpuhal.Handle(h))
}
