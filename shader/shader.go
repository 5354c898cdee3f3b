// Package shader is the front end that turns shader sources into the SPIR-V
// modules and binding schemas consumed by gpuhal devices.
//
// WGSL is compiled with gogpu/naga. SPIR-V produced elsewhere enters through
// FromSPIRV. Either way the module is reflected, so callers can derive the
// pipeline's set layouts from the shaders instead of writing them by hand:
//
//	vs, err := shader.Compile(vertexWGSL, shader.WithLabel("sprite.vs"))
//	fs, err := shader.Compile(fragmentWGSL, shader.WithLabel("sprite.fs"))
//	sets := shader.MergeSetLayouts(vs, fs)
package shader

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/naga"

	"github.com/gogpu/gpuhal"
	"github.com/gogpu/gpuhal/internal/spirv"
)

// ErrCompile wraps every WGSL compilation failure.
var ErrCompile = errors.New("shader: compile failed")

// EntryPoint is a named shader entry point and its stage.
type EntryPoint struct {
	Name  string
	Stage gpuhal.ShaderStage
}

// Source is a SPIR-V module with its reflected interface.
type Source struct {
	Label string

	// WGSL is the source text when the module was compiled by Compile.
	WGSL string

	SPIRV       []uint32
	EntryPoints []EntryPoint

	// Stages is the union of the entry point stages.
	Stages gpuhal.ShaderStage

	// Sets maps a set index to its bindings sorted by binding number.
	Sets map[uint32][]gpuhal.BindingDescriptor

	// Specializable reports whether the module declares specialization
	// constants.
	Specializable bool
}

type options struct {
	label string
	naga  naga.CompileOptions
}

// Option configures Compile.
type Option func(*options)

// WithLabel sets the debug label carried by the Source.
func WithLabel(label string) Option {
	return func(o *options) { o.label = label }
}

// WithDebug emits debug names and line info into the SPIR-V.
func WithDebug() Option {
	return func(o *options) { o.naga.Debug = true }
}

// WithoutValidation skips IR validation before code generation.
func WithoutValidation() Option {
	return func(o *options) { o.naga.Validate = false }
}

// Compile compiles WGSL to SPIR-V and reflects the result.
func Compile(wgsl string, opts ...Option) (Source, error) {
	o := options{naga: naga.DefaultOptions()}
	for _, opt := range opts {
		opt(&o)
	}

	code, err := naga.CompileWithOptions(wgsl, o.naga)
	if err != nil {
		return Source{}, fmt.Errorf("%w: %s: %w", ErrCompile, labelOr(o.label), err)
	}
	words, err := spirv.WordsFromBytes(code)
	if err != nil {
		return Source{}, fmt.Errorf("%w: %s: %w", ErrCompile, labelOr(o.label), err)
	}

	src, err := FromSPIRV(words)
	if err != nil {
		return Source{}, err
	}
	src.Label = o.label
	src.WGSL = wgsl
	gpuhal.Logger().Debug("shader: compiled",
		"label", labelOr(o.label),
		"words", len(words),
		"stages", src.Stages,
		"sets", len(src.Sets))
	return src, nil
}

// FromSPIRV parses and reflects a SPIR-V module.
func FromSPIRV(words []uint32) (Source, error) {
	m, err := spirv.Parse(words)
	if err != nil {
		return Source{}, fmt.Errorf("shader: %w", err)
	}
	r, err := m.Reflect()
	if err != nil {
		return Source{}, fmt.Errorf("shader: reflect: %w", err)
	}

	src := Source{
		SPIRV:         words,
		Stages:        r.Stages,
		Sets:          r.Sets,
		Specializable: m.HasSpecConstants(),
	}
	for _, ep := range r.EntryPoints {
		src.EntryPoints = append(src.EntryPoints, EntryPoint{Name: ep.Name, Stage: ep.Stage})
	}
	return src, nil
}

// Descriptor returns the device descriptor for the module.
func (s Source) Descriptor() *gpuhal.ShaderDescriptor {
	return &gpuhal.ShaderDescriptor{Label: s.Label, SPIRV: s.SPIRV}
}

// EntryPoint returns the first entry point of the given stage.
func (s Source) EntryPoint(stage gpuhal.ShaderStage) (EntryPoint, bool) {
	for _, ep := range s.EntryPoints {
		if ep.Stage == stage {
			return ep, true
		}
	}
	return EntryPoint{}, false
}

// SetLayouts returns one static layout per set index from zero to the
// highest index used. Unused indices get an empty layout.
func (s Source) SetLayouts() []gpuhal.SetLayout {
	return MergeSetLayouts(s)
}

// MergeSetLayouts unions the bindings of several modules, typically the
// vertex and fragment stage of one pipeline. A binding used by more than one
// module is visible to all their stages.
func MergeSetLayouts(srcs ...Source) []gpuhal.SetLayout {
	merged := map[uint32]map[uint32]gpuhal.BindingDescriptor{}
	var maxSet uint32
	for _, src := range srcs {
		for set, bindings := range src.Sets {
			maxSet = max(maxSet, set)
			slot := merged[set]
			if slot == nil {
				slot = map[uint32]gpuhal.BindingDescriptor{}
				merged[set] = slot
			}
			for _, b := range bindings {
				if prev, ok := slot[b.Binding]; ok {
					b.Stages |= prev.Stages
					if prev.Access == gpuhal.AccessReadWrite {
						b.Access = gpuhal.AccessReadWrite
					}
				}
				slot[b.Binding] = b
			}
		}
	}
	if len(merged) == 0 {
		return nil
	}

	out := make([]gpuhal.SetLayout, maxSet+1)
	for set, slot := range merged {
		bindings := make([]gpuhal.BindingDescriptor, 0, len(slot))
		for _, b := range slot {
			bindings = append(bindings, b)
		}
		slices.SortFunc(bindings, func(a, b gpuhal.BindingDescriptor) int {
			return int(a.Binding) - int(b.Binding)
		})
		out[set].Bindings = bindings
	}
	return out
}

func labelOr(label string) string {
	if label == "" {
		return "<unnamed>"
	}
	return label
}
