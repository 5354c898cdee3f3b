package webgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpuhal"
	"github.com/gogpu/gpuhal/internal/spirv"
	"github.com/gogpu/gpuhal/native"
)

// PipelineKind tags the active member of a Pipeline.
type PipelineKind uint8

const (
	// PipelineKindGraphics is a render pipeline.
	PipelineKindGraphics PipelineKind = iota
	// PipelineKindCompute is a compute pipeline.
	PipelineKindCompute
)

// String returns the string representation of PipelineKind.
func (k PipelineKind) String() string {
	switch k {
	case PipelineKindGraphics:
		return "Graphics"
	case PipelineKindCompute:
		return "Compute"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Pipeline is the record behind a gpuhal.PipelineHandle: a graphics or a
// compute pipeline, selected by Kind.
//
// A graphics pipeline created with CullModeDynamic holds one native variant
// per concrete cull mode (None, Front, Back); the command context picks the
// variant at draw time. A fixed cull mode fills only its own slot.
type Pipeline struct {
	kind   PipelineKind
	label  string
	layout native.PipelineLayout
	sets   []*CachedLayout

	cull     gpuhal.CullMode
	variants [3]native.RenderPipeline

	compute native.ComputePipeline
}

// Kind returns the pipeline kind.
func (p *Pipeline) Kind() PipelineKind { return p.kind }

// Label returns the debug label.
func (p *Pipeline) Label() string { return p.label }

// DynamicCull reports whether the cull mode is chosen at draw time.
func (p *Pipeline) DynamicCull() bool { return p.cull == gpuhal.CullModeDynamic }

// Sets returns the cached layouts of the pipeline's descriptor sets.
func (p *Pipeline) Sets() []*CachedLayout { return p.sets }

// Render returns the native render pipeline for a cull mode. Pipelines with
// a fixed cull mode ignore the argument.
func (p *Pipeline) Render(cull gpuhal.CullMode) native.RenderPipeline {
	if p.kind != PipelineKindGraphics {
		gpuhal.Fatalf("Pipeline.Render", "pipeline %q is %s", p.label, p.kind)
	}
	if !p.DynamicCull() {
		return p.variants[p.cull]
	}
	if cull > gpuhal.CullModeBack {
		gpuhal.Fatalf("Pipeline.Render", "cull mode %s has no pipeline variant", cull)
	}
	return p.variants[cull]
}

// Compute returns the native compute pipeline.
func (p *Pipeline) Compute() native.ComputePipeline {
	if p.kind != PipelineKindCompute {
		gpuhal.Fatalf("Pipeline.Compute", "pipeline %q is %s", p.label, p.kind)
	}
	return p.compute
}

func (p *Pipeline) release() {
	for i, v := range p.variants {
		if v != nil {
			v.Release()
			p.variants[i] = nil
		}
	}
	if p.compute != nil {
		p.compute.Release()
		p.compute = nil
	}
	if p.layout != nil {
		p.layout.Release()
		p.layout = nil
	}
}

// =============================================================================
// Creation helpers
// =============================================================================

// pipelineLayout resolves every set through the layout cache and builds the
// native pipeline layout.
func (d *Device) pipelineLayout(label string, sets []gpuhal.SetLayout) ([]*CachedLayout, native.PipelineLayout, error) {
	cached := make([]*CachedLayout, len(sets))
	natives := make([]native.BindGroupLayout, len(sets))
	for i, s := range sets {
		l, err := d.layouts.Get(s.Bindings, s.Mode)
		if err != nil {
			return nil, nil, fmt.Errorf("set %d: %w", i, err)
		}
		cached[i] = l
		natives[i] = l.Native
	}
	pl, err := d.nd.CreatePipelineLayout(&native.PipelineLayoutDescriptor{
		Label:            label + "/layout",
		BindGroupLayouts: natives,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: pipeline layout %q: %w", ErrCreateFailed, label, err)
	}
	return cached, pl, nil
}

// checkInterface verifies that every binding a shader uses is declared by
// the pipeline's sets with the same type.
func checkInterface(label string, refl *spirv.Reflection, sets []*CachedLayout) error {
	for _, set := range refl.SetIndices() {
		for _, want := range refl.Sets[set] {
			if int(set) >= len(sets) {
				return fmt.Errorf("%w: %s: shader uses set %d, pipeline declares %d sets",
					ErrInvalidDescriptor, label, set, len(sets))
			}
			got, ok := sets[set].Binding(want.Binding)
			if !ok {
				return fmt.Errorf("%w: %s: shader uses set %d binding %d, which the layout does not declare",
					ErrInvalidDescriptor, label, set, want.Binding)
			}
			if !compatible(got.Type, want.Type) {
				return fmt.Errorf("%w: %s: set %d binding %d is %s, shader expects %s",
					ErrInvalidDescriptor, label, set, want.Binding, got.Type, want.Type)
			}
		}
	}
	return nil
}

// compatible treats dynamic-offset buffers as their static counterparts.
func compatible(declared, used gpuhal.BindingType) bool {
	norm := func(t gpuhal.BindingType) gpuhal.BindingType {
		switch t {
		case gpuhal.BindingTypeUniformBufferDynamicOffset:
			return gpuhal.BindingTypeUniformBuffer
		case gpuhal.BindingTypeStorageBufferDynamicOffset:
			return gpuhal.BindingTypeStorageBuffer
		}
		return t
	}
	return norm(declared) == norm(used)
}

// entryPoint resolves an entry point name. An empty name selects the first
// entry point for stage.
func entryPoint(m *ShaderModule, name string, stage gpuhal.ShaderStage) (string, error) {
	refl := m.Reflection()
	if name != "" {
		ep, ok := refl.EntryPoint(name)
		if !ok || ep.Stage != stage {
			return "", fmt.Errorf("%w: shader %q has no %s entry point %q", ErrInvalidDescriptor, m.label, stage, name)
		}
		return name, nil
	}
	for _, ep := range refl.EntryPoints {
		if ep.Stage == stage {
			return ep.Name, nil
		}
	}
	return "", fmt.Errorf("%w: shader %q has no %s entry point", ErrInvalidDescriptor, m.label, stage)
}

func blendState(mode gpuhal.BlendMode) *gputypes.BlendState {
	comp := func(src, dst gputypes.BlendFactor) gputypes.BlendComponent {
		return gputypes.BlendComponent{SrcFactor: src, DstFactor: dst, Operation: gputypes.BlendOperationAdd}
	}
	switch mode {
	case gpuhal.BlendAlpha:
		return &gputypes.BlendState{
			Color: comp(gputypes.BlendFactorSrcAlpha, gputypes.BlendFactorOneMinusSrcAlpha),
			Alpha: comp(gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrcAlpha),
		}
	case gpuhal.BlendPremultiplied:
		return &gputypes.BlendState{
			Color: comp(gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrcAlpha),
			Alpha: comp(gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrcAlpha),
		}
	case gpuhal.BlendAdditive:
		return &gputypes.BlendState{
			Color: comp(gputypes.BlendFactorOne, gputypes.BlendFactorOne),
			Alpha: comp(gputypes.BlendFactorOne, gputypes.BlendFactorOne),
		}
	default:
		return nil
	}
}

func vertexLayouts(in []gpuhal.VertexLayout) []gputypes.VertexBufferLayout {
	out := make([]gputypes.VertexBufferLayout, len(in))
	for i, l := range in {
		step := gputypes.VertexStepModeVertex
		if l.PerInstance {
			step = gputypes.VertexStepModeInstance
		}
		attrs := make([]gputypes.VertexAttribute, len(l.Attributes))
		for j, a := range l.Attributes {
			attrs[j] = gputypes.VertexAttribute{Format: a.Format, Offset: a.Offset, ShaderLocation: a.Location}
		}
		out[i] = gputypes.VertexBufferLayout{ArrayStride: l.Stride, StepMode: step, Attributes: attrs}
	}
	return out
}

func nativeCullMode(c gpuhal.CullMode) gputypes.CullMode {
	switch c {
	case gpuhal.CullModeFront:
		return gputypes.CullModeFront
	case gpuhal.CullModeBack:
		return gputypes.CullModeBack
	default:
		return gputypes.CullModeNone
	}
}

// specialized returns a specialized module and a release func for it.
func specialized(m *ShaderModule, constants map[uint32]gpuhal.SpecValue) (native.ShaderModule, func(), error) {
	sm, own, err := m.GetSpecializedShaderModule(constants)
	if err != nil {
		return nil, nil, err
	}
	if own == Owned {
		return sm, sm.Release, nil
	}
	return sm, func() {}, nil
}

// =============================================================================
// Device operations
// =============================================================================

// CreateGraphicsPipeline implements gpuhal.Device.
//
// Late-bind shader modules are specialized with desc.Constants for this
// pipeline only; the specialized native modules are released once the
// pipeline exists.
func (d *Device) CreateGraphicsPipeline(desc *gpuhal.GraphicsPipelineDescriptor) (gpuhal.PipelineHandle, error) {
	if err := d.checkAlive(); err != nil {
		return 0, err
	}
	if desc == nil || len(desc.ColorFormats) == 0 && desc.Depth == nil {
		return 0, fmt.Errorf("%w: graphics pipeline without targets", ErrInvalidDescriptor)
	}
	if desc.CullMode > gpuhal.CullModeDynamic {
		return 0, fmt.Errorf("%w: cull mode %s", ErrInvalidDescriptor, desc.CullMode)
	}
	label := d.label(desc.Label, "pipeline")
	vs := d.shader("CreateGraphicsPipeline", desc.Vertex)
	fs := d.shader("CreateGraphicsPipeline", desc.Fragment)

	vsEntry, err := entryPoint(vs, desc.VertexEntry, gpuhal.StageVertex)
	if err != nil {
		return 0, err
	}
	fsEntry, err := entryPoint(fs, desc.FragmentEntry, gpuhal.StageFragment)
	if err != nil {
		return 0, err
	}

	sets, layout, err := d.pipelineLayout(label, desc.Sets)
	if err != nil {
		return 0, err
	}
	p := Pipeline{kind: PipelineKindGraphics, label: label, layout: layout, sets: sets, cull: desc.CullMode}
	fail := func(err error) (gpuhal.PipelineHandle, error) {
		p.release()
		return 0, err
	}
	for _, m := range []*ShaderModule{vs, fs} {
		if err := checkInterface(label, m.Reflection(), sets); err != nil {
			return fail(err)
		}
	}

	vsMod, vsDone, err := specialized(vs, desc.Constants)
	if err != nil {
		return fail(err)
	}
	defer vsDone()
	fsMod, fsDone, err := specialized(fs, desc.Constants)
	if err != nil {
		return fail(err)
	}
	defer fsDone()

	blend := blendState(desc.Blend)
	targets := make([]gputypes.ColorTargetState, len(desc.ColorFormats))
	for i, f := range desc.ColorFormats {
		targets[i] = gputypes.ColorTargetState{Format: d.translateFormat(f), Blend: blend, WriteMask: gputypes.ColorWriteMaskAll}
	}
	nd := &native.RenderPipelineDescriptor{
		Layout: layout,
		Vertex: native.VertexState{Module: vsMod, EntryPoint: vsEntry, Buffers: vertexLayouts(desc.VertexLayouts)},
		Fragment: &native.FragmentState{
			Module:     fsMod,
			EntryPoint: fsEntry,
			Targets:    targets,
		},
		Primitive:   gputypes.PrimitiveState{Topology: desc.Topology, FrontFace: gputypes.FrontFaceCCW},
		Multisample: gputypes.MultisampleState{Count: max(desc.SampleCount, 1), Mask: 0xFFFFFFFF},
	}
	if desc.Depth != nil {
		nd.DepthStencil = &native.DepthStencilState{
			Format:            d.translateFormat(desc.Depth.Format),
			DepthWriteEnabled: desc.Depth.Write,
			DepthCompare:      desc.Depth.Compare,
		}
	}

	modes := []gpuhal.CullMode{desc.CullMode}
	if desc.CullMode == gpuhal.CullModeDynamic {
		modes = []gpuhal.CullMode{gpuhal.CullModeNone, gpuhal.CullModeFront, gpuhal.CullModeBack}
	}
	for _, c := range modes {
		nd.Label = fmt.Sprintf("%s/cull-%s", label, c)
		nd.Primitive.CullMode = nativeCullMode(c)
		rp, err := d.nd.CreateRenderPipeline(nd)
		if err != nil {
			return fail(fmt.Errorf("%w: render pipeline %q: %w", ErrCreateFailed, nd.Label, err))
		}
		p.variants[c] = rp
	}

	rec, h := d.pipelines.New()
	*rec = p
	d.log.Debug("webgpu: graphics pipeline created", "label", label, "variants", len(modes), "sets", len(sets))
	return gpuhal.PipelineHandle(h), nil
}

// CreateComputePipeline implements gpuhal.Device.
func (d *Device) CreateComputePipeline(desc *gpuhal.ComputePipelineDescriptor) (gpuhal.PipelineHandle, error) {
	if err := d.checkAlive(); err != nil {
		return 0, err
	}
	if desc == nil {
		return 0, fmt.Errorf("%w: nil compute pipeline descriptor", ErrInvalidDescriptor)
	}
	label := d.label(desc.Label, "pipeline")
	cs := d.shader("CreateComputePipeline", desc.Shader)
	entry, err := entryPoint(cs, desc.EntryPoint, gpuhal.StageCompute)
	if err != nil {
		return 0, err
	}

	sets, layout, err := d.pipelineLayout(label, desc.Sets)
	if err != nil {
		return 0, err
	}
	p := Pipeline{kind: PipelineKindCompute, label: label, layout: layout, sets: sets}
	if err := checkInterface(label, cs.Reflection(), sets); err != nil {
		p.release()
		return 0, err
	}

	mod, done, err := specialized(cs, desc.Constants)
	if err != nil {
		p.release()
		return 0, err
	}
	defer done()

	cp, err := d.nd.CreateComputePipeline(&native.ComputePipelineDescriptor{
		Label:      label,
		Layout:     layout,
		Module:     mod,
		EntryPoint: entry,
	})
	if err != nil {
		p.release()
		return 0, fmt.Errorf("%w: compute pipeline %q: %w", ErrCreateFailed, label, err)
	}
	p.compute = cp

	rec, h := d.pipelines.New()
	*rec = p
	d.log.Debug("webgpu: compute pipeline created", "label", label, "sets", len(sets))
	return gpuhal.PipelineHandle(h), nil
}

// DestroyPipeline implements gpuhal.Device.
func (d *Device) DestroyPipeline(h gpuhal.PipelineHandle) {
	if h.IsNil() {
		return
	}
	p := d.pipeline("DestroyPipeline", h)
	p.release()
	d.pipelines.Delete(p)
}

func (d *Device) pipeline(op string, h gpuhal.PipelineHandle) *Pipeline {
	return d.pipelines.MustGet(op, gpuhal.Handle(h))
}
