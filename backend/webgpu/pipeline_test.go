package webgpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpuhal"
	"github.com/gogpu/gpuhal/native/nativetest"
)

func TestCreateGraphicsPipeline_CullVariants(t *testing.T) {
	tests := []struct {
		name     string
		cull     gpuhal.CullMode
		variants int
	}{
		{"None", gpuhal.CullModeNone, 1},
		{"Back", gpuhal.CullModeBack, 1},
		{"Dynamic", gpuhal.CullModeDynamic, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, nd := newTestDevice(t)
			h := mustGraphicsPipeline(t, d, "p", tt.cull)
			if got := nd.Created("RenderPipeline"); got != tt.variants {
				t.Errorf("Created(RenderPipeline) = %d, want %d", got, tt.variants)
			}
			p := d.pipeline("test", h)
			if p.Kind() != PipelineKindGraphics {
				t.Errorf("Kind() = %s, want Graphics", p.Kind())
			}
			if p.DynamicCull() != (tt.cull == gpuhal.CullModeDynamic) {
				t.Errorf("DynamicCull() = %v", p.DynamicCull())
			}
		})
	}
}

func TestPipeline_RenderVariant(t *testing.T) {
	d, _ := newTestDevice(t)
	p := d.pipeline("test", mustGraphicsPipeline(t, d, "dyn", gpuhal.CullModeDynamic))

	want := map[gpuhal.CullMode]gputypes.CullMode{
		gpuhal.CullModeNone:  gputypes.CullModeNone,
		gpuhal.CullModeFront: gputypes.CullModeFront,
		gpuhal.CullModeBack:  gputypes.CullModeBack,
	}
	for mode, native := range want {
		rp := p.Render(mode).(*nativetest.RenderPipeline)
		if rp.Desc.Primitive.CullMode != native {
			t.Errorf("Render(%s) cull = %v, want %v", mode, rp.Desc.Primitive.CullMode, native)
		}
	}
	expectFatalContains(t, func() { p.Render(gpuhal.CullModeDynamic) }, "no pipeline variant")
	expectFatalContains(t, func() { p.Compute() }, "is Graphics")
}

func TestCreateGraphicsPipeline_SharesLayouts(t *testing.T) {
	d, nd := newTestDevice(t)
	mustGraphicsPipeline(t, d, "a", gpuhal.CullModeNone)
	mustGraphicsPipeline(t, d, "b", gpuhal.CullModeBack)

	if got := d.LayoutCache().Len(); got != 1 {
		t.Errorf("LayoutCache().Len() = %d, want 1", got)
	}
	if got := nd.Created("BindGroupLayout"); got != 1 {
		t.Errorf("Created(BindGroupLayout) = %d, want 1", got)
	}
	if got := nd.Created("PipelineLayout"); got != 2 {
		t.Errorf("Created(PipelineLayout) = %d, want 2", got)
	}
}

func TestCreateGraphicsPipeline_Blend(t *testing.T) {
	tests := []struct {
		mode gpuhal.BlendMode
		src  gputypes.BlendFactor
		dst  gputypes.BlendFactor
	}{
		{gpuhal.BlendAlpha, gputypes.BlendFactorSrcAlpha, gputypes.BlendFactorOneMinusSrcAlpha},
		{gpuhal.BlendPremultiplied, gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrcAlpha},
		{gpuhal.BlendAdditive, gputypes.BlendFactorOne, gputypes.BlendFactorOne},
	}
	for _, tt := range tests {
		b := blendState(tt.mode)
		if b == nil {
			t.Fatalf("blendState(%d) = nil", tt.mode)
		}
		if b.Color.SrcFactor != tt.src || b.Color.DstFactor != tt.dst {
			t.Errorf("blendState(%d).Color = %v/%v, want %v/%v", tt.mode, b.Color.SrcFactor, b.Color.DstFactor, tt.src, tt.dst)
		}
	}
	if blendState(gpuhal.BlendNone) != nil {
		t.Error("blendState(BlendNone) != nil")
	}
}

func TestCreateGraphicsPipeline_InterfaceMismatch(t *testing.T) {
	d, nd := newTestDevice(t)
	vs := mustShader(t, d, "vs", vertexSPIRV())
	fs := mustShader(t, d, "fs", fragmentSPIRV())

	tests := []struct {
		name string
		sets []gpuhal.SetLayout
	}{
		{"no sets", nil},
		{"missing sampler", []gpuhal.SetLayout{{Bindings: graphicsSet.Bindings[:2]}}},
		{"wrong type", []gpuhal.SetLayout{{Bindings: []gpuhal.BindingDescriptor{
			{Binding: 0, Type: gpuhal.BindingTypeStorageBuffer, Stages: gpuhal.StageAllGraphics},
			graphicsSet.Bindings[1],
			graphicsSet.Bindings[2],
		}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.CreateGraphicsPipeline(&gpuhal.GraphicsPipelineDescriptor{
				Vertex:       vs,
				Fragment:     fs,
				Sets:         tt.sets,
				ColorFormats: []gputypes.TextureFormat{gputypes.TextureFormatRGBA8Unorm},
			})
			if !errors.Is(err, ErrInvalidDescriptor) {
				t.Errorf("CreateGraphicsPipeline() error = %v, want ErrInvalidDescriptor", err)
			}
		})
	}
	if live := nd.Live("PipelineLayout"); live != 0 {
		t.Errorf("Live(PipelineLayout) = %d after failures, want 0", live)
	}
}

func TestCreateGraphicsPipeline_DynamicOffsetsMatchShader(t *testing.T) {
	d, _ := newTestDevice(t)
	set := gpuhal.SetLayout{Bindings: []gpuhal.BindingDescriptor{
		{Binding: 0, Type: gpuhal.BindingTypeUniformBufferDynamicOffset, Stages: gpuhal.StageAllGraphics},
		graphicsSet.Bindings[1],
		graphicsSet.Bindings[2],
	}}
	_, err := d.CreateGraphicsPipeline(&gpuhal.GraphicsPipelineDescriptor{
		Vertex:       mustShader(t, d, "vs", vertexSPIRV()),
		Fragment:     mustShader(t, d, "fs", fragmentSPIRV()),
		Sets:         []gpuhal.SetLayout{set},
		ColorFormats: []gputypes.TextureFormat{gputypes.TextureFormatRGBA8Unorm},
	})
	if err != nil {
		t.Errorf("CreateGraphicsPipeline() error = %v", err)
	}
}

func TestCreateGraphicsPipeline_EntryPoints(t *testing.T) {
	d, _ := newTestDevice(t)
	vs := mustShader(t, d, "vs", vertexSPIRV())
	fs := mustShader(t, d, "fs", fragmentSPIRV())

	tests := []struct {
		name    string
		vsEntry string
		fsEntry string
		wantErr bool
	}{
		{"defaults", "", "", false},
		{"explicit", "vs_main", "fs_main", false},
		{"unknown", "main", "", true},
		{"wrong stage", "fs_main", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.CreateGraphicsPipeline(&gpuhal.GraphicsPipelineDescriptor{
				Vertex:        vs,
				Fragment:      fs,
				VertexEntry:   tt.vsEntry,
				FragmentEntry: tt.fsEntry,
				Sets:          []gpuhal.SetLayout{graphicsSet},
				ColorFormats:  []gputypes.TextureFormat{gputypes.TextureFormatRGBA8Unorm},
			})
			if (err != nil) != tt.wantErr {
				t.Errorf("CreateGraphicsPipeline() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateGraphicsPipeline_ReleasesSpecializedModules(t *testing.T) {
	d, nd := newTestDevice(t)
	_, err := d.CreateGraphicsPipeline(&gpuhal.GraphicsPipelineDescriptor{
		Vertex:       mustShader(t, d, "vs", specVertexSPIRV(1)),
		Fragment:     mustShader(t, d, "fs", fragmentSPIRV()),
		Constants:    map[uint32]gpuhal.SpecValue{7: gpuhal.SpecUint(4)},
		Sets:         []gpuhal.SetLayout{graphicsSet},
		ColorFormats: []gputypes.TextureFormat{gputypes.TextureFormatRGBA8Unorm},
		CullMode:     gpuhal.CullModeDynamic,
	})
	if err != nil {
		t.Fatalf("CreateGraphicsPipeline() error = %v", err)
	}
	// The eager fragment module stays; the specialized vertex module is gone.
	if got := nd.Live("ShaderModule"); got != 1 {
		t.Errorf("Live(ShaderModule) = %d, want 1", got)
	}
	if got := nd.Released("ShaderModule"); got != 1 {
		t.Errorf("Released(ShaderModule) = %d, want 1", got)
	}
}

func TestCreateGraphicsPipeline_NativeFailure(t *testing.T) {
	d, nd := newTestDevice(t)
	vs := mustShader(t, d, "vs", vertexSPIRV())
	fs := mustShader(t, d, "fs", fragmentSPIRV())
	nd.FailNext("RenderPipeline", errors.New("driver says no"))

	_, err := d.CreateGraphicsPipeline(&gpuhal.GraphicsPipelineDescriptor{
		Vertex:       vs,
		Fragment:     fs,
		Sets:         []gpuhal.SetLayout{graphicsSet},
		ColorFormats: []gputypes.TextureFormat{gputypes.TextureFormatRGBA8Unorm},
		CullMode:     gpuhal.CullModeDynamic,
	})
	if !errors.Is(err, ErrCreateFailed) {
		t.Fatalf("CreateGraphicsPipeline() error = %v, want ErrCreateFailed", err)
	}
	if live := nd.Live("RenderPipeline"); live != 0 {
		t.Errorf("Live(RenderPipeline) = %d, want 0", live)
	}
	if live := nd.Live("PipelineLayout"); live != 0 {
		t.Errorf("Live(PipelineLayout) = %d, want 0", live)
	}
}

func TestCreateComputePipeline(t *testing.T) {
	d, nd := newTestDevice(t)
	h := mustComputePipeline(t, d, "cs")
	p := d.pipeline("test", h)
	if p.Kind() != PipelineKindCompute {
		t.Errorf("Kind() = %s, want Compute", p.Kind())
	}
	cp := p.Compute().(*nativetest.ComputePipeline)
	if cp.Desc.EntryPoint != "cs_main" {
		t.Errorf("EntryPoint = %q, want cs_main", cp.Desc.EntryPoint)
	}
	expectFatalContains(t, func() { p.Render(gpuhal.CullModeNone) }, "is Compute")

	d.DestroyPipeline(h)
	if live := nd.Live("ComputePipeline"); live != 0 {
		t.Errorf("Live(ComputePipeline) = %d after destroy, want 0", live)
	}
	expectFatalContains(t, func() { d.DestroyPipeline(h) }, "stale")
}
