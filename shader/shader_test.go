package shader

import (
	"errors"
	"testing"

	"github.com/gogpu/gpuhal"
	"github.com/gogpu/gpuhal/internal/spirv"
)

const spriteWGSL = `
struct Camera {
    mvp: mat4x4<f32>,
}

@group(0) @binding(0) var<uniform> camera: Camera;
@group(1) @binding(0) var atlas: texture_2d<f32>;
@group(1) @binding(1) var atlasSampler: sampler;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@location(0) pos: vec2<f32>, @location(1) uv: vec2<f32>) -> VertexOutput {
    var out: VertexOutput;
    out.position = camera.mvp * vec4<f32>(pos, 0.0, 1.0);
    out.uv = uv;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return textureSample(atlas, atlasSampler, in.uv);
}
`

const sumWGSL = `
@group(0) @binding(0) var<storage, read> input: array<u32>;
@group(0) @binding(1) var<storage, read_write> output: array<u32>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    output[id.x] = input[id.x] + 1u;
}
`

func TestCompile_Sprite(t *testing.T) {
	src, err := Compile(spriteWGSL, WithLabel("sprite"))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(src.SPIRV) < 5 || src.SPIRV[0] != spirv.Magic {
		t.Fatalf("SPIRV header = %x, want magic %#x", src.SPIRV[:min(len(src.SPIRV), 5)], spirv.Magic)
	}
	if src.Label != "sprite" || src.WGSL != spriteWGSL {
		t.Errorf("Label = %q, WGSL kept = %v", src.Label, src.WGSL == spriteWGSL)
	}
	if !src.Stages.Has(gpuhal.StageVertex) || !src.Stages.Has(gpuhal.StageFragment) {
		t.Errorf("Stages = %v, want vertex|fragment", src.Stages)
	}
	if ep, ok := src.EntryPoint(gpuhal.StageVertex); !ok || ep.Name != "vs_main" {
		t.Errorf("EntryPoint(vertex) = %+v, %v", ep, ok)
	}
	if ep, ok := src.EntryPoint(gpuhal.StageFragment); !ok || ep.Name != "fs_main" {
		t.Errorf("EntryPoint(fragment) = %+v, %v", ep, ok)
	}
	if _, ok := src.EntryPoint(gpuhal.StageCompute); ok {
		t.Error("EntryPoint(compute) found in a graphics module")
	}

	want := map[uint32][]gpuhal.BindingType{
		0: {gpuhal.BindingTypeUniformBuffer},
		1: {gpuhal.BindingTypeTexture, gpuhal.BindingTypeSampler},
	}
	for set, types := range want {
		got := src.Sets[set]
		if len(got) != len(types) {
			t.Fatalf("Sets[%d] = %+v, want %d bindings", set, got, len(types))
		}
		for i, typ := range types {
			if got[i].Binding != uint32(i) || got[i].Type != typ {
				t.Errorf("Sets[%d][%d] = %+v, want binding %d of %v", set, i, got[i], i, typ)
			}
		}
	}

	layouts := src.SetLayouts()
	if len(layouts) != 2 {
		t.Fatalf("SetLayouts() = %d layouts, want 2", len(layouts))
	}
	if desc := src.Descriptor(); desc.Label != "sprite" || len(desc.SPIRV) != len(src.SPIRV) {
		t.Errorf("Descriptor() = %q with %d words", desc.Label, len(desc.SPIRV))
	}
}

func TestCompile_StorageAccess(t *testing.T) {
	src, err := Compile(sumWGSL)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if src.Stages != gpuhal.StageCompute {
		t.Errorf("Stages = %v, want compute", src.Stages)
	}
	got := src.Sets[0]
	if len(got) != 2 {
		t.Fatalf("Sets[0] = %+v, want 2 bindings", got)
	}
	for i, access := range []gpuhal.Access{gpuhal.AccessReadOnly, gpuhal.AccessReadWrite} {
		if got[i].Type != gpuhal.BindingTypeStorageBuffer || got[i].Access != access {
			t.Errorf("Sets[0][%d] = %+v, want storage buffer %v", i, got[i], access)
		}
	}
}

func TestCompile_Invalid(t *testing.T) {
	_, err := Compile("fn broken( {", WithLabel("broken"))
	if !errors.Is(err, ErrCompile) {
		t.Fatalf("Compile(invalid) error = %v, want ErrCompile", err)
	}
}

func TestFromSPIRV(t *testing.T) {
	b := spirv.NewBuilder()
	b.EntryPoint(spirv.ExecutionModelGLCompute, "main")
	b.StorageBuffer(0, 0, true)
	b.SpecConstant(b.TypeUint32(), 3, 64)

	src, err := FromSPIRV(b.Words())
	if err != nil {
		t.Fatalf("FromSPIRV() error = %v", err)
	}
	if !src.Specializable {
		t.Error("Specializable = false for a module with a spec constant")
	}
	if len(src.EntryPoints) != 1 || src.EntryPoints[0].Name != "main" {
		t.Errorf("EntryPoints = %+v", src.EntryPoints)
	}

	if _, err := FromSPIRV([]uint32{1, 2, 3}); err == nil {
		t.Error("FromSPIRV(garbage) error = nil")
	}
}

func TestMergeSetLayouts(t *testing.T) {
	vs := Source{Sets: map[uint32][]gpuhal.BindingDescriptor{
		0: {{Binding: 0, Type: gpuhal.BindingTypeUniformBuffer, Stages: gpuhal.StageVertex}},
		2: {{Binding: 1, Type: gpuhal.BindingTypeStorageBuffer, Stages: gpuhal.StageVertex, Access: gpuhal.AccessReadOnly}},
	}}
	fs := Source{Sets: map[uint32][]gpuhal.BindingDescriptor{
		0: {
			{Binding: 1, Type: gpuhal.BindingTypeTexture, Stages: gpuhal.StageFragment},
			{Binding: 0, Type: gpuhal.BindingTypeUniformBuffer, Stages: gpuhal.StageFragment},
		},
		2: {{Binding: 1, Type: gpuhal.BindingTypeStorageBuffer, Stages: gpuhal.StageFragment, Access: gpuhal.AccessReadWrite}},
	}}

	got := MergeSetLayouts(vs, fs)
	if len(got) != 3 {
		t.Fatalf("MergeSetLayouts() = %d sets, want 3", len(got))
	}
	if len(got[1].Bindings) != 0 {
		t.Errorf("set 1 = %+v, want empty", got[1].Bindings)
	}

	set0 := got[0].Bindings
	if len(set0) != 2 || set0[0].Binding != 0 || set0[1].Binding != 1 {
		t.Fatalf("set 0 = %+v, want bindings 0 and 1", set0)
	}
	if set0[0].Stages != gpuhal.StageVertex|gpuhal.StageFragment {
		t.Errorf("set 0 binding 0 stages = %v, want vertex|fragment", set0[0].Stages)
	}
	if set0[1].Stages != gpuhal.StageFragment {
		t.Errorf("set 0 binding 1 stages = %v, want fragment", set0[1].Stages)
	}
	if b := got[2].Bindings[0]; b.Access != gpuhal.AccessReadWrite {
		t.Errorf("set 2 binding 1 access = %v, want read-write", b.Access)
	}

	if MergeSetLayouts() != nil || MergeSetLayouts(Source{}) != nil {
		t.Error("MergeSetLayouts() without bindings is not nil")
	}
}
