package webgpu

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpuhal"
	"github.com/gogpu/gpuhal/internal/spirv"
	"github.com/gogpu/gpuhal/native/nativetest"
)

// =============================================================================
// Test Helpers
// =============================================================================

// expectFatal runs fn and returns the FatalError it aborted with.
// The test fails if fn returns normally or panics with another value.
func expectFatal(t *testing.T, fn func()) *gpuhal.FatalError {
	t.Helper()
	var fe *gpuhal.FatalError
	func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			err, ok := r.(error)
			if !ok || !errors.As(err, &fe) {
				t.Fatalf("panic value = %v, want *gpuhal.FatalError", r)
			}
		}()
		fn()
	}()
	if fe == nil {
		t.Fatal("expected a fatal abort, got normal return")
	}
	return fe
}

// expectFatalContains is expectFatal plus a message check.
func expectFatalContains(t *testing.T, fn func(), substr string) {
	t.Helper()
	fe := expectFatal(t, fn)
	if !strings.Contains(fe.Msg, substr) {
		t.Errorf("fatal message = %q, want it to contain %q", fe.Msg, substr)
	}
}

// newTestDevice opens a backend device on the in-memory fake.
func newTestDevice(t *testing.T, opts ...Option) (*Device, *nativetest.Device) {
	t.Helper()
	nd := nativetest.NewDevice()
	d := NewDevice(nd, opts...)
	t.Cleanup(func() {
		if !d.destroyed.Load() {
			d.Destroy()
		}
	})
	return d, nd
}

// indexOf returns the position of the first call equal to want, or -1.
func indexOf(calls []string, want string) int {
	for i, c := range calls {
		if c == want {
			return i
		}
	}
	return -1
}

// countPrefix counts the calls that start with prefix.
func countPrefix(calls []string, prefix string) int {
	n := 0
	for _, c := range calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// =============================================================================
// Shader fixtures
// =============================================================================

// vertexSPIRV has entry point vs_main and a uniform buffer at set 0 binding 0.
func vertexSPIRV() []uint32 {
	b := spirv.NewBuilder()
	b.EntryPoint(spirv.ExecutionModelVertex, "vs_main")
	b.UniformBuffer(0, 0)
	return b.Words()
}

// fragmentSPIRV has entry point fs_main, a texture at binding 1 and a
// sampler at binding 2 of set 0.
func fragmentSPIRV() []uint32 {
	b := spirv.NewBuilder()
	b.EntryPoint(spirv.ExecutionModelFragment, "fs_main")
	b.Texture(0, 1)
	b.Sampler(0, 2)
	return b.Words()
}

// computeSPIRV has entry point cs_main and a storage buffer at set 0 binding 0.
func computeSPIRV() []uint32 {
	b := spirv.NewBuilder()
	b.EntryPoint(spirv.ExecutionModelGLCompute, "cs_main")
	b.StorageBuffer(0, 0, false)
	return b.Words()
}

// specVertexSPIRV is vertexSPIRV plus a uint specialization constant with
// SpecId 7 and default def.
func specVertexSPIRV(def uint32) []uint32 {
	b := spirv.NewBuilder()
	b.EntryPoint(spirv.ExecutionModelVertex, "vs_main")
	b.UniformBuffer(0, 0)
	b.SpecConstant(b.TypeUint32(), 7, def)
	return b.Words()
}

// graphicsSet is the set 0 layout matching vertexSPIRV and fragmentSPIRV.
var graphicsSet = gpuhal.SetLayout{Bindings: []gpuhal.BindingDescriptor{
	{Binding: 0, Type: gpuhal.BindingTypeUniformBuffer, Stages: gpuhal.StageAllGraphics},
	{Binding: 1, Type: gpuhal.BindingTypeTexture, Stages: gpuhal.StageFragment},
	{Binding: 2, Type: gpuhal.BindingTypeSampler, Stages: gpuhal.StageFragment},
}}

// computeSet is the set 0 layout matching computeSPIRV.
var computeSet = gpuhal.SetLayout{Bindings: []gpuhal.BindingDescriptor{
	{Binding: 0, Type: gpuhal.BindingTypeStorageBuffer, Stages: gpuhal.StageCompute, Access: gpuhal.AccessReadWrite},
}}

func mustShader(t *testing.T, d *Device, label string, words []uint32) gpuhal.ShaderHandle {
	t.Helper()
	h, err := d.CreateShaderModule(&gpuhal.ShaderDescriptor{Label: label, SPIRV: words})
	if err != nil {
		t.Fatalf("CreateShaderModule(%s) error = %v", label, err)
	}
	return h
}

func mustGraphicsPipeline(t *testing.T, d *Device, label string, cull gpuhal.CullMode) gpuhal.PipelineHandle {
	t.Helper()
	p, err := d.CreateGraphicsPipeline(&gpuhal.GraphicsPipelineDescriptor{
		Label:        label,
		Vertex:       mustShader(t, d, label+"-vs", vertexSPIRV()),
		Fragment:     mustShader(t, d, label+"-fs", fragmentSPIRV()),
		Sets:         []gpuhal.SetLayout{graphicsSet},
		ColorFormats: []gputypes.TextureFormat{gputypes.TextureFormatRGBA8Unorm},
		CullMode:     cull,
	})
	if err != nil {
		t.Fatalf("CreateGraphicsPipeline(%s) error = %v", label, err)
	}
	return p
}

func mustComputePipeline(t *testing.T, d *Device, label string) gpuhal.PipelineHandle {
	t.Helper()
	p, err := d.CreateComputePipeline(&gpuhal.ComputePipelineDescriptor{
		Label:  label,
		Shader: mustShader(t, d, label+"-cs", computeSPIRV()),
		Sets:   []gpuhal.SetLayout{computeSet},
	})
	if err != nil {
		t.Fatalf("CreateComputePipeline(%s) error = %v", label, err)
	}
	return p
}

func mustTexture(t *testing.T, d *Device, desc gpuhal.TextureDescriptor) gpuhal.TextureHandle {
	t.Helper()
	h, err := d.CreateTexture(&desc)
	if err != nil {
		t.Fatalf("CreateTexture(%s) error = %v", desc.Label, err)
	}
	return h
}

func mustBuffer(t *testing.T, d *Device, label string, size uint64, usage gpuhal.BufferUsage) gpuhal.BufferHandle {
	t.Helper()
	h, err := d.CreateBuffer(&gpuhal.BufferDescriptor{Label: label, Size: size, Usage: usage})
	if err != nil {
		t.Fatalf("CreateBuffer(%s) error = %v", label, err)
	}
	return h
}

// renderTarget creates a w×h RGBA8 color target and a framebuffer over it.
func renderTarget(t *testing.T, d *Device, w, h uint32) gpuhal.FramebufferHandle {
	t.Helper()
	tex := mustTexture(t, d, gpuhal.TextureDescriptor{
		Label:  "target",
		Format: gputypes.TextureFormatRGBA8Unorm,
		Width:  w,
		Height: h,
		Usage:  gpuhal.TextureUsageRenderTarget,
	})
	fb, err := d.CreateFramebuffer(&gpuhal.FramebufferDescriptor{
		Label: "fb",
		Color: []gpuhal.Attachment{{Texture: tex}},
	})
	if err != nil {
		t.Fatalf("CreateFramebuffer() error = %v", err)
	}
	return fb
}
