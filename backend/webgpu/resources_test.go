package webgpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpuhal"
	"github.com/gogpu/gpuhal/native/nativetest"
)

// =============================================================================
// Buffers
// =============================================================================

func TestCreateBuffer(t *testing.T) {
	d, nd := newTestDevice(t)

	if _, err := d.CreateBuffer(&gpuhal.BufferDescriptor{Size: 0}); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("CreateBuffer(size 0) error = %v, want ErrInvalidDescriptor", err)
	}

	nd.FailNext("Buffer", errors.New("out of memory"))
	if _, err := d.CreateBuffer(&gpuhal.BufferDescriptor{Size: 16}); !errors.Is(err, ErrCreateFailed) {
		t.Errorf("CreateBuffer(injected failure) error = %v, want ErrCreateFailed", err)
	}

	h := mustBuffer(t, d, "", 16, gpuhal.BufferUsageUniform)
	b := d.buffer("test", h)
	want := "buffer-" + d.ID().String()[:8] + "-"
	if len(b.Label()) <= len(want) || b.Label()[:len(want)] != want {
		t.Errorf("default label = %q, want prefix %q", b.Label(), want)
	}
}

func TestNativeBufferUsage(t *testing.T) {
	d, _ := newTestDevice(t)
	tests := []struct {
		name  string
		usage gpuhal.BufferUsage
		want  gputypes.BufferUsage
	}{
		{"uniform", gpuhal.BufferUsageUniform, gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst},
		{"vertex copy src", gpuhal.BufferUsageVertex | gpuhal.BufferUsageTransferSrc,
			gputypes.BufferUsageVertex | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst},
		{"readback", gpuhal.BufferUsageReadback, gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst},
		{"readback drops extras", gpuhal.BufferUsageReadback | gpuhal.BufferUsageStorage,
			gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nativeBufferUsage(tt.usage, tt.name, d.log); got != tt.want {
				t.Errorf("nativeBufferUsage(%#x) = %#x, want %#x", uint32(tt.usage), uint64(got), uint64(tt.want))
			}
		})
	}
}

func TestDestroyBuffer(t *testing.T) {
	d, nd := newTestDevice(t)
	h := mustBuffer(t, d, "tmp", 16, gpuhal.BufferUsageVertex)
	d.DestroyBuffer(h)
	d.DestroyBuffer(0)

	if live := nd.Live("Buffer"); live != 0 {
		t.Errorf("Live(Buffer) = %d, want 0", live)
	}
	expectFatalContains(t, func() { d.DestroyBuffer(h) }, "stale")
	expectFatalContains(t, func() { d.ReadbackData(mustBuffer(t, d, "plain", 4, gpuhal.BufferUsageVertex)) }, "BufferUsageReadback")
}

// =============================================================================
// Textures
// =============================================================================

func TestCreateTexture_Validation(t *testing.T) {
	d, _ := newTestDevice(t)
	tests := []struct {
		name string
		desc gpuhal.TextureDescriptor
	}{
		{"zero width", gpuhal.TextureDescriptor{Height: 4, Format: gputypes.TextureFormatRGBA8Unorm}},
		{"non-square cube", gpuhal.TextureDescriptor{Type: gpuhal.TextureTypeCube, Width: 8, Height: 4, Format: gputypes.TextureFormatRGBA8Unorm}},
		{"unknown type", gpuhal.TextureDescriptor{Type: gpuhal.TextureType(99), Width: 4, Height: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.CreateTexture(&tt.desc); !errors.Is(err, ErrInvalidDescriptor) {
				t.Errorf("CreateTexture() error = %v, want ErrInvalidDescriptor", err)
			}
		})
	}
}

func TestCreateTexture_UnknownFormatFallsBack(t *testing.T) {
	d, nd := newTestDevice(t)
	h := mustTexture(t, d, gpuhal.TextureDescriptor{Label: "odd", Width: 4, Height: 4})
	nt := d.texture("test", h).Native().(*nativetest.Texture)
	if nt.Desc.Format != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("native format = %v, want RGBA8Unorm", nt.Desc.Format)
	}
	if got := nd.Created("Texture"); got != 1 {
		t.Errorf("Created(Texture) = %d, want 1", got)
	}
}

func TestTexture_ViewMemoization(t *testing.T) {
	d, nd := newTestDevice(t)
	h := mustTexture(t, d, gpuhal.TextureDescriptor{
		Label:       "arr",
		Type:        gpuhal.TextureType2DArray,
		Format:      gputypes.TextureFormatRGBA8Unorm,
		Width:       16,
		Height:      16,
		ArrayLayers: 4,
		MipLevels:   3,
		Usage:       gpuhal.TextureUsageSampled,
	})
	tex := d.texture("test", h)

	all, err := tex.View(gpuhal.ViewDescriptor{})
	if err != nil {
		t.Fatalf("View(all) error = %v", err)
	}
	explicit, err := tex.View(gpuhal.ViewDescriptor{MipCount: 3, LayerCount: 4})
	if err != nil {
		t.Fatalf("View(explicit) error = %v", err)
	}
	if all != explicit {
		t.Error("AllRemaining and the explicit full range returned different views")
	}
	if _, err := tex.View(gpuhal.ViewDescriptor{BaseMip: 1}); err != nil {
		t.Fatalf("View(mip 1) error = %v", err)
	}
	if got := nd.Created("TextureView"); got != 2 {
		t.Errorf("Created(TextureView) = %d, want 2", got)
	}
	if tex.ViewCount() != 2 {
		t.Errorf("ViewCount() = %d, want 2", tex.ViewCount())
	}

	bad := []gpuhal.ViewDescriptor{
		{BaseMip: 3},
		{BaseLayer: 4},
		{BaseMip: 1, MipCount: 3},
		{BaseLayer: 2, LayerCount: 3},
		{BaseMip: 1, MipCount: 0xFFFFFFFF},
		{BaseLayer: 1, LayerCount: 0xFFFFFFFF},
	}
	for _, vd := range bad {
		if _, err := tex.View(vd); !errors.Is(err, ErrInvalidDescriptor) {
			t.Errorf("View(%+v) error = %v, want ErrInvalidDescriptor", vd, err)
		}
	}
	if tex.ViewCount() != 2 {
		t.Errorf("ViewCount() = %d after invalid ranges, want 2", tex.ViewCount())
	}

	d.DestroyTexture(h)
	if live := nd.Live("TextureView"); live != 0 {
		t.Errorf("Live(TextureView) = %d after DestroyTexture, want 0", live)
	}
	if live := nd.Live("Texture"); live != 0 {
		t.Errorf("Live(Texture) = %d after DestroyTexture, want 0", live)
	}
}

// =============================================================================
// Samplers
// =============================================================================

func TestCreateSampler_Defaults(t *testing.T) {
	d, _ := newTestDevice(t)
	h, err := d.CreateSampler(nil)
	if err != nil {
		t.Fatalf("CreateSampler(nil) error = %v", err)
	}
	ns := d.samplers.MustGet("test", gpuhal.Handle(h)).Native().(*nativetest.Sampler)
	if ns.Desc.AddressModeU != gputypes.AddressModeClampToEdge {
		t.Errorf("AddressModeU = %v, want ClampToEdge", ns.Desc.AddressModeU)
	}
	if ns.Desc.LodMaxClamp != gpuhal.LodMaxUnclamped {
		t.Errorf("LodMaxClamp = %g, want %g", ns.Desc.LodMaxClamp, gpuhal.LodMaxUnclamped)
	}
	if ns.Desc.MaxAnisotropy != 1 {
		t.Errorf("MaxAnisotropy = %d, want 1", ns.Desc.MaxAnisotropy)
	}

	_, err = d.CreateSampler(&gpuhal.SamplerDescriptor{LodMinClamp: 4, LodMaxClamp: 2})
	if !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("CreateSampler(inverted lod) error = %v, want ErrInvalidDescriptor", err)
	}
}

// =============================================================================
// Framebuffers
// =============================================================================

func TestCreateFramebuffer(t *testing.T) {
	d, _ := newTestDevice(t)
	color := mustTexture(t, d, gpuhal.TextureDescriptor{
		Label: "color", Format: gputypes.TextureFormatRGBA8Unorm, Width: 32, Height: 32, MipLevels: 2,
		Usage: gpuhal.TextureUsageRenderTarget,
	})
	small := mustTexture(t, d, gpuhal.TextureDescriptor{
		Label: "small", Format: gputypes.TextureFormatRGBA8Unorm, Width: 16, Height: 16,
		Usage: gpuhal.TextureUsageRenderTarget,
	})
	depth := mustTexture(t, d, gpuhal.TextureDescriptor{
		Label: "depth", Format: gputypes.TextureFormatDepth24PlusStencil8, Width: 16, Height: 16,
		Usage: gpuhal.TextureUsageRenderTarget,
	})

	// Mip 1 of a 32x32 texture matches a 16x16 one.
	h, err := d.CreateFramebuffer(&gpuhal.FramebufferDescriptor{
		Color:        []gpuhal.Attachment{{Texture: color, MipLevel: 1}, {Texture: small}},
		DepthStencil: gpuhal.Attachment{Texture: depth},
	})
	if err != nil {
		t.Fatalf("CreateFramebuffer() error = %v", err)
	}
	fb := d.framebuffer("test", h)
	if w, hh := fb.Size(); w != 16 || hh != 16 {
		t.Errorf("Size() = %dx%d, want 16x16", w, hh)
	}
	if !fb.HasDepth() {
		t.Error("HasDepth() = false")
	}

	expectFatalContains(t, func() {
		d.CreateFramebuffer(&gpuhal.FramebufferDescriptor{
			Label: "mismatch",
			Color: []gpuhal.Attachment{{Texture: color}, {Texture: small}},
		})
	}, "framebuffer is 32x32")

	if _, err := d.CreateFramebuffer(&gpuhal.FramebufferDescriptor{}); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("CreateFramebuffer(empty) error = %v, want ErrInvalidDescriptor", err)
	}
	if _, err := d.CreateFramebuffer(&gpuhal.FramebufferDescriptor{DepthStencil: gpuhal.Attachment{Texture: small}}); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("CreateFramebuffer(color as depth) error = %v, want ErrInvalidDescriptor", err)
	}

	d.DestroyFramebuffer(h)
	expectFatalContains(t, func() { d.DestroyFramebuffer(h) }, "stale")
}

// =============================================================================
// Descriptor sets
// =============================================================================

func TestDescriptorSet_Writes(t *testing.T) {
	d, nd := newTestDevice(t)
	set, err := d.CreateDescriptorSet(&gpuhal.DescriptorSetDescriptor{Label: "s", Layout: graphicsSet})
	if err != nil {
		t.Fatalf("CreateDescriptorSet() error = %v", err)
	}
	s := d.descriptorSet("test", set)
	ubo := mustBuffer(t, d, "ubo", 64, gpuhal.BufferUsageUniform)

	expectFatalContains(t, func() {
		d.WriteDescriptorSet(set, gpuhal.DescriptorWrite{Binding: 5, Buffer: ubo})
	}, "has no binding 5")
	expectFatalContains(t, func() {
		s.SetSampler(0, &Sampler{})
	}, "not a sampler")
	expectFatalContains(t, func() {
		s.SetBuffer(0, d.buffer("test", ubo), 128, 0)
	}, "past end")

	d.WriteDescriptorSet(set, gpuhal.DescriptorWrite{Binding: 0, Buffer: ubo, Offset: 16})
	expectFatalContains(t, func() { s.BindGroup() }, "never written")
	if got := nd.Created("BindGroup"); got != 0 {
		t.Errorf("Created(BindGroup) = %d, want 0", got)
	}
	if got := s.entries[0].Size; got != 48 {
		t.Errorf("bound size = %d, want 48 (to end of buffer)", got)
	}
}

func TestDescriptorSet_LazyRebuild(t *testing.T) {
	d, nd := newTestDevice(t)
	set := graphicsDescriptorSet(t, d)
	s := d.descriptorSet("test", set)

	g1, err := s.BindGroup()
	if err != nil {
		t.Fatalf("BindGroup() error = %v", err)
	}
	g2, _ := s.BindGroup()
	if g1 != g2 || s.Builds() != 1 {
		t.Errorf("clean set rebuilt: same=%v builds=%d", g1 == g2, s.Builds())
	}

	d.WriteDescriptorSet(set, gpuhal.DescriptorWrite{Binding: 0, Buffer: mustBuffer(t, d, "ubo2", 64, gpuhal.BufferUsageUniform)})
	g3, _ := s.BindGroup()
	if g3 == g1 || s.Builds() != 2 {
		t.Errorf("dirty set not rebuilt: builds=%d", s.Builds())
	}
	if live := nd.Live("BindGroup"); live != 1 {
		t.Errorf("Live(BindGroup) = %d, want 1 (old group released)", live)
	}

	d.DestroyDescriptorSet(set)
	if live := nd.Live("BindGroup"); live != 0 {
		t.Errorf("Live(BindGroup) = %d after destroy, want 0", live)
	}
}

func TestDescriptorSet_SharesLayoutWithPipelines(t *testing.T) {
	d, nd := newTestDevice(t)
	p := mustGraphicsPipeline(t, d, "p", gpuhal.CullModeNone)
	set := graphicsDescriptorSet(t, d)

	if got := nd.Created("BindGroupLayout"); got != 1 {
		t.Errorf("Created(BindGroupLayout) = %d, want 1", got)
	}
	if d.descriptorSet("test", set).Layout() != d.pipeline("test", p).Sets()[0] {
		t.Error("descriptor set and pipeline use different cached layouts")
	}
}
