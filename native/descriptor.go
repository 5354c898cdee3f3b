package native

import "github.com/gogpu/gputypes"

// Extent3D is a size in texels.
type Extent3D struct {
	Width, Height, DepthOrArrayLayers uint32
}

// Origin3D is a texel offset.
type Origin3D struct {
	X, Y, Z uint32
}

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Label            string
	Size             uint64
	Usage            gputypes.BufferUsage
	MappedAtCreation bool
}

// TextureDescriptor describes a texture to create.
type TextureDescriptor struct {
	Label         string
	Size          Extent3D
	MipLevelCount uint32
	SampleCount   uint32
	Dimension     gputypes.TextureDimension
	Format        gputypes.TextureFormat
	Usage         gputypes.TextureUsage
}

// TextureViewDescriptor describes a view. Zero counts mean all remaining.
type TextureViewDescriptor struct {
	Label           string
	Format          gputypes.TextureFormat
	Dimension       gputypes.TextureViewDimension
	BaseMipLevel    uint32
	MipLevelCount   uint32
	BaseArrayLayer  uint32
	ArrayLayerCount uint32
}

// SamplerDescriptor describes a sampler to create.
type SamplerDescriptor struct {
	Label                                    string
	AddressModeU, AddressModeV, AddressModeW gputypes.AddressMode
	MagFilter, MinFilter, MipmapFilter       gputypes.FilterMode
	LodMinClamp, LodMaxClamp                 float32
	MaxAnisotropy                            uint16
}

// BindGroupLayoutDescriptor describes a bind group layout.
type BindGroupLayoutDescriptor struct {
	Label   string
	Entries []gputypes.BindGroupLayoutEntry
}

// BindGroupEntry binds one resource. Exactly one of Buffer, TextureView or
// Sampler is set.
type BindGroupEntry struct {
	Binding     uint32
	Buffer      Buffer
	Offset      uint64
	Size        uint64
	TextureView TextureView
	Sampler     Sampler
}

// BindGroupDescriptor describes a bind group.
type BindGroupDescriptor struct {
	Label   string
	Layout  BindGroupLayout
	Entries []BindGroupEntry
}

// PipelineLayoutDescriptor describes a pipeline layout.
type PipelineLayoutDescriptor struct {
	Label            string
	BindGroupLayouts []BindGroupLayout
}

// ShaderModuleDescriptor describes a SPIR-V shader module.
type ShaderModuleDescriptor struct {
	Label string
	SPIRV []uint32
}

// VertexState is the vertex stage of a render pipeline.
type VertexState struct {
	Module     ShaderModule
	EntryPoint string
	Buffers    []gputypes.VertexBufferLayout
}

// FragmentState is the fragment stage of a render pipeline.
type FragmentState struct {
	Module     ShaderModule
	EntryPoint string
	Targets    []gputypes.ColorTargetState
}

// DepthStencilState is the depth configuration of a render pipeline.
type DepthStencilState struct {
	Format            gputypes.TextureFormat
	DepthWriteEnabled bool
	DepthCompare      gputypes.CompareFunction
}

// RenderPipelineDescriptor describes a render pipeline.
type RenderPipelineDescriptor struct {
	Label        string
	Layout       PipelineLayout
	Vertex       VertexState
	Fragment     *FragmentState
	DepthStencil *DepthStencilState
	Primitive    gputypes.PrimitiveState
	Multisample  gputypes.MultisampleState
}

// ComputePipelineDescriptor describes a compute pipeline.
type ComputePipelineDescriptor struct {
	Label      string
	Layout     PipelineLayout
	Module     ShaderModule
	EntryPoint string
}

// RenderPassColorAttachment is one color target of a render pass.
type RenderPassColorAttachment struct {
	View          TextureView
	ResolveTarget TextureView
	LoadOp        gputypes.LoadOp
	StoreOp       gputypes.StoreOp
	ClearValue    gputypes.Color
}

// RenderPassDepthStencilAttachment is the depth/stencil target of a render pass.
type RenderPassDepthStencilAttachment struct {
	View              TextureView
	DepthLoadOp       gputypes.LoadOp
	DepthStoreOp      gputypes.StoreOp
	DepthClearValue   float32
	StencilLoadOp     gputypes.LoadOp
	StencilStoreOp    gputypes.StoreOp
	StencilClearValue uint32
}

// RenderPassDescriptor describes a render pass.
type RenderPassDescriptor struct {
	Label                  string
	ColorAttachments       []RenderPassColorAttachment
	DepthStencilAttachment *RenderPassDepthStencilAttachment
}

// TexelCopyBufferLayout describes texel rows in a buffer.
type TexelCopyBufferLayout struct {
	Offset       uint64
	BytesPerRow  uint32
	RowsPerImage uint32
}

// TexelCopyTextureInfo selects the texture side of a copy.
type TexelCopyTextureInfo struct {
	Texture  Texture
	MipLevel uint32
	Origin   Origin3D
}
