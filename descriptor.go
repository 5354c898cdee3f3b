package gpuhal

import (
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
)

// BufferUsage is a bitset of the ways a buffer will be used.
type BufferUsage uint32

const (
	// BufferUsageVertex allows binding as a vertex buffer.
	BufferUsageVertex BufferUsage = 1 << iota
	// BufferUsageIndex allows binding as an index buffer.
	BufferUsageIndex
	// BufferUsageUniform allows binding as a uniform buffer.
	BufferUsageUniform
	// BufferUsageStorage allows binding as a storage buffer.
	BufferUsageStorage
	// BufferUsageIndirect allows use as indirect draw/dispatch arguments.
	BufferUsageIndirect
	// BufferUsageTransferSrc allows use as a copy source.
	BufferUsageTransferSrc
	// BufferUsageTransferDst allows use as a copy destination and UpdateBuffer target.
	BufferUsageTransferDst
	// BufferUsageReadback allocates a CPU shadow filled after each Submit the
	// buffer was registered with via AddReadbackBuffer.
	BufferUsageReadback
)

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Size is the buffer size in bytes.
	Size uint64

	// Usage specifies how the buffer will be used.
	Usage BufferUsage
}

// TextureType is the shape of a texture.
type TextureType uint8

const (
	// TextureType2D is a single 2D image.
	TextureType2D TextureType = iota
	// TextureType2DArray is an array of 2D images.
	TextureType2DArray
	// TextureTypeCube is six 2D faces.
	TextureTypeCube
	// TextureTypeCubeArray is an array of cubes.
	TextureTypeCubeArray
	// TextureType3D is a volume.
	TextureType3D
)

// String returns the string representation of TextureType.
func (t TextureType) String() string {
	switch t {
	case TextureType2D:
		return "2D"
	case TextureType2DArray:
		return "2DArray"
	case TextureTypeCube:
		return "Cube"
	case TextureTypeCubeArray:
		return "CubeArray"
	case TextureType3D:
		return "3D"
	default:
		return fmt.Sprintf("Unknown(%d)", int(t))
	}
}

// TextureUsage is a bitset of the ways a texture will be used.
type TextureUsage uint32

const (
	// TextureUsageSampled allows sampling in shaders.
	TextureUsageSampled TextureUsage = 1 << iota
	// TextureUsageStorage allows binding as a storage image.
	TextureUsageStorage
	// TextureUsageRenderTarget allows use as a framebuffer attachment.
	TextureUsageRenderTarget
	// TextureUsageTransferSrc allows use as a copy source.
	TextureUsageTransferSrc
	// TextureUsageTransferDst allows use as a copy destination and upload target.
	TextureUsageTransferDst
)

// TextureDescriptor describes a texture to create.
type TextureDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Type is the texture shape.
	Type TextureType

	// Format is the texel format.
	Format gputypes.TextureFormat

	// Width and Height are the base level size in texels.
	Width, Height uint32

	// Depth is the base level depth of a 3D texture. Ignored otherwise.
	Depth uint32

	// ArrayLayers is the number of array elements for array types
	// (cubes for TextureTypeCubeArray). Zero means one.
	ArrayLayers uint32

	// MipLevels is the number of mip levels. Zero means one.
	MipLevels uint32

	// SampleCount is the MSAA sample count. Zero means one.
	SampleCount uint32

	// Usage specifies how the texture will be used.
	Usage TextureUsage
}

// LayerCount returns the number of native array layers the texture needs.
func (d *TextureDescriptor) LayerCount() uint32 {
	n := max(d.ArrayLayers, 1)
	switch d.Type {
	case TextureType2D, TextureType3D:
		return 1
	case TextureTypeCube:
		return 6
	case TextureTypeCubeArray:
		return 6 * n
	default:
		return n
	}
}

// AllRemaining requests every mip level or layer from the base onward.
const AllRemaining uint32 = 0

// ViewDescriptor selects a view of a texture.
// The zero value is the default view: the texture's own format and type over
// every mip level and layer.
type ViewDescriptor struct {
	// Format overrides the texture format. TextureFormatUndefined keeps it.
	Format gputypes.TextureFormat

	// Type overrides the view shape when UseType is set.
	Type    TextureType
	UseType bool

	// BaseMip is the first mip level.
	BaseMip uint32

	// MipCount is the number of levels, or AllRemaining.
	MipCount uint32

	// BaseLayer is the first array layer.
	BaseLayer uint32

	// LayerCount is the number of layers, or AllRemaining.
	LayerCount uint32
}

// SamplerDescriptor describes a sampler to create.
type SamplerDescriptor struct {
	// Label is an optional debug name.
	Label string

	// MinFilter, MagFilter and MipFilter select the filter for each case.
	MinFilter, MagFilter, MipFilter gputypes.FilterMode

	// AddressU, AddressV and AddressW select the wrap mode per axis.
	AddressU, AddressV, AddressW gputypes.AddressMode

	// LodMinClamp and LodMaxClamp clamp the selected level of detail.
	// A zero LodMaxClamp means no upper clamp.
	LodMinClamp, LodMaxClamp float32

	// MaxAnisotropy enables anisotropic filtering when greater than one.
	MaxAnisotropy uint16
}

// LodMaxUnclamped is the LodMaxClamp used when the descriptor leaves it zero.
const LodMaxUnclamped float32 = math.MaxFloat32

// Attachment references one subresource of a texture used as a render target.
type Attachment struct {
	Texture  TextureHandle
	MipLevel uint32
	Layer    uint32
}

// FramebufferDescriptor describes a set of render targets.
// Every attachment must have the same dimensions at the selected mip level.
type FramebufferDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Color lists the color attachments in location order.
	Color []Attachment

	// DepthStencil is the depth/stencil attachment. A nil Texture means none.
	DepthStencil Attachment
}

// LoadOp selects what happens to an attachment at the start of a pass.
type LoadOp uint8

const (
	// LoadOpLoad keeps the previous contents.
	LoadOpLoad LoadOp = iota
	// LoadOpClear clears to the descriptor's clear value.
	LoadOpClear
	// LoadOpDontCare leaves the contents undefined.
	LoadOpDontCare
)

// StoreOp selects what happens to an attachment at the end of a pass.
type StoreOp uint8

const (
	// StoreOpStore writes the results.
	StoreOpStore StoreOp = iota
	// StoreOpDiscard discards the results.
	StoreOpDiscard
)

// RenderPassDescriptor configures a render pass over a framebuffer.
type RenderPassDescriptor struct {
	Label string

	ColorLoadOp  LoadOp
	ColorStoreOp StoreOp
	ClearColor   gputypes.Color

	DepthLoadOp  LoadOp
	DepthStoreOp StoreOp
	ClearDepth   float32

	StencilLoadOp  LoadOp
	StencilStoreOp StoreOp
	ClearStencil   uint32
}

// Viewport is the viewport transform of a render pass.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// Rect is a scissor rectangle in framebuffer pixels.
type Rect struct {
	X, Y, Width, Height uint32
}

// CullMode selects which triangle faces are discarded.
type CullMode uint8

const (
	// CullModeNone draws both faces.
	CullModeNone CullMode = iota
	// CullModeFront discards front faces.
	CullModeFront
	// CullModeBack discards back faces.
	CullModeBack
	// CullModeDynamic is only valid in pipeline descriptors: the cull mode is
	// taken from the command context at draw time.
	CullModeDynamic
)

// String returns the string representation of CullMode.
func (c CullMode) String() string {
	switch c {
	case CullModeNone:
		return "None"
	case CullModeFront:
		return "Front"
	case CullModeBack:
		return "Back"
	case CullModeDynamic:
		return "Dynamic"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// BlendMode is a preset color blend configuration.
type BlendMode uint8

const (
	// BlendNone writes source colors unmodified.
	BlendNone BlendMode = iota
	// BlendAlpha is straight alpha blending.
	BlendAlpha
	// BlendPremultiplied is premultiplied alpha blending.
	BlendPremultiplied
	// BlendAdditive adds source to destination.
	BlendAdditive
)

// DepthState configures depth testing for a graphics pipeline.
type DepthState struct {
	Format  gputypes.TextureFormat
	Write   bool
	Compare gputypes.CompareFunction
}

// VertexAttribute describes one attribute inside a vertex buffer.
type VertexAttribute struct {
	Location uint32
	Format   gputypes.VertexFormat
	Offset   uint64
}

// VertexLayout describes one vertex buffer slot.
type VertexLayout struct {
	Stride      uint64
	PerInstance bool
	Attributes  []VertexAttribute
}

// SetLayout describes one descriptor set of a pipeline.
type SetLayout struct {
	Bindings []BindingDescriptor
	Mode     BindMode
}

// GraphicsPipelineDescriptor describes a render pipeline.
type GraphicsPipelineDescriptor struct {
	Label string

	// Vertex and Fragment are the stage modules. They may be the same module.
	Vertex, Fragment           ShaderHandle
	VertexEntry, FragmentEntry string

	// Constants specializes both modules.
	Constants map[uint32]SpecValue

	Sets          []SetLayout
	VertexLayouts []VertexLayout
	ColorFormats  []gputypes.TextureFormat
	Blend         BlendMode
	Depth         *DepthState
	Topology      gputypes.PrimitiveTopology

	// CullMode may be CullModeDynamic, in which case a native variant is
	// built for each of None, Front and Back.
	CullMode CullMode

	SampleCount uint32
}

// ComputePipelineDescriptor describes a compute pipeline.
type ComputePipelineDescriptor struct {
	Label      string
	Shader     ShaderHandle
	EntryPoint string
	Constants  map[uint32]SpecValue
	Sets       []SetLayout
}

// ShaderDescriptor describes a shader module from SPIR-V.
type ShaderDescriptor struct {
	Label string

	// SPIRV is the module bytecode.
	SPIRV []uint32
}

// DescriptorSetDescriptor describes a descriptor set to create.
type DescriptorSetDescriptor struct {
	Label  string
	Layout SetLayout
}

// DescriptorWrite updates one binding of a descriptor set. Exactly one of
// Buffer, Texture or Sampler is used, selected by the binding's type.
type DescriptorWrite struct {
	Binding uint32

	Buffer BufferHandle
	Offset uint64
	// Size is the bound range. Zero binds to the end of the buffer.
	Size uint64

	Texture TextureHandle
	View    ViewDescriptor

	Sampler SamplerHandle
}

// TextureRegion selects a box inside one mip level and layer of a texture.
type TextureRegion struct {
	Texture       TextureHandle
	MipLevel      uint32
	Layer         uint32
	X, Y, Z       uint32
	Width, Height uint32
	// Depth is the box depth. Zero means one.
	Depth uint32
}

// BufferLayout describes how texel rows are laid out in a buffer.
type BufferLayout struct {
	Offset       uint64
	BytesPerRow  uint32
	RowsPerImage uint32
}
