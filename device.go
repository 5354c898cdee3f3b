package gpuhal

import "github.com/gogpu/gputypes"

// Device is the engine-facing GPU device.
//
// Resource creation returns typed handles. Destroying a handle that is nil
// is a no-op; destroying or using a stale handle is a contract violation.
//
// Thread Safety:
// Resource creation and destruction are safe for concurrent use. Frame
// lifecycle calls (BeginFrame, EndFrame, DeviceWaitIdle) and the returned
// CommandContext belong to the render goroutine.
type Device interface {
	CreateBuffer(desc *BufferDescriptor) (BufferHandle, error)
	DestroyBuffer(h BufferHandle)

	CreateTexture(desc *TextureDescriptor) (TextureHandle, error)
	DestroyTexture(h TextureHandle)

	CreateSampler(desc *SamplerDescriptor) (SamplerHandle, error)
	DestroySampler(h SamplerHandle)

	CreateFramebuffer(desc *FramebufferDescriptor) (FramebufferHandle, error)
	DestroyFramebuffer(h FramebufferHandle)

	CreateDescriptorSet(desc *DescriptorSetDescriptor) (DescriptorSetHandle, error)
	WriteDescriptorSet(h DescriptorSetHandle, writes ...DescriptorWrite)
	DestroyDescriptorSet(h DescriptorSetHandle)

	CreateShaderModule(desc *ShaderDescriptor) (ShaderHandle, error)
	DestroyShaderModule(h ShaderHandle)

	CreateGraphicsPipeline(desc *GraphicsPipelineDescriptor) (PipelineHandle, error)
	CreateComputePipeline(desc *ComputePipelineDescriptor) (PipelineHandle, error)
	DestroyPipeline(h PipelineHandle)

	// ReadbackData returns a copy of the CPU shadow of a readback buffer and
	// whether a readback has completed since the buffer was created.
	ReadbackData(h BufferHandle) ([]byte, bool)

	// BeginFrame waits for the frame slot's previous submission, then returns
	// the slot's command context in the Encoding state.
	BeginFrame() CommandContext

	// EndFrame finalizes and submits the current frame.
	EndFrame()

	// DeviceWaitIdle blocks until all submitted work has completed.
	DeviceWaitIdle()

	FormatCapabilities(format gputypes.TextureFormat) FormatCaps
	Features() Features
	AdapterName() string

	// Destroy drains in-flight work and releases every resource.
	Destroy()
}

// CommandContext records GPU work for one frame slot.
//
// CommandContext is NOT safe for concurrent use.
//
// Drawing requires an open render pass and dispatching requires an open
// compute pass. Opening a render pass closes an open compute pass; opening a
// render pass while one is open, or any operation without a matching
// encoder, is a contract violation.
type CommandContext interface {
	BeginRenderPass(fb FramebufferHandle, desc *RenderPassDescriptor)
	EndRenderPass()
	BeginComputePass()
	EndComputePass()

	SetViewport(vp Viewport)
	SetScissor(r Rect)
	SetCullMode(mode CullMode)
	SetBlendConstant(c gputypes.Color)
	SetStencilReference(ref uint32)

	BindPipeline(p PipelineHandle)
	BindDescriptorSet(index uint32, set DescriptorSetHandle, dynamicOffsets ...uint32)
	BindVertexBuffer(slot uint32, buf BufferHandle, offset uint64)
	BindIndexBuffer(buf BufferHandle, format gputypes.IndexFormat, offset uint64)

	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
	DrawIndirect(buf BufferHandle, offset uint64)
	DrawIndexedIndirect(buf BufferHandle, offset uint64)
	Dispatch(x, y, z uint32)
	DispatchIndirect(buf BufferHandle, offset uint64)

	UpdateBuffer(buf BufferHandle, offset uint64, data []byte)
	UpdateTexture(dst TextureRegion, data []byte, layout BufferLayout)
	CopyBuffer(src, dst BufferHandle, srcOffset, dstOffset, size uint64)
	CopyBufferToTexture(src BufferHandle, layout BufferLayout, dst TextureRegion)
	CopyTextureToBuffer(src TextureRegion, dst BufferHandle, layout BufferLayout)

	// AddReadbackBuffer schedules buf's contents to be copied into its CPU
	// shadow once the work submitted with this context completes.
	AddReadbackBuffer(buf BufferHandle)
}
