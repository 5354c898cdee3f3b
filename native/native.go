// Package native defines the WebGPU-style graphics API consumed by the
// gpuhal WebGPU backend.
//
// The interfaces mirror the WebGPU object model: a Device creates resources
// and command encoders, a Queue accepts command buffers, and asynchronous
// completion (buffer mapping, submitted work) is reported through callbacks.
// Callbacks never run spontaneously. They fire only from Device.Tick or
// Device.WaitAny, on the calling goroutine, which makes event pumping an
// explicit step of the frame loop.
//
// Implementations:
//   - native/halnative: gogpu/wgpu HAL (Vulkan, or noop for tests)
//   - native/nativetest: deterministic in-memory fake with call recording
package native

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpuhal"
)

// Native API errors.
var (
	// ErrDeviceLost is returned when creating objects on a lost device.
	ErrDeviceLost = errors.New("native: device lost")

	// ErrEncoderFinished is returned when finishing an encoder twice.
	ErrEncoderFinished = errors.New("native: encoder already finished")

	// ErrPassOpen is returned when finishing an encoder with an open pass.
	ErrPassOpen = errors.New("native: pass still open")
)

// WaitForever is the WaitAny timeout that never expires.
const WaitForever = time.Duration(math.MaxInt64)

// Future identifies one pending asynchronous operation.
type Future uint64

// WaitStatus is the result of Device.WaitAny.
type WaitStatus int

const (
	// WaitStatusSuccess means the future completed and its callback ran.
	WaitStatusSuccess WaitStatus = iota
	// WaitStatusTimedOut means the timeout expired first.
	WaitStatusTimedOut
	// WaitStatusError means the wait itself failed (unknown future, lost device).
	WaitStatusError
)

// String returns the string representation of WaitStatus.
func (s WaitStatus) String() string {
	switch s {
	case WaitStatusSuccess:
		return "Success"
	case WaitStatusTimedOut:
		return "TimedOut"
	case WaitStatusError:
		return "Error"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// WorkDoneStatus is passed to Queue.OnSubmittedWorkDone callbacks.
type WorkDoneStatus int

const (
	// WorkDoneStatusSuccess means all work submitted before registration finished.
	WorkDoneStatusSuccess WorkDoneStatus = iota
	// WorkDoneStatusError means the work failed.
	WorkDoneStatusError
	// WorkDoneStatusDeviceLost means the device was lost before completion.
	WorkDoneStatusDeviceLost
)

// String returns the string representation of WorkDoneStatus.
func (s WorkDoneStatus) String() string {
	switch s {
	case WorkDoneStatusSuccess:
		return "Success"
	case WorkDoneStatusError:
		return "Error"
	case WorkDoneStatusDeviceLost:
		return "DeviceLost"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// MapStatus is passed to Buffer.MapAsync callbacks.
type MapStatus int

const (
	// MapStatusSuccess indicates mapping completed successfully.
	MapStatusSuccess MapStatus = iota
	// MapStatusValidationError indicates a validation error.
	MapStatusValidationError
	// MapStatusDeviceLost indicates the device was lost.
	MapStatusDeviceLost
	// MapStatusDestroyedBeforeCallback indicates the buffer was released first.
	MapStatusDestroyedBeforeCallback
	// MapStatusUnmappedBeforeCallback indicates the buffer was unmapped first.
	MapStatusUnmappedBeforeCallback
	// MapStatusMappingAlreadyPending indicates another map is pending.
	MapStatusMappingAlreadyPending
)

// String returns the string representation of MapStatus.
func (s MapStatus) String() string {
	switch s {
	case MapStatusSuccess:
		return "Success"
	case MapStatusValidationError:
		return "ValidationError"
	case MapStatusDeviceLost:
		return "DeviceLost"
	case MapStatusDestroyedBeforeCallback:
		return "DestroyedBeforeCallback"
	case MapStatusUnmappedBeforeCallback:
		return "UnmappedBeforeCallback"
	case MapStatusMappingAlreadyPending:
		return "MappingAlreadyPending"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// DeviceLostReason is passed to the device-lost callback.
type DeviceLostReason int

const (
	// DeviceLostReasonUnknown is an unexpected loss (driver reset, crash).
	DeviceLostReasonUnknown DeviceLostReason = iota
	// DeviceLostReasonDestroyed is the loss caused by Device.Release.
	DeviceLostReasonDestroyed
)

// String returns the string representation of DeviceLostReason.
func (r DeviceLostReason) String() string {
	switch r {
	case DeviceLostReasonUnknown:
		return "Unknown"
	case DeviceLostReasonDestroyed:
		return "Destroyed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(r))
	}
}

// AdapterInfo describes the physical adapter behind a device.
type AdapterInfo struct {
	Name       string
	Backend    string
	DeviceType gputypes.DeviceType
}

// Resource is implemented by every native object.
type Resource interface {
	// Release destroys the object. Releasing twice is a no-op.
	Release()
}

// Native object types. They are distinct names over the same method set so
// signatures document which object is expected.
type (
	Texture         interface{ Resource }
	TextureView     interface{ Resource }
	Sampler         interface{ Resource }
	BindGroupLayout interface{ Resource }
	BindGroup       interface{ Resource }
	PipelineLayout  interface{ Resource }
	ShaderModule    interface{ Resource }
	RenderPipeline  interface{ Resource }
	ComputePipeline interface{ Resource }
	CommandBuffer   interface{ Resource }
)

// Buffer is a GPU buffer with asynchronous mapping.
type Buffer interface {
	Resource

	// Size returns the buffer size in bytes.
	Size() uint64

	// MapAsync requests a mapping. The callback fires from a later Tick or
	// WaitAny once all previously submitted work that uses the buffer is done.
	MapAsync(mode gputypes.MapMode, offset, size uint64, callback func(MapStatus))

	// MappedRange returns the mapped bytes. Valid only after a successful
	// map callback and until Unmap.
	MappedRange(offset, size uint64) []byte

	// Unmap ends the mapping.
	Unmap()
}

// Device creates native objects and drives asynchronous completion.
type Device interface {
	Resource

	CreateBuffer(desc *BufferDescriptor) (Buffer, error)
	CreateTexture(desc *TextureDescriptor) (Texture, error)
	CreateTextureView(tex Texture, desc *TextureViewDescriptor) (TextureView, error)
	CreateSampler(desc *SamplerDescriptor) (Sampler, error)
	CreateBindGroupLayout(desc *BindGroupLayoutDescriptor) (BindGroupLayout, error)
	CreateBindGroup(desc *BindGroupDescriptor) (BindGroup, error)
	CreatePipelineLayout(desc *PipelineLayoutDescriptor) (PipelineLayout, error)
	CreateShaderModule(desc *ShaderModuleDescriptor) (ShaderModule, error)
	CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error)
	CreateComputePipeline(desc *ComputePipelineDescriptor) (ComputePipeline, error)
	CreateCommandEncoder(label string) (CommandEncoder, error)

	// Queue returns the device's only queue.
	Queue() Queue

	// Tick fires the callbacks of every operation that has completed,
	// without blocking.
	Tick()

	// WaitAny blocks until f completes or timeout expires. A zero timeout
	// polls. When f completes its callback has run before WaitAny returns.
	WaitAny(f Future, timeout time.Duration) WaitStatus

	// SetDeviceLostCallback registers the device-lost callback.
	SetDeviceLostCallback(callback func(reason DeviceLostReason, message string))

	AdapterInfo() AdapterInfo
	Features() gpuhal.Features
}

// FormatQuerier is implemented by devices that can report per-format
// capabilities from the driver. Devices without it are described by the
// backend's static WebGPU table.
type FormatQuerier interface {
	// TextureFormatCaps returns the capabilities of format, or false when
	// the driver has no answer for it.
	TextureFormatCaps(format gputypes.TextureFormat) (gpuhal.FormatCaps, bool)
}

// Queue executes command buffers in submission order.
type Queue interface {
	Submit(cmds ...CommandBuffer)
	WriteBuffer(buf Buffer, offset uint64, data []byte)
	WriteTexture(dst *TexelCopyTextureInfo, data []byte, layout TexelCopyBufferLayout, size Extent3D)

	// OnSubmittedWorkDone registers a callback that fires once all work
	// submitted so far has completed.
	OnSubmittedWorkDone(callback func(WorkDoneStatus)) Future
}

// CommandEncoder records passes and copies into a command buffer.
type CommandEncoder interface {
	Resource

	BeginRenderPass(desc *RenderPassDescriptor) RenderPassEncoder
	BeginComputePass(label string) ComputePassEncoder

	CopyBufferToBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset, size uint64)
	CopyBufferToTexture(src Buffer, layout TexelCopyBufferLayout, dst *TexelCopyTextureInfo, size Extent3D)
	CopyTextureToBuffer(src *TexelCopyTextureInfo, dst Buffer, layout TexelCopyBufferLayout, size Extent3D)

	// Finish ends recording. The encoder cannot be used afterwards.
	Finish(label string) (CommandBuffer, error)
}

// RenderPassEncoder records draw commands.
type RenderPassEncoder interface {
	SetPipeline(p RenderPipeline)
	SetBindGroup(index uint32, group BindGroup, dynamicOffsets []uint32)
	SetVertexBuffer(slot uint32, buf Buffer, offset, size uint64)
	SetIndexBuffer(buf Buffer, format gputypes.IndexFormat, offset, size uint64)
	SetViewport(x, y, width, height, minDepth, maxDepth float32)
	SetScissorRect(x, y, width, height uint32)
	SetBlendConstant(c gputypes.Color)
	SetStencilReference(ref uint32)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
	DrawIndirect(buf Buffer, offset uint64)
	DrawIndexedIndirect(buf Buffer, offset uint64)
	End()
}

// ComputePassEncoder records dispatch commands.
type ComputePassEncoder interface {
	SetPipeline(p ComputePipeline)
	SetBindGroup(index uint32, group BindGroup, dynamicOffsets []uint32)
	DispatchWorkgroups(x, y, z uint32)
	DispatchWorkgroupsIndirect(buf Buffer, offset uint64)
	End()
}
