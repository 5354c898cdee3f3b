// Package webgpu implements the gpuhal device contract on a WebGPU-style
// native API.
//
// # Overview
//
// The backend translates engine-facing handles and descriptors into native
// objects (package native) and sequences their use:
//
//   - LayoutCache deduplicates descriptor-set layouts by content, so every
//     pipeline and descriptor set built from equal binding lists shares one
//     native bind group layout.
//   - ObjectPool hands out stable record pointers and generation-checked
//     handles for buffers, textures, samplers, framebuffers, descriptor
//     sets, pipelines, shader modules and fences.
//   - CommandContext is the per-frame recording state machine:
//     Idle, Encoding, RenderPass or ComputePass, Submitted.
//   - Fence and FrameRing bound the number of frames in flight. Reusing a
//     frame slot waits for the slot's previous fence.
//   - ShaderModule late-binds specialization constants into SPIR-V before
//     native compilation.
//
// # Event pumping
//
// Native completion callbacks fire only from native.Device.Tick and
// native.Device.WaitAny. The device pumps once per EndFrame; Fence.Wait pumps
// before and after blocking.
//
// # Errors
//
// Resource creation failures are returned as errors wrapping ErrCreateFailed
// or ErrInvalidDescriptor. Contract violations (stale handles, drawing
// outside a render pass, binding an undeclared slot) abort through
// gpuhal.Fatalf.
package webgpu
