// Package gpuhal provides a backend-agnostic GPU command-recording API.
//
// # Overview
//
// gpuhal defines the contract an engine programs against: opaque
// generation-checked resource handles, resource descriptors, binding
// descriptors, device capability queries and a per-frame command context.
// The contract is implemented by backend/webgpu on top of a WebGPU-style
// native API (package native), which in turn is provided by gogpu/wgpu/hal
// (package native/halnative).
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/gpuhal/backend/webgpu"
//	    "github.com/gogpu/gpuhal/native/halnative"
//	)
//
//	nd, err := halnative.Open(halnative.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	dev := webgpu.NewDevice(nd, webgpu.WithMaxFramesInFlight(2))
//	defer dev.Destroy()
//
//	for running {
//	    cc := dev.BeginFrame()
//	    cc.BeginRenderPass(fb, &gpuhal.RenderPassDescriptor{ColorLoadOp: gpuhal.LoadOpClear})
//	    cc.BindPipeline(pipeline)
//	    cc.Draw(3, 1, 0, 0)
//	    cc.EndRenderPass()
//	    dev.EndFrame()
//	}
//
// # Architecture
//
// The library is organized into:
//   - Contract: handles, descriptors, BindingDescriptor, Device, CommandContext
//   - Core: backend/webgpu (layout cache, object pools, command context,
//     fences and frame ring, shader specialization)
//   - Native API: native (interfaces), native/halnative (gogpu/wgpu),
//     native/nativetest (in-memory fake)
//   - Shaders: shader (WGSL front end via gogpu/naga), internal/spirv
//   - Configuration: config (TOML)
//
// # Errors
//
// Recoverable failures (resource creation, device open) are returned as
// errors. Contract violations such as binding a slot the layout does not
// declare, or drawing outside a render pass, abort through [Fatalf], which
// logs the diagnostic and panics with a [*FatalError].
package gpuhal
