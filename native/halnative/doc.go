// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// Package halnative implements the native API on top of the gogpu/wgpu
// hardware abstraction layer.
//
// The HAL is synchronous and index based: Queue.Submit returns a submission
// index and Queue.PollCompleted reports the highest finished one. halnative
// turns that model into WebGPU-style futures. Every asynchronous request
// (OnSubmittedWorkDone, Buffer.MapAsync) and every object release is tagged
// with the last submission index, and Device.Tick settles the ones whose
// index has completed.
//
// Backends register themselves on import. Import the ones you need next to
// this package:
//
//	import (
//	    _ "github.com/gogpu/wgpu/hal/vulkan"
//
//	    "github.com/gogpu/gpuhal/backend/webgpu"
//	    "github.com/gogpu/gpuhal/native/halnative"
//	)
//
//	dev := webgpu.MustOpen(halnative.Open(halnative.Config{
//	    Backends: []gputypes.Backend{gputypes.BackendVulkan},
//	}))
//
// Tests use the noop backend (github.com/gogpu/wgpu/hal/noop), where every
// submission completes immediately.
package halnative
