package webgpu

import "errors"

// Package errors for the WebGPU backend.
var (
	// ErrCreateFailed is returned when the native layer fails to create an object.
	ErrCreateFailed = errors.New("webgpu: native object creation failed")

	// ErrDeviceLost is returned when creating resources after the device was lost.
	ErrDeviceLost = errors.New("webgpu: device lost")

	// ErrInvalidDescriptor is returned for descriptors that cannot describe
	// a valid object (zero sizes, duplicate bindings, unknown handles).
	ErrInvalidDescriptor = errors.New("webgpu: invalid descriptor")
)
