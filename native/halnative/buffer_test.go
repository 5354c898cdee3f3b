//go:build !nogpu

package halnative

import (
	"bytes"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpuhal"
	"github.com/gogpu/gpuhal/backend/webgpu"
	"github.com/gogpu/gpuhal/native"
)

func TestBuffer_MapRead(t *testing.T) {
	d := openNoop(t)
	b := mustBuffer(t, d, 16, gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	d.Queue().WriteBuffer(b, 0, data)

	var status native.MapStatus = -1
	b.MapAsync(gputypes.MapModeRead, 0, 16, func(s native.MapStatus) { status = s })
	if status != -1 {
		t.Fatalf("map callback fired before Tick: %v", status)
	}
	if b.MappedRange(0, 16) != nil {
		t.Error("MappedRange() before the callback is not nil")
	}
	d.Tick()
	if status != native.MapStatusSuccess {
		t.Fatalf("map status = %v, want Success", status)
	}
	if got := b.MappedRange(0, 16); !bytes.Equal(got, data) {
		t.Errorf("MappedRange(0, 16) = %v, want %v", got, data)
	}
	if got := b.MappedRange(4, 4); !bytes.Equal(got, data[4:8]) {
		t.Errorf("MappedRange(4, 4) = %v, want %v", got, data[4:8])
	}
	if b.MappedRange(8, 16) != nil {
		t.Error("MappedRange past the mapping is not nil")
	}
	b.Unmap()
	if b.MappedRange(0, 16) != nil {
		t.Error("MappedRange() after Unmap is not nil")
	}
}

func TestBuffer_MapStatuses(t *testing.T) {
	tests := []struct {
		name string
		run  func(d *Device, b *Buffer, cb func(native.MapStatus))
		want native.MapStatus
	}{
		{
			name: "out of range",
			run: func(_ *Device, b *Buffer, cb func(native.MapStatus)) {
				b.MapAsync(gputypes.MapModeRead, 8, 16, cb)
			},
			want: native.MapStatusValidationError,
		},
		{
			name: "already pending",
			run: func(_ *Device, b *Buffer, cb func(native.MapStatus)) {
				b.MapAsync(gputypes.MapModeRead, 0, 4, func(native.MapStatus) {})
				b.MapAsync(gputypes.MapModeRead, 0, 4, cb)
			},
			want: native.MapStatusMappingAlreadyPending,
		},
		{
			name: "unmapped first",
			run: func(d *Device, b *Buffer, cb func(native.MapStatus)) {
				b.MapAsync(gputypes.MapModeRead, 0, 4, cb)
				b.Unmap()
				d.Tick()
			},
			want: native.MapStatusUnmappedBeforeCallback,
		},
		{
			name: "released first",
			run: func(d *Device, b *Buffer, cb func(native.MapStatus)) {
				b.MapAsync(gputypes.MapModeRead, 0, 4, cb)
				b.Release()
				d.Tick()
			},
			want: native.MapStatusDestroyedBeforeCallback,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := openNoop(t)
			b := mustBuffer(t, d, 16, gputypes.BufferUsageMapRead)
			var got native.MapStatus = -1
			tt.run(d, b, func(s native.MapStatus) { got = s })
			if got != tt.want {
				t.Errorf("map status = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuffer_MapWaitsForSubmission(t *testing.T) {
	d, q := openHeld(t)
	b := mustBuffer(t, d, 4, gputypes.BufferUsageMapRead)
	submitEmpty(t, d)

	done := false
	b.MapAsync(gputypes.MapModeRead, 0, 4, func(native.MapStatus) { done = true })
	d.Tick()
	if done {
		t.Fatal("map resolved before its submission completed")
	}
	q.completed.Store(d.submitted)
	d.Tick()
	if !done {
		t.Error("map did not resolve after completion")
	}
}

func TestWebGPUDevice_OnNoop(t *testing.T) {
	nd := openNoop(t)
	dev := webgpu.NewDevice(nd)
	defer dev.Destroy()

	if dev.AdapterName() != "Noop Adapter" {
		t.Errorf("AdapterName() = %q, want Noop Adapter", dev.AdapterName())
	}
	if caps := dev.FormatCapabilities(gputypes.TextureFormatRGBA8Unorm); !caps.Has(gpuhal.FormatCapRenderTarget) {
		t.Errorf("FormatCapabilities(RGBA8Unorm) = %v, want RenderTarget", caps)
	}

	rb, err := dev.CreateBuffer(&gpuhal.BufferDescriptor{
		Label: "rb", Size: 4,
		Usage: gpuhal.BufferUsageReadback | gpuhal.BufferUsageTransferDst,
	})
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	dev.Execute(func(ctx *webgpu.CommandContext) {
		ctx.UpdateBuffer(rb, 0, []byte{4, 3, 2, 1})
		ctx.AddReadbackBuffer(rb)
	})
	got, ok := dev.ReadbackData(rb)
	if !ok || !bytes.Equal(got, []byte{4, 3, 2, 1}) {
		t.Errorf("ReadbackData() = %v, %v, want [4 3 2 1], true", got, ok)
	}

	for range 3 {
		dev.BeginFrame()
		dev.EndFrame()
	}
	dev.DeviceWaitIdle()
	if dev.FrameRing().InFlight() != 0 {
		t.Errorf("InFlight() = %d after DeviceWaitIdle, want 0", dev.FrameRing().InFlight())
	}
}
