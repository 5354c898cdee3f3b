// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package halnative

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpuhal"
	"github.com/gogpu/gpuhal/native"
)

// Device implements native.Device and native.FormatQuerier over a HAL
// device and its queue.
//
// Thread Safety:
// Device is safe for concurrent use. Callbacks run on the goroutine that
// calls Tick, WaitAny or Release, never while the device lock is held.
type Device struct {
	raw      hal.Device
	queue    *Queue
	adapter  hal.Adapter
	instance hal.Instance
	owned    bool
	log      *slog.Logger

	info          native.AdapterInfo
	features      gpuhal.Features
	surfaceFormat gputypes.TextureFormat

	mu         sync.Mutex
	submitted  uint64
	nextFuture native.Future
	work       []pendingWork
	maps       []*pendingMap
	releases   []pendingRelease
	lost       bool
	released   bool
	closed     bool
	lostCB     func(native.DeviceLostReason, string)
}

// pendingWork is an OnSubmittedWorkDone request. Entries are ordered by
// index because the submission index never decreases.
type pendingWork struct {
	future native.Future
	index  uint64
	cb     func(native.WorkDoneStatus)
}

type pendingMap struct {
	buf       *Buffer
	off, size uint64
	index     uint64
	cb        func(native.MapStatus)
}

// pendingRelease destroys a HAL object once the submission that may still
// use it has completed.
type pendingRelease struct {
	index uint64
	fn    func()
}

func newDevice(raw hal.Device, queue hal.Queue, adapter hal.Adapter, log *slog.Logger) *Device {
	d := &Device{
		raw:     raw,
		adapter: adapter,
		log:     log,
	}
	d.queue = &Queue{dev: d, raw: queue}
	return d
}

// HalDevice returns the wrapped hal.Device.
func (d *Device) HalDevice() any { return d.raw }

// HalQueue returns the wrapped hal.Queue.
func (d *Device) HalQueue() any { return d.queue.raw }

// SurfaceFormat returns the provider's surface format, or
// TextureFormatUndefined for devices opened headless.
func (d *Device) SurfaceFormat() gputypes.TextureFormat { return d.surfaceFormat }

// AdapterInfo implements native.Device.
func (d *Device) AdapterInfo() native.AdapterInfo { return d.info }

// Features implements native.Device.
func (d *Device) Features() gpuhal.Features { return d.features }

// Queue implements native.Device.
func (d *Device) Queue() native.Queue { return d.queue }

// TextureFormatCaps implements native.FormatQuerier.
func (d *Device) TextureFormatCaps(f gputypes.TextureFormat) (gpuhal.FormatCaps, bool) {
	if d.adapter == nil || f == gputypes.TextureFormatUndefined {
		return 0, false
	}
	return formatCaps(d.adapter.TextureFormatCapabilities(f)), true
}

// SetDeviceLostCallback implements native.Device.
func (d *Device) SetDeviceLostCallback(cb func(native.DeviceLostReason, string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lostCB = cb
}

func (d *Device) isLost() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lost || d.released
}

// check reports a HAL error. Device loss is routed to the lost callback;
// everything else is logged.
func (d *Device) check(op string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, hal.ErrDeviceLost) {
		d.lose(native.DeviceLostReasonUnknown, fmt.Sprintf("%s: %v", op, err))
		return
	}
	d.log.Error("halnative: operation failed", "op", op, "err", err)
}

func (d *Device) lose(reason native.DeviceLostReason, msg string) {
	d.mu.Lock()
	if d.lost {
		d.mu.Unlock()
		return
	}
	d.lost = true
	cb := d.lostCB
	d.mu.Unlock()

	d.log.Warn("halnative: device lost", "reason", reason, "message", msg)
	if cb != nil {
		cb(reason, msg)
	}
}

// deferRelease schedules fn after the next submission completes, so commands
// recorded but not yet submitted keep their objects alive. After Release the
// HAL device is gone and fn is dropped.
func (d *Device) deferRelease(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.releases = append(d.releases, pendingRelease{index: d.submitted + 1, fn: fn})
}

// =============================================================================
// Event pump
// =============================================================================

// Tick implements native.Device.
func (d *Device) Tick() {
	d.settle(d.queue.raw.PollCompleted())
}

// settle fires every request whose submission index is at most completed.
// A lost device settles everything.
func (d *Device) settle(completed uint64) {
	d.mu.Lock()
	lost := d.lost
	if lost {
		completed = math.MaxUint64
	}

	n := 0
	for n < len(d.work) && d.work[n].index <= completed {
		n++
	}
	works := append([]pendingWork(nil), d.work[:n]...)
	d.work = d.work[n:]

	var maps []*pendingMap
	restMaps := d.maps[:0]
	for _, m := range d.maps {
		if m.index <= completed {
			maps = append(maps, m)
		} else {
			restMaps = append(restMaps, m)
		}
	}
	d.maps = restMaps

	var releases []pendingRelease
	restReleases := d.releases[:0]
	for _, r := range d.releases {
		if r.index <= completed {
			releases = append(releases, r)
		} else {
			restReleases = append(restReleases, r)
		}
	}
	d.releases = restReleases
	d.mu.Unlock()

	status := native.WorkDoneStatusSuccess
	if lost {
		status = native.WorkDoneStatusDeviceLost
	}
	for _, w := range works {
		w.cb(status)
	}
	for _, m := range maps {
		m.buf.completeMap(m, lost)
	}
	for _, r := range releases {
		r.fn()
	}
}

func (d *Device) pending(f native.Future) (issued, pending bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f == 0 || f > d.nextFuture {
		return false, false
	}
	for _, w := range d.work {
		if w.future == f {
			return true, true
		}
	}
	return true, false
}

// WaitAny implements native.Device. A finite timeout polls the queue;
// WaitForever waits for the device to go idle.
func (d *Device) WaitAny(f native.Future, timeout time.Duration) native.WaitStatus {
	issued, pending := d.pending(f)
	if !issued {
		return native.WaitStatusError
	}
	if !pending {
		return native.WaitStatusSuccess
	}

	d.Tick()
	if _, pending = d.pending(f); !pending {
		return native.WaitStatusSuccess
	}

	switch {
	case timeout <= 0:
		return native.WaitStatusTimedOut
	case timeout == native.WaitForever:
		d.mu.Lock()
		target := d.submitted
		d.mu.Unlock()
		d.check("WaitIdle", d.raw.WaitIdle())
		d.settle(target)
		return native.WaitStatusSuccess
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
		d.Tick()
		if _, pending = d.pending(f); !pending {
			return native.WaitStatusSuccess
		}
	}
	return native.WaitStatusTimedOut
}

// Release implements native.Device. It waits for the GPU, settles every
// pending request and destroys the HAL device when Open created it.
func (d *Device) Release() {
	d.mu.Lock()
	if d.released {
		d.mu.Unlock()
		return
	}
	d.released = true
	d.mu.Unlock()

	if err := d.raw.WaitIdle(); err != nil {
		d.log.Warn("halnative: wait idle on release", "err", err)
	}
	d.settle(math.MaxUint64)

	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	if d.owned {
		d.raw.Destroy()
		if d.adapter != nil {
			d.adapter.Destroy()
		}
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.lose(native.DeviceLostReasonDestroyed, "device released")
	d.log.Info("halnative: device released", "adapter", d.info.Name)
}

// =============================================================================
// Object creation
// =============================================================================

func (d *Device) created(kind, label string, err error) error {
	if err != nil {
		return fmt.Errorf("halnative: create %s %q: %w", kind, label, err)
	}
	d.log.Debug("halnative: object created", "kind", kind, "label", label)
	return nil
}

// CreateBuffer implements native.Device.
func (d *Device) CreateBuffer(desc *native.BufferDescriptor) (native.Buffer, error) {
	if d.isLost() {
		return nil, native.ErrDeviceLost
	}
	raw, err := d.raw.CreateBuffer(&hal.BufferDescriptor{
		Label:            desc.Label,
		Size:             desc.Size,
		Usage:            desc.Usage,
		MappedAtCreation: desc.MappedAtCreation,
	})
	if err := d.created("buffer", desc.Label, err); err != nil {
		return nil, err
	}
	b := &Buffer{size: desc.Size}
	b.init(d, desc.Label, raw, hal.Device.DestroyBuffer)
	return b, nil
}

// CreateTexture implements native.Device.
func (d *Device) CreateTexture(desc *native.TextureDescriptor) (native.Texture, error) {
	if d.isLost() {
		return nil, native.ErrDeviceLost
	}
	raw, err := d.raw.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          extent(desc.Size),
		MipLevelCount: desc.MipLevelCount,
		SampleCount:   desc.SampleCount,
		Dimension:     desc.Dimension,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err := d.created("texture", desc.Label, err); err != nil {
		return nil, err
	}
	t := &Texture{}
	t.init(d, desc.Label, raw, hal.Device.DestroyTexture)
	return t, nil
}

// CreateTextureView implements native.Device.
func (d *Device) CreateTextureView(tex native.Texture, desc *native.TextureViewDescriptor) (native.TextureView, error) {
	if d.isLost() {
		return nil, native.ErrDeviceLost
	}
	raw, err := d.raw.CreateTextureView(rawTexture(tex), &hal.TextureViewDescriptor{
		Label:           desc.Label,
		Format:          desc.Format,
		Dimension:       desc.Dimension,
		Aspect:          gputypes.TextureAspectAll,
		BaseMipLevel:    desc.BaseMipLevel,
		MipLevelCount:   desc.MipLevelCount,
		BaseArrayLayer:  desc.BaseArrayLayer,
		ArrayLayerCount: desc.ArrayLayerCount,
	})
	if err := d.created("texture view", desc.Label, err); err != nil {
		return nil, err
	}
	v := &TextureView{}
	v.init(d, desc.Label, raw, hal.Device.DestroyTextureView)
	return v, nil
}

// CreateSampler implements native.Device.
func (d *Device) CreateSampler(desc *native.SamplerDescriptor) (native.Sampler, error) {
	if d.isLost() {
		return nil, native.ErrDeviceLost
	}
	raw, err := d.raw.CreateSampler(&hal.SamplerDescriptor{
		Label:        desc.Label,
		AddressModeU: desc.AddressModeU,
		AddressModeV: desc.AddressModeV,
		AddressModeW: desc.AddressModeW,
		MagFilter:    desc.MagFilter,
		MinFilter:    desc.MinFilter,
		MipmapFilter: desc.MipmapFilter,
		LodMinClamp:  desc.LodMinClamp,
		LodMaxClamp:  desc.LodMaxClamp,
		Anisotropy:   desc.MaxAnisotropy,
	})
	if err := d.created("sampler", desc.Label, err); err != nil {
		return nil, err
	}
	s := &Sampler{}
	s.init(d, desc.Label, raw, hal.Device.DestroySampler)
	return s, nil
}

// CreateBindGroupLayout implements native.Device.
func (d *Device) CreateBindGroupLayout(desc *native.BindGroupLayoutDescriptor) (native.BindGroupLayout, error) {
	if d.isLost() {
		return nil, native.ErrDeviceLost
	}
	raw, err := d.raw.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: desc.Entries,
	})
	if err := d.created("bind group layout", desc.Label, err); err != nil {
		return nil, err
	}
	l := &BindGroupLayout{}
	l.init(d, desc.Label, raw, hal.Device.DestroyBindGroupLayout)
	return l, nil
}

// CreateBindGroup implements native.Device.
func (d *Device) CreateBindGroup(desc *native.BindGroupDescriptor) (native.BindGroup, error) {
	if d.isLost() {
		return nil, native.ErrDeviceLost
	}
	raw, err := d.raw.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  desc.Layout.(*BindGroupLayout).raw,
		Entries: bindGroupEntries(desc.Entries),
	})
	if err := d.created("bind group", desc.Label, err); err != nil {
		return nil, err
	}
	g := &BindGroup{}
	g.init(d, desc.Label, raw, hal.Device.DestroyBindGroup)
	return g, nil
}

// CreatePipelineLayout implements native.Device.
func (d *Device) CreatePipelineLayout(desc *native.PipelineLayoutDescriptor) (native.PipelineLayout, error) {
	if d.isLost() {
		return nil, native.ErrDeviceLost
	}
	layouts := make([]hal.BindGroupLayout, len(desc.BindGroupLayouts))
	for i, l := range desc.BindGroupLayouts {
		layouts[i] = l.(*BindGroupLayout).raw
	}
	raw, err := d.raw.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: layouts,
	})
	if err := d.created("pipeline layout", desc.Label, err); err != nil {
		return nil, err
	}
	l := &PipelineLayout{}
	l.init(d, desc.Label, raw, hal.Device.DestroyPipelineLayout)
	return l, nil
}

// CreateShaderModule implements native.Device.
func (d *Device) CreateShaderModule(desc *native.ShaderModuleDescriptor) (native.ShaderModule, error) {
	if d.isLost() {
		return nil, native.ErrDeviceLost
	}
	raw, err := d.raw.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  desc.Label,
		Source: hal.ShaderSource{SPIRV: desc.SPIRV},
	})
	if err := d.created("shader module", desc.Label, err); err != nil {
		return nil, err
	}
	m := &ShaderModule{}
	m.init(d, desc.Label, raw, hal.Device.DestroyShaderModule)
	return m, nil
}

// CreateRenderPipeline implements native.Device.
func (d *Device) CreateRenderPipeline(desc *native.RenderPipelineDescriptor) (native.RenderPipeline, error) {
	if d.isLost() {
		return nil, native.ErrDeviceLost
	}
	hd := &hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: desc.Layout.(*PipelineLayout).raw,
		Vertex: hal.VertexState{
			Module:     desc.Vertex.Module.(*ShaderModule).raw,
			EntryPoint: desc.Vertex.EntryPoint,
			Buffers:    desc.Vertex.Buffers,
		},
		Primitive:    desc.Primitive,
		DepthStencil: depthStencil(desc.DepthStencil),
		Multisample:  desc.Multisample,
	}
	if fs := desc.Fragment; fs != nil {
		hd.Fragment = &hal.FragmentState{
			Module:     fs.Module.(*ShaderModule).raw,
			EntryPoint: fs.EntryPoint,
			Targets:    fs.Targets,
		}
	}
	raw, err := d.raw.CreateRenderPipeline(hd)
	if err := d.created("render pipeline", desc.Label, err); err != nil {
		return nil, err
	}
	p := &RenderPipeline{}
	p.init(d, desc.Label, raw, hal.Device.DestroyRenderPipeline)
	return p, nil
}

// CreateComputePipeline implements native.Device.
func (d *Device) CreateComputePipeline(desc *native.ComputePipelineDescriptor) (native.ComputePipeline, error) {
	if d.isLost() {
		return nil, native.ErrDeviceLost
	}
	raw, err := d.raw.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: desc.Layout.(*PipelineLayout).raw,
		Compute: hal.ComputeState{
			Module:                        desc.Module.(*ShaderModule).raw,
			EntryPoint:                    desc.EntryPoint,
			ZeroInitializeWorkgroupMemory: true,
		},
	})
	if err := d.created("compute pipeline", desc.Label, err); err != nil {
		return nil, err
	}
	p := &ComputePipeline{}
	p.init(d, desc.Label, raw, hal.Device.DestroyComputePipeline)
	return p, nil
}

// CreateCommandEncoder implements native.Device.
func (d *Device) CreateCommandEncoder(label string) (native.CommandEncoder, error) {
	if d.isLost() {
		return nil, native.ErrDeviceLost
	}
	raw, err := d.raw.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("halnative: create command encoder %q: %w", label, err)
	}
	if err := raw.BeginEncoding(label); err != nil {
		raw.Destroy()
		return nil, fmt.Errorf("halnative: begin encoding %q: %w", label, err)
	}
	e := &CommandEncoder{dev: d, raw: raw, label: label}
	e.refs.Store(1)
	return e, nil
}

var (
	_ native.Device        = (*Device)(nil)
	_ native.FormatQuerier = (*Device)(nil)
)
