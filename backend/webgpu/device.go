package webgpu

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/gogpu/gpuhal"
	"github.com/gogpu/gpuhal/native"
)

// Option configures a Device during creation.
//
// Example:
//
//	dev := webgpu.NewDevice(nd,
//	    webgpu.WithMaxFramesInFlight(3),
//	    webgpu.WithLogger(logger),
//	)
type Option func(*deviceOptions)

type deviceOptions struct {
	maxFrames int
	logger    *slog.Logger
	optimizer Optimizer
	create    func(native.Device) LayoutCreateFunc
}

func defaultDeviceOptions() deviceOptions {
	return deviceOptions{
		maxFrames: DefaultMaxFramesInFlight,
		optimizer: SpirvOptimizer{},
		create:    NativeLayoutCreator,
	}
}

// WithMaxFramesInFlight sets the frame ring size. Values below one are
// ignored.
func WithMaxFramesInFlight(k int) Option {
	return func(o *deviceOptions) {
		if k >= 1 {
			o.maxFrames = k
		}
	}
}

// WithLogger sets the device logger. The device tags every record with its
// instance ID.
func WithLogger(l *slog.Logger) Option {
	return func(o *deviceOptions) {
		o.logger = l
	}
}

// WithOptimizer replaces the SPIR-V specialization rewriter.
func WithOptimizer(opt Optimizer) Option {
	return func(o *deviceOptions) {
		if opt != nil {
			o.optimizer = opt
		}
	}
}

// WithLayoutCreateFunc replaces the bind group layout factory of the layout
// cache. Tests use it to count creations.
func WithLayoutCreateFunc(fn LayoutCreateFunc) Option {
	return func(o *deviceOptions) {
		if fn != nil {
			o.create = func(native.Device) LayoutCreateFunc { return fn }
		}
	}
}

// Device implements gpuhal.Device on a native WebGPU-style device.
//
// Thread Safety:
// Resource creation and destruction are safe for concurrent use: records
// live in mutex-guarded pools and layouts in the layout cache. The frame
// lifecycle (BeginFrame, EndFrame, DeviceWaitIdle, Execute) belongs to one
// goroutine.
type Device struct {
	nd        native.Device
	id        uuid.UUID
	log       *slog.Logger
	optimizer Optimizer
	features  gpuhal.Features
	adapter   native.AdapterInfo

	layouts      *LayoutCache
	buffers      *ObjectPool[Buffer]
	textures     *ObjectPool[Texture]
	samplers     *ObjectPool[Sampler]
	framebuffers *ObjectPool[Framebuffer]
	sets         *ObjectPool[DescriptorSet]
	pipelines    *ObjectPool[Pipeline]
	shaders      *ObjectPool[ShaderModule]
	fences       *ObjectPool[Fence]

	fenceSeq      atomic.Uint64
	fenceFreeHook func(*Fence)
	labels        atomic.Uint64

	ring    *FrameRing
	main    *CommandContext
	frame   uint64
	current *CommandContext

	lost      atomic.Bool
	destroyed atomic.Bool
}

// NewDevice wraps a native device.
func NewDevice(nd native.Device, opts ...Option) *Device {
	o := defaultDeviceOptions()
	for _, opt := range opts {
		opt(&o)
	}

	d := &Device{
		nd:        nd,
		id:        uuid.New(),
		optimizer: o.optimizer,
		features:  nd.Features(),
		adapter:   nd.AdapterInfo(),

		buffers:      NewObjectPool[Buffer](0),
		textures:     NewObjectPool[Texture](0),
		samplers:     NewObjectPool[Sampler](0),
		framebuffers: NewObjectPool[Framebuffer](0),
		sets:         NewObjectPool[DescriptorSet](0),
		pipelines:    NewObjectPool[Pipeline](0),
		shaders:      NewObjectPool[ShaderModule](0),
		fences:       NewObjectPool[Fence](0),
	}
	base := o.logger
	if base == nil {
		base = slogger()
	}
	d.log = base.With("device", d.id.String())
	d.layouts = NewLayoutCache(o.create(nd))
	d.ring = NewFrameRing(d, o.maxFrames)
	d.main = newCommandContext(d, "main")

	nd.SetDeviceLostCallback(d.onDeviceLost)
	d.log.Info("webgpu: device opened",
		"adapter", d.adapter.Name,
		"backend", d.adapter.Backend,
		"features", d.features,
		"frames", o.maxFrames)
	return d
}

// MustOpen wraps the result of a native open call, aborting on error.
//
//	dev := webgpu.MustOpen(halnative.Open(halnative.Config{}))
func MustOpen(nd native.Device, err error, opts ...Option) *Device {
	if err != nil {
		gpuhal.Fatalf("MustOpen", "open native device: %v", err)
	}
	return NewDevice(nd, opts...)
}

func (d *Device) onDeviceLost(reason native.DeviceLostReason, msg string) {
	d.lost.Store(true)
	if reason == native.DeviceLostReasonDestroyed {
		d.log.Info("webgpu: device destroyed", "message", msg)
		return
	}
	gpuhal.DeviceLostf("DeviceLost", "%s: %s", reason, msg)
}

// ID returns the device instance ID used in log records and default labels.
func (d *Device) ID() uuid.UUID { return d.id }

// checkAlive returns ErrDeviceLost after loss or Destroy.
func (d *Device) checkAlive() error {
	if d.destroyed.Load() {
		return fmt.Errorf("%w: device destroyed", ErrDeviceLost)
	}
	if d.lost.Load() {
		return ErrDeviceLost
	}
	return nil
}

// label returns given, or a unique default label for kind.
func (d *Device) label(given, kind string) string {
	if given != "" {
		return given
	}
	return fmt.Sprintf("%s-%s-%d", kind, d.id.String()[:8], d.labels.Add(1))
}

// Features implements gpuhal.Device.
func (d *Device) Features() gpuhal.Features { return d.features }

// RequireFeatures reports whether every feature in want is present, logging
// a warning for each one that is not.
func (d *Device) RequireFeatures(want gpuhal.Features) bool {
	missing := want &^ d.features
	for _, name := range missing.List() {
		d.log.Warn("webgpu: feature not available", "feature", name, "adapter", d.adapter.Name)
	}
	return missing == 0
}

// AdapterName implements gpuhal.Device.
func (d *Device) AdapterName() string { return d.adapter.Name }

// LayoutCache returns the device's descriptor-set layout cache.
func (d *Device) LayoutCache() *LayoutCache { return d.layouts }

// =============================================================================
// Frame lifecycle
// =============================================================================

// BeginFrame implements gpuhal.Device. It blocks while the frame slot's
// previous submission is in flight.
func (d *Device) BeginFrame() gpuhal.CommandContext {
	if d.current != nil {
		gpuhal.Fatalf("BeginFrame", "frame %d not ended", d.frame)
	}
	if d.destroyed.Load() {
		gpuhal.Fatalf("BeginFrame", "device destroyed")
	}
	ctx := d.ring.Begin(d.frame)
	ctx.Reset()
	ctx.BeginEncode()
	d.current = ctx
	return ctx
}

// EndFrame implements gpuhal.Device.
func (d *Device) EndFrame() {
	ctx := d.current
	if ctx == nil {
		gpuhal.Fatalf("EndFrame", "no frame begun")
	}
	ctx.EndEncode()
	ctx.Submit()
	d.ring.End(d.CreateAndInsertFence())
	d.current = nil
	d.frame++
	d.nd.Tick()
}

// Frame returns the number of frames ended so far.
func (d *Device) Frame() uint64 { return d.frame }

// FrameRing returns the device's frame ring.
func (d *Device) FrameRing() *FrameRing { return d.ring }

// DeviceWaitIdle implements gpuhal.Device.
func (d *Device) DeviceWaitIdle() {
	f := d.CreateAndInsertFence()
	f.Wait()
	f.Deref()
	d.ring.Drain()
}

// Execute records fn on the main context, submits it and waits for the GPU.
// It is meant for uploads and readbacks outside the frame loop.
func (d *Device) Execute(fn func(ctx *CommandContext)) {
	c := d.main
	c.Reset()
	c.BeginEncode()
	fn(c)
	c.EndEncode()
	c.Submit()
	f := d.CreateAndInsertFence()
	f.Wait()
	f.Deref()
	c.Reset()
}

// =============================================================================
// Teardown
// =============================================================================

// Destroy implements gpuhal.Device. It drains in-flight frames, releases
// every record and cached layout, then the native device.
func (d *Device) Destroy() {
	if !d.destroyed.CompareAndSwap(false, true) {
		return
	}
	d.ring.release()
	d.main.Reset()
	d.current = nil
	d.nd.Tick()

	d.pipelines.Range(func(_ gpuhal.Handle, p *Pipeline) bool { p.release(); return true })
	d.pipelines.Clear()
	d.sets.Range(func(_ gpuhal.Handle, s *DescriptorSet) bool { s.release(); return true })
	d.sets.Clear()
	d.framebuffers.Clear()
	d.textures.Range(func(_ gpuhal.Handle, t *Texture) bool { t.release(); return true })
	d.textures.Clear()
	d.samplers.Range(func(_ gpuhal.Handle, s *Sampler) bool { s.native.Release(); return true })
	d.samplers.Clear()
	d.shaders.Range(func(_ gpuhal.Handle, m *ShaderModule) bool { m.release(); return true })
	d.shaders.Clear()
	d.buffers.Range(func(_ gpuhal.Handle, b *Buffer) bool { b.native.Release(); return true })
	d.buffers.Clear()
	d.fences.Clear()
	d.layouts.Clear()

	d.nd.Release()
	d.log.Info("webgpu: device released", "frames", d.frame)
}

var _ gpuhal.Device = (*Device)(nil)
