// Package nativetest provides an in-memory implementation of the native API
// for tests.
//
// The fake executes copies and queue writes against host memory, records
// every command as a formatted string, counts object creation per kind, and
// lets tests control when asynchronous work completes:
//
//	dev := nativetest.NewDevice()
//	dev.HoldCompletions(true)       // new work stays pending
//	f := dev.Queue().OnSubmittedWorkDone(cb)
//	dev.WaitAny(f, 0)               // WaitStatusTimedOut
//	dev.CompleteAll()               // release held work
//	dev.Tick()                      // cb fires here
package nativetest

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpuhal"
	"github.com/gogpu/gpuhal/native"
)

// Device is a fake native.Device.
//
// Device is safe for concurrent use. Callbacks run on the goroutine calling
// Tick or WaitAny, never while the device lock is held.
type Device struct {
	mu   sync.Mutex
	cond *sync.Cond

	queue *Queue

	calls    []string
	created  map[string]int
	released map[string]int
	nextID   int

	nextFuture native.Future
	work       []*pendingWork
	maps       []*pendingMap
	fired      map[native.Future]bool
	hold       bool

	lost     bool
	lostCB   func(native.DeviceLostReason, string)
	failures map[string]error

	// Info is returned by AdapterInfo.
	Info native.AdapterInfo

	// FeatureSet is returned by Features.
	FeatureSet gpuhal.Features
}

type pendingWork struct {
	future native.Future
	cb     func(native.WorkDoneStatus)
	ready  bool
}

type pendingMap struct {
	buf   *Buffer
	mode  gputypes.MapMode
	off   uint64
	size  uint64
	cb    func(native.MapStatus)
	ready bool
}

// NewDevice creates a fake device named "nativetest".
func NewDevice() *Device {
	d := &Device{
		created:  make(map[string]int),
		released: make(map[string]int),
		fired:    make(map[native.Future]bool),
		failures: make(map[string]error),
		Info: native.AdapterInfo{
			Name:       "nativetest",
			Backend:    "fake",
			DeviceType: gputypes.DeviceTypeIntegratedGPU,
		},
	}
	d.cond = sync.NewCond(&d.mu)
	d.queue = &Queue{dev: d}
	return d
}

// =============================================================================
// Test controls
// =============================================================================

// HoldCompletions makes work registered afterwards stay pending until
// Complete or CompleteAll. Passing false does not release work already held.
func (d *Device) HoldCompletions(hold bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hold = hold
}

// Complete releases held work up to and including f, and every map request
// registered before it. Work completes in registration order.
func (d *Device) Complete(f native.Future) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, w := range d.work {
		if w.future <= f {
			w.ready = true
		}
	}
	for _, m := range d.maps {
		m.ready = true
	}
	d.cond.Broadcast()
}

// CompleteAll releases all held work and map requests.
func (d *Device) CompleteAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, w := range d.work {
		w.ready = true
	}
	for _, m := range d.maps {
		m.ready = true
	}
	d.cond.Broadcast()
}

// PendingWork returns the number of work-done callbacks that have not fired.
func (d *Device) PendingWork() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.work)
}

// LoseDevice simulates device loss: pending work completes with
// WorkDoneStatusDeviceLost and the device-lost callback fires on the next Tick.
func (d *Device) LoseDevice(reason native.DeviceLostReason, message string) {
	d.mu.Lock()
	if d.lost {
		d.mu.Unlock()
		return
	}
	d.lost = true
	cb := d.lostCB
	for _, w := range d.work {
		w.ready = true
	}
	d.cond.Broadcast()
	d.mu.Unlock()

	if cb != nil {
		cb(reason, message)
	}
}

// FailNext makes the next Create call for kind return err.
// Kinds are the type names used by Created, such as "BindGroupLayout".
func (d *Device) FailNext(kind string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[kind] = err
}

// Created returns how many objects of kind were created.
func (d *Device) Created(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created[kind]
}

// Released returns how many objects of kind were released.
func (d *Device) Released(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released[kind]
}

// Live returns created minus released for kind.
func (d *Device) Live(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created[kind] - d.released[kind]
}

// Calls returns a copy of the recorded command log.
func (d *Device) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// CallsWithPrefix returns the recorded calls starting with prefix.
func (d *Device) CallsWithPrefix(prefix string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, c := range d.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls clears the command log.
func (d *Device) ResetCalls() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
}

func (d *Device) record(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

// newObject registers a creation of kind, or returns an injected failure.
func (d *Device) newObject(kind, label string) (object, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return object{}, native.ErrDeviceLost
	}
	if err, ok := d.failures[kind]; ok {
		delete(d.failures, kind)
		return object{}, err
	}
	d.nextID++
	d.created[kind]++
	return object{dev: d, kind: kind, label: label, id: d.nextID}, nil
}

// =============================================================================
// native.Device
// =============================================================================

// Release implements native.Device. It reports DeviceLostReasonDestroyed.
func (d *Device) Release() {
	d.LoseDevice(native.DeviceLostReasonDestroyed, "device released")
}

// Queue implements native.Device.
func (d *Device) Queue() native.Queue { return d.queue }

// AdapterInfo implements native.Device.
func (d *Device) AdapterInfo() native.AdapterInfo { return d.Info }

// Features implements native.Device.
func (d *Device) Features() gpuhal.Features { return d.FeatureSet }

// SetDeviceLostCallback implements native.Device.
func (d *Device) SetDeviceLostCallback(cb func(native.DeviceLostReason, string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lostCB = cb
}

// Tick implements native.Device.
func (d *Device) Tick() {
	d.mu.Lock()
	works, maps := d.takeReadyLocked()
	d.mu.Unlock()
	d.fire(works, maps)
}

// takeReadyLocked removes ready work in order (stopping at the first pending
// entry) and every ready map request. The caller must hold d.mu.
func (d *Device) takeReadyLocked() ([]*pendingWork, []*pendingMap) {
	var works []*pendingWork
	i := 0
	for ; i < len(d.work) && d.work[i].ready; i++ {
		works = append(works, d.work[i])
		d.fired[d.work[i].future] = true
	}
	d.work = d.work[i:]

	var maps []*pendingMap
	rest := d.maps[:0]
	for _, m := range d.maps {
		if m.ready {
			maps = append(maps, m)
		} else {
			rest = append(rest, m)
		}
	}
	d.maps = rest
	return works, maps
}

func (d *Device) fire(works []*pendingWork, maps []*pendingMap) {
	d.mu.Lock()
	lost := d.lost
	d.mu.Unlock()

	for _, w := range works {
		status := native.WorkDoneStatusSuccess
		if lost {
			status = native.WorkDoneStatusDeviceLost
		}
		w.cb(status)
	}
	for _, m := range maps {
		m.buf.completeMap(m, lost)
	}
}

// WaitAny implements native.Device.
func (d *Device) WaitAny(f native.Future, timeout time.Duration) native.WaitStatus {
	var deadline time.Time
	if timeout > 0 && timeout != native.WaitForever {
		deadline = time.Now().Add(timeout)
	}

	d.mu.Lock()
	for {
		if d.fired[f] {
			d.mu.Unlock()
			return native.WaitStatusSuccess
		}
		if !d.knownLocked(f) {
			d.mu.Unlock()
			return native.WaitStatusError
		}
		if d.readyLocked(f) {
			works, maps := d.takeReadyLocked()
			d.mu.Unlock()
			d.fire(works, maps)
			return native.WaitStatusSuccess
		}
		if timeout <= 0 || (!deadline.IsZero() && time.Now().After(deadline)) {
			d.mu.Unlock()
			return native.WaitStatusTimedOut
		}
		if deadline.IsZero() {
			d.cond.Wait()
			continue
		}
		// Finite timeouts poll; only WaitForever parks on the condition.
		d.mu.Unlock()
		time.Sleep(time.Millisecond)
		d.mu.Lock()
	}
}

func (d *Device) knownLocked(f native.Future) bool {
	for _, w := range d.work {
		if w.future == f {
			return true
		}
	}
	return false
}

// readyLocked reports whether f and all work before it is ready.
func (d *Device) readyLocked(f native.Future) bool {
	for _, w := range d.work {
		if !w.ready {
			return false
		}
		if w.future == f {
			return true
		}
	}
	return false
}

// =============================================================================
// Resource creation
// =============================================================================

// CreateBuffer implements native.Device.
func (d *Device) CreateBuffer(desc *native.BufferDescriptor) (native.Buffer, error) {
	obj, err := d.newObject("Buffer", desc.Label)
	if err != nil {
		return nil, err
	}
	return &Buffer{object: obj, data: make([]byte, desc.Size), Desc: *desc, mapped: desc.MappedAtCreation}, nil
}

// CreateTexture implements native.Device.
func (d *Device) CreateTexture(desc *native.TextureDescriptor) (native.Texture, error) {
	obj, err := d.newObject("Texture", desc.Label)
	if err != nil {
		return nil, err
	}
	return &Texture{object: obj, Desc: *desc}, nil
}

// CreateTextureView implements native.Device.
func (d *Device) CreateTextureView(tex native.Texture, desc *native.TextureViewDescriptor) (native.TextureView, error) {
	obj, err := d.newObject("TextureView", desc.Label)
	if err != nil {
		return nil, err
	}
	t, _ := tex.(*Texture)
	return &TextureView{object: obj, Texture: t, Desc: *desc}, nil
}

// CreateSampler implements native.Device.
func (d *Device) CreateSampler(desc *native.SamplerDescriptor) (native.Sampler, error) {
	obj, err := d.newObject("Sampler", desc.Label)
	if err != nil {
		return nil, err
	}
	return &Sampler{object: obj, Desc: *desc}, nil
}

// CreateBindGroupLayout implements native.Device.
func (d *Device) CreateBindGroupLayout(desc *native.BindGroupLayoutDescriptor) (native.BindGroupLayout, error) {
	obj, err := d.newObject("BindGroupLayout", desc.Label)
	if err != nil {
		return nil, err
	}
	entries := append([]gputypes.BindGroupLayoutEntry(nil), desc.Entries...)
	return &BindGroupLayout{object: obj, Entries: entries}, nil
}

// CreateBindGroup implements native.Device.
func (d *Device) CreateBindGroup(desc *native.BindGroupDescriptor) (native.BindGroup, error) {
	obj, err := d.newObject("BindGroup", desc.Label)
	if err != nil {
		return nil, err
	}
	entries := append([]native.BindGroupEntry(nil), desc.Entries...)
	return &BindGroup{object: obj, Layout: desc.Layout, Entries: entries}, nil
}

// CreatePipelineLayout implements native.Device.
func (d *Device) CreatePipelineLayout(desc *native.PipelineLayoutDescriptor) (native.PipelineLayout, error) {
	obj, err := d.newObject("PipelineLayout", desc.Label)
	if err != nil {
		return nil, err
	}
	layouts := append([]native.BindGroupLayout(nil), desc.BindGroupLayouts...)
	return &PipelineLayout{object: obj, BindGroupLayouts: layouts}, nil
}

// CreateShaderModule implements native.Device.
func (d *Device) CreateShaderModule(desc *native.ShaderModuleDescriptor) (native.ShaderModule, error) {
	obj, err := d.newObject("ShaderModule", desc.Label)
	if err != nil {
		return nil, err
	}
	return &ShaderModule{object: obj, Words: append([]uint32(nil), desc.SPIRV...)}, nil
}

// CreateRenderPipeline implements native.Device.
func (d *Device) CreateRenderPipeline(desc *native.RenderPipelineDescriptor) (native.RenderPipeline, error) {
	obj, err := d.newObject("RenderPipeline", desc.Label)
	if err != nil {
		return nil, err
	}
	return &RenderPipeline{object: obj, Desc: *desc}, nil
}

// CreateComputePipeline implements native.Device.
func (d *Device) CreateComputePipeline(desc *native.ComputePipelineDescriptor) (native.ComputePipeline, error) {
	obj, err := d.newObject("ComputePipeline", desc.Label)
	if err != nil {
		return nil, err
	}
	return &ComputePipeline{object: obj, Desc: *desc}, nil
}

// CreateCommandEncoder implements native.Device.
func (d *Device) CreateCommandEncoder(label string) (native.CommandEncoder, error) {
	obj, err := d.newObject("CommandEncoder", label)
	if err != nil {
		return nil, err
	}
	return &CommandEncoder{object: obj}, nil
}

var _ native.Device = (*Device)(nil)
