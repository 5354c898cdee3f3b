package webgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpuhal"
	"github.com/gogpu/gpuhal/native"
)

// Sampler is the record behind a gpuhal.SamplerHandle.
type Sampler struct {
	native native.Sampler
	label  string
}

// Native returns the native sampler.
func (s *Sampler) Native() native.Sampler { return s.native }

func filterOr(f gputypes.FilterMode) gputypes.FilterMode {
	if f == gputypes.FilterModeUndefined {
		return gputypes.FilterModeNearest
	}
	return f
}

func addressOr(a gputypes.AddressMode) gputypes.AddressMode {
	if a == gputypes.AddressModeUndefined {
		return gputypes.AddressModeClampToEdge
	}
	return a
}

// CreateSampler implements gpuhal.Device.
// Unset filters default to nearest and unset address modes to clamp.
func (d *Device) CreateSampler(desc *gpuhal.SamplerDescriptor) (gpuhal.SamplerHandle, error) {
	if err := d.checkAlive(); err != nil {
		return 0, err
	}
	if desc == nil {
		desc = &gpuhal.SamplerDescriptor{}
	}
	lodMax := desc.LodMaxClamp
	if lodMax == 0 {
		lodMax = gpuhal.LodMaxUnclamped
	}
	if lodMax < desc.LodMinClamp {
		return 0, fmt.Errorf("%w: lod clamp [%g, %g]", ErrInvalidDescriptor, desc.LodMinClamp, lodMax)
	}
	label := d.label(desc.Label, "sampler")
	ns, err := d.nd.CreateSampler(&native.SamplerDescriptor{
		Label:         label,
		AddressModeU:  addressOr(desc.AddressU),
		AddressModeV:  addressOr(desc.AddressV),
		AddressModeW:  addressOr(desc.AddressW),
		MagFilter:     filterOr(desc.MagFilter),
		MinFilter:     filterOr(desc.MinFilter),
		MipmapFilter:  filterOr(desc.MipFilter),
		LodMinClamp:   desc.LodMinClamp,
		LodMaxClamp:   lodMax,
		MaxAnisotropy: max(desc.MaxAnisotropy, 1),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: sampler %q: %w", ErrCreateFailed, label, err)
	}
	s, h := d.samplers.New()
	s.native = ns
	s.label = label
	return gpuhal.SamplerHandle(h), nil
}

// DestroySampler implements gpuhal.Device.
func (d *Device) DestroySampler(h gpuhal.SamplerHandle) {
	if h.IsNil() {
		return
	}
	s := d.samplers.MustGet("DestroySampler", gpuhal.Handle(h))
	s.native.Release()
	d.samplers.Delete(s)
}
