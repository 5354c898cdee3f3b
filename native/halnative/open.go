// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package halnative

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpuhal"
	"github.com/gogpu/gpuhal/native"
)

// Open errors.
var (
	// ErrNoBackend is returned when none of the requested backends is registered.
	ErrNoBackend = errors.New("halnative: no registered backend")

	// ErrNoAdapter is returned when the backend exposes no adapter.
	ErrNoAdapter = errors.New("halnative: no adapter")

	// ErrProvider is returned when a device provider does not expose HAL objects.
	ErrProvider = errors.New("halnative: provider does not expose HAL device")
)

// Config selects the backend and adapter for Open.
type Config struct {
	// Backends lists the backends to try in order. Empty means every
	// registered backend in registration order.
	Backends []gputypes.Backend

	// PowerPreference picks between discrete and integrated adapters.
	// PowerPreferenceNone takes the first adapter.
	PowerPreference gputypes.PowerPreference

	// Features requests optional features. Features the adapter lacks are
	// dropped with a warning.
	Features gpuhal.Features

	// Logger receives device diagnostics. Nil uses gpuhal.Logger.
	Logger *slog.Logger
}

// ParseBackend maps a configuration name to a HAL backend.
// "noop" and "software" both name gputypes.BackendEmpty.
func ParseBackend(name string) (gputypes.Backend, error) {
	switch strings.ToLower(name) {
	case "vulkan":
		return gputypes.BackendVulkan, nil
	case "metal":
		return gputypes.BackendMetal, nil
	case "dx12":
		return gputypes.BackendDX12, nil
	case "gl", "gles":
		return gputypes.BackendGL, nil
	case "noop", "software", "empty":
		return gputypes.BackendEmpty, nil
	default:
		return 0, fmt.Errorf("halnative: unknown backend %q", name)
	}
}

// ParsePowerPreference maps "discrete", "integrated" and "any" to a
// power preference.
func ParsePowerPreference(name string) (gputypes.PowerPreference, error) {
	switch strings.ToLower(name) {
	case "", "any":
		return gputypes.PowerPreferenceNone, nil
	case "discrete", "high-performance":
		return gputypes.PowerPreferenceHighPerformance, nil
	case "integrated", "low-power":
		return gputypes.PowerPreferenceLowPower, nil
	default:
		return 0, fmt.Errorf("halnative: unknown power preference %q", name)
	}
}

// Open creates an instance on the first usable backend, selects an adapter
// and opens a device on it.
func Open(cfg Config) (*Device, error) {
	log := cfg.Logger
	if log == nil {
		log = slogger()
	}

	variants := cfg.Backends
	if len(variants) == 0 {
		variants = hal.AvailableBackends()
	}

	var errs []error
	for _, v := range variants {
		backend, ok := hal.GetBackend(v)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrNoBackend, v))
			continue
		}
		dev, err := openBackend(backend, cfg, log)
		if err != nil {
			log.Warn("halnative: backend unusable", "backend", v, "err", err)
			errs = append(errs, err)
			continue
		}
		return dev, nil
	}
	if len(errs) == 0 {
		return nil, ErrNoBackend
	}
	return nil, errors.Join(errs...)
}

func openBackend(backend hal.Backend, cfg Config, log *slog.Logger) (*Device, error) {
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{
		Backends: gputypes.Backends(1) << backend.Variant(),
	})
	if err != nil {
		return nil, fmt.Errorf("halnative: create %s instance: %w", backend.Variant(), err)
	}

	adapters := instance.EnumerateAdapters(nil)
	exposed, ok := pickAdapter(adapters, cfg.PowerPreference)
	if !ok {
		instance.Destroy()
		return nil, fmt.Errorf("%w on %s", ErrNoAdapter, backend.Variant())
	}

	want := toHalFeatures(cfg.Features)
	if missing := want &^ exposed.Features; missing != 0 {
		log.Warn("halnative: requested features unavailable",
			"adapter", exposed.Info.Name,
			"missing", fromHalFeatures(missing))
		want &= exposed.Features
	}

	open, err := exposed.Adapter.Open(want, exposed.Capabilities.Limits)
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("halnative: open %q: %w", exposed.Info.Name, err)
	}

	d := newDevice(open.Device, open.Queue, exposed.Adapter, log)
	d.instance = instance
	d.owned = true
	d.info = adapterInfo(exposed.Info)
	d.features = fromHalFeatures(want)
	d.log.Info("halnative: adapter selected",
		"adapter", d.info.Name,
		"backend", d.info.Backend,
		"type", d.info.DeviceType,
		"driver", exposed.Info.Driver)
	return d, nil
}

// pickAdapter returns the adapter matching pref, falling back to the first.
func pickAdapter(adapters []hal.ExposedAdapter, pref gputypes.PowerPreference) (hal.ExposedAdapter, bool) {
	if len(adapters) == 0 {
		return hal.ExposedAdapter{}, false
	}
	var want gputypes.DeviceType
	switch pref {
	case gputypes.PowerPreferenceHighPerformance:
		want = gputypes.DeviceTypeDiscreteGPU
	case gputypes.PowerPreferenceLowPower:
		want = gputypes.DeviceTypeIntegratedGPU
	default:
		return adapters[0], true
	}
	for _, a := range adapters {
		if a.Info.DeviceType == want {
			return a, true
		}
	}
	return adapters[0], true
}

// halProvider is implemented by windowing layers that share their HAL
// device, such as gogpu.App.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// OpenProvider wraps the device of a running gpucontext provider. The
// provider keeps ownership: Release settles pending work but does not
// destroy the HAL device.
//
// Providers that also implement HalAdapter() any returning a hal.Adapter
// enable driver format queries.
func OpenProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrProvider)
	}

	var adapter hal.Adapter
	if ap, ok := provider.(interface{ HalAdapter() any }); ok {
		adapter, _ = ap.HalAdapter().(hal.Adapter)
	}

	d := newDevice(device, queue, adapter, slogger())
	pi := provider.AdapterInfo()
	d.info = native.AdapterInfo{
		Name:       pi.Name,
		Backend:    "provider",
		DeviceType: deviceTypeOf(pi.Type),
	}
	d.surfaceFormat = provider.SurfaceFormat()
	d.log.Info("halnative: provider device attached",
		"adapter", d.info.Name,
		"surface", d.surfaceFormat)
	return d, nil
}

func deviceTypeOf(t gpucontext.AdapterType) gputypes.DeviceType {
	switch t {
	case gpucontext.AdapterTypeDiscrete:
		return gputypes.DeviceTypeDiscreteGPU
	case gpucontext.AdapterTypeIntegrated:
		return gputypes.DeviceTypeIntegratedGPU
	case gpucontext.AdapterTypeSoftware:
		return gputypes.DeviceTypeCPU
	default:
		return gputypes.DeviceTypeOther
	}
}
