// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package halnative

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpuhal"
	"github.com/gogpu/gpuhal/native"
)

var featureMap = []struct {
	ours gpuhal.Features
	hal  gputypes.Feature
}{
	{gpuhal.FeatureTextureCompressionBC, gputypes.FeatureTextureCompressionBC},
	{gpuhal.FeatureTextureCompressionETC2, gputypes.FeatureTextureCompressionETC2},
	{gpuhal.FeatureTextureCompressionASTC, gputypes.FeatureTextureCompressionASTC},
	{gpuhal.FeatureDepthClipControl, gputypes.FeatureDepthClipControl},
	{gpuhal.FeatureIndirectFirstInstance, gputypes.FeatureIndirectFirstInstance},
	{gpuhal.FeatureTimestampQuery, gputypes.FeatureTimestampQuery},
	{gpuhal.FeatureShaderF16, gputypes.FeatureShaderF16},
	{gpuhal.FeatureFloat32Filterable, gputypes.FeatureFloat32Filterable},
}

func toHalFeatures(f gpuhal.Features) gputypes.Features {
	var out gputypes.Features
	for _, m := range featureMap {
		if f.Has(m.ours) {
			out.Insert(m.hal)
		}
	}
	return out
}

func fromHalFeatures(f gputypes.Features) gpuhal.Features {
	var out gpuhal.Features
	for _, m := range featureMap {
		if f.Contains(m.hal) {
			out |= m.ours
		}
	}
	return out
}

// formatCaps translates driver capability flags. The HAL has no separate
// filterable flag; blendable formats are the float formats, which filter.
func formatCaps(c hal.TextureFormatCapabilities) gpuhal.FormatCaps {
	var caps gpuhal.FormatCaps
	if c.Flags&hal.TextureFormatCapabilitySampled != 0 {
		caps |= gpuhal.FormatCapSampled
		if c.Flags&hal.TextureFormatCapabilityBlendable != 0 {
			caps |= gpuhal.FormatCapFilterable
		}
	}
	if c.Flags&hal.TextureFormatCapabilityRenderAttachment != 0 {
		caps |= gpuhal.FormatCapRenderTarget
	}
	if c.Flags&hal.TextureFormatCapabilityBlendable != 0 {
		caps |= gpuhal.FormatCapBlendable
	}
	if c.Flags&hal.TextureFormatCapabilityStorage != 0 {
		caps |= gpuhal.FormatCapStorageImage
	}
	return caps
}

func adapterInfo(info gputypes.AdapterInfo) native.AdapterInfo {
	return native.AdapterInfo{
		Name:       info.Name,
		Backend:    info.Backend.String(),
		DeviceType: info.DeviceType,
	}
}

func extent(e native.Extent3D) hal.Extent3D {
	return hal.Extent3D{Width: e.Width, Height: e.Height, DepthOrArrayLayers: e.DepthOrArrayLayers}
}

func dataLayout(l native.TexelCopyBufferLayout) hal.ImageDataLayout {
	return hal.ImageDataLayout{Offset: l.Offset, BytesPerRow: l.BytesPerRow, RowsPerImage: l.RowsPerImage}
}

func copyTexture(t *native.TexelCopyTextureInfo) hal.ImageCopyTexture {
	return hal.ImageCopyTexture{
		Texture:  rawTexture(t.Texture),
		MipLevel: t.MipLevel,
		Origin:   hal.Origin3D{X: t.Origin.X, Y: t.Origin.Y, Z: t.Origin.Z},
		Aspect:   gputypes.TextureAspectAll,
	}
}

func bindGroupEntries(entries []native.BindGroupEntry) []gputypes.BindGroupEntry {
	out := make([]gputypes.BindGroupEntry, len(entries))
	for i, e := range entries {
		out[i].Binding = e.Binding
		switch {
		case e.Buffer != nil:
			out[i].Resource = gputypes.BufferBinding{
				Buffer: rawBuffer(e.Buffer).NativeHandle(),
				Offset: e.Offset,
				Size:   e.Size,
			}
		case e.TextureView != nil:
			out[i].Resource = gputypes.TextureViewBinding{TextureView: rawView(e.TextureView).NativeHandle()}
		case e.Sampler != nil:
			out[i].Resource = gputypes.SamplerBinding{Sampler: e.Sampler.(*Sampler).raw.NativeHandle()}
		}
	}
	return out
}

func depthStencil(ds *native.DepthStencilState) *hal.DepthStencilState {
	if ds == nil {
		return nil
	}
	face := hal.StencilFaceState{Compare: gputypes.CompareFunctionAlways}
	return &hal.DepthStencilState{
		Format:            ds.Format,
		DepthWriteEnabled: ds.DepthWriteEnabled,
		DepthCompare:      ds.DepthCompare,
		StencilFront:      face,
		StencilBack:       face,
		StencilReadMask:   0xFFFFFFFF,
		StencilWriteMask:  0xFFFFFFFF,
	}
}

func renderPass(desc *native.RenderPassDescriptor) *hal.RenderPassDescriptor {
	out := &hal.RenderPassDescriptor{
		Label:            desc.Label,
		ColorAttachments: make([]hal.RenderPassColorAttachment, len(desc.ColorAttachments)),
	}
	for i, c := range desc.ColorAttachments {
		out.ColorAttachments[i] = hal.RenderPassColorAttachment{
			View:       rawView(c.View),
			LoadOp:     c.LoadOp,
			StoreOp:    c.StoreOp,
			ClearValue: c.ClearValue,
		}
		if c.ResolveTarget != nil {
			out.ColorAttachments[i].ResolveTarget = rawView(c.ResolveTarget)
		}
	}
	if ds := desc.DepthStencilAttachment; ds != nil {
		out.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:              rawView(ds.View),
			DepthLoadOp:       ds.DepthLoadOp,
			DepthStoreOp:      ds.DepthStoreOp,
			DepthClearValue:   ds.DepthClearValue,
			StencilLoadOp:     ds.StencilLoadOp,
			StencilStoreOp:    ds.StencilStoreOp,
			StencilClearValue: ds.StencilClearValue,
		}
	}
	return out
}
