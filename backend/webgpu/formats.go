package webgpu

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpuhal"
	"github.com/gogpu/gpuhal/native"
)

const (
	capsFloat  = gpuhal.FormatCapSampled | gpuhal.FormatCapFilterable | gpuhal.FormatCapRenderTarget | gpuhal.FormatCapBlendable
	capsInt    = gpuhal.FormatCapSampled | gpuhal.FormatCapRenderTarget
	capsSnorm  = gpuhal.FormatCapSampled | gpuhal.FormatCapFilterable
	capsDepth  = gpuhal.FormatCapSampled | gpuhal.FormatCapRenderTarget
	capsPacked = gpuhal.FormatCapSampled | gpuhal.FormatCapFilterable
	capsBlock  = gpuhal.FormatCapSampled | gpuhal.FormatCapFilterable
	storage    = gpuhal.FormatCapStorageImage
)

// formatTable lists the guaranteed WebGPU capabilities of every
// uncompressed format. 32-bit float formats gain FormatCapFilterable with
// FeatureFloat32Filterable.
var formatTable = map[gputypes.TextureFormat]gpuhal.FormatCaps{
	gputypes.TextureFormatR8Unorm:        capsFloat,
	gputypes.TextureFormatR8Snorm:        capsSnorm,
	gputypes.TextureFormatR8Uint:         capsInt,
	gputypes.TextureFormatR8Sint:         capsInt,
	gputypes.TextureFormatR16Uint:        capsInt,
	gputypes.TextureFormatR16Sint:        capsInt,
	gputypes.TextureFormatR16Float:       capsFloat,
	gputypes.TextureFormatRG8Unorm:       capsFloat,
	gputypes.TextureFormatRG8Snorm:       capsSnorm,
	gputypes.TextureFormatRG8Uint:        capsInt,
	gputypes.TextureFormatRG8Sint:        capsInt,
	gputypes.TextureFormatR32Float:       capsInt | storage,
	gputypes.TextureFormatR32Uint:        capsInt | storage,
	gputypes.TextureFormatR32Sint:        capsInt | storage,
	gputypes.TextureFormatRG16Uint:       capsInt,
	gputypes.TextureFormatRG16Sint:       capsInt,
	gputypes.TextureFormatRG16Float:      capsFloat,
	gputypes.TextureFormatRGBA8Unorm:     capsFloat | storage,
	gputypes.TextureFormatRGBA8UnormSrgb: capsFloat,
	gputypes.TextureFormatRGBA8Snorm:     capsSnorm | storage,
	gputypes.TextureFormatRGBA8Uint:      capsInt | storage,
	gputypes.TextureFormatRGBA8Sint:      capsInt | storage,
	gputypes.TextureFormatBGRA8Unorm:     capsFloat,
	gputypes.TextureFormatBGRA8UnormSrgb: capsFloat,
	gputypes.TextureFormatRGB10A2Uint:    capsInt,
	gputypes.TextureFormatRGB10A2Unorm:   capsFloat,
	gputypes.TextureFormatRG11B10Ufloat:  capsPacked,
	gputypes.TextureFormatRGB9E5Ufloat:   capsPacked,
	gputypes.TextureFormatRG32Float:      capsInt | storage,
	gputypes.TextureFormatRG32Uint:       capsInt | storage,
	gputypes.TextureFormatRG32Sint:       capsInt | storage,
	gputypes.TextureFormatRGBA16Uint:     capsInt | storage,
	gputypes.TextureFormatRGBA16Sint:     capsInt | storage,
	gputypes.TextureFormatRGBA16Float:    capsFloat | storage,
	gputypes.TextureFormatRGBA32Float:    capsInt | storage,
	gputypes.TextureFormatRGBA32Uint:     capsInt | storage,
	gputypes.TextureFormatRGBA32Sint:     capsInt | storage,

	gputypes.TextureFormatStencil8:             gpuhal.FormatCapRenderTarget,
	gputypes.TextureFormatDepth16Unorm:         capsDepth,
	gputypes.TextureFormatDepth24Plus:          capsDepth,
	gputypes.TextureFormatDepth24PlusStencil8:  capsDepth,
	gputypes.TextureFormatDepth32Float:         capsDepth,
	gputypes.TextureFormatDepth32FloatStencil8: capsDepth,
}

// compressionFeature returns the feature gating a block-compressed format.
func compressionFeature(f gputypes.TextureFormat) (gpuhal.Features, bool) {
	switch {
	case f >= gputypes.TextureFormatBC1RGBAUnorm && f <= gputypes.TextureFormatBC7RGBAUnormSrgb:
		return gpuhal.FeatureTextureCompressionBC, true
	case f >= gputypes.TextureFormatETC2RGB8Unorm && f <= gputypes.TextureFormatEACRG11Snorm:
		return gpuhal.FeatureTextureCompressionETC2, true
	case f >= gputypes.TextureFormatASTC4x4Unorm && f <= gputypes.TextureFormatASTC12x12UnormSrgb:
		return gpuhal.FeatureTextureCompressionASTC, true
	}
	return 0, false
}

func isFloat32(f gputypes.TextureFormat) bool {
	switch f {
	case gputypes.TextureFormatR32Float, gputypes.TextureFormatRG32Float, gputypes.TextureFormatRGBA32Float:
		return true
	}
	return false
}

// staticFormatCaps answers from formatTable, gated by the device features.
func staticFormatCaps(f gputypes.TextureFormat, features gpuhal.Features) gpuhal.FormatCaps {
	if feat, ok := compressionFeature(f); ok {
		if features.Has(feat) {
			return capsBlock
		}
		return 0
	}
	caps := formatTable[f]
	if isFloat32(f) && features.Has(gpuhal.FeatureFloat32Filterable) {
		caps |= gpuhal.FormatCapFilterable
	}
	return caps
}

// knownFormat reports whether the backend can create textures of f at all.
func knownFormat(f gputypes.TextureFormat) bool {
	if _, ok := formatTable[f]; ok {
		return true
	}
	_, ok := compressionFeature(f)
	return ok
}

// translateFormat maps an engine format to the native format. Formats the
// backend does not know fall back to RGBA8Unorm with a warning.
func (d *Device) translateFormat(f gputypes.TextureFormat) gputypes.TextureFormat {
	if knownFormat(f) {
		return f
	}
	d.log.Warn("webgpu: unsupported texture format, using RGBA8Unorm", "format", f)
	return gputypes.TextureFormatRGBA8Unorm
}

// FormatCapabilities implements gpuhal.Device. Devices that query the
// driver are asked first; otherwise the static WebGPU table answers.
func (d *Device) FormatCapabilities(f gputypes.TextureFormat) gpuhal.FormatCaps {
	if q, ok := d.nd.(native.FormatQuerier); ok {
		if caps, ok := q.TextureFormatCaps(f); ok {
			return caps
		}
	}
	return staticFormatCaps(f, d.features)
}
